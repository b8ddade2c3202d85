package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// menuNumberPattern accepts only short numeric tokens (1-2 digits, optional
// trailing punctuation) so ordinary numeric content like an address or a
// phone number is not misread as a menu choice.
var menuNumberPattern = regexp.MustCompile(`^(\d{1,2})\W?$`)

// MenuMatcher resolves inbound free text against a remembered menu, first
// as a 1-based numeric index, then by label containment, then by string
// similarity against a configured threshold.
type MenuMatcher struct {
	threshold float64
	dice      *metrics.SorensenDice
}

func NewMenuMatcher(threshold float64) *MenuMatcher {
	return &MenuMatcher{
		threshold: threshold,
		dice:      metrics.NewSorensenDice(),
	}
}

// Resolve maps a message to the machine payload of the menu option it
// picks. The second return is false when nothing matched; that is not an
// error, the message simply continues down the routing chain unchanged.
func (m *MenuMatcher) Resolve(message string, payloads, labels []string) (string, bool) {
	if len(payloads) == 0 {
		return "", false
	}
	trimmed := strings.TrimSpace(message)

	if idx, ok := m.numericIndex(trimmed); ok {
		if idx < 1 || idx > len(payloads) {
			// malformed selection, caller logs and moves on
			return "", false
		}
		return payloads[idx-1], true
	}

	if idx, ok := m.matchLabel(trimmed, labels); ok {
		return payloads[idx], true
	}
	return "", false
}

// IsNumericChoice reports whether the message looks like a numeric menu
// selection at all, in or out of range.
func (m *MenuMatcher) IsNumericChoice(message string) bool {
	return menuNumberPattern.MatchString(strings.TrimSpace(message))
}

func (m *MenuMatcher) numericIndex(message string) (int, bool) {
	match := menuNumberPattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// matchLabel finds the best label for a free-text answer: containment
// first, then fuzzy similarity above the threshold.
func (m *MenuMatcher) matchLabel(message string, labels []string) (int, bool) {
	if message == "" || len(labels) == 0 {
		return 0, false
	}
	lowered := strings.ToLower(message)

	bestIdx, bestScore := -1, 0.0
	contained := false
	for i, label := range labels {
		lowLabel := strings.ToLower(label)
		if lowLabel == "" {
			continue
		}
		isContained := strings.Contains(lowered, lowLabel) || strings.Contains(lowLabel, lowered)
		score := strutil.Similarity(lowered, lowLabel, m.dice)

		switch {
		case isContained && !contained:
			// first containment hit beats any fuzzy-only candidate
			contained = true
			bestIdx, bestScore = i, score
		case isContained == contained && score > bestScore:
			bestIdx, bestScore = i, score
		}
	}

	if bestIdx == -1 {
		return 0, false
	}
	if !contained && bestScore < m.threshold {
		return 0, false
	}
	return bestIdx, true
}
