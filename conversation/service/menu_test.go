package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testPayloads = []string{"svc::clinic", "svc::shelter", "svc::saps"}
	testLabels   = []string{"24-hour clinic", "Shelter", "Police station"}
)

func TestResolveNumericChoice(t *testing.T) {
	m := NewMenuMatcher(0.6)

	payload, ok := m.Resolve("2", testPayloads, testLabels)
	assert.True(t, ok)
	assert.Equal(t, "svc::shelter", payload)

	// trailing punctuation is tolerated
	payload, ok = m.Resolve("1.", testPayloads, testLabels)
	assert.True(t, ok)
	assert.Equal(t, "svc::clinic", payload)
}

func TestResolveNumericOutOfRange(t *testing.T) {
	m := NewMenuMatcher(0.6)

	_, ok := m.Resolve("9", testPayloads, testLabels)
	assert.False(t, ok)
	assert.True(t, m.IsNumericChoice("9"))
}

func TestResolveLongNumbersAreNotChoices(t *testing.T) {
	m := NewMenuMatcher(0.6)

	// an address or phone number must not be read as a selection
	_, ok := m.Resolve("0820001111", testPayloads, testLabels)
	assert.False(t, ok)
	assert.False(t, m.IsNumericChoice("0820001111"))
}

func TestResolveLabelContainment(t *testing.T) {
	m := NewMenuMatcher(0.6)

	payload, ok := m.Resolve("the shelter please", testPayloads, testLabels)
	assert.True(t, ok)
	assert.Equal(t, "svc::shelter", payload)
}

func TestResolveFuzzyAboveThreshold(t *testing.T) {
	m := NewMenuMatcher(0.6)

	payload, ok := m.Resolve("sheltr", testPayloads, testLabels)
	assert.True(t, ok)
	assert.Equal(t, "svc::shelter", payload)
}

func TestResolveUnrelatedTextPassesThrough(t *testing.T) {
	m := NewMenuMatcher(0.6)

	_, ok := m.Resolve("my pipes burst yesterday", testPayloads, testLabels)
	assert.False(t, ok)
}

func TestResolveEmptyMenu(t *testing.T) {
	m := NewMenuMatcher(0.6)

	_, ok := m.Resolve("1", nil, nil)
	assert.False(t, ok)
}
