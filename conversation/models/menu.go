package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Menu is an ordered set of reply options: Payloads[i] is the machine token
// behind label Labels[i]. Collaborators send menus as JSON objects; decoding
// walks the raw tokens so the wire order survives, since the two arrays we
// persist must stay index-aligned and a Go map would scramble them.
type Menu struct {
	Payloads []string
	Labels   []string
}

// UnmarshalJSON decodes {"payload": "label", ...} preserving key order.
func (m *Menu) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		// JSON null, absent menu
		m.Payloads, m.Labels = nil, nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("menu: expected object, got %v", tok)
	}

	m.Payloads = m.Payloads[:0]
	m.Labels = m.Labels[:0]
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("menu: non-string key %v", keyTok)
		}
		var label string
		if err := dec.Decode(&label); err != nil {
			return fmt.Errorf("menu: label for %q: %w", key, err)
		}
		m.Payloads = append(m.Payloads, key)
		m.Labels = append(m.Labels, label)
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Len returns the number of options.
func (m *Menu) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Payloads)
}
