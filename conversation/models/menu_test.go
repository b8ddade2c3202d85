package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuUnmarshalPreservesWireOrder(t *testing.T) {
	// keys deliberately out of lexical order
	raw := `{"svc::shelter":"Shelter","svc::clinic":"24-hour clinic","svc::saps":"Police station"}`

	var menu Menu
	require.NoError(t, json.Unmarshal([]byte(raw), &menu))

	assert.Equal(t, []string{"svc::shelter", "svc::clinic", "svc::saps"}, menu.Payloads)
	assert.Equal(t, []string{"Shelter", "24-hour clinic", "Police station"}, menu.Labels)
	assert.Equal(t, 3, menu.Len())
}

func TestMenuUnmarshalNull(t *testing.T) {
	var menu Menu
	require.NoError(t, json.Unmarshal([]byte(`null`), &menu))
	assert.Equal(t, 0, menu.Len())
}

func TestMenuUnmarshalRejectsNonObjects(t *testing.T) {
	var menu Menu
	assert.Error(t, json.Unmarshal([]byte(`["a","b"]`), &menu))
}

func TestMenuNilLen(t *testing.T) {
	var menu *Menu
	assert.Equal(t, 0, menu.Len())
}
