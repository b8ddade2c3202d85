package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyTextSingleJoinsMessages(t *testing.T) {
	reply := NewReply("27820001111", "service", []string{"Found it.", "Anything else?"})
	assert.Equal(t, "Found it.\nAnything else?", reply.TextSingle())
}

func TestReplyMarshalIncludesEntityAndMenu(t *testing.T) {
	reply := NewMenuReply("27820001111", DomainPlatform,
		[]string{"Pick one"},
		[]string{"grp::a", "grp::b"},
		[]string{"Group A", "Group B"},
	)
	reply.Entity = EntityRef{Type: "grp", UID: "a"}

	data, err := json.Marshal(reply)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "platform", out["domain"])
	assert.Equal(t, "Pick one", out["textSingle"])
	assert.Equal(t, "grp::a", out["entity"])
	assert.Len(t, out["menuPayload"], 2)
	assert.Len(t, out["menuText"], 2)
}

func TestReplyMarshalOmitsAbsentOptionals(t *testing.T) {
	data, err := json.Marshal(NewReply("27820001111", "opening", []string{"Hi"}))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "entity")
	assert.NotContains(t, out, "menuPayload")
	assert.NotContains(t, out, "auxProperties")
}

func TestRestartReplyResetsToOpening(t *testing.T) {
	reply := RestartReply("27820001111")
	assert.Equal(t, DomainRestart, reply.Domain)
	assert.True(t, reply.HasMenu())
	assert.Equal(t, len(reply.MenuPayload), len(reply.MenuText))
	assert.True(t, reply.Entity.IsZero())
}

func TestDomainOpeningReplyFallsBack(t *testing.T) {
	known := DomainOpeningReply("27820001111", "action")
	assert.Equal(t, "action", known.Domain)
	assert.NotEmpty(t, known.Messages)

	unknown := DomainOpeningReply("27820001111", "no-such-domain")
	assert.Equal(t, DomainOpening, unknown.Domain)
	assert.True(t, unknown.HasMenu())
}
