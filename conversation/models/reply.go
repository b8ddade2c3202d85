package models

import (
	"encoding/json"
	"strings"
)

// Reply is the single outbound answer for a turn. Built by the router (or a
// helper converting a collaborator response), consumed exactly once by the
// persistence writer and once by the delivery adapter.
type Reply struct {
	SenderID      string
	Domain        string
	Messages      []string
	MenuPayload   []string
	MenuText      []string
	Entity        EntityRef
	AuxProperties map[string]string
}

// NewReply builds a plain reply. Pure constructor.
func NewReply(senderID, domain string, messages []string) *Reply {
	return &Reply{
		SenderID: senderID,
		Domain:   domain,
		Messages: messages,
	}
}

// NewMenuReply builds a reply carrying an index-aligned option menu.
// payload[i] is the machine token for label text[i].
func NewMenuReply(senderID, domain string, messages, payload, text []string) *Reply {
	r := NewReply(senderID, domain, messages)
	r.MenuPayload = payload
	r.MenuText = text
	return r
}

// TextSingle joins the reply messages into one newline-separated body.
func (r *Reply) TextSingle() string {
	return strings.Join(r.Messages, "\n")
}

// HasMenu reports whether the reply offers options to pick from.
func (r *Reply) HasMenu() bool {
	return len(r.MenuPayload) > 0
}

// IsEmpty reports whether the reply has nothing to say. An empty reply out
// of the router is an anomaly handled by the safe-net.
func (r *Reply) IsEmpty() bool {
	return r == nil || len(r.Messages) == 0
}

// WithAux returns the reply with one auxiliary property set.
func (r *Reply) WithAux(key, value string) *Reply {
	if r.AuxProperties == nil {
		r.AuxProperties = make(map[string]string)
	}
	r.AuxProperties[key] = value
	return r
}

// MarshalJSON renders the delivery payload shape, including the derived
// textSingle field and omitting absent optionals.
func (r *Reply) MarshalJSON() ([]byte, error) {
	out := struct {
		SenderID      string            `json:"senderId"`
		Domain        string            `json:"domain"`
		ReplyMessages []string          `json:"replyMessages"`
		TextSingle    string            `json:"textSingle"`
		MenuPayload   []string          `json:"menuPayload,omitempty"`
		MenuText      []string          `json:"menuText,omitempty"`
		Entity        string            `json:"entity,omitempty"`
		AuxProperties map[string]string `json:"auxProperties,omitempty"`
	}{
		SenderID:      r.SenderID,
		Domain:        r.Domain,
		ReplyMessages: r.Messages,
		TextSingle:    r.TextSingle(),
		MenuPayload:   r.MenuPayload,
		MenuText:      r.MenuText,
		AuxProperties: r.AuxProperties,
	}
	if !r.Entity.IsZero() {
		out.Entity = r.Entity.Encode()
	}
	return json.Marshal(out)
}
