package models

import (
	"time"
)

// TurnRecord is one persisted turn: the inbound message plus the reply it
// produced. Records are append-only; the history resolver reads them back
// most-recent-first within the freshness window to reconstruct conversation
// state. Optional columns hold JSON null when absent, and the menu check is
// existence-based via HasMenu.
type TurnRecord struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UID       string    `json:"uid" gorm:"index"`
	SenderID  string    `json:"senderId" gorm:"index:idx_turns_sender_ts,priority:1"`
	Timestamp time.Time `json:"timestamp" gorm:"index:idx_turns_sender_ts,priority:2,sort:desc"`
	Domain    string    `json:"domain"`
	// Message is the original inbound text, never the reshaped form the
	// router may have forwarded to a collaborator.
	Message       string            `json:"message"`
	Reply         string            `json:"reply,omitempty"`
	MenuPayload   []string          `json:"menuPayload,omitempty" gorm:"serializer:json"`
	MenuText      []string          `json:"menuText,omitempty" gorm:"serializer:json"`
	HasMenuFlag   bool              `json:"-" gorm:"column:has_menu;index"`
	Entity        string            `json:"entity,omitempty"`
	AuxProperties map[string]string `json:"auxProperties,omitempty" gorm:"serializer:json"`
	ExpiresAt     time.Time         `json:"expiresAt" gorm:"index"`
	CreatedAt     time.Time         `json:"-"`
}

// TableName pins the turn log table.
func (TurnRecord) TableName() string {
	return "conversation_turns"
}

// HasMenu reports whether this turn offered a menu the next inbound message
// may be answering.
func (t *TurnRecord) HasMenu() bool {
	return t != nil && len(t.MenuPayload) > 0
}

// EntityRef decodes the stored entity reference, if any.
func (t *TurnRecord) EntityRef() (EntityRef, bool) {
	if t == nil || t.Entity == "" {
		return EntityRef{}, false
	}
	ref, err := ParseEntityRef(t.Entity)
	if err != nil {
		return EntityRef{}, false
	}
	return ref, true
}

// Aux returns one auxiliary property, or "" when absent.
func (t *TurnRecord) Aux(key string) string {
	if t == nil || t.AuxProperties == nil {
		return ""
	}
	return t.AuxProperties[key]
}
