package models

import (
	"fmt"
	"strings"
)

// entitySeparator joins the two halves of an encoded entity reference.
const entitySeparator = "::"

// EntityRef points at an in-progress platform object (a group, campaign or
// task being joined or responded to). It is persisted turn-to-turn until the
// router clears it.
type EntityRef struct {
	Type string
	UID  string
}

// Encode renders the reference in its wire/persistence form, "type::uid".
func (e EntityRef) Encode() string {
	return e.Type + entitySeparator + e.UID
}

// IsZero reports whether the reference is unset.
func (e EntityRef) IsZero() bool {
	return e.Type == "" && e.UID == ""
}

// ParseEntityRef decodes a "type::uid" token, validating both halves.
func ParseEntityRef(s string) (EntityRef, error) {
	idx := strings.Index(s, entitySeparator)
	if idx <= 0 || idx+len(entitySeparator) >= len(s) {
		return EntityRef{}, fmt.Errorf("malformed entity reference %q", s)
	}
	return EntityRef{
		Type: s[:idx],
		UID:  s[idx+len(entitySeparator):],
	}, nil
}
