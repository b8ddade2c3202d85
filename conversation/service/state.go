package service

import (
	"context"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/nlu"
	"grassroot-chatbot/backend/platform"
)

// ConversationState is everything the router knows about a sender at the
// start of a turn. It is assembled once per request from the turn log and
// discarded afterwards; no session state survives in the process.
type ConversationState struct {
	// UserID is the platform identity behind the channel sender.
	UserID string
	// Prior is the most recent turn within the freshness window, nil when
	// the conversation has gone stale or never started.
	Prior *models.TurnRecord
	// MenuTurn is the turn whose menu the inbound message may be
	// answering: Prior when it carries one, otherwise the most recent
	// menu-bearing turn still in window.
	MenuTurn *models.TurnRecord
}

// ActiveDomain is the domain controlling routing, or "" when the
// conversation is at (or reset to) the opening.
func (s *ConversationState) ActiveDomain() string {
	if s.Prior == nil {
		return ""
	}
	switch s.Prior.Domain {
	case models.DomainOpening, models.DomainRestart:
		return ""
	default:
		return s.Prior.Domain
	}
}

// AtOpening reports whether the sender has no active flow.
func (s *ConversationState) AtOpening() bool {
	return s.ActiveDomain() == ""
}

// turn is the working context of one routing pass. envelope starts as the
// inbound message and may be reshaped by menu re-interpretation; the
// persistence writer records the inbound original, never the reshaped form.
type turn struct {
	state    *ConversationState
	envelope *models.Envelope

	// memoized NLU parse, at most one per distinct (domain, message)
	nluResult  *nlu.Result
	nluDomain  string
	nluMessage string
}

// NLUService is the slice of the NLU collaborator the router consumes.
type NLUService interface {
	Parse(ctx context.Context, domain, message, userID string) (*nlu.Result, error)
	ExtractProvince(ctx context.Context, text string) (*nlu.Result, error)
	Reset(ctx context.Context, userID string)
}

// PlatformService is the slice of the platform collaborator the router
// consumes.
type PlatformService interface {
	PhraseSearch(ctx context.Context, phrase, userID string, broad bool) (*platform.SearchResult, error)
	SelectEntity(ctx context.Context, ref models.EntityRef, userID string) (*platform.SearchResult, error)
	RespondToEntity(ctx context.Context, ref models.EntityRef, userID string, reply *platform.EntityReply) (*platform.EntityResponse, error)
}

// UserResolver resolves channel senders to platform user ids.
type UserResolver interface {
	FetchUserID(ctx context.Context, msisdn string) (string, error)
}
