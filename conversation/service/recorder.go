package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/conversation/repository"
)

// TurnRecorder appends finished turns to the conversation log. The log is
// the only state the router has, so every recorded field is something a
// later turn reads back.
type TurnRecorder struct {
	repo repository.TurnRepository
	ttl  time.Duration
}

func NewTurnRecorder(repo repository.TurnRepository, ttl time.Duration) *TurnRecorder {
	return &TurnRecorder{repo: repo, ttl: ttl}
}

// Record persists one exchange. The message stored is the original inbound
// text, never a reshaped payload, so the log reads as the user spoke.
func (r *TurnRecorder) Record(ctx context.Context, env *models.Envelope, reply *models.Reply) error {
	now := time.Now().UTC()
	record := &models.TurnRecord{
		UID:       uuid.NewString(),
		SenderID:  env.SenderID,
		Timestamp: now,
		Domain:    reply.Domain,
		Message:   env.RawContent,
		Reply:     reply.TextSingle(),
		ExpiresAt: now.Add(r.ttl),
	}
	if reply.HasMenu() {
		record.MenuPayload = reply.MenuPayload
		record.MenuText = reply.MenuText
		record.HasMenuFlag = true
	}
	if !reply.Entity.IsZero() {
		record.Entity = reply.Entity.Encode()
	}
	if len(reply.AuxProperties) > 0 {
		record.AuxProperties = reply.AuxProperties
	}
	return r.repo.Append(ctx, record)
}
