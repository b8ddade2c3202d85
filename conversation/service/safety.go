package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/deadletter"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/shared/observability"
)

// Router is the routing engine the safe-net guards.
type Router interface {
	Route(ctx context.Context, env *models.Envelope) (*models.Reply, error)
}

// SafeNet guarantees the sender always gets a reply. Routing errors,
// panics, and empty outcomes all collapse to a restart prompt, with the
// failure dead-lettered for offline diagnosis. Handle never fails.
type SafeNet struct {
	router   Router
	recorder *TurnRecorder
	dead     deadletter.Publisher
	metrics  *observability.Metrics
	log      *logger.Logger
}

func NewSafeNet(router Router, recorder *TurnRecorder, dead deadletter.Publisher, metrics *observability.Metrics, log *logger.Logger) *SafeNet {
	return &SafeNet{router: router, recorder: recorder, dead: dead, metrics: metrics, log: log}
}

// Handle runs one guarded turn.
func (s *SafeNet) Handle(ctx context.Context, env *models.Envelope) *models.Reply {
	reply, err := s.route(ctx, env)
	if err == nil && reply != nil && !reply.IsEmpty() {
		if recErr := s.recorder.Record(ctx, env, reply); recErr != nil {
			// the reply still goes out; the next turn just sees a gap
			s.log.Error("turn persistence failed", "error", recErr, "sender_id", env.SenderID)
		}
		return reply
	}

	if err == nil {
		err = fmt.Errorf("routing produced no reply")
	}
	return s.recover(ctx, env, err)
}

// route isolates the panic boundary so a collaborator bug surfaces as an
// error, not a dropped webhook.
func (s *SafeNet) route(ctx context.Context, env *models.Envelope) (reply *models.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = fmt.Errorf("panic during routing: %v", r)
		}
	}()
	return s.router.Route(ctx, env)
}

func (s *SafeNet) recover(ctx context.Context, env *models.Envelope, cause error) *models.Reply {
	s.metrics.SafeNetActivated(ctx)
	s.log.Error("safe-net activated", "error", cause, "sender_id", env.SenderID)

	failure := deadletter.FailedTurn{
		ID:        uuid.NewString(),
		SenderID:  env.SenderID,
		Message:   env.RawContent,
		Error:     deadletter.Scrub(cause.Error()),
		Timestamp: time.Now().UTC(),
	}
	if pubErr := s.dead.Publish(ctx, failure); pubErr != nil {
		s.log.Error("dead-letter publish failed", "error", pubErr)
	}

	reply := models.RestartReply(env.SenderID)
	if recErr := s.recorder.Record(ctx, env, reply); recErr != nil {
		s.log.Error("restart turn persistence failed", "error", recErr)
	}
	return reply
}
