package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/deadletter"
	"grassroot-chatbot/backend/pkg/logger"
)

type scriptedRouter struct {
	reply *models.Reply
	err   error
	panic bool
}

func (s *scriptedRouter) Route(_ context.Context, _ *models.Envelope) (*models.Reply, error) {
	if s.panic {
		panic("collaborator blew up")
	}
	return s.reply, s.err
}

type capturingPublisher struct {
	published []deadletter.FailedTurn
}

func (c *capturingPublisher) Publish(_ context.Context, failure deadletter.FailedTurn) error {
	c.published = append(c.published, failure)
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

func newTestSafeNet(router Router, repo *fakeTurnRepo, dead deadletter.Publisher) *SafeNet {
	log := logger.New(logger.DefaultConfig())
	recorder := NewTurnRecorder(repo, 24*time.Hour)
	return NewSafeNet(router, recorder, dead, nil, log)
}

func TestSafeNetPersistsSuccessfulTurn(t *testing.T) {
	repo := &fakeTurnRepo{}
	reply := models.NewMenuReply("27820001111", "service",
		[]string{"Pick one"},
		[]string{"svc::a", "svc::b"},
		[]string{"Option A", "Option B"},
	)
	sn := newTestSafeNet(&scriptedRouter{reply: reply}, repo, &capturingPublisher{})

	got := sn.Handle(context.Background(), textEnvelope("find a clinic"))

	assert.Same(t, reply, got)
	require.Len(t, repo.appended, 1)
	record := repo.appended[0]
	assert.Equal(t, "find a clinic", record.Message)
	assert.Equal(t, "Pick one", record.Reply)
	assert.True(t, record.HasMenuFlag)
	assert.Equal(t, record.MenuPayload, []string{"svc::a", "svc::b"})
	assert.Equal(t, len(record.MenuPayload), len(record.MenuText))
	assert.NotEmpty(t, record.UID)
	assert.True(t, record.ExpiresAt.After(time.Now()))
}

func TestSafeNetRecoversFromRoutingError(t *testing.T) {
	repo := &fakeTurnRepo{}
	dead := &capturingPublisher{}
	sn := newTestSafeNet(&scriptedRouter{err: errors.New("nlu unreachable")}, repo, dead)

	got := sn.Handle(context.Background(), textEnvelope("hello"))

	assert.Equal(t, models.DomainRestart, got.Domain)
	require.Len(t, dead.published, 1)
	assert.Equal(t, "27820001111", dead.published[0].SenderID)
	assert.Contains(t, dead.published[0].Error, "nlu unreachable")
	// the restart turn is still recorded so the next message starts clean
	require.Len(t, repo.appended, 1)
	assert.Equal(t, models.DomainRestart, repo.appended[0].Domain)
}

func TestSafeNetRecoversFromPanic(t *testing.T) {
	repo := &fakeTurnRepo{}
	dead := &capturingPublisher{}
	sn := newTestSafeNet(&scriptedRouter{panic: true}, repo, dead)

	got := sn.Handle(context.Background(), textEnvelope("hello"))

	assert.Equal(t, models.DomainRestart, got.Domain)
	require.Len(t, dead.published, 1)
	assert.Contains(t, dead.published[0].Error, "collaborator blew up")
}

func TestSafeNetTreatsEmptyReplyAsFailure(t *testing.T) {
	repo := &fakeTurnRepo{}
	dead := &capturingPublisher{}
	sn := newTestSafeNet(&scriptedRouter{reply: nil}, repo, dead)

	got := sn.Handle(context.Background(), textEnvelope("hello"))

	assert.Equal(t, models.DomainRestart, got.Domain)
	assert.Len(t, dead.published, 1)
}

func TestSafeNetScrubsCredentialsFromFailure(t *testing.T) {
	dead := &capturingPublisher{}
	err := errors.New("call failed: Authorization: Bearer sk-secret-token rejected")
	sn := newTestSafeNet(&scriptedRouter{err: err}, &fakeTurnRepo{}, dead)

	sn.Handle(context.Background(), textEnvelope("hello"))

	require.Len(t, dead.published, 1)
	assert.NotContains(t, dead.published[0].Error, "sk-secret-token")
	assert.Contains(t, dead.published[0].Error, "[redacted]")
}

func TestSafeNetStillRepliesWhenPersistenceFails(t *testing.T) {
	repo := &fakeTurnRepo{failNext: errors.New("db gone")}
	reply := models.NewReply("27820001111", "service", []string{"ok"})
	sn := newTestSafeNet(&scriptedRouter{reply: reply}, repo, &capturingPublisher{})

	got := sn.Handle(context.Background(), textEnvelope("hi"))

	assert.Same(t, reply, got)
	assert.Empty(t, repo.appended)
}
