package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/conversation/service"
	"grassroot-chatbot/backend/conversation/ws"
	"grassroot-chatbot/backend/pkg/deadletter"
	"grassroot-chatbot/backend/pkg/logger"
)

type stubRouter struct {
	reply *models.Reply
	err   error
	seen  []*models.Envelope
}

func (s *stubRouter) Route(_ context.Context, env *models.Envelope) (*models.Reply, error) {
	s.seen = append(s.seen, env)
	return s.reply, s.err
}

type memoryRepo struct {
	appended []*models.TurnRecord
}

func (m *memoryRepo) MostRecent(_ context.Context, _ string) (*models.TurnRecord, error) {
	return nil, nil
}

func (m *memoryRepo) MostRecentWithMenu(_ context.Context, _ string) (*models.TurnRecord, error) {
	return nil, nil
}

func (m *memoryRepo) Append(_ context.Context, turn *models.TurnRecord) error {
	m.appended = append(m.appended, turn)
	return nil
}

func (m *memoryRepo) RecentBySender(_ context.Context, senderID string, limit int) ([]models.TurnRecord, error) {
	out := make([]models.TurnRecord, 0, len(m.appended))
	for _, t := range m.appended {
		if t.SenderID == senderID {
			out = append(out, *t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func newTestEngine(router service.Router, repo *memoryRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.DefaultConfig())
	recorder := service.NewTurnRecorder(repo, 24*time.Hour)
	safeNet := service.NewSafeNet(router, recorder, deadletter.NewFallback(log), nil, log)

	handler := NewWebhookHandler(safeNet, service.NewMutexSenderLocker(), ws.NewConsole(log), nil, log, "test")

	engine := gin.New()
	engine.POST("/inbound", handler.Inbound)
	engine.GET("/status", handler.Status)
	return engine
}

func postWebhook(t *testing.T, engine *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, "/inbound", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func textWebhook(body string) models.Webhook {
	return models.Webhook{Messages: []models.WebhookMessage{{
		From: "27820001111",
		Type: "text",
		Text: &models.WebhookText{Body: body},
	}}}
}

func TestInboundRoutesAndReturnsReply(t *testing.T) {
	router := &stubRouter{reply: models.NewReply("27820001111", "service", []string{"Here you go"})}
	repo := &memoryRepo{}
	engine := newTestEngine(router, repo)

	w := postWebhook(t, engine, textWebhook("find a clinic"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Here you go")
	require.Len(t, router.seen, 1)
	assert.Equal(t, "find a clinic", router.seen[0].RawContent)
	assert.Len(t, repo.appended, 1)
}

func TestInboundAcknowledgesStatusCallbacks(t *testing.T) {
	router := &stubRouter{}
	engine := newTestEngine(router, &memoryRepo{})

	w := postWebhook(t, engine, models.Webhook{
		Statuses: []models.WebhookStatus{{ID: "m-1", Status: "read"}},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, router.seen, "status callbacks must not reach the router")
}

func TestInboundReturnsOKForMalformedBody(t *testing.T) {
	engine := newTestEngine(&stubRouter{}, &memoryRepo{})

	req, _ := http.NewRequest(http.MethodPost, "/inbound", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInboundReturnsOKWhenRoutingFails(t *testing.T) {
	router := &stubRouter{err: assert.AnError}
	engine := newTestEngine(router, &memoryRepo{})

	w := postWebhook(t, engine, textWebhook("hello"))

	assert.Equal(t, http.StatusOK, w.Code)
	// the safe-net substitutes the restart prompt
	assert.Contains(t, w.Body.String(), "restart")
}

func TestStatusEndpoint(t *testing.T) {
	engine := newTestEngine(&stubRouter{}, &memoryRepo{})

	req, _ := http.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"up"`)
}

func TestRecentTurnsEndpoint(t *testing.T) {
	repo := &memoryRepo{appended: []*models.TurnRecord{{
		SenderID: "27820001111",
		Domain:   "service",
		Message:  "find a clinic",
	}}}
	admin := NewAdminHandler(repo)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/admin/turns/:sender", admin.RecentTurns)

	req, _ := http.NewRequest(http.MethodGet, "/admin/turns/27820001111", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "find a clinic")
}

func TestRecentTurnsRejectsBadLimit(t *testing.T) {
	admin := NewAdminHandler(&memoryRepo{})

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/admin/turns/:sender", admin.RecentTurns)

	req, _ := http.NewRequest(http.MethodGet, "/admin/turns/27820001111?limit=0", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
