package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/nlu"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/platform"
)

// fakeTurnRepo serves a canned prior turn and records appends.
type fakeTurnRepo struct {
	prior    *models.TurnRecord
	menuTurn *models.TurnRecord
	appended []*models.TurnRecord
	failNext error
}

func (f *fakeTurnRepo) MostRecent(_ context.Context, _ string) (*models.TurnRecord, error) {
	return f.prior, nil
}

func (f *fakeTurnRepo) MostRecentWithMenu(_ context.Context, _ string) (*models.TurnRecord, error) {
	if f.menuTurn != nil {
		return f.menuTurn, nil
	}
	if f.prior.HasMenu() {
		return f.prior, nil
	}
	return nil, nil
}

func (f *fakeTurnRepo) Append(_ context.Context, turn *models.TurnRecord) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.appended = append(f.appended, turn)
	return nil
}

func (f *fakeTurnRepo) RecentBySender(_ context.Context, _ string, _ int) ([]models.TurnRecord, error) {
	return nil, nil
}

func (f *fakeTurnRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type fakeNLU struct {
	parseResult    *nlu.Result
	parseErr       error
	parseCalls     int
	lastDomain     string
	lastMessage    string
	provinceResult *nlu.Result
	provinceErr    error
	resetCalled    bool
}

func (f *fakeNLU) Parse(_ context.Context, domain, message, _ string) (*nlu.Result, error) {
	f.parseCalls++
	f.lastDomain = domain
	f.lastMessage = message
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	if f.parseResult != nil {
		return f.parseResult, nil
	}
	return &nlu.Result{}, nil
}

func (f *fakeNLU) ExtractProvince(_ context.Context, _ string) (*nlu.Result, error) {
	if f.provinceErr != nil {
		return nil, f.provinceErr
	}
	if f.provinceResult != nil {
		return f.provinceResult, nil
	}
	return &nlu.Result{}, nil
}

func (f *fakeNLU) Reset(_ context.Context, _ string) {
	f.resetCalled = true
}

type fakePlatform struct {
	searchResult  *platform.SearchResult
	broadResult   *platform.SearchResult
	searchPhrases []string
	broadCalled   bool

	selectResult *platform.SearchResult
	selectedRef  models.EntityRef

	respondResult *platform.EntityResponse
	respondedRef  models.EntityRef
	respondedWith *platform.EntityReply
}

func (f *fakePlatform) PhraseSearch(_ context.Context, phrase, _ string, broad bool) (*platform.SearchResult, error) {
	f.searchPhrases = append(f.searchPhrases, phrase)
	if broad {
		f.broadCalled = true
		return f.broadResult, nil
	}
	return f.searchResult, nil
}

func (f *fakePlatform) SelectEntity(_ context.Context, ref models.EntityRef, _ string) (*platform.SearchResult, error) {
	f.selectedRef = ref
	return f.selectResult, nil
}

func (f *fakePlatform) RespondToEntity(_ context.Context, ref models.EntityRef, _ string, reply *platform.EntityReply) (*platform.EntityResponse, error) {
	f.respondedRef = ref
	f.respondedWith = reply
	return f.respondResult, nil
}

type fakeUsers struct{}

func (fakeUsers) FetchUserID(_ context.Context, _ string) (string, error) {
	return "user-1", nil
}

func testRouterConfig() RouterConfig {
	return RouterConfig{
		RestartKeyword:     "restart",
		RestartConfidence:  0.5,
		MenuMatchThreshold: 0.6,
		PayloadDomains: map[string]string{
			"find_services":  "service",
			"find_knowledge": "knowledge",
			"take_action":    "action",
		},
		TriggerPhrases: map[string]string{"izwi lami": "service"},
	}
}

func newTestRouter(repo *fakeTurnRepo, n *fakeNLU, p *fakePlatform) *DialogueRouter {
	log := logger.New(logger.DefaultConfig())
	return NewDialogueRouter(repo, n, p, fakeUsers{}, testRouterConfig(), nil, log)
}

func textEnvelope(body string) *models.Envelope {
	return &models.Envelope{
		Type:       models.MessageText,
		SenderID:   "27820001111",
		RawContent: body,
		Normalized: normalizedForTest(body),
	}
}

func normalizedForTest(s string) string {
	env, _ := models.Normalize(&models.Webhook{Messages: []models.WebhookMessage{{
		From: "x", Type: "text", Text: &models.WebhookText{Body: s},
	}}})
	return env.Normalized
}

func platformTurn(entity string, payloads, labels []string) *models.TurnRecord {
	return &models.TurnRecord{
		SenderID:    "27820001111",
		Timestamp:   time.Now(),
		Domain:      models.DomainPlatform,
		Entity:      entity,
		MenuPayload: payloads,
		MenuText:    labels,
		HasMenuFlag: len(payloads) > 0,
	}
}

func TestRouteRestartKeywordBeatsActiveFlow(t *testing.T) {
	repo := &fakeTurnRepo{prior: platformTurn("mtg::1", nil, nil)}
	n := &fakeNLU{}
	router := newTestRouter(repo, n, &fakePlatform{})

	reply, err := router.Route(context.Background(), textEnvelope(" RESTART "))
	require.NoError(t, err)
	assert.Equal(t, models.DomainRestart, reply.Domain)
	assert.True(t, reply.Entity.IsZero())
	assert.True(t, n.resetCalled)
	assert.Zero(t, n.parseCalls, "keyword match must not need the NLU")
}

func TestRouteRestartIntentAboveConfidence(t *testing.T) {
	repo := &fakeTurnRepo{prior: platformTurn("mtg::1", nil, nil)}
	n := &fakeNLU{parseResult: &nlu.Result{Intent: nlu.Intent{Name: "restart", Confidence: 0.92}}}
	router := newTestRouter(repo, n, &fakePlatform{})

	reply, err := router.Route(context.Background(), textEnvelope("start over please"))
	require.NoError(t, err)
	assert.Equal(t, models.DomainRestart, reply.Domain)
	assert.True(t, n.resetCalled)
}

func TestRouteRestartIntentBelowConfidenceFallsThrough(t *testing.T) {
	repo := &fakeTurnRepo{}
	n := &fakeNLU{parseResult: &nlu.Result{
		Domain:    "service",
		Intent:    nlu.Intent{Name: "restart", Confidence: 0.2},
		Responses: []string{"What kind of service?"},
	}}
	router := newTestRouter(repo, n, &fakePlatform{})

	reply, err := router.Route(context.Background(), textEnvelope("something else"))
	require.NoError(t, err)
	assert.False(t, n.resetCalled)
	assert.Equal(t, "service", reply.Domain)
	assert.Equal(t, []string{"What kind of service?"}, reply.Messages)
}

func TestRouteParsesNLUOncePerTurn(t *testing.T) {
	repo := &fakeTurnRepo{}
	n := &fakeNLU{parseResult: &nlu.Result{
		Domain:    "knowledge",
		Responses: []string{"Here is what I found."},
	}}
	router := newTestRouter(repo, n, &fakePlatform{})

	_, err := router.Route(context.Background(), textEnvelope("tell me about grants"))
	require.NoError(t, err)
	assert.Equal(t, 1, n.parseCalls, "restart check and fallback must share one parse")
}

func TestRouteOpeningPayloadDispatch(t *testing.T) {
	repo := &fakeTurnRepo{}
	router := newTestRouter(repo, &fakeNLU{}, &fakePlatform{})

	env := &models.Envelope{
		Type:     models.MessagePayload,
		SenderID: "27820001111",
		Payload:  "find_services",
	}
	reply, err := router.Route(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "service", reply.Domain)
	assert.NotEmpty(t, reply.Messages)
}

func TestRouteOpeningTriggerPhrase(t *testing.T) {
	repo := &fakeTurnRepo{}
	router := newTestRouter(repo, &fakeNLU{}, &fakePlatform{})

	reply, err := router.Route(context.Background(), textEnvelope("Izwi Lami"))
	require.NoError(t, err)
	assert.Equal(t, "service", reply.Domain)
}

func TestRouteOpeningPhraseSearchFindsEntity(t *testing.T) {
	repo := &fakeTurnRepo{}
	p := &fakePlatform{searchResult: &platform.SearchResult{
		EntityFound:      true,
		EntityType:       "grp",
		EntityUID:        "g-77",
		ResponseMessages: []string{"Found your group. Join?"},
	}}
	router := newTestRouter(repo, &fakeNLU{}, p)

	reply, err := router.Route(context.Background(), textEnvelope("gardening for mamelodi"))
	require.NoError(t, err)
	assert.Equal(t, models.DomainPlatform, reply.Domain)
	assert.Equal(t, models.EntityRef{Type: "grp", UID: "g-77"}, reply.Entity)
}

func TestRouteOpeningBroadRetryOnJoinIntent(t *testing.T) {
	repo := &fakeTurnRepo{}
	n := &fakeNLU{parseResult: &nlu.Result{
		Intent:   nlu.Intent{Name: "join", Confidence: 0.8},
		Entities: []nlu.Entity{{Type: "entity", Value: "gardening group"}},
	}}
	p := &fakePlatform{broadResult: &platform.SearchResult{
		EntityFound:      true,
		EntityType:       "grp",
		EntityUID:        "g-12",
		ResponseMessages: []string{"Is this the one?"},
	}}
	router := newTestRouter(repo, n, p)

	reply, err := router.Route(context.Background(), textEnvelope("i want to join the gardening group"))
	require.NoError(t, err)
	assert.True(t, p.broadCalled)
	assert.Equal(t, "gardening group", p.searchPhrases[len(p.searchPhrases)-1])
	assert.Equal(t, models.EntityRef{Type: "grp", UID: "g-12"}, reply.Entity)
}

func TestRouteMenuSelectionEntersPlatformFlow(t *testing.T) {
	repo := &fakeTurnRepo{prior: platformTurn("",
		[]string{"grp::a", "grp::b"},
		[]string{"Group A", "Group B"},
	)}
	p := &fakePlatform{selectResult: &platform.SearchResult{
		EntityFound:      true,
		EntityType:       "grp",
		EntityUID:        "b",
		ResponseMessages: []string{"Group B it is. Want to join?"},
	}}
	router := newTestRouter(repo, &fakeNLU{}, p)

	reply, err := router.Route(context.Background(), textEnvelope("2"))
	require.NoError(t, err)
	assert.Equal(t, models.EntityRef{Type: "grp", UID: "b"}, p.selectedRef)
	assert.Equal(t, models.EntityRef{Type: "grp", UID: "b"}, reply.Entity)
}

func TestRoutePlatformContinuationProvinceAnswer(t *testing.T) {
	prior := platformTurn("mtg::1", nil, nil)
	prior.AuxProperties = map[string]string{platform.AuxRequestDataType: platform.RequestProvince}
	repo := &fakeTurnRepo{prior: prior}
	n := &fakeNLU{provinceResult: &nlu.Result{
		Intent:   nlu.Intent{Name: "select", Confidence: 0.9},
		Entities: []nlu.Entity{{Type: "province", Value: "Gauteng"}},
	}}
	p := &fakePlatform{respondResult: &platform.EntityResponse{
		Messages:   []string{"Thanks, noted."},
		EntityType: "mtg",
		EntityUID:  "1",
	}}
	router := newTestRouter(repo, n, p)

	reply, err := router.Route(context.Background(), textEnvelope("gauteng"))
	require.NoError(t, err)
	assert.Equal(t, "ZA_GP", p.respondedWith.UserMessage)
	assert.Equal(t, models.EntityRef{Type: "mtg", UID: "1"}, reply.Entity)
}

func TestRoutePlatformContinuationSkipToken(t *testing.T) {
	repo := &fakeTurnRepo{prior: platformTurn("mtg::1", nil, nil)}
	p := &fakePlatform{respondResult: &platform.EntityResponse{
		Messages: []string{"Skipped. Meeting is set."},
	}}
	router := newTestRouter(repo, &fakeNLU{}, p)

	reply, err := router.Route(context.Background(), textEnvelope("0"))
	require.NoError(t, err)
	assert.Equal(t, platform.SkipPayload, p.respondedWith.MenuOptionPayload)
	// flow finished, the entity stops being carried forward
	assert.True(t, reply.Entity.IsZero())
}

func TestRoutePlatformContinuationLocationPin(t *testing.T) {
	repo := &fakeTurnRepo{prior: platformTurn("svc::req-9", nil, nil)}
	p := &fakePlatform{respondResult: &platform.EntityResponse{
		Messages: []string{"Closest clinic is 2km away."},
	}}
	router := newTestRouter(repo, &fakeNLU{}, p)

	env := &models.Envelope{
		Type:      models.MessageLocation,
		SenderID:  "27820001111",
		Latitude:  -26.2,
		Longitude: 28.0,
	}
	_, err := router.Route(context.Background(), env)
	require.NoError(t, err)
	require.NotNil(t, p.respondedWith.Location)
	assert.Equal(t, -26.2, p.respondedWith.Location.Latitude)
}

func TestRouteNLUFallbackScopedToActiveDomain(t *testing.T) {
	repo := &fakeTurnRepo{prior: &models.TurnRecord{
		SenderID:  "27820001111",
		Timestamp: time.Now(),
		Domain:    "knowledge",
	}}
	n := &fakeNLU{parseResult: &nlu.Result{
		Domain:    "knowledge",
		Responses: []string{"A grant is..."},
	}}
	router := newTestRouter(repo, n, &fakePlatform{})

	reply, err := router.Route(context.Background(), textEnvelope("what is a grant"))
	require.NoError(t, err)
	assert.Equal(t, "knowledge", n.lastDomain)
	assert.Equal(t, []string{"A grant is..."}, reply.Messages)
}

func TestRouteUnrelatedTextWithPendingMenuFallsToNLU(t *testing.T) {
	repo := &fakeTurnRepo{prior: &models.TurnRecord{
		SenderID:    "27820001111",
		Timestamp:   time.Now(),
		Domain:      "knowledge",
		MenuPayload: []string{"svc::clinic", "svc::shelter"},
		MenuText:    []string{"24-hour clinic", "Shelter"},
		HasMenuFlag: true,
	}}
	n := &fakeNLU{parseResult: &nlu.Result{
		Domain:    "knowledge",
		Responses: []string{"Let me look that up."},
	}}
	p := &fakePlatform{}
	router := newTestRouter(repo, n, p)

	reply, err := router.Route(context.Background(), textEnvelope("what is the weather tomorrow"))
	require.NoError(t, err)
	assert.Equal(t, "knowledge", reply.Domain)
	assert.Equal(t, []string{"Let me look that up."}, reply.Messages)
	assert.Equal(t, "what is the weather tomorrow", n.lastMessage,
		"input that resolves no menu option must reach the NLU as plain text")
	assert.True(t, p.selectedRef.IsZero())
}

func TestRouteFallbackWithoutResponsesServesOpening(t *testing.T) {
	repo := &fakeTurnRepo{}
	router := newTestRouter(repo, &fakeNLU{}, &fakePlatform{})

	reply, err := router.Route(context.Background(), textEnvelope("mmmm"))
	require.NoError(t, err)
	assert.Equal(t, models.DomainOpening, reply.Domain)
	assert.True(t, reply.HasMenu())
	assert.Equal(t, len(reply.MenuPayload), len(reply.MenuText))
}
