package service

import (
	"context"
	"strings"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/conversation/repository"
	"grassroot-chatbot/backend/nlu"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/platform"
	"grassroot-chatbot/backend/shared/observability"
)

// RouterConfig carries the named routing thresholds and tables. They are
// configuration, not constants: deployments tune them without a rebuild.
type RouterConfig struct {
	RestartKeyword     string
	RestartConfidence  float64
	MenuMatchThreshold float64
	PayloadDomains     map[string]string
	TriggerPhrases     map[string]string
}

// DialogueRouter turns one inbound envelope plus the sender's prior turn
// into exactly one reply. Routing is a strict priority chain: the first
// branch that produces a reply wins and everything after it is skipped.
type DialogueRouter struct {
	repo     repository.TurnRepository
	nlu      NLUService
	platform PlatformService
	users    UserResolver
	flow     *FlowContinuer
	menus    *MenuMatcher
	cfg      RouterConfig
	metrics  *observability.Metrics
	log      *logger.Logger
	routes   []namedRoute
}

type routeHandler func(ctx context.Context, t *turn) (*models.Reply, error)

// namedRoute is one guard/handler pair in the priority chain. A nil reply
// with nil error means "not mine, try the next branch".
type namedRoute struct {
	name   string
	handle routeHandler
}

func NewDialogueRouter(
	repo repository.TurnRepository,
	nluClient NLUService,
	platformClient PlatformService,
	users UserResolver,
	cfg RouterConfig,
	metrics *observability.Metrics,
	log *logger.Logger,
) *DialogueRouter {
	menus := NewMenuMatcher(cfg.MenuMatchThreshold)
	r := &DialogueRouter{
		repo:     repo,
		nlu:      nluClient,
		platform: platformClient,
		users:    users,
		flow:     NewFlowContinuer(platformClient, nluClient, menus, log),
		menus:    menus,
		cfg:      cfg,
		metrics:  metrics,
		log:      log,
	}
	// precedence is load-bearing: restart must beat an active platform
	// flow so users can always exit, and menu re-interpretation must run
	// before any branch that reads the envelope payload
	r.routes = []namedRoute{
		{"restart", r.routeRestart},
		{"menu_reinterpret", r.routeMenuReinterpret},
		{"opening_dispatch", r.routeOpeningDispatch},
		{"platform_continue", r.routePlatformContinue},
		{"nlu_fallback", r.routeNLUFallback},
	}
	return r
}

// Route runs one full turn: resolves identity and history, walks the
// priority chain, and returns the reply of the first matching branch.
func (r *DialogueRouter) Route(ctx context.Context, env *models.Envelope) (*models.Reply, error) {
	userID, err := r.users.FetchUserID(ctx, env.SenderID)
	if err != nil {
		return nil, err
	}

	state, err := r.loadState(ctx, env.SenderID, userID)
	if err != nil {
		return nil, err
	}

	t := &turn{state: state, envelope: env}
	for _, route := range r.routes {
		reply, err := route.handle(ctx, t)
		if err != nil {
			return nil, err
		}
		if reply != nil {
			r.metrics.RouteMatched(ctx, route.name)
			r.log.Info("turn routed",
				"route", route.name,
				"domain", reply.Domain,
				"sender_id", env.SenderID,
			)
			return reply, nil
		}
	}
	// every chain ends in the NLU fallback, so this is unreachable unless
	// a handler misbehaves; the safe-net treats it as an anomaly
	return nil, nil
}

// loadState reconstructs the conversation from the turn log.
func (r *DialogueRouter) loadState(ctx context.Context, senderID, userID string) (*ConversationState, error) {
	prior, err := r.repo.MostRecent(ctx, senderID)
	if err != nil {
		return nil, err
	}
	menuTurn := prior
	if prior != nil && !prior.HasMenu() {
		menuTurn, err = r.repo.MostRecentWithMenu(ctx, senderID)
		if err != nil {
			return nil, err
		}
	}
	return &ConversationState{UserID: userID, Prior: prior, MenuTurn: menuTurn}, nil
}

// routeRestart lets the user exit whatever is in progress: a literal
// restart keyword, or an NLU-classified restart intent above the
// configured confidence.
func (r *DialogueRouter) routeRestart(ctx context.Context, t *turn) (*models.Reply, error) {
	if t.envelope.Type != models.MessageText {
		return nil, nil
	}

	if strings.EqualFold(strings.TrimSpace(t.envelope.RawContent), r.cfg.RestartKeyword) {
		r.nlu.Reset(ctx, t.state.UserID)
		return models.RestartReply(t.envelope.SenderID), nil
	}

	result, err := r.parseNLU(ctx, t, t.state.ActiveDomain(), t.envelope.RawContent)
	if err != nil {
		return nil, err
	}
	if result.Intent.Name == models.DomainRestart && result.Intent.Confidence >= r.cfg.RestartConfidence {
		r.nlu.Reset(ctx, t.state.UserID)
		return models.RestartReply(t.envelope.SenderID), nil
	}
	return nil, nil
}

// routeMenuReinterpret rewrites free text that answers a remembered menu
// into a payload envelope. Never terminal: on a miss the envelope passes
// through unchanged, which is not an error.
func (r *DialogueRouter) routeMenuReinterpret(_ context.Context, t *turn) (*models.Reply, error) {
	menuTurn := t.state.MenuTurn
	if !menuTurn.HasMenu() || t.envelope.Type != models.MessageText {
		return nil, nil
	}

	payload, ok := r.menus.Resolve(t.envelope.RawContent, menuTurn.MenuPayload, menuTurn.MenuText)
	if !ok {
		if r.menus.IsNumericChoice(t.envelope.RawContent) {
			// numeric but out of range: malformed selection state, log
			// and let the chain continue
			r.log.Warn("menu selection out of range",
				"sender_id", t.envelope.SenderID,
				"options", len(menuTurn.MenuPayload),
			)
		}
		return nil, nil
	}

	r.log.Debug("menu selection resolved", "payload", payload)
	t.envelope = t.envelope.WithPayload(payload)
	return nil, nil
}

// routeOpeningDispatch resolves a target domain at the start of a
// conversation: explicit payload first, then a configured trigger phrase,
// then a narrow join-phrase lookup on the platform.
func (r *DialogueRouter) routeOpeningDispatch(ctx context.Context, t *turn) (*models.Reply, error) {
	if !t.state.AtOpening() {
		return nil, nil
	}
	env := t.envelope

	if env.Type == models.MessagePayload && env.Payload != "" {
		if domain, ok := r.cfg.PayloadDomains[strings.ToLower(env.Payload)]; ok {
			return models.DomainOpeningReply(env.SenderID, domain), nil
		}
	}

	if env.Type == models.MessageText {
		if domain, ok := r.cfg.TriggerPhrases[env.Normalized]; ok {
			return models.DomainOpeningReply(env.SenderID, domain), nil
		}

		if env.RawContent != "" {
			result, err := r.platform.PhraseSearch(ctx, env.RawContent, t.state.UserID, false)
			if err != nil {
				return nil, err
			}
			if result == nil {
				result, err = r.broadSearchOnJoinIntent(ctx, t)
				if err != nil {
					return nil, err
				}
			}
			if result != nil {
				return searchResultReply(env.SenderID, result), nil
			}
		}
	}
	return nil, nil
}

// broadSearchOnJoinIntent retries the phrase search broadly when the NLU
// already classified the message as a join attempt. Uses the memoized parse
// only; an opening without a restart check never triggers one here.
func (r *DialogueRouter) broadSearchOnJoinIntent(ctx context.Context, t *turn) (*platform.SearchResult, error) {
	result := t.nluResult
	if result == nil || result.Intent.Name != "join" {
		return nil, nil
	}
	phrase := t.envelope.RawContent
	if len(result.Entities) > 0 {
		phrase = result.Entities[0].Value
	}
	return r.platform.PhraseSearch(ctx, phrase, t.state.UserID, true)
}

// routePlatformContinue forwards the message into an in-progress entity
// flow. An empty outcome is an anomaly worth logging but the turn goes on
// to the NLU fallback rather than dying here.
func (r *DialogueRouter) routePlatformContinue(ctx context.Context, t *turn) (*models.Reply, error) {
	prior := t.state.Prior
	if prior == nil || prior.Domain != models.DomainPlatform {
		return nil, nil
	}
	if _, hasEntity := prior.EntityRef(); !hasEntity && !prior.HasMenu() {
		return nil, nil
	}

	reply, err := r.flow.Continue(ctx, t)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		r.log.Warn("platform flow produced no reply, falling through",
			"sender_id", t.envelope.SenderID,
			"entity", prior.Entity,
		)
	}
	return reply, nil
}

// routeNLUFallback is the terminal branch: forward the (possibly reshaped)
// message to the NLU scoped to the active domain and convert the result.
func (r *DialogueRouter) routeNLUFallback(ctx context.Context, t *turn) (*models.Reply, error) {
	domain := t.state.ActiveDomain()
	message := t.envelope.RawContent
	if t.envelope.Type == models.MessagePayload && t.envelope.Payload != "" {
		message = t.envelope.Payload
	}

	result, err := r.parseNLU(ctx, t, domain, message)
	if err != nil {
		return nil, err
	}

	sender := t.envelope.SenderID
	if !result.HasResponses() {
		// no text came back: substitute the domain's canned opening,
		// or the canonical opening when already there (no recursion)
		if domain == "" || result.Domain == "" || result.Domain == models.DomainOpening {
			return models.OpeningReply(sender), nil
		}
		return models.DomainOpeningReply(sender, result.Domain), nil
	}

	replyDomain := result.Domain
	if replyDomain == "" {
		replyDomain = models.DomainOpening
	}
	reply := models.NewReply(sender, replyDomain, result.Responses)
	if result.Menu.Len() > 0 {
		reply.MenuPayload = result.Menu.Payloads
		reply.MenuText = result.Menu.Labels
	}
	return reply, nil
}

// parseNLU performs at most one NLU call per distinct (domain, message)
// within a turn; the restart check and the fallback share the result when
// nothing reshaped the envelope in between.
func (r *DialogueRouter) parseNLU(ctx context.Context, t *turn, domain, message string) (*nlu.Result, error) {
	if t.nluResult != nil && t.nluDomain == domain && t.nluMessage == message {
		return t.nluResult, nil
	}
	result, err := r.nlu.Parse(ctx, domain, message, t.state.UserID)
	if err != nil {
		return nil, err
	}
	t.nluResult, t.nluDomain, t.nluMessage = result, domain, message
	return result, nil
}
