package service

import (
	"context"
	"strings"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/platform"
)

// FlowContinuer carries an in-progress platform entity flow forward by one
// exchange. It shapes the inbound message into the form the platform
// expects for the data it last asked for.
type FlowContinuer struct {
	platform PlatformService
	nlu      NLUService
	menus    *MenuMatcher
	log      *logger.Logger
}

func NewFlowContinuer(platformClient PlatformService, nluClient NLUService, menus *MenuMatcher, log *logger.Logger) *FlowContinuer {
	return &FlowContinuer{platform: platformClient, nlu: nluClient, menus: menus, log: log}
}

// Continue resumes the flow recorded in the prior turn. A nil reply means
// the flow could not consume this message and the chain should move on.
func (f *FlowContinuer) Continue(ctx context.Context, t *turn) (*models.Reply, error) {
	prior := t.state.Prior

	if ref, ok := prior.EntityRef(); ok {
		return f.respondKnownEntity(ctx, t, ref)
	}

	// no entity yet: a payload here picks one from the offered menu
	if t.envelope.Type == models.MessagePayload {
		ref, err := models.ParseEntityRef(t.envelope.Payload)
		if err != nil {
			f.log.Warn("payload is not an entity reference", "payload", t.envelope.Payload)
			return nil, nil
		}
		result, err := f.platform.SelectEntity(ctx, ref, t.state.UserID)
		if err != nil {
			return nil, err
		}
		return searchResultReply(t.envelope.SenderID, result), nil
	}
	return nil, nil
}

func (f *FlowContinuer) respondKnownEntity(ctx context.Context, t *turn, ref models.EntityRef) (*models.Reply, error) {
	prior := t.state.Prior
	env := t.envelope
	entityReply := platform.EntityReply{AuxProperties: prior.AuxProperties}

	switch env.Type {
	case models.MessageLocation:
		entityReply.Location = &platform.Location{Latitude: env.Latitude, Longitude: env.Longitude}
	case models.MessageMedia:
		// media cannot answer a prompt; re-send the first offered option so
		// the flow repeats its question instead of stalling
		if prior.HasMenu() {
			entityReply.MenuOptionPayload = prior.MenuPayload[0]
		}
	case models.MessagePayload:
		entityReply.MenuOptionPayload = env.Payload
	case models.MessageText:
		f.shapeTextReply(ctx, t, &entityReply)
	default:
		return nil, nil
	}

	resp, err := f.platform.RespondToEntity(ctx, ref, t.state.UserID, &entityReply)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return entityResponseReply(env.SenderID, resp), nil
}

// shapeTextReply decides how free text answers the flow's last prompt:
// the skip token, a coordinate-or-province answer to a location request,
// a menu selection, or plain text, in that order.
func (f *FlowContinuer) shapeTextReply(ctx context.Context, t *turn, entityReply *platform.EntityReply) {
	prior := t.state.Prior
	text := t.envelope.RawContent

	if strings.TrimSpace(text) == "0" {
		entityReply.MenuOptionPayload = platform.SkipPayload
		return
	}

	if platform.LocationRequested(prior.Aux(platform.AuxRequestDataType)) {
		entityReply.UserMessage = f.resolveLocation(ctx, text)
		return
	}

	if prior.HasMenu() {
		if len(prior.MenuPayload) == 1 {
			entityReply.MenuOptionPayload = prior.MenuPayload[0]
			return
		}
		if payload, ok := f.menus.Resolve(text, prior.MenuPayload, prior.MenuText); ok {
			entityReply.MenuOptionPayload = payload
			return
		}
	}

	entityReply.UserMessage = text
}

// resolveLocation maps a textual location answer to a province code when
// the NLU recognizes one; otherwise the raw text goes through and the
// platform does its own geocoding. Extraction failure is not fatal.
func (f *FlowContinuer) resolveLocation(ctx context.Context, text string) string {
	result, err := f.nlu.ExtractProvince(ctx, text)
	if err != nil {
		f.log.Warn("province extraction failed, passing raw text", "error", err)
		return text
	}
	if result.Intent.Name != "select" {
		return text
	}
	province, ok := result.Entity("province")
	if !ok {
		return text
	}
	if code, ok := platform.ProvinceCodes[strings.ToLower(province)]; ok {
		return code
	}
	return text
}

// searchResultReply converts a platform search or selection outcome into
// a reply. Menus stay aligned: labels and payloads always come from the
// same source, even for a single candidate.
func searchResultReply(senderID string, result *platform.SearchResult) *models.Reply {
	if result == nil {
		return nil
	}
	reply := models.NewReply(senderID, models.DomainPlatform, result.ResponseMessages)

	switch {
	case result.EntityFound:
		reply.Entity = models.EntityRef{Type: result.EntityType, UID: result.EntityUID}
		if result.ResponseMenu.Len() > 0 {
			reply.MenuPayload = result.ResponseMenu.Payloads
			reply.MenuText = result.ResponseMenu.Labels
		}
	case result.PossibleEntities.Len() > 0:
		// a single candidate still goes out as a one-option menu so the
		// next turn resolves it the same way as any other selection
		reply.MenuPayload = result.PossibleEntities.Payloads
		reply.MenuText = result.PossibleEntities.Labels
	}

	if result.RequestDataType != "" && result.RequestDataType != platform.RequestNone {
		reply = reply.WithAux(platform.AuxRequestDataType, result.RequestDataType)
	}
	return reply
}

// entityResponseReply converts an in-flow platform response into a reply,
// carrying the entity forward only while the platform still names one.
func entityResponseReply(senderID string, resp *platform.EntityResponse) *models.Reply {
	reply := models.NewReply(senderID, models.DomainPlatform, resp.Messages)
	if resp.EntityType != "" && resp.EntityUID != "" {
		reply.Entity = models.EntityRef{Type: resp.EntityType, UID: resp.EntityUID}
	}
	if resp.Menu.Len() > 0 {
		reply.MenuPayload = resp.Menu.Payloads
		reply.MenuText = resp.Menu.Labels
	}
	if resp.RequestDataType != "" && resp.RequestDataType != platform.RequestNone {
		reply = reply.WithAux(platform.AuxRequestDataType, resp.RequestDataType)
	}
	for k, v := range resp.AuxProperties {
		reply = reply.WithAux(k, v)
	}
	return reply
}
