package models

import (
	"strings"
)

// MessageType discriminates the shape of an inbound message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageLocation MessageType = "location"
	MessageMedia    MessageType = "media"
	MessagePayload  MessageType = "payload"
)

// mediaTypes are the channel message types that carry an opaque media id.
var mediaTypes = map[string]bool{
	"image":    true,
	"audio":    true,
	"voice":    true,
	"video":    true,
	"document": true,
	"sticker":  true,
}

// Envelope is the canonical form of one inbound message. It is built once
// per request and treated as immutable; menu re-interpretation produces a
// new value via WithPayload rather than mutating in place.
type Envelope struct {
	Type       MessageType
	SenderID   string
	RawContent string
	Normalized string
	// Payload carries a machine token when Type is MessagePayload.
	Payload string
	// Location fields, set when Type is MessageLocation.
	Latitude  float64
	Longitude float64
	// Media fields, set when Type is MessageMedia.
	MediaID  string
	MimeType string
	Caption  string
}

// Webhook is the raw inbound POST body of the delivery channel. A request
// carries either messages or status callbacks, never both.
type Webhook struct {
	Messages []WebhookMessage `json:"messages"`
	Statuses []WebhookStatus  `json:"statuses"`
}

// WebhookMessage is one raw channel message.
type WebhookMessage struct {
	From      string           `json:"from"`
	ID        string           `json:"id"`
	Timestamp string           `json:"timestamp"`
	Type      string           `json:"type"`
	Text      *WebhookText     `json:"text,omitempty"`
	Location  *WebhookLocation `json:"location,omitempty"`
	Image     *WebhookMedia    `json:"image,omitempty"`
	Audio     *WebhookMedia    `json:"audio,omitempty"`
	Voice     *WebhookMedia    `json:"voice,omitempty"`
	Video     *WebhookMedia    `json:"video,omitempty"`
	Document  *WebhookMedia    `json:"document,omitempty"`
	Sticker   *WebhookMedia    `json:"sticker,omitempty"`
	Button    *WebhookButton   `json:"button,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// WebhookButton is a quick-reply button press; it carries the machine
// payload of the option the user tapped.
type WebhookButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// WebhookStatus is a delivery-status callback. These are acknowledged and
// otherwise ignored.
type WebhookStatus struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// Normalize converts a raw webhook body into an Envelope. The second return
// is false for ignorable input: status callbacks, empty bodies, or messages
// with no usable content. Pure, no side effects.
func Normalize(w *Webhook) (*Envelope, bool) {
	if w == nil || len(w.Messages) == 0 {
		return nil, false
	}

	msg := w.Messages[0]
	if msg.From == "" {
		return nil, false
	}

	env := &Envelope{SenderID: msg.From}

	switch {
	case msg.Type == "text" && msg.Text != nil:
		env.Type = MessageText
		env.RawContent = msg.Text.Body
		env.Normalized = normalizeText(msg.Text.Body)

	case msg.Type == "button" && msg.Button != nil:
		env.Type = MessagePayload
		env.RawContent = msg.Button.Text
		env.Normalized = normalizeText(msg.Button.Text)
		env.Payload = msg.Button.Payload

	case msg.Type == "location" && msg.Location != nil:
		env.Type = MessageLocation
		env.Latitude = msg.Location.Latitude
		env.Longitude = msg.Location.Longitude

	case mediaTypes[msg.Type]:
		media := msg.media()
		if media == nil {
			return nil, false
		}
		env.Type = MessageMedia
		env.MediaID = media.ID
		env.MimeType = media.MimeType
		env.Caption = media.Caption
		env.RawContent = media.Caption
		env.Normalized = normalizeText(media.Caption)

	default:
		return nil, false
	}

	return env, true
}

// NewTextEnvelope builds a plain text envelope outside the webhook path,
// used for synthetic senders such as the operator console.
func NewTextEnvelope(senderID, text string) *Envelope {
	return &Envelope{
		Type:       MessageText,
		SenderID:   senderID,
		RawContent: text,
		Normalized: normalizeText(text),
	}
}

// media returns whichever media block the message carries.
func (m *WebhookMessage) media() *WebhookMedia {
	for _, media := range []*WebhookMedia{m.Image, m.Audio, m.Voice, m.Video, m.Document, m.Sticker} {
		if media != nil {
			return media
		}
	}
	return nil
}

// WithPayload returns a copy of the envelope rewritten as a payload message
// carrying the given machine token. Used when free text or a numeric choice
// resolves against a remembered menu.
func (e *Envelope) WithPayload(payload string) *Envelope {
	clone := *e
	clone.Type = MessagePayload
	clone.Payload = payload
	return &clone
}

// IsMedia reports whether the envelope carries an opaque media reference.
func (e *Envelope) IsMedia() bool {
	return e.Type == MessageMedia
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
