package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTextMessage(t *testing.T) {
	webhook := &Webhook{
		Messages: []WebhookMessage{{
			From: "27820001111",
			Type: "text",
			Text: &WebhookText{Body: "  Find a CLINIC  "},
		}},
	}

	env, ok := Normalize(webhook)
	require.True(t, ok)
	assert.Equal(t, MessageText, env.Type)
	assert.Equal(t, "27820001111", env.SenderID)
	assert.Equal(t, "  Find a CLINIC  ", env.RawContent)
	assert.Equal(t, "find a clinic", env.Normalized)
}

func TestNormalizeButtonBecomesPayload(t *testing.T) {
	webhook := &Webhook{
		Messages: []WebhookMessage{{
			From:   "27820001111",
			Type:   "button",
			Button: &WebhookButton{Payload: "find_services", Text: "Find a service near you"},
		}},
	}

	env, ok := Normalize(webhook)
	require.True(t, ok)
	assert.Equal(t, MessagePayload, env.Type)
	assert.Equal(t, "find_services", env.Payload)
	assert.Equal(t, "Find a service near you", env.RawContent)
}

func TestNormalizeLocation(t *testing.T) {
	webhook := &Webhook{
		Messages: []WebhookMessage{{
			From:     "27820001111",
			Type:     "location",
			Location: &WebhookLocation{Latitude: -26.2041, Longitude: 28.0473},
		}},
	}

	env, ok := Normalize(webhook)
	require.True(t, ok)
	assert.Equal(t, MessageLocation, env.Type)
	assert.Equal(t, -26.2041, env.Latitude)
	assert.Equal(t, 28.0473, env.Longitude)
}

func TestNormalizeMediaCarriesCaption(t *testing.T) {
	webhook := &Webhook{
		Messages: []WebhookMessage{{
			From:  "27820001111",
			Type:  "image",
			Image: &WebhookMedia{ID: "media-1", MimeType: "image/jpeg", Caption: "My broken pipe"},
		}},
	}

	env, ok := Normalize(webhook)
	require.True(t, ok)
	assert.True(t, env.IsMedia())
	assert.Equal(t, "media-1", env.MediaID)
	assert.Equal(t, "my broken pipe", env.Normalized)
}

func TestNormalizeDiscardsStatusCallbacks(t *testing.T) {
	webhook := &Webhook{
		Statuses: []WebhookStatus{{ID: "msg-1", Status: "delivered"}},
	}

	env, ok := Normalize(webhook)
	assert.False(t, ok)
	assert.Nil(t, env)
}

func TestNormalizeDiscardsUnusableMessages(t *testing.T) {
	cases := map[string]*Webhook{
		"nil body":      nil,
		"empty":         {},
		"no sender":     {Messages: []WebhookMessage{{Type: "text", Text: &WebhookText{Body: "hi"}}}},
		"unknown type":  {Messages: []WebhookMessage{{From: "27820001111", Type: "contacts"}}},
		"text no body":  {Messages: []WebhookMessage{{From: "27820001111", Type: "text"}}},
		"media no data": {Messages: []WebhookMessage{{From: "27820001111", Type: "video"}}},
	}

	for name, webhook := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Normalize(webhook)
			assert.False(t, ok)
		})
	}
}

func TestWithPayloadDoesNotMutateOriginal(t *testing.T) {
	env := &Envelope{Type: MessageText, SenderID: "27820001111", RawContent: "2"}

	reshaped := env.WithPayload("svc::shelter")

	assert.Equal(t, MessagePayload, reshaped.Type)
	assert.Equal(t, "svc::shelter", reshaped.Payload)
	assert.Equal(t, "2", reshaped.RawContent)
	assert.Equal(t, MessageText, env.Type)
	assert.Empty(t, env.Payload)
}
