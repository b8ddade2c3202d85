package deadletter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grassroot-chatbot/backend/pkg/logger"
)

func TestScrubRemovesCredentials(t *testing.T) {
	cases := map[string]string{
		"failed: Bearer abc123 rejected":                "failed: Bearer [redacted] rejected",
		"failed: Authorization: Bearer abc123 retrying": "failed: Authorization: Bearer [redacted] retrying",
		"post failed token=s3cr3t":                      "post failed token=[redacted]",
		"plain error, nothing sensitive":                "plain error, nothing sensitive",
	}

	for in, want := range cases {
		assert.Equal(t, want, Scrub(in))
	}
}

func TestFallbackPublisherNeverErrors(t *testing.T) {
	pub := NewFallback(logger.New(logger.DefaultConfig()))

	err := pub.Publish(context.Background(), FailedTurn{
		ID:        "f-1",
		SenderID:  "27820001111",
		Message:   "hello",
		Error:     "nlu unreachable",
		Timestamp: time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, pub.Close())
}
