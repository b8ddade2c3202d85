// Package users resolves channel sender identities (msisdns) to platform
// user ids.
package users

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"grassroot-chatbot/backend/pkg/cache"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/pkg/resilience"
)

// Client fetches platform user ids by phone number. Lookups are cached
// in-process: the mapping is stable and this sits on the hot path of every
// inbound message.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	cache   *cache.Cache
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, c *cache.Cache, log *logger.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		cache:   c,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("users"), log),
		log:     log,
	}
}

// FetchUserID resolves a phone number to a platform user id, creating the
// user on the platform side if needed.
func (c *Client) FetchUserID(ctx context.Context, msisdn string) (string, error) {
	if cached, found := c.cache.Get("user:" + msisdn); found {
		if id, ok := cached.(string); ok {
			return id, nil
		}
	}

	query := url.Values{}
	query.Set("msisdn", msisdn)

	var userID string
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/id?"+query.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		userID = strings.TrimSpace(string(body))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("user id lookup: %w", err)
	}
	if userID == "" {
		return "", fmt.Errorf("user id lookup: empty id for msisdn")
	}

	c.cache.Set("user:"+msisdn, userID)
	return userID, nil
}
