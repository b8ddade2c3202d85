// Package platform is the client for the core platform collaborator, which
// owns business entities (groups, campaigns, tasks) and their join and
// response workflows.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/pkg/resilience"
)

const (
	phraseSearchPath  = "/phrase/search"
	entitySelectPath  = "/entity/select"
	entityRespondPath = "/entity/respond"
)

// Client calls the platform collaborator over HTTP with bearer auth.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("platform"), log),
		log:     log,
	}
}

// PhraseSearch looks a phrase up against joinable entities. A broad search
// relaxes matching; it is used as a second pass when the NLU saw a join
// intent but the narrow search found nothing.
func (c *Client) PhraseSearch(ctx context.Context, phrase, userID string, broad bool) (*SearchResult, error) {
	query := url.Values{}
	query.Set("phrase", phrase)
	query.Set("userId", userID)
	query.Set("broadSearch", strconv.FormatBool(broad))

	var result SearchResult
	err := c.breaker.Execute(func() error {
		return c.postJSON(ctx, c.baseURL+phraseSearchPath+"?"+query.Encode(), nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("platform phrase search: %w", err)
	}
	if !result.Found() {
		c.log.Debug("phrase search found nothing", "broad", broad)
		return nil, nil
	}
	return &result, nil
}

// SelectEntity commits the user's pick of one entity from an offered set.
func (c *Client) SelectEntity(ctx context.Context, ref models.EntityRef, userID string) (*SearchResult, error) {
	query := url.Values{}
	query.Set("userId", userID)

	endpoint := fmt.Sprintf("%s%s/%s/%s?%s",
		c.baseURL, entitySelectPath, url.PathEscape(ref.Type), url.PathEscape(ref.UID), query.Encode())

	var result SearchResult
	err := c.breaker.Execute(func() error {
		return c.postJSON(ctx, endpoint, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("platform entity select: %w", err)
	}
	if !result.Found() {
		return nil, nil
	}
	return &result, nil
}

// RespondToEntity forwards the user's answer in an in-progress entity flow
// and returns the platform's next step.
func (c *Client) RespondToEntity(ctx context.Context, ref models.EntityRef, userID string, reply *EntityReply) (*EntityResponse, error) {
	query := url.Values{}
	query.Set("userId", userID)

	endpoint := fmt.Sprintf("%s%s/%s/%s?%s",
		c.baseURL, entityRespondPath, url.PathEscape(ref.Type), url.PathEscape(ref.UID), query.Encode())

	var result EntityResponse
	err := c.breaker.Execute(func() error {
		return c.postJSON(ctx, endpoint, reply, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("platform entity respond: %w", err)
	}
	return &result, nil
}

func (c *Client) postJSON(ctx context.Context, rawURL string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
