// Package nlu is the client for the external NLU collaborator, which owns
// intent classification and the domain-scoped dialogue models.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"grassroot-chatbot/backend/conversation/models"
	"grassroot-chatbot/backend/pkg/logger"
	"grassroot-chatbot/backend/pkg/resilience"
)

// Intent is a classified intent with its confidence score.
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Entity is one extracted entity, e.g. a province mentioned in free text.
type Entity struct {
	Type  string `json:"entity"`
	Value string `json:"value"`
}

// Result is the structured outcome of one NLU parse.
type Result struct {
	Domain    string       `json:"domain"`
	Responses []string     `json:"responses"`
	Intent    Intent       `json:"intent"`
	Entities  []Entity     `json:"entities,omitempty"`
	Menu      *models.Menu `json:"menu,omitempty"`
	Action    string       `json:"action,omitempty"`
}

// HasResponses reports whether the parse produced any reply text.
func (r *Result) HasResponses() bool {
	return r != nil && len(r.Responses) > 0
}

// Entity returns the first extracted entity of the given type.
func (r *Result) Entity(entityType string) (string, bool) {
	for _, e := range r.Entities {
		if e.Type == entityType {
			return e.Value, true
		}
	}
	return "", false
}

// Client calls the NLU collaborator over HTTP. All calls are blocking
// request/response with a bounded timeout; retries belong to the caller's
// channel, never here.
type Client struct {
	client  *http.Client
	baseURL string
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("nlu"), log),
		log:     log,
	}
}

// Parse sends one message for interpretation, scoped to the active domain.
// An empty domain means the conversation is starting fresh and the NLU
// coordinator picks the domain itself.
func (c *Client) Parse(ctx context.Context, domain, message, userID string) (*Result, error) {
	endpoint := c.baseURL
	if domain != "" {
		endpoint += "/" + url.PathEscape(domain)
	}

	query := url.Values{}
	query.Set("message", message)
	query.Set("user_id", userID)

	var result Result
	err := c.breaker.Execute(func() error {
		return c.getJSON(ctx, endpoint+"?"+query.Encode(), &result)
	})
	if err != nil {
		return nil, fmt.Errorf("nlu parse: %w", err)
	}
	c.log.Debug("nlu parse complete",
		"domain", result.Domain,
		"intent", result.Intent.Name,
		"confidence", result.Intent.Confidence,
	)
	return &result, nil
}

// ExtractProvince runs the dedicated province extraction model over free
// text. Used when the platform is waiting for a location-class answer.
func (c *Client) ExtractProvince(ctx context.Context, text string) (*Result, error) {
	query := url.Values{}
	query.Set("message", text)

	var result Result
	err := c.breaker.Execute(func() error {
		return c.getJSON(ctx, c.baseURL+"/province?"+query.Encode(), &result)
	})
	if err != nil {
		return nil, fmt.Errorf("nlu province extraction: %w", err)
	}
	return &result, nil
}

// Reset tells the NLU collaborator to drop whatever dialogue state it
// remembers for the user. Failure here is logged, not fatal: the restart
// reply must still go out.
func (c *Client) Reset(ctx context.Context, userID string) {
	query := url.Values{}
	query.Set("user_id", userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reset?"+query.Encode(), nil)
	if err != nil {
		c.log.LogError(err, "nlu reset request build failed", "user_id", userID)
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.LogError(err, "nlu reset failed", "user_id", userID)
		return
	}
	resp.Body.Close()
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
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
