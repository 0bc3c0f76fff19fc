// Package crm implements the CentralStationCRM directory adapter.
package crm

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mailparser_server/core/port/out"
	"mailparser_server/pkg/apperr"
	"mailparser_server/pkg/cache"
	"mailparser_server/pkg/httputil"
	"mailparser_server/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// =============================================================================
// CentralStationCRM Client
// =============================================================================

const (
	maxResponseBytes = 4 << 20
	existsCacheTTL   = 10 * time.Minute
)

// headerVariants are the API key header spellings the CRM has accepted over
// time. A 401 or 403 moves on to the next one.
var headerVariants = []string{"X-apikey", "X-ApiKey"}

// Person is the create payload of the people endpoint.
type Person struct {
	Email     string
	FirstName string
	LastName  string
	Gender    string
}

// Client implements out.CRMDirectory against the CentralStationCRM REST API.
type Client struct {
	server  string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *cache.RedisCache
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBreaker routes every call through cb.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(cl *Client) { cl.breaker = cb }
}

// WithCache caches lookup results in Redis.
func WithCache(c *cache.RedisCache) Option {
	return func(cl *Client) { cl.cache = c }
}

func NewClient(server, apiKey string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		server: strings.TrimRight(strings.TrimSpace(server), "/"),
		apiKey: strings.TrimSpace(apiKey),
		http:   httputil.NewOptimizedClient(httputil.CRMClientConfig()),
		log:    log.With().Str("component", "crm").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPeople returns one page of people.
func (c *Client) ListPeople(ctx context.Context, perPage, page int) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("perpage", fmt.Sprint(perPage))
	q.Set("page", fmt.Sprint(page))

	var people []map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/people.json", q, &people); err != nil {
		return nil, err
	}
	return people, nil
}

// EmailExists reports whether a person with this email is in the CRM.
func (c *Client) EmailExists(ctx context.Context, email string) (bool, error) {
	return c.PersonExists(ctx, email, "", "")
}

// NameExists reports whether a person with this first and last name is in the CRM.
func (c *Client) NameExists(ctx context.Context, firstName, lastName string) (bool, error) {
	return c.PersonExists(ctx, "", firstName, lastName)
}

// PersonExists searches people by the non-empty fields. A 200 with a
// non-empty array means the person exists.
func (c *Client) PersonExists(ctx context.Context, email, firstName, lastName string) (bool, error) {
	q := url.Values{}
	if email != "" {
		q.Set("email", email)
	}
	if firstName != "" {
		q.Set("first_name", firstName)
	}
	if lastName != "" {
		q.Set("name", lastName)
	}
	if len(q) == 0 {
		return false, apperr.MissingField("email")
	}

	key := "exists:" + cacheKey(q.Encode())
	if c.cache != nil {
		var known bool
		if found, err := c.cache.GetJSON(ctx, key, &known); err == nil && found {
			return known, nil
		}
	}

	var matches []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/people/search", q, &matches); err != nil {
		return false, err
	}
	exists := len(matches) > 0

	if c.cache != nil {
		_ = c.cache.SetJSON(ctx, key, exists, existsCacheTTL)
	}
	return exists, nil
}

// CreatePerson creates a person and reports whether the CRM returned a record.
func (c *Client) CreatePerson(ctx context.Context, p Person) (bool, error) {
	q := url.Values{}
	q.Set("email", p.Email)
	q.Set("first_name", p.FirstName)
	q.Set("name", p.LastName)
	if p.Gender != "" {
		q.Set("gender", p.Gender)
	}

	var created map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/people", q, &created); err != nil {
		return false, err
	}
	return len(created) > 0, nil
}

// do sends the request with each header variant until one is accepted and
// decodes the JSON response into dest.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, dest any) error {
	body, err := resilience.Execute(c.breaker, func() ([]byte, error) {
		return c.send(ctx, method, path, query)
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return apperr.Unavailable("crm")
		}
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return apperr.ExternalError("crm", fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	endpoint := c.server + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastStatus int
	for _, header := range headerVariants {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		// Assigned directly so the spelling is sent as written.
		req.Header[header] = []string{c.apiKey}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, apperr.ExternalError("crm", fmt.Errorf("%s %s: %w", method, path, err))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			return nil, apperr.ExternalError("crm", err)
		}

		lastStatus = resp.StatusCode
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return bytes.TrimSpace(body), nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			c.log.Debug().Str("header", header).Int("status", resp.StatusCode).Msg("api key header rejected")
			continue
		default:
			return nil, apperr.ExternalError("crm", &httputil.StatusError{URL: path, StatusCode: resp.StatusCode})
		}
	}

	return nil, apperr.Unauthorized(fmt.Sprintf("crm rejected all %d api key headers (last status %d)", len(headerVariants), lastStatus))
}

func cacheKey(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

var _ out.CRMDirectory = (*Client)(nil)
