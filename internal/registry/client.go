// Package registry is the HTTP client for the federal contractor and
// opportunity registry. Calls are serialized through one pacing limiter so
// every sync shares the same upstream quota.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"

	"golang.org/x/time/rate"
)

const (
	entitiesPath      = "/entity-information/v3/entities"
	opportunitiesPath = "/opportunities/v2/search"

	// MaxConsecutiveFailures aborts a code after this many transient errors in a row.
	MaxConsecutiveFailures = 3

	maxErrorBody = 2048
)

var (
	// ErrRateLimited means the registry kept rejecting calls for quota reasons.
	ErrRateLimited = errors.New("registry rate limited")
	// ErrTransient covers timeouts, network failures, 5xx and undecodable pages.
	ErrTransient = errors.New("registry transient failure")
	// ErrPermanent covers responses retrying cannot fix, such as a rejected API key.
	ErrPermanent = errors.New("registry permanent failure")
)

// Query selects one classification code inside a date window.
type Query struct {
	Code       string
	From       *time.Time
	To         *time.Time
	MaxRecords int
}

// Client is the HTTP client for the registry API.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	apiKey           string
	pageSize         int
	requestTimeout   time.Duration
	rateLimitBackoff time.Duration
	retryBackoff     time.Duration
	pace             *rate.Limiter
	callMu           sync.Mutex
	log              *logger.Logger
}

// New creates a registry client from configuration.
func New(cfg config.RegistryConfig, log *logger.Logger) *Client {
	interval := cfg.GetRegistryMinInterval()
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Client{
		httpClient:       &http.Client{},
		baseURL:          cfg.GetRegistryBaseURL(),
		apiKey:           cfg.GetRegistryAPIKey(),
		pageSize:         cfg.GetRegistryPageSize(),
		requestTimeout:   cfg.GetRegistryRequestTimeout(),
		rateLimitBackoff: cfg.GetRegistryRateLimitBackoff(),
		retryBackoff:     time.Second,
		pace:             rate.NewLimiter(limit, 1),
		log:              log,
	}
}

// Ping checks that the registry accepts the configured API key.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("size", "1")
	_, err := c.get(ctx, entitiesPath, params)
	return err
}

// get performs one paced, timed GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := c.pace.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	params.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrPermanent, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RegistryRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RegistryRequestsTotal.WithLabelValues(path, "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	metrics.RegistryRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Success - continue to read
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.Error("registry rejected credentials", "status", resp.StatusCode, "path", path)
		return nil, fmt.Errorf("%w: status %d: invalid API key", ErrPermanent, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Error("registry bad request", "status", resp.StatusCode, "path", path, "body", string(data))
		return nil, fmt.Errorf("%w: status %d: %s", ErrPermanent, resp.StatusCode, string(data))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}
	return body, nil
}

// decodePage splits a page into its total and the raw records under listKey.
func decodePage(body []byte, listKey string) (int, []json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, nil, fmt.Errorf("%w: decode page: %v", ErrTransient, err)
	}

	total := 0
	if raw, ok := envelope["totalRecords"]; ok {
		_ = json.Unmarshal(raw, &total)
	}

	var records []json.RawMessage
	if raw, ok := envelope[listKey]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &records); err != nil {
			return 0, nil, fmt.Errorf("%w: decode %s: %v", ErrTransient, listKey, err)
		}
	}
	return total, records, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
