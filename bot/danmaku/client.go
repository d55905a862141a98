package danmaku

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"danmakubot/bot"
)

// Client talks to the Misaka Danmaku control API. Every request carries
// the api_key query parameter.
type Client struct {
	httpClient *retryablehttp.Client
	breaker    *gobreaker.CircuitBreaker
	baseURL    string
	apiKey     string
	timeout    time.Duration
	logger     bot.Logger
}

// New returns a Danmaku control API client.
func New(baseURL, apiKey string, timeout time.Duration, logger bot.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		httpClient: retryablehttp.NewClient(),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		logger:     logger,
	}

	c.httpClient.RetryMax = 2
	c.httpClient.RetryWaitMin = 1 * time.Second
	c.httpClient.RetryWaitMax = 5 * time.Second
	c.httpClient.HTTPClient.Timeout = timeout
	c.httpClient.Logger = nil
	// Hand back the final 5xx response instead of swallowing it, so the
	// status and body reach the APIError below.
	c.httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	settings := gobreaker.Settings{
		Name:        "danmaku-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(settings)
	return c
}

// BaseURL returns the configured API base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) buildURL(endpoint string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	if strings.Contains(full, "?") {
		return full + "&" + query.Encode()
	}
	return full + "?" + query.Encode()
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, query url.Values, payload, out any) error {
	fullURL := c.buildURL(endpoint, query)

	if c.logger != nil {
		c.logger.Debug("danmaku: api call", "op", op, "method", method, "endpoint", endpoint)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, &APIError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
			}
			body = bytes.NewReader(raw)
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, body)
		if err != nil {
			return nil, &APIError{Op: op, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "DanmakuBot/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, c.classify(op, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, c.classify(op, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw)), Err: ErrBadStatus}
		}

		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return nil, &APIError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
			}
		}
		return nil, nil
	})
	return err
}

// classify maps transport errors onto the sentinel failure classes.
func (c *Client) classify(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &APIError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	default:
		return &APIError{Op: op, Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
}

// Search queries the library search endpoint by keyword.
func (c *Client) Search(ctx context.Context, keyword string) (*SearchResponse, error) {
	query := url.Values{}
	query.Set("keyword", keyword)

	var result SearchResponse
	if err := c.do(ctx, "search", http.MethodGet, "/search", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ImportDirect imports one result of a previous search.
func (c *Client) ImportDirect(ctx context.Context, req ImportDirectRequest) (*TaskRef, error) {
	var result TaskRef
	if err := c.do(ctx, "import direct", http.MethodPost, "/import/direct", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchEpisodes lists all episodes of one search result.
func (c *Client) SearchEpisodes(ctx context.Context, searchID string, resultIndex int) ([]SearchEpisode, error) {
	query := url.Values{}
	query.Set("searchId", searchID)
	query.Set("result_index", fmt.Sprintf("%d", resultIndex))

	var result []SearchEpisode
	if err := c.do(ctx, "search episodes", http.MethodGet, "/episodes", query, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ImportEdited imports a hand-picked episode subset of a search result.
func (c *Client) ImportEdited(ctx context.Context, req ImportEditedRequest) (*TaskRef, error) {
	var result TaskRef
	if err := c.do(ctx, "import edited", http.MethodPost, "/import/edited", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ImportAuto triggers a provider-side automatic import.
func (c *Client) ImportAuto(ctx context.Context, req ImportAutoRequest) error {
	return c.do(ctx, "import auto", http.MethodPost, "/import/auto", nil, req, nil)
}

// ImportURL imports danmaku for one episode from an external video URL.
func (c *Client) ImportURL(ctx context.Context, req ImportURLRequest) error {
	return c.do(ctx, "import url", http.MethodPost, "/import/url", nil, req, nil)
}

// Library lists all records of the media library.
func (c *Client) Library(ctx context.Context) ([]LibraryItem, error) {
	var result []LibraryItem
	if err := c.do(ctx, "library", http.MethodGet, "/library", nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Sources lists the danmaku sources of a library record.
func (c *Client) Sources(ctx context.Context, animeID int64) ([]Source, error) {
	var result []Source
	endpoint := fmt.Sprintf("/library/anime/%d/sources", animeID)
	if err := c.do(ctx, "sources", http.MethodGet, endpoint, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Episodes lists the episodes of a source.
func (c *Client) Episodes(ctx context.Context, sourceID int64) ([]Episode, error) {
	var result []Episode
	endpoint := fmt.Sprintf("/library/source/%d/episodes", sourceID)
	if err := c.do(ctx, "episodes", http.MethodGet, endpoint, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshSource re-fetches danmaku for a whole source.
func (c *Client) RefreshSource(ctx context.Context, sourceID int64) error {
	payload := map[string]int64{"sourceId": sourceID}
	return c.do(ctx, "refresh source", http.MethodPost, "/refresh", nil, payload, nil)
}

// RefreshEpisode re-fetches danmaku for a single episode.
func (c *Client) RefreshEpisode(ctx context.Context, episodeID int64) error {
	endpoint := fmt.Sprintf("/library/episode/%d/refresh", episodeID)
	return c.do(ctx, "refresh episode", http.MethodPost, endpoint, nil, nil, nil)
}

// Tokens lists the API access tokens.
func (c *Client) Tokens(ctx context.Context) ([]Token, error) {
	var result []Token
	if err := c.do(ctx, "tokens", http.MethodGet, "/tokens", nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateToken creates a token with the given validity period.
func (c *Client) CreateToken(ctx context.Context, name, validityPeriod string) (*Token, error) {
	payload := map[string]string{"name": name, "validityPeriod": validityPeriod}
	var result Token
	if err := c.do(ctx, "create token", http.MethodPost, "/tokens", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ToggleToken flips a token between enabled and disabled.
func (c *Client) ToggleToken(ctx context.Context, tokenID string) error {
	endpoint := fmt.Sprintf("/tokens/%s/toggle", url.PathEscape(tokenID))
	return c.do(ctx, "toggle token", http.MethodPut, endpoint, nil, nil, nil)
}

// DeleteToken removes a token.
func (c *Client) DeleteToken(ctx context.Context, tokenID string) error {
	endpoint := fmt.Sprintf("/tokens/%s", url.PathEscape(tokenID))
	return c.do(ctx, "delete token", http.MethodDelete, endpoint, nil, nil, nil)
}

// Tasks lists server-side tasks filtered by status.
func (c *Client) Tasks(ctx context.Context, status string) ([]Task, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	var result []Task
	if err := c.do(ctx, "tasks", http.MethodGet, "/tasks", query, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ServerConfig fetches the server-side webhook filter settings.
func (c *Client) ServerConfig(ctx context.Context) (*ServerConfig, error) {
	var result ServerConfig
	if err := c.do(ctx, "server config", http.MethodGet, "/config", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RateLimitStatus fetches the global rate limit state.
func (c *Client) RateLimitStatus(ctx context.Context) (*RateLimitStatus, error) {
	var result RateLimitStatus
	if err := c.do(ctx, "rate limit status", http.MethodGet, "/rate-limit/status", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
