// Package bing is a client for the Bing News Search v7 API.
package bing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.bing.microsoft.com/v7.0"

// Client performs Bing News searches.
type Client interface {
	News(ctx context.Context, req NewsRequest) (*NewsResponse, error)
}

// NewsRequest is one news search bounded by a date range.
type NewsRequest struct {
	Query string
	Since time.Time
	Until time.Time
	Count int
}

// NewsResponse is the subset of the News Search payload the pipeline reads.
type NewsResponse struct {
	Value []NewsArticle `json:"value"`
}

// NewsArticle is one news result.
type NewsArticle struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	DatePublished string `json:"datePublished,omitempty"`
	Description   string `json:"description,omitempty"`
}

// ThrottleError is returned on HTTP 429.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("bing: throttled (retry after %s)", e.RetryAfter)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	key     string
	baseURL string
	http    *http.Client
}

// NewClient creates a Bing News Search client.
func NewClient(subscriptionKey string, opts ...Option) Client {
	c := &httpClient{
		key:     subscriptionKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) News(ctx context.Context, nr NewsRequest) (*NewsResponse, error) {
	params := url.Values{}
	params.Set("q", nr.Query)
	params.Set("mkt", "en-US")
	params.Set("sortBy", "Date")
	if nr.Count > 0 {
		params.Set("count", strconv.Itoa(nr.Count))
	}
	if !nr.Since.IsZero() {
		params.Set("since", strconv.FormatInt(nr.Since.Unix(), 10))
	}
	if !nr.Since.IsZero() && !nr.Until.IsZero() {
		params.Set("freshness", nr.Since.Format("2006-01-02")+".."+nr.Until.Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.baseURL, "/")+"/news/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bing: create request")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bing: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "bing: read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var wait time.Duration
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		return nil, &ThrottleError{RetryAfter: wait}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bing: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result NewsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "bing: unmarshal response")
	}
	return &result, nil
}
