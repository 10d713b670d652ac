package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/pkg/bing"
	"github.com/sells-group/arrest-news-cli/pkg/serpapi"
)

// SerpAPIBackend searches Google through SerpAPI.
type SerpAPIBackend struct {
	client serpapi.Client
}

// NewSerpAPIBackend wraps a SerpAPI client.
func NewSerpAPIBackend(c serpapi.Client) *SerpAPIBackend {
	return &SerpAPIBackend{client: c}
}

// Name implements Backend.
func (b *SerpAPIBackend) Name() string { return "serpapi" }

// Search implements Backend.
func (b *SerpAPIBackend) Search(ctx context.Context, q model.Query, limit int) ([]model.SearchHit, error) {
	resp, err := b.client.Search(ctx, serpapi.SearchRequest{
		Query: q.Text,
		Start: q.Window.StartParam(),
		End:   q.Window.EndParam(),
		Num:   limit,
	})
	if err != nil {
		var rle *serpapi.RateLimitError
		if errors.As(err, &rle) {
			return nil, &ThrottledError{RetryAfter: rle.RetryAfter, Err: err}
		}
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		hits = append(hits, model.SearchHit{
			Title:        orNA(r.Title),
			URL:          orNA(r.Link),
			PublishedRaw: r.Date,
			Published:    ParsePublished(r.Date),
		})
	}
	return hits, nil
}

// BingBackend searches Bing News.
type BingBackend struct {
	client bing.Client
}

// NewBingBackend wraps a Bing News client.
func NewBingBackend(c bing.Client) *BingBackend {
	return &BingBackend{client: c}
}

// Name implements Backend.
func (b *BingBackend) Name() string { return "bing" }

// Search implements Backend.
func (b *BingBackend) Search(ctx context.Context, q model.Query, limit int) ([]model.SearchHit, error) {
	resp, err := b.client.News(ctx, bing.NewsRequest{
		Query: q.Text,
		Since: q.Window.Start,
		Until: q.Window.End,
		Count: limit,
	})
	if err != nil {
		var te *bing.ThrottleError
		if errors.As(err, &te) {
			return nil, &ThrottledError{RetryAfter: te.RetryAfter, Err: err}
		}
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(resp.Value))
	for _, a := range resp.Value {
		hits = append(hits, model.SearchHit{
			Title:        orNA(a.Name),
			URL:          orNA(a.URL),
			PublishedRaw: a.DatePublished,
			Published:    ParsePublished(a.DatePublished),
		})
	}
	return hits, nil
}

// StubBackend returns canned hits for every query. With no canned hits and
// PerQuery set, it makes up PerQuery hits from the query itself. It backs
// offline runs.
type StubBackend struct {
	Hits     []model.SearchHit
	PerQuery int
	Err      error
}

// Name implements Backend.
func (b *StubBackend) Name() string { return "stub" }

// Search implements Backend.
func (b *StubBackend) Search(_ context.Context, q model.Query, limit int) ([]model.SearchHit, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	if len(b.Hits) == 0 && b.PerQuery > 0 {
		return synthesize(q, min(b.PerQuery, max(limit, 1))), nil
	}
	n := len(b.Hits)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.SearchHit, n)
	copy(out, b.Hits[:n])
	return out, nil
}

func synthesize(q model.Query, n int) []model.SearchHit {
	published := q.Window.Arrest
	hits := make([]model.SearchHit, n)
	for i := range hits {
		hits[i] = model.SearchHit{
			Title:        fmt.Sprintf("%s (result %d)", q.Text, i+1),
			URL:          fmt.Sprintf("https://offline.invalid/search?q=%s&n=%d", url.QueryEscape(q.Text), i+1),
			PublishedRaw: q.Window.ArrestParam(),
			Published:    &published,
		}
	}
	return hits
}

// NewBackend builds the backend named by provider.
func NewBackend(provider, serpKey, serpBaseURL, bingKey, bingBaseURL string, timeout time.Duration) (Backend, error) {
	switch provider {
	case "serpapi":
		opts := []serpapi.Option{}
		if serpBaseURL != "" {
			opts = append(opts, serpapi.WithBaseURL(serpBaseURL))
		}
		if timeout > 0 {
			opts = append(opts, serpapi.WithHTTPClient(&http.Client{Timeout: timeout}))
		}
		return NewSerpAPIBackend(serpapi.NewClient(serpKey, opts...)), nil
	case "bing":
		opts := []bing.Option{}
		if bingBaseURL != "" {
			opts = append(opts, bing.WithBaseURL(bingBaseURL))
		}
		if timeout > 0 {
			opts = append(opts, bing.WithHTTPClient(&http.Client{Timeout: timeout}))
		}
		return NewBingBackend(bing.NewClient(bingKey, opts...)), nil
	default:
		return nil, eris.Errorf("search: unknown provider %q", provider)
	}
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.0000000Z",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
}

// ParsePublished parses an engine's publication date. Unparseable dates that
// still end in a four-digit year resolve to January 1 of that year, which is
// enough for the cutoff-year check.
func ParsePublished(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "N/A") {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	if len(raw) >= 4 {
		tail := raw[len(raw)-4:]
		if y, err := time.Parse("2006", tail); err == nil {
			return &y
		}
	}
	return nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
