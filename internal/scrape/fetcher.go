// Package scrape fetches article pages and extracts their readable text
// within a hard wall-clock bound.
package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/monitoring"
)

// Status is the outcome of a bounded fetch.
type Status string

const (
	StatusText    Status = "text"
	StatusEmpty   Status = "empty"
	StatusTimeout Status = "timeout"
)

// Result is what the classifier sees for one URL. Text is set only when
// Status is StatusText.
type Result struct {
	Status Status
	Text   string
}

// Available reports whether text was extracted.
func (r Result) Available() bool { return r.Status == StatusText }

// Extractor fetches a URL and returns its plain text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, url string) (string, error)
}

// Fetcher runs an Extractor on its own goroutine and stops waiting for it
// after the wall-clock bound. A unit that overruns is abandoned, not
// cancelled: it finishes in the background (bounded by the extractor's own
// request timeout) and its result is dropped. Wait blocks until every
// abandoned unit has finished.
type Fetcher struct {
	extractor Extractor
	wall      time.Duration
	maxChars  int
	metrics   *monitoring.Metrics

	inflight sync.WaitGroup
}

// NewFetcher creates a bounded fetcher. Text longer than maxChars characters
// is cut to its first maxChars characters.
func NewFetcher(ex Extractor, wall time.Duration, maxChars int, metrics *monitoring.Metrics) *Fetcher {
	if wall <= 0 {
		wall = 8 * time.Second
	}
	return &Fetcher{extractor: ex, wall: wall, maxChars: maxChars, metrics: metrics}
}

type unitResult struct {
	text string
	err  error
}

// FetchText fetches url and never returns an error: failures map to
// StatusEmpty and overruns to StatusTimeout.
func (f *Fetcher) FetchText(ctx context.Context, url string) Result {
	done := make(chan unitResult, 1)

	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				done <- unitResult{err: eris.Errorf("scrape: extractor panic: %v", p)}
			}
		}()
		text, err := f.extractor.Extract(ctx, url)
		done <- unitResult{text: text, err: err}
	}()

	timer := time.NewTimer(f.wall)
	defer timer.Stop()

	log := zap.L().With(zap.String("url", url), zap.String("extractor", f.extractor.Name()))

	select {
	case r := <-done:
		if r.err != nil {
			log.Debug("scrape: no text", zap.Error(r.err))
			return f.result(StatusEmpty, "")
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return f.result(StatusEmpty, "")
		}
		return f.result(StatusText, Truncate(text, f.maxChars))
	case <-timer.C:
		log.Info("scrape: wall-clock bound exceeded, abandoning fetch", zap.Duration("bound", f.wall))
		return f.result(StatusTimeout, "")
	case <-ctx.Done():
		return f.result(StatusEmpty, "")
	}
}

func (f *Fetcher) result(s Status, text string) Result {
	f.metrics.Fetch(string(s))
	return Result{Status: s, Text: text}
}

// Wait blocks until all fetch units, including abandoned ones, have returned.
func (f *Fetcher) Wait() {
	f.inflight.Wait()
}

// Truncate keeps the first max characters of s. A non-positive max keeps
// everything.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
