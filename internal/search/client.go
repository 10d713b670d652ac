// Package search runs rate-limited queries against a pluggable search backend.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/model"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
)

// Backend executes one search against a concrete engine.
type Backend interface {
	Name() string
	Search(ctx context.Context, q model.Query, limit int) ([]model.SearchHit, error)
}

// Options configures a Client.
type Options struct {
	Limit              int
	MaxThrottleRetries int
	DefaultRetryAfter  time.Duration
	Clock              Clock
	Metrics            *monitoring.Metrics
}

// Client wraps a Backend with the shared limiter and a bounded throttle
// retry loop.
type Client struct {
	backend Backend
	limiter *Limiter
	opts    Options
}

// NewClient creates a search client. All clients sharing limiter share one
// request budget.
func NewClient(backend Backend, limiter *Limiter, opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = time.Second
	}
	if opts.MaxThrottleRetries < 0 {
		opts.MaxThrottleRetries = 0
	}
	return &Client{backend: backend, limiter: limiter, opts: opts}
}

// Search runs q and returns hits in backend order, stamped with the query
// and pattern that produced them. A throttled request is retried after the
// server's delay, up to MaxThrottleRetries times. Any other failure is
// returned as a *RequestError.
func (c *Client) Search(ctx context.Context, q model.Query) ([]model.SearchHit, error) {
	log := zap.L().With(zap.String("backend", c.backend.Name()), zap.String("query", q.Text))

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		hits, err := c.backend.Search(ctx, q, c.opts.Limit)
		if err == nil {
			c.opts.Metrics.Search("ok")
			for i := range hits {
				hits[i].SourceQuery = q.Text
				hits[i].SearchPattern = q.Pattern
			}
			log.Debug("search complete", zap.Int("hits", len(hits)))
			return hits, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var te *ThrottledError
		if !errors.As(err, &te) {
			c.opts.Metrics.Search("error")
			return nil, &RequestError{Query: q.Text, Err: err}
		}

		c.opts.Metrics.Throttled()
		if attempt >= c.opts.MaxThrottleRetries {
			c.opts.Metrics.Search("throttled")
			return nil, &RequestError{Query: q.Text, Err: eris.Wrapf(err, "throttled %d times", attempt+1)}
		}

		wait := te.RetryAfter
		if wait <= 0 {
			wait = c.opts.DefaultRetryAfter
		}
		log.Warn("search throttled, backing off",
			zap.Duration("retry_after", wait),
			zap.Int("attempt", attempt+1),
		)
		if err := c.opts.Clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}
