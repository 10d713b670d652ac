package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries extractors in order and returns the first non-empty text.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a chain. Order is priority order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Name implements Extractor.
func (c *Chain) Name() string {
	names := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		names[i] = e.Name()
	}
	return strings.Join(names, "+")
}

// Extract implements Extractor.
func (c *Chain) Extract(ctx context.Context, url string) (string, error) {
	var lastErr error
	for _, e := range c.extractors {
		text, err := e.Extract(ctx, url)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = eris.Errorf("scrape: %s returned no text", e.Name())
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		zap.L().Debug("scrape: extractor failed, trying next",
			zap.String("extractor", e.Name()),
			zap.String("url", url),
			zap.Error(err),
		)
		lastErr = err
	}
	if lastErr == nil {
		return "", eris.New("scrape: no extractors configured")
	}
	return "", eris.Wrap(lastErr, "scrape: all extractors failed")
}

// StubExtractor returns Text for every URL, with "{url}" replaced by the
// requested URL. It backs offline runs.
type StubExtractor struct {
	Text string
}

// Name implements Extractor.
func (s StubExtractor) Name() string { return "stub" }

// Extract implements Extractor.
func (s StubExtractor) Extract(_ context.Context, target string) (string, error) {
	return strings.ReplaceAll(s.Text, "{url}", target), nil
}
