package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/resilience"
	"github.com/sells-group/arrest-news-cli/pkg/jina"
)

// JinaExtractor reads pages through Jina Reader. A breaker skips Jina for a
// while after repeated failures.
type JinaExtractor struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaExtractor wraps a Jina client.
func NewJinaExtractor(client jina.Client, breaker *resilience.Breaker) *JinaExtractor {
	if breaker == nil {
		breaker = resilience.NewBreaker(3, 0)
	}
	return &JinaExtractor{client: client, breaker: breaker}
}

// Name implements Extractor.
func (j *JinaExtractor) Name() string { return "jina" }

// Extract implements Extractor.
func (j *JinaExtractor) Extract(ctx context.Context, target string) (string, error) {
	if err := j.breaker.Allow(); err != nil {
		return "", err
	}

	resp, err := j.client.Read(ctx, target)
	if err == nil && unusable(resp) {
		err = eris.New("scrape: jina returned no usable content")
	}
	j.breaker.Record(err)
	if err != nil {
		return "", err
	}
	return collapseSpace(resp.Data.Content), nil
}

var jinaChallengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"just a moment",
	"attention required",
}

// unusable reports whether a Reader response is empty or a rendered
// challenge page.
func unusable(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range jinaChallengeSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}
