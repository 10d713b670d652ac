package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/arrest-news-cli/internal/checkpoint"
	"github.com/sells-group/arrest-news-cli/internal/classify"
	"github.com/sells-group/arrest-news-cli/internal/config"
	"github.com/sells-group/arrest-news-cli/internal/linkcache"
	"github.com/sells-group/arrest-news-cli/internal/llm"
	"github.com/sells-group/arrest-news-cli/internal/monitoring"
	"github.com/sells-group/arrest-news-cli/internal/pipeline"
	"github.com/sells-group/arrest-news-cli/internal/query"
	"github.com/sells-group/arrest-news-cli/internal/resilience"
	"github.com/sells-group/arrest-news-cli/internal/scrape"
	"github.com/sells-group/arrest-news-cli/internal/search"
	anthropicpkg "github.com/sells-group/arrest-news-cli/pkg/anthropic"
	"github.com/sells-group/arrest-news-cli/pkg/jina"
)

// offlineText is what the offline extractor returns for every article.
const offlineText = "Offline copy of {url}. Immigration and Customs Enforcement agents made arrests in the county."

// offlineHitsPerQuery bounds the hits the offline search backend makes up.
const offlineHitsPerQuery = 3

// runEnv holds everything the run command wires together.
type runEnv struct {
	Store     checkpoint.Store
	Cache     *linkcache.Cache
	Generator *query.Generator
	Fetcher   *scrape.Fetcher
	Processor *pipeline.Processor
	Metrics   *monitoring.Metrics
	ErrorLog  *zap.Logger

	closers []func() error
}

// Close waits for abandoned fetches and releases held resources in reverse
// order of acquisition.
func (e *runEnv) Close() {
	if e.Fetcher != nil {
		e.Fetcher.Wait()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

func (e *runEnv) onClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// initEnv validates configuration and builds the checkpoint store, link
// cache, search client, fetcher, classifier and pipeline. errorLog receives
// counted errors. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, errorLog *zap.Logger, offline bool) (*runEnv, error) {
	mode := "run"
	if offline {
		mode = "offline"
	}
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env := &runEnv{Metrics: monitoring.NewMetrics(), ErrorLog: errorLog}

	st, err := checkpoint.Open(ctx, c.Checkpoint.Driver, c.Checkpoint.DatabaseURL)
	if err != nil {
		return nil, err
	}
	env.Store = st
	env.onClose(st.Close)

	cacheStore, err := initCacheStore(ctx, c, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Cache = linkcache.New(cacheStore, env.Metrics)

	searcher, err := initSearcher(c, env.Metrics, offline)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Fetcher = scrape.NewFetcher(
		initExtractor(c, offline),
		time.Duration(c.Fetch.WallTimeoutMs)*time.Millisecond,
		c.Fetch.MaxChars,
		env.Metrics,
	)

	classifier, err := initClassifier(c, offline)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Generator = query.NewGenerator(c.Batch.QueryTemplates, c.Window.DaysBefore, c.Window.DaysAfter)
	env.Processor = pipeline.New(pipeline.Deps{
		Generator:  env.Generator,
		Searcher:   searcher,
		Fetcher:    env.Fetcher,
		Cache:      env.Cache,
		Prefilter:  classify.NewPrefilter(c.Classify.CutoffYear),
		Classifier: classifier,
		Metrics:    env.Metrics,
		ErrorLog:   errorLog,
	}, c.Batch.HitConcurrency)

	return env, nil
}

func initCacheStore(ctx context.Context, c *config.Config, env *runEnv) (linkcache.Store, error) {
	if c.Cache.Backend != "redis" {
		return linkcache.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	env.onClose(client.Close)

	rs := linkcache.NewRedisStore(client, c.Cache.RedisPrefix, linkcache.DefaultRedisTTL)
	if err := rs.Ping(ctx); err != nil {
		return nil, eris.Wrapf(err, "linkcache: connect redis %s", c.Redis.Address)
	}
	zap.L().Info("link cache backed by redis", zap.String("address", c.Redis.Address))
	return rs, nil
}

func initSearcher(c *config.Config, metrics *monitoring.Metrics, offline bool) (*search.Client, error) {
	var backend search.Backend
	if offline {
		backend = &search.StubBackend{PerQuery: offlineHitsPerQuery}
	} else {
		b, err := search.NewBackend(
			c.Search.Provider,
			c.Search.SerpAPIKey, c.Search.SerpAPIBaseURL,
			c.Search.BingKey, c.Search.BingBaseURL,
			time.Duration(c.Search.TimeoutSecs)*time.Second,
		)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	limiter := search.NewLimiter(c.Search.RatePerSec, search.RealClock())
	return search.NewClient(backend, limiter, search.Options{
		Limit:              c.Search.ResultLimit,
		MaxThrottleRetries: c.Search.MaxThrottleRetries,
		DefaultRetryAfter:  time.Duration(c.Search.DefaultRetryAfterMs) * time.Millisecond,
		Metrics:            metrics,
	}), nil
}

func initExtractor(c *config.Config, offline bool) scrape.Extractor {
	if offline {
		return scrape.StubExtractor{Text: offlineText}
	}
	direct := scrape.NewHTTPExtractor(time.Duration(c.Fetch.RequestTimeoutMs)*time.Millisecond, c.Fetch.UserAgent)
	if !c.Fetch.JinaFallback {
		return direct
	}
	opts := []jina.Option{}
	if c.Jina.BaseURL != "" {
		opts = append(opts, jina.WithBaseURL(c.Jina.BaseURL))
	}
	fallback := scrape.NewJinaExtractor(jina.NewClient(c.Jina.Key, opts...), resilience.NewBreaker(5, 30*time.Second))
	return scrape.NewChain(direct, fallback)
}

func initClassifier(c *config.Config, offline bool) (*classify.Classifier, error) {
	questions, err := classify.LoadQuestions(c.LLM.QuestionsFile)
	if err != nil {
		return nil, err
	}

	policy := resilience.NewPolicy(c.LLM.RetryAttempts, c.LLM.RetryBackoffMs)
	system := c.LLM.SystemPrompt
	if system == "" {
		system = llm.DefaultSystemPrompt
	}

	var asker llm.Asker
	switch {
	case offline:
		asker = &llm.StubAsker{}
	case c.LLM.Provider == "openai":
		asker = llm.NewOpenAIAsker(
			llm.NewOpenAIClient(c.LLM.OpenAIKey, c.LLM.OpenAIBaseURL),
			c.LLM.OpenAIModel, c.LLM.MaxTokens, system, policy,
		)
	default:
		asker = llm.NewAnthropicAsker(
			anthropicpkg.NewClient(c.LLM.AnthropicKey),
			c.LLM.AnthropicModel, c.LLM.MaxTokens, system, policy,
		)
	}
	return classify.NewClassifier(asker, questions), nil
}
