package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for the given mode. Mode "run" requires
// live API credentials; "offline" only checks structural settings.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
		problems = append(problems, c.validateCredentials()...)
	case "offline":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	problems = append(problems, c.validateStructure()...)

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func (c *Config) validateCredentials() []string {
	var problems []string

	switch c.Search.Provider {
	case "serpapi":
		if c.Search.SerpAPIKey == "" {
			problems = append(problems, "search.serpapi_key is required for provider serpapi")
		}
	case "bing":
		if c.Search.BingKey == "" {
			problems = append(problems, "search.bing_key is required for provider bing")
		}
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			problems = append(problems, "llm.anthropic_key is required for provider anthropic")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			problems = append(problems, "llm.openai_key is required for provider openai")
		}
	}

	if c.Fetch.JinaFallback && c.Jina.Key == "" {
		problems = append(problems, "jina.key is required when fetch.jina_fallback is enabled")
	}

	return problems
}

func (c *Config) validateStructure() []string {
	var problems []string

	if !oneOf(c.Search.Provider, "serpapi", "bing") {
		problems = append(problems, fmt.Sprintf("search.provider %q must be serpapi or bing", c.Search.Provider))
	}
	if !oneOf(c.LLM.Provider, "anthropic", "openai") {
		problems = append(problems, fmt.Sprintf("llm.provider %q must be anthropic or openai", c.LLM.Provider))
	}
	if !oneOf(c.Checkpoint.Driver, "sqlite", "postgres") {
		problems = append(problems, fmt.Sprintf("checkpoint.driver %q must be sqlite or postgres", c.Checkpoint.Driver))
	}
	if c.Checkpoint.DatabaseURL == "" {
		problems = append(problems, "checkpoint.database_url is required")
	}
	if !oneOf(c.Cache.Backend, "memory", "redis") {
		problems = append(problems, fmt.Sprintf("cache.backend %q must be memory or redis", c.Cache.Backend))
	}
	if c.Cache.Backend == "redis" && c.Redis.Address == "" {
		problems = append(problems, "redis.address is required for cache backend redis")
	}
	if c.Window.DaysBefore < 0 || c.Window.DaysAfter < 0 {
		problems = append(problems, "window.days_before and window.days_after must be >= 0")
	}
	if c.Search.RatePerSec <= 0 {
		problems = append(problems, "search.rate_per_sec must be > 0")
	}
	if c.Search.MaxThrottleRetries < 0 {
		problems = append(problems, "search.max_throttle_retries must be >= 0")
	}
	if c.Batch.CheckpointInterval <= 0 {
		problems = append(problems, "batch.checkpoint_interval must be > 0")
	}
	if c.Batch.HitConcurrency < 1 || c.Batch.HitConcurrency > 32 {
		problems = append(problems, "batch.hit_concurrency must be between 1 and 32")
	}
	if c.Fetch.WallTimeoutMs <= 0 || c.Fetch.RequestTimeoutMs <= 0 {
		problems = append(problems, "fetch timeouts must be > 0")
	}
	if c.Fetch.MaxChars <= 0 {
		problems = append(problems, "fetch.max_chars must be > 0")
	}

	return problems
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
