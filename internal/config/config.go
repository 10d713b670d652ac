package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Window     WindowConfig     `yaml:"window" mapstructure:"window"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the abnormal arrest dates CSV.
type InputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig locates the result sinks.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	ExportXLSX bool   `yaml:"export_xlsx" mapstructure:"export_xlsx"`
}

// WindowConfig sets the date window around each arrest date.
type WindowConfig struct {
	DaysBefore int `yaml:"days_before" mapstructure:"days_before"`
	DaysAfter  int `yaml:"days_after" mapstructure:"days_after"`
}

// SearchConfig configures the search backend and its global rate cap.
type SearchConfig struct {
	Provider            string `yaml:"provider" mapstructure:"provider"`
	SerpAPIKey          string `yaml:"serpapi_key" mapstructure:"serpapi_key"`
	SerpAPIBaseURL      string `yaml:"serpapi_base_url" mapstructure:"serpapi_base_url"`
	BingKey             string `yaml:"bing_key" mapstructure:"bing_key"`
	BingBaseURL         string `yaml:"bing_base_url" mapstructure:"bing_base_url"`
	ResultLimit         int    `yaml:"result_limit" mapstructure:"result_limit"`
	RatePerSec          int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxThrottleRetries  int    `yaml:"max_throttle_retries" mapstructure:"max_throttle_retries"`
	DefaultRetryAfterMs int    `yaml:"default_retry_after_ms" mapstructure:"default_retry_after_ms"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures the bounded article fetcher.
type FetchConfig struct {
	RequestTimeoutMs int    `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms"`
	WallTimeoutMs    int    `yaml:"wall_timeout_ms" mapstructure:"wall_timeout_ms"`
	MaxChars         int    `yaml:"max_chars" mapstructure:"max_chars"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	JinaFallback     bool   `yaml:"jina_fallback" mapstructure:"jina_fallback"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// LLMConfig configures the relevance classifier backend.
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	AnthropicKey   string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	OpenAIKey      string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel    string `yaml:"openai_model" mapstructure:"openai_model"`
	OpenAIBaseURL  string `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	RetryAttempts  int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	QuestionsFile  string `yaml:"questions_file" mapstructure:"questions_file"`
	SystemPrompt   string `yaml:"system_prompt" mapstructure:"system_prompt"`
}

// ClassifyConfig configures the cheap pre-filter.
type ClassifyConfig struct {
	CutoffYear int `yaml:"cutoff_year" mapstructure:"cutoff_year"`
}

// BatchConfig configures the checkpointed batch runner.
type BatchConfig struct {
	CheckpointInterval int      `yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"`
	HitConcurrency     int      `yaml:"hit_concurrency" mapstructure:"hit_concurrency"`
	QueryTemplates     []string `yaml:"query_templates" mapstructure:"query_templates"`
}

// CheckpointConfig configures durable checkpoint storage.
type CheckpointConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the link classification cache.
type CacheConfig struct {
	Backend               string `yaml:"backend" mapstructure:"backend"`
	PersistWithCheckpoint bool   `yaml:"persist_with_checkpoint" mapstructure:"persist_with_checkpoint"`
	RedisPrefix           string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// RedisConfig holds Redis connection settings for the shared link cache.
type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ServerConfig configures the optional status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultQueryTemplate is the query sent for every record unless overridden.
const DefaultQueryTemplate = "Immigration Raid/Arrest, {county}, {state}"

// Load reads credentials, then configuration from file and environment.
func Load() (*Config, error) {
	if err := loadCredentials(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARREST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a useful default are still registered so AutomaticEnv
	// and the credential files can fill them.
	v.SetDefault("input.path", "")
	v.SetDefault("search.serpapi_key", "")
	v.SetDefault("search.bing_key", "")
	v.SetDefault("llm.anthropic_key", "")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.questions_file", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("server.port", 0)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.export_xlsx", true)
	v.SetDefault("window.days_before", 2)
	v.SetDefault("window.days_after", 14)
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.serpapi_base_url", "https://serpapi.com")
	v.SetDefault("search.bing_base_url", "https://api.bing.microsoft.com/v7.0")
	v.SetDefault("search.result_limit", 10)
	v.SetDefault("search.rate_per_sec", 250)
	v.SetDefault("search.max_throttle_retries", 5)
	v.SetDefault("search.default_retry_after_ms", 1000)
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("fetch.request_timeout_ms", 6000)
	v.SetDefault("fetch.wall_timeout_ms", 8000)
	v.SetDefault("fetch.max_chars", 12288)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; ArrestNewsBot/1.0)")
	v.SetDefault("fetch.jina_fallback", false)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.openai_model", "gpt-3.5-turbo")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.retry_attempts", 3)
	v.SetDefault("llm.retry_backoff_ms", 500)
	v.SetDefault("llm.system_prompt", "Analyze the provided text for specific information.")
	v.SetDefault("classify.cutoff_year", 2014)
	v.SetDefault("batch.checkpoint_interval", 100)
	v.SetDefault("batch.hit_concurrency", 1)
	v.SetDefault("batch.query_templates", []string{DefaultQueryTemplate})
	v.SetDefault("checkpoint.driver", "sqlite")
	v.SetDefault("checkpoint.database_url", "checkpoint.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.persist_with_checkpoint", true)
	v.SetDefault("cache.redis_prefix", "arrest-news:link:")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// credentialFiles are dotenv files read before viper. Existing environment
// variables win over file values.
var credentialFiles = []string{"api_keys.env", ".env"}

func loadCredentials() error {
	for _, path := range credentialFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return eris.Wrapf(err, "config: load credentials %s", path)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
