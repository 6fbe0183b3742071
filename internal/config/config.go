package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/grant-cli/internal/listing"
	"github.com/sells-group/grant-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Listing    ListingConfig    `yaml:"listing" mapstructure:"listing"`
	Fetcher    FetcherConfig    `yaml:"fetcher" mapstructure:"fetcher"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Mistral    MistralConfig    `yaml:"mistral" mapstructure:"mistral"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Profile    model.Profile    `yaml:"profile" mapstructure:"profile"`
	Filter     FilterConfig     `yaml:"filter" mapstructure:"filter"`
	Throttle   ThrottleConfig   `yaml:"throttle" mapstructure:"throttle"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the document store.
type DataConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ListingConfig lists the upstream announcement sources.
type ListingConfig struct {
	Sources []listing.SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// FetcherConfig configures the shared HTTP fetcher.
type FetcherConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxBodyMB   int    `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// CrawlConfig configures the shallow detail-page crawl.
type CrawlConfig struct {
	TimeoutSecs   int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRunes      int  `yaml:"max_runes" mapstructure:"max_runes"`
	CacheTTLHours int  `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	UseJina       bool `yaml:"use_jina" mapstructure:"use_jina"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	RenderTimeoutSecs int    `yaml:"render_timeout_secs" mapstructure:"render_timeout_secs"`
}

// OCRConfig configures attachment text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
	MaxRunes      int    `yaml:"max_runes" mapstructure:"max_runes"`
}

// MistralConfig holds Mistral API credentials.
type MistralConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// AnthropicConfig holds Anthropic API settings. Each task can use its own model.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	ScreenModel    string `yaml:"screen_model" mapstructure:"screen_model"`
	StructureModel string `yaml:"structure_model" mapstructure:"structure_model"`
	ScoreModel     string `yaml:"score_model" mapstructure:"score_model"`
	StrategyModel  string `yaml:"strategy_model" mapstructure:"strategy_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// PricingConfig overrides the built-in model prices.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PipelineConfig tunes the stages.
type PipelineConfig struct {
	StrategyThreshold    int      `yaml:"strategy_threshold" mapstructure:"strategy_threshold"`
	RejectScore          int      `yaml:"reject_score" mapstructure:"reject_score"`
	MaxAttachments       int      `yaml:"max_attachments" mapstructure:"max_attachments"`
	MaxAttachmentMB      int      `yaml:"max_attachment_mb" mapstructure:"max_attachment_mb"`
	AttachmentExtensions []string `yaml:"attachment_extensions" mapstructure:"attachment_extensions"`
	MaxInputChars        int      `yaml:"max_input_chars" mapstructure:"max_input_chars"`
	BulkQualityBelow     int      `yaml:"bulk_quality_below" mapstructure:"bulk_quality_below"`
}

// FilterConfig configures the scope filter applied after dedup. Empty lists
// fall back to the built-in vocabularies.
type FilterConfig struct {
	MaturityPatterns map[string][]string `yaml:"maturity_patterns" mapstructure:"maturity_patterns"`
	KnownRegions     []string            `yaml:"known_regions" mapstructure:"known_regions"`
	NationalMarkers  []string            `yaml:"national_markers" mapstructure:"national_markers"`
}

// ThrottleConfig spaces calls to external services per lane.
type ThrottleConfig struct {
	AIIntervalMs     int `yaml:"ai_interval_ms" mapstructure:"ai_interval_ms"`
	CrawlIntervalMs  int `yaml:"crawl_interval_ms" mapstructure:"crawl_interval_ms"`
	ReaderIntervalMs int `yaml:"reader_interval_ms" mapstructure:"reader_interval_ms"`
	TripAfter        int `yaml:"trip_after" mapstructure:"trip_after"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// MonitoringConfig configures the ledger alert checker run by serve.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	StuckAfterMins       int     `yaml:"stuck_after_mins" mapstructure:"stuck_after_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GRANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.root", "data")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/grant.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("fetcher.timeout_secs", 30)
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.max_body_mb", 50)
	v.SetDefault("crawl.timeout_secs", 20)
	v.SetDefault("crawl.max_runes", 50000)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.use_jina", true)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.render_timeout_secs", 20)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("ocr.max_runes", 80000)
	v.SetDefault("anthropic.screen_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.structure_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.score_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.strategy_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("pipeline.strategy_threshold", 70)
	v.SetDefault("pipeline.reject_score", 3)
	v.SetDefault("pipeline.max_attachments", 5)
	v.SetDefault("pipeline.max_attachment_mb", 20)
	v.SetDefault("pipeline.max_input_chars", 60000)
	v.SetDefault("pipeline.bulk_quality_below", 60)
	v.SetDefault("throttle.ai_interval_ms", 1000)
	v.SetDefault("throttle.crawl_interval_ms", 500)
	v.SetDefault("throttle.reader_interval_ms", 3000)
	v.SetDefault("throttle.trip_after", 5)
	v.SetDefault("throttle.cooldown_secs", 60)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 20.0)
	v.SetDefault("monitoring.stuck_after_mins", 120)

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

// Validate checks the settings the given command mode depends on. Modes are
// "run", "serve", "reenrich" and "read".
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Data.Root) == "" {
		add("data.root is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
	default:
		add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		add("log.format must be json or console, got %q", c.Log.Format)
	}

	switch mode {
	case "read":
	case "reenrich":
		if c.Anthropic.Key == "" {
			add("anthropic.key is required")
		}
		c.validateAI(add)
		c.validatePipeline(add)
	case "run":
		c.validateAI(add)
		c.validatePipeline(add)
		c.validateListing(add)
	case "serve":
		c.validateAI(add)
		c.validatePipeline(add)
		c.validateListing(add)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if m := c.Monitoring; m.FailureRateThreshold < 0 || m.FailureRateThreshold > 1 {
			add("monitoring.failure_rate_threshold must be between 0 and 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateAI checks the collaborator settings. A missing Anthropic key is
// allowed for runs: the AI stages are skipped.
func (c *Config) validateAI(add func(string, ...any)) {
	switch c.OCR.Provider {
	case "", "local":
	case "mistral":
		if c.Mistral.Key == "" {
			add("mistral.key is required when ocr.provider is mistral")
		}
	default:
		add("ocr.provider must be local or mistral, got %q", c.OCR.Provider)
	}
}

func (c *Config) validatePipeline(add func(string, ...any)) {
	p := c.Pipeline
	if p.StrategyThreshold < 0 || p.StrategyThreshold > 100 {
		add("pipeline.strategy_threshold must be between 0 and 100")
	}
	if p.RejectScore < 0 || p.RejectScore > 100 {
		add("pipeline.reject_score must be between 0 and 100")
	}
	if p.RejectScore >= p.StrategyThreshold && p.StrategyThreshold > 0 {
		add("pipeline.reject_score must be below pipeline.strategy_threshold")
	}
	if p.BulkQualityBelow < 0 || p.BulkQualityBelow > 100 {
		add("pipeline.bulk_quality_below must be between 0 and 100")
	}
	if p.MaxAttachments < 0 {
		add("pipeline.max_attachments must be >= 0")
	}
}

func (c *Config) validateListing(add func(string, ...any)) {
	if len(c.Listing.Sources) == 0 {
		add("listing.sources must name at least one source")
		return
	}
	seen := make(map[string]bool, len(c.Listing.Sources))
	for _, src := range c.Listing.Sources {
		if err := src.Validate(); err != nil {
			add("%v", err)
		}
		if seen[src.Name] {
			add("listing source %q is defined twice", src.Name)
		}
		seen[src.Name] = true
	}
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
