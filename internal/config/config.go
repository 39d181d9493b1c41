package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Circuit     CircuitConfig     `yaml:"circuit" mapstructure:"circuit"`
	Attribution AttributionConfig `yaml:"attribution" mapstructure:"attribution"`
	Perception  PerceptionConfig  `yaml:"perception" mapstructure:"perception"`
	Media       MediaConfig       `yaml:"media" mapstructure:"media"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"` // postgres only
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Model             string  `yaml:"model" mapstructure:"model"`
	BatchModel        string  `yaml:"batch_model" mapstructure:"batch_model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBatchSize      int     `yaml:"max_batch_size" mapstructure:"max_batch_size"`
}

// CircuitConfig configures the circuit breakers in front of collaborators.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	HalfOpenTrials   int `yaml:"half_open_trials" mapstructure:"half_open_trials"`
}

// AttributionConfig configures the content attribution flow.
type AttributionConfig struct {
	TotalRevenue float64 `yaml:"total_revenue" mapstructure:"total_revenue"`
	// Tolerance is the fraction of the pool the attributed sum may deviate
	// before a warning is logged.
	Tolerance float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// PerceptionConfig configures the optional Google Cloud perception pre-pass.
type PerceptionConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Vision          bool   `yaml:"vision" mapstructure:"vision"`
	Video           bool   `yaml:"video" mapstructure:"video"`
	Speech          bool   `yaml:"speech" mapstructure:"speech"`
	LanguageCode    string `yaml:"language_code" mapstructure:"language_code"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json" mapstructure:"credentials_json"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts     int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// MediaConfig configures upload handling and the optional GCS archive.
type MediaConfig struct {
	MaxBytes int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Perception PerceptionPricing       `yaml:"perception" mapstructure:"perception"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerceptionPricing holds Google Cloud perception pricing.
type PerceptionPricing struct {
	VisionPerFeature float64 `yaml:"vision_per_feature" mapstructure:"vision_per_feature"`
	VideoPerMinute   float64 `yaml:"video_per_minute" mapstructure:"video_per_minute"`
	SpeechPer15s     float64 `yaml:"speech_per_15s" mapstructure:"speech_per_15s"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownSecs    int      `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
	MaxUploadMBytes int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// MonitoringConfig configures the background flow health checker.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinRuns              int     `yaml:"min_runs" mapstructure:"min_runs"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONTENTMIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contentmix.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.batch_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_second", 2.0)
	v.SetDefault("anthropic.burst", 4)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("circuit.half_open_trials", 1)
	v.SetDefault("attribution.total_revenue", 50000.0)
	v.SetDefault("attribution.tolerance", 0.01)
	v.SetDefault("perception.enabled", false)
	v.SetDefault("perception.vision", true)
	v.SetDefault("perception.video", true)
	v.SetDefault("perception.speech", true)
	v.SetDefault("perception.language_code", "en-US")
	v.SetDefault("perception.credentials_file", "")
	v.SetDefault("perception.credentials_json", "")
	v.SetDefault("perception.timeout_secs", 300)
	v.SetDefault("perception.max_attempts", 3)
	v.SetDefault("media.max_bytes", 20<<20)
	v.SetDefault("media.bucket", "")
	v.SetDefault("media.prefix", "assets/")
	v.SetDefault("pricing.perception.vision_per_feature", 0.0015)
	v.SetDefault("pricing.perception.video_per_minute", 0.10)
	v.SetDefault("pricing.perception.speech_per_15s", 0.006)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_secs", 10)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.min_runs", 5)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validation modes accepted by Validate.
const (
	ModeServe   = "serve"
	ModeAnalyze = "analyze"
	ModeStore   = "store"
)

// Validate checks the settings a command mode needs. Every problem is
// reported in a single error.
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	storeChecks := func() {
		need(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
			fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		need(c.Store.DatabaseURL != "", "store.database_url is required")
	}
	analyzeChecks := func() {
		need(c.Anthropic.Key != "", "anthropic.key is required")
		need(c.Anthropic.Model != "", "anthropic.model is required")
		need(c.Anthropic.MaxTokens > 0, "anthropic.max_tokens must be > 0")
		need(c.Anthropic.RequestsPerSecond > 0, "anthropic.requests_per_second must be > 0")
		need(c.Attribution.TotalRevenue > 0, "attribution.total_revenue must be > 0")
		need(c.Attribution.Tolerance >= 0 && c.Attribution.Tolerance < 1, "attribution.tolerance must be in [0, 1)")
		need(c.Media.MaxBytes > 0, "media.max_bytes must be > 0")
	}

	switch mode {
	case ModeStore:
		storeChecks()
	case ModeAnalyze:
		storeChecks()
		analyzeChecks()
	case ModeServe:
		storeChecks()
		analyzeChecks()
		need(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be > 0 and < 65536")
		need(c.Monitoring.FailureRateThreshold >= 0 && c.Monitoring.FailureRateThreshold <= 1,
			"monitoring.failure_rate_threshold must be in [0, 1]")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
