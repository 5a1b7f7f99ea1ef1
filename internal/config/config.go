package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ScoringConfig holds the policy tables consumed by the scoring engine.
// Empty rule and encoding tables are filled from the engine's defaults.
type ScoringConfig struct {
	RuleBase  float64                   `yaml:"rule_base" mapstructure:"rule_base"`
	Blend     BlendConfig               `yaml:"blend" mapstructure:"blend"`
	Tiers     TierConfig                `yaml:"tiers" mapstructure:"tiers"`
	Rules     map[string]RuleConfig     `yaml:"rules" mapstructure:"rules"`
	Encodings map[string]EncodingConfig `yaml:"encodings" mapstructure:"encodings"`
	Explain   ExplainConfig             `yaml:"explain" mapstructure:"explain"`
}

// BlendConfig weights the rule score against the model score. The two
// weights must sum to 1.
type BlendConfig struct {
	RuleWeight  float64 `yaml:"rule_weight" mapstructure:"rule_weight"`
	ModelWeight float64 `yaml:"model_weight" mapstructure:"model_weight"`
}

// TierConfig holds the lower bound (inclusive) of the Low and Medium tiers.
// Everything below MediumMin is High.
type TierConfig struct {
	LowMin    int `yaml:"low_min" mapstructure:"low_min"`
	MediumMin int `yaml:"medium_min" mapstructure:"medium_min"`
}

// RuleConfig tunes one named rule.
type RuleConfig struct {
	Weight   float64 `yaml:"weight" mapstructure:"weight"`
	Disabled bool    `yaml:"disabled" mapstructure:"disabled"`
}

// EncodingConfig is the encoding table for one categorical field.
type EncodingConfig struct {
	// Categories lists the known canonical values in one-hot order.
	Categories []string `yaml:"categories" mapstructure:"categories"`
	// Aliases maps normalized raw input to a canonical category.
	Aliases map[string]string `yaml:"aliases" mapstructure:"aliases"`
	// Ordinals maps canonical categories to a value in [0,1].
	Ordinals map[string]float64 `yaml:"ordinals" mapstructure:"ordinals"`
	// OtherOrdinal is used for values outside Categories.
	OtherOrdinal float64 `yaml:"other_ordinal" mapstructure:"other_ordinal"`
}

// ExplainConfig configures recommendation generation.
type ExplainConfig struct {
	TopK   int    `yaml:"top_k" mapstructure:"top_k"`
	Locale string `yaml:"locale" mapstructure:"locale"`
}

// ModelConfig locates the frozen model artifact and bounds inference.
type ModelConfig struct {
	Path      string        `yaml:"path" mapstructure:"path"`
	Required  bool          `yaml:"required" mapstructure:"required"`
	TimeoutMs int           `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// BreakerConfig configures the circuit breaker around model inference.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig configures the application store.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// CacheConfig configures the score result cache.
type CacheConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	RedisAddr  string `yaml:"redis_addr" mapstructure:"redis_addr"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// BatchConfig configures CSV batch scoring.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// MonitoringConfig configures the background checker that watches recent
// applications for model outages and risk drift.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	MinSample             int     `yaml:"min_sample" mapstructure:"min_sample"`
	DegradedRateThreshold float64 `yaml:"degraded_rate_threshold" mapstructure:"degraded_rate_threshold"`
	HighRiskRateThreshold float64 `yaml:"high_risk_rate_threshold" mapstructure:"high_risk_rate_threshold"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ConfigurationError reports an inconsistent configuration. It is fatal:
// the process must not serve requests with it.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "configuration invalid: " + strings.Join(e.Problems, "; ")
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("scoring.rule_base", 50)
	v.SetDefault("scoring.blend.rule_weight", 0.5)
	v.SetDefault("scoring.blend.model_weight", 0.5)
	v.SetDefault("scoring.tiers.low_min", 70)
	v.SetDefault("scoring.tiers.medium_min", 40)
	v.SetDefault("scoring.explain.top_k", 3)
	v.SetDefault("scoring.explain.locale", "en")
	v.SetDefault("model.path", "models/credit-v1.yaml")
	v.SetDefault("model.required", false)
	v.SetDefault("model.timeout_ms", 250)
	v.SetDefault("model.breaker.failure_threshold", 5)
	v.SetDefault("model.breaker.reset_timeout_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "credit_scoring.db")
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8000"})
	v.SetDefault("server.rate_limit_rps", 5)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("batch.max_concurrent", 8)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.min_sample", 20)
	v.SetDefault("monitoring.degraded_rate_threshold", 0.05)
	v.SetDefault("monitoring.high_risk_rate_threshold", 0.5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the non-scoring sections. Scoring tables are validated by
// the scoring package, which owns their semantics.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres or none")
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		problems = append(problems, "cache.driver must be memory, redis or none")
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisAddr == "" {
		problems = append(problems, "cache.redis_addr is required for the redis driver")
	}

	if c.Model.TimeoutMs <= 0 {
		problems = append(problems, "model.timeout_ms must be > 0")
	}
	if c.Model.Required && c.Model.Path == "" {
		problems = append(problems, "model.path is required when model.required is set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Batch.MaxConcurrent <= 0 {
		problems = append(problems, "batch.max_concurrent must be > 0")
	}

	if c.Monitoring.Enabled {
		if c.Store.Driver == "none" {
			problems = append(problems, "monitoring requires a store")
		}
		for name, v := range map[string]float64{
			"monitoring.degraded_rate_threshold":  c.Monitoring.DegradedRateThreshold,
			"monitoring.high_risk_rate_threshold": c.Monitoring.HighRiskRateThreshold,
		} {
			if v <= 0 || v > 1 {
				problems = append(problems, name+" must be in (0,1]")
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
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
