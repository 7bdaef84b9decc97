// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agrilink/pricewatch/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Tabula   TabulaConfig   `yaml:"tabula" mapstructure:"tabula"`
	OCR      OCRConfig      `yaml:"ocr" mapstructure:"ocr"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	SMS      SMSConfig      `yaml:"sms" mapstructure:"sms"`
	Alert    AlertConfig    `yaml:"alert" mapstructure:"alert"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SourceConfig configures the government price bulletin source.
type SourceConfig struct {
	Regions     map[string]string `yaml:"regions" mapstructure:"regions"` // region name -> index page URL
	UserAgent   string            `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64           `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	WorkDir     string            `yaml:"work_dir" mapstructure:"work_dir"`
}

// TabulaConfig configures the structured PDF table extraction subprocess.
type TabulaConfig struct {
	Python      string `yaml:"python" mapstructure:"python"`
	Script      string `yaml:"script" mapstructure:"script"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinRows     int    `yaml:"min_rows" mapstructure:"min_rows"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// LLMConfig configures the text-to-table extraction model.
type LLMConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkLines  int    `yaml:"chunk_lines" mapstructure:"chunk_lines"`
}

// SMSConfig configures the SMS gateway.
type SMSConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Sender  string `yaml:"sender" mapstructure:"sender"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AlertConfig configures the price-change alert engine.
type AlertConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	LookbackDays int  `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// ScheduleConfig configures the built-in scheduler.
type ScheduleConfig struct {
	Cron string `yaml:"cron" mapstructure:"cron"`
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
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("source.user_agent", "pricewatch/1.0")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.rate_per_sec", 1.0)
	v.SetDefault("source.work_dir", "/tmp/pricewatch")
	v.SetDefault("tabula.python", "python3")
	v.SetDefault("tabula.script", "scripts/extract_tables.py")
	v.SetDefault("tabula.timeout_secs", 120)
	v.SetDefault("tabula.min_rows", 5)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.concurrency", 4)
	v.SetDefault("llm.chunk_lines", 50)
	v.SetDefault("sms.sender", "AGRILINK")
	v.SetDefault("alert.enabled", true)
	v.SetDefault("alert.lookback_days", 180)
	v.SetDefault("schedule.cron", "0 6 * * *")

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
