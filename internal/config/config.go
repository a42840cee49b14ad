// Package config handles configuration loading for MarketPulse.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"      json:"llm"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"     json:"news"`
	Quote    QuoteConfig    `mapstructure:"quote"    yaml:"quote"    json:"quote"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram" json:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"  json:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Tickers  []string       `mapstructure:"tickers"  yaml:"tickers"  json:"tickers"`
	Calendar CalendarConfig `mapstructure:"calendar" yaml:"calendar" json:"calendar"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`
}

// LLMConfig holds sentiment classifier configuration.
type LLMConfig struct {
	Primary     string  `mapstructure:"primary"     yaml:"primary"     json:"primary"` // "openai", "ollama", "offline"
	OpenAIKey   string  `mapstructure:"openai_key"  yaml:"openai_key"  json:"-"`
	OpenAIURL   string  `mapstructure:"openai_url"  yaml:"openai_url"  json:"openai_url"`
	OllamaURL   string  `mapstructure:"ollama_url"  yaml:"ollama_url"  json:"ollama_url"`
	Model       string  `mapstructure:"model"       yaml:"model"       json:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"  json:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// NewsConfig holds news provider settings.
type NewsConfig struct {
	NewsAPIKey     string `mapstructure:"newsapi_key"     yaml:"newsapi_key"     json:"-"`
	NewsAPIURL     string `mapstructure:"newsapi_url"     yaml:"newsapi_url"     json:"newsapi_url"`
	PageSize       int    `mapstructure:"page_size"       yaml:"page_size"       json:"page_size"`
	ExcludeDomains string `mapstructure:"exclude_domains" yaml:"exclude_domains" json:"exclude_domains"`
	RSSTickerURL   string `mapstructure:"rss_ticker_url"  yaml:"rss_ticker_url"  json:"rss_ticker_url"` // %s is replaced by the ticker
	RSSMarketURL   string `mapstructure:"rss_market_url"  yaml:"rss_market_url"  json:"rss_market_url"`
	RSSMaxItems    int    `mapstructure:"rss_max_items"   yaml:"rss_max_items"   json:"rss_max_items"`
	LookbackDays   int    `mapstructure:"lookback_days"   yaml:"lookback_days"   json:"lookback_days"`
	CacheTTL       int    `mapstructure:"cache_ttl"       yaml:"cache_ttl"       json:"cache_ttl"` // seconds
	RatePerSecond  int    `mapstructure:"rate_per_second" yaml:"rate_per_second" json:"rate_per_second"`
}

// QuoteConfig holds price quote settings.
type QuoteConfig struct {
	ChartURL string `mapstructure:"chart_url" yaml:"chart_url" json:"chart_url"`
	CacheTTL int    `mapstructure:"cache_ttl" yaml:"cache_ttl" json:"cache_ttl"` // seconds
}

// TelegramConfig holds digest delivery settings.
type TelegramConfig struct {
	BotToken  string `mapstructure:"bot_token"  yaml:"bot_token"  json:"-"`
	ChatID    string `mapstructure:"chat_id"    yaml:"chat_id"    json:"chat_id"`
	APIURL    string `mapstructure:"api_url"    yaml:"api_url"    json:"api_url"`
	ParseMode string `mapstructure:"parse_mode" yaml:"parse_mode" json:"parse_mode"`
}

// StorageConfig selects and configures the dedup/sentiment store.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"     yaml:"backend"     json:"backend"` // "csv", "sqlite", "memory"
	Dir        string `mapstructure:"dir"         yaml:"dir"         json:"dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path" json:"sqlite_path"`
}

// PipelineConfig holds scan pipeline settings.
type PipelineConfig struct {
	Concurrency int  `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	WindowDays  int  `mapstructure:"window_days" yaml:"window_days" json:"window_days"`
	Notify      bool `mapstructure:"notify"      yaml:"notify"      json:"notify"`
}

// CalendarConfig points at the market events file.
type CalendarConfig struct {
	File string `mapstructure:"file" yaml:"file" json:"file"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Addr returns the listen address for the API server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketpulse/config.yaml (home directory)
//  3. /etc/marketpulse/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETPULSE_<SECTION>_<KEY>, e.g., MARKETPULSE_NEWS_NEWSAPI_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketpulse"))
	v.AddConfigPath("/etc/marketpulse")

	v.SetEnvPrefix("MARKETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; defaults + env vars are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.openai_url", "https://api.openai.com/v1")
	v.SetDefault("llm.ollama_url", "")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 256)
	v.SetDefault("llm.timeout_sec", 60)

	// News defaults
	v.SetDefault("news.newsapi_url", "https://newsapi.org/v2/everything")
	v.SetDefault("news.page_size", 6)
	v.SetDefault("news.exclude_domains", "yahoo.com")
	v.SetDefault("news.rss_ticker_url", "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US")
	v.SetDefault("news.rss_market_url", "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%5EDJI&region=US&lang=en-US")
	v.SetDefault("news.rss_max_items", 10)
	v.SetDefault("news.lookback_days", 7)
	v.SetDefault("news.cache_ttl", 3600)
	v.SetDefault("news.rate_per_second", 2)

	// Quote defaults
	v.SetDefault("quote.chart_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("quote.cache_ttl", 60)

	// Telegram defaults
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.parse_mode", "Markdown")

	// Storage defaults
	v.SetDefault("storage.backend", "csv")
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.sqlite_path", "marketpulse.db")

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.window_days", 7)
	v.SetDefault("pipeline.notify", true)

	v.SetDefault("tickers", []string{"OKLO", "HOOD", "TSLA", "PLTR", "TEM"})
	v.SetDefault("calendar.file", "calendar_events.json")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8501)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The unprefixed names are the ones a plain .env file usually carries.
func overrideFromEnv(cfg *Config) {
	if key := firstEnv("MARKETPULSE_LLM_OPENAI_KEY", "OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := firstEnv("MARKETPULSE_NEWS_NEWSAPI_KEY", "NEWS_API_KEY"); key != "" {
		cfg.News.NewsAPIKey = key
	}
	if key := firstEnv("MARKETPULSE_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"); key != "" {
		cfg.Telegram.BotToken = key
	}
	if id := firstEnv("MARKETPULSE_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"); id != "" {
		cfg.Telegram.ChatID = id
	}
}

// firstEnv returns the value of the first non-empty environment variable.
func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
