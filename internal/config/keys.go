package config

import "gopkg.in/yaml.v3"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of all credentials the app can use.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "MARKETPULSE_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("NewsAPI Key", cfg.News.NewsAPIKey, "MARKETPULSE_NEWS_NEWSAPI_KEY", "NEWS_API_KEY"),
		checkKey("Telegram Bot Token", cfg.Telegram.BotToken, "MARKETPULSE_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"),
		checkKey("Telegram Chat ID", cfg.Telegram.ChatID, "MARKETPULSE_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if firstEnv(envVars...) != "" {
			status.Source = KeySourceEnv
		} else {
			status.Source = KeySourceConfig
		}
		status.Masked = maskKey(value)
	} else {
		status.Source = KeySourceNone
	}

	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Redacted returns a copy of cfg with every secret masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Tickers = append([]string(nil), c.Tickers...)
	out.API.CORSOrigins = append([]string(nil), c.API.CORSOrigins...)
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return maskKey(s)
	}
	out.LLM.OpenAIKey = mask(c.LLM.OpenAIKey)
	out.News.NewsAPIKey = mask(c.News.NewsAPIKey)
	out.Telegram.BotToken = mask(c.Telegram.BotToken)
	return &out
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}

