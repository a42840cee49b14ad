// Package notify delivers scan digests to a chat. Delivery is best effort:
// failures are logged and never returned to the caller.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/metrics"
)

// Notifier sends a text message somewhere.
type Notifier interface {
	Send(ctx context.Context, text string)
}

// Discard is a Notifier that drops every message.
type Discard struct{}

// Send implements Notifier.
func (Discard) Send(context.Context, string) {}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	apiURL    string
	token     string
	chatID    string
	parseMode string
	client    *http.Client
	logger    *slog.Logger
}

// TelegramOption configures a Telegram notifier.
type TelegramOption func(*Telegram)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TelegramOption {
	return func(t *Telegram) { t.logger = l }
}

// NewTelegram creates a Telegram notifier from config.
func NewTelegram(cfg config.TelegramConfig, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		token:     cfg.BotToken,
		chatID:    cfg.ChatID,
		parseMode: cfg.ParseMode,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    slog.Default(),
	}
	if t.apiURL == "" {
		t.apiURL = "https://api.telegram.org"
	}
	if t.parseMode == "" {
		t.parseMode = "Markdown"
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configured reports whether both the bot token and the chat id are set.
func (t *Telegram) Configured() bool {
	return t.token != "" && t.chatID != ""
}

// Send implements Notifier.
func (t *Telegram) Send(ctx context.Context, text string) {
	if !t.Configured() {
		t.logger.Info("telegram bot token or chat id not set, skipping message")
		metrics.RecordDigest("skipped")
		return
	}

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", t.parseMode)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.logger.Warn("telegram request build failed", "error", err)
		metrics.RecordDigest("failed")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		// The error string carries the URL, and with it the token.
		t.logger.Warn("telegram send failed", "error", strings.ReplaceAll(err.Error(), t.token, "***"))
		metrics.RecordDigest("failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.logger.Warn("telegram send rejected", "status", resp.StatusCode, "body", string(body))
		metrics.RecordDigest("failed")
		return
	}
	t.logger.Info("telegram message sent", "status", resp.StatusCode)
	metrics.RecordDigest("sent")
}

// New returns the Telegram notifier when it is configured, else Discard.
func New(cfg config.TelegramConfig, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	t := NewTelegram(cfg, WithLogger(logger))
	if !t.Configured() {
		logger.Debug("telegram not configured, digests are discarded")
		return Discard{}
	}
	return t
}
