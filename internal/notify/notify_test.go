package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/logging"
)

// ── Telegram ──

func TestTelegramSendPayload(t *testing.T) {
	var (
		path string
		form url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{APIURL: srv.URL, BotToken: "123:abc", ChatID: "42"},
		WithHTTPClient(srv.Client()), WithLogger(logging.Discard()))
	tg.Send(context.Background(), "📰 $TSLA\n\nhello")

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", form.Get("chat_id"))
	assert.Equal(t, "📰 $TSLA\n\nhello", form.Get("text"))
	assert.Equal(t, "Markdown", form.Get("parse_mode"))
}

func TestTelegramSkipsWhenUnconfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	for _, cfg := range []config.TelegramConfig{
		{APIURL: srv.URL, ChatID: "42"},
		{APIURL: srv.URL, BotToken: "123:abc"},
	} {
		tg := NewTelegram(cfg, WithHTTPClient(srv.Client()), WithLogger(logging.Discard()))
		assert.False(t, tg.Configured())
		tg.Send(context.Background(), "hi")
	}
	assert.False(t, called, "no request should be made without token and chat id")
}

func TestTelegramFailuresDoNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	tg := NewTelegram(config.TelegramConfig{APIURL: srv.URL, BotToken: "t", ChatID: "1"},
		WithHTTPClient(srv.Client()), WithLogger(logging.Discard()))
	tg.Send(context.Background(), "rejected")

	srv.Close()
	tg.Send(context.Background(), "unreachable")
}

func TestNewPicksNotifier(t *testing.T) {
	assert.IsType(t, Discard{}, New(config.TelegramConfig{}, logging.Discard()))
	assert.IsType(t, &Telegram{}, New(config.TelegramConfig{BotToken: "t", ChatID: "1"}, logging.Discard()))
}

// ── Digest ──

func TestDigestFormat(t *testing.T) {
	d := NewDigest("TSLA")
	assert.True(t, d.Empty())

	d.Add("Tesla beats", "Sentiment: Bullish; Suggested action: Buy")
	d.Add("Ignored", "Error summarizing: timeout")
	d.Add("Recall news", "Sentiment: Bearish\nSuggested Action: Trim")
	d.Add("Flat", "Sentiment: Neutral")

	want := "📰 $TSLA\n\n" +
		"🔹 *Tesla beats*  \n🧠 Sentiment: Bullish Suggested action: Buy\n\n" +
		"🔹 *Recall news*  \n🧠 Sentiment: Bearish Suggested Action: Trim\n\n" +
		"🔹 *Flat*  \n🧠 Sentiment: Neutral\n"
	assert.Equal(t, want, d.String())
	assert.False(t, d.Empty())
	assert.Equal(t, 3, d.Len())
}

func TestDigestOnlyErrorsIsEmpty(t *testing.T) {
	d := NewDigest("market")
	d.Add("a", "Error summarizing: quota")
	assert.True(t, d.Empty())
	assert.Equal(t, "📰 $market\n", d.String())
}
