package sentiment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/llm"
	"github.com/seenimoa/marketpulse/pkg/models"
)

// ── ExtractKeyword ──

func TestExtractKeyword(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Sentiment
	}{
		{"exact format", "Sentiment: Bullish\nSuggested Action: Buy the dip", models.Bullish},
		{"upper case", "SENTIMENT: BEARISH", models.Bearish},
		{"lower case", "the outlook is neutral", models.Neutral},
		{"semicolon format", "Sentiment: Neutral; Suggested action: Hold", models.Neutral},
		{"bullish wins over bearish", "Bearish near term but bullish long term", models.Bullish},
		{"bearish wins over neutral", "neutral to bearish", models.Bearish},
		{"embedded in word", "Analysts turned unbullishly cautious", models.Bullish},
		{"no keyword", "Sentiment: Positive\nSuggested Action: Buy", models.Unknown},
		{"empty", "", models.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeyword(tt.text))
			assert.Equal(t, tt.want, KeywordExtractor{}.Extract(tt.text))
		})
	}
}

func TestExtractorInterface(t *testing.T) {
	var e Extractor = KeywordExtractor{}
	assert.Equal(t, models.Bearish, e.Extract("Sentiment: Bearish"))
}

// ── IsClassifierError ──

func TestIsClassifierError(t *testing.T) {
	assert.True(t, IsClassifierError("Error summarizing: timeout"))
	assert.False(t, IsClassifierError("Sentiment: Bullish"))
	assert.False(t, IsClassifierError(" Error summarizing: leading space"))
	assert.False(t, IsClassifierError("error summarizing: lower case"))
}

// ── ParseSummary ──

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantSent   string
		wantAction string
	}{
		{"semicolon", "Sentiment: Bullish; Suggested action: Buy", "Sentiment: Bullish", "Suggested action: Buy"},
		{"newline", "Sentiment: Bearish\nSuggested Action: Trim", "Sentiment: Bearish", "Suggested Action: Trim"},
		{"mixed case marker", "Sentiment: Neutral SUGGESTED ACTION: wait", "Sentiment: Neutral", "SUGGESTED ACTION: wait"},
		{"semicolon wins", "a; b Suggested action: c", "a", "b Suggested action: c"},
		{"no marker", "Sentiment: Neutral", "Sentiment: Neutral", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, a := ParseSummary(tt.in)
			assert.Equal(t, tt.wantSent, s)
			assert.Equal(t, tt.wantAction, a)
		})
	}
}

// ── Prompt ──

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Tesla deliveries beat estimates.", "TSLA")
	assert.True(t, strings.HasPrefix(p, "You are analyzing a stock market news summary for the ticker TSLA.\n"))
	assert.Contains(t, p, "Respond in this exact format:\nSentiment: <Bullish | Bearish | Neutral>\nSuggested Action:")
	assert.True(t, strings.HasSuffix(p, "News Summary:\nTesla deliveries beat estimates."))
}

// ── LLMClassifier ──

type fakeProvider struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeProvider) Name() string                 { return "fake" }
func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) Chat(_ context.Context, messages []llm.Message, _ *llm.ChatOptions) (*llm.Response, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply}, nil
}

func TestLLMClassifierReply(t *testing.T) {
	p := &fakeProvider{reply: "  Sentiment: Bullish\nSuggested Action: Hold  "}
	c := NewLLMClassifier(p, nil, nil)

	got := c.Classify(context.Background(), "Palantir wins contract", "PLTR")
	assert.Equal(t, "Sentiment: Bullish\nSuggested Action: Hold", got)
	require.Len(t, p.messages, 1)
	assert.Contains(t, p.messages[0].Content, "ticker PLTR")
	assert.Contains(t, p.messages[0].Content, "Palantir wins contract")
}

func TestLLMClassifierEmptyText(t *testing.T) {
	p := &fakeProvider{reply: "Sentiment: Neutral"}
	NewLLMClassifier(p, nil, nil).Classify(context.Background(), "   ", "HOOD")
	require.Len(t, p.messages, 1)
	assert.True(t, strings.HasSuffix(p.messages[0].Content, NoSummary))
}

func TestLLMClassifierErrorSentinel(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection reset")}
	got := NewLLMClassifier(p, nil, nil).Classify(context.Background(), "news", "TEM")
	assert.True(t, IsClassifierError(got), got)
	assert.Equal(t, "Error summarizing: connection reset", got)
}

// ── OfflineClassifier ──

func TestScoreHeadline(t *testing.T) {
	score, conf := ScoreHeadline("Shares surge to record high after earnings beat")
	assert.Greater(t, score, 0.1)
	assert.Greater(t, conf, 0.1)

	score, _ = ScoreHeadline("Stock plunges amid fraud investigation")
	assert.Less(t, score, -0.1)

	score, conf = ScoreHeadline("Company schedules annual meeting")
	assert.Zero(t, score)
	assert.Equal(t, 0.1, conf)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, models.Bullish, Label(0.5))
	assert.Equal(t, models.Bearish, Label(-0.5))
	assert.Equal(t, models.Neutral, Label(0.1))
	assert.Equal(t, models.Neutral, Label(-0.1))
}

func TestOfflineClassifierRoundTrip(t *testing.T) {
	c := OfflineClassifier{}
	tests := []struct {
		text string
		want models.Sentiment
	}{
		{"Oklo shares surge on strong growth outlook", models.Bullish},
		{"Robinhood slumps after weak quarter and lawsuit", models.Bearish},
		{"Tempus to present at healthcare conference", models.Neutral},
		{"", models.Neutral},
	}
	for _, tt := range tests {
		reply := c.Classify(context.Background(), tt.text, "X")
		assert.True(t, strings.HasPrefix(reply, "Sentiment: "), reply)
		assert.Contains(t, reply, "\nSuggested Action: ")
		assert.Equal(t, tt.want, ExtractKeyword(reply), "text %q reply %q", tt.text, reply)
	}
}

func TestOfflineClassifierCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, IsClassifierError(OfflineClassifier{}.Classify(ctx, "x", "Y")))
}

// ── NewClassifier ──

func TestNewClassifierSelection(t *testing.T) {
	offline := NewClassifier(&config.Config{LLM: config.LLMConfig{Primary: "offline", OpenAIKey: "sk-x"}}, nil)
	assert.IsType(t, OfflineClassifier{}, offline)

	fallback := NewClassifier(&config.Config{LLM: config.LLMConfig{Primary: "openai"}}, nil)
	assert.IsType(t, OfflineClassifier{}, fallback, "no key means offline")

	withKey := NewClassifier(&config.Config{LLM: config.LLMConfig{Primary: "openai", OpenAIKey: "sk-test"}}, nil)
	assert.IsType(t, &LLMClassifier{}, withKey)
}
