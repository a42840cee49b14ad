package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/llm"
)

// NoSummary stands in for an article without a description.
const NoSummary = "No summary available."

// Classifier produces a free-form sentiment reply for a piece of news text
// about subject (a ticker or "market"). It never fails: failures come back
// as a reply starting with ErrorMarker.
type Classifier interface {
	Classify(ctx context.Context, text, subject string) string
}

// BuildPrompt returns the classification prompt for text about subject.
func BuildPrompt(text, subject string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing a stock market news summary for the ticker %s.\n", subject)
	b.WriteString("Your task is to classify the overall sentiment as one of the following:\n")
	b.WriteString("- Bullish (if the article suggests a positive outlook or upside)\n")
	b.WriteString("- Bearish (if it suggests risks, decline, or negative outcomes)\n")
	b.WriteString("- Neutral (if no clear direction is implied or it's too speculative)\n\n")
	b.WriteString("Avoid inferring sentiment unless there is clear evidence.\n")
	b.WriteString("If the article is too vague or mixed, choose Neutral.\n\n")
	b.WriteString("Respond in this exact format:\n")
	b.WriteString("Sentiment: <Bullish | Bearish | Neutral>\n")
	b.WriteString("Suggested Action: <a short recommendation to investors>\n\n")
	b.WriteString("News Summary:\n")
	b.WriteString(text)
	return b.String()
}

// LLMClassifier asks a language model for the sentiment.
type LLMClassifier struct {
	provider llm.LLMProvider
	opts     *llm.ChatOptions
	logger   *slog.Logger
}

// NewLLMClassifier wraps provider. opts may be nil.
func NewLLMClassifier(provider llm.LLMProvider, opts *llm.ChatOptions, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{provider: provider, opts: opts, logger: logger}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text, subject string) string {
	if strings.TrimSpace(text) == "" {
		text = NoSummary
	}
	resp, err := c.provider.Chat(ctx, []llm.Message{llm.UserMessage(BuildPrompt(text, subject))}, c.opts)
	if err != nil {
		c.logger.Warn("sentiment classification failed", "subject", subject, "error", err)
		return fmt.Sprintf("%s: %v", ErrorMarker, err)
	}
	return strings.TrimSpace(resp.Content)
}

// NewClassifier builds the classifier described by cfg. The "offline"
// primary, or a config with no usable LLM provider, yields the keyword
// scorer.
func NewClassifier(cfg *config.Config, logger *slog.Logger) Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.EqualFold(cfg.LLM.Primary, "offline") {
		return OfflineClassifier{}
	}
	router, err := llm.NewRouterFromConfig(cfg, logger)
	if err != nil {
		logger.Warn("no LLM provider configured, using offline sentiment scorer", "error", err)
		return OfflineClassifier{}
	}
	opts := &llm.ChatOptions{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}
	return NewLLMClassifier(router, opts, logger)
}
