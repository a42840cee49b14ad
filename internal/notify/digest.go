package notify

import (
	"strings"

	"github.com/seenimoa/marketpulse/internal/sentiment"
)

// Digest collects one scan's summaries into a single chat message.
type Digest struct {
	lines    []string
	articles int
}

// NewDigest starts a digest for subject, e.g. "TSLA" renders as "📰 $TSLA".
func NewDigest(subject string) *Digest {
	return &Digest{lines: []string{"📰 $" + subject, ""}}
}

// Add appends an article's title and classifier summary. Error summaries
// are left out.
func (d *Digest) Add(title, summary string) {
	if sentiment.IsClassifierError(summary) {
		return
	}
	if title == "" {
		title = "No title"
	}
	sent, action := sentiment.ParseSummary(summary)
	d.lines = append(d.lines,
		"🔹 *"+title+"*  ",
		strings.TrimSpace("🧠 "+sent+" "+action),
		"",
	)
	d.articles++
}

// Empty reports whether no article was added.
func (d *Digest) Empty() bool { return d.articles == 0 }

// Len returns the number of articles in the digest.
func (d *Digest) Len() int { return d.articles }

// String renders the message.
func (d *Digest) String() string {
	return strings.Join(d.lines, "\n")
}
