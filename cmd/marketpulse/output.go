package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/seenimoa/marketpulse/internal/pipeline"
	"github.com/seenimoa/marketpulse/internal/trend"
	"github.com/seenimoa/marketpulse/pkg/models"
)

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

// newTable creates a borderless, left-aligned table.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
		}),
	)
}

func sentimentColor(s models.Sentiment) *color.Color {
	switch s {
	case models.Bullish:
		return okColor
	case models.Bearish:
		return errColor
	case models.Neutral:
		return dimColor
	default:
		return warnColor
	}
}

func printResults(w io.Writer, results []pipeline.ArticleResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No articles match the selected filters.")
		return
	}
	table := newTable(w)
	table.Header([]string{"Date", "Sentiment", "Status", "Title"})
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		title := r.Article.Title
		if title == "" {
			title = "No title"
		}
		if runes := []rune(title); len(runes) > 80 {
			title = string(runes[:77]) + "..."
		}
		day := ""
		if !r.Article.PublishedAt.IsZero() {
			day = r.Article.PublishedAt.Format(models.DateLayout)
		}
		rows = append(rows, []string{
			day,
			sentimentColor(r.Sentiment).Sprint(r.Sentiment.Title()),
			string(r.Status),
			title,
		})
	}
	table.Bulk(rows)
	table.Render()
}

func printCounts(w io.Writer, counts map[models.Sentiment]int) {
	fmt.Fprintf(w, "%s  %s  %s\n",
		okColor.Sprintf("🟢 Bullish %d", counts[models.Bullish]),
		errColor.Sprintf("🔴 Bearish %d", counts[models.Bearish]),
		dimColor.Sprintf("⚪ Neutral %d", counts[models.Neutral]),
	)
}

func printTrend(w io.Writer, res trend.Result) {
	subject := res.Ticker
	if subject == "" {
		subject = "all tickers"
	}
	fmt.Fprintf(w, "📈 %s sentiment from %s (last %d days, %d articles)\n", subject, res.Source, res.WindowDays, res.Total)

	table := newTable(w)
	table.Header([]string{"Date", "Sentiment", "Count"})
	rows := make([][]string, 0, len(res.Points))
	for _, p := range res.Points {
		rows = append(rows, []string{
			p.Date.Format(models.DateLayout),
			sentimentColor(p.Sentiment).Sprint(p.Sentiment.Title()),
			fmt.Sprint(p.Count),
		})
	}
	table.Bulk(rows)
	table.Render()
}

func printQuote(w io.Writer, q *models.Quote) {
	name := q.Name
	if name == "" {
		name = q.Ticker
	}
	change := q.ChangePct()
	c := dimColor
	switch change.Sign() {
	case 1:
		c = okColor
	case -1:
		c = errColor
	}
	fmt.Fprintf(w, "%s (%s)\n", name, q.Ticker)
	fmt.Fprintf(w, "  %s  %s\n", q.DisplayPrice(), c.Sprintf("%s%%", change.StringFixed(2)))
}
