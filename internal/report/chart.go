// Package report renders sentiment trend charts as SVG for the dashboard
// and the CLI.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/internal/trend"
	"github.com/seenimoa/marketpulse/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator — Pure Go, Zero Dependencies
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 400)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 110)
	MarginBottom int    // bottom margin (default: 50)
	MarginLeft   int    // left margin (default: 60)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // axis label color (default: "#333333")
	FontSize     int    // axis label font size (default: 11)
	Title        string // chart title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  110,
		MarginBottom: 50,
		MarginLeft:   60,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// withDefaults fills a zero config, keeping a caller-supplied title.
func (c ChartConfig) withDefaults(title string) ChartConfig {
	if c.Width == 0 {
		t := c.Title
		c = DefaultChartConfig()
		c.Title = t
	}
	if c.Title == "" {
		c.Title = title
	}
	return c
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// SentimentColors maps each label to its chart color.
var SentimentColors = map[models.Sentiment]string{
	models.Bullish: "#2e7d32",
	models.Neutral: "#9e9e9e",
	models.Bearish: "#c62828",
	models.Unknown: "#e0e0e0",
}

// stackOrder is the bottom-to-top order of stacked bars.
var stackOrder = []models.Sentiment{models.Bullish, models.Neutral, models.Bearish}

// ════════════════════════════════════════════════════════════════════
// Trend Charts
// ════════════════════════════════════════════════════════════════════

// TrendBarChart draws one stacked bar per date with a segment per sentiment.
func TrendBarChart(points []models.TrendPoint, cfg ChartConfig) string {
	if len(points) == 0 {
		return emptySVG(cfg, "No sentiment data")
	}
	cfg = cfg.withDefaults("Sentiment Trend")
	dates, counts := pivot(points)

	maxTotal := 0
	for _, d := range dates {
		total := 0
		for _, c := range counts[d] {
			total += c
		}
		if total > maxTotal {
			maxTotal = total
		}
	}
	if maxTotal == 0 {
		maxTotal = 1
	}

	px, py, pw, ph := cfg.plotArea()
	var sb strings.Builder
	writeFrame(&sb, cfg)
	writeCountAxis(&sb, cfg, maxTotal)

	slot := float64(pw) / float64(len(dates))
	barW := slot * 0.6
	if barW > 60 {
		barW = 60
	}
	for i, d := range dates {
		cx := float64(px) + slot*float64(i) + slot/2
		base := float64(py + ph)
		for _, s := range stackOrder {
			n := counts[d][s]
			if n == 0 {
				continue
			}
			h := float64(n) / float64(maxTotal) * float64(ph)
			base -= h
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s %s: %d</title></rect>`,
				cx-barW/2, base, barW, h, SentimentColors[s], d.Format(models.DateLayout), s.Title(), n)
		}
	}
	writeDateLabels(&sb, cfg, dates, func(i int) float64 {
		return float64(px) + slot*float64(i) + slot/2
	})
	writeLegend(&sb, cfg, stackOrder, "rect")

	sb.WriteString("</svg>")
	return sb.String()
}

// TrendLineChart draws one line per sentiment across the dates.
func TrendLineChart(points []models.TrendPoint, cfg ChartConfig) string {
	if len(points) == 0 {
		return emptySVG(cfg, "No sentiment data")
	}
	cfg = cfg.withDefaults("Sentiment Over Time")
	dates, counts := pivot(points)

	maxCount := 0
	for _, d := range dates {
		for _, c := range counts[d] {
			if c > maxCount {
				maxCount = c
			}
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	px, py, pw, ph := cfg.plotArea()
	xAt := func(i int) float64 {
		if len(dates) == 1 {
			return float64(px) + float64(pw)/2
		}
		return float64(px) + float64(i)*float64(pw)/float64(len(dates)-1)
	}
	yAt := func(n int) float64 {
		return float64(py+ph) - float64(n)/float64(maxCount)*float64(ph)
	}

	var sb strings.Builder
	writeFrame(&sb, cfg)
	writeCountAxis(&sb, cfg, maxCount)

	for _, s := range models.KnownSentiments {
		var pathParts []string
		for i, d := range dates {
			cmd := "L"
			if len(pathParts) == 0 {
				cmd = "M"
			}
			pathParts = append(pathParts, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), yAt(counts[d][s])))
		}
		color := SentimentColors[s]
		fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2" data-sentiment="%s"/>`,
			strings.Join(pathParts, " "), color, s)
		for i, d := range dates {
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`, xAt(i), yAt(counts[d][s]), color)
		}
	}
	writeDateLabels(&sb, cfg, dates, xAt)
	writeLegend(&sb, cfg, models.KnownSentiments, "line")

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Distribution Chart (Horizontal, Grouped)
// ════════════════════════════════════════════════════════════════════

// DistributionChart draws one group of horizontal bars per ticker/source
// pair, a bar per sentiment.
func DistributionChart(rows []trend.DistributionRow, cfg ChartConfig) string {
	if len(rows) == 0 {
		return emptySVG(cfg, "No sentiment data")
	}
	cfg = cfg.withDefaults("Sentiment Distribution")
	cfg.MarginLeft = 140 // wider for labels

	type group struct {
		label string
		bars  []trend.DistributionRow
	}
	var groups []group
	index := map[string]int{}
	maxVal := 0
	for _, r := range rows {
		label := r.Ticker + " · " + r.Source
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, group{label: label})
		}
		groups[i].bars = append(groups[i].bars, r)
		if r.Count > maxVal {
			maxVal = r.Count
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	nBars := 0
	for _, g := range groups {
		nBars += len(g.bars)
	}
	// Grow the canvas so bars stay readable.
	if need := cfg.MarginTop + cfg.MarginBottom + nBars*14 + len(groups)*10; need > cfg.Height {
		cfg.Height = need
	}

	px, py, pw, ph := cfg.plotArea()
	barH := float64(ph) / float64(nBars+len(groups)) * 0.9
	if barH > 18 {
		barH = 18
	}
	gap := barH * 0.6

	var sb strings.Builder
	writeFrame(&sb, cfg)

	y := float64(py)
	for _, g := range groups {
		top := y
		for _, r := range g.bars {
			w := float64(r.Count) / float64(maxVal) * float64(pw)
			fmt.Fprintf(&sb, `<rect x="%d" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"><title>%s %s: %d</title></rect>`,
				px, y, w, barH, SentimentColors[r.Sentiment], escapeXML(g.label), r.Sentiment.Title(), r.Count)
			fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%d</text>`,
				float64(px)+w+4, y+barH-3, cfg.FontSize-1, cfg.TextColor, r.Count)
			y += barH
		}
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-6, (top+y)/2+4, cfg.FontSize, cfg.TextColor, escapeXML(g.label))
		y += gap
	}
	writeLegend(&sb, cfg, models.KnownSentiments, "rect")

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// SVG Helpers
// ════════════════════════════════════════════════════════════════════

// pivot returns the sorted dates and the counts per date and sentiment.
func pivot(points []models.TrendPoint) ([]time.Time, map[time.Time]map[models.Sentiment]int) {
	counts := make(map[time.Time]map[models.Sentiment]int)
	var dates []time.Time
	for _, p := range points {
		d := models.Day(p.Date)
		if _, ok := counts[d]; !ok {
			counts[d] = make(map[models.Sentiment]int)
			dates = append(dates, d)
		}
		counts[d][p.Sentiment] += p.Count
	}
	for i := 1; i < len(dates); i++ {
		for j := i; j > 0 && dates[j].Before(dates[j-1]); j-- {
			dates[j], dates[j-1] = dates[j-1], dates[j]
		}
	}
	return dates, counts
}

func writeFrame(sb *strings.Builder, cfg ChartConfig) {
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))
}

// writeCountAxis draws horizontal grid lines labelled with whole counts.
func writeCountAxis(sb *strings.Builder, cfg ChartConfig, maxCount int) {
	px, py, pw, ph := cfg.plotArea()
	steps := maxCount
	if steps > 5 {
		steps = 5
	}
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		val := float64(maxCount) * float64(i) / float64(steps)
		y := py + ph - int(float64(ph)*float64(i)/float64(steps))
		fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(sb, `<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="end">%.0f</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, val)
	}
}

func writeDateLabels(sb *strings.Builder, cfg ChartConfig, dates []time.Time, xAt func(int) float64) {
	_, py, _, ph := cfg.plotArea()
	interval := len(dates) / 8
	if interval < 1 {
		interval = 1
	}
	for i := 0; i < len(dates); i += interval {
		fmt.Fprintf(sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			xAt(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, dates[i].Format("Jan 2"))
	}
}

func writeLegend(sb *strings.Builder, cfg ChartConfig, labels []models.Sentiment, mark string) {
	px, py, pw, _ := cfg.plotArea()
	lx := px + pw + 15
	for i, s := range labels {
		ly := py + 10 + i*18
		color := SentimentColors[s]
		if mark == "line" {
			fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
				lx, ly, lx+18, ly, color)
		} else {
			fmt.Fprintf(sb, `<rect x="%d" y="%d" width="12" height="12" fill="%s"/>`, lx+3, ly-6, color)
		}
		fmt.Fprintf(sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			lx+24, ly+4, cfg.TextColor, s.Title())
	}
}

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
