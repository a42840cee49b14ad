// Package web embeds the HTML templates and static assets of the dashboard
// so the server ships as a single binary.
//
// Each page template defines a "content" block rendered inside layout.html:
//
//	pages, err := web.Pages()
//	err = pages["ticker"].ExecuteTemplate(w, "layout", data)
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/pkg/models"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed static
var static embed.FS

// PageNames lists the pages Pages parses.
var PageNames = []string{"ticker", "market", "dashboard"}

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"title": func(s models.Sentiment) string { return s.Title() },
	"icon":  SentimentIcon,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(models.DateLayout)
	},
	"join":     strings.Join,
	"contains": contains,
}

// Pages parses layout.html together with each page template.
func Pages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(PageNames))
	for _, name := range PageNames {
		t, err := template.New("layout.html").Funcs(Funcs).ParseFS(templates,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// StaticFS returns the static assets rooted at static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// The directory is embedded at compile time; Sub only fails on a bad path.
		panic(err)
	}
	return sub
}

// SentimentIcon returns the marker shown next to a sentiment label.
func SentimentIcon(s models.Sentiment) string {
	switch s {
	case models.Bullish:
		return "🟢"
	case models.Bearish:
		return "🔴"
	case models.Neutral:
		return "⚪"
	default:
		return "❔"
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
