package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketpulse/internal/store"
	"github.com/seenimoa/marketpulse/pkg/models"
)

// writeConfig writes a config file keeping all state inside a temp dir.
func writeConfig(t *testing.T, extra string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	body := `llm:
  primary: offline
storage:
  backend: csv
  dir: ` + dir + `
news:
  newsapi_key: newsapi-secret-123456
logging:
  level: error
` + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "MarketPulse dev")
}

func TestConfigPrintsMaskedYAML(t *testing.T) {
	path, dir := writeConfig(t, "")
	out, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "dir: "+dir)
	assert.Contains(t, out, "primary: offline")
	assert.NotContains(t, out, "newsapi-secret-123456")
}

func TestStatusListsKeys(t *testing.T) {
	path, _ := writeConfig(t, "")
	out, err := run(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "NewsAPI Key:")
	assert.Contains(t, out, "Storage:       csv")
}

func TestStatusPingsProviders(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer down.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `llm:
  primary: ollama
  ollama_url: ` + up.URL + `
  openai_key: sk-test-123456
  openai_url: ` + down.URL + `
storage:
  dir: ` + dir + `
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	out, err := run(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "LLM Providers:")
	assert.Regexp(t, `ollama:\s+.*reachable`, out)
	assert.Regexp(t, `openai:\s+.*invalid API key`, out)
}

func TestStatusOfflineSkipsPing(t *testing.T) {
	path, _ := writeConfig(t, "")
	out, err := run(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "offline keyword scorer")
}

func TestTrendReadsLog(t *testing.T) {
	path, dir := writeConfig(t, "")
	st, err := store.NewCSVStore(dir)
	require.NoError(t, err)
	today := models.Day(time.Now())
	for _, s := range []models.Sentiment{models.Bullish, models.Bullish, models.Bearish} {
		require.NoError(t, st.Append(models.SentimentRecord{Date: today, Ticker: "TSLA", Sentiment: s, Source: "rss"}))
	}
	require.NoError(t, st.Close())

	svg := filepath.Join(dir, "trend.svg")
	out, err := run(t, "--config", path, "trend", "tsla", "--source", "rss", "--window", "7", "--svg", svg)
	require.NoError(t, err)
	assert.Contains(t, out, "TSLA sentiment from rss")
	assert.Contains(t, out, "3 articles")

	data, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<svg"))
}

func TestTrendMissingLog(t *testing.T) {
	path, _ := writeConfig(t, "")
	out, err := run(t, "--config", path, "trend", "TSLA", "--source", "newsapi")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.NotContains(t, out, "articles)")
}

func TestTrendRejectsNegativeWindow(t *testing.T) {
	path, _ := writeConfig(t, "")
	_, err := run(t, "--config", path, "trend", "TSLA", "--window", "-1")
	assert.Error(t, err)
}

func TestScanUnknownSourceDryRun(t *testing.T) {
	path, dir := writeConfig(t, "")
	out, err := run(t, "--config", path, "scan", "TSLA", "--source", "sheets", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown news source")

	_, statErr := os.Stat(filepath.Join(dir, "processed_sheets.csv"))
	assert.True(t, os.IsNotExist(statErr), "dry run must not create files")
}

func TestScanRejectsBadSentimentFilter(t *testing.T) {
	path, _ := writeConfig(t, "")
	_, err := run(t, "--config", path, "scan", "TSLA", "--sentiment", "euphoric")
	assert.ErrorContains(t, err, "unknown sentiment")
}

func TestParseSentimentFilter(t *testing.T) {
	got, err := parseSentimentFilter("Bullish, neutral")
	require.NoError(t, err)
	assert.Equal(t, []models.Sentiment{models.Bullish, models.Neutral}, got)

	got, err = parseSentimentFilter("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
