// Package store persists the two append-only logs behind the scan pipeline:
// the per-source set of processed article URLs and the per-source sentiment
// log. Three backends share one interface: CSV files (the default), SQLite
// and an in-memory store for tests and dry runs.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

var (
	// ErrLogMissing is returned by Scan when a source has no sentiment log.
	ErrLogMissing = errors.New("store: sentiment log does not exist")
	// ErrLogEmpty is returned by Scan when a source log holds no data rows.
	ErrLogEmpty = errors.New("store: sentiment log is empty")
	// ErrInvalidSource is returned when a source name cannot name a log.
	ErrInvalidSource = errors.New("store: invalid source name")
)

// DedupStore tracks which (url, source) pairs have already been logged.
type DedupStore interface {
	// IsProcessed reports whether url was marked for source. Read failures
	// report false.
	IsProcessed(url, source string) bool
	// MarkProcessed records url for source. A zero date means today.
	MarkProcessed(url, source string, date time.Time) error
}

// SentimentLog is the append-only per-source sentiment record.
type SentimentLog interface {
	// Append writes one record to the log named by rec.Source.
	// A zero rec.Date means today.
	Append(rec models.SentimentRecord) error
	// Scan returns every record of a source log in write order.
	Scan(source string) ([]models.SentimentRecord, error)
}

// Store combines both logs. LogOnce performs check, append and mark as one
// step, so concurrent callers in the same process cannot double-log a URL.
type Store interface {
	DedupStore
	SentimentLog
	// LogOnce appends rec and marks url unless url is already processed for
	// rec.Source. It reports whether the record was written.
	LogOnce(url string, rec models.SentimentRecord) (bool, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the store selected by cfg.Backend.
func Open(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendCSV:
		return NewCSVStore(cfg.Dir)
	case BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q (want csv, sqlite or memory)", cfg.Backend)
	}
}

// sourceKey is the namespace a source is stored under.
func sourceKey(source string) string {
	return utils.NormalizeSource(source)
}

// checkSource rejects source names that would escape the store directory
// once joined into a file name.
func checkSource(source string) error {
	key := sourceKey(source)
	if strings.Contains(key, "..") || strings.ContainsAny(key, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	return nil
}

// dayOrToday returns the calendar day of t, or today when t is zero.
func dayOrToday(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return models.Day(t)
}

// normalizeRecord fills the defaults every backend applies on write.
func normalizeRecord(rec models.SentimentRecord) models.SentimentRecord {
	rec.Date = dayOrToday(rec.Date)
	rec.Source = sourceKey(rec.Source)
	if rec.Sentiment == "" {
		rec.Sentiment = models.Unknown
	}
	return rec
}
