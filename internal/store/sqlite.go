package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// SQLiteStore keeps both logs in one SQLite database. The primary key on
// processed(url, source) makes LogOnce safe across connections.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. ":memory:" works too.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS processed (
			url    TEXT NOT NULL,
			source TEXT NOT NULL,
			date   TEXT NOT NULL,
			PRIMARY KEY (url, source)
		);

		CREATE TABLE IF NOT EXISTS sentiment_log (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			source    TEXT NOT NULL,
			date      TEXT NOT NULL,
			ticker    TEXT NOT NULL,
			sentiment TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sentiment_log_source ON sentiment_log(source, date);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsProcessed(url, source string) bool {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM processed WHERE url = ? AND source = ? LIMIT 1`,
		url, sourceKey(source),
	).Scan(&one)
	return err == nil
}

func (s *SQLiteStore) MarkProcessed(url, source string, date time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO processed (url, source, date) VALUES (?, ?, ?)`,
		url, sourceKey(source), dayOrToday(date).Format(models.DateLayout),
	)
	if err != nil {
		return fmt.Errorf("marking %s processed: %w", url, err)
	}
	return nil
}

func (s *SQLiteStore) Append(rec models.SentimentRecord) error {
	rec = normalizeRecord(rec)
	_, err := s.db.Exec(
		`INSERT INTO sentiment_log (source, date, ticker, sentiment) VALUES (?, ?, ?, ?)`,
		rec.Source, rec.Date.Format(models.DateLayout), rec.Ticker, string(rec.Sentiment),
	)
	if err != nil {
		return fmt.Errorf("appending sentiment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LogOnce(url string, rec models.SentimentRecord) (bool, error) {
	rec = normalizeRecord(rec)

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO processed (url, source, date) VALUES (?, ?, ?)`,
		url, rec.Source, rec.Date.Format(models.DateLayout),
	)
	if err != nil {
		return false, fmt.Errorf("marking %s processed: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.Exec(
		`INSERT INTO sentiment_log (source, date, ticker, sentiment) VALUES (?, ?, ?, ?)`,
		rec.Source, rec.Date.Format(models.DateLayout), rec.Ticker, string(rec.Sentiment),
	)
	if err != nil {
		return false, fmt.Errorf("appending sentiment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Scan(source string) ([]models.SentimentRecord, error) {
	src := sourceKey(source)
	rows, err := s.db.Query(
		`SELECT date, ticker, sentiment FROM sentiment_log WHERE source = ? ORDER BY id`,
		src,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sentiment log: %w", err)
	}
	defer rows.Close()

	var (
		records  []models.SentimentRecord
		dataRows int
	)
	for rows.Next() {
		var date, ticker, label string
		if err := rows.Scan(&date, &ticker, &label); err != nil {
			return nil, fmt.Errorf("scanning sentiment row: %w", err)
		}
		dataRows++
		day, err := models.ParseDay(date)
		if err != nil {
			continue
		}
		records = append(records, models.SentimentRecord{
			Date:      day,
			Ticker:    ticker,
			Sentiment: models.ParseSentiment(label),
			Source:    src,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if dataRows == 0 {
		return nil, ErrLogEmpty
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
