package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seenimoa/marketpulse/pkg/models"
)

var (
	processedHeader = []string{"url", "date"}
	sentimentHeader = []string{"date", "ticker", "sentiment"}
)

// CSVStore keeps one processed_<source>.csv and one sentiment_log_<source>.csv
// per source in a directory. Files are only ever appended to. The mutex
// serialises access within this process; separate processes writing the
// same directory are not coordinated.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

// NewCSVStore creates a store rooted at dir, creating the directory if needed.
func NewCSVStore(dir string) (*CSVStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

// ProcessedPath returns the dedup file for a source.
func (s *CSVStore) ProcessedPath(source string) string {
	return filepath.Join(s.dir, "processed_"+sourceKey(source)+".csv")
}

// LogPath returns the sentiment log file for a source.
func (s *CSVStore) LogPath(source string) string {
	return filepath.Join(s.dir, "sentiment_log_"+sourceKey(source)+".csv")
}

func (s *CSVStore) IsProcessed(url, source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isProcessed(url, source)
}

func (s *CSVStore) MarkProcessed(url, source string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markProcessed(url, source, date)
}

func (s *CSVStore) Append(rec models.SentimentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(rec)
}

func (s *CSVStore) LogOnce(url string, rec models.SentimentRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = normalizeRecord(rec)
	if s.isProcessed(url, rec.Source) {
		return false, nil
	}
	if err := s.append(rec); err != nil {
		return false, err
	}
	if err := s.markProcessed(url, rec.Source, rec.Date); err != nil {
		return true, err
	}
	return true, nil
}

func (s *CSVStore) Scan(source string) ([]models.SentimentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkSource(source); err != nil {
		return nil, err
	}
	path := s.LogPath(source)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrLogMissing
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	src := sourceKey(source)
	var (
		records  []models.SentimentRecord
		dataRows int
	)
	err = readRows(f, sentimentHeader, func(row []string) bool {
		dataRows++
		if len(row) < 3 {
			return true
		}
		date, err := models.ParseDay(row[0])
		if err != nil {
			return true
		}
		records = append(records, models.SentimentRecord{
			Date:      date,
			Ticker:    row[1],
			Sentiment: models.ParseSentiment(row[2]),
			Source:    src,
		})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if dataRows == 0 {
		return nil, ErrLogEmpty
	}
	return records, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) isProcessed(url, source string) bool {
	if checkSource(source) != nil {
		return false
	}
	f, err := os.Open(s.ProcessedPath(source))
	if err != nil {
		return false
	}
	defer f.Close()

	found := false
	err = readRows(f, processedHeader, func(row []string) bool {
		if len(row) > 0 && row[0] == url {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return false
	}
	return found
}

func (s *CSVStore) markProcessed(url, source string, date time.Time) error {
	if err := checkSource(source); err != nil {
		return err
	}
	row := []string{url, dayOrToday(date).Format(models.DateLayout)}
	return appendRow(s.ProcessedPath(source), processedHeader, row)
}

func (s *CSVStore) append(rec models.SentimentRecord) error {
	rec = normalizeRecord(rec)
	if err := checkSource(rec.Source); err != nil {
		return err
	}
	row := []string{rec.Date.Format(models.DateLayout), rec.Ticker, string(rec.Sentiment)}
	return appendRow(s.LogPath(rec.Source), sentimentHeader, row)
}

// appendRow appends one row to path, writing header first when the file is
// new or zero-length.
func appendRow(path string, header, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("writing header to %s: %w", path, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing row to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// readRows calls fn for every data row of r until fn returns false.
// A leading row equal to header is skipped; blank lines are ignored.
func readRows(r io.Reader, header []string, fn func(row []string) bool) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if first {
			first = false
			if isHeader(row, header) {
				continue
			}
		}
		if !fn(row) {
			return nil
		}
	}
}

func isHeader(row, header []string) bool {
	if len(row) != len(header) {
		return false
	}
	for i := range row {
		if row[i] != header[i] {
			return false
		}
	}
	return true
}
