package store

import (
	"sync"
	"time"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	processed map[string]map[string]time.Time // source -> url -> date
	logs      map[string][]models.SentimentRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processed: make(map[string]map[string]time.Time),
		logs:      make(map[string][]models.SentimentRecord),
	}
}

func (m *MemoryStore) IsProcessed(url, source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[sourceKey(source)][url]
	return ok
}

func (m *MemoryStore) MarkProcessed(url, source string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mark(url, sourceKey(source), date)
	return nil
}

func (m *MemoryStore) Append(rec models.SentimentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec = normalizeRecord(rec)
	m.logs[rec.Source] = append(m.logs[rec.Source], rec)
	return nil
}

func (m *MemoryStore) LogOnce(url string, rec models.SentimentRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec = normalizeRecord(rec)
	if _, ok := m.processed[rec.Source][url]; ok {
		return false, nil
	}
	m.logs[rec.Source] = append(m.logs[rec.Source], rec)
	m.mark(url, rec.Source, rec.Date)
	return true, nil
}

func (m *MemoryStore) Scan(source string) ([]models.SentimentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log, ok := m.logs[sourceKey(source)]
	if !ok {
		return nil, ErrLogMissing
	}
	if len(log) == 0 {
		return nil, ErrLogEmpty
	}
	out := make([]models.SentimentRecord, len(log))
	copy(out, log)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) mark(url, source string, date time.Time) {
	urls, ok := m.processed[source]
	if !ok {
		urls = make(map[string]time.Time)
		m.processed[source] = urls
	}
	urls[url] = dayOrToday(date)
}
