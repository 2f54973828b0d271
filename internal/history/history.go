// Package history records the ranges of recent scans so they can be
// listed and rescanned.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anstrom/netscope/internal/db"
	"github.com/anstrom/netscope/internal/iprange"
	"github.com/anstrom/netscope/internal/logging"
)

// MaxEntries is the number of entries kept.
const MaxEntries = 10

// Entry is one recorded scan.
type Entry struct {
	Range     iprange.Range `json:"range"`
	Timestamp time.Time     `json:"timestamp"`
}

// Store appends and lists history entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Recent returns at most MaxEntries entries, newest first.
	Recent(ctx context.Context) ([]Entry, error)
}

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, 0, MaxEntries)
	next = append(next, entry)
	next = append(next, s.entries...)
	if len(next) > MaxEntries {
		next = next[:MaxEntries]
	}
	s.entries = next
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// SQLStore keeps history in PostgreSQL.
type SQLStore struct {
	repo   *db.ScanHistoryRepository
	logger *logging.Logger
}

// NewSQLStore creates a store backed by database.
func NewSQLStore(database *db.DB, logger *logging.Logger) *SQLStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SQLStore{
		repo:   db.NewScanHistoryRepository(database),
		logger: logger.WithComponent("history"),
	}
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, entry Entry) error {
	row := &db.ScanHistoryRow{
		StartIP:   entry.Range.Start.String(),
		EndIP:     entry.Range.End.String(),
		CreatedAt: entry.Timestamp,
	}
	return s.repo.AppendTrimmed(ctx, row, MaxEntries)
}

// Recent implements Store. Stored rows are revalidated like live input;
// rows with an empty side or an invalid range are skipped.
func (s *SQLStore) Recent(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.ListRecent(ctx, MaxEntries)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.StartIP) == "" || strings.TrimSpace(row.EndIP) == "" {
			continue
		}
		r, err := iprange.Normalize(row.StartIP, row.EndIP)
		if err != nil {
			s.logger.Warn("Skipping invalid history row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, Entry{Range: r, Timestamp: row.CreatedAt})
	}
	return out, nil
}
