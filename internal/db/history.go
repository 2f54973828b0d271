package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScanHistoryRow is one row of the scan_history table.
type ScanHistoryRow struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StartIP   string    `db:"start_ip" json:"start_ip"`
	EndIP     string    `db:"end_ip" json:"end_ip"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ScanHistoryRepository reads and writes scan_history.
type ScanHistoryRepository struct {
	db *DB
}

// NewScanHistoryRepository creates a repository.
func NewScanHistoryRepository(db *DB) *ScanHistoryRepository {
	return &ScanHistoryRepository{db: db}
}

// AppendTrimmed inserts row and deletes everything but the newest keep rows,
// in one transaction.
func (r *ScanHistoryRepository) AppendTrimmed(ctx context.Context, row *ScanHistoryRow, keep int) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin scan history transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := `
		INSERT INTO scan_history (id, start_ip, end_ip, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insert, row.ID, row.StartIP, row.EndIP, row.CreatedAt); err != nil {
		return sanitizeDBError("insert scan history", err)
	}

	trim := `
		DELETE FROM scan_history
		WHERE id NOT IN (
			SELECT id FROM scan_history ORDER BY created_at DESC LIMIT $1
		)`
	if _, err := tx.ExecContext(ctx, trim, keep); err != nil {
		return sanitizeDBError("trim scan history", err)
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit scan history", err)
	}
	return nil
}

// ListRecent returns up to limit rows, newest first.
func (r *ScanHistoryRepository) ListRecent(ctx context.Context, limit int) ([]ScanHistoryRow, error) {
	query := `
		SELECT id, start_ip, end_ip, created_at
		FROM scan_history
		ORDER BY created_at DESC
		LIMIT $1`

	var rows []ScanHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, sanitizeDBError("list scan history", err)
	}
	return rows, nil
}
