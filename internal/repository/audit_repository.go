package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gradua/ceremonia-api/internal/models"
)

// AuditRepository persists the append-only attendance audit trail. The sheet
// cell is last-write-wins; this table keeps every write so overwritten
// timestamps stay reconstructable.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, entry models.AuditEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO attendance_audit (ceremony, code, seat, sheet_row, marked_at, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Ceremony, entry.Code, entry.Seat, entry.SheetRow, entry.MarkedAt, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attendance audit: %w", err)
	}
	return nil
}

// ListByCeremony returns the audit entries for one ceremony, oldest first.
func (r *AuditRepository) ListByCeremony(ctx context.Context, ceremony string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.SelectContext(ctx, &entries, `
        SELECT ceremony, code, seat, sheet_row, marked_at, recorded_at
        FROM attendance_audit
        WHERE ceremony = $1
        ORDER BY recorded_at ASC`,
		ceremony,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance audit for %s: %w", ceremony, err)
	}
	return entries, nil
}
