package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/access-gate/internal/model"
)

// AuditRepo writes the issuance ledger kept in MySQL.  The ledger is a
// secondary copy fed by the access_code.issued queue; the key-value store
// stays the source of truth for codes.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// InsertIssued records an issued code.  Redelivered events for a code that
// is already present are ignored.
func (r *AuditRepo) InsertIssued(ctx context.Context, rec model.IssuanceRecord) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO access_code_events (code, session_id, email, source, issued_at) VALUES (?,?,?,?,?)",
		rec.Code, rec.SessionID, rec.Email, rec.Source, rec.IssuedAt.UTC())
	return err
}

// CountSince returns how many codes were issued at or after t.
func (r *AuditRepo) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_code_events WHERE issued_at >= ?", t.UTC()).Scan(&n)
	return n, err
}
