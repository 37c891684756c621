package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-console/internal/models"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS enrollment_audit_logs (
    id UUID PRIMARY KEY,
    action TEXT NOT NULL,
    actor TEXT NOT NULL,
    enrollment_id BIGINT NULL,
    student_id BIGINT NOT NULL,
    subject_id BIGINT NOT NULL,
    status TEXT NOT NULL,
    outcome TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
)`

// AuditRepository persists the enrollment audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the audit table when missing.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Create inserts an audit record, filling id and timestamp when unset.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_audit_logs (id, action, actor, enrollment_id, student_id, subject_id, status, outcome, detail, created_at)
        VALUES (:id, :action, :actor, :enrollment_id, :student_id, :subject_id, :status, :outcome, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit records first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, action, actor, enrollment_id, student_id, subject_id, status, outcome, detail, created_at
        FROM enrollment_audit_logs ORDER BY created_at DESC LIMIT $1`
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}
