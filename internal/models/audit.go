package models

import "time"

// Audit actions recorded for enrollment writes.
const (
	AuditActionEnrollmentCreate   = "ENROLLMENT_CREATE"
	AuditActionEnrollmentWithdraw = "ENROLLMENT_WITHDRAW"
	AuditActionEnrollmentStatus   = "ENROLLMENT_STATUS"
)

// Audit outcomes.
const (
	AuditOutcomeSuccess     = "SUCCESS"
	AuditOutcomeProvisional = "PROVISIONAL"
	AuditOutcomeRejected    = "REJECTED"
	AuditOutcomeFailed      = "FAILED"
)

// AuditLog represents an audit trail record for an enrollment write.
type AuditLog struct {
	ID           string    `db:"id" json:"id"`
	Action       string    `db:"action" json:"action"`
	Actor        string    `db:"actor" json:"actor"`
	EnrollmentID *int64    `db:"enrollment_id" json:"enrollment_id,omitempty"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	SubjectID    int64     `db:"subject_id" json:"subject_id"`
	Status       string    `db:"status" json:"status"`
	Outcome      string    `db:"outcome" json:"outcome"`
	Detail       string    `db:"detail" json:"detail,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
