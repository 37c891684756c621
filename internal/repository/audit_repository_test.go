package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-console/internal/models"
)

func newAuditMock(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuditRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestAuditRepositoryCreateFillsDefaults(t *testing.T) {
	repo, mock := newAuditMock(t)
	enrollmentID := int64(1001)

	mock.ExpectExec("INSERT INTO enrollment_audit_logs").
		WithArgs(sqlmock.AnyArg(), models.AuditActionEnrollmentCreate, "admin", &enrollmentID, int64(1), int64(2), "ACTIVE", models.AuditOutcomeSuccess, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{
		Action:       models.AuditActionEnrollmentCreate,
		Actor:        "admin",
		EnrollmentID: &enrollmentID,
		StudentID:    1,
		SubjectID:    2,
		Status:       "ACTIVE",
		Outcome:      models.AuditOutcomeSuccess,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreateWrapsErrors(t *testing.T) {
	repo, mock := newAuditMock(t)
	mock.ExpectExec("INSERT INTO enrollment_audit_logs").WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &models.AuditLog{Action: models.AuditActionEnrollmentWithdraw})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create audit log")
}

func TestAuditRepositoryListRecent(t *testing.T) {
	repo, mock := newAuditMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "action", "actor", "enrollment_id", "student_id", "subject_id", "status", "outcome", "detail", "created_at"}).
		AddRow("a-1", models.AuditActionEnrollmentCreate, "admin", nil, 1, 2, "ACTIVE", models.AuditOutcomeProvisional, "", now).
		AddRow("a-2", models.AuditActionEnrollmentWithdraw, "maria", 1001, 1, 1, "WITHDRAWN", models.AuditOutcomeSuccess, "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_audit_logs ORDER BY created_at DESC LIMIT $1")).
		WithArgs(100).
		WillReturnRows(rows)

	entries, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].EnrollmentID)
	require.NotNil(t, entries[1].EnrollmentID)
	assert.Equal(t, int64(1001), *entries[1].EnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryEnsureSchema(t *testing.T) {
	repo, mock := newAuditMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS enrollment_audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
