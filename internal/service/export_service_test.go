package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-console/internal/models"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type stubViews struct {
	views []models.EnrollmentView
	snap  models.EnrollmentSnapshot
	term  string
}

func (s *stubViews) Views(term string) []models.EnrollmentView {
	s.term = term
	return s.views
}

func (s *stubViews) Snapshot() models.EnrollmentSnapshot { return s.snap }

func TestExportEnrollmentsCSV(t *testing.T) {
	at, _ := models.ParseTimestamp("2025-03-15T10:30:00")
	source := &stubViews{views: []models.EnrollmentView{
		{Enrollment: models.Enrollment{ID: 1001, EnrolledAt: &at, CreatedBy: "admin"}, StudentName: "Ana Pérez", SubjectName: "Algebra", SubjectCode: "MAT-101"},
		{Enrollment: models.Enrollment{ID: -1, Provisional: true, Status: models.EnrollmentStatusActive}, StudentName: "Unknown", SubjectName: "Unknown"},
	}}
	svc := NewExportService(source, nil)

	file, err := svc.Enrollments("csv", "ana")
	require.NoError(t, err)
	assert.Equal(t, "ana", source.term)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Student,Subject,Code,Enrolled At,Status,Created By", lines[0])
	assert.Equal(t, "1001,Ana Pérez,Algebra,MAT-101,2025-03-15T10:30:00Z,ACTIVE,admin", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "pending,"))
}

func TestExportEnrollmentsPDF(t *testing.T) {
	source := &stubViews{snap: models.EnrollmentSnapshot{Degraded: true, Tier: models.LoadTierStatic}}
	file, err := NewExportService(source, nil).Enrollments("pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := NewExportService(&stubViews{}, nil).Enrollments("xlsx", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
