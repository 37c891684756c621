package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-console/internal/models"
	"github.com/noah-isme/enrollment-console/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Offer(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type auditStoreStub struct {
	created []models.AuditLog
	recent  []models.AuditLog
}

func (s *auditStoreStub) Create(ctx context.Context, entry *models.AuditLog) error {
	s.created = append(s.created, *entry)
	return nil
}

func (s *auditStoreStub) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.recent, nil
}

func TestAuditRecordQueuesEntry(t *testing.T) {
	queue := &queueStub{}
	svc := NewAuditService(&auditStoreStub{}, queue, nil)

	svc.Record(models.AuditLog{Action: models.AuditActionEnrollmentCreate, StudentID: 1, SubjectID: 2})
	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, auditJobKind, job.Kind)
	entry := job.Payload.(models.AuditLog)
	assert.Equal(t, job.ID, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAuditRecordSurvivesFullQueue(t *testing.T) {
	svc := NewAuditService(nil, &queueStub{err: jobs.ErrQueueFull}, nil)
	assert.NotPanics(t, func() { svc.Record(models.AuditLog{Action: "x"}) })

	var disabled *AuditService
	assert.NotPanics(t, func() { disabled.Record(models.AuditLog{}) })
	entries, err := disabled.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditWorkerPersistsPayload(t *testing.T) {
	store := &auditStoreStub{}
	worker := NewAuditWorker(store)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "a", Payload: models.AuditLog{ID: "a", Actor: "admin"}}))
	require.Len(t, store.created, 1)
	assert.Equal(t, "admin", store.created[0].Actor)

	err := worker.Handle(context.Background(), jobs.Job{ID: "b", Payload: "garbage"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, jobs.ErrQueueFull))
}
