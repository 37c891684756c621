package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-console/internal/models"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
	"github.com/noah-isme/enrollment-console/pkg/jobs"
)

const auditJobKind = "enrollment_audit"

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type auditDispatcher interface {
	Offer(job jobs.Job) error
}

// AuditService records enrollment writes asynchronously. A nil service or
// one without a queue drops entries, so writes never wait on the audit trail.
type AuditService struct {
	store  auditStore
	queue  auditDispatcher
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(store auditStore, queue auditDispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, queue: queue, logger: logger}
}

// Record queues entry for persistence.
func (s *AuditService) Record(entry models.AuditLog) {
	if s == nil || s.queue == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.queue.Offer(jobs.Job{ID: entry.ID, Kind: auditJobKind, Payload: entry}); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("action", entry.Action), zap.Int64("student_id", entry.StudentID), zap.Int64("subject_id", entry.SubjectID), zap.Error(err))
	}
}

// Recent lists the newest audit entries.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if s == nil || s.store == nil {
		return []models.AuditLog{}, nil
	}
	entries, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return entries, nil
}

// AuditWorker persists queued audit entries.
type AuditWorker struct {
	store auditStore
}

// NewAuditWorker constructs a worker.
func NewAuditWorker(store auditStore) *AuditWorker {
	return &AuditWorker{store: store}
}

// Handle implements jobs.Handler.
func (w *AuditWorker) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditLog)
	if !ok {
		return fmt.Errorf("audit job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return w.store.Create(ctx, &entry)
}
