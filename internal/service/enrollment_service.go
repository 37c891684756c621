package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/enrollment-console/internal/models"
	"github.com/noah-isme/enrollment-console/pkg/apiclient"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type enrollmentRepository interface {
	enrollmentLister
	Create(ctx context.Context, enrollment models.Enrollment) (*models.Enrollment, error)
	Update(ctx context.Context, id int64, enrollment models.Enrollment) (*models.Enrollment, error)
}

type subjectLister interface {
	List(ctx context.Context) ([]models.Subject, error)
}

type enrollmentLoader interface {
	Load(ctx context.Context) LoadResult
}

type sessionProvider interface {
	CurrentUser(ctx context.Context) string
}

// EnrollmentObserver receives write outcomes and snapshot changes.
type EnrollmentObserver interface {
	RecordWrite(action, outcome string)
	ObserveSnapshot(version uint64, size int)
}

// duplicatePhrases are matched case-insensitively on upstream error messages
// that carry no structured code.
var duplicatePhrases = []string{"already enrolled", "ya está inscripto", "ya esta inscripto"}

// EnrollRequest describes an enrollment creation request.
type EnrollRequest struct {
	StudentID int64 `json:"studentId" validate:"required,gt=0"`
	SubjectID int64 `json:"subjectId" validate:"required,gt=0"`
}

// UpdateEnrollmentStatusRequest describes a status transition.
type UpdateEnrollmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// LoadReport summarises a reload.
type LoadReport struct {
	Snapshot models.EnrollmentSnapshot `json:"snapshot"`
	Failures []TierFailure             `json:"failures,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// EnrollmentServiceConfig tunes the reconciliation rules.
type EnrollmentServiceConfig struct {
	// BackendCheckThreshold: the backend duplicate check only runs while
	// fewer enrollments than this are tracked.
	BackendCheckThreshold int
	// AllowReenrollAfterWithdraw excludes withdrawn records from the
	// duplicate check.
	AllowReenrollAfterWithdraw bool
}

// EnrollmentDeps groups the collaborators of EnrollmentService.
type EnrollmentDeps struct {
	Enrollments enrollmentRepository
	Students    studentLister
	Subjects    subjectLister
	Loader      enrollmentLoader
	Store       *EnrollmentStore
	References  *ReferenceCache
	Guard       InflightGuard
	Session     sessionProvider
	Audit       *AuditService
	Metrics     EnrollmentObserver
	Validator   *validator.Validate
}

// EnrollmentService reconciles the tracked enrollments with the registry
// backend: it loads through the fallback chain and guards writes against
// duplicates.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentLister
	subjects  subjectLister
	loader    enrollmentLoader
	store     *EnrollmentStore
	refs      *ReferenceCache
	guard     InflightGuard
	session   sessionProvider
	audit     *AuditService
	metrics   EnrollmentObserver
	validator *validator.Validate
	cfg       EnrollmentServiceConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(deps EnrollmentDeps, cfg EnrollmentServiceConfig, logger *zap.Logger) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Store == nil {
		deps.Store = NewEnrollmentStore()
	}
	if deps.References == nil {
		deps.References = NewReferenceCache()
	}
	if deps.Guard == nil {
		deps.Guard = NewMemoryInflightGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BackendCheckThreshold <= 0 {
		cfg.BackendCheckThreshold = 10
	}
	return &EnrollmentService{
		repo:      deps.Enrollments,
		students:  deps.Students,
		subjects:  deps.Subjects,
		loader:    deps.Loader,
		store:     deps.Store,
		refs:      deps.References,
		guard:     deps.Guard,
		session:   deps.Session,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Load refreshes the reference data and the tracked enrollments. It never
// fails: reference failures keep the previous cache and are reported as
// warnings, and the enrollment chain always yields a dataset.
func (s *EnrollmentService) Load(ctx context.Context) LoadReport {
	var (
		students    []models.Student
		subjects    []models.Subject
		studentsErr error
		subjectsErr error
		result      LoadResult
	)

	since := s.store.Version()

	var g errgroup.Group
	g.Go(func() error {
		students, studentsErr = s.students.List(ctx)
		return nil
	})
	g.Go(func() error {
		subjects, subjectsErr = s.subjects.List(ctx)
		return nil
	})
	g.Go(func() error {
		result = s.loader.Load(ctx)
		return nil
	})
	_ = g.Wait()

	report := LoadReport{Failures: result.Failures}
	if studentsErr != nil {
		s.logger.Warn("failed to load students", zap.Error(studentsErr))
		report.Warnings = append(report.Warnings, "students: "+appErrors.FromError(studentsErr).Message)
	} else {
		s.refs.ReplaceStudents(students)
	}
	if subjectsErr != nil {
		s.logger.Warn("failed to load subjects", zap.Error(subjectsErr))
		report.Warnings = append(report.Warnings, "subjects: "+appErrors.FromError(subjectsErr).Message)
	} else {
		s.refs.ReplaceSubjects(subjects)
	}

	report.Snapshot = s.store.ReplaceSince(since, result.Items, result.Tier, result.Degraded)
	s.observeSnapshot()
	return report
}

// Snapshot returns the current tracked enrollments.
func (s *EnrollmentService) Snapshot() models.EnrollmentSnapshot {
	return s.store.Snapshot()
}

// ExistsActive reports whether a tracked record blocks a new enrollment of
// studentID into subjectID. It never fails; any internal fault counts as no
// match.
func (s *EnrollmentService) ExistsActive(studentID, subjectID int64) (exists bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("duplicate check panicked", zap.Any("panic", r))
			exists = false
		}
	}()
	return s.store.Any(func(e models.Enrollment) bool {
		return s.blocks(e, studentID, subjectID)
	})
}

func (s *EnrollmentService) blocks(e models.Enrollment, studentID, subjectID int64) bool {
	if e.StudentID != studentID || e.SubjectID != subjectID {
		return false
	}
	return !s.cfg.AllowReenrollAfterWithdraw || !e.EffectiveStatus().IsWithdrawn()
}

// Enroll creates an enrollment of a student into a subject.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "studentId and subjectId are required")
	}

	release, ok, err := s.guard.Acquire(ctx, enrollmentKey(req.StudentID, req.SubjectID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire enrollment guard")
	}
	if !ok {
		s.recordWrite(models.AuditActionEnrollmentCreate, models.AuditOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrEnrollmentInFlight, fmt.Sprintf("an enrollment of student %d into subject %d is already in progress", req.StudentID, req.SubjectID))
	}
	defer release()

	if s.ExistsActive(req.StudentID, req.SubjectID) {
		s.recordWrite(models.AuditActionEnrollmentCreate, models.AuditOutcomeRejected)
		return nil, duplicateError(req.StudentID, req.SubjectID)
	}

	if _, ok := s.refs.Student(req.StudentID); !ok {
		return nil, appErrors.Clone(appErrors.ErrMissingReference, fmt.Sprintf("student %d not found", req.StudentID))
	}
	if _, ok := s.refs.Subject(req.SubjectID); !ok {
		return nil, appErrors.Clone(appErrors.ErrMissingReference, fmt.Sprintf("subject %d not found", req.SubjectID))
	}

	if s.store.Len() < s.cfg.BackendCheckThreshold && s.backendHasEnrollment(ctx, req) {
		s.recordWrite(models.AuditActionEnrollmentCreate, models.AuditOutcomeRejected)
		return nil, duplicateError(req.StudentID, req.SubjectID)
	}

	actor := s.actor(ctx)
	now := s.now().UTC()
	payload := models.Enrollment{
		StudentID:  req.StudentID,
		SubjectID:  req.SubjectID,
		EnrolledAt: models.NewTimestamp(now),
		Status:     models.EnrollmentStatusActive,
		CreatedBy:  actor,
		CreatedAt:  models.NewTimestamp(now),
	}

	created, err := s.repo.Create(ctx, payload)
	if err != nil {
		if isDuplicateFailure(err) {
			s.recordWrite(models.AuditActionEnrollmentCreate, models.AuditOutcomeRejected)
			return nil, duplicateError(req.StudentID, req.SubjectID)
		}
		s.recordWrite(models.AuditActionEnrollmentCreate, models.AuditOutcomeFailed)
		s.recordAudit(models.AuditLog{Action: models.AuditActionEnrollmentCreate, Actor: actor, StudentID: req.StudentID, SubjectID: req.SubjectID, Status: string(models.EnrollmentStatusActive), Outcome: models.AuditOutcomeFailed, Detail: err.Error()})
		return nil, createError(err)
	}

	record := payload
	outcome := models.AuditOutcomeSuccess
	if created != nil && created.ID != 0 {
		record = *created
		if record.StudentID == 0 {
			record.StudentID = req.StudentID
		}
		if record.SubjectID == 0 {
			record.SubjectID = req.SubjectID
		}
		if record.Status == "" {
			record.Status = models.EnrollmentStatusActive
		}
	} else {
		// Acknowledged without an identity: track a provisional record until
		// the next reload brings the real one.
		record.ID = s.store.NextProvisionalID()
		record.Provisional = true
		outcome = models.AuditOutcomeProvisional
		s.logger.Warn("enrollment created without identity, tracking provisional record",
			zap.Int64("student_id", req.StudentID), zap.Int64("subject_id", req.SubjectID), zap.Int64("provisional_id", record.ID))
	}

	s.store.Append(record)
	s.refs.MarkStudentActive(req.StudentID)
	s.observeSnapshot()
	s.recordWrite(models.AuditActionEnrollmentCreate, outcome)
	s.recordAudit(models.AuditLog{Action: models.AuditActionEnrollmentCreate, Actor: actor, EnrollmentID: auditID(record), StudentID: record.StudentID, SubjectID: record.SubjectID, Status: string(record.Status), Outcome: outcome})
	return &record, nil
}

// backendHasEnrollment asks the backend for the student's enrollments. It is
// best effort: failures count as no match.
func (s *EnrollmentService) backendHasEnrollment(ctx context.Context, req EnrollRequest) bool {
	remote, err := s.repo.ListByStudent(ctx, req.StudentID)
	if err != nil {
		s.logger.Debug("backend duplicate check skipped", zap.Int64("student_id", req.StudentID), zap.Error(err))
		return false
	}
	for _, e := range remote {
		if e.StudentID == 0 {
			e.StudentID = req.StudentID
		}
		if s.blocks(e, req.StudentID, req.SubjectID) {
			return true
		}
	}
	return false
}

// Withdraw soft-deletes an enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, id int64) (*models.Enrollment, error) {
	return s.transition(ctx, id, models.EnrollmentStatusWithdrawn, models.AuditActionEnrollmentWithdraw)
}

// UpdateStatus moves an enrollment to the requested status.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id int64, req UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status is required")
	}
	target, ok := models.ParseEnrollmentStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported status %q", req.Status))
	}
	return s.transition(ctx, id, target, models.AuditActionEnrollmentStatus)
}

// transition sends the full updated record upstream and, only after the
// backend accepts it, patches the local status.
func (s *EnrollmentService) transition(ctx context.Context, id int64, target models.EnrollmentStatus, action string) (*models.Enrollment, error) {
	current, ok := s.store.Find(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrollment %d not found", id))
	}
	if current.Provisional {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is provisional; reload enrollments before changing it")
	}
	if current.EffectiveStatus().IsWithdrawn() && !target.IsWithdrawn() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "withdrawn enrollments cannot be reactivated")
	}

	actor := s.actor(ctx)
	updated := current
	updated.Status = target
	if target.IsWithdrawn() {
		updated.WithdrawnBy = actor
		updated.WithdrawnAt = models.NewTimestamp(s.now().UTC())
	}

	if _, err := s.repo.Update(ctx, id, updated); err != nil {
		s.recordWrite(action, models.AuditOutcomeFailed)
		s.recordAudit(models.AuditLog{Action: action, Actor: actor, EnrollmentID: &id, StudentID: current.StudentID, SubjectID: current.SubjectID, Status: string(target), Outcome: models.AuditOutcomeFailed, Detail: err.Error()})
		return nil, err
	}

	s.store.Patch(id, func(e *models.Enrollment) {
		e.Status = target
	})
	s.observeSnapshot()
	s.recordWrite(action, models.AuditOutcomeSuccess)
	s.recordAudit(models.AuditLog{Action: action, Actor: actor, EnrollmentID: &id, StudentID: current.StudentID, SubjectID: current.SubjectID, Status: string(target), Outcome: models.AuditOutcomeSuccess})
	return &updated, nil
}

// Views joins the tracked enrollments with student and subject labels and
// filters them by term, matched case-insensitively against the student
// name, subject name, subject code and enrollment date.
func (s *EnrollmentService) Views(term string) []models.EnrollmentView {
	snap := s.store.Snapshot()
	term = strings.ToLower(strings.TrimSpace(term))
	views := make([]models.EnrollmentView, 0, len(snap.Items))
	for _, e := range snap.Items {
		view := models.EnrollmentView{Enrollment: e, StudentName: "Unknown", SubjectName: "Unknown"}
		if student, ok := s.refs.Student(e.StudentID); ok {
			view.StudentName = student.FullName()
		}
		if subject, ok := s.refs.Subject(e.SubjectID); ok {
			view.SubjectName = subject.Name
			view.SubjectCode = subject.Code
		}
		if term != "" && !matchesView(view, term) {
			continue
		}
		views = append(views, view)
	}
	return views
}

func matchesView(v models.EnrollmentView, term string) bool {
	fields := []string{v.StudentName, v.SubjectName, v.SubjectCode, models.FormatTimestamp(v.EnrolledAt)}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func (s *EnrollmentService) actor(ctx context.Context) string {
	if s.session == nil {
		return "admin"
	}
	return s.session.CurrentUser(ctx)
}

func (s *EnrollmentService) recordWrite(action, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordWrite(action, outcome)
	}
}

func (s *EnrollmentService) recordAudit(entry models.AuditLog) {
	s.audit.Record(entry)
}

func (s *EnrollmentService) observeSnapshot() {
	if s.metrics == nil {
		return
	}
	snap := s.store.Snapshot()
	s.metrics.ObserveSnapshot(snap.Version, len(snap.Items))
}

func auditID(e models.Enrollment) *int64 {
	if e.Provisional {
		return nil
	}
	id := e.ID
	return &id
}

func duplicateError(studentID, subjectID int64) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrDuplicateEnrollment, fmt.Sprintf("student %d is already enrolled in subject %d", studentID, subjectID))
}

// isDuplicateFailure classifies an upstream create failure. A structured
// code decides when present; the message phrases are the fallback.
func isDuplicateFailure(err error) bool {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrDuplicateEnrollment.Code {
		return true
	}
	if failure, ok := appErr.Details.(apiclient.Failure); ok && failure.Code != "" {
		return strings.EqualFold(failure.Code, appErrors.ErrDuplicateEnrollment.Code)
	}
	message := strings.ToLower(appErr.Message)
	for _, phrase := range duplicatePhrases {
		if strings.Contains(message, phrase) {
			return true
		}
	}
	return false
}

func createError(err error) *appErrors.Error {
	appErr := appErrors.FromError(err)
	status := appErrors.ErrEnrollmentCreate.Status
	if appErr.Status >= http.StatusBadRequest && appErr.Status < http.StatusInternalServerError {
		status = appErr.Status
	}
	message := appErr.Message
	if message == "" {
		message = appErrors.ErrEnrollmentCreate.Message
	}
	return &appErrors.Error{
		Code:    appErrors.ErrEnrollmentCreate.Code,
		Status:  status,
		Message: message,
		Details: appErr.Details,
		Err:     err,
	}
}
