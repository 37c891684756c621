package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-console/internal/models"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	Create(ctx context.Context, student models.Student) (*models.Student, error)
	Update(ctx context.Context, id int64, student models.Student) (*models.Student, error)
	Deactivate(ctx context.Context, id int64, student models.Student) (*models.Student, error)
}

// DeactivateStudentRequest carries the mandatory deactivation reason.
type DeactivateStudentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// StudentService validates student forms and keeps the reference cache in
// step with the backend.
type StudentService struct {
	repo      studentRepository
	refs      *ReferenceCache
	session   sessionProvider
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, refs *ReferenceCache, session sessionProvider, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if refs == nil {
		refs = NewReferenceCache()
	}
	return &StudentService{repo: repo, refs: refs, session: session, validator: validate, logger: logger, now: time.Now}
}

// List fetches students from the backend and refreshes the cache.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []models.Student{}
	}
	s.refs.ReplaceStudents(students)
	return students, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, student models.Student) (*models.Student, error) {
	student.ID = 0
	if err := s.validator.Struct(student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if strings.TrimSpace(student.Status) == "" {
		student.Status = models.StudentStatusActive
	}
	student.CreatedBy = s.actor(ctx)
	student.CreatedAt = models.NewTimestamp(s.now().UTC())
	clearDeactivation(&student)

	created, err := s.repo.Create(ctx, student)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return &student, nil
	}
	s.refs.PutStudent(*created)
	return created, nil
}

// Update replaces a student's editable fields. Reactivating a student clears
// the deactivation fields.
func (s *StudentService) Update(ctx context.Context, id int64, student models.Student) (*models.Student, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	student.ID = id
	if err := s.validator.Struct(student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if student.Status == "" || student.IsActive() {
		clearDeactivation(&student)
	}
	student.UpdatedBy = s.actor(ctx)
	student.UpdatedAt = models.NewTimestamp(s.now().UTC())

	updated, err := s.repo.Update(ctx, id, student)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = &student
	}
	s.refs.PutStudent(*updated)
	return updated, nil
}

// Deactivate marks a cached student inactive with the deactivation audit
// fields and forwards it to the backend.
func (s *StudentService) Deactivate(ctx context.Context, id int64, req DeactivateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "deactivation reason is required")
	}
	student, ok := s.refs.Student(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %d not found", id))
	}
	student.Status = models.StudentStatusInactive
	student.DeactivatedBy = s.actor(ctx)
	student.DeactivatedAt = models.NewTimestamp(s.now().UTC())
	student.DeactivateReason = strings.TrimSpace(req.Reason)

	updated, err := s.repo.Deactivate(ctx, id, student)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = &student
	}
	s.refs.PutStudent(*updated)
	s.logger.Info("student deactivated", zap.Int64("student_id", id), zap.String("actor", student.DeactivatedBy))
	return updated, nil
}

func (s *StudentService) actor(ctx context.Context) string {
	if s.session == nil {
		return "admin"
	}
	return s.session.CurrentUser(ctx)
}

func clearDeactivation(student *models.Student) {
	student.DeactivatedBy = ""
	student.DeactivatedAt = nil
	student.DeactivateReason = ""
}
