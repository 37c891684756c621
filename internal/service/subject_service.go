package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-console/internal/models"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context) ([]models.Subject, error)
	Create(ctx context.Context, subject models.Subject) (*models.Subject, error)
	Update(ctx context.Context, id int64, subject models.Subject) (*models.Subject, error)
	Delete(ctx context.Context, id int64) error
}

// SubjectService validates subject forms and keeps the reference cache in
// step with the backend.
type SubjectService struct {
	repo      subjectRepository
	refs      *ReferenceCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(repo subjectRepository, refs *ReferenceCache, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if refs == nil {
		refs = NewReferenceCache()
	}
	return &SubjectService{repo: repo, refs: refs, validator: validate, logger: logger}
}

// List fetches subjects from the backend and refreshes the cache.
func (s *SubjectService) List(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	s.refs.ReplaceSubjects(subjects)
	return subjects, nil
}

// Create registers a subject.
func (s *SubjectService) Create(ctx context.Context, subject models.Subject) (*models.Subject, error) {
	subject.ID = 0
	if err := s.validate(subject); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, subject)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return &subject, nil
	}
	s.refs.PutSubject(*created)
	return created, nil
}

// Update replaces a subject.
func (s *SubjectService) Update(ctx context.Context, id int64, subject models.Subject) (*models.Subject, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid subject id")
	}
	subject.ID = id
	if err := s.validate(subject); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, subject)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = &subject
	}
	s.refs.PutSubject(*updated)
	return updated, nil
}

// Delete removes a subject upstream and from the cache.
func (s *SubjectService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid subject id")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.refs.RemoveSubject(id)
	return nil
}

// validate checks required fields and that prerequisites reference other,
// known subjects.
func (s *SubjectService) validate(subject models.Subject) error {
	if err := s.validator.Struct(subject); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	var missing []string
	for _, prereq := range subject.Prerequisites {
		if subject.ID != 0 && prereq == subject.ID {
			return appErrors.Clone(appErrors.ErrValidation, "a subject cannot be its own prerequisite")
		}
		if _, ok := s.refs.Subject(prereq); !ok {
			missing = append(missing, fmt.Sprint(prereq))
		}
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrMissingReference, "unknown prerequisite subjects: "+strings.Join(missing, ", "))
	}
	return nil
}
