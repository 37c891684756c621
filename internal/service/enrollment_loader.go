package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-console/internal/models"
)

type enrollmentLister interface {
	List(ctx context.Context) ([]models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Enrollment, error)
}

type studentLister interface {
	List(ctx context.Context) ([]models.Student, error)
}

// EnrollmentTier is one data source in the load fallback chain.
type EnrollmentTier interface {
	Name() models.LoadTier
	Load(ctx context.Context) ([]models.Enrollment, error)
}

// LoadResult is what the fallback chain produced.
type LoadResult struct {
	Items    []models.Enrollment
	Tier     models.LoadTier
	Degraded bool
	// Failures lists the tiers that were tried and failed, in order.
	Failures []TierFailure
}

// TierFailure records why a tier was skipped.
type TierFailure struct {
	Tier  models.LoadTier `json:"tier"`
	Error string          `json:"error"`
}

// PrimaryTier lists every enrollment from the collection endpoint.
type PrimaryTier struct {
	enrollments enrollmentLister
}

// NewPrimaryTier constructs the authoritative tier.
func NewPrimaryTier(enrollments enrollmentLister) *PrimaryTier {
	return &PrimaryTier{enrollments: enrollments}
}

// Name implements EnrollmentTier.
func (t *PrimaryTier) Name() models.LoadTier { return models.LoadTierPrimary }

// Load implements EnrollmentTier.
func (t *PrimaryTier) Load(ctx context.Context) ([]models.Enrollment, error) {
	return t.enrollments.List(ctx)
}

// PerStudentTier rebuilds the list from the per-student endpoint for a bounded
// sample of students. Individual student failures are skipped; only a failed
// student listing fails the tier.
type PerStudentTier struct {
	students    studentLister
	enrollments enrollmentLister
	sampleSize  int
	logger      *zap.Logger
}

// NewPerStudentTier constructs the sampling tier. sampleSize below one means 3.
func NewPerStudentTier(students studentLister, enrollments enrollmentLister, sampleSize int, logger *zap.Logger) *PerStudentTier {
	if sampleSize < 1 {
		sampleSize = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerStudentTier{students: students, enrollments: enrollments, sampleSize: sampleSize, logger: logger}
}

// Name implements EnrollmentTier.
func (t *PerStudentTier) Name() models.LoadTier { return models.LoadTierPerStudent }

// Load implements EnrollmentTier.
func (t *PerStudentTier) Load(ctx context.Context) ([]models.Enrollment, error) {
	students, err := t.students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if len(students) > t.sampleSize {
		students = students[:t.sampleSize]
	}
	items := []models.Enrollment{}
	for _, student := range students {
		if student.ID == 0 {
			continue
		}
		enrollments, err := t.enrollments.ListByStudent(ctx, student.ID)
		if err != nil {
			t.logger.Warn("per-student enrollment listing failed", zap.Int64("student_id", student.ID), zap.Error(err))
			continue
		}
		items = append(items, enrollments...)
	}
	return items, nil
}

// StaticTier serves the built-in dataset and never fails.
type StaticTier struct{}

// Name implements EnrollmentTier.
func (StaticTier) Name() models.LoadTier { return models.LoadTierStatic }

// Load implements EnrollmentTier.
func (StaticTier) Load(context.Context) ([]models.Enrollment, error) {
	return StaticEnrollments(), nil
}

// StaticEnrollments returns a fresh copy of the built-in fallback dataset.
func StaticEnrollments() []models.Enrollment {
	rows := []struct {
		id, student, subject int64
		at                   string
	}{
		{1001, 1, 1, "2025-03-15T10:30:00"},
		{1002, 1, 2, "2025-03-16T11:45:00"},
		{1003, 2, 3, "2025-03-17T09:15:00"},
		{1004, 3, 1, "2025-03-18T14:20:00"},
		{1005, 4, 5, "2025-03-19T16:10:00"},
	}
	out := make([]models.Enrollment, 0, len(rows))
	for _, r := range rows {
		at, _ := models.ParseTimestamp(r.at)
		created := at
		out = append(out, models.Enrollment{
			ID:         r.id,
			StudentID:  r.student,
			SubjectID:  r.subject,
			EnrolledAt: &at,
			Status:     models.EnrollmentStatusActive,
			CreatedBy:  "admin",
			CreatedAt:  &created,
		})
	}
	return out
}

// TierObserver receives the outcome of each load.
type TierObserver interface {
	ObserveEnrollmentLoad(tier models.LoadTier, degraded bool, duration time.Duration)
}

// TieredLoader tries each tier in order, one at a time, until one succeeds.
// Load never fails: when every tier errors or panics the static dataset is
// returned flagged as degraded.
type TieredLoader struct {
	tiers    []EnrollmentTier
	observer TierObserver
	logger   *zap.Logger
}

// NewTieredLoader constructs the loader.
func NewTieredLoader(tiers []EnrollmentTier, observer TierObserver, logger *zap.Logger) *TieredLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredLoader{tiers: tiers, observer: observer, logger: logger}
}

// Load runs the fallback chain.
func (l *TieredLoader) Load(ctx context.Context) LoadResult {
	start := time.Now()
	result := l.run(ctx)
	if l.observer != nil {
		l.observer.ObserveEnrollmentLoad(result.Tier, result.Degraded, time.Since(start))
	}
	if result.Degraded {
		l.logger.Warn("enrollments loaded in degraded mode", zap.String("tier", string(result.Tier)), zap.Int("count", len(result.Items)), zap.Any("failures", result.Failures))
	} else {
		l.logger.Info("enrollments loaded", zap.String("tier", string(result.Tier)), zap.Int("count", len(result.Items)))
	}
	return result
}

func (l *TieredLoader) run(ctx context.Context) (result LoadResult) {
	defer func() {
		if r := recover(); r != nil {
			result = LoadResult{
				Items:    StaticEnrollments(),
				Tier:     models.LoadTierStatic,
				Degraded: true,
				Failures: append(result.Failures, TierFailure{Tier: "loader", Error: fmt.Sprint(r)}),
			}
		}
	}()

	for _, tier := range l.tiers {
		items, err := l.attempt(ctx, tier)
		if err != nil {
			result.Failures = append(result.Failures, TierFailure{Tier: tier.Name(), Error: err.Error()})
			continue
		}
		if items == nil {
			items = []models.Enrollment{}
		}
		result.Items = items
		result.Tier = tier.Name()
		result.Degraded = tier.Name() != models.LoadTierPrimary
		return result
	}

	result.Items = StaticEnrollments()
	result.Tier = models.LoadTierStatic
	result.Degraded = true
	return result
}

// attempt turns a panicking tier into an ordinary failure so the next tier
// still gets its turn.
func (l *TieredLoader) attempt(ctx context.Context, tier EnrollmentTier) (items []models.Enrollment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tier %s panicked: %v", tier.Name(), r)
		}
	}()
	return tier.Load(ctx)
}
