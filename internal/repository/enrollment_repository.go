package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/enrollment-console/internal/models"
)

const enrollmentsEndpoint = "/inscripciones"

// EnrollmentRepository reads and writes enrollments through the registry backend.
type EnrollmentRepository struct {
	client restClient
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(client restClient) *EnrollmentRepository {
	return &EnrollmentRepository{client: client}
}

// List returns every enrollment the backend knows about.
func (r *EnrollmentRepository) List(ctx context.Context) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.client.Get(ctx, enrollmentsEndpoint, &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// ListByStudent returns the enrollments of a single student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.client.Get(ctx, fmt.Sprintf("%s/estudiante/%d", enrollmentsEndpoint, studentID), &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// Create submits a new enrollment. The backend may acknowledge without a
// body, in which case the returned enrollment is nil.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment models.Enrollment) (*models.Enrollment, error) {
	var created *models.Enrollment
	if err := r.client.Post(ctx, enrollmentsEndpoint, outbound(enrollment), &created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces an enrollment record.
func (r *EnrollmentRepository) Update(ctx context.Context, id int64, enrollment models.Enrollment) (*models.Enrollment, error) {
	var updated *models.Enrollment
	if err := r.client.Put(ctx, fmt.Sprintf("%s/%d", enrollmentsEndpoint, id), outbound(enrollment), &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// outbound rewrites the status into the backend's own vocabulary.
func outbound(e models.Enrollment) models.Enrollment {
	if e.Status != "" {
		e.Status = models.EnrollmentStatus(e.Status.BackendValue())
	}
	return e
}
