package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/enrollment-console/internal/models"
)

const studentsEndpoint = "/estudiantes"

// StudentRepository reads and writes students through the registry backend.
type StudentRepository struct {
	client restClient
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(client restClient) *StudentRepository {
	return &StudentRepository{client: client}
}

// List returns all students.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.client.Get(ctx, studentsEndpoint, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// Create registers a student.
func (r *StudentRepository) Create(ctx context.Context, student models.Student) (*models.Student, error) {
	var created *models.Student
	if err := r.client.Post(ctx, studentsEndpoint, student, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces a student record.
func (r *StudentRepository) Update(ctx context.Context, id int64, student models.Student) (*models.Student, error) {
	var updated *models.Student
	if err := r.client.Put(ctx, fmt.Sprintf("%s/%d", studentsEndpoint, id), student, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Deactivate soft-deletes a student carrying the deactivation audit fields.
func (r *StudentRepository) Deactivate(ctx context.Context, id int64, student models.Student) (*models.Student, error) {
	var updated *models.Student
	if err := r.client.Put(ctx, fmt.Sprintf("%s/%d/baja", studentsEndpoint, id), student, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}
