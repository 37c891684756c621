package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/noah-isme/enrollment-console/internal/models"
)

const subjectsEndpoint = "/materias"

// SubjectRepository reads and writes subjects through the registry backend.
type SubjectRepository struct {
	client restClient
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(client restClient) *SubjectRepository {
	return &SubjectRepository{client: client}
}

// List returns all subjects.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.client.Get(ctx, subjectsEndpoint, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// FindByID fetches a single subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	var subject *models.Subject
	if err := r.client.Get(ctx, fmt.Sprintf("%s/%d", subjectsEndpoint, id), &subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// FindByCode fetches a subject by its unique code.
func (r *SubjectRepository) FindByCode(ctx context.Context, code string) (*models.Subject, error) {
	var subject *models.Subject
	if err := r.client.Get(ctx, fmt.Sprintf("%s/codigo/%s", subjectsEndpoint, url.PathEscape(code)), &subject); err != nil {
		return nil, err
	}
	return subject, nil
}

// Create registers a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject models.Subject) (*models.Subject, error) {
	var created *models.Subject
	if err := r.client.Post(ctx, subjectsEndpoint, subject, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces a subject.
func (r *SubjectRepository) Update(ctx context.Context, id int64, subject models.Subject) (*models.Subject, error) {
	var updated *models.Subject
	if err := r.client.Put(ctx, fmt.Sprintf("%s/%d", subjectsEndpoint, id), subject, &updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, fmt.Sprintf("%s/%d", subjectsEndpoint, id))
}
