package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-console/internal/models"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type fakeSubjectRepo struct {
	subjects []models.Subject
	created  []models.Subject
	deleted  []int64
}

func (f *fakeSubjectRepo) List(ctx context.Context) ([]models.Subject, error) {
	return f.subjects, nil
}

func (f *fakeSubjectRepo) Create(ctx context.Context, s models.Subject) (*models.Subject, error) {
	f.created = append(f.created, s)
	s.ID = 10
	return &s, nil
}

func (f *fakeSubjectRepo) Update(ctx context.Context, id int64, s models.Subject) (*models.Subject, error) {
	return &s, nil
}

func (f *fakeSubjectRepo) Delete(ctx context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newSubjectService(t *testing.T) (*SubjectService, *fakeSubjectRepo, *ReferenceCache) {
	t.Helper()
	repo := &fakeSubjectRepo{subjects: sampleSubjects()}
	refs := NewReferenceCache()
	svc := NewSubjectService(repo, refs, nil, nil)
	_, err := svc.List(context.Background())
	require.NoError(t, err)
	return svc, repo, refs
}

func TestSubjectCreateValidation(t *testing.T) {
	svc, repo, _ := newSubjectService(t)

	_, err := svc.Create(context.Background(), models.Subject{Name: "Calculus", Code: "MAT-201", Credits: 0})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), models.Subject{Name: "Calculus", Credits: 4})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), models.Subject{Name: "Calculus", Code: "MAT-201", Credits: 4, Prerequisites: []int64{1, 42}})
	assert.ErrorIs(t, err, appErrors.ErrMissingReference)
	assert.Contains(t, err.Error(), "42")
	assert.Empty(t, repo.created)

	created, err := svc.Create(context.Background(), models.Subject{Name: "Calculus", Code: "MAT-201", Credits: 4, Prerequisites: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), created.ID)
}

func TestSubjectUpdateRejectsSelfPrerequisite(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	_, err := svc.Update(context.Background(), 2, models.Subject{Name: "Physics", Code: "FIS-101", Credits: 5, Prerequisites: []int64{2}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSubjectDeleteEvictsCache(t *testing.T) {
	svc, repo, refs := newSubjectService(t)
	require.NoError(t, svc.Delete(context.Background(), 3))
	assert.Equal(t, []int64{3}, repo.deleted)
	_, ok := refs.Subject(3)
	assert.False(t, ok)
	assert.Len(t, refs.Subjects(), 3)
}
