package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-console/internal/models"
)

func TestReferenceCacheKeepsUpstreamOrder(t *testing.T) {
	cache := NewReferenceCache()
	cache.ReplaceStudents([]models.Student{{ID: 3, Name: "C"}, {ID: 0, Name: "ghost"}, {ID: 1, Name: "A"}, {ID: 3, Name: "C2"}})

	students := cache.Students()
	require.Len(t, students, 2)
	assert.Equal(t, int64(3), students[0].ID)
	assert.Equal(t, "C2", students[0].Name)
	assert.Equal(t, int64(1), students[1].ID)
}

func TestReferenceCacheSubjectMutations(t *testing.T) {
	cache := NewReferenceCache()
	cache.ReplaceSubjects([]models.Subject{{ID: 1, Code: "MAT-101"}, {ID: 2, Code: "FIS-101"}})

	cache.PutSubject(models.Subject{ID: 5, Code: "QUI-101"})
	cache.PutSubject(models.Subject{ID: 1, Code: "MAT-100"})
	cache.RemoveSubject(2)
	cache.RemoveSubject(42)

	subjects := cache.Subjects()
	require.Len(t, subjects, 2)
	assert.Equal(t, "MAT-100", subjects[0].Code)
	assert.Equal(t, int64(5), subjects[1].ID)
	_, ok := cache.Subject(2)
	assert.False(t, ok)
}

func TestReferenceCacheMarkStudentActive(t *testing.T) {
	cache := NewReferenceCache()
	cache.PutStudent(models.Student{ID: 7, Status: models.StudentStatusInactive})

	cache.MarkStudentActive(7)
	cache.MarkStudentActive(8)

	student, ok := cache.Student(7)
	require.True(t, ok)
	assert.True(t, student.IsActive())
	_, ok = cache.Student(8)
	assert.False(t, ok)
}
