package service

import (
	"sync"

	"github.com/noah-isme/enrollment-console/internal/models"
)

// ReferenceCache holds the students and subjects enrollments point at.
// Listings keep upstream order.
type ReferenceCache struct {
	mu       sync.RWMutex
	students map[int64]models.Student
	stuOrder []int64
	subjects map[int64]models.Subject
	subOrder []int64
}

// NewReferenceCache returns an empty cache.
func NewReferenceCache() *ReferenceCache {
	return &ReferenceCache{
		students: make(map[int64]models.Student),
		subjects: make(map[int64]models.Subject),
	}
}

// ReplaceStudents swaps the whole student set. Records without id are skipped.
func (c *ReferenceCache) ReplaceStudents(students []models.Student) {
	index := make(map[int64]models.Student, len(students))
	order := make([]int64, 0, len(students))
	for _, s := range students {
		if s.ID == 0 {
			continue
		}
		if _, dup := index[s.ID]; !dup {
			order = append(order, s.ID)
		}
		index[s.ID] = s
	}
	c.mu.Lock()
	c.students, c.stuOrder = index, order
	c.mu.Unlock()
}

// ReplaceSubjects swaps the whole subject set. Records without id are skipped.
func (c *ReferenceCache) ReplaceSubjects(subjects []models.Subject) {
	index := make(map[int64]models.Subject, len(subjects))
	order := make([]int64, 0, len(subjects))
	for _, s := range subjects {
		if s.ID == 0 {
			continue
		}
		if _, dup := index[s.ID]; !dup {
			order = append(order, s.ID)
		}
		index[s.ID] = s
	}
	c.mu.Lock()
	c.subjects, c.subOrder = index, order
	c.mu.Unlock()
}

// Student looks up a student by id.
func (c *ReferenceCache) Student(id int64) (models.Student, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.students[id]
	return s, ok
}

// Subject looks up a subject by id.
func (c *ReferenceCache) Subject(id int64) (models.Subject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subjects[id]
	return s, ok
}

// Students returns the cached students in upstream order.
func (c *ReferenceCache) Students() []models.Student {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Student, 0, len(c.stuOrder))
	for _, id := range c.stuOrder {
		out = append(out, c.students[id])
	}
	return out
}

// Subjects returns the cached subjects in upstream order.
func (c *ReferenceCache) Subjects() []models.Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Subject, 0, len(c.subOrder))
	for _, id := range c.subOrder {
		out = append(out, c.subjects[id])
	}
	return out
}

// PutStudent inserts or replaces one student.
func (c *ReferenceCache) PutStudent(s models.Student) {
	if s.ID == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.students[s.ID]; !ok {
		c.stuOrder = append(c.stuOrder, s.ID)
	}
	c.students[s.ID] = s
}

// PutSubject inserts or replaces one subject.
func (c *ReferenceCache) PutSubject(s models.Subject) {
	if s.ID == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subjects[s.ID]; !ok {
		c.subOrder = append(c.subOrder, s.ID)
	}
	c.subjects[s.ID] = s
}

// RemoveSubject drops a subject from the cache.
func (c *ReferenceCache) RemoveSubject(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subjects[id]; !ok {
		return
	}
	delete(c.subjects, id)
	for i, sid := range c.subOrder {
		if sid == id {
			c.subOrder = append(c.subOrder[:i:i], c.subOrder[i+1:]...)
			break
		}
	}
}

// MarkStudentActive flips the cached student's lifecycle status to active.
func (c *ReferenceCache) MarkStudentActive(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.students[id]; ok {
		s.Status = models.StudentStatusActive
		c.students[id] = s
	}
}
