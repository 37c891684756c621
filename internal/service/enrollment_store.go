package service

import (
	"sync"
	"time"

	"github.com/noah-isme/enrollment-console/internal/models"
)

// EnrollmentStore owns the tracked enrollments. Every write publishes a new
// snapshot with a higher version; published item slices are never mutated.
//
// Local writes are journaled with the version they produced so a dataset
// fetched from an older version can be rebased onto them.
type EnrollmentStore struct {
	mu          sync.RWMutex
	current     models.EnrollmentSnapshot
	provisional int64
	journal     []storeWrite
}

// storeWrite is one journaled Append (patch == nil) or Patch.
type storeWrite struct {
	version uint64
	record  models.Enrollment
	id      int64
	patch   func(*models.Enrollment)
}

// NewEnrollmentStore returns an empty store at version zero.
func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{current: models.EnrollmentSnapshot{Items: []models.Enrollment{}}}
}

// Snapshot returns the current snapshot. The caller gets its own item slice.
func (s *EnrollmentStore) Snapshot() models.EnrollmentSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.current
	snap.Items = append([]models.Enrollment(nil), s.current.Items...)
	if snap.Items == nil {
		snap.Items = []models.Enrollment{}
	}
	return snap
}

// Version reports the current snapshot version.
func (s *EnrollmentStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}

// Len reports the number of tracked enrollments.
func (s *EnrollmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current.Items)
}

// Replace publishes a freshly loaded dataset, discarding local writes.
func (s *EnrollmentStore) Replace(items []models.Enrollment, tier models.LoadTier, degraded bool) models.EnrollmentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(items, tier, degraded, s.current.Version)
}

// ReplaceSince publishes a dataset whose fetch started when the store was at
// version since. Appends and patches published after since are replayed on
// top of it: appended records missing from items are kept and patches are
// re-applied to the loaded records.
func (s *EnrollmentStore) ReplaceSince(since uint64, items []models.Enrollment, tier models.LoadTier, degraded bool) models.EnrollmentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(items, tier, degraded, since)
}

func (s *EnrollmentStore) replace(items []models.Enrollment, tier models.LoadTier, degraded bool, since uint64) models.EnrollmentSnapshot {
	next := append([]models.Enrollment(nil), items...)
	if next == nil {
		next = []models.Enrollment{}
	}
	pending := s.journal[:0:0]
	for _, w := range s.journal {
		if w.version > since {
			pending = append(pending, w)
		}
	}
	for _, w := range pending {
		if w.patch == nil {
			if !containsRecord(next, w.record) {
				next = append(next, w.record)
			}
			continue
		}
		for i := range next {
			if next[i].ID == w.id {
				w.patch(&next[i])
			}
		}
	}
	s.journal = pending
	s.current = models.EnrollmentSnapshot{
		Version:  s.current.Version + 1,
		Items:    next,
		Degraded: degraded,
		Tier:     tier,
		LoadedAt: models.NewTimestamp(time.Now().UTC()),
	}
	return s.current
}

// Append publishes a snapshot with e added at the end.
func (s *EnrollmentStore) Append(e models.Enrollment) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Enrollment, len(s.current.Items), len(s.current.Items)+1)
	copy(next, s.current.Items)
	s.publish(append(next, e))
	s.journal = append(s.journal, storeWrite{version: s.current.Version, record: e})
	return s.current.Version
}

// Find returns the first tracked enrollment with id.
func (s *EnrollmentStore) Find(id int64) (models.Enrollment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.current.Items {
		if e.ID == id {
			return e, true
		}
	}
	return models.Enrollment{}, false
}

// Patch applies fn to every tracked enrollment with id and publishes the
// result. It reports false, leaving the store untouched, when id is unknown.
func (s *EnrollmentStore) Patch(id int64, fn func(*models.Enrollment)) (models.Enrollment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Enrollment, len(s.current.Items))
	copy(next, s.current.Items)
	var patched models.Enrollment
	found := false
	for i := range next {
		if next[i].ID != id {
			continue
		}
		fn(&next[i])
		if !found {
			patched = next[i]
			found = true
		}
	}
	if !found {
		return models.Enrollment{}, false
	}
	s.publish(next)
	s.journal = append(s.journal, storeWrite{version: s.current.Version, id: id, patch: fn})
	return patched, true
}

// Any reports whether some tracked enrollment satisfies match.
func (s *EnrollmentStore) Any(match func(models.Enrollment) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.current.Items {
		if match(e) {
			return true
		}
	}
	return false
}

// NextProvisionalID hands out negative ids for records the backend
// acknowledged without an identity, so they never collide with real ones.
func (s *EnrollmentStore) NextProvisionalID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisional--
	return s.provisional
}

// containsRecord reports whether loaded already holds e. Provisional records
// have no backend id, so they match on a non-withdrawn record of the same
// student and subject.
func containsRecord(loaded []models.Enrollment, e models.Enrollment) bool {
	for _, l := range loaded {
		if e.Provisional {
			if l.StudentID == e.StudentID && l.SubjectID == e.SubjectID && !l.EffectiveStatus().IsWithdrawn() {
				return true
			}
			continue
		}
		if l.ID == e.ID {
			return true
		}
	}
	return false
}

func (s *EnrollmentStore) publish(items []models.Enrollment) {
	s.current = models.EnrollmentSnapshot{
		Version:  s.current.Version + 1,
		Items:    items,
		Degraded: s.current.Degraded,
		Tier:     s.current.Tier,
		LoadedAt: s.current.LoadedAt,
	}
}
