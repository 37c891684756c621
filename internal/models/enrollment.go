package models

import (
	"encoding/json"
	"strings"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

var enrollmentStatusAliases = map[string]EnrollmentStatus{
	"ACTIVE":    EnrollmentStatusActive,
	"ACTIVA":    EnrollmentStatusActive,
	"WITHDRAWN": EnrollmentStatusWithdrawn,
	"BAJA":      EnrollmentStatusWithdrawn,
	"CANCELADA": EnrollmentStatusWithdrawn,
}

// ParseEnrollmentStatus normalises backend spellings. Unknown values are
// returned upper-cased and reported as invalid.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if status, ok := enrollmentStatusAliases[key]; ok {
		return status, true
	}
	return EnrollmentStatus(key), false
}

// UnmarshalJSON normalises status aliases on decode.
func (s *EnrollmentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	*s, _ = ParseEnrollmentStatus(raw)
	return nil
}

// backendStatusSpelling is how the registry backend stores each status.
var backendStatusSpelling = map[EnrollmentStatus]string{
	EnrollmentStatusActive:    "activa",
	EnrollmentStatusWithdrawn: "cancelada",
}

// BackendValue returns the spelling the registry backend stores. Unknown
// statuses are passed through unchanged.
func (s EnrollmentStatus) BackendValue() string {
	if v, ok := backendStatusSpelling[s]; ok {
		return v
	}
	return string(s)
}

// IsWithdrawn reports whether the status marks a soft-deleted enrollment.
func (s EnrollmentStatus) IsWithdrawn() bool {
	return s == EnrollmentStatusWithdrawn
}

// Enrollment captures a student's registration to a subject.
type Enrollment struct {
	ID          int64            `json:"id,omitempty"`
	StudentID   int64            `json:"estudianteId" validate:"required,gt=0"`
	SubjectID   int64            `json:"materiaId" validate:"required,gt=0"`
	EnrolledAt  *Timestamp       `json:"fechaInscripcion,omitempty"`
	Status      EnrollmentStatus `json:"estado,omitempty"`
	CreatedBy   string           `json:"usuarioAlta,omitempty"`
	CreatedAt   *Timestamp       `json:"fechaAlta,omitempty"`
	WithdrawnBy string           `json:"usuarioBaja,omitempty"`
	WithdrawnAt *Timestamp       `json:"fechaBaja,omitempty"`
	// Provisional marks records synthesised locally because the backend
	// acknowledged a create without returning an identity.
	Provisional bool `json:"provisional,omitempty"`
}

// EffectiveStatus treats a missing status as active, matching how the backend
// lists freshly created enrollments.
func (e Enrollment) EffectiveStatus() EnrollmentStatus {
	if e.Status == "" {
		return EnrollmentStatusActive
	}
	return e.Status
}

// EnrollmentView enriches an enrollment with student and subject labels.
type EnrollmentView struct {
	Enrollment
	StudentName string `json:"studentName"`
	SubjectName string `json:"subjectName"`
	SubjectCode string `json:"subjectCode"`
}

// LoadTier names the data source an enrollment snapshot came from.
type LoadTier string

// Load tiers in the order they are attempted.
const (
	LoadTierPrimary    LoadTier = "primary"
	LoadTierPerStudent LoadTier = "per_student"
	LoadTierStatic     LoadTier = "static"
)

// EnrollmentSnapshot is an immutable, versioned view of the tracked enrollments.
type EnrollmentSnapshot struct {
	Version  uint64       `json:"version"`
	Items    []Enrollment `json:"items"`
	Degraded bool         `json:"degraded"`
	Tier     LoadTier     `json:"tier"`
	LoadedAt *Timestamp   `json:"loadedAt,omitempty"`
}
