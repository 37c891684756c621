package models

import "strings"

// Student lifecycle values.
const (
	StudentStatusActive   = "activo"
	StudentStatusInactive = "inactivo"
)

// Student represents a learner registered in the university.
type Student struct {
	ID               int64      `json:"id,omitempty"`
	Name             string     `json:"nombre" validate:"required"`
	Surname          string     `json:"apellido" validate:"required"`
	Email            string     `json:"email" validate:"required,email"`
	BirthDate        *Timestamp `json:"fechaNacimiento,omitempty"`
	EnrollmentNumber string     `json:"numeroInscripcion" validate:"required"`
	Status           string     `json:"estado,omitempty"`
	CreatedBy        string     `json:"usuarioAlta,omitempty"`
	CreatedAt        *Timestamp `json:"fechaAlta,omitempty"`
	UpdatedBy        string     `json:"usuarioModificacion,omitempty"`
	UpdatedAt        *Timestamp `json:"fechaModificacion,omitempty"`
	DeactivatedBy    string     `json:"usuarioBaja,omitempty"`
	DeactivatedAt    *Timestamp `json:"fechaBaja,omitempty"`
	DeactivateReason string     `json:"motivoBaja,omitempty"`
}

// FullName joins name and surname for listings.
func (s Student) FullName() string {
	return strings.TrimSpace(s.Name + " " + s.Surname)
}

// IsActive reports whether the student is in the active lifecycle state.
// Both "activo" and "active" are accepted since the backend is not consistent.
func (s Student) IsActive() bool {
	status := strings.ToLower(strings.TrimSpace(s.Status))
	return status == StudentStatusActive || status == "active"
}
