package models

// Subject represents a course students can enroll into.
type Subject struct {
	ID              int64   `json:"id,omitempty"`
	Name            string  `json:"nombreMateria" validate:"required"`
	Code            string  `json:"codigoUnico" validate:"required"`
	Credits         int     `json:"creditos" validate:"gte=1"`
	Prerequisites   []int64 `json:"prerequisitos"`
	PrerequisiteFor []int64 `json:"esPrerequisitoDe,omitempty"`
}
