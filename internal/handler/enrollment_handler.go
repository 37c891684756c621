package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-console/internal/models"
	"github.com/noah-isme/enrollment-console/internal/service"
	"github.com/noah-isme/enrollment-console/pkg/response"
)

type enrollmentService interface {
	Load(ctx context.Context) service.LoadReport
	Snapshot() models.EnrollmentSnapshot
	Views(term string) []models.EnrollmentView
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.Enrollment, error)
	Withdraw(ctx context.Context, id int64) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id int64, req service.UpdateEnrollmentStatusRequest) (*models.Enrollment, error)
}

type enrollmentExporter interface {
	Enrollments(format, term string) (*service.ExportFile, error)
}

type auditReader interface {
	Recent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// EnrollmentHandler exposes the reconciled enrollment listing and its writes.
type EnrollmentHandler struct {
	enrollments enrollmentService
	exporter    enrollmentExporter
	audit       auditReader
}

// NewEnrollmentHandler constructs EnrollmentHandler. audit may be nil when
// the audit trail is disabled.
func NewEnrollmentHandler(enrollments enrollmentService, exporter enrollmentExporter, audit auditReader) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, exporter: exporter, audit: audit}
}

func snapshotMeta(c *gin.Context, snap models.EnrollmentSnapshot, count int) map[string]interface{} {
	c.Header("X-Data-Degraded", strconv.FormatBool(snap.Degraded))
	c.Header("X-Data-Tier", string(snap.Tier))
	return map[string]interface{}{
		"version":  snap.Version,
		"tier":     snap.Tier,
		"degraded": snap.Degraded,
		"loadedAt": snap.LoadedAt,
		"count":    count,
	}
}

// List godoc
// @Summary List enrollments
// @Description Returns the tracked enrollments joined with student and subject names.
// @Tags Enrollments
// @Produce json
// @Param q query string false "Filter by student name, subject name, code or date"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	snap := h.enrollments.Snapshot()
	views := h.enrollments.Views(c.Query("q"))
	response.JSON(c, http.StatusOK, views, snapshotMeta(c, snap, len(views)))
}

// Reload godoc
// @Summary Reload enrollments from the backend
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/reload [post]
func (h *EnrollmentHandler) Reload(c *gin.Context) {
	report := h.enrollments.Load(c.Request.Context())
	meta := snapshotMeta(c, report.Snapshot, len(report.Snapshot.Items))
	if len(report.Warnings) > 0 {
		meta["warnings"] = report.Warnings
	}
	if len(report.Failures) > 0 {
		meta["failures"] = report.Failures
	}
	response.JSON(c, http.StatusOK, report.Snapshot, meta)
}

// Create godoc
// @Summary Enroll a student in a subject
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if enrollment.Provisional {
		meta = map[string]interface{}{"provisional": true}
	}
	response.Created(c, enrollment, meta)
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Withdraw(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path int true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollment, err := h.enrollments.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment)
}

// Export godoc
// @Summary Export the filtered enrollment listing
// @Tags Enrollments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param q query string false "Filter term"
// @Success 200 {file} file
// @Router /enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	file, err := h.exporter.Enrollments(c.DefaultQuery("format", "csv"), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Audit godoc
// @Summary Recent enrollment writes
// @Tags Enrollments
// @Produce json
// @Param limit query int false "Maximum entries" default(100)
// @Success 200 {object} response.Envelope
// @Router /enrollments/audit [get]
func (h *EnrollmentHandler) Audit(c *gin.Context) {
	if h.audit == nil {
		response.JSON(c, http.StatusOK, []models.AuditLog{}, map[string]interface{}{"enabled": false})
		return
	}
	entries, err := h.audit.Recent(c.Request.Context(), parseQueryInt(c, "limit", 100))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"enabled": true, "count": len(entries)})
}
