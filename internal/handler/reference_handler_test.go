package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/enrollment-console/internal/models"
	"github.com/noah-isme/enrollment-console/internal/service"
	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type fakeStudentSrv struct {
	students   []models.Student
	lastID     int64
	lastReason string
	err        error
}

func (f *fakeStudentSrv) List(context.Context) ([]models.Student, error) { return f.students, f.err }

func (f *fakeStudentSrv) Create(_ context.Context, s models.Student) (*models.Student, error) {
	s.ID = 99
	return &s, f.err
}

func (f *fakeStudentSrv) Update(_ context.Context, id int64, s models.Student) (*models.Student, error) {
	f.lastID = id
	return &s, f.err
}

func (f *fakeStudentSrv) Deactivate(_ context.Context, id int64, req service.DeactivateStudentRequest) (*models.Student, error) {
	f.lastID = id
	f.lastReason = req.Reason
	if f.err != nil {
		return nil, f.err
	}
	return &models.Student{ID: id, Status: models.StudentStatusInactive}, nil
}

type fakeSubjectSrv struct {
	deleted int64
	err     error
}

func (f *fakeSubjectSrv) List(context.Context) ([]models.Subject, error) {
	return []models.Subject{{ID: 1, Name: "Algebra", Code: "MAT-101"}}, f.err
}

func (f *fakeSubjectSrv) Create(_ context.Context, s models.Subject) (*models.Subject, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s, nil
}

func (f *fakeSubjectSrv) Update(_ context.Context, _ int64, s models.Subject) (*models.Subject, error) {
	return &s, f.err
}

func (f *fakeSubjectSrv) Delete(_ context.Context, id int64) error {
	f.deleted = id
	return f.err
}

func TestStudentHandlerListCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&fakeStudentSrv{students: []models.Student{{ID: 1}, {ID: 2}}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeEnvelope(t, rec).Meta["count"])
}

func TestStudentHandlerDeactivate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeStudentSrv{}
	handler := NewStudentHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/students/4/deactivate", bytes.NewBufferString(`{"reason":"graduated"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "4"}}

	handler.Deactivate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), srv.lastID)
	assert.Equal(t, "graduated", srv.lastReason)
}

func TestStudentHandlerDeactivateUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&fakeStudentSrv{err: appErrors.ErrNotFound})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/students/4/deactivate", bytes.NewBufferString(`{"reason":"x"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "4"}}

	handler.Deactivate(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubjectHandlerCreateMissingPrerequisite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubjectHandler(&fakeSubjectSrv{err: appErrors.ErrMissingReference})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/subjects", bytes.NewBufferString(`{"nombreMateria":"Calc II","codigoUnico":"MAT-201","creditos":4,"prerequisitos":[77]}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubjectHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSubjectSrv{}
	handler := NewSubjectHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/subjects/3", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, int64(3), srv.deleted)
}
