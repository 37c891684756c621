package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesOriginalCode(t *testing.T) {
	err := Clone(ErrDuplicateEnrollment, "Ana already enrolled in Algebra")

	assert.True(t, stdErrors.Is(err, ErrDuplicateEnrollment))
	assert.False(t, stdErrors.Is(err, ErrNotFound))
	assert.Equal(t, "Ana already enrolled in Algebra", err.Error())
}

func TestWrappedErrorStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", WithDetails(ErrRequest, "boom", map[string]interface{}{"mensaje": "boom"}))

	assert.True(t, stdErrors.Is(wrapped, ErrRequest))
	assert.True(t, HasCode(wrapped, ErrRequest.Code))
	assert.Equal(t, map[string]interface{}{"mensaje": "boom"}, FromError(wrapped).Details)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(stdErrors.New("kaput"))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Nil(t, FromError(nil))
}
