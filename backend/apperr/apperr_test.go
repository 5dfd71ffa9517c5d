package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("update role: %w", Conflict("Cannot remove the last admin"))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, http.StatusBadRequest, Status(KindOf(err)))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "Cannot remove the last admin", e.Message)
}

func TestUntypedErrorIsInternal(t *testing.T) {
	err := errors.New("disk full")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, Status(KindOf(err)))
	assert.False(t, Is(nil, KindInternal))
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindNotFound:     http.StatusNotFound,
		KindForbidden:    http.StatusForbidden,
		KindUnauthorized: http.StatusUnauthorized,
		KindRateLimited:  http.StatusTooManyRequests,
		KindUnavailable:  http.StatusServiceUnavailable,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Status(kind), kind)
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Internal server error: boom", err.Error())
}
