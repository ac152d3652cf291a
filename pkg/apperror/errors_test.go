package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindAuth:         http.StatusUnauthorized,
		KindUnauthorized: http.StatusUnauthorized,
		KindConflict:     http.StatusConflict,
		KindNotFound:     http.StatusNotFound,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestFrom_UnwrapsChain(t *testing.T) {
	base := Conflict("username taken")
	wrapped := fmt.Errorf("register: %w", base)

	got := From(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, KindConflict, got.Kind)
	assert.Equal(t, "username taken", got.Message)
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(wrapped, KindNotFound))
}

func TestFrom_UnknownErrorBecomesInternal(t *testing.T) {
	cause := errors.New("connection reset")
	got := From(cause)

	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, From(nil))
}

func TestWrap_ErrorStringIncludesCause(t *testing.T) {
	err := Wrap(KindUnauthorized, "invalid refresh token", errors.New("token is expired"))
	assert.Equal(t, "invalid refresh token: token is expired", err.Error())
}

func TestWithDetails_DoesNotMutateOriginal(t *testing.T) {
	base := Validation("invalid payload")
	withDetails := base.WithDetails(map[string]string{"email": "is required"})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"email": "is required"}, withDetails.Details)
}
