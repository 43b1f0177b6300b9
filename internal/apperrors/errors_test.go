package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	t.Run("WithReason keeps identity", func(t *testing.T) {
		err := ErrSlippageExceeded.WithReason("got %s want %s", "1", "2")
		assert.True(t, errors.Is(err, ErrSlippageExceeded))
		assert.False(t, errors.Is(err, ErrPoolGraduated))
		assert.Contains(t, err.Error(), "got 1 want 2")
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("claim: %w", ErrClaimInProgress)
		assert.True(t, errors.Is(err, ErrClaimInProgress))
		assert.Equal(t, KindStateConflict, KindOf(err))
		assert.Equal(t, "CLAIM_IN_PROGRESS", CodeOf(err))
	})

	t.Run("cause is reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := ErrRPC.Wrap(cause)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, ErrRPC))
	})

	t.Run("unclassified", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		ErrInvalidAmount:        http.StatusBadRequest,
		ErrTokenNotFound:        http.StatusNotFound,
		ErrPoolGraduated:        http.StatusConflict,
		ErrInsufficientTreasury: http.StatusServiceUnavailable,
		ErrConfirmationTimeout:  http.StatusBadGateway,
		ErrInvariantViolation:   http.StatusInternalServerError,
		ErrAuthFailed:           http.StatusUnauthorized,
		ErrForbidden:            http.StatusForbidden,
		ErrRateLimited:          http.StatusTooManyRequests,
	}
	for err, status := range cases {
		assert.Equal(t, status, HTTPStatus(err), err.Code)
	}
}

func TestRespondHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Respond(c, ErrRPC.Wrap(errors.New("secret upstream payload")))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "secret upstream payload")
	assert.Contains(t, w.Body.String(), "RPC_ERROR")
}
