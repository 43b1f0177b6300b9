package apperrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[Kind]int{
	KindValidation:         http.StatusBadRequest,
	KindNotFound:           http.StatusNotFound,
	KindStateConflict:      http.StatusConflict,
	KindResourceExhausted:  http.StatusServiceUnavailable,
	KindExternalDependency: http.StatusBadGateway,
	KindInvariantViolation: http.StatusInternalServerError,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindRateLimited:        http.StatusTooManyRequests,
	KindInternal:           http.StatusInternalServerError,
}

// HTTPStatus maps an error to the status code a handler should return
func HTTPStatus(err error) int {
	if status, ok := statusByKind[KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Respond writes err as a JSON error body.
// External and internal causes are never echoed to the caller.
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	message := "internal error"

	var e *Error
	if errors.As(err, &e) {
		message = e.Message
	}

	c.JSON(status, gin.H{
		"error": message,
		"code":  CodeOf(err),
		"kind":  KindOf(err),
	})
}
