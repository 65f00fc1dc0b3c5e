package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"conti/internal/core"
	applog "conti/internal/log"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps the core error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidField),
		errors.Is(err, core.ErrInvalidDirection),
		errors.Is(err, core.ErrTypeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Server errors are logged and their detail hidden.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		applog.FromContext(ctx).ErrorContext(ctx, "Request failed",
			applog.NewFields().WithError(err).ToSlice()...)
		c.AbortWithStatusJSON(status, errorBody{Error: "internal server error"})
		return
	}

	body := errorBody{Error: err.Error()}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}
