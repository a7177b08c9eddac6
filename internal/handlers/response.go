package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondTaxonomy maps the engine's error taxonomy onto HTTP statuses.
// Requests never hard-fail silently: anything unmapped is an internal
// error with an explicit envelope.
func RespondTaxonomy(c *gin.Context, err error) {
	var respCount *errs.InvalidResponseCountError
	var dimErr *errs.DimensionMismatchError
	var svcErr *errs.ServiceError
	var compErr *errs.ComputationFailedError

	switch {
	case errors.As(err, &respCount):
		RespondError(c, http.StatusBadRequest, "invalid_response_count", err)
	case errors.Is(err, errs.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, errs.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, errs.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.As(err, &dimErr):
		RespondError(c, http.StatusInternalServerError, "dimension_mismatch", err)
	case errors.As(err, &svcErr):
		RespondError(c, http.StatusServiceUnavailable, "service_unavailable", err)
	case errors.As(err, &compErr):
		RespondError(c, http.StatusServiceUnavailable, "computation_failed", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
