package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/annotator/internal/dataset"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest  = "bad_request"
	CodeValidation  = "validation_failed"
	CodeConflict    = "conflict"
	CodeNotFound    = "not_found"
	CodeBusy        = "busy"
	CodeTooLarge    = "too_large"
	CodeUnsupported = "unsupported_media_type"
	CodeReadOnly    = "read_only"
	CodeInternal    = "internal"
)

// respondDomainError maps business-layer errors to HTTP responses.
func respondDomainError(c *gin.Context, log logrus.FieldLogger, err error, action string) {
	var verr *dataset.ValidationError
	var derr *dataset.Error

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   verr.Error(),
			Code:    CodeValidation,
			Details: verr.Problems,
		})
	case errors.Is(err, dataset.ErrConstraint), errors.Is(err, dataset.ErrAlreadyExists):
		respondError(c, http.StatusConflict, CodeConflict, message(err, derr))
	case errors.Is(err, dataset.ErrNotFound):
		respondError(c, http.StatusNotFound, CodeNotFound, message(err, derr))
	case errors.Is(err, dataset.ErrBusy):
		c.Header("Retry-After", "1")
		respondError(c, http.StatusServiceUnavailable, CodeBusy, message(err, derr))
	default:
		respondInternalError(c, log, err, action)
	}
}

func message(err error, derr *dataset.Error) string {
	if errors.As(err, &derr) {
		return derr.Message
	}
	return err.Error()
}
