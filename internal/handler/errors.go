package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/adonhq/assessment-backend/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// sessionFailure is the caller-facing rendering of a controller error.
type sessionFailure struct {
	status  int
	code    response.ErrCode
	message string
}

// classify maps a controller error to its status, code and message. Causes
// wrapped inside err are never part of the message.
func classify(phase model.Phase, err error) sessionFailure {
	switch {
	case errors.Is(err, service.ErrInvalidExamID):
		return sessionFailure{http.StatusNotFound, response.ErrInvalidExamID, ""}
	case errors.Is(err, service.ErrStoreUnavailable):
		return sessionFailure{http.StatusServiceUnavailable, response.ErrStoreUnavailable, ""}
	case errors.Is(err, service.ErrInvalidPhase):
		return sessionFailure{http.StatusBadRequest, response.ErrInvalidPhase, ""}
	case errors.Is(err, upload.ErrMissingFile):
		return sessionFailure{http.StatusBadRequest, response.ErrFileRequired, ""}
	case errors.Is(err, upload.ErrTooLarge):
		return sessionFailure{http.StatusRequestEntityTooLarge, response.ErrFileTooLarge, ""}
	case errors.Is(err, upload.ErrInvalidType):
		return sessionFailure{http.StatusUnsupportedMediaType, response.ErrUnsupportedFile, invalidTypeMessage(phase)}
	case errors.Is(err, service.ErrUploadFailed):
		return sessionFailure{http.StatusBadGateway, response.ErrUploadFailed, ""}
	case errors.Is(err, service.ErrPersistFailed):
		return sessionFailure{http.StatusInternalServerError, response.ErrPersistFailed, ""}
	case errors.Is(err, service.ErrAlreadySubmitted):
		return sessionFailure{http.StatusConflict, response.ErrAlreadySubmitted, ""}
	case errors.Is(err, service.ErrDeadlineExpired):
		return sessionFailure{http.StatusForbidden, response.ErrDeadlineExpired, ""}
	default:
		return sessionFailure{http.StatusInternalServerError, response.ErrUnexpected, ""}
	}
}

func invalidTypeMessage(phase model.Phase) string {
	policy, ok := upload.PolicyFor(phase)
	if !ok || policy.Label == "" {
		return ""
	}
	return fmt.Sprintf("Invalid file type. Only %s allowed.", policy.Label)
}

// failSession writes the error response and logs the cause. Server-side
// failures log at error level, candidate mistakes at debug.
func failSession(c *gin.Context, log zerolog.Logger, phase model.Phase, examinationID string, err error) {
	f := classify(phase, err)

	log = response.Logger(c, log)
	ev := log.Debug()
	if f.status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("examination_id", examinationID).
		Int("phase", int(phase)).
		Str("code", string(f.code)).
		Msg("Exam request failed")

	response.FailWithMessage(c, f.status, f.code, f.message)
}
