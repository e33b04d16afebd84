package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/adonhq/assessment-backend/internal/upload"
	"github.com/adonhq/assessment-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// multipartOverhead is the slack allowed on top of the file ceiling for
// boundaries and part headers.
const multipartOverhead = 1 << 20

// ExamSession is the controller behind the candidate endpoints.
type ExamSession interface {
	ValidateIdentifier(ctx context.Context, examinationID string) (*model.ExaminationRecord, error)
	Progress(ctx context.Context, examinationID string) (*model.ExaminationProgress, error)
	StartPhase(ctx context.Context, phase model.Phase, examinationID string) (*service.PhaseTimer, error)
	PhaseTimer(ctx context.Context, phase model.Phase, examinationID string) (*service.PhaseTimer, error)
	SubmitAnswers(ctx context.Context, phase model.Phase, examinationID string, raw map[string]any) (*service.ScoredSubmission, error)
	SubmitUpload(ctx context.Context, phase model.Phase, examinationID string, file *upload.File, body service.Artifact) (*service.StoredArtifact, error)
}

// ExamHandler handles the candidate-facing exam endpoints.
type ExamHandler struct {
	session        ExamSession
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(session ExamSession, maxUploadBytes int64, log zerolog.Logger) *ExamHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = upload.MaxFileBytes
	}
	return &ExamHandler{
		session:        session,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("component", "exam_handler").Logger(),
	}
}

// ValidateExamination godoc
// POST /api/v1/exams/validate
// Checks that an examination identifier exists before phase 1 starts.
func (h *ExamHandler) ValidateExamination(c *gin.Context) {
	var req model.ValidateExaminationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, err := h.session.ValidateIdentifier(c.Request.Context(), req.ExaminationID)
	if err != nil {
		failSession(c, h.log, 0, req.ExaminationID, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"valid":          true,
		"examination_id": rec.ExaminationID,
		"status":         rec.Status,
	})
}

// GetProgress godoc
// GET /api/v1/exams/:examination_id/progress
// Reports every phase's state so the client knows where to resume.
func (h *ExamHandler) GetProgress(c *gin.Context) {
	id := c.Param("examination_id")
	progress, err := h.session.Progress(c.Request.Context(), id)
	if err != nil {
		failSession(c, h.log, 0, id, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}

// StartPhase godoc
// POST /api/v1/exams/:examination_id/phases/:phase/start
// Anchors the phase countdown. Calling it again returns the same countdown.
func (h *ExamHandler) StartPhase(c *gin.Context) {
	id, phase, ok := h.phaseParams(c)
	if !ok {
		return
	}
	timer, err := h.session.StartPhase(c.Request.Context(), phase, id)
	if err != nil {
		failSession(c, h.log, phase, id, err)
		return
	}
	response.Success(c, http.StatusOK, timer)
}

// GetTimer godoc
// GET /api/v1/exams/:examination_id/phases/:phase/timer
// Returns the remaining time without starting the countdown.
func (h *ExamHandler) GetTimer(c *gin.Context) {
	id, phase, ok := h.phaseParams(c)
	if !ok {
		return
	}
	timer, err := h.session.PhaseTimer(c.Request.Context(), phase, id)
	if err != nil {
		failSession(c, h.log, phase, id, err)
		return
	}
	response.Success(c, http.StatusOK, timer)
}

// SubmitAnswers godoc
// POST /api/v1/exams/:examination_id/phases/:phase/answers
// Scores and records phase 1 or phase 2.
func (h *ExamHandler) SubmitAnswers(c *gin.Context) {
	id, phase, ok := h.phaseParams(c)
	if !ok {
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.session.SubmitAnswers(c.Request.Context(), phase, id, req.Answers)
	if err != nil {
		failSession(c, h.log, phase, id, err)
		return
	}
	response.Success(c, http.StatusCreated, sub)
}

// SubmitUpload godoc
// POST /api/v1/exams/:examination_id/phases/:phase/upload
// Stores the phase 3 or phase 4 artifact sent as multipart field "file".
func (h *ExamHandler) SubmitUpload(c *gin.Context) {
	id, phase, ok := h.phaseParams(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	var (
		file *upload.File
		body service.Artifact
	)
	f, header, err := c.Request.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		file = fileFromHeader(header)
		body = f
	case errors.Is(err, http.ErrMissingFile):
		// Presence is reported by the controller, after the identifier check.
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// The identifier is still reported before the size.
			if _, err := h.session.ValidateIdentifier(c.Request.Context(), id); err != nil {
				failSession(c, h.log, phase, id, err)
				return
			}
			failSession(c, h.log, phase, id, upload.ErrTooLarge)
			return
		}
		h.log.Debug().Err(err).Str("examination_id", id).Msg("Malformed multipart body")
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	art, err := h.session.SubmitUpload(c.Request.Context(), phase, id, file, body)
	if err != nil {
		failSession(c, h.log, phase, id, err)
		return
	}
	response.Success(c, http.StatusCreated, art)
}

func (h *ExamHandler) phaseParams(c *gin.Context) (string, model.Phase, bool) {
	phase, err := model.ParsePhase(c.Param("phase"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPhase)
		return "", 0, false
	}
	return c.Param("examination_id"), phase, true
}

func fileFromHeader(header *multipart.FileHeader) *upload.File {
	return &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
}
