package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/adonhq/assessment-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExaminationAdmin is the provisioning service behind the admin endpoints.
type ExaminationAdmin interface {
	Create(ctx context.Context, req *model.CreateExaminationRequest) (*model.ExaminationRecord, error)
	List(ctx context.Context, prefix string, page, perPage int) ([]model.ExaminationRecord, int, error)
	Results(ctx context.Context, examinationID string) (*model.ExaminationResults, error)
}

// AdminExamHandler handles examination provisioning and result review.
type AdminExamHandler struct {
	exams ExaminationAdmin
	log   zerolog.Logger
}

// NewAdminExamHandler creates a new AdminExamHandler.
func NewAdminExamHandler(exams ExaminationAdmin, log zerolog.Logger) *AdminExamHandler {
	return &AdminExamHandler{
		exams: exams,
		log:   log.With().Str("component", "admin_exam_handler").Logger(),
	}
}

// ListExaminations godoc
// GET /api/v1/admin/exams?page=1&per_page=20&prefix=EX-
// Lists provisioned examination records.
func (h *AdminExamHandler) ListExaminations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	records, total, err := h.exams.List(c.Request.Context(), c.Query("prefix"), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List examinations failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"examinations": records}, response.NewPagination(page, perPage, total))
}

// CreateExamination godoc
// POST /api/v1/admin/exams
// Provisions a new examination identifier.
func (h *AdminExamHandler) CreateExamination(c *gin.Context) {
	var req model.CreateExaminationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, err := h.exams.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateExamination) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		h.log.Error().Err(err).Str("examination_id", req.ExaminationID).Msg("Create examination failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, rec)
}

// GetResults godoc
// GET /api/v1/admin/exams/:examination_id/results
// Returns every stored phase result of one examination.
func (h *AdminExamHandler) GetResults(c *gin.Context) {
	id := c.Param("examination_id")
	results, err := h.exams.Results(c.Request.Context(), id)
	if err != nil {
		failSession(c, h.log, 0, id, err)
		return
	}
	response.Success(c, http.StatusOK, results)
}
