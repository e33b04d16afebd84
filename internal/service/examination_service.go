package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateExamination is returned when provisioning an identifier twice.
var ErrDuplicateExamination = errors.New("examination identifier already exists")

// ExaminationStore is the record persistence used for provisioning.
type ExaminationStore interface {
	ExaminationFinder
	Create(ctx context.Context, e *model.ExaminationRecord) error
	ListPaginated(ctx context.Context, prefix string, limit, offset int) ([]model.ExaminationRecord, int, error)
}

// ResultReader lists stored phase outcomes.
type ResultReader interface {
	ListAnswerResults(ctx context.Context, examinationID string) ([]model.AnswerResult, error)
	ListUploadResults(ctx context.Context, examinationID string) ([]model.UploadResult, error)
}

// ExaminationService provisions examination records and reports their
// results to operators.
type ExaminationService struct {
	exams   ExaminationStore
	results ResultReader
}

// NewExaminationService creates a new ExaminationService.
func NewExaminationService(exams ExaminationStore, results ResultReader) *ExaminationService {
	return &ExaminationService{exams: exams, results: results}
}

// Create provisions a new examination record.
func (s *ExaminationService) Create(ctx context.Context, req *model.CreateExaminationRequest) (*model.ExaminationRecord, error) {
	rec := &model.ExaminationRecord{
		ExaminationID: req.ExaminationID,
		Description:   req.Description,
		Status:        req.Status,
	}
	if err := s.exams.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateExamination) {
			return nil, ErrDuplicateExamination
		}
		return nil, fmt.Errorf("create examination: %w", err)
	}
	return rec, nil
}

// List returns records newest first.
func (s *ExaminationService) List(ctx context.Context, prefix string, page, perPage int) ([]model.ExaminationRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.exams.ListPaginated(ctx, prefix, perPage, (page-1)*perPage)
}

// Results gathers everything stored for one identifier.
func (s *ExaminationService) Results(ctx context.Context, examinationID string) (*model.ExaminationResults, error) {
	rec, err := s.exams.GetByExaminationID(ctx, examinationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidExamID
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	answers, err := s.results.ListAnswerResults(ctx, examinationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	uploads, err := s.results.ListUploadResults(ctx, examinationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return &model.ExaminationResults{Examination: *rec, Answers: answers, Uploads: uploads}, nil
}
