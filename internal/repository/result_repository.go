package repository

import (
	"context"
	"fmt"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository stores the per-phase outcome of an examination. Each
// (examination_id, phase) pair is written at most once.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// CreateAnswerResult inserts a scored answer submission. It returns
// ErrDuplicateResult when the phase was already submitted and
// ErrUnknownExamination when the identifier has no record.
func (r *ResultRepository) CreateAnswerResult(ctx context.Context, a *model.AnswerResult) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO answer_results (examination_id, phase, user_answers, score, total_questions, percentage, is_passed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		a.ExaminationID, int(a.Phase), a.UserAnswers, a.Score, a.TotalQuestions, a.Percentage, a.IsPassed,
	).Scan(&a.ID, &a.CreatedAt)
	return mapInsertErr(err)
}

// CreateUploadResult inserts the record of a stored artifact.
func (r *ResultRepository) CreateUploadResult(ctx context.Context, u *model.UploadResult) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO upload_results (examination_id, phase, file_name, file_url, content_type, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		u.ExaminationID, int(u.Phase), u.FileName, u.FileURL, u.ContentType, u.SizeBytes,
	).Scan(&u.ID, &u.CreatedAt)
	return mapInsertErr(err)
}

func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	switch pgErrCode(err) {
	case pgUniqueViolation:
		return ErrDuplicateResult
	case pgForeignKeyViolation:
		return ErrUnknownExamination
	}
	return err
}

// HasResult reports whether a result already exists for the phase.
func (r *ResultRepository) HasResult(ctx context.Context, examinationID string, phase model.Phase) (bool, error) {
	table := "answer_results"
	if phase.Kind() == model.PhaseKindUpload {
		table = "upload_results"
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE examination_id = $1 AND phase = $2)`, table),
		examinationID, int(phase),
	).Scan(&exists)
	return exists, err
}

// SubmittedPhases returns every phase with a stored result, ascending.
func (r *ResultRepository) SubmittedPhases(ctx context.Context, examinationID string) ([]model.Phase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT phase FROM answer_results WHERE examination_id = $1
		 UNION
		 SELECT phase FROM upload_results WHERE examination_id = $1
		 ORDER BY phase`, examinationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		phases = append(phases, model.Phase(p))
	}
	return phases, rows.Err()
}

// ListAnswerResults returns the answer results of one examination by phase.
func (r *ResultRepository) ListAnswerResults(ctx context.Context, examinationID string) ([]model.AnswerResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, examination_id, phase, user_answers, score, total_questions, percentage, is_passed, created_at
		 FROM answer_results WHERE examination_id = $1 ORDER BY phase`, examinationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.AnswerResult{}
	for rows.Next() {
		var a model.AnswerResult
		var phase int
		if err := rows.Scan(&a.ID, &a.ExaminationID, &phase, &a.UserAnswers, &a.Score,
			&a.TotalQuestions, &a.Percentage, &a.IsPassed, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Phase = model.Phase(phase)
		results = append(results, a)
	}
	return results, rows.Err()
}

// ListUploadResults returns the upload results of one examination by phase.
func (r *ResultRepository) ListUploadResults(ctx context.Context, examinationID string) ([]model.UploadResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, examination_id, phase, file_name, file_url, content_type, size_bytes, created_at
		 FROM upload_results WHERE examination_id = $1 ORDER BY phase`, examinationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.UploadResult{}
	for rows.Next() {
		var u model.UploadResult
		var phase int
		if err := rows.Scan(&u.ID, &u.ExaminationID, &phase, &u.FileName,
			&u.FileURL, &u.ContentType, &u.SizeBytes, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Phase = model.Phase(phase)
		results = append(results, u)
	}
	return results, rows.Err()
}
