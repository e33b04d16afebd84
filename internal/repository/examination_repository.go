package repository

import (
	"context"
	"strconv"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExaminationRepository handles examination record data access.
type ExaminationRepository struct {
	pool *pgxpool.Pool
}

// NewExaminationRepository creates a new ExaminationRepository.
func NewExaminationRepository(pool *pgxpool.Pool) *ExaminationRepository {
	return &ExaminationRepository{pool: pool}
}

// GetByExaminationID retrieves a record by its external identifier. The match
// is exact and case-sensitive. Returns pgx.ErrNoRows when absent.
func (r *ExaminationRepository) GetByExaminationID(ctx context.Context, examinationID string) (*model.ExaminationRecord, error) {
	e := &model.ExaminationRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, examination_id, description, status, created_at, updated_at
		 FROM examination_records WHERE examination_id = $1`, examinationID,
	).Scan(&e.ID, &e.ExaminationID, &e.Description, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new examination record.
func (r *ExaminationRepository) Create(ctx context.Context, e *model.ExaminationRecord) error {
	if e.Status == "" {
		e.Status = model.DefaultExaminationStatus
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO examination_records (examination_id, description, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		e.ExaminationID, e.Description, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return ErrDuplicateExamination
		}
		return err
	}
	return nil
}

// ListPaginated retrieves examination records newest first, optionally
// filtered by an identifier prefix.
func (r *ExaminationRepository) ListPaginated(ctx context.Context, prefix string, limit, offset int) ([]model.ExaminationRecord, int, error) {
	where := ""
	var args []any
	if prefix != "" {
		where = ` WHERE examination_id LIKE $1`
		args = append(args, prefix+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM examination_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT id, examination_id, description, status, created_at, updated_at
	          FROM examination_records` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []model.ExaminationRecord{}
	for rows.Next() {
		var e model.ExaminationRecord
		if err := rows.Scan(&e.ID, &e.ExaminationID, &e.Description, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, e)
	}
	return records, total, rows.Err()
}
