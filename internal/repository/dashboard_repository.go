package repository

import (
	"context"
	"time"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (totalExaminations, totalAnswers, totalUploads int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM examination_records),
			(SELECT COUNT(*) FROM answer_results),
			(SELECT COUNT(*) FROM upload_results)`,
	).Scan(&totalExaminations, &totalAnswers, &totalUploads)
	return
}

// GetExaminationStatusCounts retrieves the distribution of records by status.
func (r *DashboardRepository) GetExaminationStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM examination_records GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DashboardPhaseStat summarizes the submissions of one phase. Average and
// pass count are only set for answer phases.
type DashboardPhaseStat struct {
	Phase             model.Phase `json:"phase"`
	Submissions       int         `json:"submissions"`
	AveragePercentage *float64    `json:"average_percentage,omitempty"`
	PassCount         *int        `json:"pass_count,omitempty"`
}

// GetPhaseStats retrieves per-phase submission counts.
func (r *DashboardRepository) GetPhaseStats(ctx context.Context) ([]DashboardPhaseStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT phase, COUNT(*), AVG(percentage)::float8, COUNT(*) FILTER (WHERE is_passed)
		 FROM answer_results GROUP BY phase
		 UNION ALL
		 SELECT phase, COUNT(*), NULL, NULL
		 FROM upload_results GROUP BY phase
		 ORDER BY 1`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []DashboardPhaseStat{}
	for rows.Next() {
		var (
			phase int
			s     DashboardPhaseStat
		)
		if err := rows.Scan(&phase, &s.Submissions, &s.AveragePercentage, &s.PassCount); err != nil {
			return nil, err
		}
		s.Phase = model.Phase(phase)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// DashboardRecentSubmission is one entry of the recent activity feed.
type DashboardRecentSubmission struct {
	ExaminationID string      `json:"examination_id"`
	Phase         model.Phase `json:"phase"`
	SubmittedAt   time.Time   `json:"submitted_at"`
	Percentage    *float64    `json:"percentage,omitempty"`
}

// GetRecentSubmissions retrieves the last N submissions across all phases.
func (r *DashboardRepository) GetRecentSubmissions(ctx context.Context, limit int) ([]DashboardRecentSubmission, error) {
	query := `
		SELECT examination_id, phase, created_at, percentage::float8
		FROM answer_results
		UNION ALL
		SELECT examination_id, phase, created_at, NULL
		FROM upload_results
		ORDER BY 3 DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []DashboardRecentSubmission{}
	for rows.Next() {
		var (
			phase int
			s     DashboardRecentSubmission
		)
		if err := rows.Scan(&s.ExaminationID, &phase, &s.SubmittedAt, &s.Percentage); err != nil {
			return nil, err
		}
		s.Phase = model.Phase(phase)
		results = append(results, s)
	}
	return results, rows.Err()
}
