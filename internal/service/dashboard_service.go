package service

import (
	"context"
	"fmt"

	"github.com/adonhq/assessment-backend/internal/repository"
)

// DashboardStore is the data source of the admin dashboard.
type DashboardStore interface {
	GetSummaryCounts(ctx context.Context) (totalExaminations, totalAnswers, totalUploads int, err error)
	GetExaminationStatusCounts(ctx context.Context) (map[string]int, error)
	GetPhaseStats(ctx context.Context) ([]repository.DashboardPhaseStat, error)
	GetRecentSubmissions(ctx context.Context, limit int) ([]repository.DashboardRecentSubmission, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	TotalExaminations  int                                    `json:"total_examinations"`
	TotalSubmissions   int                                    `json:"total_submissions"`
	StatusCounts       map[string]int                         `json:"status_counts"`
	Phases             []repository.DashboardPhaseStat        `json:"phases"`
	RecentSubmissions  []repository.DashboardRecentSubmission `json:"recent_submissions"`
	PendingCleanupJobs int64                                  `json:"pending_cleanup_jobs"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo       DashboardStore
	queueDepth func(ctx context.Context) (int64, error)
}

// NewDashboardService creates a new DashboardService. queueDepth may be nil.
func NewDashboardService(repo DashboardStore, queueDepth func(ctx context.Context) (int64, error)) *DashboardService {
	return &DashboardService{repo: repo, queueDepth: queueDepth}
}

// GetDashboardData fetches all dashboard metrics sequentially.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	exams, answers, uploads, err := s.repo.GetSummaryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	statusCounts, err := s.repo.GetExaminationStatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}

	phases, err := s.repo.GetPhaseStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase stats: %w", err)
	}

	recent, err := s.repo.GetRecentSubmissions(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("recent submissions: %w", err)
	}

	data := &DashboardData{
		TotalExaminations: exams,
		TotalSubmissions:  answers + uploads,
		StatusCounts:      statusCounts,
		Phases:            phases,
		RecentSubmissions: recent,
	}

	// The queue depth is informational; a Redis hiccup does not fail the page.
	if s.queueDepth != nil {
		if depth, err := s.queueDepth(ctx); err == nil {
			data.PendingCleanupJobs = depth
		}
	}

	return data, nil
}
