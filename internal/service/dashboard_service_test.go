package service

import (
	"context"
	"errors"
	"testing"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/repository"
)

type fakeDashboard struct {
	statusErr error
}

func (f *fakeDashboard) GetSummaryCounts(ctx context.Context) (int, int, int, error) {
	return 4, 3, 2, nil
}

func (f *fakeDashboard) GetExaminationStatusCounts(ctx context.Context) (map[string]int, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return map[string]int{"pending": 4}, nil
}

func (f *fakeDashboard) GetPhaseStats(ctx context.Context) ([]repository.DashboardPhaseStat, error) {
	avg, passed := 80.0, 2
	return []repository.DashboardPhaseStat{
		{Phase: model.PhaseOne, Submissions: 3, AveragePercentage: &avg, PassCount: &passed},
		{Phase: model.PhaseThree, Submissions: 2},
	}, nil
}

func (f *fakeDashboard) GetRecentSubmissions(ctx context.Context, limit int) ([]repository.DashboardRecentSubmission, error) {
	return []repository.DashboardRecentSubmission{{ExaminationID: "EX-1", Phase: model.PhaseOne}}, nil
}

func TestDashboardData(t *testing.T) {
	svc := NewDashboardService(&fakeDashboard{}, func(ctx context.Context) (int64, error) { return 7, nil })

	data, err := svc.GetDashboardData(context.Background())
	if err != nil {
		t.Fatalf("GetDashboardData: %v", err)
	}
	if data.TotalExaminations != 4 || data.TotalSubmissions != 5 {
		t.Errorf("totals = %d/%d, want 4/5", data.TotalExaminations, data.TotalSubmissions)
	}
	if len(data.Phases) != 2 || data.StatusCounts["pending"] != 4 || len(data.RecentSubmissions) != 1 {
		t.Errorf("data = %+v", data)
	}
	if data.PendingCleanupJobs != 7 {
		t.Errorf("PendingCleanupJobs = %d, want 7", data.PendingCleanupJobs)
	}
}

func TestDashboardQueueDepthIsOptional(t *testing.T) {
	svc := NewDashboardService(&fakeDashboard{}, func(ctx context.Context) (int64, error) {
		return 0, errors.New("redis down")
	})
	data, err := svc.GetDashboardData(context.Background())
	if err != nil {
		t.Fatalf("queue depth failure should not fail the dashboard: %v", err)
	}
	if data.PendingCleanupJobs != 0 {
		t.Errorf("PendingCleanupJobs = %d", data.PendingCleanupJobs)
	}

	svc = NewDashboardService(&fakeDashboard{statusErr: errors.New("boom")}, nil)
	if _, err := svc.GetDashboardData(context.Background()); err == nil {
		t.Error("store failure should propagate")
	}
}
