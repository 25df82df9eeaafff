package services

import (
	"context"

	"github.com/taskflow/apiserver/internal/apperr"
	"github.com/taskflow/apiserver/types"
)

type userCounter interface {
	Count(ctx context.Context) (int, error)
}

type taskCounter interface {
	CountByStatus(ctx context.Context) (total, completed int, err error)
}

// StatsService aggregates the admin dashboard counters.
type StatsService struct {
	users userCounter
	tasks taskCounter
}

func NewStatsService(users userCounter, tasks taskCounter) *StatsService {
	return &StatsService{users: users, tasks: tasks}
}

// Dashboard returns user and task totals. Every task that is not completed
// counts as pending.
func (s *StatsService) Dashboard(ctx context.Context) (types.TaskStats, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return types.TaskStats{}, apperr.Internal(err)
	}
	totalTasks, completed, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return types.TaskStats{}, apperr.Internal(err)
	}
	return types.TaskStats{
		TotalUsers:     totalUsers,
		TotalTasks:     totalTasks,
		CompletedTasks: completed,
		PendingTasks:   totalTasks - completed,
	}, nil
}
