package service

import (
	"context"
	"time"

	"github.com/spec-kit/dof-service/internal/domain"
	"github.com/spec-kit/dof-service/internal/repository"
)

// StatisticsService projects case counts over the departments a user resolves to.
type StatisticsService struct {
	store repository.Store
	now   func() time.Time
}

// NewStatisticsService constructs the service.
func NewStatisticsService(store repository.Store) *StatisticsService {
	return &StatisticsService{store: store, now: time.Now}
}

// ForUser returns open, closed-this-week, upcoming-deadline and overdue
// counts for the user's resolved departments.
func (s *StatisticsService) ForUser(ctx context.Context, userID string) (domain.CaseStatistics, error) {
	repos := s.store.Repos()
	user, err := loadActor(ctx, repos, userID)
	if err != nil {
		return domain.CaseStatistics{}, err
	}
	set, err := NewOrgResolver(repos).ResolveManagedDepartments(ctx, user)
	if err != nil {
		return domain.CaseStatistics{}, err
	}
	if len(set) == 0 {
		return domain.CaseStatistics{}, nil
	}
	return repos.Cases.Statistics(ctx, set.IDs(), s.now())
}
