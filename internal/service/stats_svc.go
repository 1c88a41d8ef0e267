package service

import (
	"context"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
)

const (
	popularVideosLimit = 20
	topSubmittersLimit = 10
)

type StatsService struct {
	repo repository.StatsStore
}

func NewStatsService(repo repository.StatsStore) *StatsService {
	return &StatsService{repo: repo}
}

// Overview returns platform-wide totals.
func (s *StatsService) Overview(ctx context.Context) (*model.StatsOverview, error) {
	return s.repo.Overview(ctx)
}

// PopularVideos returns the most annotated videos.
func (s *StatsService) PopularVideos(ctx context.Context) ([]model.PopularVideo, error) {
	return s.repo.PopularVideos(ctx, popularVideosLimit)
}

// TopSubmitters returns the submitters with the most points.
func (s *StatsService) TopSubmitters(ctx context.Context) ([]model.TopSubmitter, error) {
	users, err := s.repo.TopSubmitters(ctx, topSubmittersLimit)
	if err != nil {
		return nil, err
	}
	out := make([]model.TopSubmitter, 0, len(users))
	for _, u := range users {
		out = append(out, model.TopSubmitter{
			SubmitterID: u.SubmitterID,
			Points:      u.Points,
			Tier:        TierFor(u.Points),
		})
	}
	return out, nil
}
