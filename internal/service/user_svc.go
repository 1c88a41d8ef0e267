package service

import (
	"context"
	"math"
	"time"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type UserService struct {
	repo repository.SubmitterStore
	now  func() time.Time
}

func NewUserService(repo repository.SubmitterStore) *UserService {
	return &UserService{repo: repo, now: time.Now}
}

// Lookup returns the profile of a submitter.
func (s *UserService) Lookup(ctx context.Context, submitterID string) (*model.SubmitterResponse, error) {
	u, err := s.repo.FindSubmitter(ctx, submitterID)
	if err != nil {
		return nil, err
	}

	accountAge := int(math.Floor(s.now().Sub(u.FirstSeen).Hours() / 24))

	return &model.SubmitterResponse{
		SubmitterID: u.SubmitterID,
		Points:      u.Points,
		Tier:        TierFor(u.Points),
		Submissions: u.Submissions,
		AccountAge:  max(accountAge, 0),
	}, nil
}

// Contributions returns one page of a submitter's segments, newest first.
// Pages are 1-based; out of range values are clamped.
func (s *UserService) Contributions(ctx context.Context, submitterID string, page, pageSize int) (*model.ContributionsPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	list, total, err := s.repo.ListContributions(ctx, submitterID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &model.ContributionsPage{
		List:     list,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}
