package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
)

func seedSubmissions(t *testing.T, store *repository.MemoryStore, submitter string, n int) {
	t.Helper()
	engine := NewSegmentService(store, nil, DefaultPolicy(), DefaultPointsPerSubmission, zerolog.Nop())
	for i := 0; i < n; i++ {
		start := float64(i * 100)
		_, err := engine.Put(context.Background(), testVideo, model.Interval{Start: start, End: start + 30}, model.CategoryHardAd, submitter)
		require.NoError(t, err)
	}
}

func TestUserService_Lookup(t *testing.T) {
	store := repository.NewMemoryStore()
	seedSubmissions(t, store, "alice", 12)

	svc := NewUserService(store)
	svc.now = func() time.Time { return time.Now().Add(72 * time.Hour) }

	resp, err := svc.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.SubmitterID)
	assert.Equal(t, 120, resp.Points)
	assert.Equal(t, model.TierSilver, resp.Tier)
	assert.Equal(t, 12, resp.Submissions)
	assert.Equal(t, 3, resp.AccountAge)

	_, err = svc.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUserService_Contributions(t *testing.T) {
	store := repository.NewMemoryStore()
	seedSubmissions(t, store, "alice", 5)
	seedSubmissions(t, store, "bob", 1)
	svc := NewUserService(store)
	ctx := context.Background()

	tests := []struct {
		name     string
		page     int
		pageSize int
		wantPage int
		wantSize int
		wantLen  int
	}{
		{"first page", 1, 2, 1, 2, 2},
		{"last partial page", 3, 2, 3, 2, 1},
		{"past the end", 9, 2, 9, 2, 0},
		{"defaults", 0, 0, 1, DefaultPageSize, 5},
		{"oversized page", 1, 1000, 1, MaxPageSize, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Contributions(ctx, "alice", tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantSize, got.PageSize)
			assert.Equal(t, 5, got.Total)
			assert.Len(t, got.List, tt.wantLen)
		})
	}

	first, err := svc.Contributions(ctx, "alice", 1, 5)
	require.NoError(t, err)
	for i := 1; i < len(first.List); i++ {
		assert.Greater(t, first.List[i-1].ID, first.List[i].ID, "newest first")
	}
}

func TestStatsService(t *testing.T) {
	store := repository.NewMemoryStore()
	seedSubmissions(t, store, "alice", 3)
	seedSubmissions(t, store, "bob", 1)
	engine := NewSegmentService(store, nil, DefaultPolicy(), DefaultPointsPerSubmission, zerolog.Nop())
	ctx := context.Background()

	other := model.VideoKey{ContentID: "BV1yy411c7mE", PartID: "1"}
	resp, err := engine.Put(ctx, other, model.Interval{Start: 0, End: 10}, model.CategorySoftAd, "")
	require.NoError(t, err)
	_, err = engine.Vote(ctx, resp.ID, model.DirectionDown, "")
	require.NoError(t, err)
	require.NoError(t, engine.ReportSkip(ctx, 1))

	svc := NewStatsService(store)

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.TotalVideos)
	assert.Equal(t, 5, overview.TotalSegments)
	assert.Equal(t, 3, overview.ActiveSegments)
	assert.Equal(t, 1, overview.TotalVotes)
	assert.Equal(t, 1, overview.TotalSkips)
	assert.Equal(t, 2, overview.TotalSubmitters)

	popular, err := svc.PopularVideos(ctx)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, testVideo.ContentID, popular[0].VideoID)
	assert.Equal(t, 4, popular[0].SegmentCount)

	top, err := svc.TopSubmitters(ctx)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].SubmitterID)
	assert.Equal(t, 30, top[0].Points)
	assert.Equal(t, model.TierBronze, top[0].Tier)
}
