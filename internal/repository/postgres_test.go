package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

var segmentCols = []string{
	"id", "video_id", "content_id", "part_id", "start_time", "end_time", "category",
	"upvotes", "downvotes", "vote_count", "confidence", "status", "submitter_id",
	"skip_count", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectVideoLock(mock pgxmock.PgxPoolIface, now time.Time, segs *pgxmock.Rows) {
	mock.ExpectQuery(`(?s)SELECT id, content_id, part_id, created_at\s+FROM videos.*FOR UPDATE`).
		WithArgs(key.ContentID, key.PartID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content_id", "part_id", "created_at"}).
			AddRow(int64(1), key.ContentID, key.PartID, now))
	mock.ExpectQuery(`FROM segments s\s+JOIN videos v ON v.id = s.video_id\s+WHERE s.video_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(segs)
}

func TestSegmentRepo_UpdateVideoInsertNotifies(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO videos`).
		WithArgs(key.ContentID, key.PartID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectVideoLock(mock, now, pgxmock.NewRows(segmentCols))
	mock.ExpectQuery(`INSERT INTO segments`).
		WithArgs(int64(1), 10.0, 20.0, "hard_ad", 1, 0, 0, pgxmock.AnyArg(), "active", "alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify($1, $2)`)).
		WithArgs(NotifyChannel, "BV1xx411c7mD/1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	repo := NewSegmentRepo(mock)
	err := repo.UpdateVideo(context.Background(), key, true, func(tx VideoTx) error {
		seg := model.Segment{Start: 10, End: 20, Category: model.CategoryHardAd, Upvotes: 1, Confidence: 0.2065, SubmitterID: "alice"}
		seg.SetStatus(model.StatusActive)
		if err := tx.Insert(context.Background(), &seg); err != nil {
			return err
		}
		assert.Equal(t, int64(42), seg.ID)
		assert.Equal(t, key, seg.Video)
		require.Len(t, tx.Segments(), 1)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentRepo_ReadOnlyPassIsSilent(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	expectVideoLock(mock, now, pgxmock.NewRows(segmentCols).
		AddRow(int64(7), int64(1), key.ContentID, key.PartID, 10.0, 20.0, "mid_ad",
			1, 0, 0, 0.2065, "suppressed", "alice", 0, now, now))
	mock.ExpectCommit()

	repo := NewSegmentRepo(mock)
	err := repo.UpdateVideo(context.Background(), key, false, func(tx VideoTx) error {
		segs := tx.Segments()
		require.Len(t, segs, 1)
		assert.Equal(t, model.StatusSuppressed, segs[0].Status)
		assert.False(t, segs[0].Active)
		assert.Equal(t, model.CategoryMidAd, segs[0].Category)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentRepo_VoteLedger(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	expectVideoLock(mock, now, pgxmock.NewRows(segmentCols).
		AddRow(int64(7), int64(1), key.ContentID, key.PartID, 10.0, 20.0, "hard_ad",
			1, 0, 0, 0.2065, "active", "alice", 0, now, now))
	mock.ExpectQuery(`SELECT direction FROM segment_votes`).
		WithArgs(int64(7), "bob").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO segment_votes`).
		WithArgs(int64(7), "bob", "up").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE segments\s+SET upvotes`).
		WithArgs(2, 0, 1, pgxmock.AnyArg(), "active", int64(7), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`pg_notify`).
		WithArgs(NotifyChannel, key.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	repo := NewSegmentRepo(mock)
	err := repo.UpdateVideo(context.Background(), key, false, func(tx VideoTx) error {
		ctx := context.Background()
		_, ok, err := tx.PreviousVote(ctx, 7, "bob")
		require.NoError(t, err)
		assert.False(t, ok)

		if err := tx.RecordVote(ctx, 7, "bob", model.DirectionUp); err != nil {
			return err
		}
		seg := tx.Segments()[0]
		seg.Upvotes, seg.VoteCount, seg.Confidence = 2, 1, 0.3424
		if err := tx.Save(ctx, seg); err != nil {
			return err
		}
		assert.Equal(t, 2, tx.Segments()[0].Upvotes)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentRepo_UpdateVideoErrors(t *testing.T) {
	t.Run("missing video", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM videos`).
			WithArgs(key.ContentID, key.PartID).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		err := NewSegmentRepo(mock).UpdateVideo(context.Background(), key, false, func(tx VideoTx) error {
			t.Fatal("callback must not run")
			return nil
		})
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("callback error rolls back", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		expectVideoLock(mock, time.Now(), pgxmock.NewRows(segmentCols))
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := NewSegmentRepo(mock).UpdateVideo(context.Background(), key, false, func(tx VideoTx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSegmentRepo_RecordSkip(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"active segment", 1, nil},
		{"inactive or missing", 0, model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectExec(`UPDATE segments SET skip_count = skip_count \+ 1`).
				WithArgs(int64(5)).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := NewSegmentRepo(mock).RecordSkip(context.Background(), 5)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSegmentRepo_VideoOf(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT v.content_id, v.part_id`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"content_id", "part_id"}).AddRow("BV1xx411c7mD", "2"))
	mock.ExpectQuery(`SELECT v.content_id, v.part_id`).
		WithArgs(int64(4)).
		WillReturnError(pgx.ErrNoRows)

	repo := NewSegmentRepo(mock)
	got, err := repo.VideoOf(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.VideoKey{ContentID: "BV1xx411c7mD", PartID: "2"}, got)

	_, err = repo.VideoOf(context.Background(), 4)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindSubmitter(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM submitters`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"submitter_id", "points", "submissions", "first_seen", "last_active"}).
			AddRow("alice", 30, 3, now, now))
	mock.ExpectQuery(`FROM submitters`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	repo := NewUserRepo(mock)
	u, err := repo.FindSubmitter(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 30, u.Points)
	assert.Equal(t, 3, u.Submissions)

	_, err = repo.FindSubmitter(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_ListContributions(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM segments WHERE submitter_id`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY s.id DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("alice", 2, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content_id", "part_id", "start_time", "end_time", "category", "confidence", "status"}).
			AddRow(int64(3), "BV1xx411c7mD", "1", 30.0, 40.0, "soft_ad", 0.2065, "active").
			AddRow(int64(2), "BV1xx411c7mD", "1", 10.0, 20.0, "hard_ad", 0.0945, "retired"))

	list, total, err := NewUserRepo(mock).ListContributions(context.Background(), "alice", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.True(t, list[0].Active)
	assert.False(t, list[1].Active)
	assert.Equal(t, model.CategorySoftAd, list[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepo(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`AS total_submitters`).
		WillReturnRows(pgxmock.NewRows([]string{"total_videos", "total_segments", "active_segments", "total_votes", "total_skips", "total_submitters"}).
			AddRow(2, 5, 3, 1, 1, 2))
	mock.ExpectQuery(`AS segment_count`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"content_id", "part_id", "segment_count"}).
			AddRow("BV1xx411c7mD", "1", 4))
	mock.ExpectQuery(`ORDER BY points DESC`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"submitter_id", "points", "submissions", "first_seen", "last_active"}).
			AddRow("alice", 30, 3, now, now))

	repo := NewStatsRepo(mock)
	ctx := context.Background()

	o, err := repo.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatsOverview{TotalVideos: 2, TotalSegments: 5, ActiveSegments: 3, TotalVotes: 1, TotalSkips: 1, TotalSubmitters: 2}, *o)

	videos, err := repo.PopularVideos(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, []model.PopularVideo{{VideoID: "BV1xx411c7mD", PartID: "1", SegmentCount: 4}}, videos)

	users, err := repo.TopSubmitters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].SubmitterID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
