package repository

import (
	"context"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// VideoTx is an exclusive view of one video's segments. It is only valid
// inside the callback passed to SegmentStore.UpdateVideo; everything written
// through it is committed together or not at all.
type VideoTx interface {
	Video() model.Video

	// Segments returns every segment of the video, including inactive ones,
	// ordered by start time. Inserted and saved segments are reflected.
	Segments() []model.Segment

	// Insert persists a new segment and assigns its ID and timestamps.
	Insert(ctx context.Context, seg *model.Segment) error

	// Save writes back the counters, confidence and status of seg.
	Save(ctx context.Context, seg model.Segment) error

	// PreviousVote returns the direction voterID last voted on segmentID.
	PreviousVote(ctx context.Context, segmentID int64, voterID string) (model.Direction, bool, error)

	// RecordVote remembers voterID's direction on segmentID.
	RecordVote(ctx context.Context, segmentID int64, voterID string, dir model.Direction) error

	// AwardPoints credits a submitter with points for one submission.
	AwardPoints(ctx context.Context, submitterID string, points int) error
}

// SegmentStore is the persistence boundary for segments. Each UpdateVideo
// call holds an exclusive lock on the video identity for its duration.
type SegmentStore interface {
	// UpdateVideo runs fn against the video's segments under the video lock.
	// With create set, the video row is created if absent; otherwise a missing
	// video yields model.ErrNotFound. An error from fn rolls everything back.
	UpdateVideo(ctx context.Context, key model.VideoKey, create bool, fn func(tx VideoTx) error) error

	// VideoOf resolves the video a segment belongs to.
	VideoOf(ctx context.Context, segmentID int64) (model.VideoKey, error)

	// ListActive returns the active segments of a video ordered by start time.
	ListActive(ctx context.Context, key model.VideoKey) ([]model.Segment, error)

	// RecordSkip counts one realized skip on an active segment.
	RecordSkip(ctx context.Context, segmentID int64) error
}

// SubmitterStore serves attribution lookups.
type SubmitterStore interface {
	FindSubmitter(ctx context.Context, submitterID string) (*model.Submitter, error)
	ListContributions(ctx context.Context, submitterID string, limit, offset int) ([]model.Contribution, int, error)
}

// StatsStore serves aggregate statistics.
type StatsStore interface {
	Overview(ctx context.Context) (*model.StatsOverview, error)
	PopularVideos(ctx context.Context, limit int) ([]model.PopularVideo, error)
	TopSubmitters(ctx context.Context, limit int) ([]model.Submitter, error)
}
