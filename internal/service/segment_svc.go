package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/StudyingHUYANG/VisionMark/internal/metrics"
	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
)

// DefaultPointsPerSubmission is credited to a submitter for every accepted
// submission.
const DefaultPointsPerSubmission = 10

// SegmentService is the consensus engine. Every mutation runs as one
// read-modify-write of the whole video under the store's per-video lock:
// apply the event, recompute confidence, then re-resolve overlaps.
type SegmentService struct {
	store  repository.SegmentStore
	cache  *CacheService
	policy Policy
	points int
	logger zerolog.Logger
}

func NewSegmentService(store repository.SegmentStore, cache *CacheService, policy Policy, points int, logger zerolog.Logger) *SegmentService {
	return &SegmentService{
		store:  store,
		cache:  cache,
		policy: policy,
		points: points,
		logger: logger.With().Str("component", "consensus").Logger(),
	}
}

// Policy returns the rules the engine was configured with.
func (s *SegmentService) Policy() Policy {
	return s.policy
}

// Put validates and stores a new submission, creating the video on first
// use, and re-resolves the video's active set.
func (s *SegmentService) Put(ctx context.Context, key model.VideoKey, iv model.Interval, category model.Category, submitterID string) (*model.SubmitResponse, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", model.ErrInvalidInterval, category)
	}

	var created model.Segment
	var earned int
	err := s.update(ctx, key, true, func(tx repository.VideoTx) error {
		seg := s.policy.NewSegment(iv, category, submitterID)
		if err := tx.Insert(ctx, &seg); err != nil {
			return err
		}
		if _, err := s.settle(ctx, tx); err != nil {
			return err
		}
		if submitterID != "" && s.points > 0 {
			if err := tx.AwardPoints(ctx, submitterID, s.points); err != nil {
				return err
			}
			earned = s.points
		}
		created = findSegment(tx.Segments(), seg.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SegmentsSubmitted.WithLabelValues(string(category)).Inc()
	s.logger.Info().
		Int64("segment_id", created.ID).
		Str("video", key.String()).
		Float64("start", created.Start).
		Float64("end", created.End).
		Str("category", string(category)).
		Str("status", string(created.Status)).
		Msg("segment submitted")

	return &model.SubmitResponse{ID: created.ID, PointsEarned: earned}, nil
}

// Vote applies one vote to an active segment and returns its new confidence.
// A voter repeating the same direction changes nothing; switching direction
// moves the vote between counters. Anonymous votes (empty voterID) always
// count.
func (s *SegmentService) Vote(ctx context.Context, segmentID int64, dir model.Direction, voterID string) (float64, error) {
	if !dir.Valid() {
		return 0, fmt.Errorf("invalid vote direction %q", dir)
	}

	key, err := s.store.VideoOf(ctx, segmentID)
	if err != nil {
		return 0, err
	}

	var confidence float64
	var applied bool
	err = s.update(ctx, key, false, func(tx repository.VideoTx) error {
		seg := findSegment(tx.Segments(), segmentID)
		if seg.ID == 0 || seg.Status != model.StatusActive {
			return model.ErrNotFound
		}

		counted := true
		if voterID != "" {
			prev, ok, err := tx.PreviousVote(ctx, segmentID, voterID)
			if err != nil {
				return err
			}
			switch {
			case ok && prev == dir:
				confidence = seg.Confidence
				return nil
			case ok:
				moveVote(&seg, prev, dir)
				counted = false
			}
			if err := tx.RecordVote(ctx, segmentID, voterID, dir); err != nil {
				return err
			}
		}
		if counted {
			addVote(&seg, dir)
		}

		seg.Confidence = s.policy.Confidence(seg)
		if err := tx.Save(ctx, seg); err != nil {
			return err
		}
		confidence = seg.Confidence
		applied = true
		_, err := s.settle(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}

	if applied {
		metrics.VotesTotal.WithLabelValues(string(dir)).Inc()
	}
	s.logger.Debug().
		Int64("segment_id", segmentID).
		Str("direction", string(dir)).
		Bool("applied", applied).
		Float64("confidence", confidence).
		Msg("vote")

	return confidence, nil
}

// ListActive returns the active set of a video ordered by start time,
// served from Redis when possible.
func (s *SegmentService) ListActive(ctx context.Context, key model.VideoKey) ([]model.Segment, error) {
	cached, ok, err := s.cache.GetActiveSet(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("video", key.String()).Msg("cache: get active set error")
	}
	if ok {
		metrics.CacheHits.Inc()
		return cached, nil
	}
	metrics.CacheMisses.Inc()

	// A write committing between the version read and the cache write bumps
	// the version, so a set loaded before it is never cached.
	version, verr := s.cache.ActiveSetVersion(ctx, key)
	if verr != nil {
		s.logger.Warn().Err(verr).Str("video", key.String()).Msg("cache: get version error")
	}

	segs, err := s.store.ListActive(ctx, key)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		stored, err := s.cache.SetActiveSet(ctx, key, version, segs)
		if err != nil {
			s.logger.Warn().Err(err).Str("video", key.String()).Msg("cache: set active set error")
		} else if !stored {
			s.logger.Debug().Str("video", key.String()).Msg("cache: active set superseded, not cached")
		}
	}
	return segs, nil
}

// ReportSkip records a realized skip. It never touches the active set.
func (s *SegmentService) ReportSkip(ctx context.Context, segmentID int64) error {
	if err := s.store.RecordSkip(ctx, segmentID); err != nil {
		return err
	}
	metrics.SkipsReported.Inc()
	return nil
}

// Reresolve re-derives a video's active set from stored state and returns
// the number of segments whose status changed. With consistent state this
// is zero.
func (s *SegmentService) Reresolve(ctx context.Context, key model.VideoKey) (int, error) {
	var changes int
	err := s.update(ctx, key, false, func(tx repository.VideoTx) error {
		n, err := s.settle(ctx, tx)
		changes = n
		return err
	})
	return changes, err
}

// update wraps a store pass with timing and cache invalidation.
func (s *SegmentService) update(ctx context.Context, key model.VideoKey, create bool, fn func(tx repository.VideoTx) error) error {
	start := time.Now()
	err := s.store.UpdateVideo(ctx, key, create, fn)
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if err := s.cache.InvalidateVideo(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("video", key.String()).Msg("cache: invalidate video error")
	}
	return nil
}

// settle persists every status change Resolve asks for and returns how
// many segments changed.
func (s *SegmentService) settle(ctx context.Context, tx repository.VideoTx) (int, error) {
	changed := s.policy.Resolve(tx.Segments())
	statuses := make([]string, 0, len(changed))
	for _, seg := range changed {
		if err := tx.Save(ctx, seg); err != nil {
			return 0, err
		}
		statuses = append(statuses, string(seg.Status))
		s.logger.Debug().
			Int64("segment_id", seg.ID).
			Str("status", string(seg.Status)).
			Float64("confidence", seg.Confidence).
			Msg("segment status changed")
	}
	metrics.RecordTransitions(statuses...)
	return len(changed), nil
}

func findSegment(segs []model.Segment, id int64) model.Segment {
	for _, s := range segs {
		if s.ID == id {
			return s
		}
	}
	return model.Segment{}
}

func addVote(s *model.Segment, dir model.Direction) {
	if dir == model.DirectionUp {
		s.Upvotes++
	} else {
		s.Downvotes++
	}
	s.VoteCount++
}

func moveVote(s *model.Segment, from, to model.Direction) {
	if from == to {
		return
	}
	if to == model.DirectionUp {
		s.Downvotes = max(s.Downvotes-1, 0)
		s.Upvotes++
	} else {
		s.Upvotes = max(s.Upvotes-1, 0)
		s.Downvotes++
	}
}
