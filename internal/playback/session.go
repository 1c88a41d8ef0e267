package playback

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

const (
	DefaultCheckInterval = 200 * time.Millisecond
	DefaultEpsilon       = 0.5
	DefaultCooldown      = 500 * time.Millisecond
	DefaultFetchTimeout  = 5 * time.Second
	DefaultReportTimeout = 3 * time.Second
)

// Backend is the transport a session talks to.
type Backend interface {
	ActiveSegments(ctx context.Context, key model.VideoKey) ([]model.Segment, error)
	Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error)
	Vote(ctx context.Context, segmentID int64, dir model.Direction) (float64, error)
	ReportSkip(ctx context.Context, segmentID int64) error
}

// Options tunes a session.
type Options struct {
	// CheckInterval is the sampling cadence used by Run.
	CheckInterval time.Duration
	// Epsilon trims the end of every segment, in seconds, so a sample taken
	// right before the end does not trigger a pointless seek.
	Epsilon float64
	// Cooldown is the minimum wall-clock gap between two skip decisions.
	Cooldown time.Duration
	Mode     Mode

	FetchTimeout  time.Duration
	ReportTimeout time.Duration

	// Now is the wall clock used for the cool-down.
	Now    func() time.Time
	Logger zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		CheckInterval: DefaultCheckInterval,
		Epsilon:       DefaultEpsilon,
		Cooldown:      DefaultCooldown,
		Mode:          ModeAuto,
		FetchTimeout:  DefaultFetchTimeout,
		ReportTimeout: DefaultReportTimeout,
		Now:           time.Now,
		Logger:        zerolog.Nop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CheckInterval <= 0 {
		o.CheckInterval = d.CheckInterval
	}
	if o.Epsilon < 0 {
		o.Epsilon = d.Epsilon
	}
	if o.Cooldown < 0 {
		o.Cooldown = d.Cooldown
	}
	if !o.Mode.Valid() {
		o.Mode = d.Mode
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = d.FetchTimeout
	}
	if o.ReportTimeout <= 0 {
		o.ReportTimeout = d.ReportTimeout
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Decision is a skip target produced by OnTimeSample.
type Decision struct {
	SegmentID int64
	Category  model.Category
	Target    float64
}

// Session is the playback matcher for one viewer. It tracks which video is
// playing, keeps that video's active set loaded, and turns time samples into
// skip decisions. Fetches run in the background and never block sampling.
type Session struct {
	id      string
	backend Backend
	opts    Options
	cache   *Cache
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	video    model.VideoKey
	active   []model.Segment
	gen      uint64
	lastSkip time.Time
	loaded   chan struct{}

	// Manual mode: the segment currently offered to the viewer, and whether
	// an offer must be withdrawn on the next sample.
	prompted       int64
	pendingDismiss bool
}

func NewSession(backend Backend, opts Options) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:      id,
		backend: backend,
		opts:    opts,
		cache:   NewCache(),
		logger:  opts.Logger.With().Str("component", "playback").Str("session_id", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		loaded:  make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Options() Options { return s.opts }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Video returns the tracked video, if any.
func (s *Session) Video() (model.VideoKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video, s.state != StateIdle
}

// Active returns the active set samples are currently matched against.
func (s *Session) Active() []model.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Segment(nil), s.active...)
}

// Loaded returns a channel that is closed once the active set for the
// currently tracked video has been applied.
func (s *Session) Loaded() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Track switches the session to key. Tracking the same video again is a
// no-op; a new identity drops the current set and starts a fetch.
func (s *Session) Track(key model.VideoKey) {
	s.mu.Lock()
	if s.state != StateIdle && s.video == key {
		s.mu.Unlock()
		return
	}
	s.video = key
	s.state = StateTrackingVideo
	s.withdrawLocked()
	s.mu.Unlock()

	s.logger.Debug().Str("video", key.String()).Msg("tracking video")
	s.refresh(key)
}

// Stop returns the session to Idle, for example when playback ends. The
// cache is kept.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = StateIdle
	s.video = model.VideoKey{}
	s.active = nil
	s.withdrawLocked()
}

// withdrawLocked drops the outstanding manual prompt. Callers hold mu.
func (s *Session) withdrawLocked() {
	if s.prompted != 0 {
		s.prompted = 0
		s.pendingDismiss = true
	}
}

// Invalidate drops the cached set of key. If key is the tracked video it is
// fetched again.
func (s *Session) Invalidate(key model.VideoKey) {
	s.cache.Invalidate(key)

	s.mu.Lock()
	current := s.state != StateIdle && s.video == key
	s.mu.Unlock()
	if current {
		s.refresh(key)
	}
}

// refresh moves to AwaitingSegments and loads the active set of key in the
// background. Results of superseded fetches are discarded.
func (s *Session) refresh(key model.VideoKey) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateAwaitingSegments
	s.active = nil
	s.loaded = make(chan struct{})
	loaded := s.loaded
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		segs := s.LoadActiveSet(s.ctx, key)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		s.active = segs
		s.state = StateMatching
		close(loaded)
	}()
}

// LoadActiveSet returns the active set of key from the cache or the backend.
// A transport failure yields an empty set, which is not cached so the next
// load retries.
func (s *Session) LoadActiveSet(ctx context.Context, key model.VideoKey) []model.Segment {
	if segs, ok := s.cache.Get(key); ok {
		return segs
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	segs, err := s.backend.ActiveSegments(ctx, key)
	if err != nil {
		ev := s.logger.Warn()
		if !errors.Is(err, model.ErrTransportUnavailable) {
			ev = s.logger.Error()
		}
		ev.Err(err).Str("video", key.String()).Msg("active set unavailable, skipping disabled for this video")
		return []model.Segment{}
	}

	segs = activeOnly(segs)
	s.cache.Put(key, segs)
	s.logger.Debug().Str("video", key.String()).Int("segments", len(segs)).Msg("active set loaded")
	return segs
}

// OnTimeSample matches the playback position t, in seconds, against the
// active set. It returns the first segment with start <= t < end-Epsilon,
// unless a skip was taken less than Cooldown ago.
//
// In auto mode every decision arms the cool-down. In manual mode a segment
// is offered once when playback enters it and the cool-down is armed only
// by Skipped.
func (s *Session) OnTimeSample(t float64) (Decision, bool) {
	d, ok, _ := s.sample(t)
	return d, ok
}

// sample is OnTimeSample that also reports whether an outstanding manual
// prompt has to be withdrawn.
func (s *Session) sample(t float64) (d Decision, ok, dismissed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingDismiss {
		s.pendingDismiss = false
		dismissed = true
	}
	if s.state != StateMatching {
		return Decision{}, false, dismissed
	}

	now := s.opts.Now()
	if !s.lastSkip.IsZero() && now.Sub(s.lastSkip) < s.opts.Cooldown {
		return Decision{}, false, dismissed
	}

	seg, found := s.find(t)
	if s.opts.Mode == ModeManual {
		switch {
		case !found:
			if s.prompted != 0 {
				s.prompted = 0
				dismissed = true
			}
			return Decision{}, false, dismissed
		case seg.ID == s.prompted:
			return Decision{}, false, dismissed
		}
		s.prompted = seg.ID
		return decisionFor(seg), true, dismissed
	}

	if !found {
		return Decision{}, false, dismissed
	}
	s.lastSkip = now
	return decisionFor(seg), true, dismissed
}

// takeDismiss reports and clears a pending prompt withdrawal.
func (s *Session) takeDismiss() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.pendingDismiss
	s.pendingDismiss = false
	return d
}

func (s *Session) find(t float64) (model.Segment, bool) {
	for _, seg := range s.active {
		if t >= seg.Start && t < seg.End-s.opts.Epsilon {
			return seg, true
		}
	}
	return model.Segment{}, false
}

func decisionFor(seg model.Segment) Decision {
	return Decision{SegmentID: seg.ID, Category: seg.Category, Target: seg.End}
}

// Skipped records that the viewer accepted a manual prompt and the player
// has been moved to d.Target. It arms the cool-down, clears the prompt and
// reports the skip.
func (s *Session) Skipped(d Decision) {
	s.mu.Lock()
	s.lastSkip = s.opts.Now()
	if s.prompted == d.SegmentID {
		s.prompted = 0
	}
	s.mu.Unlock()
	s.Report(d)
}

// Report sends a realized-skip event without waiting for the result.
func (s *Session) Report(d Decision) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.ReportTimeout)
		defer cancel()
		if err := s.backend.ReportSkip(ctx, d.SegmentID); err != nil {
			s.logger.Debug().Err(err).Int64("segment_id", d.SegmentID).Msg("skip report dropped")
		}
	}()
}

// Submit sends a new segment for the tracked video and refreshes its set.
func (s *Session) Submit(ctx context.Context, iv model.Interval, category model.Category) (*model.SubmitResponse, error) {
	key, ok := s.Video()
	if !ok {
		return nil, errors.New("no video is being tracked")
	}
	if err := iv.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.backend.Submit(ctx, model.SubmitRequest{
		VideoID:   key.ContentID,
		PartID:    key.PartID,
		StartTime: iv.Start,
		EndTime:   iv.End,
		Category:  category,
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(key)
	return resp, nil
}

// Vote votes on a segment of the tracked video and refreshes its set.
func (s *Session) Vote(ctx context.Context, segmentID int64, dir model.Direction) (float64, error) {
	confidence, err := s.backend.Vote(ctx, segmentID, dir)
	if err != nil {
		return 0, err
	}
	if key, ok := s.Video(); ok {
		s.Invalidate(key)
	}
	return confidence, nil
}

// Close ends the session: pending fetches are discarded, in-flight reports
// are cancelled and the cache is cleared.
func (s *Session) Close() {
	s.Stop()
	s.cancel()
	s.wg.Wait()
	s.cache.Clear()
}

func activeOnly(segs []model.Segment) []model.Segment {
	out := make([]model.Segment, 0, len(segs))
	for _, seg := range segs {
		if seg.Active {
			out = append(out, seg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
