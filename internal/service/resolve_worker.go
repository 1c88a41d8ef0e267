package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
)

// DefaultResolveBatchWindow is how long change notifications are collected
// before the affected videos are re-resolved.
const DefaultResolveBatchWindow = 5 * time.Second

// KeyLister enumerates every known video.
type KeyLister interface {
	VideoKeys(ctx context.Context) ([]model.VideoKey, error)
}

// ResolveWorker re-derives active sets in the background. It listens for
// NOTIFY on the segment_changes channel and batches the announced videos, so
// fifty votes on one video within a window cost a single pass. Since every
// write already resolves synchronously, a pass normally changes nothing; it
// repairs drift after a policy change or a manual edit of the tables.
type ResolveWorker struct {
	pool   *pgxpool.Pool
	keys   KeyLister
	engine *SegmentService
	window time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[model.VideoKey]struct{}
}

// NewResolveWorker creates the worker. pool may be nil, in which case only
// the startup sweep and explicitly enqueued videos are processed.
func NewResolveWorker(pool *pgxpool.Pool, keys KeyLister, engine *SegmentService, window time.Duration, logger zerolog.Logger) *ResolveWorker {
	if window <= 0 {
		window = DefaultResolveBatchWindow
	}
	return &ResolveWorker{
		pool:    pool,
		keys:    keys,
		engine:  engine,
		window:  window,
		logger:  logger.With().Str("component", "resolve-worker").Logger(),
		pending: make(map[model.VideoKey]struct{}),
	}
}

// Start sweeps every video once, then processes notifications until ctx is
// cancelled.
func (w *ResolveWorker) Start(ctx context.Context) error {
	w.logger.Info().Dur("batch_window", w.window).Msg("starting")
	w.Sweep(ctx)

	flushCtx, flushCancel := context.WithCancel(ctx)
	defer flushCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.flushLoop(flushCtx)
	}()
	defer func() { <-done }()

	if w.pool == nil {
		<-ctx.Done()
		w.logger.Info().Msg("stopping (context cancelled)")
		return nil
	}

	for {
		if err := w.listenLoop(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info().Msg("stopping (context cancelled)")
				return nil
			}
			w.logger.Warn().Err(err).Msg("listen error, reconnecting in 5s")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				w.logger.Info().Msg("stopping (context cancelled)")
				return nil
			}
		}
	}
}

// Sweep queues every known video for re-resolution.
func (w *ResolveWorker) Sweep(ctx context.Context) {
	keys, err := w.keys.VideoKeys(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("sweep: list videos error")
		return
	}
	for _, k := range keys {
		w.Enqueue(k)
	}
	w.logger.Debug().Int("videos", len(keys)).Msg("sweep queued")
}

// Enqueue marks a video for the next batch.
func (w *ResolveWorker) Enqueue(key model.VideoKey) {
	w.mu.Lock()
	w.pending[key] = struct{}{}
	w.mu.Unlock()
}

// listenLoop acquires a dedicated connection, LISTENs on the change channel,
// and queues every announced video.
func (w *ResolveWorker) listenLoop(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+repository.NotifyChannel); err != nil {
		return err
	}
	w.logger.Info().Str("channel", repository.NotifyChannel).Msg("listening")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		key, ok := model.ParseVideoKey(notification.Payload)
		if !ok {
			w.logger.Warn().Str("payload", notification.Payload).Msg("ignoring malformed notification")
			continue
		}
		w.Enqueue(key)
	}
}

func (w *ResolveWorker) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-ctx.Done():
			w.Flush(context.Background())
			return
		}
	}
}

// Flush drains the pending set and re-resolves each video. It returns the
// number of segments whose status changed.
func (w *ResolveWorker) Flush(ctx context.Context) int {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return 0
	}
	batch := w.pending
	w.pending = make(map[model.VideoKey]struct{})
	w.mu.Unlock()

	changed := 0
	for key := range batch {
		n, err := w.engine.Reresolve(ctx, key)
		if err != nil {
			w.logger.Warn().Err(err).Str("video", key.String()).Msg("re-resolve error")
			continue
		}
		changed += n
	}

	if changed > 0 {
		w.logger.Info().
			Int("videos", len(batch)).
			Int("changed", changed).
			Msg("batch repaired drift")
	}
	return changed
}
