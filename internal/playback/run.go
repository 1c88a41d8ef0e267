package playback

import (
	"context"
	"time"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// Player is the media element the session drives.
type Player interface {
	// Video returns the identity of what is playing, or false when nothing
	// is loaded.
	Video() (model.VideoKey, bool)
	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64
	// SeekTo moves the playback position.
	SeekTo(t float64)
}

// PromptFunc is called in manual mode instead of seeking. It receives each
// segment once when playback enters it. A Decision with a zero SegmentID
// withdraws the previous prompt, because playback left the segment or the
// video changed. A viewer who accepts seeks the player and calls
// Session.Skipped.
type PromptFunc func(d Decision)

// Run samples the player every CheckInterval until ctx is done. Samples are
// handled one at a time, in order. In auto mode a decision seeks the player
// to the segment end and reports the skip; in manual mode prompt is called.
func Run(ctx context.Context, s *Session, player Player, prompt PromptFunc) error {
	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.opts.CheckInterval).
		Str("mode", string(s.opts.Mode)).
		Msg("playback loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("playback loop stopped")
			return ctx.Err()
		case <-ticker.C:
			Step(s, player, prompt)
		}
	}
}

// Step handles a single sample. It is what Run does on every tick.
func Step(s *Session, player Player, prompt PromptFunc) (Decision, bool) {
	key, ok := player.Video()
	if !ok {
		if s.State() != StateIdle {
			s.Stop()
			if s.takeDismiss() && prompt != nil {
				prompt(Decision{})
			}
		}
		return Decision{}, false
	}
	s.Track(key)

	d, ok, dismissed := s.sample(player.CurrentTime())
	if dismissed && prompt != nil {
		prompt(Decision{})
	}
	if !ok {
		return Decision{}, false
	}

	if s.opts.Mode == ModeManual {
		if prompt != nil {
			prompt(d)
		}
		return d, true
	}

	s.logger.Info().
		Int64("segment_id", d.SegmentID).
		Str("category", string(d.Category)).
		Float64("target", d.Target).
		Msg("skipping segment")
	player.SeekTo(d.Target)
	s.Report(d)
	return d, true
}
