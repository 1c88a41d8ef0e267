package main

import (
	"sync"
	"time"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

type skipEvent struct {
	From float64
	To   float64
}

// simPlayer advances playback with the wall clock scaled by speed. It
// reports no video once the end is reached.
type simPlayer struct {
	key      model.VideoKey
	duration float64
	speed    float64
	now      func() time.Time

	mu      sync.Mutex
	pos     float64
	last    time.Time
	ended   bool
	done    chan struct{}
	skipped []skipEvent
}

func newSimPlayer(key model.VideoKey, duration, speed float64) *simPlayer {
	if speed <= 0 {
		speed = 1
	}
	return &simPlayer{
		key:      key,
		duration: duration,
		speed:    speed,
		now:      time.Now,
		last:     time.Now(),
		done:     make(chan struct{}),
	}
}

// advance moves the position forward by the scaled elapsed time. Callers
// hold mu.
func (p *simPlayer) advance() {
	now := p.now()
	p.pos += now.Sub(p.last).Seconds() * p.speed
	p.last = now
	if p.pos >= p.duration && !p.ended {
		p.pos = p.duration
		p.ended = true
		close(p.done)
	}
}

func (p *simPlayer) Video() (model.VideoKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.key, !p.ended
}

func (p *simPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.pos
}

func (p *simPlayer) SeekTo(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.skipped = append(p.skipped, skipEvent{From: p.pos, To: t})
	p.pos = t
	if p.pos >= p.duration && !p.ended {
		p.ended = true
		close(p.done)
	}
}

// Done is closed when playback reaches the end.
func (p *simPlayer) Done() <-chan struct{} {
	return p.done
}

func (p *simPlayer) Skipped() []skipEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]skipEvent(nil), p.skipped...)
}
