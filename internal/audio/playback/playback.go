// Package playback drives narration audio through a
// stopped/playing/paused state machine with decode-once, play-many
// semantics and accurate resume-from-offset.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cantastorie/internal/audio/pcm"
)

// ErrPlayback reports a failure in the decode-and-play sequence. The
// player always settles back to stopped when it is returned.
var ErrPlayback = fmt.Errorf("playback: error")

type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// SynthFunc obtains the encoded base64 PCM payload for the current story,
// typically the session's cache-or-synthesize path.
type SynthFunc func(ctx context.Context) (string, error)

// Handle controls one active sink playback.
type Handle interface {
	Stop()
}

// Sink produces audible output from a decoded buffer, starting at offset
// and invoking done when the buffer plays through to its natural end.
// Stopping the handle must not invoke done.
type Sink interface {
	Start(buf *pcm.SampleBuffer, offset time.Duration, done func()) (Handle, error)
}

// Player is the playback state machine. Exactly one playback is active at
// a time; starting a new one fully stops the previous one first. The
// decoded buffer is cached until Invalidate, so replays skip both
// synthesis and decoding.
type Player struct {
	mu         sync.Mutex
	state      State
	sink       Sink
	clock      func() time.Time
	sampleRate int
	channels   int

	buf          *pcm.SampleBuffer
	bufSeq       int // bumped by Invalidate; a decode finishing late is stale
	startSeq     int // bumped by Start and Stop; last requested start wins
	pausedOffset time.Duration
	startedAt    time.Time
	token        uuid.UUID
	handle       Handle
}

// Option configures a Player.
type Option func(*Player)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Player) { p.clock = clock }
}

// WithFormat overrides the 24 kHz mono default.
func WithFormat(sampleRate, channels int) Option {
	return func(p *Player) {
		p.sampleRate = sampleRate
		p.channels = channels
	}
}

func NewPlayer(sink Sink, opts ...Option) *Player {
	p := &Player{
		sink:       sink,
		clock:      time.Now,
		sampleRate: 24000,
		channels:   1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports the current machine state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Offset reports the accumulated pause offset.
func (p *Player) Offset() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pausedOffset
}

// Start begins (or restarts) playback. If no decoded buffer is cached it
// synthesizes and decodes first, synchronously from the caller's point of
// view but without holding the player lock, so Stop and Invalidate stay
// responsive while the backend works. Playback resumes from the
// accumulated pause offset, wrapped at the buffer duration to defend
// against drift.
func (p *Player) Start(ctx context.Context, synth SynthFunc) error {
	p.mu.Lock()
	p.stopOutputLocked()
	p.state = StateStopped
	p.startSeq++
	seq := p.startSeq
	buf := p.buf
	bufSeq := p.bufSeq
	p.mu.Unlock()

	if buf == nil {
		decoded, err := p.decode(ctx, synth)
		if err != nil {
			p.mu.Lock()
			if seq == p.startSeq {
				p.settleStoppedLocked()
			}
			p.mu.Unlock()
			return err
		}
		buf = decoded
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.startSeq {
		// A newer start or an explicit stop owns the player.
		return nil
	}
	if bufSeq != p.bufSeq {
		// The narration text changed while synthesizing; the payload is
		// stale and must never play.
		p.settleStoppedLocked()
		return fmt.Errorf("%w: narration changed during synthesis", ErrPlayback)
	}
	if p.buf == nil {
		p.buf = buf
	}

	offset := time.Duration(0)
	if dur := p.buf.Duration(); dur > 0 {
		offset = p.pausedOffset % dur
	}

	token := uuid.New()
	handle, err := p.sink.Start(p.buf, offset, func() { p.onComplete(token) })
	if err != nil {
		p.settleStoppedLocked()
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	p.token = token
	p.handle = handle
	p.pausedOffset = offset
	p.startedAt = p.clock()
	p.state = StatePlaying
	return nil
}

// decode obtains and decodes the narration payload. Runs outside the
// player lock.
func (p *Player) decode(ctx context.Context, synth SynthFunc) (*pcm.SampleBuffer, error) {
	payload, err := synth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	raw, err := pcm.DecodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	buf, err := pcm.ToSampleBuffer(raw, p.sampleRate, p.channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	if buf.FrameCount() == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrPlayback)
	}
	return buf, nil
}

// Resume is Start: identical mechanics, picking up the accumulated offset.
func (p *Player) Resume(ctx context.Context, synth SynthFunc) error {
	return p.Start(ctx, synth)
}

// Pause halts output without discarding the decoded buffer and folds the
// elapsed wall-clock time into the pause offset.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return
	}
	p.stopOutputLocked()
	p.pausedOffset += p.clock().Sub(p.startedAt)
	p.state = StatePaused
}

// Stop halts output unconditionally and resets the offset. The discarded
// playback's completion callback never fires, and a start still waiting on
// synthesis is abandoned.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopOutputLocked()
	p.settleStoppedLocked()
	p.startSeq++
}

// Invalidate stops playback and drops the decoded buffer. Called whenever
// the underlying story text changes; a synthesis already in flight is
// marked stale so its result never plays.
func (p *Player) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopOutputLocked()
	p.settleStoppedLocked()
	p.buf = nil
	p.bufSeq++
}

// onComplete handles natural end-of-buffer: equivalent to an implicit
// stop. The token check discards callbacks from superseded playbacks.
func (p *Player) onComplete(token uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.token || p.state != StatePlaying {
		return
	}
	p.handle = nil
	p.settleStoppedLocked()
}

// stopOutputLocked silences the active handle, if any, and retires its
// token so a racing completion callback is ignored.
func (p *Player) stopOutputLocked() {
	p.token = uuid.UUID{}
	if p.handle != nil {
		p.handle.Stop()
		p.handle = nil
	}
}

func (p *Player) settleStoppedLocked() {
	p.state = StateStopped
	p.pausedOffset = 0
}
