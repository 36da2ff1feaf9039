package playback

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"cantastorie/internal/audio/pcm"
)

// fakeSink records starts and lets tests fire the completion callback.
type fakeSink struct {
	starts  []fakeStart
	failErr error
}

type fakeStart struct {
	offset  time.Duration
	done    func()
	stopped bool
}

type fakeHandle struct {
	start *fakeStart
}

func (h fakeHandle) Stop() { h.start.stopped = true }

func (s *fakeSink) Start(buf *pcm.SampleBuffer, offset time.Duration, done func()) (Handle, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.starts = append(s.starts, fakeStart{offset: offset, done: done})
	return fakeHandle{start: &s.starts[len(s.starts)-1]}, nil
}

func (s *fakeSink) last() *fakeStart {
	return &s.starts[len(s.starts)-1]
}

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) clock() time.Time        { return c.now }

// fiveSecondPayload is 5s of silence at 24 kHz mono 16-bit.
func fiveSecondPayload() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 5*24000*2))
}

func synthOK(t *testing.T) SynthFunc {
	return func(ctx context.Context) (string, error) {
		return fiveSecondPayload(), nil
	}
}

func newTestPlayer() (*Player, *fakeSink, *fakeClock) {
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	return NewPlayer(sink, WithClock(clock.clock)), sink, clock
}

func TestStartDecodesOnceAndPlays(t *testing.T) {
	p, sink, _ := newTestPlayer()
	calls := 0
	synth := func(ctx context.Context) (string, error) {
		calls++
		return fiveSecondPayload(), nil
	}

	if err := p.Start(context.Background(), synth); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", p.State())
	}
	if sink.last().offset != 0 {
		t.Errorf("first start offset = %v, want 0", sink.last().offset)
	}

	p.Stop()
	if err := p.Start(context.Background(), synth); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("synth calls = %d, want 1 (decoded buffer must be cached)", calls)
	}
}

func TestPauseResumeOffset(t *testing.T) {
	p, sink, clock := newTestPlayer()
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock.advance(2 * time.Second)
	p.Pause()
	if p.State() != StatePaused {
		t.Fatalf("state = %v, want paused", p.State())
	}
	if !sink.starts[0].stopped {
		t.Error("pause did not stop the sink output")
	}
	if p.Offset() != 2*time.Second {
		t.Errorf("offset = %v, want 2s", p.Offset())
	}

	if err := p.Resume(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := sink.last().offset; got != 2*time.Second {
		t.Errorf("resume offset = %v, want 2s", got)
	}
}

func TestOffsetWrapsAtBufferDuration(t *testing.T) {
	p, sink, clock := newTestPlayer()
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Pause after longer than the 5s buffer; the next start must wrap.
	clock.advance(7 * time.Second)
	p.Pause()
	if err := p.Resume(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := sink.last().offset; got != 2*time.Second {
		t.Errorf("wrapped offset = %v, want 2s", got)
	}
}

func TestStopResetsOffsetAndIgnoresLateCompletion(t *testing.T) {
	p, sink, clock := newTestPlayer()
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock.advance(time.Second)

	done := sink.starts[0].done
	p.Stop()
	if p.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", p.State())
	}
	if p.Offset() != 0 {
		t.Errorf("offset after stop = %v, want 0", p.Offset())
	}
	if !sink.starts[0].stopped {
		t.Error("stop did not silence the sink")
	}

	// The discarded playback's completion callback must be a no-op.
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	done()
	if p.State() != StatePlaying {
		t.Errorf("stale completion changed state to %v", p.State())
	}
}

func TestNaturalCompletion(t *testing.T) {
	p, sink, _ := newTestPlayer()
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sink.last().done()
	if p.State() != StateStopped {
		t.Errorf("state after natural completion = %v, want stopped", p.State())
	}
	if p.Offset() != 0 {
		t.Errorf("offset after natural completion = %v, want 0", p.Offset())
	}
}

func TestSynthesisFailureSettlesStopped(t *testing.T) {
	p, _, _ := newTestPlayer()
	boom := errors.New("backend down")
	err := p.Start(context.Background(), func(ctx context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, ErrPlayback) {
		t.Fatalf("error = %v, want ErrPlayback", err)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
}

func TestMalformedPayloadSettlesStopped(t *testing.T) {
	p, _, _ := newTestPlayer()
	err := p.Start(context.Background(), func(ctx context.Context) (string, error) {
		return "not-base64!!", nil
	})
	if !errors.Is(err, ErrPlayback) {
		t.Fatalf("error = %v, want ErrPlayback", err)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
}

func TestSinkFailureSettlesStopped(t *testing.T) {
	sink := &fakeSink{failErr: errors.New("no audio device")}
	p := NewPlayer(sink)
	err := p.Start(context.Background(), synthOK(t))
	if !errors.Is(err, ErrPlayback) {
		t.Fatalf("error = %v, want ErrPlayback", err)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
}

func TestRestartWhilePlayingStopsPrevious(t *testing.T) {
	p, sink, _ := newTestPlayer()
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !sink.starts[0].stopped {
		t.Error("previous playback not stopped before starting a new one")
	}
	if len(sink.starts) != 2 {
		t.Fatalf("starts = %d, want 2", len(sink.starts))
	}
}

func TestInvalidateDuringSynthesisDiscardsResult(t *testing.T) {
	p, sink, _ := newTestPlayer()
	started := make(chan struct{})
	release := make(chan struct{})
	synth := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return fiveSecondPayload(), nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Start(context.Background(), synth)
	}()
	<-started

	// Must not block on the in-flight synthesis.
	invalidated := make(chan struct{})
	go func() {
		p.Invalidate()
		close(invalidated)
	}()
	select {
	case <-invalidated:
	case <-time.After(2 * time.Second):
		t.Fatal("Invalidate() blocked behind an in-flight synthesis")
	}

	close(release)
	if err := <-errCh; !errors.Is(err, ErrPlayback) {
		t.Fatalf("Start() after invalidation = %v, want ErrPlayback", err)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
	if len(sink.starts) != 0 {
		t.Errorf("stale payload reached the sink (%d starts)", len(sink.starts))
	}
}

func TestStopDuringSynthesisAbandonsStart(t *testing.T) {
	p, sink, _ := newTestPlayer()
	started := make(chan struct{})
	release := make(chan struct{})
	synth := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return fiveSecondPayload(), nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Start(context.Background(), synth)
	}()
	<-started
	p.Stop()
	close(release)

	if err := <-errCh; err != nil {
		t.Fatalf("abandoned Start() error = %v", err)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
	if len(sink.starts) != 0 {
		t.Errorf("stopped start reached the sink (%d starts)", len(sink.starts))
	}
}

func TestWithFormatGovernsBufferDuration(t *testing.T) {
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	p := NewPlayer(sink, WithClock(clock.clock), WithFormat(48000, 1))

	// The 5s-at-24kHz payload is 2.5s at 48 kHz, so a 4s pause wraps to 1.5s.
	if err := p.Start(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock.advance(4 * time.Second)
	p.Pause()
	if err := p.Resume(context.Background(), synthOK(t)); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := sink.last().offset; got != 1500*time.Millisecond {
		t.Errorf("wrapped offset = %v, want 1.5s", got)
	}
}

func TestInvalidateDropsBuffer(t *testing.T) {
	p, _, _ := newTestPlayer()
	calls := 0
	synth := func(ctx context.Context) (string, error) {
		calls++
		return fiveSecondPayload(), nil
	}

	if err := p.Start(context.Background(), synth); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	p.Invalidate()
	if p.State() != StateStopped {
		t.Fatalf("state after invalidate = %v, want stopped", p.State())
	}

	if err := p.Start(context.Background(), synth); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if calls != 2 {
		t.Errorf("synth calls = %d, want 2 (buffer must be re-obtained after invalidation)", calls)
	}
}
