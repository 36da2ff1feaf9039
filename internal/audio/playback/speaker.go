package playback

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"cantastorie/internal/audio/pcm"
)

// SpeakerSink plays decoded buffers through the system audio device via
// beep's speaker. Only one playback is audible at a time: Handle.Stop
// clears the speaker without firing the completion callback.
type SpeakerSink struct {
	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
}

func NewSpeakerSink() *SpeakerSink {
	return &SpeakerSink{}
}

func (s *SpeakerSink) Start(buf *pcm.SampleBuffer, offset time.Duration, done func()) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := beep.SampleRate(buf.SampleRate)
	if !s.initialized || s.sampleRate != sr {
		if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
			return nil, err
		}
		s.initialized = true
		s.sampleRate = sr
	}

	streamer := &bufferStreamer{
		buf: buf,
		pos: int(offset.Seconds() * float64(buf.SampleRate)),
	}
	// done runs on its own goroutine: beep fires the callback while holding
	// the speaker lock, and the player may call speaker.Clear under its own.
	speaker.Play(beep.Seq(streamer, beep.Callback(func() { go done() })))
	return speakerHandle{}, nil
}

type speakerHandle struct{}

func (speakerHandle) Stop() {
	speaker.Clear()
}

// bufferStreamer streams a decoded sample buffer from a starting frame.
// Mono buffers play the same samples on both channels.
type bufferStreamer struct {
	buf *pcm.SampleBuffer
	pos int
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	frames := s.buf.FrameCount()
	if s.pos >= frames {
		return 0, false
	}
	n := 0
	for i := range samples {
		if s.pos >= frames {
			break
		}
		left := s.buf.Data[0][s.pos]
		right := left
		if s.buf.Channels > 1 {
			right = s.buf.Data[1][s.pos]
		}
		samples[i] = [2]float64{left, right}
		s.pos++
		n++
	}
	return n, true
}

func (s *bufferStreamer) Err() error {
	return nil
}
