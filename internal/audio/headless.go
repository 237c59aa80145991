package audio

import (
	"sync"
	"time"
)

// HeadlessSink discards samples while pacing writes to wall time, so the
// engine behaves identically on hosts without an audio device. Used by CI
// and the CLI's -headless flag.
type HeadlessSink struct {
	sampleRate int

	mu      sync.Mutex
	started bool
	closed  bool
	start   time.Time
	written int64 // frames accepted
}

func NewHeadlessSink(sampleRate int) *HeadlessSink {
	return &HeadlessSink{sampleRate: sampleRate}
}

func (s *HeadlessSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.start = time.Now()
	s.written = 0
	return nil
}

// WriteSamples sleeps until the hardware would have consumed the frames,
// mirroring the blocking behavior of a real device write.
func (s *HeadlessSink) WriteSamples(samples []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.written += int64(len(samples) / 2)
	deadline := s.start.Add(time.Duration(s.written) * time.Second / time.Duration(s.sampleRate))
	s.mu.Unlock()

	if d := time.Until(deadline); d > 0 {
		time.Sleep(d)
	}
	return nil
}

func (s *HeadlessSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
