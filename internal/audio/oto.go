package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ringDepth is how many write-loop buffers the sink queues ahead of the
// hardware. Several multiples of the chunk size absorb scheduling jitter
// without adding perceptible latency.
const ringDepth = 4

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

// sharedContext returns the process-wide oto context. oto allows only one
// context per process, so the first sample rate wins and later mismatches
// are reported as device errors.
func sharedContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   20 * time.Millisecond,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
		otoRate = sampleRate
	})
	if otoErr != nil {
		return nil, deviceErr(otoErr)
	}
	if otoRate != sampleRate {
		return nil, deviceErr(errorRateMismatch(otoRate, sampleRate))
	}
	return otoCtx, nil
}

type rateMismatch struct{ have, want int }

func errorRateMismatch(have, want int) error { return &rateMismatch{have, want} }

func (e *rateMismatch) Error() string {
	return "audio context already initialized at a different sample rate"
}

// OtoSink plays through the platform audio device via oto. The engine
// pushes into a bounded ring; oto's own output thread pulls from it, so the
// ring's backpressure transmits the hardware consumption rate to the
// engine's blocking writes.
type OtoSink struct {
	player *oto.Player
	ring   *ring

	mu     sync.Mutex
	closed bool
}

// ringReader adapts the ring to the io.Reader oto pulls from. It runs on
// oto's output thread; the scratch buffer is reused across calls so the
// pull path does not allocate after warmup.
type ringReader struct {
	ring    *ring
	scratch []float32
}

func (rr *ringReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}
	if cap(rr.scratch) < n {
		rr.scratch = make([]float32, n)
	}
	samples := rr.scratch[:n]
	rr.ring.read(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}

// NewOtoSink opens the platform device for interleaved stereo float32 at
// the given rate. chunkFrames is the engine's write-buffer size in frames;
// the sink queues ringDepth chunks.
func NewOtoSink(sampleRate, chunkFrames int) (*OtoSink, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	r := newRing(chunkFrames * 2 * ringDepth)
	s := &OtoSink{
		player: ctx.NewPlayer(&ringReader{ring: r}),
		ring:   r,
	}
	return s, nil
}

func (s *OtoSink) Start() error {
	s.player.Play()
	return nil
}

func (s *OtoSink) WriteSamples(samples []float32) error {
	return s.ring.write(samples)
}

// Shortfall reports how many samples of silence the device consumed while
// the ring was empty (underrun).
func (s *OtoSink) Shortfall() uint64 {
	return s.ring.shortfall()
}

func (s *OtoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ring.close()
	return s.player.Close()
}
