package gammasync

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	intaudio "github.com/matthewfrazier/gammasync/internal/audio"
	intosc "github.com/matthewfrazier/gammasync/internal/osc"
	intprofile "github.com/matthewfrazier/gammasync/internal/profile"
)

// Re-exported sentinels so callers only import this package.
var (
	// ErrInvalidFrequency: a profile requested a frequency outside the
	// supported range. Rejected before any thread is spawned.
	ErrInvalidFrequency = intosc.ErrInvalidFrequency
	// ErrDeviceUnavailable: the platform audio sink could not be opened.
	ErrDeviceUnavailable = intaudio.ErrDeviceUnavailable
	// ErrReleased: the engine's hardware handles were already released.
	ErrReleased = errors.New("gammasync: engine released")
	// ErrStopTimeout: the write loop failed to terminate in bounded time.
	// This is a fatal internal error, not a condition to retry.
	ErrStopTimeout = errors.New("gammasync: audio write loop did not stop in time")
)

// Write-loop lifecycle. Stop flips playing to stopping; the loop itself
// performs the fade-out and exits, so no caller ever sleeps for the fade.
const (
	stateStopped int32 = iota
	statePlaying
	stateStopping
)

type Option func(*engineConfig)

type engineConfig struct {
	bufferFrames  int
	fade          time.Duration
	discThreshold float64
	stopTimeout   time.Duration
	sinkFactory   func(sampleRate, chunkFrames int) (intaudio.Sink, error)
	noiseSeed     int64
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		bufferFrames:  256,
		fade:          30 * time.Millisecond,
		discThreshold: 0.5,
		stopTimeout:   2 * time.Second,
		sinkFactory: func(sampleRate, chunkFrames int) (intaudio.Sink, error) {
			return intaudio.NewOtoSink(sampleRate, chunkFrames)
		},
	}
}

// WithBufferFrames sets the write-loop chunk size in stereo frames. Smaller
// chunks tighten phase publication granularity; larger ones tolerate more
// scheduling jitter.
func WithBufferFrames(frames int) Option {
	return func(cfg *engineConfig) {
		if frames > 0 {
			cfg.bufferFrames = frames
		}
	}
}

// WithFadeDuration sets the start/stop amplitude ramp length used to avoid
// audible clicks.
func WithFadeDuration(d time.Duration) Option {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.fade = d
		}
	}
}

// WithDiscontinuityThreshold sets the sample-jump heuristic threshold. The
// check is approximate by nature; tune it empirically rather than trusting
// the default.
func WithDiscontinuityThreshold(t float64) Option {
	return func(cfg *engineConfig) {
		if t > 0 {
			cfg.discThreshold = t
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the write loop to finish
// its fade-out and exit.
func WithStopTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.stopTimeout = d
		}
	}
}

// WithHeadlessOutput replaces the platform device with a wall-time-paced
// null sink.
func WithHeadlessOutput() Option {
	return func(cfg *engineConfig) {
		cfg.sinkFactory = func(sampleRate, chunkFrames int) (intaudio.Sink, error) {
			return intaudio.NewHeadlessSink(sampleRate), nil
		}
	}
}

// WithSinkFactory installs a custom output sink constructor.
func WithSinkFactory(f func(sampleRate, chunkFrames int) (intaudio.Sink, error)) Option {
	return func(cfg *engineConfig) {
		if f != nil {
			cfg.sinkFactory = f
		}
	}
}

// WithNoiseSeed fixes the noise generator seed for reproducible output.
func WithNoiseSeed(seed int64) Option {
	return func(cfg *engineConfig) { cfg.noiseSeed = seed }
}

// Diagnostics is a snapshot of the session's health counters. Updated by
// the write loop, readable from any thread at any time.
type Diagnostics struct {
	// DiscontinuityCount is how many buffer boundaries tripped the
	// sample-jump heuristic. Approximate; false positives are possible.
	DiscontinuityCount uint64
	// MaxBufferGapMs is the largest observed interval between consecutive
	// buffer writes, in milliseconds.
	MaxBufferGapMs float64
	// LastWrite is when the write loop last handed a buffer to the sink.
	LastWrite time.Time
}

// Engine owns one stimulus session: it drives the oscillator from a
// dedicated write loop paced by the audio sink's blocking writes, and it is
// the only timing authority in the system. Phase accessors are lock-free
// and safe to call every display frame from any goroutine.
type Engine struct {
	sampleRate int
	cfg        engineConfig

	mu       sync.Mutex // serializes Start/Stop/Release; never on the hot path
	osc      *intosc.Oscillator
	sink     intaudio.Sink
	buf      []float32
	done     chan struct{}
	released bool

	state     atomic.Int32
	playing   atomic.Bool
	noiseOn   atomic.Bool
	amplitude atomic.Uint64 // float64 bits
	phase     atomic.Uint64 // float64 bits, published once per buffer
	secondary atomic.Uint64 // float64 bits
	frequency atomic.Uint64 // float64 bits, instantaneous stimulus Hz

	discontinuities atomic.Uint64
	maxGapMs        atomic.Uint64 // float64 bits
	lastWriteNano   atomic.Int64
}

// NewEngine creates an engine for one session at a time. The same engine
// may run many sessions sequentially until Release.
func NewEngine(sampleRate int, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		sampleRate: sampleRate,
		cfg:        cfg,
		osc:        intosc.New(sampleRate),
	}
	e.amplitude.Store(math.Float64bits(1))
	return e, nil
}

// Start configures the oscillator for the profile, opens the sink and
// launches the write loop. Calling Start while already playing is a benign
// no-op. Failures leave no partial state behind.
func (e *Engine) Start(p intprofile.Profile, amplitude float64, noiseEnabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return ErrReleased
	}
	if e.playing.Load() {
		return nil
	}
	// A previous session whose loop ended on its own (sink failure) may
	// have left a sink behind; reap it before starting fresh.
	if e.sink != nil {
		if err := e.stopLocked(); err != nil {
			return err
		}
	}

	if amplitude < 0 {
		amplitude = 0
	} else if amplitude > 1 {
		amplitude = 1
	}

	var err error
	if e.cfg.noiseSeed != 0 {
		err = e.osc.ConfigureSeeded(p.Frequency, p.Noise, e.cfg.noiseSeed)
	} else {
		err = e.osc.Configure(p.Frequency, p.Noise)
	}
	if err != nil {
		return fmt.Errorf("configure profile %q: %w", p.ID, err)
	}

	sink, err := e.cfg.sinkFactory(e.sampleRate, e.cfg.bufferFrames)
	if err != nil {
		return err
	}
	if err := sink.Start(); err != nil {
		_ = sink.Close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if len(e.buf) != e.cfg.bufferFrames*2 {
		e.buf = make([]float32, e.cfg.bufferFrames*2)
	}
	e.sink = sink
	e.done = make(chan struct{})
	e.discontinuities.Store(0)
	e.maxGapMs.Store(0)
	e.lastWriteNano.Store(0)
	e.amplitude.Store(math.Float64bits(amplitude))
	e.noiseOn.Store(noiseEnabled)
	e.publishFromOscillator()

	e.state.Store(statePlaying)
	e.playing.Store(true)
	go e.writeLoop(sink, e.buf, e.done)
	return nil
}

// writeLoop is the session's only generator thread. The blocking
// sink.WriteSamples call is the clock: nothing else in the loop is allowed
// to block, allocate or log.
func (e *Engine) writeLoop(sink intaudio.Sink, buf []float32, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		e.playing.Store(false)
		e.phase.Store(0)
		e.secondary.Store(0)
		e.frequency.Store(0)
		e.state.Store(stateStopped)
		close(done)
	}()

	fadeFrames := int(e.cfg.fade.Seconds() * float64(e.sampleRate))
	if fadeFrames < 1 {
		fadeFrames = 1
	}
	fadeInLeft := fadeFrames
	fadeOutLeft := -1
	var lastSample float32
	first := true

	for {
		now := time.Now().UnixNano()
		if last := e.lastWriteNano.Load(); last != 0 {
			e.recordGap(float64(now-last) / 1e6)
		}

		amp := math.Float64frombits(e.amplitude.Load())
		e.osc.Fill(buf, amp, e.noiseOn.Load())

		if e.state.Load() == stateStopping && fadeOutLeft < 0 {
			fadeOutLeft = fadeFrames
		}
		fadeInLeft = applyFadeIn(buf, fadeInLeft, fadeFrames)
		if fadeOutLeft >= 0 {
			fadeOutLeft = applyFadeOut(buf, fadeOutLeft, fadeFrames)
		}

		if !first && math.Abs(float64(buf[0]-lastSample)) > e.cfg.discThreshold {
			e.discontinuities.Add(1)
		}
		lastSample = buf[len(buf)-2]
		first = false

		e.publishFromOscillator()

		if err := sink.WriteSamples(buf); err != nil {
			return
		}
		e.lastWriteNano.Store(time.Now().UnixNano())

		if fadeOutLeft == 0 {
			return
		}
	}
}

// publishFromOscillator copies the oscillator's accumulators into the
// atomic scalars the renderer reads. Called once per buffer on the write
// loop only.
func (e *Engine) publishFromOscillator() {
	e.phase.Store(math.Float64bits(e.osc.Phase()))
	e.secondary.Store(math.Float64bits(e.osc.SecondaryPhase()))
	e.frequency.Store(math.Float64bits(e.osc.CurrentFrequency()))
}

func (e *Engine) recordGap(gapMs float64) {
	for {
		old := e.maxGapMs.Load()
		if gapMs <= math.Float64frombits(old) {
			return
		}
		if e.maxGapMs.CompareAndSwap(old, math.Float64bits(gapMs)) {
			return
		}
	}
}

// applyFadeIn ramps the first fades of a session up from silence and
// returns the frames still left to ramp.
func applyFadeIn(buf []float32, left, total int) int {
	if left <= 0 {
		return 0
	}
	for i := 0; i+1 < len(buf) && left > 0; i += 2 {
		g := float32(total-left) / float32(total)
		buf[i] *= g
		buf[i+1] *= g
		left--
	}
	return left
}

// applyFadeOut ramps toward silence; once the ramp hits zero the rest of
// the buffer is silenced and 0 is returned to signal completion.
func applyFadeOut(buf []float32, left, total int) int {
	for i := 0; i+1 < len(buf); i += 2 {
		if left <= 0 {
			buf[i] = 0
			buf[i+1] = 0
			continue
		}
		g := float32(left) / float32(total)
		buf[i] *= g
		buf[i+1] *= g
		left--
	}
	if left < 0 {
		left = 0
	}
	return left
}

// Stop requests a fade-out and waits for the write loop to finish it and
// exit, bounded by the configured timeout. Idempotent.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	if e.sink == nil {
		return nil
	}
	done := e.done

	if e.state.CompareAndSwap(statePlaying, stateStopping) || e.state.Load() == stateStopping {
		select {
		case <-done:
		case <-time.After(e.cfg.stopTimeout):
			return ErrStopTimeout
		}
	}

	err := e.sink.Close()
	e.sink = nil
	e.done = nil
	return err
}

// Release stops any session and drops the hardware handles. Safe to call
// multiple times; the engine cannot be started again afterwards.
func (e *Engine) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.stopLocked()
	e.released = true
	return err
}

// Phase returns the stimulus position in its cycle in [0,1), or 0 when not
// playing. Lock-free; safe to call once per display frame from any thread.
func (e *Engine) Phase() float64 {
	if !e.playing.Load() {
		return 0
	}
	return math.Float64frombits(e.phase.Load())
}

// SecondaryPhase returns the modulator phase for dual-band profiles. For
// single-band profiles it mirrors Phase.
func (e *Engine) SecondaryPhase() float64 {
	if !e.playing.Load() {
		return 0
	}
	return math.Float64frombits(e.secondary.Load())
}

// CurrentFrequency returns the instantaneous stimulus frequency in Hz, or 0
// when not playing.
func (e *Engine) CurrentFrequency() float64 {
	if !e.playing.Load() {
		return 0
	}
	return math.Float64frombits(e.frequency.Load())
}

// IsPlaying reports whether the write loop is running.
func (e *Engine) IsPlaying() bool { return e.playing.Load() }

// SetNoiseEnabled toggles the noise bed mid-session. Takes effect at the
// next buffer.
func (e *Engine) SetNoiseEnabled(enabled bool) { e.noiseOn.Store(enabled) }

// NoiseEnabled reports the current noise toggle.
func (e *Engine) NoiseEnabled() bool { return e.noiseOn.Load() }

// SetAmplitude sets the output amplitude in [0,1] at the next buffer.
func (e *Engine) SetAmplitude(a float64) {
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	e.amplitude.Store(math.Float64bits(a))
}

// Amplitude returns the current output amplitude.
func (e *Engine) Amplitude() float64 {
	return math.Float64frombits(e.amplitude.Load())
}

// SampleRate returns the session sample rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Diagnostics returns a snapshot of the session health counters.
func (e *Engine) Diagnostics() Diagnostics {
	d := Diagnostics{
		DiscontinuityCount: e.discontinuities.Load(),
		MaxBufferGapMs:     math.Float64frombits(e.maxGapMs.Load()),
	}
	if nano := e.lastWriteNano.Load(); nano != 0 {
		d.LastWrite = time.Unix(0, nano)
	}
	return d
}
