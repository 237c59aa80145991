// Package visual turns the engine's published phase into per-frame colors.
// It never reads a clock of its own: the host's frame callback polls
// FrameColors once per display refresh, and everything here is a pure
// function of the provider's phase values plus the jitter source.
package visual

import (
	"image/color"
	"math/rand"
	"sort"
	"time"
)

// Mode identifies the visual rendering strategy.
type Mode int

const (
	// ModeCrossfade blends the color pair along a triangle wave of phase.
	// The triangle, not a raw sine, gives a symmetric linear ramp matching
	// the audio envelope's perceptual symmetry.
	ModeCrossfade Mode = iota
	// ModeStrobe hard-cuts between the colors at half phase.
	ModeStrobe
	// ModeStatic ignores phase and holds the primary color.
	ModeStatic
	// ModeSplit drives each half of the field from its own phase.
	ModeSplit
)

// Config is the immutable per-session visual plan.
type Config struct {
	Primary   color.RGBA
	Secondary color.RGBA
	Mode      Mode

	// LuminanceJitter applies a small per-frame brightness perturbation to
	// reduce perceptual habituation. It scales all channels uniformly so
	// chrominance is untouched.
	LuminanceJitter bool
	// JitterDepth is the maximum relative perturbation (0.1 = +/-10%).
	// Zero selects the default depth when jitter is enabled.
	JitterDepth float64
}

const defaultJitterDepth = 0.1

// PhaseProvider is the engine-facing read surface. Both calls must be
// non-blocking and safe from the frame callback's goroutine; a provider
// that is not yet playing returns 0.
type PhaseProvider interface {
	Phase() float64
	SecondaryPhase() float64
}

// frameRingLen is how many recent inter-frame intervals are retained for
// the p99 diagnostic (about two seconds at 120 Hz).
const frameRingLen = 256

// Renderer computes one frame's colors from the current phase. Owned by
// the host's render callback; not safe for concurrent use.
type Renderer struct {
	cfg      Config
	provider PhaseProvider
	rng      *rand.Rand

	intervals [frameRingLen]time.Duration
	count     int
	next      int
	lastFrame time.Time
}

func New(provider PhaseProvider, cfg Config) *Renderer {
	if cfg.LuminanceJitter && cfg.JitterDepth == 0 {
		cfg.JitterDepth = defaultJitterDepth
	}
	return &Renderer{
		cfg:      cfg,
		provider: provider,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FrameColors returns the colors for the two halves of the field. All
// modes except ModeSplit return the same color twice.
func (r *Renderer) FrameColors() (left, right color.RGBA) {
	phase := r.provider.Phase()
	switch r.cfg.Mode {
	case ModeStatic:
		left = r.cfg.Primary
		right = left
	case ModeSplit:
		left = r.colorAt(phase)
		right = r.colorAt(r.provider.SecondaryPhase())
	default:
		left = r.colorAt(phase)
		right = left
	}
	if r.cfg.LuminanceJitter {
		// One factor per frame: both halves brighten or dim together.
		f := 1 + (r.rng.Float64()*2-1)*r.cfg.JitterDepth
		left = scaleColor(left, f)
		right = scaleColor(right, f)
	}
	return left, right
}

func (r *Renderer) colorAt(phase float64) color.RGBA {
	switch r.cfg.Mode {
	case ModeStrobe:
		if phase < 0.5 {
			return r.cfg.Primary
		}
		return r.cfg.Secondary
	case ModeStatic:
		return r.cfg.Primary
	default:
		return lerpColor(r.cfg.Primary, r.cfg.Secondary, triangle(phase))
	}
}

// triangle maps phase [0,1) to a symmetric 0->1->0 ramp.
func triangle(phase float64) float64 {
	if phase < 0.5 {
		return phase * 2
	}
	return (1 - phase) * 2
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerp8(a.R, b.R, t),
		G: lerp8(a.G, b.G, t),
		B: lerp8(a.B, b.B, t),
		A: 255,
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// scaleColor multiplies all channels by f, clamped. Uniform scaling keeps
// the channel ratios, so only brightness moves.
func scaleColor(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{R: scale8(c.R, f), G: scale8(c.G, f), B: scale8(c.B, f), A: 255}
}

func scale8(v uint8, f float64) uint8 {
	s := float64(v) * f
	if s > 255 {
		s = 255
	}
	if s < 0 {
		s = 0
	}
	return uint8(s + 0.5)
}

// RecordFrame notes a frame boundary for the interval diagnostics. Call it
// once per render callback with the callback's timestamp.
func (r *Renderer) RecordFrame(now time.Time) {
	if !r.lastFrame.IsZero() {
		r.intervals[r.next] = now.Sub(r.lastFrame)
		r.next = (r.next + 1) % frameRingLen
		if r.count < frameRingLen {
			r.count++
		}
	}
	r.lastFrame = now
}

// FrameTimeP99 returns the 99th-percentile inter-frame interval over the
// retained window, or 0 if too few frames have been recorded.
func (r *Renderer) FrameTimeP99() time.Duration {
	if r.count == 0 {
		return 0
	}
	sorted := make([]time.Duration, r.count)
	copy(sorted, r.intervals[:r.count])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := r.count * 99 / 100
	if idx >= r.count {
		idx = r.count - 1
	}
	return sorted[idx]
}

// Luminance returns the Rec. 709 relative luminance of a color in [0,1].
// Profile color pairs are required to match in luminance so the flicker is
// carried by chrominance alone.
func Luminance(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}
