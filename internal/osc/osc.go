// Package osc synthesizes the stimulus waveform one stereo frame at a time.
// It performs no I/O and owns no goroutines; a single Oscillator instance is
// driven by the engine's audio write loop for the lifetime of one session.
package osc

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/matthewfrazier/gammasync/internal/noise"
)

const twoPi = math.Pi * 2

// Mode identifies the frequency-delivery strategy of a session.
type Mode int

const (
	// ModeFixed emits a single tone at a constant stimulus frequency.
	ModeFixed Mode = iota
	// ModeRamp interpolates the stimulus frequency linearly over a duration.
	ModeRamp
	// ModeCoupled gates bursts of a carrier tone with a slower modulator
	// envelope (e.g. 40 Hz nested inside 6 Hz).
	ModeCoupled
	// ModeBinaural emits independent carriers per stereo channel whose
	// difference is the perceived beat frequency.
	ModeBinaural
)

// FrequencyConfig is the immutable per-session frequency plan. Only the
// fields for the selected Mode are meaningful; use the constructors.
type FrequencyConfig struct {
	Mode Mode

	// ModeFixed.
	Frequency float64

	// ModeRamp.
	Start    float64
	End      float64
	Duration time.Duration

	// ModeCoupled.
	Carrier   float64
	Modulator float64

	// ModeBinaural.
	BaseCarrier float64
	Beat        float64
}

// Fixed returns a constant-frequency configuration.
func Fixed(frequency float64) FrequencyConfig {
	return FrequencyConfig{Mode: ModeFixed, Frequency: frequency}
}

// Ramp returns a configuration that sweeps linearly from start to end over
// the given duration, then holds at end.
func Ramp(start, end float64, duration time.Duration) FrequencyConfig {
	return FrequencyConfig{Mode: ModeRamp, Start: start, End: end, Duration: duration}
}

// Coupled returns a configuration where a modulator envelope gates bursts of
// the carrier tone.
func Coupled(carrier, modulator float64) FrequencyConfig {
	return FrequencyConfig{Mode: ModeCoupled, Carrier: carrier, Modulator: modulator}
}

// Binaural returns a configuration with the left channel at baseCarrier and
// the right at baseCarrier+beat.
func Binaural(baseCarrier, beat float64) FrequencyConfig {
	return FrequencyConfig{Mode: ModeBinaural, BaseCarrier: baseCarrier, Beat: beat}
}

// Supported frequency bounds. Stimulus rates cover the sub-audible
// entrainment bands; carriers must sit comfortably inside the audible band.
const (
	MinStimulusHz = 0.1
	MaxStimulusHz = 200.0
	MinCarrierHz  = 20.0
	MaxCarrierHz  = 2000.0
)

// ErrInvalidFrequency is returned by Configure when a requested frequency is
// outside the supported range for its role.
var ErrInvalidFrequency = errors.New("frequency outside supported range")

// dutyWindow is the fraction of the modulator cycle during which the carrier
// is active in ModeCoupled.
const dutyWindow = 0.3

// gateEdge is the fraction of the modulator cycle spent ramping the coupled
// gate open or closed, so bursts start and end without a click.
const gateEdge = 0.02

// noiseMix is the blend of the noise bed against the tone when noise is
// enabled.
const noiseMix = 0.5

// Oscillator holds all per-session synthesis state. Not safe for concurrent
// use; exactly one goroutine may call Fill. Phase accessors report values
// published by the engine, not read directly across threads.
type Oscillator struct {
	sampleRate float64
	cfg        FrequencyConfig
	noiseType  noise.Type
	gen        *noise.Generator

	phase       float64 // primary stimulus phase, always in [0,1)
	secondary   float64 // modulator phase for ModeCoupled, in [0,1)
	carrierL    float64 // left carrier phase for ModeBinaural
	carrierR    float64 // right carrier phase for ModeBinaural
	sampleIndex int64   // samples generated since Reset, drives ModeRamp
}

// New returns an oscillator for the given sample rate. Configure must be
// called before Fill.
func New(sampleRate int) *Oscillator {
	return &Oscillator{
		sampleRate: float64(sampleRate),
		gen:        noise.New(noise.Off, 1),
	}
}

// Configure validates the frequency plan, installs it and resets all state.
// It is the only call at this layer that can fail; Fill never does.
func (o *Oscillator) Configure(cfg FrequencyConfig, noiseType noise.Type) error {
	if err := validate(cfg); err != nil {
		return err
	}
	o.cfg = cfg
	o.noiseType = noiseType
	o.gen = noise.New(noiseType, time.Now().UnixNano())
	o.Reset()
	return nil
}

// ConfigureSeeded is Configure with a fixed noise seed, for deterministic
// offline renders.
func (o *Oscillator) ConfigureSeeded(cfg FrequencyConfig, noiseType noise.Type, seed int64) error {
	if err := o.Configure(cfg, noiseType); err != nil {
		return err
	}
	o.gen = noise.New(noiseType, seed)
	return nil
}

func validate(cfg FrequencyConfig) error {
	stimulus := func(name string, hz float64) error {
		if hz < MinStimulusHz || hz > MaxStimulusHz {
			return fmt.Errorf("%s %g Hz: %w [%g, %g]", name, hz, ErrInvalidFrequency, MinStimulusHz, MaxStimulusHz)
		}
		return nil
	}
	carrier := func(name string, hz float64) error {
		if hz < MinCarrierHz || hz > MaxCarrierHz {
			return fmt.Errorf("%s %g Hz: %w [%g, %g]", name, hz, ErrInvalidFrequency, MinCarrierHz, MaxCarrierHz)
		}
		return nil
	}
	switch cfg.Mode {
	case ModeFixed:
		return stimulus("frequency", cfg.Frequency)
	case ModeRamp:
		if cfg.Duration <= 0 {
			return fmt.Errorf("ramp duration %v: %w", cfg.Duration, ErrInvalidFrequency)
		}
		if err := stimulus("ramp start", cfg.Start); err != nil {
			return err
		}
		return stimulus("ramp end", cfg.End)
	case ModeCoupled:
		if err := stimulus("carrier", cfg.Carrier); err != nil {
			return err
		}
		if err := stimulus("modulator", cfg.Modulator); err != nil {
			return err
		}
		if cfg.Modulator >= cfg.Carrier {
			return fmt.Errorf("modulator %g Hz must be below carrier %g Hz: %w", cfg.Modulator, cfg.Carrier, ErrInvalidFrequency)
		}
		return nil
	case ModeBinaural:
		if err := carrier("base carrier", cfg.BaseCarrier); err != nil {
			return err
		}
		if err := stimulus("beat", cfg.Beat); err != nil {
			return err
		}
		return carrier("right carrier", cfg.BaseCarrier+cfg.Beat)
	default:
		return fmt.Errorf("unknown mode %d: %w", cfg.Mode, ErrInvalidFrequency)
	}
}

// Reset zeroes phase and filter state. Idempotent.
func (o *Oscillator) Reset() {
	o.phase = 0
	o.secondary = 0
	o.carrierL = 0
	o.carrierR = 0
	o.sampleIndex = 0
	o.gen.Reset()
}

// Phase returns the primary stimulus phase in [0,1) for the next frame.
func (o *Oscillator) Phase() float64 { return o.phase }

// SecondaryPhase returns the modulator phase for dual-band modes, or the
// primary phase when the configuration has no secondary band.
func (o *Oscillator) SecondaryPhase() float64 {
	if o.cfg.Mode == ModeCoupled {
		return o.secondary
	}
	return o.phase
}

// CurrentFrequency returns the instantaneous stimulus frequency in Hz.
func (o *Oscillator) CurrentFrequency() float64 {
	switch o.cfg.Mode {
	case ModeRamp:
		return o.rampFrequency()
	case ModeCoupled:
		return o.cfg.Carrier
	case ModeBinaural:
		return o.cfg.Beat
	default:
		return o.cfg.Frequency
	}
}

// rampFrequency is the linear interpolation at the current sample index.
// The accumulator advances by the instantaneous frequency every sample, not
// a precomputed average, so no drift accumulates over long sweeps.
func (o *Oscillator) rampFrequency() float64 {
	t := float64(o.sampleIndex) / o.sampleRate
	dur := o.cfg.Duration.Seconds()
	frac := t / dur
	if frac > 1 {
		frac = 1
	}
	return o.cfg.Start + (o.cfg.End-o.cfg.Start)*frac
}

// Fill writes interleaved stereo frames scaled by amplitude. len(dst) must
// be even; frames = len(dst)/2. noiseOn selects whether the configured noise
// bed is mixed in (it may be toggled between buffers mid-session). Fill
// allocates nothing and never fails.
func (o *Oscillator) Fill(dst []float32, amplitude float64, noiseOn bool) {
	for i := 0; i+1 < len(dst); i += 2 {
		l, r := o.nextFrame(amplitude, noiseOn)
		dst[i] = l
		dst[i+1] = r
	}
}

// NextFrame generates a single stereo frame and advances all state.
func (o *Oscillator) NextFrame(amplitude float64, noiseOn bool) (float32, float32) {
	return o.nextFrame(amplitude, noiseOn)
}

func (o *Oscillator) nextFrame(amplitude float64, noiseOn bool) (float32, float32) {
	var ns float64
	if noiseOn && o.noiseType != noise.Off {
		ns = float64(o.gen.Next())
	}

	var l, r float64
	switch o.cfg.Mode {
	case ModeBinaural:
		l = math.Sin(twoPi * o.carrierL)
		r = math.Sin(twoPi * o.carrierR)
		if noiseOn {
			l = (1-noiseMix)*l + noiseMix*ns
			r = (1-noiseMix)*r + noiseMix*ns
		}
		o.carrierL = wrap(o.carrierL + o.cfg.BaseCarrier/o.sampleRate)
		o.carrierR = wrap(o.carrierR + (o.cfg.BaseCarrier+o.cfg.Beat)/o.sampleRate)
		o.phase = wrap(o.phase + o.cfg.Beat/o.sampleRate)

	case ModeCoupled:
		tone := math.Sin(twoPi*o.phase) * gate(o.secondary)
		out := tone
		if noiseOn {
			out = (1-noiseMix)*tone + noiseMix*ns
		}
		l, r = out, out
		o.phase = wrap(o.phase + o.cfg.Carrier/o.sampleRate)
		o.secondary = wrap(o.secondary + o.cfg.Modulator/o.sampleRate)

	default: // ModeFixed, ModeRamp: isochronic single tone
		f := o.cfg.Frequency
		if o.cfg.Mode == ModeRamp {
			f = o.rampFrequency()
		}
		tone := math.Sin(twoPi * o.phase)
		out := tone
		if noiseOn {
			// The noise bed pulses with the stimulus envelope so the
			// rhythm survives even at low tone mix.
			env := 0.5 + 0.5*tone
			out = (1-noiseMix)*tone + noiseMix*env*ns
		}
		l, r = out, out
		o.phase = wrap(o.phase + f/o.sampleRate)
	}

	o.sampleIndex++
	return clampSample(l * amplitude), clampSample(r * amplitude)
}

// gate is the coupled-mode duty-cycle window over the modulator phase:
// fully open inside the duty window, closed outside, with short linear
// edges so the carrier burst does not start or stop with a step.
func gate(modPhase float64) float64 {
	switch {
	case modPhase < gateEdge:
		return modPhase / gateEdge
	case modPhase < dutyWindow-gateEdge:
		return 1
	case modPhase < dutyWindow:
		return (dutyWindow - modPhase) / gateEdge
	default:
		return 0
	}
}

// wrap keeps a phase accumulator in [0,1). Increments are below 1 for all
// supported frequencies, so a single subtraction suffices.
func wrap(p float64) float64 {
	if p >= 1 {
		p -= 1
	}
	return p
}

func clampSample(v float64) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return float32(v)
}
