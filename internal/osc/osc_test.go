package osc

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/matthewfrazier/gammasync/internal/noise"
)

const testRate = 48000

func newConfigured(t *testing.T, cfg FrequencyConfig, nt noise.Type) *Oscillator {
	t.Helper()
	o := New(testRate)
	if err := o.ConfigureSeeded(cfg, nt, 1234); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return o
}

// signChangesPerChannel counts zero crossings in one channel of an
// interleaved stereo buffer. ch is 0 for left, 1 for right.
func signChangesPerChannel(buf []float32, ch int) int {
	count := 0
	var prev float32
	havePrev := false
	for i := ch; i < len(buf); i += 2 {
		s := buf[i]
		if s == 0 {
			continue
		}
		if havePrev && (prev < 0) != (s < 0) {
			count++
		}
		prev = s
		havePrev = true
	}
	return count
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FrequencyConfig
		wantErr bool
	}{
		{"fixed in range", Fixed(40), false},
		{"fixed too low", Fixed(0.01), true},
		{"fixed too high", Fixed(500), true},
		{"fixed negative", Fixed(-40), true},
		{"ramp ok", Ramp(12, 8, 10*time.Minute), false},
		{"ramp zero duration", Ramp(12, 8, 0), true},
		{"ramp bad end", Ramp(12, 0.001, time.Minute), true},
		{"coupled ok", Coupled(40, 6), false},
		{"coupled inverted", Coupled(6, 40), true},
		{"binaural ok", Binaural(200, 10), false},
		{"binaural carrier too low", Binaural(5, 10), true},
		{"binaural right carrier too high", Binaural(1995, 10), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(testRate).Configure(tt.cfg, noise.Off)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFrequency) {
					t.Fatalf("err = %v, want ErrInvalidFrequency", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPhaseInvariant(t *testing.T) {
	configs := []FrequencyConfig{
		Fixed(40),
		Ramp(12, 8, time.Second),
		Coupled(40, 6),
		Binaural(200, 10),
	}
	for _, cfg := range configs {
		o := newConfigured(t, cfg, noise.Pink)
		prev := o.Phase()
		for i := 0; i < testRate; i++ {
			o.NextFrame(0.8, true)
			p := o.Phase()
			if p < 0 || p >= 1 {
				t.Fatalf("mode %d: phase %v out of [0,1)", cfg.Mode, p)
			}
			s := o.SecondaryPhase()
			if s < 0 || s >= 1 {
				t.Fatalf("mode %d: secondary phase %v out of [0,1)", cfg.Mode, s)
			}
			// Never backward except at the wrap.
			if p < prev && prev-p < 0.5 {
				t.Fatalf("mode %d: phase went backward %v -> %v", cfg.Mode, prev, p)
			}
			prev = p
		}
	}
}

func TestFixedFrequencyAccuracy(t *testing.T) {
	o := newConfigured(t, Fixed(40), noise.Off)
	const seconds = 10
	buf := make([]float32, testRate*2*seconds)
	o.Fill(buf, 1.0, false)

	crossings := signChangesPerChannel(buf, 0)
	measured := float64(crossings) / 2 / seconds
	if math.Abs(measured-40) > 0.05 {
		t.Errorf("measured frequency %v Hz, want 40 +/- 0.05", measured)
	}
}

func TestRampUsesInstantaneousFrequency(t *testing.T) {
	o := newConfigured(t, Ramp(10, 20, time.Second), noise.Off)
	buf := make([]float32, testRate*2)
	o.Fill(buf, 1.0, false)

	// Linear sweep 10 -> 20 Hz over one second averages 15 Hz.
	crossings := signChangesPerChannel(buf, 0)
	measured := float64(crossings) / 2
	if math.Abs(measured-15) > 0.6 {
		t.Errorf("swept second measured %v Hz, want ~15", measured)
	}
	if got := o.CurrentFrequency(); math.Abs(got-20) > 1e-9 {
		t.Errorf("frequency after ramp = %v, want 20 (held)", got)
	}

	// Past the ramp the frequency holds at the end value.
	o.Fill(buf, 1.0, false)
	crossings = signChangesPerChannel(buf, 0)
	measured = float64(crossings) / 2
	if math.Abs(measured-20) > 0.3 {
		t.Errorf("post-ramp second measured %v Hz, want ~20", measured)
	}
}

func TestBufferBoundaryContinuity(t *testing.T) {
	o := newConfigured(t, Fixed(40), noise.Off)
	buf := make([]float32, 512)
	for k := 0; k < 50; k++ {
		predicted := math.Sin(2 * math.Pi * o.Phase())
		o.Fill(buf, 1.0, false)
		if diff := math.Abs(float64(buf[0]) - predicted); diff > 1e-6 {
			t.Fatalf("buffer %d: first sample %v, predicted %v (diff %v)", k, buf[0], predicted, diff)
		}
	}
}

func TestAmplitudeBounds(t *testing.T) {
	for _, amp := range []float64{0, 0.25, 0.5, 1.0} {
		for _, nt := range []noise.Type{noise.Off, noise.Pink, noise.Brown} {
			o := newConfigured(t, Fixed(40), nt)
			buf := make([]float32, testRate*2)
			o.Fill(buf, amp, nt != noise.Off)
			for i, s := range buf {
				if float64(s) > amp+1e-6 || float64(s) < -amp-1e-6 {
					t.Fatalf("amp %v noise %d: sample %d = %v exceeds bound", amp, nt, i, s)
				}
			}
		}
	}
}

func TestCoupledGating(t *testing.T) {
	o := newConfigured(t, Coupled(40, 5), noise.Off)

	var insidePeak, outsidePeak float64
	for i := 0; i < testRate; i++ {
		mod := o.SecondaryPhase()
		l, _ := o.NextFrame(1.0, false)
		a := math.Abs(float64(l))
		// Stay clear of the gate edges when classifying.
		switch {
		case mod > 0.05 && mod < 0.25:
			if a > insidePeak {
				insidePeak = a
			}
		case mod > 0.35 && mod < 0.95:
			if a > outsidePeak {
				outsidePeak = a
			}
		}
	}
	if insidePeak < 0.9 {
		t.Errorf("carrier peak inside duty window = %v, want near full amplitude", insidePeak)
	}
	if outsidePeak > 0.01 {
		t.Errorf("carrier peak outside duty window = %v, want near zero", outsidePeak)
	}
}

func TestBinauralChannelFrequencies(t *testing.T) {
	o := newConfigured(t, Binaural(200, 10), noise.Off)
	const seconds = 5
	buf := make([]float32, testRate*2*seconds)
	o.Fill(buf, 1.0, false)

	left := float64(signChangesPerChannel(buf, 0)) / 2 / seconds
	right := float64(signChangesPerChannel(buf, 1)) / 2 / seconds
	if math.Abs(left-200) > 0.5 {
		t.Errorf("left carrier measured %v Hz, want 200", left)
	}
	if math.Abs(right-210) > 0.5 {
		t.Errorf("right carrier measured %v Hz, want 210", right)
	}
	if math.Abs(right-left-10) > 0.5 {
		t.Errorf("beat = %v Hz, want 10", right-left)
	}
}

func TestBinauralPrimaryPhaseTracksBeat(t *testing.T) {
	o := newConfigured(t, Binaural(200, 10), noise.Off)
	// One full beat cycle at 10 Hz is 4800 frames; phase should return to 0.
	for i := 0; i < testRate/10; i++ {
		o.NextFrame(1.0, false)
	}
	if p := o.Phase(); p > 1e-6 && p < 1-1e-6 {
		t.Errorf("phase after one beat cycle = %v, want wrap to ~0", p)
	}
}

func TestSecondaryPhaseFallsBackToPrimary(t *testing.T) {
	o := newConfigured(t, Fixed(40), noise.Off)
	for i := 0; i < 1000; i++ {
		o.NextFrame(1.0, false)
		if o.SecondaryPhase() != o.Phase() {
			t.Fatalf("secondary %v != primary %v for single-band mode", o.SecondaryPhase(), o.Phase())
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	o := newConfigured(t, Fixed(40), noise.Pink)
	buf := make([]float32, 1024)
	o.Fill(buf, 1.0, true)
	o.Reset()
	o.Reset()
	if o.Phase() != 0 || o.SecondaryPhase() != 0 {
		t.Fatalf("phase after reset = %v / %v, want 0 / 0", o.Phase(), o.SecondaryPhase())
	}
}

func TestLongSessionPhaseAccuracy(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-minute sample generation")
	}
	// Five minutes at 40 Hz: accumulated phase error must stay within the
	// +/-0.05 Hz band, i.e. the crossing count of the final second still
	// measures 40 Hz.
	o := newConfigured(t, Fixed(40), noise.Off)
	buf := make([]float32, testRate*2)
	for s := 0; s < 299; s++ {
		o.Fill(buf, 1.0, false)
	}
	o.Fill(buf, 1.0, false)
	measured := float64(signChangesPerChannel(buf, 0)) / 2
	if math.Abs(measured-40) > 0.05 {
		t.Errorf("final-second frequency after 5 min = %v Hz, want 40 +/- 0.05", measured)
	}
}
