package visual

import (
	"image/color"
	"math"
	"testing"
	"time"
)

type fakeProvider struct {
	phase     float64
	secondary float64
}

func (f *fakeProvider) Phase() float64          { return f.phase }
func (f *fakeProvider) SecondaryPhase() float64 { return f.secondary }

var (
	testPrimary   = color.RGBA{R: 200, G: 90, B: 40, A: 255}
	testSecondary = color.RGBA{R: 40, G: 138, B: 200, A: 255}
)

func TestTriangleTransform(t *testing.T) {
	tests := []struct {
		phase float64
		want  float64
	}{
		{0, 0},
		{0.25, 0.5},
		{0.5, 1},
		{0.75, 0.5},
		{0.999, 0.002},
	}
	for _, tt := range tests {
		if got := triangle(tt.phase); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("triangle(%v) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestCrossfadeEndpoints(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, Config{Primary: testPrimary, Secondary: testSecondary, Mode: ModeCrossfade})

	p.phase = 0
	l, _ := r.FrameColors()
	if l != testPrimary {
		t.Errorf("phase 0 color = %v, want primary %v", l, testPrimary)
	}

	p.phase = 0.5
	l, _ = r.FrameColors()
	if l != testSecondary {
		t.Errorf("phase 0.5 color = %v, want secondary %v", l, testSecondary)
	}
}

func TestStrobeHardCut(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, Config{Primary: testPrimary, Secondary: testSecondary, Mode: ModeStrobe})

	p.phase = 0.49
	if l, _ := r.FrameColors(); l != testPrimary {
		t.Errorf("phase 0.49 = %v, want primary", l)
	}
	p.phase = 0.5
	if l, _ := r.FrameColors(); l != testSecondary {
		t.Errorf("phase 0.5 = %v, want secondary", l)
	}
}

func TestStaticIgnoresPhase(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, Config{Primary: testPrimary, Secondary: testSecondary, Mode: ModeStatic})
	for _, phase := range []float64{0, 0.3, 0.5, 0.9} {
		p.phase = phase
		if l, _ := r.FrameColors(); l != testPrimary {
			t.Errorf("phase %v color = %v, want primary", phase, l)
		}
	}
}

func TestSplitUsesBothPhases(t *testing.T) {
	p := &fakeProvider{phase: 0, secondary: 0.5}
	r := New(p, Config{Primary: testPrimary, Secondary: testSecondary, Mode: ModeSplit})
	l, rt := r.FrameColors()
	if l != testPrimary {
		t.Errorf("left = %v, want primary", l)
	}
	if rt != testSecondary {
		t.Errorf("right = %v, want secondary", rt)
	}
}

func TestZeroPhaseRendersRestingState(t *testing.T) {
	// A provider that is not yet playing returns 0; the renderer must
	// produce a stable color, not an artifact.
	p := &fakeProvider{}
	r := New(p, Config{Primary: testPrimary, Secondary: testSecondary, Mode: ModeCrossfade})
	first, _ := r.FrameColors()
	for i := 0; i < 100; i++ {
		if got, _ := r.FrameColors(); got != first {
			t.Fatalf("resting color changed: %v -> %v", first, got)
		}
	}
}

func TestJitterMovesBrightnessOnly(t *testing.T) {
	p := &fakeProvider{phase: 0}
	r := New(p, Config{
		Primary:         testPrimary,
		Secondary:       testSecondary,
		Mode:            ModeCrossfade,
		LuminanceJitter: true,
	})

	base := testPrimary
	baseRatio := float64(base.R) / float64(base.B)
	for i := 0; i < 1000; i++ {
		c, _ := r.FrameColors()
		// Bounded by the default depth.
		if float64(c.R) > float64(base.R)*1.11 || float64(c.R) < float64(base.R)*0.89 {
			t.Fatalf("jittered R = %d, outside +/-10%% of %d", c.R, base.R)
		}
		// Channel ratio (chrominance) preserved within rounding.
		if c.B != 0 {
			ratio := float64(c.R) / float64(c.B)
			if math.Abs(ratio-baseRatio)/baseRatio > 0.05 {
				t.Fatalf("channel ratio moved: %v vs %v", ratio, baseRatio)
			}
		}
	}
}

func TestFrameTimeP99(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, Config{Primary: testPrimary, Secondary: testSecondary})

	if got := r.FrameTimeP99(); got != 0 {
		t.Fatalf("p99 with no frames = %v, want 0", got)
	}

	// 99 regular frames and one slow one; p99 must surface the outlier's
	// neighborhood, well above the regular interval.
	now := time.Unix(0, 0)
	r.RecordFrame(now)
	for i := 0; i < 99; i++ {
		now = now.Add(8 * time.Millisecond)
		r.RecordFrame(now)
	}
	now = now.Add(40 * time.Millisecond)
	r.RecordFrame(now)

	p99 := r.FrameTimeP99()
	if p99 < 8*time.Millisecond {
		t.Errorf("p99 = %v, want >= regular frame interval", p99)
	}
	if p99 > 40*time.Millisecond {
		t.Errorf("p99 = %v, want <= outlier interval", p99)
	}
}

func TestLuminanceWeights(t *testing.T) {
	if got := Luminance(color.RGBA{R: 255, G: 255, B: 255}); math.Abs(got-1) > 1e-9 {
		t.Errorf("white luminance = %v, want 1", got)
	}
	if got := Luminance(color.RGBA{}); got != 0 {
		t.Errorf("black luminance = %v, want 0", got)
	}
	green := Luminance(color.RGBA{G: 255})
	blue := Luminance(color.RGBA{B: 255})
	if green <= blue {
		t.Errorf("green weight %v should exceed blue %v", green, blue)
	}
}
