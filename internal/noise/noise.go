package noise

import "math/rand"

// Type selects the noise coloration mixed under the stimulus tone.
type Type int

const (
	Off Type = iota
	Pink
	Brown
)

// numRows is the number of Voss-McCartney octave rows. 16 rows cover the
// audible band down to ~0.7 Hz at 48 kHz, which is below any stimulus band.
const numRows = 16

// Generator produces pink or brown noise one sample at a time. State is
// carried across buffers for the whole session; Reset is only called at
// session start. Not safe for concurrent use (owned by the audio write loop).
type Generator struct {
	typ Type
	rng *rand.Rand

	// Voss-McCartney pink noise state.
	rows       [numRows]float32
	runningSum float32
	counter    int

	// Single-pole brown noise state.
	brownState float32
}

// New returns a generator for the given type, seeded deterministically so
// offline renders are reproducible.
func New(typ Type, seed int64) *Generator {
	g := &Generator{
		typ: typ,
		rng: rand.New(rand.NewSource(seed)),
	}
	g.Reset()
	return g
}

// Reset re-primes all filter state. Idempotent.
func (g *Generator) Reset() {
	g.counter = 0
	g.runningSum = 0
	g.brownState = 0
	for i := range g.rows {
		g.rows[i] = g.white()
		g.runningSum += g.rows[i]
	}
}

func (g *Generator) white() float32 {
	return float32(g.rng.Float64()*2 - 1)
}

// Next returns the next noise sample in [-1, 1]. Always succeeds; Off
// produces silence.
func (g *Generator) Next() float32 {
	switch g.typ {
	case Pink:
		return g.nextPink()
	case Brown:
		return g.nextBrown()
	default:
		return 0
	}
}

// nextPink runs one step of the Voss-McCartney recurrence: the row to
// replace is chosen by the number of trailing zeros of a wrapping counter,
// so row k updates every 2^k samples and the summed rows approximate a
// 1/f spectrum.
func (g *Generator) nextPink() float32 {
	g.counter++
	if g.counter >= 1<<numRows {
		g.counter = 0
	}
	if g.counter != 0 {
		row := 0
		for v := g.counter; v&1 == 0; v >>= 1 {
			row++
		}
		g.runningSum -= g.rows[row]
		g.rows[row] = g.white()
		g.runningSum += g.rows[row]
	}
	out := (g.runningSum + g.white()) / float32(numRows+1)
	return clamp(out)
}

// nextBrown integrates white noise with a leak to stop DC buildup.
func (g *Generator) nextBrown() float32 {
	g.brownState += g.white() * 0.0625
	g.brownState *= 0.997
	return clamp(g.brownState)
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
