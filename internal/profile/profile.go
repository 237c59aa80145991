// Package profile is the closed catalog of session configurations. Pure
// data: each profile pairs a frequency plan, a noise bed and a visual plan.
package profile

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"time"

	"github.com/matthewfrazier/gammasync/internal/noise"
	"github.com/matthewfrazier/gammasync/internal/osc"
	"github.com/matthewfrazier/gammasync/internal/visual"
)

// Profile is one named session configuration. Immutable once built.
type Profile struct {
	ID        string
	Name      string
	Frequency osc.FrequencyConfig
	Noise     noise.Type
	Visual    visual.Config
}

// ErrUnknownProfile is returned by ByID for IDs outside the catalog.
var ErrUnknownProfile = errors.New("profile: unknown id")

// Color pairs are matched in Rec. 709 luminance to about 1%, so the flicker
// rides on chrominance and perceived brightness stays level.
var (
	gammaPrimary   = color.RGBA{R: 200, G: 90, B: 40, A: 255}
	gammaSecondary = color.RGBA{R: 40, G: 121, B: 200, A: 255}

	thetaPrimary   = color.RGBA{R: 230, G: 120, B: 0, A: 255}
	thetaSecondary = color.RGBA{R: 90, G: 138, B: 230, A: 255}

	strobePrimary   = color.RGBA{R: 220, G: 0, B: 60, A: 255}
	strobeSecondary = color.RGBA{R: 0, G: 63, B: 80, A: 255}

	splitPrimary   = color.RGBA{R: 255, G: 80, B: 0, A: 255}
	splitSecondary = color.RGBA{R: 0, G: 130, B: 255, A: 255}

	restingBlue = color.RGBA{R: 20, G: 40, B: 90, A: 255}
)

var catalog = map[string]Profile{
	"gamma40": {
		ID:        "gamma40",
		Name:      "Gamma 40 Hz",
		Frequency: osc.Fixed(40),
		Noise:     noise.Pink,
		Visual: visual.Config{
			Primary:         gammaPrimary,
			Secondary:       gammaSecondary,
			Mode:            visual.ModeCrossfade,
			LuminanceJitter: true,
		},
	},
	"theta6": {
		ID:        "theta6",
		Name:      "Theta 6 Hz",
		Frequency: osc.Fixed(6),
		Noise:     noise.Brown,
		Visual: visual.Config{
			Primary:   thetaPrimary,
			Secondary: thetaSecondary,
			Mode:      visual.ModeCrossfade,
		},
	},
	"alpha-descent": {
		ID:        "alpha-descent",
		Name:      "Alpha descent 12-8 Hz",
		Frequency: osc.Ramp(12, 8, 10*time.Minute),
		Noise:     noise.Pink,
		Visual: visual.Config{
			Primary:   thetaPrimary,
			Secondary: thetaSecondary,
			Mode:      visual.ModeCrossfade,
		},
	},
	"gamma-theta": {
		ID:        "gamma-theta",
		Name:      "Gamma bursts in theta",
		Frequency: osc.Coupled(40, 6),
		Noise:     noise.Pink,
		Visual: visual.Config{
			Primary:   splitPrimary,
			Secondary: splitSecondary,
			Mode:      visual.ModeSplit,
		},
	},
	"binaural-alpha": {
		ID:        "binaural-alpha",
		Name:      "Binaural alpha 10 Hz",
		Frequency: osc.Binaural(200, 10),
		Noise:     noise.Off,
		Visual: visual.Config{
			Primary: restingBlue,
			Mode:    visual.ModeStatic,
		},
	},
	"strobe40": {
		ID:        "strobe40",
		Name:      "Strobe 40 Hz",
		Frequency: osc.Fixed(40),
		Noise:     noise.Off,
		Visual: visual.Config{
			Primary:   strobePrimary,
			Secondary: strobeSecondary,
			Mode:      visual.ModeStrobe,
		},
	},
}

// ByID looks up a profile from the catalog.
func ByID(id string) (Profile, error) {
	p, ok := catalog[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}
	return p, nil
}

// All returns the catalog sorted by ID.
func All() []Profile {
	out := make([]Profile, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
