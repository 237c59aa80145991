package gammasync

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	intosc "github.com/matthewfrazier/gammasync/internal/osc"
	intprofile "github.com/matthewfrazier/gammasync/internal/profile"
)

// renderSeed fixes offline noise so renders of the same profile are
// byte-identical.
const renderSeed = 1

// RenderSamples synthesizes a session offline, with no sink and no
// realtime pacing. Returns interleaved stereo float32 frames.
func RenderSamples(p intprofile.Profile, sampleRate int, seconds float64, amplitude float64, noiseEnabled bool) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d must be positive", sampleRate)
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("duration %vs must be positive", seconds)
	}
	o := intosc.New(sampleRate)
	if err := o.ConfigureSeeded(p.Frequency, p.Noise, renderSeed); err != nil {
		return nil, fmt.Errorf("configure profile %q: %w", p.ID, err)
	}
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	o.Fill(out, amplitude, noiseEnabled)
	return out, nil
}

// WriteWAV encodes interleaved stereo float32 samples as a 16-bit PCM WAV
// file at path.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		v := int(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		buf.Data[i] = v
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}
