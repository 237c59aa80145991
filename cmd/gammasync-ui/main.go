package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/matthewfrazier/gammasync"
	"github.com/matthewfrazier/gammasync/internal/profile"
	"github.com/matthewfrazier/gammasync/internal/visual"
)

const (
	windowW      = 960
	windowH      = 640
	uiSampleRate = 48000
)

// game hosts the visual channel: ebiten invokes Draw once per display
// refresh, and each frame polls the engine's published phase. The engine is
// the only clock; Draw never times anything itself beyond the frame-interval
// diagnostics.
type game struct {
	engine   *gammasync.Engine
	profiles []profile.Profile
	idx      int
	renderer *visual.Renderer

	amplitude float64
	noise     bool
	status    string
}

func newGame() (*game, error) {
	engine, err := gammasync.NewEngine(uiSampleRate)
	if err != nil {
		return nil, err
	}
	g := &game{
		engine:    engine,
		profiles:  profile.All(),
		amplitude: 0.5,
		noise:     true,
		status:    "space: start/stop  tab: profile  n: noise  up/down: volume",
	}
	g.renderer = visual.New(engine, g.current().Visual)
	return g, nil
}

func (g *game) current() profile.Profile { return g.profiles[g.idx] }

func (g *game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.togglePlayback()
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		g.cycleProfile()
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		g.noise = !g.noise
		g.engine.SetNoiseEnabled(g.noise)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.setAmplitude(g.amplitude + 0.05)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.setAmplitude(g.amplitude - 0.05)
	}
	return nil
}

func (g *game) togglePlayback() {
	if g.engine.IsPlaying() {
		if err := g.engine.Stop(); err != nil {
			g.status = err.Error()
			return
		}
		g.status = "stopped"
		return
	}
	if err := g.engine.Start(g.current(), g.amplitude, g.noise); err != nil {
		g.status = err.Error()
		return
	}
	g.status = "playing " + g.current().Name
}

func (g *game) cycleProfile() {
	wasPlaying := g.engine.IsPlaying()
	if wasPlaying {
		if err := g.engine.Stop(); err != nil {
			g.status = err.Error()
			return
		}
	}
	g.idx = (g.idx + 1) % len(g.profiles)
	g.renderer = visual.New(g.engine, g.current().Visual)
	g.status = "profile: " + g.current().Name
	if wasPlaying {
		g.togglePlayback()
	}
}

func (g *game) setAmplitude(a float64) {
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	g.amplitude = a
	g.engine.SetAmplitude(a)
	g.status = fmt.Sprintf("volume %d%%", int(a*100+0.5))
}

func (g *game) Draw(screen *ebiten.Image) {
	g.renderer.RecordFrame(time.Now())
	left, right := g.renderer.FrameColors()

	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	if left == right {
		screen.Fill(left)
	} else {
		ebitenutil.DrawRect(screen, 0, 0, float64(w)/2, float64(h), left)
		ebitenutil.DrawRect(screen, float64(w)/2, 0, float64(w)/2, float64(h), right)
	}

	d := g.engine.Diagnostics()
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf(
		"%s\n%s  %.4g Hz  phase %.3f\nframe p99 %.2fms  gaps max %.2fms  discont %d",
		g.status,
		g.current().ID,
		g.engine.CurrentFrequency(),
		g.engine.Phase(),
		float64(g.renderer.FrameTimeP99().Microseconds())/1000,
		d.MaxBufferGapMs,
		d.DiscontinuityCount,
	), 8, 8)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) { return windowW, windowH }

func (g *game) Close() { _ = g.engine.Release() }

func main() {
	flag.Parse()

	g, err := newGame()
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("gammasync")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
