package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/matthewfrazier/gammasync"
	"github.com/matthewfrazier/gammasync/internal/profile"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		profileID  = flag.String("profile", "gamma40", "profile id (see -list)")
		list       = flag.Bool("list", false, "list available profiles and exit")
		duration   = flag.Duration("duration", time.Minute, "session length")
		amplitude  = flag.Float64("amplitude", 0.5, "output amplitude 0..1")
		noise      = flag.Bool("noise", true, "enable the profile's noise bed")
		headless   = flag.Bool("headless", false, "pace against wall time without an audio device")
		renderPath = flag.String("render", "", "render the session to a WAV file instead of playing")
	)
	flag.Parse()

	if *list {
		for _, p := range profile.All() {
			fmt.Printf("%-16s %s\n", p.ID, p.Name)
		}
		return
	}

	p, err := profile.ByID(*profileID)
	if err != nil {
		log.Fatal(err)
	}

	if *renderPath != "" {
		samples, err := gammasync.RenderSamples(p, *sampleRate, duration.Seconds(), *amplitude, *noise)
		if err != nil {
			log.Fatal(err)
		}
		if err := gammasync.WriteWAV(*renderPath, samples, *sampleRate); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("rendered %s (%v) to %s\n", p.ID, *duration, *renderPath)
		return
	}

	var opts []gammasync.Option
	if *headless {
		opts = append(opts, gammasync.WithHeadlessOutput())
	}
	engine, err := gammasync.NewEngine(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Release()

	if err := engine.Start(p, *amplitude, *noise); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("playing %s at %.4g Hz for %v\n", p.Name, engine.CurrentFrequency(), *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-time.After(*duration):
	case <-interrupt:
		fmt.Println("interrupted")
	}

	if err := engine.Stop(); err != nil {
		log.Fatal(err)
	}
	d := engine.Diagnostics()
	fmt.Printf("session done: discontinuities=%d maxGap=%.2fms\n", d.DiscontinuityCount, d.MaxBufferGapMs)
}
