package main

import (
	"log"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Sound plays short tones for arena events. A Sound whose speaker failed to
// initialize is silent.
type Sound struct {
	ok bool
}

func NewSound(enabled bool) *Sound {
	s := &Sound{}
	if !enabled {
		return s
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		// the arena runs fine without sound
		log.Printf("audio init failed: %v", err)
		return s
	}
	s.ok = true
	return s
}

func (s *Sound) tone(freq float64, d time.Duration) {
	if s == nil || !s.ok {
		return
	}
	sine, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		log.Printf("tone %v: %v", freq, err)
		return
	}
	speaker.Play(beep.Take(sampleRate.N(d), sine))
}

func (s *Sound) Hit()    { s.tone(220, 80*time.Millisecond) }
func (s *Sound) Pickup() { s.tone(880, 50*time.Millisecond) }
func (s *Sound) Win()    { s.tone(660, 300*time.Millisecond) }

func (s *Sound) Close() {
	if s != nil && s.ok {
		speaker.Close()
	}
}
