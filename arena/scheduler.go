package arena

import "time"

// PowerupTarget is what a Scheduler spawns into.
type PowerupTarget interface {
	// AcceptsPowerups reports whether a scheduled spawn may happen now.
	AcceptsPowerups() bool
	SpawnPowerup()
}

// Scheduler keeps at most one randomized powerup spawn pending. Each spawn
// re-arms the next one until the target stops accepting powerups.
type Scheduler struct {
	clock    Clock
	rng      Rand
	min, max time.Duration
	target   PowerupTarget

	pending Timer
	gen     uint64 // bumped on every cancel; stale callbacks compare against it
}

// NewScheduler creates an idle scheduler.
func NewScheduler(clock Clock, rng Rand, min, max time.Duration, target PowerupTarget) *Scheduler {
	if max < min {
		max = min
	}
	return &Scheduler{
		clock:  clock,
		rng:    rng,
		min:    min,
		max:    max,
		target: target,
	}
}

// Schedule cancels any pending spawn and, if the target still accepts
// powerups, arms a new one at a random interval in [min, max].
func (s *Scheduler) Schedule() {
	s.Stop()
	if !s.target.AcceptsPowerups() {
		return
	}

	d := s.min + time.Duration(s.rng.Float64()*float64(s.max-s.min))
	gen := s.gen
	s.pending = s.clock.AfterFunc(d, func() {
		// a timer that fired just before Stop may still deliver
		if gen != s.gen {
			return
		}
		s.pending = nil
		s.target.SpawnPowerup()
		s.Schedule()
	})
}

// Stop cancels the pending spawn. It is safe to call when idle.
func (s *Scheduler) Stop() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Pending reports whether a spawn is armed.
func (s *Scheduler) Pending() bool {
	return s.pending != nil
}
