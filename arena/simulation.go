package arena

import (
	"math"
	"sort"
)

// EventKind identifies what changed in the arena.
type EventKind int

const (
	EventUpdated        EventKind = iota // end of a step or a reset
	EventSpawned                         // EntityID spawned
	EventPowerupSpawned                  // a powerup token appeared
	EventPickup                          // EntityID picked up a powerup
	EventEliminated                      // OtherID eliminated EntityID
	EventCancelled                       // EntityID and OtherID both lost their powerups
	EventGameOver                        // EntityID won
)

// Event is delivered to the observer synchronously, from inside the
// operation that caused it.
type Event struct {
	Kind     EventKind
	EntityID int
	OtherID  int
}

// Simulation is one arena: its rosters, powerups, run state and powerup
// scheduler. It is not safe for concurrent use; drivers serialize every
// call, including the scheduler's timer callbacks (see Clock).
type Simulation struct {
	cfg   Config
	rng   Rand
	clock Clock

	width, height float64
	circleRadius  float64
	powerupRadius float64

	active   []*Entity // alive, spawn order
	history  []*Entity // every entity ever spawned, creation order
	powerups []*Powerup

	paused   bool
	gameOver bool
	winner   *Entity

	sched    *Scheduler
	observer func(Event)
}

// New creates a paused, empty arena. A nil rng or clock selects the
// time-seeded source and the wall clock.
func New(cfg Config, rng Rand, clock Clock) *Simulation {
	if rng == nil {
		rng = NewRand()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	cfg.Palette = append([]string(nil), cfg.Palette...)
	if len(cfg.Palette) == 0 {
		cfg.Palette = append(cfg.Palette, DefaultPalette...)
	}
	s := &Simulation{
		cfg:           cfg,
		rng:           rng,
		clock:         clock,
		width:         cfg.Width,
		height:        cfg.Height,
		circleRadius:  cfg.CircleRadius,
		powerupRadius: cfg.PowerupRadius,
		paused:        true,
	}
	s.sched = NewScheduler(clock, rng, cfg.MinInterval(), cfg.MaxInterval(), s)
	return s
}

// Config returns the tuning the arena was created with.
func (s *Simulation) Config() Config {
	return s.cfg
}

// SetObserver registers the callback that receives every Event.
func (s *Simulation) SetObserver(fn func(Event)) {
	s.observer = fn
}

func (s *Simulation) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}

// Resize sets the arena bounds used from the next step on. Entities left
// outside shrunken bounds are clamped back by their next wall check.
func (s *Simulation) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.width = width
	s.height = height
}

// Size returns the current arena bounds.
func (s *Simulation) Size() (width, height float64) {
	return s.width, s.height
}

// SetRadii sets the radii given to circles and powerups spawned from now
// on. Existing ones keep theirs.
func (s *Simulation) SetRadii(circle, powerup float64) {
	if circle > 0 {
		s.circleRadius = circle
	}
	if powerup > 0 {
		s.powerupRadius = powerup
	}
}

// Radii returns the radii given to newly spawned circles and powerups.
func (s *Simulation) Radii() (circle, powerup float64) {
	return s.circleRadius, s.powerupRadius
}

// SpawnEntity adds a circle at a random position inside the arena, heading
// in a random direction at the configured speed. It does nothing and
// returns nil once MaxCircles circles are alive. The returned entity is
// owned by the simulation.
func (s *Simulation) SpawnEntity() *Entity {
	if len(s.active) >= s.cfg.MaxCircles {
		return nil
	}

	r := s.circleRadius
	angle := s.rng.Float64() * math.Pi * 2
	e := &Entity{
		ID:        len(s.history) + 1,
		X:         r + s.rng.Float64()*(s.width-2*r),
		Y:         r + s.rng.Float64()*(s.height-2*r),
		VX:        math.Cos(angle) * s.cfg.Speed,
		VY:        math.Sin(angle) * s.cfg.Speed,
		Radius:    r,
		Color:     s.cfg.Palette[s.rng.Intn(len(s.cfg.Palette))],
		Alive:     true,
		SpawnedAt: s.clock.Now(),
	}
	s.active = append(s.active, e)
	s.history = append(s.history, e)
	s.emit(Event{Kind: EventSpawned, EntityID: e.ID})
	return e
}

// SpawnAndStart is the spawn button: two circles while fewer than two are
// alive, otherwise one, then a paused arena starts. It returns the number
// of circles spawned.
func (s *Simulation) SpawnAndStart() int {
	n := 1
	if len(s.active) < 2 {
		n = 2
	}
	spawned := 0
	for i := 0; i < n; i++ {
		if s.SpawnEntity() != nil {
			spawned++
		}
	}
	if s.paused {
		s.Start()
	}
	return spawned
}

// SpawnPowerup adds a powerup token at a random position inside the arena.
// It does nothing once MaxPowerups tokens are waiting.
func (s *Simulation) SpawnPowerup() {
	if len(s.powerups) >= s.cfg.MaxPowerups {
		return
	}
	r := s.powerupRadius
	s.powerups = append(s.powerups, &Powerup{
		X:      r + s.rng.Float64()*(s.width-2*r),
		Y:      r + s.rng.Float64()*(s.height-2*r),
		Radius: r,
	})
	s.emit(Event{Kind: EventPowerupSpawned})
}

// AcceptsPowerups reports whether the scheduler may arm another spawn.
func (s *Simulation) AcceptsPowerups() bool {
	return !s.paused && !s.gameOver && len(s.powerups) < s.cfg.MaxPowerups
}

// Start resumes a paused arena and restarts powerup spawning. It does
// nothing after game over.
func (s *Simulation) Start() {
	if s.gameOver {
		return
	}
	s.paused = false
	s.sched.Schedule()
}

// Pause stops powerup spawning. All state is kept.
func (s *Simulation) Pause() {
	if s.gameOver {
		return
	}
	s.paused = true
	s.sched.Stop()
}

// Toggle switches between running and paused.
func (s *Simulation) Toggle() {
	if s.paused {
		s.Start()
	} else {
		s.Pause()
	}
}

// Reset discards every circle and powerup and returns to the initial
// paused state. Arena size and radii are kept.
func (s *Simulation) Reset() {
	s.sched.Stop()
	s.active = nil
	s.history = nil
	s.powerups = nil
	s.paused = true
	s.gameOver = false
	s.winner = nil
	s.emit(Event{Kind: EventUpdated})
}

// Step advances the arena by one frame: motion, circle contacts,
// powerup pickups, then the win check. It does nothing after game over.
func (s *Simulation) Step() {
	if s.gameOver {
		return
	}

	for _, e := range s.active {
		e.Advance(s.width, s.height)
	}
	s.resolveContacts()
	s.collectPowerups()
	s.checkWinner()
	s.emit(Event{Kind: EventUpdated})
}

// resolveContacts runs every pair i < j of the active roster once.
// Eliminated circles are skipped for the rest of the pass and compacted
// out of the roster after it.
func (s *Simulation) resolveContacts() {
	eliminated := false
	for i := 0; i < len(s.active); i++ {
		for j := i + 1; j < len(s.active); j++ {
			a, b := s.active[i], s.active[j]
			if !a.Alive || !b.Alive {
				continue
			}
			if !ResolveContact(a, b, s.cfg.Speed, s.cfg.Separation) {
				continue
			}
			switch ApplyElimination(a, b, s.clock.Now()) {
			case OutcomeSecondEliminated:
				eliminated = true
				s.emit(Event{Kind: EventEliminated, EntityID: b.ID, OtherID: a.ID})
			case OutcomeFirstEliminated:
				eliminated = true
				s.emit(Event{Kind: EventEliminated, EntityID: a.ID, OtherID: b.ID})
			case OutcomeCancel:
				s.emit(Event{Kind: EventCancelled, EntityID: a.ID, OtherID: b.ID})
			}
		}
	}
	if !eliminated {
		return
	}
	alive := make([]*Entity, 0, len(s.active))
	for _, e := range s.active {
		if e.Alive {
			alive = append(alive, e)
		}
	}
	s.active = alive
}

// collectPowerups walks circles and tokens back to front so tokens can be
// removed in place.
func (s *Simulation) collectPowerups() {
	for i := len(s.active) - 1; i >= 0; i-- {
		e := s.active[i]
		for j := len(s.powerups) - 1; j >= 0; j-- {
			if DetectPickup(e, s.powerups[j]) {
				s.powerups = append(s.powerups[:j], s.powerups[j+1:]...)
				s.emit(Event{Kind: EventPickup, EntityID: e.ID})
			}
		}
	}
}

func (s *Simulation) checkWinner() {
	if len(s.history) < 2 || len(s.active) != 1 {
		return
	}
	s.winner = s.active[0]
	s.gameOver = true
	s.paused = true
	s.sched.Stop()
	s.emit(Event{Kind: EventGameOver, EntityID: s.winner.ID})
}

// ActiveCount returns the number of circles still alive.
func (s *Simulation) ActiveCount() int {
	return len(s.active)
}

// HistoryCount returns the number of circles ever spawned.
func (s *Simulation) HistoryCount() int {
	return len(s.history)
}

// CapacityReached reports whether SpawnEntity would be a no-op.
func (s *Simulation) CapacityReached() bool {
	return len(s.active) >= s.cfg.MaxCircles
}

// PowerupCapacityReached reports whether SpawnPowerup would be a no-op.
func (s *Simulation) PowerupCapacityReached() bool {
	return len(s.powerups) >= s.cfg.MaxPowerups
}

// GameOver reports whether a winner has been declared.
func (s *Simulation) GameOver() bool {
	return s.gameOver
}

// Paused reports whether the arena is paused. A finished arena is paused.
func (s *Simulation) Paused() bool {
	return s.paused
}

// Running reports whether drivers should keep stepping the arena.
func (s *Simulation) Running() bool {
	return !s.paused && !s.gameOver
}

// SpawnPending reports whether a scheduled powerup spawn is armed.
func (s *Simulation) SpawnPending() bool {
	return s.sched.Pending()
}

// Winner returns a snapshot of the winning circle once the game is over.
func (s *Simulation) Winner() (Entity, bool) {
	if s.winner == nil {
		return Entity{}, false
	}
	return s.winner.Snapshot(), true
}

// Entities returns the active roster in spawn order.
func (s *Simulation) Entities() []*Entity {
	return append([]*Entity(nil), s.active...)
}

// History returns every circle ever spawned, in creation order.
func (s *Simulation) History() []*Entity {
	return append([]*Entity(nil), s.history...)
}

// Powerups returns a copy of the waiting powerup tokens.
func (s *Simulation) Powerups() []Powerup {
	out := make([]Powerup, len(s.powerups))
	for i, p := range s.powerups {
		out[i] = *p
	}
	return out
}

// Status is the derived control-panel state.
type Status struct {
	Active          int
	Total           int
	Powerups        int
	Paused          bool
	GameOver        bool
	CanSpawn        bool
	CanSpawnPowerup bool
}

// Status summarizes the arena for a control panel.
func (s *Simulation) Status() Status {
	return Status{
		Active:          len(s.active),
		Total:           len(s.history),
		Powerups:        len(s.powerups),
		Paused:          s.paused,
		GameOver:        s.gameOver,
		CanSpawn:        !s.gameOver && !s.CapacityReached(),
		CanSpawnPowerup: !s.gameOver && !s.PowerupCapacityReached(),
	}
}

// Standing is one leaderboard row.
type Standing struct {
	ID           int
	Color        string
	Score        int
	Alive        bool
	EliminatedBy int
	Winner       bool
}

// Leaderboard returns every circle ever spawned: alive ones first, then by
// score descending, ties in creation order.
func (s *Simulation) Leaderboard() []Standing {
	rows := make([]Standing, len(s.history))
	for i, e := range s.history {
		rows[i] = Standing{
			ID:           e.ID,
			Color:        e.Color,
			Score:        e.Score,
			Alive:        e.Alive,
			EliminatedBy: e.EliminatedBy,
			Winner:       s.winner != nil && s.winner.ID == e.ID,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Alive != rows[j].Alive {
			return rows[i].Alive
		}
		return rows[i].Score > rows[j].Score
	})
	return rows
}
