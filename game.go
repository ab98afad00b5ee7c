package main

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"circle-arena/arena"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	DefaultTickRate = 60 // physics ticks per second
	BroadcastRate   = 30 // state broadcasts per second
)

// Broadcaster is a viewer of one game
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Game runs one arena for a session and fans its state out to viewers
type Game struct {
	mu      sync.Mutex
	sim     *arena.Simulation
	viewers map[Broadcaster]bool
	tick    uint64

	tickRate       int
	broadcastEvery uint64

	stop     chan struct{}
	stopOnce sync.Once
	stopped  bool
	writes   sync.WaitGroup // in-flight match writes

	sessionID string
	db        *DB
	events    *EventLog
	startedAt time.Time
	recorded  bool
}

// lockedClock runs timer callbacks under the game lock so the scheduler
// never races the tick loop.
type lockedClock struct {
	g *Game
}

func (c lockedClock) Now() time.Time { return time.Now() }

func (c lockedClock) AfterFunc(d time.Duration, f func()) arena.Timer {
	return time.AfterFunc(d, func() {
		c.g.mu.Lock()
		defer c.g.mu.Unlock()
		f()
	})
}

// NewGame creates a paused game. db and events may be nil.
func NewGame(sessionID string, opts Options, db *DB, events *EventLog) *Game {
	rate := opts.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	every := rate / BroadcastRate
	if every < 1 {
		every = 1
	}
	g := &Game{
		viewers:        make(map[Broadcaster]bool),
		tickRate:       rate,
		broadcastEvery: uint64(every),
		stop:           make(chan struct{}),
		sessionID:      sessionID,
		db:             db,
		events:         events,
	}
	g.sim = arena.New(opts.Arena, nil, lockedClock{g: g})
	g.sim.SetObserver(g.onEvent)
	return g
}

// Run starts the game loop. It returns at once if the game was already
// stopped.
func (g *Game) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop and cancels pending powerup spawns. It is
// safe to call before Run and more than once.
func (g *Game) Stop() {
	g.mu.Lock()
	g.sim.Pause()
	g.stopped = true
	g.mu.Unlock()
	g.stopOnce.Do(func() { close(g.stop) })
}

// Wait blocks until pending match writes have finished
func (g *Game) Wait() {
	g.writes.Wait()
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tick++
	if g.sim.Running() {
		g.sim.Step()
	}
	if g.tick%g.broadcastEvery == 0 {
		g.broadcastState()
	}
}

// AddViewer subscribes b to state broadcasts
func (g *Game) AddViewer(b Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.viewers[b] = true
}

// RemoveViewer unsubscribes b
func (g *Game) RemoveViewer(b Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.viewers, b)
}

// ViewerCount returns the number of viewers
func (g *Game) ViewerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.viewers)
}

// Control applies a control-panel action. w and h are only read by resize.
func (g *Game) Control(action string, w, h float64) (StatusState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	wasPaused := g.sim.Paused()
	switch action {
	case ActSpawn:
		g.sim.SpawnAndStart()
	case ActPowerup:
		g.sim.SpawnPowerup()
	case ActStart:
		g.sim.Start()
	case ActPause:
		g.sim.Pause()
	case ActToggle:
		g.sim.Toggle()
	case ActReset:
		g.sim.Reset()
		g.startedAt = time.Time{}
		g.recorded = false
	case ActResize:
		if w <= 0 || h <= 0 {
			return g.statusLocked(), fmt.Errorf("invalid size %.0fx%.0f", w, h)
		}
		g.sim.Resize(w, h)
		g.sim.SetRadii(arena.RadiiForWidth(w))
	default:
		return g.statusLocked(), fmt.Errorf("unknown action %q", action)
	}

	if wasPaused && g.sim.Running() && g.startedAt.IsZero() {
		g.startedAt = time.Now()
	}
	g.broadcastState()
	return g.statusLocked(), nil
}

// Status returns the control-panel view of the arena
func (g *Game) Status() StatusState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

func (g *Game) statusLocked() StatusState {
	st := g.sim.Status()
	return StatusState{
		Active:          st.Active,
		Total:           st.Total,
		Powerups:        st.Powerups,
		Paused:          st.Paused,
		GameOver:        st.GameOver,
		CanSpawn:        st.CanSpawn,
		CanSpawnPowerup: st.CanSpawnPowerup,
	}
}

// State returns a snapshot of the arena as broadcast to viewers
func (g *Game) State() ArenaState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Game) stateLocked() ArenaState {
	w, h := g.sim.Size()
	state := ArenaState{
		Circles:  make([]CircleState, 0, g.sim.ActiveCount()),
		Powerups: make([]PowerupState, 0, g.sim.Config().MaxPowerups),
		W:        w,
		H:        h,
		Status:   g.statusLocked(),
		Tick:     g.tick,
	}
	for _, e := range g.sim.Entities() {
		cs := CircleState{
			ID:      e.ID,
			X:       e.X,
			Y:       e.Y,
			R:       e.Radius,
			Color:   e.Color,
			Powered: e.HasPowerup,
			Score:   e.Score,
		}
		for _, p := range e.Trail {
			cs.Trail = append(cs.Trail, TrailPoint{X: p.X, Y: p.Y, Life: p.Life})
		}
		state.Circles = append(state.Circles, cs)
	}
	for _, p := range g.sim.Powerups() {
		state.Powerups = append(state.Powerups, PowerupState{X: p.X, Y: p.Y, R: p.Radius})
	}
	for _, s := range g.sim.Leaderboard() {
		state.Board = append(state.Board, StandingState{
			ID:           s.ID,
			Color:        s.Color,
			Score:        s.Score,
			Alive:        s.Alive,
			EliminatedBy: s.EliminatedBy,
			Winner:       s.Winner,
		})
	}
	if w, ok := g.sim.Winner(); ok {
		state.Winner = w.ID
	}
	return state
}

// broadcastState sends the current arena state to all viewers
func (g *Game) broadcastState() {
	if len(g.viewers) == 0 {
		return
	}
	data, err := msgpack.Marshal(g.stateLocked())
	if err != nil {
		log.Printf("state marshal error: %v", err)
		return
	}
	for v := range g.viewers {
		v.SendBinary(data)
	}
}

// broadcastMsg sends a message to all viewers
func (g *Game) broadcastMsg(msg Envelope) {
	for v := range g.viewers {
		v.SendJSON(msg)
	}
}

// onEvent turns simulation events into viewer messages. It runs under g.mu.
func (g *Game) onEvent(ev arena.Event) {
	switch ev.Kind {
	case arena.EventEliminated:
		g.broadcastMsg(Envelope{T: MsgElim, Data: ElimMsg{VictimID: ev.EntityID, KillerID: ev.OtherID}})
		g.track(EvtElimination, map[string]int{"victim": ev.EntityID, "killer": ev.OtherID})
	case arena.EventPickup:
		g.broadcastMsg(Envelope{T: MsgPickup, Data: PickupMsg{ID: ev.EntityID}})
		g.track(EvtPickup, map[string]int{"circle": ev.EntityID})
	case arena.EventCancelled:
		g.broadcastMsg(Envelope{T: MsgClash, Data: ClashMsg{A: ev.EntityID, B: ev.OtherID}})
	case arena.EventGameOver:
		w, _ := g.sim.Winner()
		g.broadcastMsg(Envelope{T: MsgOver, Data: OverMsg{WinnerID: w.ID, Color: w.Color, Score: w.Score}})
		g.track(EvtGameOver, map[string]int{"winner": w.ID, "circles": g.sim.HistoryCount()})
		g.recordMatch(w)
	}
}

func (g *Game) track(evtType string, data interface{}) {
	if g.events == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	g.events.Track(evtType, g.sessionID, string(raw))
}

// recordMatch stores the finished match in the background. It runs under g.mu.
func (g *Game) recordMatch(winner arena.Entity) {
	if g.db == nil || g.recorded || g.stopped {
		return
	}
	g.recorded = true

	var duration float64
	if !g.startedAt.IsZero() {
		duration = time.Since(g.startedAt).Seconds()
	}
	rec := MatchRecord{
		SessionID:   g.sessionID,
		WinnerID:    winner.ID,
		WinnerColor: winner.Color,
		Duration:    duration,
	}
	for _, s := range g.sim.Leaderboard() {
		rec.Circles = append(rec.Circles, MatchCircleRow{
			CircleID:     s.ID,
			Color:        s.Color,
			Score:        s.Score,
			Alive:        s.Alive,
			EliminatedBy: s.EliminatedBy,
			Winner:       s.Winner,
		})
	}
	g.writes.Add(1)
	go func() {
		defer g.writes.Done()
		if _, err := g.db.RecordMatch(rec); err != nil {
			log.Printf("db: record match for %s: %v", rec.SessionID, err)
		}
	}()
}
