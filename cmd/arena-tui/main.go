package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"circle-arena/arena"

	"github.com/gdamore/tcell/v2"
)

// Terminal cells are roughly twice as tall as they are wide.
const (
	unitsPerCol = 8.0
	unitsPerRow = 16.0
	statusRows  = 1
)

// lockedClock runs scheduler callbacks under the driver lock
type lockedClock struct {
	mu *sync.Mutex
}

func (c lockedClock) Now() time.Time { return time.Now() }

func (c lockedClock) AfterFunc(d time.Duration, f func()) arena.Timer {
	return time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		f()
	})
}

type App struct {
	mu     sync.Mutex
	screen tcell.Screen
	sim    *arena.Simulation
	sound  *Sound

	cols, rows int
	message    string
	messageAt  time.Time
}

// NewApp sizes the arena to an initialized screen
func NewApp(screen tcell.Screen, cfg arena.Config, sound *Sound) *App {
	a := &App{screen: screen, sound: sound}
	a.cols, a.rows = screen.Size()
	cfg.Width, cfg.Height = a.arenaSize()
	arena.ClampConfig(&cfg)

	a.sim = arena.New(cfg, nil, lockedClock{mu: &a.mu})
	a.sim.SetRadii(arena.RadiiForWidth(cfg.Width))
	a.sim.SetObserver(a.onEvent)
	return a
}

func (a *App) arenaSize() (float64, float64) {
	rows := a.rows - statusRows
	if rows < 1 {
		rows = 1
	}
	return float64(a.cols) * unitsPerCol, float64(rows) * unitsPerRow
}

// onEvent runs under a.mu
func (a *App) onEvent(ev arena.Event) {
	switch ev.Kind {
	case arena.EventEliminated:
		a.flash(fmt.Sprintf("#%d eliminated by #%d", ev.EntityID, ev.OtherID))
		a.sound.Hit()
	case arena.EventPickup:
		a.sound.Pickup()
	case arena.EventCancelled:
		a.flash(fmt.Sprintf("#%d and #%d clash", ev.EntityID, ev.OtherID))
	case arena.EventGameOver:
		a.flash(fmt.Sprintf("#%d wins!", ev.EntityID))
		a.sound.Win()
	}
}

func (a *App) flash(msg string) {
	a.message = msg
	a.messageAt = time.Now()
}

func (a *App) handleResize() {
	a.screen.Sync()
	cols, rows := a.screen.Size()
	if cols == a.cols && rows == a.rows {
		return
	}
	a.cols, a.rows = cols, rows
	w, h := a.arenaSize()
	a.sim.Resize(w, h)
	a.sim.SetRadii(arena.RadiiForWidth(w))
}

// handleInput returns false when the app should quit
func (a *App) handleInput(ev tcell.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			a.sim.Toggle()
		case 'n':
			if a.sim.SpawnAndStart() == 0 {
				a.flash("arena is full")
			}
		case 'p':
			if a.sim.PowerupCapacityReached() {
				a.flash("too many powerups")
			}
			a.sim.SpawnPowerup()
		case 'r':
			a.sim.Reset()
			a.flash("reset")
		}
	case *tcell.EventResize:
		a.handleResize()
	}
	return true
}

func (a *App) cell(x, y float64) (int, int) {
	return int(x / unitsPerCol), int(y / unitsPerRow)
}

func styleFor(color string) tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.GetColor(color))
}

func (a *App) drawText(x, y int, s string, style tcell.Style) {
	for i, r := range s {
		a.screen.SetContent(x+i, y, r, nil, style)
	}
}

// draw runs under a.mu
func (a *App) draw() {
	a.screen.Clear()

	for _, e := range a.sim.Entities() {
		style := styleFor(e.Color)
		for _, p := range e.Trail {
			cx, cy := a.cell(p.X, p.Y)
			ch := '·'
			if p.Life > 0.5 {
				ch = '•'
			}
			a.screen.SetContent(cx, cy, ch, nil, style.Dim(p.Life < 0.3))
		}
	}

	for _, p := range a.sim.Powerups() {
		cx, cy := a.cell(p.X, p.Y)
		a.screen.SetContent(cx, cy, '◆', nil, tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true))
	}

	for _, e := range a.sim.Entities() {
		style := styleFor(e.Color)
		if e.HasPowerup {
			style = style.Bold(true).Reverse(true)
		}
		x0, y0 := a.cell(e.X-e.Radius, e.Y-e.Radius)
		x1, y1 := a.cell(e.X+e.Radius, e.Y+e.Radius)
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				px := (float64(cx) + 0.5) * unitsPerCol
				py := (float64(cy) + 0.5) * unitsPerRow
				if arena.Distance(px, py, e.X, e.Y) <= e.Radius {
					a.screen.SetContent(cx, cy, '█', nil, style)
				}
			}
		}
	}

	a.drawBoard()
	a.drawStatus()
	a.screen.Show()
}

func (a *App) drawBoard() {
	for i, s := range a.sim.Leaderboard() {
		if i >= a.rows-statusRows {
			break
		}
		mark := ' '
		switch {
		case s.Winner:
			mark = '★'
		case !s.Alive:
			mark = '✗'
		}
		line := fmt.Sprintf("%c #%-2d %3d", mark, s.ID, s.Score)
		a.drawText(a.cols-len([]rune(line))-1, i, line, styleFor(s.Color))
	}
}

func (a *App) drawStatus() {
	st := a.sim.Status()
	state := "running"
	switch {
	case st.GameOver:
		state = "game over"
	case st.Paused:
		state = "paused"
	}
	line := fmt.Sprintf(" %s | circles %d/%d | powerups %d | [n]ew [p]owerup [space] start/pause [r]eset [q]uit",
		state, st.Active, st.Total, st.Powerups)
	if a.message != "" && time.Since(a.messageAt) < 3*time.Second {
		line += " | " + a.message
	}
	a.drawText(0, a.rows-1, line, tcell.StyleDefault.Reverse(true))
}

func (a *App) run(tickRate int) {
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- a.screen.PollEvent()
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if ev == nil || !a.handleInput(ev) {
				return
			}
		case <-ticker.C:
			a.mu.Lock()
			if a.sim.Running() {
				a.sim.Step()
			}
			a.draw()
			a.mu.Unlock()
		}
	}
}

func (a *App) cleanup() {
	a.mu.Lock()
	a.sim.Pause()
	a.mu.Unlock()
	a.screen.Fini()
	a.sound.Close()
}

func main() {
	circles := flag.Int("circles", 5, "Maximum circles alive at once")
	powerups := flag.Int("powerups", 5, "Maximum powerups waiting at once")
	speed := flag.Float64("speed", 3, "Circle speed in arena units per tick")
	tickRate := flag.Int("tick", 30, "Simulation ticks per second")
	logPath := flag.String("log", "", "Write logs to this file (the terminal is taken by the arena)")
	mute := flag.Bool("mute", false, "Disable sound")
	flag.Parse()

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}
	if *tickRate <= 0 || *tickRate > 240 {
		*tickRate = 30
	}

	cfg := arena.DefaultConfig()
	cfg.MaxCircles = *circles
	cfg.MaxPowerups = *powerups
	cfg.Speed = *speed

	screen, err := tcell.NewScreen()
	if err == nil {
		err = screen.Init()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	app := NewApp(screen, cfg, NewSound(!*mute))
	defer app.cleanup()

	log.Printf("arena %dx%d cells, %d circles max, %d ticks/s", app.cols, app.rows, cfg.MaxCircles, *tickRate)
	app.run(*tickRate)
}
