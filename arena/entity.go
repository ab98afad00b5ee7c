package arena

import "time"

// TrailDecay is the life a trail particle loses per step.
const TrailDecay = 0.01

// Particle is one point of the trail a powered circle leaves behind.
type Particle struct {
	X, Y float64
	Life float64 // in (0, 1]
}

// Entity is a circle in the arena
type Entity struct {
	ID           int
	X, Y         float64
	VX, VY       float64
	Radius       float64
	Color        string
	HasPowerup   bool
	Score        int
	Alive        bool
	EliminatedBy int // killer ID, 0 while alive
	Trail        []Particle

	SpawnedAt    time.Time
	EliminatedAt time.Time
}

// Advance moves the entity one step and bounces it off the arena walls.
func (e *Entity) Advance(width, height float64) {
	e.X += e.VX
	e.Y += e.VY

	if e.X-e.Radius <= 0 || e.X+e.Radius >= width {
		e.VX = -e.VX
		e.X = Clamp(e.X, e.Radius, width-e.Radius)
	}
	if e.Y-e.Radius <= 0 || e.Y+e.Radius >= height {
		e.VY = -e.VY
		e.Y = Clamp(e.Y, e.Radius, height-e.Radius)
	}

	if !e.HasPowerup {
		e.Trail = nil
		return
	}
	e.Trail = append(e.Trail, Particle{X: e.X, Y: e.Y, Life: 1.0})
	kept := e.Trail[:0]
	for _, p := range e.Trail {
		p.Life -= TrailDecay
		if p.Life > 0 {
			kept = append(kept, p)
		}
	}
	e.Trail = kept
}

// losePowerup drops the powerup and its trail at once.
func (e *Entity) losePowerup() {
	e.HasPowerup = false
	e.Trail = nil
}

// eliminate marks the entity dead, credited to killerID.
func (e *Entity) eliminate(killerID int, at time.Time) {
	e.Alive = false
	e.EliminatedBy = killerID
	e.EliminatedAt = at
	e.losePowerup()
}

// Snapshot returns a copy that shares no memory with the live entity.
func (e *Entity) Snapshot() Entity {
	s := *e
	if e.Trail != nil {
		s.Trail = append([]Particle(nil), e.Trail...)
	}
	return s
}
