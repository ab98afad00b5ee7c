package arena

// Powerup is a static pickup. The first circle to touch it may eliminate
// one unpowered opponent.
type Powerup struct {
	X, Y   float64
	Radius float64
}
