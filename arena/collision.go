package arena

import "math"

// CheckCollision reports whether two circles overlap. Exactly concentric
// circles are not a collision, since they have no contact angle.
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	d := Distance(x1, y1, x2, y2)
	return d > 0 && d < r1+r2
}

// ResolveContact bounces two overlapping circles apart. Both leave the
// contact at the given speed along the line between their centers, a away
// from b, and are pushed apart by half the overlap plus epsilon each.
// It returns false and touches nothing when the circles do not overlap.
func ResolveContact(a, b *Entity, speed, epsilon float64) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := math.Sqrt(dx*dx + dy*dy)
	minDist := a.Radius + b.Radius
	if dist <= 0 || dist >= minDist {
		return false
	}

	angle := math.Atan2(dy, dx)
	cos, sin := math.Cos(angle), math.Sin(angle)

	a.VX = -cos * speed
	a.VY = -sin * speed
	b.VX = cos * speed
	b.VY = sin * speed

	push := (minDist-dist)/2 + epsilon
	a.X -= cos * push
	a.Y -= sin * push
	b.X += cos * push
	b.Y += sin * push
	return true
}

// DetectPickup grants the powerup to e when it touches p. The caller
// removes the token.
func DetectPickup(e *Entity, p *Powerup) bool {
	if !CheckCollision(e.X, e.Y, e.Radius, p.X, p.Y, p.Radius) {
		return false
	}
	e.HasPowerup = true
	return true
}
