package arena

import (
	"math/rand"
	"time"
)

// Rand is the source of uniform randomness used for spawn positions,
// headings, colors and spawn intervals. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

// Clock supplies the current time and one-shot timers. Drivers that
// serialize simulation access wrap the callback with their own lock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewRand returns a Rand seeded from the current time.
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
