package arena

import (
	"math"
	"time"
)

// Breakpoints for radius scaling, in display pixels.
const (
	BreakpointMobile = 480.0
	BreakpointTablet = 1200.0
)

// Per-device radius scale, as a fraction of the display width.
const (
	circleScaleMobile  = 0.055
	circleScaleTablet  = 0.045
	circleScaleDesktop = 0.035

	powerupScaleMobile  = 0.033
	powerupScaleTablet  = 0.027
	powerupScaleDesktop = 0.021
)

// Radius bounds
const (
	MinCircleRadius  = 20.0
	MaxCircleRadius  = 70.0
	MinPowerupRadius = 8.0
	MaxPowerupRadius = 25.0
)

// DefaultPalette is the set of colors a circle may be given.
var DefaultPalette = []string{"#e94560", "#00d4ff", "#f39c12", "#9b59b6", "#2ecc71", "#e67e22", "#1abc9c"}

// Config holds the tuning of one arena. It is copied into the simulation
// at construction and never mutated afterwards.
type Config struct {
	Width         float64  `json:"width"`
	Height        float64  `json:"height"`
	Speed         float64  `json:"speed"` // units per step, restored after every contact
	MaxCircles    int      `json:"max_circles"`
	MaxPowerups   int      `json:"max_powerups"`
	SpawnMinMs    int      `json:"spawn_min_ms"`
	SpawnMaxMs    int      `json:"spawn_max_ms"`
	CircleRadius  float64  `json:"circle_radius"`
	PowerupRadius float64  `json:"powerup_radius"`
	Separation    float64  `json:"separation"` // extra push beyond exact separation
	Palette       []string `json:"palette"`
}

// DefaultConfig returns the desktop tuning.
func DefaultConfig() Config {
	circle, powerup := RadiiForWidth(BreakpointTablet)
	return Config{
		Width:         1200,
		Height:        720,
		Speed:         3,
		MaxCircles:    5,
		MaxPowerups:   5,
		SpawnMinMs:    4000,
		SpawnMaxMs:    9000,
		CircleRadius:  circle,
		PowerupRadius: powerup,
		Separation:    2,
		Palette:       append([]string(nil), DefaultPalette...),
	}
}

// MinInterval returns the lower bound of the powerup spawn interval.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.SpawnMinMs) * time.Millisecond
}

// MaxInterval returns the upper bound of the powerup spawn interval.
func (c Config) MaxInterval() time.Duration {
	return time.Duration(c.SpawnMaxMs) * time.Millisecond
}

// RadiiForWidth returns the circle and powerup radii for a display of the
// given width, using the mobile/tablet/desktop breakpoints.
func RadiiForWidth(displayWidth float64) (circle, powerup float64) {
	var cs, ps float64
	switch {
	case displayWidth < BreakpointMobile:
		cs, ps = circleScaleMobile, powerupScaleMobile
	case displayWidth < BreakpointTablet:
		cs, ps = circleScaleTablet, powerupScaleTablet
	default:
		cs, ps = circleScaleDesktop, powerupScaleDesktop
	}
	circle = Clamp(displayWidth*cs, MinCircleRadius, MaxCircleRadius)
	powerup = Clamp(displayWidth*ps, MinPowerupRadius, MaxPowerupRadius)
	return circle, powerup
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func clampFloat(v, minV, maxV float64) float64 {
	if math.IsNaN(v) {
		return minV
	}
	return Clamp(v, minV, maxV)
}

// ClampConfig enforces hard safety bounds on a config, typically one decoded
// from a user-supplied tuning file. It mutates cfg in place.
func ClampConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Speed = clampFloat(cfg.Speed, 0.5, 20)
	cfg.MaxCircles = clampInt(cfg.MaxCircles, 1, 50)
	cfg.MaxPowerups = clampInt(cfg.MaxPowerups, 1, 50)
	cfg.SpawnMinMs = clampInt(cfg.SpawnMinMs, 100, 60000)
	cfg.SpawnMaxMs = clampInt(cfg.SpawnMaxMs, cfg.SpawnMinMs, 120000)
	cfg.CircleRadius = clampFloat(cfg.CircleRadius, MinCircleRadius, MaxCircleRadius)
	cfg.PowerupRadius = clampFloat(cfg.PowerupRadius, MinPowerupRadius, MaxPowerupRadius)
	cfg.Separation = clampFloat(cfg.Separation, 0, 10)

	// the arena must fit at least one circle on each axis
	cfg.Width = clampFloat(cfg.Width, 2*cfg.CircleRadius+1, 10000)
	cfg.Height = clampFloat(cfg.Height, 2*cfg.CircleRadius+1, 10000)

	if len(cfg.Palette) == 0 {
		cfg.Palette = append([]string(nil), DefaultPalette...)
	}
}
