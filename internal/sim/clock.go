package sim

import "time"

// Speed multiplier bounds. The UI offers discrete steps; anything inside the
// bounds is accepted.
const (
	MinSpeed = 0.25
	MaxSpeed = 100
)

// VirtualClock is the simulation's time source: simulated time advances by a
// fixed tick quantum scaled by the speed multiplier, never by wall clock.
type VirtualClock struct {
	now         time.Time
	tickMinutes float64
	speed       float64
}

// NewVirtualClock creates a clock at start advancing tickMinutes of simulated
// time per tick at 1x speed.
func NewVirtualClock(start time.Time, tickMinutes float64) *VirtualClock {
	if tickMinutes <= 0 {
		tickMinutes = 1
	}
	return &VirtualClock{now: start, tickMinutes: tickMinutes, speed: 1}
}

// Now returns the current simulated time.
func (c *VirtualClock) Now() time.Time { return c.now }

// Speed returns the current multiplier.
func (c *VirtualClock) Speed() float64 { return c.speed }

// SetSpeed changes the multiplier, clamped to [MinSpeed, MaxSpeed].
func (c *VirtualClock) SetSpeed(speed float64) {
	if speed < MinSpeed {
		speed = MinSpeed
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	c.speed = speed
}

// Advance moves the clock one tick forward and returns the simulated elapsed
// duration.
func (c *VirtualClock) Advance() time.Duration {
	elapsed := time.Duration(c.tickMinutes * c.speed * float64(time.Minute))
	c.now = c.now.Add(elapsed)
	return elapsed
}
