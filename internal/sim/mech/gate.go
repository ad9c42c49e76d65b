package mech

import "github.com/jakecoffman/cp"

type GateParams struct {
	Closed     cp.Vector
	Open       cp.Vector
	HalfLength float64
	Thickness  float64
	Elasticity float64
	Friction   float64
	OpenTicks  int
}

// Gate is the kinematic launch actuator. It has exactly two positions:
// parked at Closed it blocks the tube, shifted to Open it lets the marble
// column drop. A launch re-arms the countdown if the gate is already open;
// there is no queue.
type Gate struct {
	body      *cp.Body
	closed    cp.Vector
	open      cp.Vector
	openTicks int
	timer     int
}

func NewGate(space *cp.Space, p GateParams) *Gate {
	body := space.AddBody(cp.NewKinematicBody())
	body.SetPosition(p.Closed)

	shape := space.AddShape(cp.NewSegment(body,
		cp.Vector{X: -p.HalfLength}, cp.Vector{X: p.HalfLength}, p.Thickness))
	shape.SetElasticity(p.Elasticity)
	shape.SetFriction(p.Friction)

	return &Gate{
		body:      body,
		closed:    p.Closed,
		open:      p.Open,
		openTicks: p.OpenTicks,
	}
}

// Launch shifts the gate to its open position and starts (or restarts) the
// countdown.
func (g *Gate) Launch() {
	g.body.SetPosition(g.open)
	g.timer = g.openTicks
}

// Tick advances the countdown by one simulation step. The gate snaps back to
// its closed position exactly when the countdown reaches zero.
func (g *Gate) Tick() {
	if g.timer <= 0 {
		return
	}
	g.timer--
	if g.timer == 0 {
		g.body.SetPosition(g.closed)
	}
}

func (g *Gate) IsOpen() bool { return g.timer > 0 }

func (g *Gate) Timer() int { return g.timer }

func (g *Gate) Position() cp.Vector { return g.body.Position() }
