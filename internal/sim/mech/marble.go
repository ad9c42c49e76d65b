package mech

import "github.com/jakecoffman/cp"

type MarbleParams struct {
	Radius     float64
	Mass       float64
	Elasticity float64
	Friction   float64
}

// Marble is a plain dynamic circle. Marbles are never destroyed; they come to
// rest on the floor or inside mechanisms and stay in the space for the rest
// of the run.
type Marble struct {
	body *cp.Body
}

// SpawnMarble drops a marble at rest at the given position; gravity and
// collisions take over immediately.
func SpawnMarble(space *cp.Space, pos cp.Vector, p MarbleParams) *Marble {
	body := space.AddBody(cp.NewBody(p.Mass, cp.MomentForCircle(p.Mass, 0, p.Radius, cp.Vector{})))
	body.SetPosition(pos)

	shape := space.AddShape(cp.NewCircle(body, p.Radius, cp.Vector{}))
	shape.SetElasticity(p.Elasticity)
	shape.SetFriction(p.Friction)

	return &Marble{body: body}
}

func (m *Marble) Position() cp.Vector { return m.body.Position() }

func (m *Marble) Velocity() cp.Vector { return m.body.Velocity() }
