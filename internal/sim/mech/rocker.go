// Package mech builds the mechanical parts of the marble counter on top of
// Chipmunk2D: static boundaries, the launch gate, the bistable rockers that
// hold the bits, the carry funnels between them, and the marbles themselves.
// The package only defines bodies, shapes and joints; all motion is left to
// the space. Coordinates are screen-style (y grows downward).
package mech

import (
	"math"

	"github.com/jakecoffman/cp"
)

type RockerParams struct {
	Mass         float64
	CrossbarHalf float64
	BarHalfThick float64
	TailLength   float64
	TipHalfWidth float64
	TipApex      float64
	FilletReach  float64
	COGOffsetY   float64
	LimitDeg     float64
	Elasticity   float64
	Friction     float64
}

// Rocker is one bit of the counter: a rigid hammer-shaped compound body on a
// fixed pivot with a hard rotary limit. Its center of gravity sits along the
// tail, away from the pivot, so under gravity the only stable rest angles are
// the two limits. A marble landing on the raised half of the crossbar tips it
// over to the other limit; nothing in the interface commands a flip.
type Rocker struct {
	body  *cp.Body
	pivot cp.Vector
	limit float64 // radians
}

// NewRocker mounts a rocker at the given pivot, resting at the negative
// limit (reads as bit 0). All later state changes are emergent from physics.
func NewRocker(space *cp.Space, pivot cp.Vector, p RockerParams) *Rocker {
	crossbar := []cp.Vector{
		{X: -p.CrossbarHalf, Y: -p.BarHalfThick},
		{X: p.CrossbarHalf, Y: -p.BarHalfThick},
		{X: p.CrossbarHalf, Y: p.BarHalfThick},
		{X: -p.CrossbarHalf, Y: p.BarHalfThick},
	}
	tail := []cp.Vector{
		{X: -p.BarHalfThick, Y: 0},
		{X: p.BarHalfThick, Y: 0},
		{X: p.BarHalfThick, Y: -p.TailLength},
		{X: -p.BarHalfThick, Y: -p.TailLength},
	}
	tip := []cp.Vector{
		{X: -p.TipHalfWidth, Y: -p.TailLength},
		{X: p.TipHalfWidth, Y: -p.TailLength},
		{X: 0, Y: -p.TipApex},
	}
	// Fillets close the concave crossbar/tail corners so a marble cannot
	// lodge there; they carry no mechanical function.
	filletL := []cp.Vector{
		{X: -p.BarHalfThick, Y: -p.BarHalfThick},
		{X: -p.FilletReach, Y: -p.BarHalfThick},
		{X: -p.BarHalfThick, Y: -p.FilletReach},
	}
	filletR := []cp.Vector{
		{X: p.BarHalfThick, Y: -p.BarHalfThick},
		{X: p.FilletReach, Y: -p.BarHalfThick},
		{X: p.BarHalfThick, Y: -p.FilletReach},
	}

	// The moment is taken about the pivot-frame origin, which is also the
	// value the reference geometry was validated with.
	moment := cp.MomentForPoly(p.Mass, len(crossbar), crossbar, cp.Vector{}, 0) +
		cp.MomentForPoly(p.Mass, len(tail), tail, cp.Vector{}, 0) +
		cp.MomentForPoly(p.Mass, len(tip), tip, cp.Vector{}, 0)

	// cp derives the center of gravity from the body frame, so the body frame
	// must sit at the COG: shift every vertex by -cog and hang the body off
	// the pivot with a -cog anchor. All vertex constants above stay in the
	// pivot frame the reference geometry is written in.
	cog := cp.Vector{X: 0, Y: p.COGOffsetY}
	limit := Radians(p.LimitDeg)

	body := space.AddBody(cp.NewBody(p.Mass, moment))
	body.SetAngle(-limit)
	body.SetPosition(pivot.Add(cog.Rotate(cp.ForAngle(-limit))))

	for _, verts := range [][]cp.Vector{crossbar, tail, tip, filletL, filletR} {
		shifted := make([]cp.Vector, len(verts))
		for i, v := range verts {
			shifted[i] = v.Sub(cog)
		}
		shape := space.AddShape(cp.NewPolyShape(body, len(shifted), shifted, cp.NewTransformIdentity(), 0))
		shape.SetElasticity(p.Elasticity)
		shape.SetFriction(p.Friction)
	}

	space.AddConstraint(cp.NewPivotJoint2(space.StaticBody, body, pivot, cog.Neg()))
	space.AddConstraint(cp.NewRotaryLimitJoint(space.StaticBody, body, -limit, limit))

	return &Rocker{body: body, pivot: pivot, limit: limit}
}

// Angle reports the engine-computed orientation in radians.
func (r *Rocker) Angle() float64 { return r.body.Angle() }

func (r *Rocker) AngleDeg() float64 { return Degrees(r.body.Angle()) }

// Bit classifies the current orientation with the given readout threshold.
func (r *Rocker) Bit(thresholdDeg float64) Bit { return Classify(r.body.Angle(), thresholdDeg) }

func (r *Rocker) Pivot() cp.Vector { return r.pivot }

// LimitDeg reports the configured rotation bound in degrees.
func (r *Rocker) LimitDeg() float64 { return Degrees(r.limit) }

// Nudge applies an angular velocity to the rocker. Test hook only; normal
// operation never commands the body.
func (r *Rocker) Nudge(w float64) { r.body.SetAngularVelocity(w) }

func Radians(deg float64) float64 { return deg * math.Pi / 180 }

func Degrees(rad float64) float64 { return rad * 180 / math.Pi }
