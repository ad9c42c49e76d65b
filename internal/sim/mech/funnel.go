package mech

import "github.com/jakecoffman/cp"

type FunnelParams struct {
	MouthWidth float64
	Height     float64
	ThroatGap  float64
	RightExt   float64
	RightRise  float64
	DropAbove  float64
	Thickness  float64
	Elasticity float64
	Friction   float64
}

// BuildFunnel places the carry chute above a downstream rocker's pivot: two
// angled walls narrowing from the mouth to the throat. The right wall is
// stretched far out and raised so it still catches a marble ejected from the
// upstream mechanism's arc; the clearances are generous on purpose and are
// validated by simulation trials, not derived.
func BuildFunnel(space *cp.Space, pivot cp.Vector, p FunnelParams) {
	x := pivot.X
	y := pivot.Y - p.DropAbove

	left := space.AddShape(cp.NewSegment(space.StaticBody,
		cp.Vector{X: x - p.MouthWidth/2, Y: y},
		cp.Vector{X: x - p.ThroatGap/2, Y: y + p.Height},
		p.Thickness))
	right := space.AddShape(cp.NewSegment(space.StaticBody,
		cp.Vector{X: x + p.MouthWidth/2 + p.RightExt, Y: y - p.RightRise},
		cp.Vector{X: x + p.ThroatGap/2, Y: y + p.Height},
		p.Thickness))

	for _, s := range []*cp.Shape{left, right} {
		s.SetElasticity(p.Elasticity)
		s.SetFriction(p.Friction)
	}
}
