package mech

import "github.com/jakecoffman/cp"

type BoundaryParams struct {
	Width          float64
	Height         float64
	FloorThickness float64
	FloorElastic   float64
	FloorFriction  float64

	TubeX         float64 // centerline
	TubeWidth     float64
	TubeHeight    float64
	WallThickness float64
	TubeElastic   float64
	TubeFriction  float64
}

// Boundary is the opaque handle returned by BuildBoundaries. Downstream
// placement only needs the tube centerline.
type Boundary struct {
	TubeX float64
}

// BuildBoundaries registers the floor and the marble supply tube with the
// space. The tube gap is slightly wider than one marble so marbles fall
// freely but cannot pass each other side by side.
func BuildBoundaries(space *cp.Space, p BoundaryParams) Boundary {
	floor := space.AddShape(cp.NewSegment(space.StaticBody,
		cp.Vector{X: 0, Y: p.Height - p.FloorThickness},
		cp.Vector{X: p.Width, Y: p.Height - p.FloorThickness},
		p.FloorThickness))
	floor.SetElasticity(p.FloorElastic)
	floor.SetFriction(p.FloorFriction)

	half := p.TubeWidth / 2
	for _, x := range []float64{p.TubeX - half, p.TubeX + half} {
		wall := space.AddShape(cp.NewSegment(space.StaticBody,
			cp.Vector{X: x, Y: 0},
			cp.Vector{X: x, Y: p.TubeHeight},
			p.WallThickness))
		wall.SetElasticity(p.TubeElastic)
		wall.SetFriction(p.TubeFriction)
	}

	return Boundary{TubeX: p.TubeX}
}
