package rig

import (
	"math/rand"
	"sync/atomic"

	"github.com/jakecoffman/cp"

	"marblemech/internal/sim/mech"
	"marblemech/internal/sim/tuning"
)

type Config struct {
	ID   string
	Seed int64
	Tune tuning.Tuning
}

type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

// Rig is the single-threaded authoritative simulation of the counter. It
// owns the Chipmunk space and every mechanism in it; all state must be
// accessed only from the rig loop goroutine. HTTP handlers and tests read
// the published Metrics snapshot instead.
type Rig struct {
	cfg Config

	space    *cp.Space
	boundary mech.Boundary
	gate     *mech.Gate
	rockers  []*mech.Rocker
	marbles  []*mech.Marble
	tilting  []mech.Tilting

	tick        atomic.Uint64
	launchTotal uint64 // loop goroutine only

	launch        chan struct{}
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}

	sessions map[string]chan []byte

	// Optional trace sink (may be nil). Implemented in internal/persistence/*.
	traceLogger TraceLogger
	lastDigest  string

	metrics atomic.Value // Metrics
}

// New builds the full machine: boundaries, gate, the diagonal cascade of
// rockers with a carry funnel above each downstream bit, and the seeded
// marble column in the tube. The seed perturbs each marble's x by a
// sub-pixel offset so repeated trials decorrelate; geometry is otherwise
// deterministic.
func New(cfg Config) *Rig {
	t := cfg.Tune

	space := cp.NewSpace()
	space.SetGravity(cp.Vector{X: 0, Y: t.GravityY})

	r := &Rig{
		cfg:           cfg,
		space:         space,
		launch:        make(chan struct{}, 16),
		observerJoin:  make(chan ObserverJoinRequest, 4),
		observerLeave: make(chan string, 4),
		stop:          make(chan struct{}),
		sessions:      map[string]chan []byte{},
	}

	r.boundary = mech.BuildBoundaries(space, mech.BoundaryParams{
		Width:          t.World.Width,
		Height:         t.World.Height,
		FloorThickness: t.World.FloorThickness,
		FloorElastic:   t.World.FloorElastic,
		FloorFriction:  t.World.FloorFriction,
		TubeX:          t.World.Width - t.Tube.XOffset,
		TubeWidth:      t.Tube.Width,
		TubeHeight:     t.Tube.Height,
		WallThickness:  t.Tube.WallThickness,
		TubeElastic:    t.Tube.Elasticity,
		TubeFriction:   t.Tube.Friction,
	})

	closed := cp.Vector{X: r.boundary.TubeX, Y: t.Gate.ClosedY}
	r.gate = mech.NewGate(space, mech.GateParams{
		Closed:     closed,
		Open:       cp.Vector{X: closed.X + t.Gate.OpenShiftX, Y: closed.Y},
		HalfLength: t.Gate.HalfLength,
		Thickness:  t.Gate.Thickness,
		Elasticity: t.Gate.Elasticity,
		Friction:   t.Gate.Friction,
		OpenTicks:  t.Gate.OpenTicks,
	})

	rockerParams := mech.RockerParams{
		Mass:         t.Rocker.Mass,
		CrossbarHalf: t.Rocker.CrossbarHalf,
		BarHalfThick: t.Rocker.BarHalfThick,
		TailLength:   t.Rocker.TailLength,
		TipHalfWidth: t.Rocker.TipHalfWidth,
		TipApex:      t.Rocker.TipApex,
		FilletReach:  t.Rocker.FilletReach,
		COGOffsetY:   t.Rocker.COGOffsetY,
		LimitDeg:     t.Rocker.AngleLimitDeg,
		Elasticity:   t.Rocker.Elasticity,
		Friction:     t.Rocker.Friction,
	}
	funnelParams := mech.FunnelParams{
		MouthWidth: t.Funnel.MouthWidth,
		Height:     t.Funnel.Height,
		ThroatGap:  t.Funnel.ThroatGap,
		RightExt:   t.Funnel.RightExt,
		RightRise:  t.Funnel.RightRise,
		DropAbove:  t.Funnel.DropAbove,
		Thickness:  t.Funnel.Thickness,
		Elasticity: t.Funnel.Elasticity,
		Friction:   t.Funnel.Friction,
	}
	for i := 0; i < t.Bits; i++ {
		pivot := cp.Vector{
			X: t.World.Width - t.Layout.Bit0FromRight + t.Layout.StepX*float64(i),
			Y: t.Layout.Bit0Y + t.Layout.StepY*float64(i),
		}
		rk := mech.NewRocker(space, pivot, rockerParams)
		r.rockers = append(r.rockers, rk)
		r.tilting = append(r.tilting, rk)
		if i > 0 {
			mech.BuildFunnel(space, pivot, funnelParams)
		}
	}

	marbleParams := mech.MarbleParams{
		Radius:     t.Marble.Radius,
		Mass:       t.Marble.Mass,
		Elasticity: t.Marble.Elasticity,
		Friction:   t.Marble.Friction,
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < t.Marble.Supply; i++ {
		jitter := (rng.Float64() - 0.5) * 0.8
		pos := cp.Vector{
			X: r.boundary.TubeX + jitter,
			Y: t.Marble.TopY - float64(i)*t.Marble.SpacingY,
		}
		r.marbles = append(r.marbles, mech.SpawnMarble(space, pos, marbleParams))
	}

	value, bits := mech.Decode(r.tilting, t.Readout.ThresholdDeg)
	r.publishMetrics(value, bits, 0)
	return r
}

func (r *Rig) ID() string { return r.cfg.ID }

func (r *Rig) Config() Config { return r.cfg }

func (r *Rig) TickRateHz() int { return r.cfg.Tune.TickRateHz }

func (r *Rig) Bits() int { return r.cfg.Tune.Bits }

func (r *Rig) CurrentTick() uint64 { return r.tick.Load() }

// MarbleCount is monotonically non-decreasing: marbles are seeded once and
// never removed from the space.
func (r *Rig) MarbleCount() int { return len(r.marbles) }

func (r *Rig) Launch() chan<- struct{} { return r.launch }

func (r *Rig) ObserverJoin() chan<- ObserverJoinRequest { return r.observerJoin }

func (r *Rig) ObserverLeave() chan<- string { return r.observerLeave }

func (r *Rig) SetTraceLogger(l TraceLogger) { r.traceLogger = l }
