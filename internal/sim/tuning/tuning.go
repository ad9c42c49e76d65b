package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// All coordinates are screen-style: y grows downward, gravity pulls toward +y.
// Lengths are in pixels, angles in degrees, durations in ticks.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int     `yaml:"tick_rate_hz"`
	Bits       int     `yaml:"bits"`
	GravityY   float64 `yaml:"gravity_y"`

	World   World   `yaml:"world"`
	Tube    Tube    `yaml:"tube"`
	Gate    Gate    `yaml:"gate"`
	Rocker  Rocker  `yaml:"rocker"`
	Funnel  Funnel  `yaml:"funnel"`
	Marble  Marble  `yaml:"marble"`
	Readout Readout `yaml:"readout"`
	Layout  Layout  `yaml:"layout"`
}

type World struct {
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	FloorThickness float64 `yaml:"floor_thickness"`
	FloorElastic   float64 `yaml:"floor_elasticity"`
	FloorFriction  float64 `yaml:"floor_friction"`
}

type Tube struct {
	XOffset       float64 `yaml:"x_offset"` // centerline, measured from the right edge
	Width         float64 `yaml:"width"`
	Height        float64 `yaml:"height"`
	WallThickness float64 `yaml:"wall_thickness"`
	Elasticity    float64 `yaml:"elasticity"`
	Friction      float64 `yaml:"friction"`
}

type Gate struct {
	ClosedY    float64 `yaml:"closed_y"`
	OpenShiftX float64 `yaml:"open_shift_x"`
	HalfLength float64 `yaml:"half_length"`
	Thickness  float64 `yaml:"thickness"`
	Elasticity float64 `yaml:"elasticity"`
	Friction   float64 `yaml:"friction"`
	OpenTicks  int     `yaml:"open_ticks"`
}

type Rocker struct {
	Mass          float64 `yaml:"mass"`
	CrossbarHalf  float64 `yaml:"crossbar_half"`
	BarHalfThick  float64 `yaml:"bar_half_thick"`
	TailLength    float64 `yaml:"tail_length"`
	TipHalfWidth  float64 `yaml:"tip_half_width"`
	TipApex       float64 `yaml:"tip_apex"`
	FilletReach   float64 `yaml:"fillet_reach"`
	COGOffsetY    float64 `yaml:"cog_offset_y"`
	AngleLimitDeg float64 `yaml:"angle_limit_deg"`
	Elasticity    float64 `yaml:"elasticity"`
	Friction      float64 `yaml:"friction"`
}

type Funnel struct {
	MouthWidth float64 `yaml:"mouth_width"`
	Height     float64 `yaml:"height"`
	ThroatGap  float64 `yaml:"throat_gap"`
	RightExt   float64 `yaml:"right_ext"`
	RightRise  float64 `yaml:"right_rise"`
	DropAbove  float64 `yaml:"drop_above"` // mouth height above the target pivot
	Thickness  float64 `yaml:"thickness"`
	Elasticity float64 `yaml:"elasticity"`
	Friction   float64 `yaml:"friction"`
}

type Marble struct {
	Radius     float64 `yaml:"radius"`
	Mass       float64 `yaml:"mass"`
	Elasticity float64 `yaml:"elasticity"`
	Friction   float64 `yaml:"friction"`
	Supply     int     `yaml:"supply"`
	SpacingY   float64 `yaml:"spacing_y"`
	TopY       float64 `yaml:"top_y"`
}

type Readout struct {
	ThresholdDeg float64 `yaml:"threshold_deg"`
}

// Layout places bit 0 relative to the right edge and walks the cascade
// diagonally down-left so an overflow marble can fall into the next funnel.
type Layout struct {
	Bit0FromRight float64 `yaml:"bit0_from_right"`
	Bit0Y         float64 `yaml:"bit0_y"`
	StepX         float64 `yaml:"step_x"`
	StepY         float64 `yaml:"step_y"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      60,
		Bits:            4,
		GravityY:        900,
		World: World{
			Width:          1000,
			Height:         1000,
			FloorThickness: 10,
			FloorElastic:   0.5,
			FloorFriction:  0.5,
		},
		Tube: Tube{
			XOffset:       200,
			Width:         32,
			Height:        100,
			WallThickness: 4,
			Elasticity:    0.5,
			Friction:      0.2,
		},
		Gate: Gate{
			ClosedY:    103,
			OpenShiftX: 40,
			HalfLength: 18,
			Thickness:  5,
			Elasticity: 0.5,
			Friction:   0.5,
			OpenTicks:  15,
		},
		Rocker: Rocker{
			Mass:          2.0,
			CrossbarHalf:  50,
			BarHalfThick:  3,
			TailLength:    65,
			TipHalfWidth:  15,
			TipApex:       85,
			FilletReach:   20,
			COGOffsetY:    -20,
			AngleLimitDeg: 35,
			Elasticity:    0.1,
			Friction:      0.3,
		},
		Funnel: Funnel{
			MouthWidth: 195,
			Height:     50,
			ThroatGap:  40,
			RightExt:   100,
			RightRise:  60,
			DropAbove:  140,
			Thickness:  4,
			Elasticity: 0.2,
			Friction:   0.1,
		},
		Marble: Marble{
			Radius:     12,
			Mass:       12.0,
			Elasticity: 0.1,
			Friction:   0.5,
			Supply:     10,
			SpacingY:   26,
			TopY:       80,
		},
		Readout: Readout{ThresholdDeg: 5},
		Layout: Layout{
			Bit0FromRight: 180,
			Bit0Y:         220,
			StepX:         -250,
			StepY:         230,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
