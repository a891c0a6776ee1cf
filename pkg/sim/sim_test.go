package sim

import (
	"context"
	"math"
	"testing"
)

func step(t *testing.T, j *Joint, torque float64, steps int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < steps; i++ {
		if err := j.Apply(ctx, torque); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
}

func observe(t *testing.T, j *Joint) (pos, vel float64) {
	t.Helper()
	obs, err := j.Observe(context.Background())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	return obs.Position, obs.Velocity
}

func TestJoint_StictionHoldsSmallTorques(t *testing.T) {
	p := DefaultParams()
	p.StartPosition = 0
	j := New(p)

	step(t, j, p.StictionTorque*0.9, 1000)

	pos, vel := observe(t, j)
	if pos != 0 || vel != 0 {
		t.Errorf("joint moved under stiction torque: pos=%g vel=%g", pos, vel)
	}
}

func TestJoint_MovesAboveStiction(t *testing.T) {
	p := DefaultParams()
	p.StartPosition = 0
	j := New(p)

	step(t, j, p.StictionTorque*3, 1000)

	pos, _ := observe(t, j)
	if pos <= 0.01 {
		t.Errorf("joint did not move under %f Nm: pos=%g", p.StictionTorque*3, pos)
	}
}

func TestJoint_EndstopLimitsTravel(t *testing.T) {
	p := DefaultParams()
	p.StartPosition = 0
	j := New(p)

	// Push hard against the positive end stop for a long time.
	step(t, j, 1.0, 5000)

	pos, vel := observe(t, j)
	if pos > p.EndstopPosition+0.05 {
		t.Errorf("joint passed the end stop: pos=%g, end stop at %g", pos, p.EndstopPosition)
	}
	if math.Abs(vel) > 0.01 {
		t.Errorf("joint still moving against the end stop: vel=%g", vel)
	}
}

func TestJoint_ComesToRestWithoutDrive(t *testing.T) {
	p := DefaultParams()
	p.StartPosition = 0
	j := New(p)
	j.SetState(0, 5)

	step(t, j, 0, 5000)

	_, vel := observe(t, j)
	if vel != 0 {
		t.Errorf("joint still moving after coast-down: vel=%g", vel)
	}
}

func TestJoint_TorqueSaturation(t *testing.T) {
	p := DefaultParams()
	p.StartPosition = 0
	p.EndstopPosition = 0
	j := New(p)

	step(t, j, 100, 1)

	obs, err := j.Observe(context.Background())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if obs.Torque != p.MaxTorque {
		t.Errorf("reported torque = %g, want clamp at %g", obs.Torque, p.MaxTorque)
	}
}

func TestJoint_SymmetricEndstops(t *testing.T) {
	p := DefaultParams()
	p.StartPosition = 0
	j := New(p)

	step(t, j, 0.3, 5000)
	posUp, _ := observe(t, j)

	step(t, j, -0.3, 8000)
	posDown, _ := observe(t, j)

	center := (posUp + posDown) / 2
	if math.Abs(center) > 0.05 {
		t.Errorf("end stops are not symmetric: up=%g down=%g center=%g", posUp, posDown, center)
	}
}
