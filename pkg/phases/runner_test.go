package phases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"jointcheck/pkg/robot"
)

// endstopModel responds to torque by moving in fixed increments until
// the joint hits one of the configured stops.  Position commands snap.
func endstopModel(lower, upper float64) func(*fakeRobot, robot.Action) {
	return func(f *fakeRobot, a robot.Action) {
		switch a.Mode {
		case robot.ModePosition:
			f.pos = math.Min(math.Max(a.Position, lower), upper)
		case robot.ModeTorque:
			f.pos += math.Copysign(0.2, a.Torque)
			f.pos = math.Min(math.Max(f.pos, lower), upper)
		}
	}
}

func TestRunner_Pass(t *testing.T) {
	f := &fakeRobot{apply: endstopModel(-2.8, 2.8)}
	r := &Runner{Robot: f}

	result, err := r.Run("")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Passed {
		t.Error("Passed = false on a clean run")
	}
	if result.FailureReason != "" {
		t.Errorf("FailureReason = %q, want empty", result.FailureReason)
	}
	if len(result.TorqueLevelsNm) != 10 {
		t.Fatalf("got %d torque levels, want 10", len(result.TorqueLevelsNm))
	}
	if first := result.TorqueLevelsNm[0]; math.Abs(first-0.9) > 1e-9 {
		t.Errorf("first torque level = %g, want 0.9", first)
	}
	if last := result.TorqueLevelsNm[9]; math.Abs(last-2.52) > 1e-9 {
		t.Errorf("last torque level = %g, want 2.52", last)
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
}

func TestRunner_FailsOnSkewedEndstops(t *testing.T) {
	// An encoder slip shows up as end stops that are not symmetric
	// around zero.
	f := &fakeRobot{apply: endstopModel(-2.0, 2.8)}
	r := &Runner{Robot: f}

	result, err := r.Run("")
	if err == nil {
		t.Fatal("Run succeeded with skewed end stops")
	}
	if !IsTestFailure(err) {
		t.Errorf("error %v not classified as test failure", err)
	}
	if result.Passed {
		t.Error("Passed = true on a failed run")
	}
	if result.FailureReason == "" {
		t.Error("FailureReason is empty")
	}
}

func TestIsTestFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"infrastructure", errors.New("serial port gone"), false},
		{"timeout", &TimeoutError{Phase: "x", Steps: 1}, true},
		{"validation", &ValidationError{Center: 0.5, Tolerance: 0.1}, true},
		{"limit", &LimitError{Position: 3, Limit: 2.7}, true},
		{"start torque", &StartTorqueError{MaxTorque: 0.4}, true},
		{"wrapped", fmt.Errorf("level 2.5: %w", &TimeoutError{}), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTestFailure(tc.err); got != tc.want {
				t.Errorf("IsTestFailure(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestSelfTest(t *testing.T) {
	// Soft limits at 2.7 rad keep the far goals out of reach.
	f := &fakeRobot{apply: endstopModel(-2.7, 2.7)}
	if err := SelfTest(f, zap.NewNop().Sugar()); err != nil {
		t.Fatalf("SelfTest: %v", err)
	}
}

func TestSelfTest_DetectsStuckJoint(t *testing.T) {
	f := &fakeRobot{pos: 0} // ignores every command
	err := SelfTest(f, zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("SelfTest passed on a joint that never moves")
	}
}

func TestCalibrateFriction_RecoversModel(t *testing.T) {
	const (
		coulomb = 0.04
		viscous = 0.01
	)
	dt := time.Millisecond

	f := &fakeRobot{}
	f.apply = func(f *fakeRobot, a robot.Action) {
		if a.Mode != robot.ModePosition {
			return
		}
		f.vel = (a.Position - f.pos) / dt.Seconds()
		f.pos = a.Position
		f.trq = coulomb*sign(f.vel) + viscous*f.vel
	}

	result, err := CalibrateFriction(f, FrictionConfig{
		Window:      100,
		SettleSteps: 10,
		StepPeriod:  dt,
	}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("CalibrateFriction: %v", err)
	}

	if len(result.Samples) != 6 {
		t.Fatalf("got %d samples, want 6", len(result.Samples))
	}
	if math.Abs(result.ViscousCoefficient-viscous) > 1e-9 {
		t.Errorf("viscous coefficient = %g, want %g", result.ViscousCoefficient, viscous)
	}
	if math.Abs(result.CoulombTorque-coulomb) > 1e-9 {
		t.Errorf("Coulomb torque = %g, want %g", result.CoulombTorque, coulomb)
	}
}

func TestCalibrateFriction_FollowingError(t *testing.T) {
	f := &fakeRobot{} // joint never moves, ramp runs away
	_, err := CalibrateFriction(f, FrictionConfig{
		Window:      1000,
		SettleSteps: 500,
		StepPeriod:  time.Millisecond,
	}, zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("CalibrateFriction succeeded although the joint never moved")
	}
}

func TestEndurance(t *testing.T) {
	f := &fakeRobot{apply: trackPositions}
	cfg := EnduranceConfig{
		Cycles:         5,
		Lower:          -1,
		Upper:          1,
		StepsPerTarget: 10,
		Rand:           rand.New(rand.NewSource(1)),
	}

	cycles, err := Endurance(context.Background(), f, cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Endurance: %v", err)
	}
	if cycles != 5 {
		t.Errorf("cycles = %d, want 5", cycles)
	}
	if len(f.actions) != 50 {
		t.Errorf("sent %d actions, want 50", len(f.actions))
	}
	for i, a := range f.actions {
		if a.Mode != robot.ModePosition {
			t.Fatalf("action %d has mode %v, want position", i, a.Mode)
		}
		if a.Position < -1 || a.Position > 1 {
			t.Errorf("action %d targets %g, outside [-1, 1]", i, a.Position)
		}
	}
}

func TestEndurance_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeRobot{apply: trackPositions}
	cycles, err := Endurance(ctx, f, EnduranceConfig{Cycles: 100, Lower: -1, Upper: 1}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Endurance: %v", err)
	}
	if cycles != 0 {
		t.Errorf("cycles = %d, want 0 after immediate cancel", cycles)
	}
}
