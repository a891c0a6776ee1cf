// Package phases implements the motion phases of the single-joint
// acceptance test: zeroing, end-stop detection, start-torque search,
// position validation and direction-reversal stress testing.
package phases

import (
	"math"

	"go.uber.org/zap"

	"jointcheck/pkg/robot"
)

// Robot is the control interface the phases drive.  *robot.Frontend
// satisfies it.
type Robot interface {
	AppendDesiredAction(robot.Action) (robot.TimeIndex, error)
	WaitUntilTimeindex(robot.TimeIndex) error
	GetObservation(robot.TimeIndex) (robot.Observation, error)
	GetAppliedAction(robot.TimeIndex) (robot.Action, error)
	GetCurrentTimeindex() robot.TimeIndex
}

// CurrentToTorqueFactor converts motor current in ampere to joint
// torque in Nm (motor constant times gear ratio).
const CurrentToTorqueFactor = 0.02 * 9

// zeroVelocity is the threshold below which the joint counts as
// standing still.
const zeroVelocity = 0.001

// ZeroTorque sends the neutral command for the given number of steps.
func ZeroTorque(r Robot, duration int) error {
	for step := 0; step < duration; step++ {
		t, err := r.AppendDesiredAction(robot.Action{})
		if err != nil {
			return err
		}
		if err := r.WaitUntilTimeindex(t); err != nil {
			return err
		}
	}
	return nil
}

// GoTo moves to the goal position with a linear profile and holds
// there.  The joint's speed follows from the distance and the number of
// steps.
func GoTo(r Robot, goal float64, steps, hold int) error {
	t, err := r.AppendDesiredAction(robot.Action{})
	if err != nil {
		return err
	}
	obs, err := r.GetObservation(t)
	if err != nil {
		return err
	}

	target := obs.Position
	stepSize := (goal - target) / float64(steps)

	for i := 0; i < steps; i++ {
		target += stepSize
		t, err = r.AppendDesiredAction(robot.PositionAction(target))
		if err != nil {
			return err
		}
		if err := r.WaitUntilTimeindex(t); err != nil {
			return err
		}
	}

	action := robot.PositionAction(goal)
	for i := 0; i < hold; i++ {
		t, err = r.AppendDesiredAction(action)
		if err != nil {
			return err
		}
		if err := r.WaitUntilTimeindex(t); err != nil {
			return err
		}
	}
	return nil
}

// GoToZero moves to the zero position.  See GoTo.
func GoToZero(r Robot, steps, hold int) error {
	return GoTo(r, 0, steps, hold)
}

// HitEndstop applies a constant torque until the measured velocity
// drops to near-zero, assuming the end stop has then been reached.  The
// velocity criterion is ignored for the first 100 steps while the joint
// accelerates.  If the joint is still moving after timeout steps the
// phase simply ends; it is up to the caller to judge the position.
func HitEndstop(r Robot, torque float64, hold, timeout int) error {
	action := robot.TorqueAction(torque)

	t, err := r.AppendDesiredAction(action)
	if err != nil {
		return err
	}

	for step := 0; step < timeout; step++ {
		obs, err := r.GetObservation(t)
		if err != nil {
			return err
		}
		if step >= 100 && math.Abs(obs.Velocity) <= zeroVelocity {
			break
		}
		t, err = r.AppendDesiredAction(action)
		if err != nil {
			return err
		}
	}

	for i := 0; i < hold; i++ {
		t, err = r.AppendDesiredAction(action)
		if err != nil {
			return err
		}
		if err := r.WaitUntilTimeindex(t); err != nil {
			return err
		}
	}
	return nil
}

// TestIfMoves applies a constant torque and reports whether the joint
// reached a positive position within the given number of steps.  The
// joint is expected to start in the negative range.
func TestIfMoves(r Robot, torque float64, timeout int) (bool, error) {
	for step := 0; step < timeout; step++ {
		t, err := r.AppendDesiredAction(robot.TorqueAction(torque))
		if err != nil {
			return false, err
		}
		obs, err := r.GetObservation(t)
		if err != nil {
			return false, err
		}
		if obs.Position > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DetermineStartTorque finds the minimum torque that makes the joint
// move.  The joint is driven to the negative position limit and a
// constant torque is applied; if it does not reach the positive range
// in time, the procedure repeats with increasing torque.
func DetermineStartTorque(r Robot, positionLimit float64, log *zap.SugaredLogger) (float64, error) {
	const (
		maxTorque    = 0.4
		torqueStep   = 0.025
		moveTimeout  = 3000
		approachHold = 100
	)

	if _, err := r.AppendDesiredAction(robot.Action{}); err != nil {
		return 0, err
	}

	for torque := 0.0; torque < maxTorque; torque += torqueStep {
		log.Infow("testing start torque", "torque_nm", torque)
		if err := GoTo(r, -positionLimit, 1000, approachHold); err != nil {
			return 0, err
		}
		moves, err := TestIfMoves(r, torque, moveTimeout)
		if err != nil {
			return 0, err
		}
		if moves {
			return torque, nil
		}
	}
	return 0, &StartTorqueError{MaxTorque: maxTorque}
}

// ValidatePosition checks that the measured position is plausible by
// hitting the end stop from both sides and verifying that the midpoint
// of the two positions is near zero.
func ValidatePosition(r Robot) error {
	const (
		tolerance = 0.1
		torque    = 0.22
		timeout   = 5000
	)

	var positions [2]float64
	for i, sign := range []float64{1, -1} {
		if err := HitEndstop(r, sign*torque, 0, timeout); err != nil {
			return err
		}
		obs, err := r.GetObservation(r.GetCurrentTimeindex())
		if err != nil {
			return err
		}
		positions[i] = obs.Position
	}

	center := (positions[0] + positions[1]) / 2
	if math.Abs(center) > tolerance {
		return &ValidationError{Center: center, Tolerance: tolerance}
	}
	return nil
}

// HardDirectionChange moves the joint back and forth by toggling the
// sign of a constant torque each time the position threshold is
// crossed.  The threshold is kept well inside the end stops so that
// overshooting does not damage them.
func HardDirectionChange(r Robot, repetitions int, torque float64) error {
	// Far enough from the end stop that overshoot cannot hit it.
	const positionLimit = 0.6
	const stepBudget = 2000

	t, err := r.AppendDesiredAction(robot.Action{})
	if err != nil {
		return err
	}

	for rep := 0; rep < repetitions; rep++ {
		for _, dir := range []float64{1, -1} {
			action := robot.TorqueAction(dir * torque)
			for step := 0; ; step++ {
				obs, err := r.GetObservation(t)
				if err != nil {
					return err
				}
				if dir*obs.Position >= positionLimit {
					break
				}
				if step > stepBudget {
					return &TimeoutError{Phase: "hard direction change", Steps: step}
				}
				t, err = r.AppendDesiredAction(action)
				if err != nil {
					return err
				}
			}
		}
	}

	// Dampen the movement so the joint does not run into the end stop.
	return GoTo(r, -positionLimit, 10, 100)
}
