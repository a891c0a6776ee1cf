package phases

import "fmt"

// TimeoutError reports that a phase exceeded its step budget.
type TimeoutError struct {
	Phase string
	Steps int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout in %s after %d steps", e.Phase, e.Steps)
}

// ValidationError reports that the midpoint of the two end-stop
// positions deviates too far from zero.
type ValidationError struct {
	Center    float64
	Tolerance float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unexpected center position: expected 0.0 ±%.2f, actual is %f",
		e.Tolerance, e.Center)
}

// StartTorqueError reports that the joint did not move even at the
// maximum torque of the start-torque sweep.
type StartTorqueError struct {
	MaxTorque float64
}

func (e *StartTorqueError) Error() string {
	return fmt.Sprintf("joint did not move at any torque up to %.3f Nm", e.MaxTorque)
}

// LimitError reports that the joint moved beyond the allowed position
// range during a stress phase.
type LimitError struct {
	Position float64
	Limit    float64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("position limit exceeded: |%.4f| > %.4f", e.Position, e.Limit)
}
