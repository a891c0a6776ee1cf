// Package robot implements the control-plane data exchange for a
// single-joint actuator test rig: commanded actions, measured
// observations and the time-series buffer that connects the frontend
// (test code) with the backend (control loop driving the motor).
package robot

// Mode selects how a commanded action is interpreted by the backend.
type Mode int

const (
	// ModeZeroTorque is the neutral command.  It is the zero value of
	// Action, so Action{} is a safe "do nothing" command.
	ModeZeroTorque Mode = iota
	// ModeTorque applies Action.Torque directly to the motor.
	ModeTorque
	// ModePosition tracks Action.Position with the position controller.
	ModePosition
)

func (m Mode) String() string {
	switch m {
	case ModeZeroTorque:
		return "zero-torque"
	case ModeTorque:
		return "torque"
	case ModePosition:
		return "position"
	}
	return "unknown"
}

// Action is a commanded setpoint.  One action is consumed per control
// step; exactly one of the three modes is active.
type Action struct {
	Mode     Mode
	Torque   float64 // Nm, used in ModeTorque
	Position float64 // rad, used in ModePosition
}

// TorqueAction returns an action that applies the given torque.
func TorqueAction(torque float64) Action {
	return Action{Mode: ModeTorque, Torque: torque}
}

// PositionAction returns an action that tracks the given position.
func PositionAction(position float64) Action {
	return Action{Mode: ModePosition, Position: position}
}

// Observation is the measured joint state at one time index.
type Observation struct {
	Position float64 // rad
	Velocity float64 // rad/s
	Torque   float64 // Nm, torque actually applied by the motor
}

// TimeIndex identifies one step of the control loop.  Indices are
// assigned by AppendDesiredAction and increase strictly monotonically,
// starting at zero.
type TimeIndex int64
