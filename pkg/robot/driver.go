package robot

import "context"

// Driver is the hardware (or simulation) interface stepped by the
// backend.  Positions reported by a driver are in its raw frame; the
// backend shifts them into the zeroed frame established during homing.
type Driver interface {
	// Initialize prepares the motor for operation (e.g. enables it and
	// switches it into the required control mode).
	Initialize(ctx context.Context) error

	// Apply commands the given torque for one control step.
	Apply(ctx context.Context, torque float64) error

	// Observe returns the current joint state in the driver's raw frame.
	Observe(ctx context.Context) (Observation, error)

	// Shutdown releases the motor.  Called once when the backend stops.
	Shutdown(ctx context.Context) error
}
