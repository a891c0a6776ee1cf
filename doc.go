// Package jointcheck provides acceptance tests for a single-joint
// robotic actuator test rig.
//
// The rig is driven through a small control plane: test code submits
// actions (zero torque, torque, position) to a frontend and reads back
// the observation produced at each time step, while a backend runs the
// control loop against the motor driver (real servo or simulation).
//
// # Usage
//
// Run the full acceptance sequence against a simulated joint:
//
//	jointcheck run --sim /tmp/logs
//
// Then inspect the recorded telemetry:
//
//	jointcheck analyze --plot out /tmp/logs/one_joint_test_data.csv
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/jointcheck: CLI with run, selftest, endurance, friction,
//     analyze and history commands
//   - pkg/robot: actions, observations, the shared step buffer,
//     frontend, backend and rig configuration
//   - pkg/phases: the motion phases of the acceptance test
//   - pkg/sim: simulated joint driver
//   - pkg/driver: hardware joint drivers
//   - pkg/telemetry: CSV step logging
//   - pkg/analyze: log statistics and plots
//   - pkg/report: SQLite archive of past runs
package jointcheck
