// Package sim provides a simulated single-joint actuator implementing
// robot.Driver.  It stands in for the real rig so that the acceptance
// phases can run and be tested without hardware.
package sim

import (
	"context"
	"math"
	"sync"

	"jointcheck/pkg/robot"
)

// Params describe the simulated joint.
type Params struct {
	// Inertia of the rotor plus joint, kg m².
	Inertia float64
	// ViscousFriction coefficient, Nm s/rad.
	ViscousFriction float64
	// CoulombFriction torque opposing motion, Nm.
	CoulombFriction float64
	// StictionTorque is the drive torque needed to start moving from
	// rest, Nm.
	StictionTorque float64

	// EndstopPosition places symmetric end stops at ±EndstopPosition
	// rad in the joint's raw frame.  Zero disables them.
	EndstopPosition  float64
	EndstopStiffness float64 // Nm/rad
	EndstopDamping   float64 // Nm s/rad, active while in contact

	// MaxTorque saturates the commanded torque, Nm.
	MaxTorque float64

	// DT is the integration step in seconds.  Each Apply call advances
	// the simulation by one DT, keeping it in lockstep with the
	// backend regardless of wall time.
	DT float64

	// StartPosition is the initial joint position, rad.
	StartPosition float64
}

// DefaultParams returns parameters roughly matching the one-joint
// high-load rig.
func DefaultParams() Params {
	return Params{
		Inertia:          0.004,
		ViscousFriction:  0.01,
		CoulombFriction:  0.04,
		StictionTorque:   0.05,
		EndstopPosition:  2.9,
		EndstopStiffness: 500,
		EndstopDamping:   2,
		MaxTorque:        2.7,
		DT:               0.001,
		StartPosition:    -1.0,
	}
}

// Joint is a simulated single-joint actuator.
type Joint struct {
	p Params

	mu     sync.Mutex
	pos    float64
	vel    float64
	torque float64 // torque applied at the last step
}

// New creates a simulated joint.
func New(p Params) *Joint {
	return &Joint{p: p, pos: p.StartPosition}
}

// Initialize implements robot.Driver.
func (j *Joint) Initialize(ctx context.Context) error { return nil }

// Shutdown implements robot.Driver.
func (j *Joint) Shutdown(ctx context.Context) error { return nil }

// Apply commands a torque and advances the simulation by one step.
func (j *Joint) Apply(ctx context.Context, torque float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	drive := clamp(torque, -j.p.MaxTorque, j.p.MaxTorque)
	j.torque = drive
	j.step(drive)
	return nil
}

// Observe returns the current joint state.
func (j *Joint) Observe(ctx context.Context) (robot.Observation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return robot.Observation{
		Position: j.pos,
		Velocity: j.vel,
		Torque:   j.torque,
	}, nil
}

// SetState overrides position and velocity.  Test helper.
func (j *Joint) SetState(pos, vel float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pos = pos
	j.vel = vel
}

const restVelocity = 1e-3

// substeps per Apply keeps the explicit integration stable during
// end-stop impacts.
const substeps = 10

func (j *Joint) step(drive float64) {
	dt := j.p.DT / substeps
	for i := 0; i < substeps; i++ {
		net := drive + j.contactTorque()

		if math.Abs(j.vel) < restVelocity && math.Abs(net) <= j.p.StictionTorque {
			// Static friction holds the joint in place.
			j.vel = 0
		} else {
			net -= j.p.ViscousFriction * j.vel
			if j.vel != 0 {
				net -= math.Copysign(j.p.CoulombFriction, j.vel)
			}
			acc := net / j.p.Inertia
			j.vel += acc * dt
		}
		j.pos += j.vel * dt
	}
}

// contactTorque models the end stops as stiff spring-dampers.
func (j *Joint) contactTorque() float64 {
	if j.p.EndstopPosition <= 0 {
		return 0
	}
	switch {
	case j.pos > j.p.EndstopPosition:
		return -j.p.EndstopStiffness*(j.pos-j.p.EndstopPosition) - j.p.EndstopDamping*j.vel
	case j.pos < -j.p.EndstopPosition:
		return -j.p.EndstopStiffness*(j.pos+j.p.EndstopPosition) - j.p.EndstopDamping*j.vel
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
