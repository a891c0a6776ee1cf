package phases

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"jointcheck/pkg/robot"
)

// FrictionConfig parameterizes the friction calibration sweep.
type FrictionConfig struct {
	// Velocities to test, rad/s.  The defaults cover both directions
	// of rotation.
	Velocities []float64
	// Window is the number of steps averaged per velocity.
	Window int
	// SettleSteps are discarded at the start of each velocity so the
	// transient does not skew the averages.
	SettleSteps int
	// StepPeriod is the control step duration, needed to convert a
	// velocity into a per-step position increment.
	StepPeriod time.Duration
}

// FrictionSample is the averaged measurement at one commanded velocity.
type FrictionSample struct {
	Velocity       float64 // rad/s, measured
	AppliedTorque  float64 // Nm, commanded by the position controller
	MeasuredTorque float64 // Nm, reported by the motor
}

// FrictionResult holds the sweep samples and the fitted friction model
// torque = CoulombTorque*sign(v) + ViscousCoefficient*v.
type FrictionResult struct {
	Samples            []FrictionSample
	ViscousCoefficient float64
	CoulombTorque      float64
}

// maxFollowingError aborts the sweep when the joint falls too far
// behind the commanded ramp.
const maxFollowingError = math.Pi / 2

// CalibrateFriction rotates the joint at constant velocities using the
// position controller and averages the torque needed to sustain each
// velocity.  A linear fit of torque over velocity yields the viscous
// and Coulomb friction parameters.
//
// The rig must allow full rotation, i.e. the end stops have to be
// removed and homing disabled.
func CalibrateFriction(r Robot, cfg FrictionConfig, log *zap.SugaredLogger) (*FrictionResult, error) {
	if len(cfg.Velocities) == 0 {
		cfg.Velocities = []float64{
			-math.Pi, -math.Pi / 2, -math.Pi / 4,
			math.Pi / 4, math.Pi / 2, math.Pi,
		}
	}
	if cfg.Window <= 0 {
		cfg.Window = 1000
	}
	if cfg.SettleSteps <= 0 {
		cfg.SettleSteps = 500
	}
	if cfg.StepPeriod <= 0 {
		cfg.StepPeriod = time.Millisecond
	}

	result := &FrictionResult{}

	for _, velocity := range cfg.Velocities {
		log.Infow("measuring friction", "velocity_radps", velocity)
		sample, err := frictionAtVelocity(r, velocity, cfg)
		if err != nil {
			return nil, fmt.Errorf("velocity %.3f rad/s: %w", velocity, err)
		}
		result.Samples = append(result.Samples, sample)
	}

	if err := fitFriction(result); err != nil {
		return nil, err
	}
	log.Infow("friction fit",
		"viscous_nms_per_rad", result.ViscousCoefficient,
		"coulomb_nm", result.CoulombTorque)
	return result, nil
}

func frictionAtVelocity(r Robot, velocity float64, cfg FrictionConfig) (FrictionSample, error) {
	stepSize := velocity * cfg.StepPeriod.Seconds()

	// Start the position ramp at the current position to avoid a jump.
	t, err := r.AppendDesiredAction(robot.Action{})
	if err != nil {
		return FrictionSample{}, err
	}
	obs, err := r.GetObservation(t)
	if err != nil {
		return FrictionSample{}, err
	}
	desired := obs.Position

	var velocities, applied, measured []float64

	total := cfg.SettleSteps + cfg.Window
	for step := 0; step < total; step++ {
		desired += stepSize
		t, err = r.AppendDesiredAction(robot.PositionAction(desired))
		if err != nil {
			return FrictionSample{}, err
		}
		obs, err = r.GetObservation(t)
		if err != nil {
			return FrictionSample{}, err
		}

		if math.Abs(desired-obs.Position) > maxFollowingError {
			return FrictionSample{}, fmt.Errorf("following error too high: %.3f",
				desired-obs.Position)
		}

		if step < cfg.SettleSteps {
			continue
		}
		appliedAction, err := r.GetAppliedAction(t)
		if err != nil {
			return FrictionSample{}, err
		}
		velocities = append(velocities, obs.Velocity)
		applied = append(applied, appliedAction.Torque)
		measured = append(measured, obs.Torque)
	}

	meanVel, err := stats.Mean(velocities)
	if err != nil {
		return FrictionSample{}, err
	}
	meanApplied, err := stats.Mean(applied)
	if err != nil {
		return FrictionSample{}, err
	}
	meanMeasured, err := stats.Mean(measured)
	if err != nil {
		return FrictionSample{}, err
	}

	return FrictionSample{
		Velocity:       meanVel,
		AppliedTorque:  meanApplied,
		MeasuredTorque: meanMeasured,
	}, nil
}

// fitFriction performs a least-squares fit of |torque| over |velocity|.
// The slope is the viscous coefficient, the intercept the Coulomb
// torque.
func fitFriction(result *FrictionResult) error {
	if len(result.Samples) < 2 {
		return fmt.Errorf("friction fit needs at least two samples, got %d", len(result.Samples))
	}

	var speeds, torques []float64
	for _, s := range result.Samples {
		speeds = append(speeds, math.Abs(s.Velocity))
		// Folding the torque by the direction of motion merges both
		// rotation directions into one line.
		torques = append(torques, s.MeasuredTorque*sign(s.Velocity))
	}

	varSpeed, err := stats.Variance(speeds)
	if err != nil {
		return err
	}
	if varSpeed == 0 {
		return fmt.Errorf("friction fit needs samples at different speeds")
	}
	cov, err := stats.Covariance(speeds, torques)
	if err != nil {
		return err
	}
	meanSpeed, err := stats.Mean(speeds)
	if err != nil {
		return err
	}
	meanTorque, err := stats.Mean(torques)
	if err != nil {
		return err
	}

	result.ViscousCoefficient = cov / varSpeed
	result.CoulombTorque = meanTorque - result.ViscousCoefficient*meanSpeed
	return nil
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
