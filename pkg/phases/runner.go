package phases

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"jointcheck/pkg/telemetry"
)

// DefaultPositionLimit is the range in which the joint is allowed to
// move during the stress phases, a little before the end stops.
const DefaultPositionLimit = 2.7

// Runner sequences the acceptance-test phases: zeroing, initial
// position validation, the direction-reversal stress sweep with
// telemetry recording, and final position validation.
type Runner struct {
	Robot Robot
	Log   *zap.SugaredLogger

	// Telemetry, if set, records the stress phases to CSV.
	Telemetry *telemetry.Logger

	// PositionLimit bounds the allowed joint range (default 2.7 rad).
	PositionLimit float64
	// Currents is the motor-current sweep in ampere; each value is
	// converted to a torque level for the stress phase.  Defaults to
	// 5 through 14.
	Currents []int
	// LowTorqueNm is used for the recovery movement between high-load
	// stress runs (default 0.2).
	LowTorqueNm float64
	// Iterations repeats the whole scenario (default 1).
	Iterations int
	// Progress enables a terminal progress bar for the sweep.
	Progress bool
}

// Result summarizes an acceptance run.
type Result struct {
	Passed        bool
	FailureReason string

	TorqueLevelsNm []float64
	StartedAt      time.Time
	FinishedAt     time.Time
	LogPath        string
	DroppedRows    int
}

func (r *Runner) defaults() {
	if r.PositionLimit == 0 {
		r.PositionLimit = DefaultPositionLimit
	}
	if len(r.Currents) == 0 {
		for c := 5; c < 15; c++ {
			r.Currents = append(r.Currents, c)
		}
	}
	if r.LowTorqueNm == 0 {
		r.LowTorqueNm = 0.2
	}
	if r.Iterations == 0 {
		r.Iterations = 1
	}
	if r.Log == nil {
		r.Log = zap.NewNop().Sugar()
	}
}

// Run executes the acceptance sequence, recording telemetry of the
// stress phases to logPath.  The returned Result is valid even when an
// error is returned; test failures (validation, timeout, limit
// violation) are reported both ways.
func (r *Runner) Run(logPath string) (*Result, error) {
	r.defaults()

	result := &Result{
		StartedAt: time.Now(),
		LogPath:   logPath,
	}
	for _, c := range r.Currents {
		result.TorqueLevelsNm = append(result.TorqueLevelsNm, float64(c)*CurrentToTorqueFactor)
	}

	err := r.run(logPath, result)
	result.FinishedAt = time.Now()
	result.Passed = err == nil
	if err != nil {
		result.FailureReason = err.Error()
	}
	return result, err
}

func (r *Runner) run(logPath string, result *Result) error {
	r.Log.Info("moving to zero position")
	if err := GoToZero(r.Robot, 1000, 2000); err != nil {
		return err
	}

	r.Log.Info("initial position validation")
	if err := ValidatePosition(r.Robot); err != nil {
		return err
	}
	r.Log.Info("position is okay")

	if err := GoToZero(r.Robot, 1000, 2000); err != nil {
		return err
	}

	for iteration := 0; iteration < r.Iterations; iteration++ {
		r.Log.Infow("starting test iteration", "iteration", iteration)
		if err := r.stressSweep(logPath, result); err != nil {
			return err
		}

		r.Log.Info("position validation after direction changes")
		if err := ValidatePosition(r.Robot); err != nil {
			return err
		}
		r.Log.Info("position is okay")
	}
	return nil
}

// stressSweep performs the direction-reversal stress test over the
// configured current range, with telemetry recording.
func (r *Runner) stressSweep(logPath string, result *Result) error {
	if r.Telemetry != nil {
		if err := r.Telemetry.Start(logPath); err != nil {
			return err
		}
		defer func() {
			dropped, err := r.Telemetry.Stop()
			result.DroppedRows += dropped
			if err != nil {
				r.Log.Warnw("telemetry recording failed", "error", err)
			}
		}()
	}

	var bar *pterm.ProgressbarPrinter
	if r.Progress {
		bar, _ = pterm.DefaultProgressbar.
			WithTotal(len(r.Currents)).
			WithTitle("direction-change sweep").
			Start()
		defer bar.Stop()
	}

	for _, current := range r.Currents {
		torque := float64(current) * CurrentToTorqueFactor
		r.Log.Infow("switching directions with high torque",
			"current_a", current, "torque_nm", torque)

		if err := GoTo(r.Robot, -r.PositionLimit, 500, 10); err != nil {
			return err
		}
		if err := HardDirectionChange(r.Robot, 2, torque); err != nil {
			return fmt.Errorf("torque level %.3f Nm: %w", torque, err)
		}

		obs, err := r.Robot.GetObservation(r.Robot.GetCurrentTimeindex())
		if err != nil {
			return err
		}
		if math.Abs(obs.Position) > r.PositionLimit {
			return &LimitError{Position: obs.Position, Limit: r.PositionLimit}
		}

		if err := HardDirectionChange(r.Robot, 10, r.LowTorqueNm); err != nil {
			return fmt.Errorf("recovery at %.3f Nm: %w", r.LowTorqueNm, err)
		}

		if bar != nil {
			bar.Increment()
		}
	}
	return nil
}

// IsTestFailure reports whether err represents a failed acceptance
// criterion rather than an infrastructure problem.
func IsTestFailure(err error) bool {
	var (
		timeout    *TimeoutError
		validation *ValidationError
		limit      *LimitError
		start      *StartTorqueError
	)
	return errors.As(err, &timeout) ||
		errors.As(err, &validation) ||
		errors.As(err, &limit) ||
		errors.As(err, &start)
}
