// Package driver contains hardware implementations of robot.Driver.
package driver

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"jointcheck/pkg/robot"
)

// FeetechConfig configures a single STS servo joint.
type FeetechConfig struct {
	Port     string
	BaudRate int
	ServoID  int

	// CountsPerRev is the encoder resolution of a full revolution.
	CountsPerRev int
	// TorqueToVelocity maps a torque command in Nm to a wheel-mode
	// velocity command.  STS servos expose no current control, so
	// torque is approximated by open-loop drive proportional to the
	// commanded torque.
	TorqueToVelocity float64
}

// DefaultFeetechConfig returns settings for an STS3215 joint on the
// given port.
func DefaultFeetechConfig(port string) FeetechConfig {
	return FeetechConfig{
		Port:             port,
		BaudRate:         1_000_000,
		ServoID:          1,
		CountsPerRev:     4096,
		TorqueToVelocity: 1000,
	}
}

// Feetech drives one STS servo as a torque-commanded joint.
type Feetech struct {
	cfg   FeetechConfig
	bus   *feetech.Bus
	servo *feetech.Servo

	mu       sync.Mutex
	lastPos  float64
	lastTime time.Time
	lastTau  float64
	haveLast bool
}

// NewFeetech opens the serial bus and prepares the servo.
func NewFeetech(cfg FeetechConfig) (*Feetech, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	return &Feetech{
		cfg:   cfg,
		bus:   bus,
		servo: feetech.NewServo(bus, cfg.ServoID, nil),
	}, nil
}

// Initialize switches the servo into wheel mode and enables torque.
func (f *Feetech) Initialize(ctx context.Context) error {
	if err := f.servo.Disable(ctx); err != nil {
		return fmt.Errorf("disable servo: %w", err)
	}
	if err := f.servo.SetOperatingMode(ctx, feetech.ModeVelocity); err != nil {
		return fmt.Errorf("set wheel mode: %w", err)
	}
	if err := f.servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable servo: %w", err)
	}
	return nil
}

// Apply commands the torque as an open-loop wheel-mode drive.
func (f *Feetech) Apply(ctx context.Context, torque float64) error {
	velocity := int(torque * f.cfg.TorqueToVelocity)
	if err := f.servo.SetVelocity(ctx, velocity); err != nil {
		return fmt.Errorf("set drive: %w", err)
	}

	f.mu.Lock()
	f.lastTau = torque
	f.mu.Unlock()
	return nil
}

// Observe reads the servo position and estimates velocity by
// differencing consecutive readings.
func (f *Feetech) Observe(ctx context.Context) (robot.Observation, error) {
	raw, err := f.servo.Position(ctx)
	if err != nil {
		return robot.Observation{}, fmt.Errorf("read position: %w", err)
	}
	now := time.Now()
	pos := f.countsToRad(raw)

	f.mu.Lock()
	defer f.mu.Unlock()

	var vel float64
	if f.haveLast {
		if dt := now.Sub(f.lastTime).Seconds(); dt > 0 {
			vel = (pos - f.lastPos) / dt
		}
	}
	f.lastPos = pos
	f.lastTime = now
	f.haveLast = true

	return robot.Observation{
		Position: pos,
		Velocity: vel,
		Torque:   f.lastTau,
	}, nil
}

// Shutdown stops the drive, disables the servo and closes the bus.
func (f *Feetech) Shutdown(ctx context.Context) error {
	var errs []error
	if err := f.servo.SetVelocity(ctx, 0); err != nil {
		errs = append(errs, err)
	}
	if err := f.servo.Disable(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := f.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (f *Feetech) countsToRad(counts int) float64 {
	return float64(counts) / float64(f.cfg.CountsPerRev) * 2 * math.Pi
}
