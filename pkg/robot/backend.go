package robot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	// homingZeroVelocity is the velocity below which the joint is
	// considered to be resting against the end stop.
	homingZeroVelocity = 0.01
	// homingGraceSteps ignores the velocity criterion at the start of
	// the search, while the joint is still accelerating.
	homingGraceSteps = 100
	// homingMaxSteps aborts the end-stop search if the joint never
	// comes to rest.
	homingMaxSteps = 20000
)

// Backend runs the control loop of the rig.  Each step it takes the
// next desired action from the shared buffer, converts it to a motor
// torque (PD position control, safety damping, torque clamping),
// steps the driver and publishes the observation.
type Backend struct {
	data   *Data
	driver Driver
	cfg    *Config
	clk    clock.Clock
	log    *zap.SugaredLogger

	firstActionTimeout time.Duration
	maxActions         int64

	// zeroOffset shifts raw driver positions into the zeroed frame
	// established during homing.
	zeroOffset float64
	lastObs    Observation

	mu          sync.Mutex
	initialized bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) BackendOption {
	return func(b *Backend) { b.clk = c }
}

// WithLogger sets the backend's logger.
func WithLogger(log *zap.SugaredLogger) BackendOption {
	return func(b *Backend) { b.log = log }
}

// WithFirstActionTimeout stops the backend if no action arrives within
// d after initialization.  Zero disables the timeout.
func WithFirstActionTimeout(d time.Duration) BackendOption {
	return func(b *Backend) { b.firstActionTimeout = d }
}

// WithMaxActions shuts the backend down after n actions have been
// processed.  Zero means unlimited.
func WithMaxActions(n int64) BackendOption {
	return func(b *Backend) { b.maxActions = n }
}

// NewBackend creates a backend for the given buffer, driver and rig
// configuration.  Call Initialize to home the joint and start the
// control loop.
func NewBackend(data *Data, driver Driver, cfg *Config, opts ...BackendOption) *Backend {
	b := &Backend{
		data:   data,
		driver: driver,
		cfg:    cfg,
		clk:    clock.New(),
		log:    zap.NewNop().Sugar(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize prepares the driver, homes the joint against the end stop,
// moves to the configured initial position and starts the control loop.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return fmt.Errorf("backend already initialized")
	}
	b.initialized = true
	b.mu.Unlock()

	if err := b.driver.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize driver: %w", err)
	}

	if err := b.home(ctx); err != nil {
		return fmt.Errorf("homing: %w", err)
	}

	if err := b.moveToInitialPosition(ctx); err != nil {
		return fmt.Errorf("move to initial position: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	go b.loop(loopCtx)

	b.log.Infow("backend initialized",
		"zero_offset", b.zeroOffset,
		"step_period", b.cfg.StepPeriod.Duration())
	return nil
}

// Stop shuts the control loop down and releases the driver.  Blocked
// frontend calls return ErrStopped.
func (b *Backend) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-b.done
}

// home drives the joint against the end stop with the configured search
// torque and derives the offset between the driver's raw frame and the
// zeroed frame.
func (b *Backend) home(ctx context.Context) error {
	if !b.cfg.HasEndstop {
		obs, err := b.driver.Observe(ctx)
		if err != nil {
			return err
		}
		b.zeroOffset = 0
		b.lastObs = obs
		return nil
	}

	torque := clamp(b.cfg.Calibration.EndstopSearchTorqueNm, -b.cfg.MaxTorqueNm, b.cfg.MaxTorqueNm)
	b.log.Infow("searching end stop", "torque", torque)

	var obs Observation
	for step := 0; ; step++ {
		if step >= homingMaxSteps {
			return fmt.Errorf("joint did not come to rest after %d steps", homingMaxSteps)
		}
		if err := b.driver.Apply(ctx, torque); err != nil {
			return err
		}
		var err error
		obs, err = b.driver.Observe(ctx)
		if err != nil {
			return err
		}
		if step >= homingGraceSteps && math.Abs(obs.Velocity) < homingZeroVelocity {
			break
		}
		b.clk.Sleep(b.cfg.StepPeriod.Duration())
	}

	// The end stop found with a positive search torque is the positive
	// one; it reads as +HomeOffsetRad in the zeroed frame.
	endstop := math.Copysign(b.cfg.HomeOffsetRad, torque)
	b.zeroOffset = obs.Position - endstop
	b.lastObs = Observation{
		Position: endstop,
		Velocity: obs.Velocity,
		Torque:   obs.Torque,
	}
	return nil
}

// moveToInitialPosition ramps from the homing end stop to the
// configured initial position using the position controller.
func (b *Backend) moveToInitialPosition(ctx context.Context) error {
	steps := b.cfg.Calibration.MoveSteps
	if steps <= 0 {
		steps = 1
	}

	start := b.lastObs.Position
	stepSize := (b.cfg.InitialPositionRad - start) / float64(steps)

	target := start
	for i := 0; i < steps; i++ {
		target += stepSize
		if err := b.step(ctx, PositionAction(target)); err != nil {
			return err
		}
		b.clk.Sleep(b.cfg.StepPeriod.Duration())
	}

	// Hold until the joint has settled at the target.
	hold := steps / 2
	for i := 0; i < hold; i++ {
		if err := b.step(ctx, PositionAction(b.cfg.InitialPositionRad)); err != nil {
			return err
		}
		b.clk.Sleep(b.cfg.StepPeriod.Duration())
	}

	if diff := math.Abs(b.lastObs.Position - b.cfg.InitialPositionRad); diff > b.cfg.MoveToPositionToleranceRad {
		return fmt.Errorf("joint stopped %.4f rad away from initial position", diff)
	}
	return nil
}

// step applies one action outside the regular loop (used during
// initialization) and updates lastObs.
func (b *Backend) step(ctx context.Context, a Action) error {
	tau := b.torqueFor(a, b.lastObs)
	if err := b.driver.Apply(ctx, tau); err != nil {
		return err
	}
	raw, err := b.driver.Observe(ctx)
	if err != nil {
		return err
	}
	b.lastObs = b.zeroedObservation(raw)
	return nil
}

func (b *Backend) zeroedObservation(raw Observation) Observation {
	return Observation{
		Position: raw.Position - b.zeroOffset,
		Velocity: raw.Velocity,
		Torque:   raw.Torque,
	}
}

// torqueFor converts a desired action into the motor torque for this
// step, based on the previous observation.
func (b *Backend) torqueFor(a Action, obs Observation) float64 {
	var tau float64
	switch a.Mode {
	case ModeTorque:
		tau = a.Torque
	case ModePosition:
		target := clamp(a.Position, b.cfg.SoftPositionLimitsLower, b.cfg.SoftPositionLimitsUpper)
		g := b.cfg.PositionControlGains
		tau = g.KP*(target-obs.Position) - g.KD*obs.Velocity
	}
	tau -= b.cfg.SafetyKD * obs.Velocity
	return clamp(tau, -b.cfg.MaxTorqueNm, b.cfg.MaxTorqueNm)
}

func (b *Backend) loop(ctx context.Context) {
	defer close(b.done)

	ticker := b.clk.Ticker(b.cfg.StepPeriod.Duration())
	defer ticker.Stop()

	started := b.clk.Now()

	for {
		select {
		case <-ctx.Done():
			b.data.stop(ErrStopped)
			b.releaseDriver()
			return
		case <-ticker.C:
		}

		t, desired, ok := b.data.pendingAction()
		if !ok {
			if b.firstActionTimeout > 0 && b.data.CurrentIndex() < 0 &&
				b.clk.Since(started) > b.firstActionTimeout {
				b.fail(fmt.Errorf("no action received within %v", b.firstActionTimeout))
				return
			}
			continue
		}

		tau := b.torqueFor(desired, b.lastObs)
		if err := b.driver.Apply(ctx, tau); err != nil {
			b.fail(fmt.Errorf("apply torque: %w", err))
			return
		}
		raw, err := b.driver.Observe(ctx)
		if err != nil {
			b.fail(fmt.Errorf("read observation: %w", err))
			return
		}
		obs := b.zeroedObservation(raw)

		if obs.Position < b.cfg.HardPositionLimitsLower || obs.Position > b.cfg.HardPositionLimitsUpper {
			b.data.complete(t, TorqueAction(tau), obs, b.clk.Now())
			b.fail(fmt.Errorf("hard position limit exceeded: position %.4f", obs.Position))
			return
		}

		b.lastObs = obs
		b.data.complete(t, TorqueAction(tau), obs, b.clk.Now())

		if b.maxActions > 0 && int64(t)+1 >= b.maxActions {
			b.log.Infow("maximum number of actions reached", "actions", b.maxActions)
			b.data.stop(nil)
			b.releaseDriver()
			return
		}
	}
}

func (b *Backend) fail(err error) {
	b.log.Errorw("backend stopped", "error", err)
	b.data.stop(err)
	b.releaseDriver()
}

// releaseDriver sends a final zero-torque command and shuts the driver
// down.
func (b *Backend) releaseDriver() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := b.driver.Apply(ctx, 0); err != nil {
		b.log.Warnw("failed to zero torque on shutdown", "error", err)
	}
	if err := b.driver.Shutdown(ctx); err != nil {
		b.log.Warnw("failed to shut down driver", "error", err)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
