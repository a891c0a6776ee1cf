package phases

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"jointcheck/pkg/robot"
)

// EnduranceConfig parameterizes the endurance test.
type EnduranceConfig struct {
	// Cycles is the number of random target positions to visit.
	// Zero runs until the context is cancelled.
	Cycles int
	// Lower and Upper bound the random targets.
	Lower, Upper float64
	// StepsPerTarget is how long each target is commanded.
	StepsPerTarget int
	// Rand is the randomness source; a time-seeded one is used when
	// nil.
	Rand *rand.Rand
}

// Endurance moves the joint to random positions within the given range
// until the cycle budget is exhausted or the context is cancelled.
// The wall-clock time is logged periodically so that long runs remain
// traceable if the rig fails partway.
func Endurance(ctx context.Context, r Robot, cfg EnduranceConfig, log *zap.SugaredLogger) (cycles int, err error) {
	if cfg.StepsPerTarget <= 0 {
		cfg.StepsPerTarget = 300
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	lastPrint := time.Now()

	for cycles = 0; cfg.Cycles == 0 || cycles < cfg.Cycles; cycles++ {
		if err := ctx.Err(); err != nil {
			return cycles, nil
		}

		target := cfg.Lower + rng.Float64()*(cfg.Upper-cfg.Lower)
		action := robot.PositionAction(target)

		for i := 0; i < cfg.StepsPerTarget; i++ {
			t, err := r.AppendDesiredAction(action)
			if err != nil {
				return cycles, err
			}
			if err := r.WaitUntilTimeindex(t); err != nil {
				return cycles, err
			}
		}

		if time.Since(lastPrint) > time.Hour {
			log.Infow("endurance test still running", "cycles", cycles)
			lastPrint = time.Now()
		}
	}
	return cycles, nil
}
