package phases

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// SelfTest checks basic sanity of the rig: positions well inside the
// soft limits must be reachable, positions beyond the end stop must
// not be.
func SelfTest(r Robot, log *zap.SugaredLogger) error {
	const tolerance = 0.2

	reachableGoals := []float64{0, 0.75, 1.3, -0.8, 2.0, -2.0}
	unreachableGoals := []float64{3.5, -3.5}

	for _, goal := range reachableGoals {
		log.Infow("moving to reachable goal", "goal", goal)
		if err := GoTo(r, goal, 1000, 100); err != nil {
			return err
		}
		obs, err := r.GetObservation(r.GetCurrentTimeindex())
		if err != nil {
			return err
		}
		if math.Abs(goal-obs.Position) > tolerance {
			return fmt.Errorf("joint did not reach goal position: desired %.3f, actual %.3f",
				goal, obs.Position)
		}
	}

	for _, goal := range unreachableGoals {
		// Move back to zero first so the joint has to travel.
		if err := GoToZero(r, 1000, 100); err != nil {
			return err
		}

		log.Infow("moving toward unreachable goal", "goal", goal)
		if err := GoTo(r, goal, 1000, 100); err != nil {
			return err
		}
		obs, err := r.GetObservation(r.GetCurrentTimeindex())
		if err != nil {
			return err
		}
		if math.Abs(goal-obs.Position) < tolerance {
			return fmt.Errorf("joint reached a goal that should not be reachable: %.3f", goal)
		}
	}

	log.Info("self test successful")
	return nil
}
