// Package analyze computes summary statistics and plots from telemetry
// logs recorded during acceptance runs.
package analyze

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"jointcheck/pkg/telemetry"
)

// Range summarizes one logged quantity.
type Range struct {
	Min  float64
	Max  float64
	Mean float64
}

// Summary describes a telemetry log.
type Summary struct {
	Samples    int
	FirstIndex int64
	LastIndex  int64
	// Gaps counts missing time indices; a complete log has none.
	Gaps int

	DurationMs int64

	Position Range
	Velocity Range
	Torque   Range
}

// Summarize computes a Summary over the given samples.
func Summarize(samples []telemetry.Sample) (*Summary, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("analyze: log contains no samples")
	}

	s := &Summary{
		Samples:    len(samples),
		FirstIndex: samples[0].Index,
		LastIndex:  samples[len(samples)-1].Index,
		DurationMs: samples[len(samples)-1].TimestampMs - samples[0].TimestampMs,
	}

	prev := samples[0].Index
	for _, sample := range samples[1:] {
		if sample.Index != prev+1 {
			s.Gaps += int(sample.Index - prev - 1)
		}
		prev = sample.Index
	}

	var positions, velocities, torques []float64
	for _, sample := range samples {
		positions = append(positions, sample.Position)
		velocities = append(velocities, sample.Velocity)
		torques = append(torques, sample.Torque)
	}

	var err error
	if s.Position, err = rangeOf(positions); err != nil {
		return nil, err
	}
	if s.Velocity, err = rangeOf(velocities); err != nil {
		return nil, err
	}
	if s.Torque, err = rangeOf(torques); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckComplete verifies that the log covers a contiguous range of time
// indices with no gaps.
func CheckComplete(samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("analyze: log contains no samples")
	}

	prev := samples[0].Index
	for _, s := range samples[1:] {
		if s.Index != prev+1 {
			return fmt.Errorf("analyze: log has a gap between time index %d and %d", prev, s.Index)
		}
		prev = s.Index
	}
	return nil
}

func rangeOf(values []float64) (Range, error) {
	min, err := stats.Min(values)
	if err != nil {
		return Range{}, err
	}
	max, err := stats.Max(values)
	if err != nil {
		return Range{}, err
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return Range{}, err
	}
	return Range{Min: min, Max: max, Mean: mean}, nil
}
