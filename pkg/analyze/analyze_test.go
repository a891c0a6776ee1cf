package analyze

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"jointcheck/pkg/telemetry"
)

func TestSummarize(t *testing.T) {
	samples := []telemetry.Sample{
		{Index: 10, TimestampMs: 1000, Position: -1, Velocity: 2, Torque: 0.5},
		{Index: 11, TimestampMs: 1001, Position: 0, Velocity: -2, Torque: 0.1},
		{Index: 12, TimestampMs: 1002, Position: 1, Velocity: 0, Torque: -0.3},
	}

	s, err := Summarize(samples)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if s.Samples != 3 {
		t.Errorf("Samples = %d, want 3", s.Samples)
	}
	if s.FirstIndex != 10 || s.LastIndex != 12 {
		t.Errorf("index range [%d, %d], want [10, 12]", s.FirstIndex, s.LastIndex)
	}
	if s.Gaps != 0 {
		t.Errorf("Gaps = %d, want 0", s.Gaps)
	}
	if s.DurationMs != 2 {
		t.Errorf("DurationMs = %d, want 2", s.DurationMs)
	}

	if s.Position.Min != -1 || s.Position.Max != 1 || s.Position.Mean != 0 {
		t.Errorf("Position range = %+v, want min -1 max 1 mean 0", s.Position)
	}
	if s.Velocity.Min != -2 || s.Velocity.Max != 2 || s.Velocity.Mean != 0 {
		t.Errorf("Velocity range = %+v, want min -2 max 2 mean 0", s.Velocity)
	}
	if math.Abs(s.Torque.Mean-0.1) > 1e-9 {
		t.Errorf("Torque mean = %g, want 0.1", s.Torque.Mean)
	}
}

func TestSummarize_CountsGaps(t *testing.T) {
	samples := []telemetry.Sample{
		{Index: 0}, {Index: 1}, {Index: 5}, {Index: 6}, {Index: 8},
	}
	s, err := Summarize(samples)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Gaps != 4 {
		t.Errorf("Gaps = %d, want 4", s.Gaps)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if _, err := Summarize(nil); err == nil {
		t.Error("Summarize accepted an empty log")
	}
}

func TestCheckComplete(t *testing.T) {
	contiguous := []telemetry.Sample{{Index: 3}, {Index: 4}, {Index: 5}}
	if err := CheckComplete(contiguous); err != nil {
		t.Errorf("CheckComplete rejected a contiguous log: %v", err)
	}

	gappy := []telemetry.Sample{{Index: 3}, {Index: 5}}
	if err := CheckComplete(gappy); err == nil {
		t.Error("CheckComplete accepted a log with a gap")
	}

	if err := CheckComplete(nil); err == nil {
		t.Error("CheckComplete accepted an empty log")
	}
}

func TestPlot(t *testing.T) {
	var samples []telemetry.Sample
	for i := 0; i < 100; i++ {
		phase := float64(i) / 100 * 2 * math.Pi
		samples = append(samples, telemetry.Sample{
			Index:       int64(i),
			TimestampMs: int64(1000 + i),
			Position:    math.Sin(phase),
			Velocity:    math.Cos(phase),
			Torque:      0.2 * math.Sin(phase),
		})
	}

	base := filepath.Join(t.TempDir(), "run")
	files, err := Plot(samples, base)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Plot returned %d files, want 3", len(files))
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Errorf("plot file missing: %v", err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("plot file %s is empty", f)
		}
	}
}
