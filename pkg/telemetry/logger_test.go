package telemetry

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jointcheck/pkg/robot"
	"jointcheck/pkg/sim"
)

// startRig brings up a backend on the simulated joint with a short step
// period so tests run quickly.
func startRig(t *testing.T, history int) (*robot.Data, *robot.Frontend) {
	t.Helper()

	cfg := robot.DefaultConfig()
	cfg.StepPeriod = robot.Duration(100 * time.Microsecond)

	data := robot.NewData(history)
	backend := robot.NewBackend(data, sim.New(sim.DefaultParams()), cfg)
	if err := backend.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(backend.Stop)
	return data, robot.NewFrontend(data)
}

func driveSteps(t *testing.T, front *robot.Frontend, a robot.Action, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		ti, err := front.AppendDesiredAction(a)
		if err != nil {
			t.Fatalf("AppendDesiredAction: %v", err)
		}
		if err := front.WaitUntilTimeindex(ti); err != nil {
			t.Fatalf("WaitUntilTimeindex: %v", err)
		}
	}
}

func TestLogger_RoundTrip(t *testing.T) {
	data, front := startRig(t, 1000)

	logger := New(data)
	path := filepath.Join(t.TempDir(), "telemetry.csv")
	if err := logger.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}

	driveSteps(t, front, robot.TorqueAction(0.1), 200)

	dropped, err := logger.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped %d rows, want 0", dropped)
	}

	samples, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(samples) != 200 {
		t.Fatalf("read %d samples, want 200", len(samples))
	}
	for i, s := range samples {
		if s.Index != int64(i) {
			t.Fatalf("sample %d has index %d, want %d", i, s.Index, i)
		}
		if math.Abs(s.DesiredTorque-0.1) > 1e-9 {
			t.Errorf("sample %d desired torque %g, want 0.1", i, s.DesiredTorque)
		}
		if s.TimestampMs == 0 {
			t.Errorf("sample %d has zero timestamp", i)
		}
	}
}

func TestLogger_Restart(t *testing.T) {
	data, front := startRig(t, 1000)
	logger := New(data)
	dir := t.TempDir()

	first := filepath.Join(dir, "first.csv")
	if err := logger.Start(first); err != nil {
		t.Fatalf("Start: %v", err)
	}
	driveSteps(t, front, robot.TorqueAction(0.05), 50)
	if _, err := logger.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Steps taken while no recording is active must not appear in the
	// next one.
	driveSteps(t, front, robot.Action{}, 30)

	second := filepath.Join(dir, "second.csv")
	if err := logger.Start(second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	driveSteps(t, front, robot.TorqueAction(0.05), 20)
	if _, err := logger.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	samples, err := ReadLog(second)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(samples) != 20 {
		t.Fatalf("read %d samples, want 20", len(samples))
	}
	if samples[0].Index != 80 {
		t.Errorf("first sample has index %d, want 80", samples[0].Index)
	}
}

func TestLogger_CountsDroppedRows(t *testing.T) {
	// A tiny history forces the buffer to wrap between drains.
	data, front := startRig(t, 10)
	logger := New(data)

	path := filepath.Join(t.TempDir(), "telemetry.csv")
	if err := logger.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}
	driveSteps(t, front, robot.TorqueAction(0.05), 500)

	dropped, err := logger.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if dropped == 0 {
		t.Error("no rows dropped although the buffer wrapped")
	}

	samples, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if got := len(samples) + dropped; got != 500 {
		t.Errorf("samples + dropped = %d, want 500", got)
	}
}

func TestLogger_StartStopErrors(t *testing.T) {
	data, _ := startRig(t, 100)
	logger := New(data)

	if _, err := logger.Stop(); err == nil {
		t.Error("Stop succeeded without a running recording")
	}

	path := filepath.Join(t.TempDir(), "telemetry.csv")
	if err := logger.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := logger.Start(path); err == nil {
		t.Error("second Start succeeded while recording")
	}
	if _, err := logger.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestReadLog_RejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLog(path); err == nil {
		t.Error("ReadLog accepted a file with a foreign header")
	}
}
