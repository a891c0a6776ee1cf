// Package telemetry records control-step data to CSV files and reads
// them back for analysis.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"jointcheck/pkg/robot"
)

// Header is the column layout of a telemetry log.
var Header = []string{
	"timeindex",
	"timestamp_ms",
	"position",
	"velocity",
	"torque",
	"desired_torque",
	"desired_position",
}

// drainInterval is how often the logger copies new rows out of the
// shared buffer.  It must stay well below the time the buffer needs to
// wrap around (history length times step period).
const drainInterval = 10 * time.Millisecond

// Logger samples the shared control-plane buffer and writes one CSV row
// per control step.  Start and Stop may be called multiple times, once
// per recording.
type Logger struct {
	data *robot.Data

	mu      sync.Mutex
	file    *os.File
	w       *csv.Writer
	next    robot.TimeIndex
	dropped int
	stop    chan struct{}
	done    chan struct{}
}

// New creates a logger reading from data.
func New(data *robot.Data) *Logger {
	return &Logger{data: data}
}

// Start begins recording to the given file, starting with the next
// unprocessed time index.
func (l *Logger) Start(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return fmt.Errorf("telemetry: logger already running")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	l.file = f
	l.w = csv.NewWriter(f)
	if err := l.w.Write(Header); err != nil {
		f.Close()
		l.file = nil
		return fmt.Errorf("write log header: %w", err)
	}

	l.next = l.data.CurrentIndex() + 1
	l.dropped = 0
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
	return nil
}

// Stop finishes the recording and closes the file.  It returns the
// number of rows that were lost because the logger fell behind the
// buffer, along with any write error.
func (l *Logger) Stop() (dropped int, err error) {
	l.mu.Lock()
	if l.file == nil {
		l.mu.Unlock()
		return 0, fmt.Errorf("telemetry: logger not running")
	}
	stop, done := l.stop, l.done
	l.mu.Unlock()

	close(stop)
	<-done

	l.mu.Lock()
	defer l.mu.Unlock()

	l.w.Flush()
	err = l.w.Error()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	l.w = nil
	return l.dropped, err
}

func (l *Logger) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			l.drain()
			return
		case <-ticker.C:
			l.drain()
			if l.data.Stopped() {
				return
			}
		}
	}
}

// drain copies all newly available rows into the CSV writer.
func (l *Logger) drain() {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.data.CurrentIndex()

	// Skip rows that have already been overwritten.
	if oldest := last - robot.TimeIndex(l.data.HistoryLength()) + 1; l.next < oldest {
		l.dropped += int(oldest - l.next)
		l.next = oldest
	}

	for ; l.next <= last; l.next++ {
		row, err := l.data.Row(l.next)
		if err != nil {
			l.dropped++
			continue
		}
		l.w.Write(formatRow(row))
	}
	l.w.Flush()
}

func formatRow(row robot.Row) []string {
	var desiredTorque, desiredPosition float64
	switch row.Desired.Mode {
	case robot.ModeTorque:
		desiredTorque = row.Desired.Torque
		desiredPosition = row.Observation.Position
	case robot.ModePosition:
		desiredPosition = row.Desired.Position
		desiredTorque = row.Applied.Torque
	default:
		desiredPosition = row.Observation.Position
	}

	return []string{
		strconv.FormatInt(int64(row.Index), 10),
		strconv.FormatInt(row.Stamp.UnixMilli(), 10),
		formatFloat(row.Observation.Position),
		formatFloat(row.Observation.Velocity),
		formatFloat(row.Observation.Torque),
		formatFloat(desiredTorque),
		formatFloat(desiredPosition),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}
