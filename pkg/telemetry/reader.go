package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Sample is one row of a telemetry log.
type Sample struct {
	Index           int64
	TimestampMs     int64
	Position        float64
	Velocity        float64
	Torque          float64
	DesiredTorque   float64
	DesiredPosition float64
}

// ReadLog reads a telemetry CSV file written by Logger.
func ReadLog(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read log header: %w", err)
	}
	if len(header) != len(Header) {
		return nil, fmt.Errorf("unexpected log header: %v", header)
	}

	var samples []Sample
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}

		s, err := parseSample(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func parseSample(record []string) (Sample, error) {
	var s Sample
	var err error

	if s.Index, err = strconv.ParseInt(record[0], 10, 64); err != nil {
		return s, fmt.Errorf("parse timeindex %q: %w", record[0], err)
	}
	if s.TimestampMs, err = strconv.ParseInt(record[1], 10, 64); err != nil {
		return s, fmt.Errorf("parse timestamp %q: %w", record[1], err)
	}

	fields := []struct {
		dst  *float64
		name string
		raw  string
	}{
		{&s.Position, "position", record[2]},
		{&s.Velocity, "velocity", record[3]},
		{&s.Torque, "torque", record[4]},
		{&s.DesiredTorque, "desired_torque", record[5]},
		{&s.DesiredPosition, "desired_position", record[6]},
	}
	for _, f := range fields {
		if *f.dst, err = strconv.ParseFloat(f.raw, 64); err != nil {
			return s, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
	}
	return s, nil
}
