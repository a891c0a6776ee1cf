package analyze

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"jointcheck/pkg/telemetry"
)

// Plot renders position, velocity and torque over time into PNG files
// next to the given base path: base_position.png, base_velocity.png and
// base_torque.png.  It returns the written file names.
func Plot(samples []telemetry.Sample, base string) ([]string, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("analyze: log contains no samples")
	}

	base = strings.TrimSuffix(base, filepath.Ext(base))

	quantities := []struct {
		name  string
		label string
		value func(telemetry.Sample) float64
	}{
		{"position", "Position [rad]", func(s telemetry.Sample) float64 { return s.Position }},
		{"velocity", "Velocity [rad/s]", func(s telemetry.Sample) float64 { return s.Velocity }},
		{"torque", "Torque [Nm]", func(s telemetry.Sample) float64 { return s.Torque }},
	}

	var files []string
	for _, q := range quantities {
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i].X = float64(s.Index)
			pts[i].Y = q.value(s)
		}

		p := plot.New()
		p.Title.Text = q.label
		p.X.Label.Text = "time index"
		p.Y.Label.Text = q.label

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %w", q.name, err)
		}
		p.Add(line)
		p.Add(plotter.NewGrid())

		file := fmt.Sprintf("%s_%s.png", base, q.name)
		if err := p.Save(12*vg.Inch, 4*vg.Inch, file); err != nil {
			return nil, fmt.Errorf("save %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}
