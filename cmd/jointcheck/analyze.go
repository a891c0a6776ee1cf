package main

import (
	"fmt"

	"jointcheck/pkg/analyze"
	"jointcheck/pkg/telemetry"
)

type AnalyzeCommand struct {
	Plot string `long:"plot" description:"Write PNG plots using this base file name"`

	Args struct {
		LogFile string `positional-arg-name:"log-file" required:"yes" description:"Telemetry CSV file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *AnalyzeCommand) Execute(args []string) error {
	samples, err := telemetry.ReadLog(c.Args.LogFile)
	if err != nil {
		return err
	}

	summary, err := analyze.Summarize(samples)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Telemetry Summary"))
	fmt.Printf("Samples:   %d (indices %d..%d)\n", summary.Samples, summary.FirstIndex, summary.LastIndex)
	fmt.Printf("Duration:  %.1f s\n", float64(summary.DurationMs)/1000)
	if summary.FirstIndex != 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf(
			"Log starts at time index %d; earlier steps were not recorded.", summary.FirstIndex)))
	}
	if err := analyze.CheckComplete(samples); err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("Incomplete log: %d missing steps", summary.Gaps)))
		fmt.Println(dimStyle.Render(err.Error()))
	} else {
		fmt.Println(successStyle.Render("Log is complete."))
	}
	fmt.Println()

	printRange := func(name string, r analyze.Range) {
		fmt.Printf("%-10s min %9.4f  max %9.4f  mean %9.4f\n", name, r.Min, r.Max, r.Mean)
	}
	printRange("Position", summary.Position)
	printRange("Velocity", summary.Velocity)
	printRange("Torque", summary.Torque)

	if c.Plot != "" {
		files, err := analyze.Plot(samples, c.Plot)
		if err != nil {
			return err
		}
		fmt.Println()
		for _, f := range files {
			fmt.Printf("Wrote %s\n", f)
		}
	}
	return nil
}
