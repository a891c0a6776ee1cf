package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"jointcheck/pkg/phases"
	"jointcheck/pkg/report"
	"jointcheck/pkg/telemetry"
)

type RunCommand struct {
	rigOptions

	Iterations int    `long:"iterations" default:"1" description:"Number of times the scenario is repeated"`
	Rig        string `long:"rig" default:"onejoint" description:"Rig name recorded in the results database"`
	ResultsDB  string `long:"results-db" description:"SQLite file for run history (disabled when empty)"`
	NoProgress bool   `long:"no-progress" description:"Disable the progress bar"`

	Args struct {
		LogDir string `positional-arg-name:"log-dir" description:"Telemetry output directory (default /tmp)"`
	} `positional-args:"yes"`
}

func (c *RunCommand) Execute(args []string) error {
	logDir := c.Args.LogDir
	if logDir == "" {
		logDir = "/tmp"
	}
	logPath := filepath.Join(logDir, "one_joint_test_data.csv")

	fmt.Println(headerStyle.Render("Joint Acceptance Test"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	rig, err := c.open(false)
	if err != nil {
		return err
	}
	defer rig.close()

	runner := &phases.Runner{
		Robot:      rig.frontend,
		Log:        rig.log,
		Telemetry:  telemetry.New(rig.data),
		Iterations: c.Iterations,
		Progress:   !c.NoProgress,
	}

	result, runErr := runner.Run(logPath)

	if c.ResultsDB != "" {
		if err := c.saveResult(result); err != nil {
			rig.log.Warnw("failed to record run", "error", err)
		}
	}

	fmt.Println()
	if runErr != nil {
		fmt.Println(failStyle.Render("FAILED: " + runErr.Error()))
		return runErr
	}
	fmt.Println(successStyle.Render("Acceptance test passed."))
	fmt.Printf("Telemetry written to %s\n", logPath)
	return nil
}

func (c *RunCommand) saveResult(result *phases.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := report.Open(ctx, c.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveRun(ctx, report.Run{
		ID:             report.NewRunID(),
		Rig:            c.Rig,
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
		TorqueLevelsNm: result.TorqueLevelsNm,
		Passed:         result.Passed,
		FailureReason:  result.FailureReason,
		LogPath:        result.LogPath,
	})
}
