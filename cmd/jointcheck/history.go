package main

import (
	"context"
	"fmt"
	"time"

	"jointcheck/pkg/report"
)

type HistoryCommand struct {
	ResultsDB string `long:"results-db" default:"jointcheck.db" description:"SQLite file with run history"`
	Limit     int    `long:"limit" default:"10" description:"Number of runs to show"`
}

func (c *HistoryCommand) Execute(args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := report.Open(ctx, c.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Println(headerStyle.Render("Recent Acceptance Runs"))
	for _, run := range runs {
		status := successStyle.Render("PASS")
		if !run.Passed {
			status = failStyle.Render("FAIL")
		}
		fmt.Printf("%s  %s  %-10s  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), status, run.Rig,
			dimStyle.Render(run.ID))
		if !run.Passed {
			fmt.Printf("      %s\n", run.FailureReason)
		}
	}
	return nil
}
