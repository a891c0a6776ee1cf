package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Run       RunCommand       `command:"run" description:"Run the full acceptance-test sequence"`
	SelfTest  SelfTestCommand  `command:"selftest" description:"Check that reachable positions are reached and unreachable ones are not"`
	Endurance EnduranceCommand `command:"endurance" description:"Cycle the joint through random positions"`
	Friction  FrictionCommand  `command:"friction" description:"Estimate joint friction with constant-velocity sweeps"`
	Analyze   AnalyzeCommand   `command:"analyze" description:"Summarize and plot a telemetry log"`
	History   HistoryCommand   `command:"history" description:"List recent acceptance runs"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "jointcheck - acceptance tests for a single-joint actuator test rig"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
