package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"jointcheck/pkg/phases"
)

type EnduranceCommand struct {
	rigOptions

	Cycles int `long:"cycles" description:"Number of random targets to visit (0 = until interrupted)"`
}

func (c *EnduranceCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Joint Endurance Test"))
	fmt.Println(dimStyle.Render("Press Ctrl+C to stop."))
	fmt.Println()

	rig, err := c.open(false)
	if err != nil {
		return err
	}
	defer rig.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cycles, err := phases.Endurance(ctx, rig.frontend, phases.EnduranceConfig{
		Cycles: c.Cycles,
		Lower:  rig.cfg.SoftPositionLimitsLower,
		Upper:  rig.cfg.SoftPositionLimitsUpper,
	}, rig.log)
	if err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAILED after %d cycles: %v", cycles, err)))
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Endurance test finished after %d cycles.", cycles)))
	return nil
}
