package main

import (
	"fmt"

	"jointcheck/pkg/phases"
)

type FrictionCommand struct {
	rigOptions

	Window int `long:"window" default:"1000" description:"Number of steps averaged per velocity"`
}

func (c *FrictionCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Joint Friction Calibration"))
	fmt.Println(dimStyle.Render("Requires a rig with the end stops removed."))
	fmt.Println()

	// Homing against an end stop is not possible on this rig.
	rig, err := c.open(true)
	if err != nil {
		return err
	}
	defer rig.close()

	result, err := phases.CalibrateFriction(rig.frontend, phases.FrictionConfig{
		Window:     c.Window,
		StepPeriod: rig.cfg.StepPeriod.Duration(),
	}, rig.log)
	if err != nil {
		fmt.Println(failStyle.Render("FAILED: " + err.Error()))
		return err
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Measurements"))
	for _, s := range result.Samples {
		fmt.Printf("  %8.3f rad/s  applied %7.3f Nm  measured %7.3f Nm\n",
			s.Velocity, s.AppliedTorque, s.MeasuredTorque)
	}
	fmt.Println()
	fmt.Printf("Viscous friction: %.5f Nm s/rad\n", result.ViscousCoefficient)
	fmt.Printf("Coulomb friction: %.5f Nm\n", result.CoulombTorque)
	return nil
}
