package main

import (
	"fmt"

	"jointcheck/pkg/phases"
)

type SelfTestCommand struct {
	rigOptions
}

func (c *SelfTestCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Joint Self Test"))
	fmt.Println()

	rig, err := c.open(false)
	if err != nil {
		return err
	}
	defer rig.close()

	if err := phases.SelfTest(rig.frontend, rig.log); err != nil {
		fmt.Println(failStyle.Render("FAILED: " + err.Error()))
		return err
	}

	fmt.Println(successStyle.Render("Self test successful."))
	return nil
}
