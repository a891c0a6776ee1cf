package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"jointcheck/pkg/driver"
	"jointcheck/pkg/robot"
	"jointcheck/pkg/sim"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// rigOptions are the connection flags shared by all commands that talk
// to a rig.
type rigOptions struct {
	Config  string `long:"config" description:"Rig configuration file (YAML)"`
	Sim     bool   `long:"sim" description:"Drive a simulated joint instead of hardware"`
	Port    string `long:"port" default:"/dev/ttyUSB0" description:"Serial port of the servo bus"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable debug logging"`
}

// rig bundles an initialized backend with its frontend.
type rig struct {
	cfg      *robot.Config
	data     *robot.Data
	frontend *robot.Frontend
	backend  *robot.Backend
	log      *zap.SugaredLogger
}

// open loads the configuration, builds the driver and homes the joint.
// With noEndstops the end-stop homing is skipped, for rigs where the
// stops have been removed.
func (o *rigOptions) open(noEndstops bool) (*rig, error) {
	log, err := newLogger(o.Verbose)
	if err != nil {
		return nil, err
	}

	cfg := robot.DefaultConfig()
	if o.Config != "" {
		cfg, err = robot.LoadConfig(o.Config)
		if err != nil {
			return nil, err
		}
	}
	if noEndstops {
		cfg.HasEndstop = false
	}

	var drv robot.Driver
	if o.Sim {
		params := sim.DefaultParams()
		params.DT = cfg.StepPeriod.Duration().Seconds()
		params.MaxTorque = cfg.MaxTorqueNm
		if !cfg.HasEndstop {
			params.EndstopPosition = 0
		}
		drv = sim.New(params)
	} else {
		drv, err = driver.NewFeetech(driver.DefaultFeetechConfig(o.Port))
		if err != nil {
			return nil, fmt.Errorf("connect to rig: %w", err)
		}
	}

	data := robot.NewData(0)
	backend := robot.NewBackend(data, drv, cfg, robot.WithLogger(log))
	if err := backend.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize backend: %w", err)
	}
	log.Info("initialization finished")

	return &rig{
		cfg:      cfg,
		data:     data,
		frontend: robot.NewFrontend(data),
		backend:  backend,
		log:      log,
	}, nil
}

func (r *rig) close() {
	r.backend.Stop()
	r.log.Sync()
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}
