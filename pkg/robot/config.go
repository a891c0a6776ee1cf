package robot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that is written as a string like "1ms"
// in YAML files.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Gains holds PD controller gains.
type Gains struct {
	KP float64 `yaml:"kp"`
	KD float64 `yaml:"kd"`
}

// CalibrationConfig configures the homing procedure run by
// Backend.Initialize.
type CalibrationConfig struct {
	// EndstopSearchTorqueNm is the constant torque applied while
	// searching for the end stop.  Its sign selects which end stop is
	// used for homing.
	EndstopSearchTorqueNm float64 `yaml:"endstop_search_torque_Nm"`
	// MoveSteps is the number of steps used to move to the initial
	// position after homing.
	MoveSteps int `yaml:"move_steps"`
}

// Config describes a test rig.
type Config struct {
	// StepPeriod is the duration of one control step.
	StepPeriod Duration `yaml:"step_period"`

	MaxTorqueNm float64 `yaml:"max_torque_Nm"`

	HasEndstop  bool              `yaml:"has_endstop"`
	Calibration CalibrationConfig `yaml:"calibration"`

	// HomeOffsetRad is the position of the homing end stop in the
	// zeroed frame.  After homing, the end stop found during the
	// search reads as this value.
	HomeOffsetRad      float64 `yaml:"home_offset_rad"`
	InitialPositionRad float64 `yaml:"initial_position_rad"`

	PositionControlGains Gains `yaml:"position_control_gains"`
	// SafetyKD is a velocity damping gain applied to every command,
	// including plain torque commands.
	SafetyKD float64 `yaml:"safety_kd"`

	// Hard limits stop the backend when exceeded.  Soft limits clamp
	// position commands.
	HardPositionLimitsLower float64 `yaml:"hard_position_limits_lower"`
	HardPositionLimitsUpper float64 `yaml:"hard_position_limits_upper"`
	SoftPositionLimitsLower float64 `yaml:"soft_position_limits_lower"`
	SoftPositionLimitsUpper float64 `yaml:"soft_position_limits_upper"`

	MoveToPositionToleranceRad float64 `yaml:"move_to_position_tolerance_rad"`
}

// DefaultConfig returns the configuration of the standard one-joint
// high-load rig.
func DefaultConfig() *Config {
	return &Config{
		StepPeriod:  Duration(time.Millisecond),
		MaxTorqueNm: 2.7,
		HasEndstop:  true,
		Calibration: CalibrationConfig{
			EndstopSearchTorqueNm: 0.3,
			MoveSteps:             500,
		},
		HomeOffsetRad:        2.9,
		InitialPositionRad:   0,
		PositionControlGains: Gains{KP: 10, KD: 0.1},
		SafetyKD:             0.02,

		HardPositionLimitsLower: -4.0,
		HardPositionLimitsUpper: 4.0,
		SoftPositionLimitsLower: -2.7,
		SoftPositionLimitsUpper: 2.7,

		MoveToPositionToleranceRad: 0.1,
	}
}

// LoadConfig reads a rig configuration from a YAML file.  Fields not
// present in the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.StepPeriod <= 0 {
		return fmt.Errorf("config: step_period must be positive, got %v", c.StepPeriod.Duration())
	}
	if c.MaxTorqueNm <= 0 {
		return fmt.Errorf("config: max_torque_Nm must be positive, got %v", c.MaxTorqueNm)
	}
	if c.HardPositionLimitsLower >= c.HardPositionLimitsUpper {
		return fmt.Errorf("config: hard position limits are inverted")
	}
	if c.SoftPositionLimitsLower >= c.SoftPositionLimitsUpper {
		return fmt.Errorf("config: soft position limits are inverted")
	}
	return nil
}
