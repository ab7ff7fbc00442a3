// Package config loads the YAML run configuration describing a case and the
// diagnostics to perform.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level diagnostics configuration.
type Config struct {
	Case          Case                 `yaml:"Case"`
	Climo         Climo                `yaml:"Climo"`
	Obs           Obs                  `yaml:"Obs"`
	Basins        Basins               `yaml:"Basins"`
	Sections      []Section            `yaml:"Sections"`
	ObservedFlows map[string]FlowRange `yaml:"ObservedFlows"`
}

// Case describes the model run being diagnosed.
type Case struct {
	Name       string `yaml:"name"`
	StaticFile string `yaml:"static_file"`
	ClimoDir   string `yaml:"climo_dir"`
}

// Climo bounds the climatology and names the diagnosed variables.
type Climo struct {
	StartYear int      `yaml:"start_year"`
	EndYear   int      `yaml:"end_year"`
	Variables []string `yaml:"variables"`
}

// Obs points at the observational climatology sources.
type Obs struct {
	PHCTemp string `yaml:"phc_temp"`
	PHCSalt string `yaml:"phc_salt"`
}

// Basins points at the basin mask set.
type Basins struct {
	File     string `yaml:"file"`
	Variable string `yaml:"variable"`
}

// Section describes one transport section time series.
type Section struct {
	Label    string     `yaml:"label"`
	File     string     `yaml:"file"`
	Variable string     `yaml:"variable"`
	YLim     *[2]float64 `yaml:"ylim"`
}

// FlowRange is an observed transport reference: either a scalar value or a
// (min, max) range.
type FlowRange struct {
	Min   float64
	Max   float64
	Range bool
}

// UnmarshalYAML accepts either a scalar or a two-element sequence.
func (f *FlowRange) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("observed flow: %w", err)
		}
		f.Min, f.Max, f.Range = v, v, false
		return nil
	case yaml.SequenceNode:
		var vals []float64
		if err := value.Decode(&vals); err != nil {
			return fmt.Errorf("observed flow: %w", err)
		}
		if len(vals) != 2 {
			return fmt.Errorf("observed flow: expected 2 values, got %d", len(vals))
		}
		f.Min, f.Max = vals[0], vals[1]
		if f.Min > f.Max {
			f.Min, f.Max = f.Max, f.Min
		}
		f.Range = true
		return nil
	default:
		return fmt.Errorf("observed flow: expected scalar or sequence")
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Case.Name == "" {
		c.Case.Name = "test"
	}
	if c.Climo.EndYear == 0 {
		c.Climo.EndYear = 1000
	}
	if len(c.Climo.Variables) == 0 {
		c.Climo.Variables = []string{"thetao", "so"}
	}
	if c.Basins.Variable == "" {
		c.Basins.Variable = "basin"
	}
}

// Validate checks the parts every run needs.
func (c *Config) Validate() error {
	if c.Case.StaticFile == "" {
		return fmt.Errorf("Case.static_file is required")
	}
	if c.Case.ClimoDir == "" {
		return fmt.Errorf("Case.climo_dir is required")
	}
	if c.Climo.StartYear > c.Climo.EndYear {
		return fmt.Errorf("Climo.start_year %d is after end_year %d", c.Climo.StartYear, c.Climo.EndYear)
	}
	for i, s := range c.Sections {
		if s.Label == "" {
			return fmt.Errorf("Sections[%d]: label is required", i)
		}
		if s.File == "" {
			return fmt.Errorf("Sections[%d] (%s): file is required", i, s.Label)
		}
		if s.Variable == "" {
			return fmt.Errorf("Sections[%d] (%s): variable is required", i, s.Label)
		}
	}
	return nil
}
