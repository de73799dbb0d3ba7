// Package scenarios loads YAML assignment scenarios and checks the engine's
// ranking against their expectations.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// Expected describes the ranking a scenario must produce. Nil fields are not
// checked.
type Expected struct {
	TopUnit string `yaml:"top_unit,omitempty"`
	Count   *int   `yaml:"count,omitempty"`
	// Acceptable lists the units passing the gate, in rank order.
	Acceptable []string `yaml:"acceptable,omitempty"`
	// Rejected lists units that must fail the gate.
	Rejected []string `yaml:"rejected,omitempty"`
}

type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Now pins the engine clock for break-interval rules.
	Now      *time.Time     `yaml:"now,omitempty"`
	Max      int            `yaml:"max,omitempty"`
	Incident model.Incident `yaml:"incident"`
	Units    []model.Unit   `yaml:"units"`
	Expected Expected       `yaml:"expected"`
}

// Load reads a single scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}
	return &sc, nil
}

// LoadDir reads every *.yaml file of dir in name order.
func LoadDir(dir string) ([]*Scenario, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Engine builds an engine for the scenario, pinning the clock when Now is
// set.
func (sc *Scenario) Engine(cfg assignment.Config) (*assignment.Engine, error) {
	var opts []assignment.Option
	if sc.Now != nil {
		now := *sc.Now
		opts = append(opts, assignment.WithClock(func() time.Time { return now }))
	}
	return assignment.NewEngine(cfg, opts...)
}
