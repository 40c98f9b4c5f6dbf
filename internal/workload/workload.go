// Package workload loads YAML task definitions and turns them into coro tasks.
package workload

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Workload is the top-level document of a workload file.
type Workload struct {
	Name     string     `yaml:"name"`
	Capacity int        `yaml:"capacity,omitempty"` // 0 means use the configured default
	Lib      []string   `yaml:"lib,omitempty"`      // JavaScript prelude for every expression
	Tasks    []TaskSpec `yaml:"tasks"`
}

// TaskSpec describes one task and how many instances to start.
type TaskSpec struct {
	Name         string         `yaml:"name"`
	FreeOnFinish bool           `yaml:"free_on_finish,omitempty"`
	Autostart    *bool          `yaml:"autostart,omitempty"` // nil means true
	Count        int            `yaml:"count,omitempty"`     // 0 means 1
	Vars         map[string]any `yaml:"vars,omitempty"`
	Steps        []StepSpec     `yaml:"steps"`
}

// StartsAutomatically reports whether the task is started with the workload.
func (t TaskSpec) StartsAutomatically() bool {
	return t.Autostart == nil || *t.Autostart
}

// Instances returns the number of instances started at load.
func (t TaskSpec) Instances() int {
	if t.Count <= 0 {
		return 1
	}
	return t.Count
}

// StepSpec is one state of a task. Exactly one action field is set.
type StepSpec struct {
	Log   string   `yaml:"log,omitempty"`   // message template with $(expr) placeholders
	Wait  *float64 `yaml:"wait,omitempty"`  // seconds of accumulated tick time
	While string   `yaml:"while,omitempty"` // hold while the expression is true
	Exec  string   `yaml:"exec,omitempty"`  // run a script, then advance
	Spawn string   `yaml:"spawn,omitempty"` // start a new instance of the named task
	Stop  bool     `yaml:"stop,omitempty"`  // stop the running task
}

// Kind names the action of the step, or "" when none is set.
func (s StepSpec) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s StepSpec) kinds() []string {
	var k []string
	if s.Log != "" {
		k = append(k, "log")
	}
	if s.Wait != nil {
		k = append(k, "wait")
	}
	if s.While != "" {
		k = append(k, "while")
	}
	if s.Exec != "" {
		k = append(k, "exec")
	}
	if s.Spawn != "" {
		k = append(k, "spawn")
	}
	if s.Stop {
		k = append(k, "stop")
	}
	return k
}

// Task returns the named task spec.
func (w *Workload) Task(name string) (*TaskSpec, bool) {
	for i := range w.Tasks {
		if w.Tasks[i].Name == name {
			return &w.Tasks[i], true
		}
	}
	return nil, false
}

// Parse decodes a workload document and validates it.
func Parse(data []byte) (*Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workload: %w", err)
	}
	if apiErr := Validate(&w); apiErr != nil {
		return nil, apiErr
	}
	return &w, nil
}

// Load reads and parses a workload file.
func Load(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload %s: %w", path, err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}
