package models

import "fmt"

// Task is one kind of evaluation in a multitask campaign. The first NInit
// trials of each task run in task order, after which the tasks alternate in
// blocks of NOpt trials.
type Task struct {
	Name  string `json:"name" yaml:"name"`
	NInit int    `json:"n_init" yaml:"n_init"`
	NOpt  int    `json:"n_opt" yaml:"n_opt"`
}

// ValidateTasks checks names are unique and every task gets at least one
// trial per cycle.
func ValidateTasks(tasks []Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.Name == "" {
			return fmt.Errorf("task name cannot be empty")
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("duplicate task %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.NInit < 0 {
			return fmt.Errorf("task %s: n_init cannot be negative, got %d", t.Name, t.NInit)
		}
		if t.NOpt <= 0 {
			return fmt.Errorf("task %s: n_opt must be positive, got %d", t.Name, t.NOpt)
		}
	}
	return nil
}
