package scheduler

import "strings"

// CircularDependency reports a cycle detected in the platform dependency
// graph. Scheduling never begins when this is returned; the orchestrator
// exits with ConfigError before starting any platform.
type CircularDependency struct {
	Cycle []string
}

func (e *CircularDependency) Error() string {
	return "scheduler: circular dependency detected: " + strings.Join(e.Cycle, " -> ")
}

// InvalidGroups reports a manually supplied parallel_groups partition
// that is not a valid refinement of the dependency graph.
type InvalidGroups struct {
	Msg string
}

func (e *InvalidGroups) Error() string {
	return "scheduler: invalid parallel_groups: " + e.Msg
}
