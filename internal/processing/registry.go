// Package processing applies a declared, ordered sequence of named
// transformation steps to a tabular payload.
package processing

import "github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"

// StepFunc is the uniform signature every registered step implements:
// (payload, params) -> payload'. The source pipeline's duck-typed
// dispatch becomes a name-keyed function registry here.
type StepFunc func(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error)

// Registry maps step names to their implementations. It is open: new
// names may be added at any time without touching existing steps.
type Registry struct {
	steps map[string]StepFunc
}

// NewRegistry returns a registry pre-populated with every built-in
// processing step.
func NewRegistry() *Registry {
	r := &Registry{steps: map[string]StepFunc{}}
	registerBuiltinSteps(r)
	return r
}

// Register adds or replaces a named step implementation.
func (r *Registry) Register(name string, fn StepFunc) {
	r.steps[name] = fn
}

// Lookup returns the step registered under name, or (nil, false).
func (r *Registry) Lookup(name string) (StepFunc, bool) {
	fn, ok := r.steps[name]
	return fn, ok
}
