package processing

import "github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"

type stepInvocation struct {
	name   string
	fn     StepFunc
	params map[string]interface{}
}

// Pipeline is a built, ordered chain of steps ready to Process a payload.
type Pipeline struct {
	registry *Registry
	steps    []stepInvocation
}

// NewPipeline builds an empty pipeline bound to registry.
func NewPipeline(registry *Registry) *Pipeline {
	return &Pipeline{registry: registry}
}

// AddStep resolves name against the registry immediately, returning
// UnknownStep at construction time rather than deferring the failure to
// Process.
func (p *Pipeline) AddStep(name string, params map[string]interface{}) (*Pipeline, error) {
	fn, ok := p.registry.Lookup(name)
	if !ok {
		return p, &UnknownStep{Name: name}
	}
	p.steps = append(p.steps, stepInvocation{name: name, fn: fn, params: params})
	return p, nil
}

// Process runs every configured step in order, threading the returned
// payload through each. No step mutates the caller's payload in place:
// each step returns its own new payload.
func (p *Pipeline) Process(payload *tabular.Payload) (*tabular.Payload, error) {
	current := payload
	for _, step := range p.steps {
		next, err := step.fn(current, step.params)
		if err != nil {
			return nil, &StepFailed{Name: step.name, Cause: err}
		}
		current = next
	}
	return current, nil
}
