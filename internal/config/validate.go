package config

import (
	"fmt"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
)

// Validate rejects a configuration whose declared parallel_groups
// contradict the platforms' depends_on lists. Rather than attempting to
// reconcile a conflict between the two, this rejects the combination
// outright at load time, since a silent reconciliation would hide a
// config authoring mistake.
func (c *OrchestratorConfig) Validate() error {
	names := map[string]bool{}
	for _, p := range c.Platforms {
		if names[p.Name] {
			return &errs.ConfigError{Field: "platforms", Msg: fmt.Sprintf("duplicate platform %q", p.Name)}
		}
		names[p.Name] = true
	}
	for _, p := range c.Platforms {
		for _, dep := range p.DependsOn {
			if !names[dep] {
				return &errs.ConfigError{Field: "platforms." + p.Name + ".depends_on", Msg: fmt.Sprintf("unknown platform %q", dep)}
			}
		}
	}

	if err := c.detectDependsOnCycle(); err != nil {
		return err
	}

	if len(c.ParallelGroups) == 0 {
		return nil
	}

	groupIndex := map[string]int{}
	seen := map[string]bool{}
	for gi, group := range c.ParallelGroups {
		for _, name := range group {
			if !names[name] {
				return &errs.ConfigError{Field: "parallel_groups", Msg: fmt.Sprintf("unknown platform %q", name)}
			}
			if seen[name] {
				return &errs.ConfigError{Field: "parallel_groups", Msg: fmt.Sprintf("platform %q listed in more than one group", name)}
			}
			seen[name] = true
			groupIndex[name] = gi
		}
	}
	for name := range names {
		if !seen[name] {
			return &errs.ConfigError{Field: "parallel_groups", Msg: fmt.Sprintf("platform %q missing from parallel_groups", name)}
		}
	}

	for _, p := range c.Platforms {
		for _, dep := range p.DependsOn {
			if groupIndex[dep] >= groupIndex[p.Name] {
				return &errs.ConfigError{
					Field: "parallel_groups",
					Msg: fmt.Sprintf(
						"platform %q depends on %q but parallel_groups does not place %q in an earlier group",
						p.Name, dep, dep,
					),
				}
			}
		}
	}
	return nil
}

// detectDependsOnCycle walks the platforms' depends_on graph independent of
// parallel_groups, so a cycle is rejected at load time even when the
// document relies entirely on natural (dependency-order) scheduling.
func (c *OrchestratorConfig) detectDependsOnCycle() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	deps := map[string][]string{}
	for _, p := range c.Platforms {
		deps[p.Name] = p.DependsOn
	}

	color := map[string]int{}
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		path = append(path, name)
		for _, dep := range deps[name] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				cycle := append(append([]string{}, path...), dep)
				return &errs.ConfigError{Field: "platforms.depends_on", Msg: fmt.Sprintf("dependency cycle: %v", cycle)}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for _, p := range c.Platforms {
		if color[p.Name] == white {
			if err := visit(p.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
