// Package scheduler turns a platform dependency graph into ordered
// parallel execution groups.
package scheduler

import "sort"

// Node is one platform's scheduling input: its name, declared
// dependencies, and tie-break priority (lower runs first within a group).
type Node struct {
	Name      string
	DependsOn []string
	Priority  int
}

// Scheduler holds the dependency graph built from a set of nodes and
// answers grouping and readiness questions against it.
type Scheduler struct {
	nodes   map[string]Node
	forward map[string][]string // name -> its dependencies
	reverse map[string][]string // name -> platforms that depend on it
	order   []string
}

// New builds a Scheduler from nodes, validating that every declared
// dependency refers to a known node.
func New(nodes []Node) (*Scheduler, error) {
	s := &Scheduler{
		nodes:   map[string]Node{},
		forward: map[string][]string{},
		reverse: map[string][]string{},
	}
	for _, n := range nodes {
		s.nodes[n.Name] = n
		s.order = append(s.order, n.Name)
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := s.nodes[dep]; !ok {
				return nil, &InvalidGroups{Msg: "platform " + n.Name + " depends on unknown platform " + dep}
			}
			s.forward[n.Name] = append(s.forward[n.Name], dep)
			s.reverse[dep] = append(s.reverse[dep], n.Name)
		}
	}
	return s, nil
}

// ScheduleGroups runs Kahn's algorithm over the dependency DAG, returning
// ordered execution groups where group i's members' dependencies are all
// contained in groups 0..i-1. Returns CircularDependency if the graph has
// a cycle. If manualGroups is non-empty, it is validated as a refinement
// of the dependency graph (a conflict is rejected rather than silently
// reconciled) and returned directly instead of the natural frontier
// grouping.
func (s *Scheduler) ScheduleGroups(manualGroups [][]string) ([][]string, error) {
	if err := s.detectCycle(); err != nil {
		return nil, err
	}
	if len(manualGroups) > 0 {
		if err := s.validateManualGroups(manualGroups); err != nil {
			return nil, err
		}
		return manualGroups, nil
	}
	return s.naturalGroups(), nil
}

func (s *Scheduler) detectCycle() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		path = append(path, name)
		for _, dep := range s.forward[name] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				cycle := append(append([]string{}, path...), dep)
				return &CircularDependency{Cycle: cycle}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for _, name := range s.order {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// naturalGroups produces the Kahn's-algorithm frontier groups, breaking
// ties within a group by ascending priority then name for determinism.
func (s *Scheduler) naturalGroups() [][]string {
	inDegree := map[string]int{}
	for _, name := range s.order {
		inDegree[name] = len(s.forward[name])
	}

	var frontier []string
	for _, name := range s.order {
		if inDegree[name] == 0 {
			frontier = append(frontier, name)
		}
	}

	var groups [][]string
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			ni, nj := s.nodes[frontier[i]], s.nodes[frontier[j]]
			if ni.Priority != nj.Priority {
				return ni.Priority < nj.Priority
			}
			return ni.Name < nj.Name
		})
		groups = append(groups, frontier)

		var next []string
		for _, name := range frontier {
			for _, dependent := range s.reverse[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		frontier = next
	}
	return groups
}

// validateManualGroups checks that no platform in a group depends on
// another member of the same group, and that the group ordering respects
// cross-group dependencies.
func (s *Scheduler) validateManualGroups(groups [][]string) error {
	groupIndex := map[string]int{}
	seen := map[string]bool{}
	for gi, group := range groups {
		for _, name := range group {
			if _, ok := s.nodes[name]; !ok {
				return &InvalidGroups{Msg: "unknown platform " + name}
			}
			if seen[name] {
				return &InvalidGroups{Msg: "platform " + name + " listed more than once"}
			}
			seen[name] = true
			groupIndex[name] = gi
		}
	}
	for _, name := range s.order {
		if !seen[name] {
			return &InvalidGroups{Msg: "platform " + name + " missing from parallel_groups"}
		}
	}
	for _, name := range s.order {
		for _, dep := range s.forward[name] {
			if groupIndex[dep] >= groupIndex[name] {
				return &InvalidGroups{Msg: "platform " + name + " depends on " + dep + " which is not in an earlier group"}
			}
		}
	}
	return nil
}

// CanExecute reports whether every dependency of name is present in
// completed, supporting event-driven scheduling.
func (s *Scheduler) CanExecute(name string, completed map[string]bool) bool {
	for _, dep := range s.forward[name] {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// Dependents returns the platforms that declare name as a dependency.
func (s *Scheduler) Dependents(name string) []string {
	return s.reverse[name]
}

// Dependencies returns name's declared dependencies.
func (s *Scheduler) Dependencies(name string) []string {
	return s.forward[name]
}

// TransitiveDependents returns every platform that depends, directly or
// indirectly, on name — used by the orchestrator's continue-on-failure
// skip propagation.
func (s *Scheduler) TransitiveDependents(name string) []string {
	visited := map[string]bool{}
	var out []string
	var walk func(string)
	walk = func(n string) {
		for _, dependent := range s.reverse[n] {
			if !visited[dependent] {
				visited[dependent] = true
				out = append(out, dependent)
				walk(dependent)
			}
		}
	}
	walk(name)
	return out
}
