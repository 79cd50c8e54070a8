package formstep

import "sort"

// ResolveOrder produces the execution order for a task's steps.
//
// Each step carries a StepOrder and an optional DependsOnStep reference to
// another step's order. When the dependency mapping is well formed, steps
// are ordered with a topological sort so every step runs after the step it
// depends on. Ties between simultaneously-ready steps break on
// (StepOrder, ID) so the result is deterministic across runs.
//
// Malformed metadata never fails the call: duplicate StepOrder values,
// dangling or self-referential dependencies, and cycles all fall back to a
// plain ascending StepOrder sort. Legacy tasks predate the dependency
// column and must keep executing.
func ResolveOrder(steps []*FormStep) []*FormStep {
	if len(steps) <= 1 {
		return append([]*FormStep(nil), steps...)
	}

	byOrder := make(map[int]*FormStep, len(steps))
	for _, s := range steps {
		if _, dup := byOrder[s.StepOrder]; dup {
			return sortByStepOrder(steps)
		}
		byOrder[s.StepOrder] = s
	}

	children := make(map[int][]*FormStep, len(steps))
	indegree := make(map[int]int, len(steps))
	for _, s := range steps {
		indegree[s.StepOrder] = 0
	}
	for _, s := range steps {
		if s.DependsOnStep == nil {
			continue
		}
		dep := *s.DependsOnStep
		if dep == s.StepOrder {
			return sortByStepOrder(steps)
		}
		if _, ok := byOrder[dep]; !ok {
			return sortByStepOrder(steps)
		}
		children[dep] = append(children[dep], s)
		indegree[s.StepOrder]++
	}

	var ready []*FormStep
	for _, s := range steps {
		if indegree[s.StepOrder] == 0 {
			ready = append(ready, s)
		}
	}
	sortReady(ready)

	resolved := make([]*FormStep, 0, len(steps))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		resolved = append(resolved, next)

		for _, child := range children[next.StepOrder] {
			indegree[child.StepOrder]--
			if indegree[child.StepOrder] == 0 {
				ready = append(ready, child)
			}
		}
		sortReady(ready)
	}

	// A leftover node means a cycle.
	if len(resolved) != len(steps) {
		return sortByStepOrder(steps)
	}

	return resolved
}

func sortReady(steps []*FormStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].StepOrder != steps[j].StepOrder {
			return steps[i].StepOrder < steps[j].StepOrder
		}
		return steps[i].ID.String() < steps[j].ID.String()
	})
}

func sortByStepOrder(steps []*FormStep) []*FormStep {
	out := append([]*FormStep(nil), steps...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StepOrder != out[j].StepOrder {
			return out[i].StepOrder < out[j].StepOrder
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
