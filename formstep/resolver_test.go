package formstep

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(order int, dependsOn *int) *FormStep {
	return &FormStep{
		ID:            uuid.New(),
		TaskID:        uuid.New(),
		StepOrder:     order,
		DependsOnStep: dependsOn,
		PageURL:       "https://example.com",
		FormSelector:  "#form",
	}
}

func dep(order int) *int { return &order }

func orders(steps []*FormStep) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.StepOrder
	}
	return out
}

func TestResolveOrder_NoDependencies(t *testing.T) {
	steps := []*FormStep{step(3, nil), step(1, nil), step(2, nil)}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{1, 2, 3}, orders(resolved))
}

func TestResolveOrder_DependencyReordersSteps(t *testing.T) {
	// Step 1 depends on step 3, so 3 must run first despite its order.
	steps := []*FormStep{
		step(1, dep(3)),
		step(2, nil),
		step(3, nil),
	}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{2, 3, 1}, orders(resolved))
}

func TestResolveOrder_ChainExecutesInDependencyOrder(t *testing.T) {
	steps := []*FormStep{
		step(1, dep(2)),
		step(2, dep(3)),
		step(3, nil),
	}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{3, 2, 1}, orders(resolved))
}

func TestResolveOrder_EveryStepAfterItsDependency(t *testing.T) {
	steps := []*FormStep{
		step(5, dep(1)),
		step(1, nil),
		step(4, dep(1)),
		step(2, dep(4)),
		step(3, nil),
	}

	resolved := ResolveOrder(steps)
	require.Len(t, resolved, len(steps))

	position := make(map[int]int)
	for i, s := range resolved {
		position[s.StepOrder] = i
	}
	for _, s := range steps {
		if s.DependsOnStep != nil {
			assert.Greater(t, position[s.StepOrder], position[*s.DependsOnStep],
				"step %d must come after step %d", s.StepOrder, *s.DependsOnStep)
		}
	}
}

func TestResolveOrder_StableAcrossCalls(t *testing.T) {
	steps := []*FormStep{
		step(2, dep(1)),
		step(1, nil),
		step(3, dep(1)),
		step(4, dep(1)),
	}

	first := orders(ResolveOrder(steps))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, orders(ResolveOrder(steps)))
	}
}

func TestResolveOrder_CycleFallsBackToLinear(t *testing.T) {
	steps := []*FormStep{
		step(1, dep(2)),
		step(2, dep(1)),
		step(3, nil),
	}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{1, 2, 3}, orders(resolved))
}

func TestResolveOrder_DuplicateOrderFallsBackToLinear(t *testing.T) {
	steps := []*FormStep{
		step(2, dep(1)),
		step(2, nil),
		step(1, nil),
	}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{1, 2, 2}, orders(resolved))
}

func TestResolveOrder_DanglingDependencyFallsBackToLinear(t *testing.T) {
	steps := []*FormStep{
		step(2, dep(9)),
		step(1, nil),
	}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{1, 2}, orders(resolved))
}

func TestResolveOrder_SelfReferenceFallsBackToLinear(t *testing.T) {
	steps := []*FormStep{
		step(1, dep(1)),
		step(2, nil),
	}

	resolved := ResolveOrder(steps)
	assert.Equal(t, []int{1, 2}, orders(resolved))
}

func TestResolveOrder_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, ResolveOrder(nil))

	one := []*FormStep{step(1, nil)}
	resolved := ResolveOrder(one)
	require.Len(t, resolved, 1)
	assert.Equal(t, 1, resolved[0].StepOrder)
}

func TestResolveOrder_DoesNotMutateInput(t *testing.T) {
	steps := []*FormStep{step(3, nil), step(1, nil), step(2, nil)}

	_ = ResolveOrder(steps)
	assert.Equal(t, []int{3, 1, 2}, orders(steps))
}
