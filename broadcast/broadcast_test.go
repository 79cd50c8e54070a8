package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "private-tasks.42", TaskChannel(42))
	assert.Equal(t, "private-execution.abc", ExecutionChannel("abc"))
	assert.Equal(t, "private-task-editing.t1", TaskEditingChannel("t1"))
	assert.Equal(t, "private-analysis.a1", AnalysisChannel("a1"))
}

func TestRecorder_TriggerExecutionFansOut(t *testing.T) {
	r := NewRecorder()
	r.TriggerExecution(context.Background(), 42, "exec-1", "execution.started", map[string]interface{}{
		"execution_id": "exec-1",
	})

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "private-tasks.42", events[0].Channel)
	assert.Equal(t, "private-execution.exec-1", events[1].Channel)
	assert.Equal(t, "execution.started", events[0].Event)

	require.Len(t, r.Named("execution.started"), 2)
	require.Len(t, r.OnChannel("private-execution.exec-1"), 1)
}
