package broadcast

import (
	"context"
	"fmt"
)

// Broadcaster pushes progress events to channels observers subscribe to.
// Delivery is fire-and-forget: a broken event bus must never fail the
// operation that produced the event.
type Broadcaster interface {
	Trigger(ctx context.Context, channel, event string, data map[string]interface{})

	// TriggerExecution fans an execution event out to both the owner's
	// task channel and the execution's own channel.
	TriggerExecution(ctx context.Context, ownerID uint, executionID, event string, data map[string]interface{})

	// TriggerTaskEditing targets the interactive editing channel of one task.
	TriggerTaskEditing(ctx context.Context, taskID, event string, data map[string]interface{})

	// TriggerAnalysis targets the channel of one form analysis.
	TriggerAnalysis(ctx context.Context, analysisID, event string, data map[string]interface{})
}

// TaskChannel is the per-owner channel carrying all of that owner's
// execution events.
func TaskChannel(ownerID uint) string {
	return fmt.Sprintf("private-tasks.%d", ownerID)
}

// ExecutionChannel carries the events of a single execution.
func ExecutionChannel(executionID string) string {
	return fmt.Sprintf("private-execution.%s", executionID)
}

// TaskEditingChannel carries interactive field-editing events for a task.
func TaskEditingChannel(taskID string) string {
	return fmt.Sprintf("private-task-editing.%s", taskID)
}

// AnalysisChannel carries analysis progress for one analysis run.
func AnalysisChannel(analysisID string) string {
	return fmt.Sprintf("private-analysis.%s", analysisID)
}
