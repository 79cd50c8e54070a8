package broadcast

import (
	"context"
	"sync"
)

// Event is one recorded broadcast, used for assertions in tests.
type Event struct {
	Channel string
	Event   string
	Data    map[string]interface{}
}

// Recorder is an in-memory Broadcaster for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Trigger(ctx context.Context, channel, event string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Channel: channel, Event: event, Data: data})
}

func (r *Recorder) TriggerExecution(ctx context.Context, ownerID uint, executionID, event string, data map[string]interface{}) {
	r.Trigger(ctx, TaskChannel(ownerID), event, data)
	r.Trigger(ctx, ExecutionChannel(executionID), event, data)
}

func (r *Recorder) TriggerTaskEditing(ctx context.Context, taskID, event string, data map[string]interface{}) {
	r.Trigger(ctx, TaskEditingChannel(taskID), event, data)
}

func (r *Recorder) TriggerAnalysis(ctx context.Context, analysisID, event string, data map[string]interface{}) {
	r.Trigger(ctx, AnalysisChannel(analysisID), event, data)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given event name, across all
// channels.
func (r *Recorder) Named(event string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// OnChannel returns the recorded events sent to the given channel.
func (r *Recorder) OnChannel(channel string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}
