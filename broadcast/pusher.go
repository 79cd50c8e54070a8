package broadcast

import (
	"context"

	"github.com/pusher/pusher-http-go/v5"

	"github.com/formbot-io/formbot/logger"
)

// Config holds the connection settings of the Pusher-compatible event bus.
type Config struct {
	AppID   string
	Key     string
	Secret  string
	Host    string
	Cluster string
	Secure  bool
}

// PusherBroadcaster delivers events over the Pusher protocol. Works with
// pusher.com and self-hosted compatible servers such as Soketi.
type PusherBroadcaster struct {
	client pusher.Client
	logger logger.Logger
}

// NewPusherBroadcaster creates a broadcaster from the given config.
func NewPusherBroadcaster(cfg Config, log logger.Logger) *PusherBroadcaster {
	return &PusherBroadcaster{
		client: pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Host:    cfg.Host,
			Cluster: cfg.Cluster,
			Secure:  cfg.Secure,
		},
		logger: log,
	}
}

// Trigger sends one event. Failures are logged and swallowed.
func (b *PusherBroadcaster) Trigger(ctx context.Context, channel, event string, data map[string]interface{}) {
	if err := b.client.Trigger(channel, event, data); err != nil {
		b.logger.Warn(ctx, "failed to broadcast event", map[string]interface{}{
			"error":   err.Error(),
			"channel": channel,
			"event":   event,
		})
	}
}

func (b *PusherBroadcaster) TriggerExecution(ctx context.Context, ownerID uint, executionID, event string, data map[string]interface{}) {
	b.Trigger(ctx, TaskChannel(ownerID), event, data)
	b.Trigger(ctx, ExecutionChannel(executionID), event, data)
}

func (b *PusherBroadcaster) TriggerTaskEditing(ctx context.Context, taskID, event string, data map[string]interface{}) {
	b.Trigger(ctx, TaskEditingChannel(taskID), event, data)
}

func (b *PusherBroadcaster) TriggerAnalysis(ctx context.Context, analysisID, event string, data map[string]interface{}) {
	b.Trigger(ctx, AnalysisChannel(analysisID), event, data)
}
