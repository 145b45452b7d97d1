package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Broadcaster is the slice of the websocket hub the notifier needs.
type Broadcaster interface {
	Publish(message []byte) bool
}

// HubNotifier pushes events to connected admin websocket clients.
type HubNotifier struct {
	hub Broadcaster
	log *zap.Logger
}

func NewHubNotifier(hub Broadcaster, log *zap.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, log: log}
}

func (n *HubNotifier) Emit(_ context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Warn("failed to encode notification", zap.String("type", event.Type), zap.Error(err))
		return
	}
	if !n.hub.Publish(payload) {
		n.log.Warn("notification dropped, hub busy", zap.String("type", event.Type))
	}
}
