package readings

import (
	"log/slog"

	"boilertemp/internal/readings/types"
)

// MQTTSubscriber delivers rows published by the collector.
type MQTTSubscriber interface {
	SetMessageHandler(handler func(types.Reading))
}

// Broadcaster pushes a row to live dashboard clients.
type Broadcaster interface {
	Broadcast(r types.Reading)
}

// RegisterLiveFeed forwards every row received over MQTT to the broadcaster.
// It must be called before the subscriber connects.
func RegisterLiveFeed(subscriber MQTTSubscriber, hub Broadcaster, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(r types.Reading) {
		logger.Debug("forwarding live reading", "timestamp", r.Timestamp)
		hub.Broadcast(r)
	})
}
