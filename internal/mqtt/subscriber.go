package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"boilertemp/internal/config"
	"boilertemp/internal/readings/types"
)

// Subscriber receives readings published by the collector.
type Subscriber struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger

	mu      sync.RWMutex
	handler func(types.Reading)

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSubscriber(cfg config.Config, logger *slog.Logger) *Subscriber {
	s := &Subscriber{topic: cfg.MQTTTopic, logger: logger, stopCh: make(chan struct{})}
	opts := clientOptions(cfg, cfg.MQTTClientID+"-server", logger)
	// Clean sessions drop subscriptions, so subscribe again on every connect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		go s.subscribe(c)
	})
	s.client = mqtt.NewClient(opts)
	return s
}

// SetMessageHandler installs the callback for every valid reading.
func (s *Subscriber) SetMessageHandler(h func(types.Reading)) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Subscriber) Connect(ctx context.Context) error {
	return connect(ctx, s.client, s.stopCh)
}

func (s *Subscriber) subscribe(c mqtt.Client) {
	token := c.Subscribe(s.topic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		s.logger.Error("mqtt subscribe timed out", "topic", s.topic)
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
		return
	}
	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", qosAtLeastOnce)
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var r types.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		s.logger.Warn("failed to parse reading message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h != nil {
		h(r)
	}
}

func (s *Subscriber) IsConnected() bool { return s.client.IsConnected() }

// Disconnect unsubscribes and closes the connection. It is idempotent.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)
	s.logger.Info("mqtt subscriber disconnected")
}
