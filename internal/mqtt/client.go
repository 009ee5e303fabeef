// Package mqtt carries stored readings over an MQTT broker: the collector
// publishes each row and the API server subscribes to feed live clients.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"boilertemp/internal/config"
	"boilertemp/internal/readings/types"
)

const (
	qosAtLeastOnce = byte(1)
	publishTimeout = 5 * time.Second
)

// Publisher sends every reading as JSON to one topic with QoS 1.
type Publisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{topic: cfg.MQTTTopic, logger: logger, stopCh: make(chan struct{})}
	opts := clientOptions(cfg, cfg.MQTTClientID+"-collector", logger)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the initial connection and respects ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	return connect(ctx, p.client, p.stopCh)
}

// Publish sends r to the configured topic and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, r types.Reading) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	token := p.client.Publish(p.topic, qosAtLeastOnce, false, data)
	if err := waitToken(ctx, token, publishTimeout); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("published reading", "topic", p.topic, "timestamp", r.Timestamp)
	return nil
}

func (p *Publisher) IsConnected() bool { return p.client.IsConnected() }

// Disconnect is idempotent. After it, Connect returns an error.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.logger.Info("mqtt disconnected")
}

func clientOptions(cfg config.Config, clientID string, logger *slog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})
	return opts
}

func connect(ctx context.Context, client mqtt.Client, stopCh <-chan struct{}) error {
	select {
	case <-stopCh:
		return fmt.Errorf("client stopped")
	default:
	}
	if client.IsConnected() {
		return nil
	}

	// With ConnectRetry the token may not complete until the broker is reachable.
	token := client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			client.Disconnect(0)
			return ctx.Err()
		case <-stopCh:
			client.Disconnect(0)
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %v", timeout)
	}
}
