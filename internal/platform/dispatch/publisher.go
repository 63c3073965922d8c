package dispatch

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Publisher delivers a reminder payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// MQTTPublisher publishes reminders to a broker with QoS 1.
type MQTTPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

// NewMQTTPublisher connects to broker and keeps reconnecting on loss.
func NewMQTTPublisher(broker, clientID string, logger zerolog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if clientID == "" {
		clientID = fmt.Sprintf("pillcare-notify-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", broker).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	return &MQTTPublisher{client: client, timeout: 10 * time.Second}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publish %s: timed out after %s", topic, p.timeout)
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// LogPublisher writes reminders to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.Logger.Info().Str("topic", topic).RawJSON("payload", payload).Msg("reminder")
	return nil
}

func (LogPublisher) Close() {}
