package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/andreyv/supplybot/go/internal/events"
)

// RelayBus pipes an in-process event subscription into the connection
// manager. Used when the gateway runs inside the engine process.
func RelayBus(ctx context.Context, bus *events.ChannelBus, cm *ConnectionManager) {
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			cm.Broadcast(event)
		}
	}
}

// NATSConsumerConfig configures the cross-process event relay.
type NATSConsumerConfig struct {
	URL           string
	SubjectPrefix string
	ReconnectWait time.Duration
}

func DefaultNATSConsumerConfig() NATSConsumerConfig {
	return NATSConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "supply.events",
		ReconnectWait: 2 * time.Second,
	}
}

// NATSConsumer subscribes to the engine's event subjects and feeds the
// connection manager, letting the gateway run as its own deployment.
type NATSConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            NATSConsumerConfig
}

func NewNATSConsumer(cm *ConnectionManager, config NATSConsumerConfig) (*NATSConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSConsumer{connectionManager: cm, nc: nc, config: config}, nil
}

// Start subscribes and blocks until the context ends.
func (c *NATSConsumer) Start(ctx context.Context) error {
	subject := c.config.SubjectPrefix + ".>"
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := c.processMessage(msg); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject).
				Msg("failed to process event message")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	c.sub = sub

	log.Info().Str("subject", subject).Msg("gateway consuming engine events")
	<-ctx.Done()
	return nil
}

func (c *NATSConsumer) processMessage(msg *nats.Msg) error {
	var env struct {
		EventID   string          `json:"eventId"`
		EventType string          `json:"eventType"`
		TaskID    string          `json:"taskId"`
		UserID    int64           `json:"userId"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	var event events.Event
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}

	c.connectionManager.Broadcast(event)
	return nil
}

// Stop unsubscribes and closes the connection.
func (c *NATSConsumer) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	if c.nc != nil {
		c.nc.Close()
	}
}
