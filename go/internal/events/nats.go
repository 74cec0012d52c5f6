package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// envelope is the wire format on the bus. Payload carries the full event so
// consumers that only filter on subject can still reconstruct everything.
type envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	TaskID    string          `json:"taskId"`
	UserID    int64           `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NATSBus publishes events to supply.events.<Type> subjects.
type NATSBus struct {
	nc      *nats.Conn
	subject string
}

// ConnectNATS dials the server with the reconnect policy used across the
// service and returns a bus rooted at the given subject prefix.
func ConnectNATS(url, subjectPrefix string) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc, subject: subjectPrefix}, nil
}

// Emit publishes one event. Errors are returned so MultiBus/engine can log
// them, but publishing is fire-and-forget from the state machine's view.
func (b *NATSBus) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	env := envelope{
		EventID:   uuid.New().String(),
		EventType: string(event.Type),
		TaskID:    event.TaskID,
		UserID:    event.UserID,
		Timestamp: event.At,
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", b.subject, event.Type)
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (b *NATSBus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
