package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/edvin/fleet/internal/model"
)

// Notifier receives lifecycle events for downstream push delivery.
// Publishing is fire-and-forget: implementations log failures but never
// surface them to the triggering operation.
type Notifier interface {
	Publish(event model.Event)
}

// NATSNotifier publishes events as JSON on per-type NATS subjects
// (<prefix>.<event type>).
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

func NewNATSNotifier(url, subjectPrefix string, logger zerolog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSNotifier{conn: conn, prefix: subjectPrefix, logger: logger}, nil
}

func (n *NATSNotifier) Publish(event model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error().Err(err).Str("type", event.Type).Msg("marshal event")
		return
	}

	subject := n.prefix + "." + event.Type
	if err := n.conn.Publish(subject, payload); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	n.conn.Close()
}

// LogNotifier is the fallback when no NATS URL is configured: events are
// written to the debug log so local development still shows the stream.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(event model.Event) {
	n.logger.Debug().
		Str("type", event.Type).
		Str("resource_id", event.ResourceID).
		Str("group_id", event.GroupID).
		Time("timestamp", event.Timestamp).
		Msg("lifecycle event")
}
