package events

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher is the subset of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge forwards every bus event to NATS under "<prefix>.<event type>".
type NATSBridge struct {
	pub    Publisher
	prefix string
	logger *zerolog.Logger
}

func NewNATSBridge(pub Publisher, prefix string, logger *zerolog.Logger) *NATSBridge {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NATSBridge{pub: pub, prefix: strings.Trim(prefix, "."), logger: logger}
}

// ConnectNATS dials the broker with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func (b *NATSBridge) Subject(eventType string) string {
	if b.prefix == "" {
		return eventType
	}
	return b.prefix + "." + eventType
}

// Attach subscribes the bridge to all events on bus.
func (b *NATSBridge) Attach(bus *EventBus) {
	bus.SubscribeAll(b.Handle)
}

func (b *NATSBridge) Handle(event *Event) error {
	subject := b.Subject(event.Type)
	if err := b.pub.Publish(subject, event.Payload); err != nil {
		b.logger.Error().Err(err).Str("subject", subject).Msg("nats publish failed")
		return err
	}
	b.logger.Debug().Str("subject", subject).Msg("event forwarded to nats")
	return nil
}
