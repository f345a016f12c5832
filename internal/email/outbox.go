package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// StreamWriter is the part of domain.SignalBus the outbox needs.
type StreamWriter interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// Outbox queues composed messages on a durable stream. Delivery happens
// elsewhere.
type Outbox struct {
	bus    StreamWriter
	stream string
}

// NewOutbox creates an Outbox on domain.StreamEmailOutbox.
func NewOutbox(bus StreamWriter) *Outbox {
	return &Outbox{bus: bus, stream: domain.StreamEmailOutbox}
}

// Enqueue appends a message to the outbox.
func (o *Outbox) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("email: marshal %s: %w", msg.Kind, err)
	}
	if err := o.bus.StreamAppend(ctx, o.stream, payload); err != nil {
		return fmt.Errorf("email: enqueue %s: %w", msg.Kind, err)
	}
	return nil
}

// Pending reads up to count queued messages after lastID.
func (o *Outbox) Pending(ctx context.Context, lastID string, count int) ([]Message, string, error) {
	entries, err := o.bus.StreamRead(ctx, o.stream, lastID, count)
	if err != nil {
		return nil, lastID, fmt.Errorf("email: read outbox: %w", err)
	}
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		var m Message
		if err := json.Unmarshal(e.Payload, &m); err != nil {
			return nil, lastID, fmt.Errorf("email: decode outbox entry %s: %w", e.ID, err)
		}
		msgs = append(msgs, m)
		lastID = e.ID
	}
	return msgs, lastID, nil
}
