// Package notify tells operators about resolution outcomes over chat
// webhooks (Telegram, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// Event types understood by the notifier's filter.
const (
	EventResolutionSucceeded = "resolution.succeeded"
	EventResolutionFailed    = "resolution.failed"
	EventArchiveFailed       = "archive.failed"
)

// Sender delivers one message over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every sender. When an event allow-list is
// configured, Notify drops events that are not on it.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends a message for an event type, subject to the allow-list.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyResolution formats and sends a resolution event.
func (n *Notifier) NotifyResolution(ctx context.Context, ev domain.ResolutionEvent) error {
	event := EventResolutionSucceeded
	title := "Contract resolved"
	if ev.Status == domain.ResolutionFailed {
		event = EventResolutionFailed
		title = "Resolution failed"
	}

	var b strings.Builder
	if ev.Question != "" {
		fmt.Fprintf(&b, "%s\n", ev.Question)
	}
	fmt.Fprintf(&b, "contract: %s\noutcome: %s", ev.ContractID, ev.Outcome)
	if ev.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", ev.Error)
	}
	return n.Notify(ctx, event, title, b.String())
}

// dispatch tries every sender; one failure does not stop the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
