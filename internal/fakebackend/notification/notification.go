package notification

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// KindLoginCode carries a second-factor code.
	KindLoginCode = "login_code"
	// KindPasswordReset carries a password reset code.
	KindPasswordReset = "password_reset"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
	Code        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier stands in for the mail service by writing to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. Codes are logged on
// purpose: reading them off the console is how the fake is used.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"body", message.Body,
		"code", message.Code,
	)
	return nil
}

// Outbox records every message, for tests that need to read the code.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
	next Notifier
}

// NewOutbox records messages and forwards them to next, which may be nil.
func NewOutbox(next Notifier) *Outbox {
	return &Outbox{next: next}
}

// Send records and forwards.
func (o *Outbox) Send(ctx context.Context, message Message) error {
	o.mu.Lock()
	o.sent = append(o.sent, message)
	o.mu.Unlock()
	if o.next != nil {
		return o.next.Send(ctx, message)
	}
	return nil
}

// Last returns the latest message of kind sent to destination.
func (o *Outbox) Last(kind, destination string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		m := o.sent[i]
		if m.Kind == kind && strings.EqualFold(m.Destination, destination) {
			return m, true
		}
	}
	return Message{}, false
}

// Count returns how many messages of kind went to destination.
func (o *Outbox) Count(kind, destination string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.sent {
		if m.Kind == kind && strings.EqualFold(m.Destination, destination) {
			n++
		}
	}
	return n
}
