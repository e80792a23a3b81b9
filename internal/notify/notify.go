// Package notify defines how due reminders leave the ledger.
package notify

import (
	"context"
	"sync"
	"time"
)

// Reminder is one daily "log your spending" prompt for a user.
type Reminder struct {
	UserID        string
	ScheduledAt   time.Time // UTC instant the reminder was due
	LocalTime     time.Time // ScheduledAt on the user's wall clock
	TimezoneLabel string
}

// Sender delivers reminders. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, r Reminder) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, r Reminder) error

func (f SenderFunc) Send(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// Outbox is an in-memory Sender. It is used when no broker is configured
// and by tests to observe what was dispatched.
type Outbox struct {
	mu   sync.Mutex
	sent []Reminder
	fail error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, r)
	return nil
}

// FailWith makes every following Send return err; nil restores delivery.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	o.fail = err
	o.mu.Unlock()
}

// Sent returns a copy of the delivered reminders in send order.
func (o *Outbox) Sent() []Reminder {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Reminder, len(o.sent))
	copy(out, o.sent)
	return out
}
