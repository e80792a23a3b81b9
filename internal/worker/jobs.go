package worker

import (
	"context"
	"time"

	"ledger/internal/services"
)

const (
	JobInterest  = "interest"
	JobReminders = "reminders"
)

// Accruer is the part of InterestService the interest job needs.
type Accruer interface {
	AccrueAll(ctx context.Context, now time.Time) ([]services.AccrualResult, error)
}

// Dispatcher is the part of NotificationService the reminder job needs.
type Dispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (services.DispatchStats, error)
}

// InterestJob accrues interest on every due savings account. Per-account
// failures are reported by the service itself and do not fail the job.
func InterestJob(a Accruer, interval time.Duration) Job {
	return Job{
		Name:     JobInterest,
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := a.AccrueAll(ctx, now)
			return err
		},
	}
}

// ReminderJob sends the reminders due at each tick.
func ReminderJob(d Dispatcher, interval time.Duration) Job {
	return Job{
		Name:     JobReminders,
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := d.DispatchDue(ctx, now)
			return err
		},
	}
}
