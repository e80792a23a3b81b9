package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/storage"
)

// Default reminder: every day at 20:00 UTC.
var defaultReminderTime = core.ClockTime{Hour: 20, Minute: 0}

// DefaultNotificationSetting is the setting given to newly provisioned users.
func DefaultNotificationSetting(userID string) core.NotificationSetting {
	reminder := defaultReminderTime
	return core.NotificationSetting{
		ID:            uuid.NewString(),
		UserID:        userID,
		Enabled:       true,
		ReminderTime:  &reminder,
		TimezoneLabel: "UTC",
		DaysOfWeek:    append([]time.Weekday(nil), core.AllWeekdays...),
	}
}

type SaveSettingParams struct {
	Enabled          bool
	ReminderTime     *core.ClockTime
	TimezoneLabel    string
	UTCOffsetMinutes int
	DaysOfWeek       []time.Weekday
}

// DispatchStats summarises one reminder sweep.
type DispatchStats struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int // claimed by a concurrent dispatcher
	Missed  int // past the due window, moved to their next slot unsent
}

// NotificationService keeps per-user reminder settings and hands due
// reminders to a Sender.
type NotificationService struct {
	store       *storage.Store
	sender      notify.Sender
	logger      *log.Logger
	window      time.Duration
	itemTimeout time.Duration
	now         Clock
}

func NewNotificationService(store *storage.Store, sender notify.Sender, logger *log.Logger, window, itemTimeout time.Duration) *NotificationService {
	if window <= 0 {
		window = core.DefaultDueWindow
	}
	return &NotificationService{
		store:       store,
		sender:      sender,
		logger:      logger.WithComponent(log.ComponentNotification),
		window:      window,
		itemTimeout: itemTimeout,
		now:         utcNow,
	}
}

func (s *NotificationService) GetSetting(ctx context.Context, userID string) (core.NotificationSetting, error) {
	return s.store.Queries().GetSettingByUser(ctx, userID)
}

// SaveSetting validates and stores the user's reminder setting and caches
// the next send time computed from it.
func (s *NotificationService) SaveSetting(ctx context.Context, userID string, p SaveSettingParams) (core.NotificationSetting, error) {
	now := s.now()
	setting := core.NotificationSetting{
		ID:               uuid.NewString(),
		UserID:           userID,
		Enabled:          p.Enabled,
		ReminderTime:     p.ReminderTime,
		TimezoneLabel:    strings.TrimSpace(p.TimezoneLabel),
		UTCOffsetMinutes: p.UTCOffsetMinutes,
		DaysOfWeek:       p.DaysOfWeek,
	}
	if setting.TimezoneLabel == "" {
		setting.TimezoneLabel = "UTC"
	}
	if err := setting.Validate(); err != nil {
		return core.NotificationSetting{}, err
	}

	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetSettingByUser(ctx, userID)
		switch {
		case err == nil:
			setting.ID = existing.ID
			setting.LastSentAt = existing.LastSentAt
		case !errors.Is(err, core.ErrNotFound):
			return err
		}
		setting.NextSendAt = core.NextSendTime(setting, now)
		return q.UpsertSetting(ctx, setting, now)
	})
	if err != nil {
		return core.NotificationSetting{}, fmt.Errorf("save notification setting: %w", err)
	}

	s.logger.InfoContext(ctx, "Notification setting saved",
		log.FieldUserID, userID,
		"enabled", setting.Enabled,
		log.FieldScheduledAt, setting.NextSendAt)
	return setting, nil
}

// DueNotifications returns the settings whose reminder falls inside the due
// window ending at now.
func (s *NotificationService) DueNotifications(ctx context.Context, now time.Time) ([]core.NotificationSetting, error) {
	candidates, err := s.store.Queries().ListDueSettings(ctx, now.Add(-s.window), now)
	if err != nil {
		return nil, err
	}
	due := candidates[:0]
	for _, c := range candidates {
		if core.IsDue(c, now, s.window) {
			due = append(due, c)
		}
	}
	return due, nil
}

// MarkSent records that the user's pending reminder went out at now and
// schedules the next one.
func (s *NotificationService) MarkSent(ctx context.Context, userID string, now time.Time) error {
	return s.store.WithTx(ctx, func(q *storage.Queries) error {
		setting, err := q.GetSettingByUser(ctx, userID)
		if err != nil {
			return err
		}
		if setting.NextSendAt == nil {
			return fmt.Errorf("mark reminder sent for user %s: no reminder scheduled: %w", userID, core.ErrNotFound)
		}
		return q.MarkSent(ctx, userID, *setting.NextSendAt, now, core.NextSendTime(setting, now))
	})
}

// DispatchDue sends every due reminder. The claim on a reminder and its
// delivery share one database transaction: a reminder whose send fails stays
// pending and is retried by the next sweep while it is still inside the due
// window. Once the window has passed it is moved to its next slot unsent.
// Per-user failures are counted and logged; the returned error is only set
// when the due reminders could not be listed.
func (s *NotificationService) DispatchDue(ctx context.Context, now time.Time) (DispatchStats, error) {
	missed, err := s.rescheduleMissed(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list missed reminders", log.FieldError, err)
	}

	due, err := s.DueNotifications(ctx, now)
	if err != nil {
		return DispatchStats{Missed: missed}, fmt.Errorf("dispatch reminders: %w", err)
	}

	stats := DispatchStats{Due: len(due), Missed: missed}
	for _, setting := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		err := s.dispatchOne(ctx, setting, now)
		switch {
		case err == nil:
			stats.Sent++
		case errors.Is(err, core.ErrNotFound):
			stats.Skipped++
		default:
			stats.Failed++
			s.logger.ErrorContext(ctx, "Failed to send reminder",
				log.FieldUserID, setting.UserID,
				log.FieldScheduledAt, setting.NextSendAt,
				log.FieldError, err)
		}
	}

	if stats.Due > 0 || stats.Missed > 0 {
		s.logger.InfoContext(ctx, "Reminder dispatch complete",
			"due", stats.Due,
			"sent", stats.Sent,
			"failed", stats.Failed,
			"skipped", stats.Skipped,
			"missed", stats.Missed)
	}
	return stats, nil
}

// rescheduleMissed advances every reminder whose send time fell out of the
// due window, so a user whose reminder was missed still gets the next one.
// A failure for one user is logged and the others are still moved.
func (s *NotificationService) rescheduleMissed(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.Queries().ListOverdueSettings(ctx, now.Add(-s.window))
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, setting := range overdue {
		next := core.NextSendTime(setting, now)
		err := s.store.Queries().Reschedule(ctx, setting.UserID, *setting.NextSendAt, next, now)
		switch {
		case err == nil:
			moved++
			s.logger.WarnContext(ctx, "Reminder missed its window",
				log.FieldUserID, setting.UserID,
				log.FieldScheduledAt, setting.NextSendAt)
		case errors.Is(err, core.ErrNotFound):
			// rescheduled or sent by a concurrent sweep
		default:
			s.logger.ErrorContext(ctx, "Failed to reschedule missed reminder",
				log.FieldUserID, setting.UserID,
				log.FieldScheduledAt, setting.NextSendAt,
				log.FieldError, err)
		}
	}
	return moved, nil
}

func (s *NotificationService) dispatchOne(ctx context.Context, setting core.NotificationSetting, now time.Time) error {
	if s.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemTimeout)
		defer cancel()
	}

	scheduled := *setting.NextSendAt
	return s.store.WithTx(ctx, func(q *storage.Queries) error {
		next := core.NextSendTime(setting, now)
		if err := q.MarkSent(ctx, setting.UserID, scheduled, now, next); err != nil {
			return err
		}
		return s.sender.Send(ctx, notify.Reminder{
			UserID:        setting.UserID,
			ScheduledAt:   scheduled,
			LocalTime:     setting.LocalTime(scheduled),
			TimezoneLabel: setting.TimezoneLabel,
		})
	})
}
