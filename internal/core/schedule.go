package core

import "time"

// DefaultDueWindow bounds how late a reminder may still be sent.
const DefaultDueWindow = 5 * time.Minute

// NextSendTime returns the next UTC instant at which a reminder is due, or
// nil when reminders are off. The local clock is derived from the setting's
// fixed UTC offset; the timezone label is display-only.
//
// If the reminder time has already passed (or is exactly now) in the user's
// local day, the scan starts from tomorrow. At most seven days are scanned
// for an allowed weekday.
func NextSendTime(s NotificationSetting, now time.Time) *time.Time {
	if !s.Enabled || s.ReminderTime == nil {
		return nil
	}
	offset := time.Duration(s.UTCOffsetMinutes) * time.Minute
	localNow := now.UTC().Add(offset)

	y, m, d := localNow.Date()
	candidate := time.Date(y, m, d, s.ReminderTime.Hour, s.ReminderTime.Minute, 0, 0, time.UTC)
	if !localNow.Before(candidate) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	for i := 0; i < 7; i++ {
		if s.HasWeekday(candidate.Weekday()) {
			next := candidate.Add(-offset)
			return &next
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return nil
}

// IsDue reports whether the setting's cached next send time falls inside
// the due window ending at now. Reminders older than the window are skipped
// rather than sent late.
func IsDue(s NotificationSetting, now time.Time, window time.Duration) bool {
	if !s.Enabled || s.NextSendAt == nil {
		return false
	}
	next := *s.NextSendAt
	return !next.After(now) && !next.Before(now.Add(-window))
}

// LocalTime converts a UTC instant into the user's wall clock.
func (s NotificationSetting) LocalTime(t time.Time) time.Time {
	return t.UTC().Add(time.Duration(s.UTCOffsetMinutes) * time.Minute)
}
