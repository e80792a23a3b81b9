package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
)

const settingColumns = `id, user_id, enabled, reminder_time, timezone_label,
	utc_offset_minutes, days_of_week, next_send_at, last_sent_at`

func scanSetting(row rowScanner) (core.NotificationSetting, error) {
	var (
		s        core.NotificationSetting
		reminder sql.NullString
		days     string
		nextSend sql.NullInt64
		lastSent sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Enabled, &reminder, &s.TimezoneLabel,
		&s.UTCOffsetMinutes, &days, &nextSend, &lastSent)
	if err != nil {
		return core.NotificationSetting{}, err
	}
	if reminder.Valid && reminder.String != "" {
		c, err := core.ParseClockTime(reminder.String)
		if err != nil {
			return core.NotificationSetting{}, fmt.Errorf("setting of user %s: %w", s.UserID, err)
		}
		s.ReminderTime = &c
	}
	if s.DaysOfWeek, err = decodeWeekdays(days); err != nil {
		return core.NotificationSetting{}, fmt.Errorf("setting of user %s: %w", s.UserID, err)
	}
	s.NextSendAt = unixPtr(nextSend)
	s.LastSentAt = unixPtr(lastSent)
	return s, nil
}

// encodeWeekdays stores days as "0,1,2" with Sunday as 0.
func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("decode days of week %q: %w", s, err)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func (q *Queries) GetSettingByUser(ctx context.Context, userID string) (core.NotificationSetting, error) {
	s, err := scanSetting(q.queryRow(ctx, `SELECT `+settingColumns+` FROM notification_settings
		WHERE user_id = ?`, userID))
	if err != nil {
		return core.NotificationSetting{}, fmt.Errorf("get notification setting of user %s: %w", userID, notFound(err))
	}
	return s, nil
}

// UpsertSetting writes the user's single setting row, keeping the existing
// id when one is already stored.
func (q *Queries) UpsertSetting(ctx context.Context, s core.NotificationSetting, now time.Time) error {
	var reminder sql.NullString
	if s.ReminderTime != nil {
		reminder = sql.NullString{String: s.ReminderTime.String(), Valid: true}
	}
	_, err := q.exec(ctx, `INSERT INTO notification_settings (`+settingColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = excluded.enabled,
			reminder_time = excluded.reminder_time,
			timezone_label = excluded.timezone_label,
			utc_offset_minutes = excluded.utc_offset_minutes,
			days_of_week = excluded.days_of_week,
			next_send_at = excluded.next_send_at,
			last_sent_at = excluded.last_sent_at,
			updated_at = excluded.updated_at`,
		s.ID, s.UserID, s.Enabled, reminder, s.TimezoneLabel,
		s.UTCOffsetMinutes, encodeWeekdays(s.DaysOfWeek), nullUnix(s.NextSendAt), nullUnix(s.LastSentAt),
		now.Unix())
	if err != nil {
		return fmt.Errorf("upsert notification setting of user %s: %w", s.UserID, err)
	}
	return nil
}

// ListDueSettings returns enabled settings whose next send time lies in
// [from, to]. Rows that cannot be decoded are skipped.
func (q *Queries) ListDueSettings(ctx context.Context, from, to time.Time) ([]core.NotificationSetting, error) {
	rows, err := q.query(ctx, `SELECT `+settingColumns+` FROM notification_settings
		WHERE enabled = ? AND next_send_at IS NOT NULL AND next_send_at >= ? AND next_send_at <= ?
		ORDER BY next_send_at, user_id`, true, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("list due notification settings: %w", err)
	}
	return collectReadable(ctx, rows, scanSetting, "notification setting")
}

// MarkSent records a delivered reminder and caches the following send time.
// The update only applies while next_send_at still equals expected, so two
// dispatchers cannot both claim the same reminder.
func (q *Queries) MarkSent(ctx context.Context, userID string, expected, sentAt time.Time, next *time.Time) error {
	res, err := q.exec(ctx, `UPDATE notification_settings
		SET last_sent_at = ?, next_send_at = ?, updated_at = ?
		WHERE user_id = ? AND next_send_at = ?`,
		sentAt.Unix(), nullUnix(next), sentAt.Unix(), userID, expected.Unix())
	if err != nil {
		return fmt.Errorf("mark reminder sent for user %s: %w", userID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("mark reminder sent for user %s: %w", userID, notFound(err))
	}
	return nil
}

// ListOverdueSettings returns enabled settings whose next send time is
// earlier than before. Rows that cannot be decoded are skipped.
func (q *Queries) ListOverdueSettings(ctx context.Context, before time.Time) ([]core.NotificationSetting, error) {
	rows, err := q.query(ctx, `SELECT `+settingColumns+` FROM notification_settings
		WHERE enabled = ? AND next_send_at IS NOT NULL AND next_send_at < ?
		ORDER BY next_send_at, user_id`, true, before.Unix())
	if err != nil {
		return nil, fmt.Errorf("list overdue notification settings: %w", err)
	}
	return collectReadable(ctx, rows, scanSetting, "notification setting")
}

// Reschedule moves a missed reminder to next without recording a send. Like
// MarkSent it only applies while next_send_at still equals expected.
func (q *Queries) Reschedule(ctx context.Context, userID string, expected time.Time, next *time.Time, now time.Time) error {
	res, err := q.exec(ctx, `UPDATE notification_settings
		SET next_send_at = ?, updated_at = ?
		WHERE user_id = ? AND next_send_at = ?`,
		nullUnix(next), now.Unix(), userID, expected.Unix())
	if err != nil {
		return fmt.Errorf("reschedule reminder for user %s: %w", userID, err)
	}
	if err := affectOne(res); err != nil {
		return fmt.Errorf("reschedule reminder for user %s: %w", userID, notFound(err))
	}
	return nil
}
