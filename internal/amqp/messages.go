package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/notify"
)

// ReminderMessage asks the delivery worker to prompt a user to record the
// day's transactions. Times are RFC 3339; LocalTime carries the user's fixed
// offset so the worker can render it without knowing the timezone rules.
type ReminderMessage struct {
	UserID        string    `json:"user_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	LocalTime     string    `json:"local_time"`
	TimezoneLabel string    `json:"timezone_label"`
	Timestamp     time.Time `json:"timestamp"`
}

const localTimeLayout = "2006-01-02T15:04"

// NewReminderMessage builds the wire form of a reminder.
func NewReminderMessage(r notify.Reminder) *ReminderMessage {
	return &ReminderMessage{
		UserID:        r.UserID,
		ScheduledAt:   r.ScheduledAt.UTC(),
		LocalTime:     r.LocalTime.Format(localTimeLayout),
		TimezoneLabel: r.TimezoneLabel,
		Timestamp:     time.Now().UTC(),
	}
}

// Reminder converts the message back into a notify.Reminder.
func (m *ReminderMessage) Reminder() (notify.Reminder, error) {
	local, err := time.Parse(localTimeLayout, m.LocalTime)
	if err != nil {
		return notify.Reminder{}, err
	}
	return notify.Reminder{
		UserID:        m.UserID,
		ScheduledAt:   m.ScheduledAt,
		LocalTime:     local,
		TimezoneLabel: m.TimezoneLabel,
	}, nil
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
