package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int // extra attempts after the first; 0 means fire-and-forget
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	// ReminderPrefix is prepended to reminder text by Deliver.
	ReminderPrefix string
}

const DefaultReminderPrefix = "Reminder: "

type HistoryItem struct {
	At     time.Time `json:"at"`
	ChatID int64     `json:"chat_id"`
	Text   string    `json:"text"`
	Error  string    `json:"error,omitempty"`
}

type Stats struct {
	QueueLen int           `json:"queue_len"`
	QueueCap int           `json:"queue_cap"`
	Sent     uint64        `json:"sent"`
	Failed   uint64        `json:"failed"`
	Dropped  uint64        `json:"dropped"`
	History  []HistoryItem `json:"history"`
}

// NotificationEvent is emitted on the event bus for notifier lifecycle events.
type NotificationEvent struct {
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
