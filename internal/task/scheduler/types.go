package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"taskbot/internal/eventbus"
	"taskbot/internal/reminder"
	logx "taskbot/pkg/logx"
)

var (
	// ErrDeliveryFailed wraps every error returned by Sink.Deliver.
	ErrDeliveryFailed = errors.New("scheduler: reminder delivery failed")
	ErrStopped        = errors.New("scheduler: stopped")
)

// Config controls the scheduler service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Moscow"; empty means Local
}

// Sink receives fired reminders. Deliver may block; a blocked delivery only
// delays the re-arm of its own trigger.
type Sink interface {
	Deliver(ctx context.Context, userID int64, text string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, userID int64, text string) error

func (f SinkFunc) Deliver(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

type triggerState uint8

const (
	stateArmed triggerState = iota
	stateFiring
	stateCancelled
)

func (s triggerState) String() string {
	switch s {
	case stateArmed:
		return "armed"
	case stateFiring:
		return "firing"
	default:
		return "cancelled"
	}
}

type trigger struct {
	key    reminder.Key
	at     reminder.TimeOfDay
	userID int64
	text   string
	sched  cron.Schedule

	state triggerState
	timer Timer
	// armSeq guards against callbacks from a timer that was replaced.
	armSeq uint64

	next    time.Time
	last    time.Time
	fires   uint64
	lastErr string
}

// TriggerEvent is the eventbus payload for reminder events.
type TriggerEvent struct {
	UserID int64     `json:"user_id"`
	At     string    `json:"at"`
	Text   string    `json:"text"`
	Next   time.Time `json:"next,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// TriggerInfo describes one installed trigger.
type TriggerInfo struct {
	UserID    int64     `json:"user_id"`
	At        string    `json:"at"`
	Text      string    `json:"text"`
	State     string    `json:"state"`
	Next      time.Time `json:"next"`
	LastFire  time.Time `json:"last_fire,omitempty"`
	Fires     uint64    `json:"fires"`
	LastError string    `json:"last_error,omitempty"`
}

type Snapshot struct {
	Timezone string        `json:"timezone"`
	Stopped  bool          `json:"stopped"`
	Triggers []TriggerInfo `json:"triggers"`
}

type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	clock Clock
	sink  Sink

	cfg Config
	loc *time.Location

	triggers map[reminder.Key]*trigger
	stopped  bool

	// ctx is handed to Sink.Deliver and cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	inFly  sync.WaitGroup
}
