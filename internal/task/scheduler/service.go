package scheduler

import (
	"context"
	"strings"
	"time"

	"taskbot/internal/eventbus"
	"taskbot/internal/reminder"
	logx "taskbot/pkg/logx"
)

// New returns a running scheduler. clock defaults to RealClock; bus may be nil.
func New(cfg Config, clock Clock, sink Sink, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if clock == nil {
		clock = RealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		clock:    clock,
		sink:     sink,
		triggers: map[reminder.Key]*trigger{},
		ctx:      ctx,
		cancel:   cancel,
	}
	s.loc = s.loadLocationLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()))
	return s
}

// Location returns the timezone used for HH:MM.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Apply updates the timezone and re-arms every trigger for its next occurrence
// in the new location.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if oldTZ == strings.TrimSpace(cfg.Timezone) || s.stopped {
		return
	}
	s.loc = s.loadLocationLocked()
	for _, t := range s.triggers {
		if t.state != stateArmed {
			// firing triggers pick up the new location on re-arm
			continue
		}
		t.stopTimerLocked()
		s.armLocked(t, time.Time{})
	}
	s.log.Info("timezone changed", logx.String("tz", s.loc.String()), logx.Int("triggers", len(s.triggers)))
}

// Shutdown cancels every trigger and the context of in-flight deliveries, then
// waits for those deliveries to return or ctx to expire. Install fails with
// ErrStopped afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	start := s.clock.Now()
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	n := len(s.triggers)
	for k, t := range s.triggers {
		t.stopTimerLocked()
		t.state = stateCancelled
		delete(s.triggers, k)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inFly.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown timed out waiting for deliveries")
		return ctx.Err()
	}
	s.log.Info("service stopped", logx.Int("triggers", n), logx.Duration("took", s.clock.Now().Sub(start)))
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) publish(typ string, t *trigger, next time.Time, err error) {
	if s.bus == nil {
		return
	}
	ev := TriggerEvent{UserID: t.userID, At: t.at.String(), Text: t.text, Next: next}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: ev})
}
