package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"taskbot/internal/eventbus"
	"taskbot/internal/reminder"
	logx "taskbot/pkg/logx"
)

// Install arms a daily trigger for key at HH:MM, delivering text to userID.
// An existing trigger for key is replaced: its timer is stopped before Install
// returns and any callback it still produces is ignored. A delivery already
// in progress for the old trigger completes but does not re-arm.
func (s *Service) Install(key reminder.Key, at reminder.TimeOfDay, userID int64, text string) error {
	if !at.Valid() {
		return fmt.Errorf("%w: %v", reminder.ErrInvalidTimeFormat, at)
	}
	sched, err := dailySchedule(at)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	replaced := false
	if old := s.triggers[key]; old != nil {
		old.stopTimerLocked()
		old.state = stateCancelled
		replaced = true
	}
	t := &trigger{key: key, at: at, userID: userID, text: text, sched: sched}
	s.triggers[key] = t
	s.armLocked(t, time.Time{})
	next := t.next
	s.mu.Unlock()

	s.log.Debug("trigger installed",
		logx.Int64("user_id", userID),
		logx.String("at", at.String()),
		logx.Bool("replaced", replaced),
		logx.Time("next", next),
	)
	s.publish(eventbus.ReminderInstalled, t, next, nil)
	return nil
}

// triggerCount reports the number of installed triggers.
func (s *Service) triggerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.triggers)
}

// NextFire returns the armed fire time for key.
func (s *Service) NextFire(key reminder.Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.triggers[key]
	if t == nil {
		return time.Time{}, false
	}
	return t.next, true
}

var dailyParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// dailySchedule fires every day at at. Next is strictly after its argument,
// in the argument's location.
func dailySchedule(at reminder.TimeOfDay) (cron.Schedule, error) {
	return dailyParser.Parse(dailySpec(at))
}

func dailySpec(at reminder.TimeOfDay) string {
	return fmt.Sprintf("%d %d * * *", at.Minute, at.Hour)
}

// armLocked schedules the next fire of t strictly after the later of now and
// notBefore. Call with s.mu held.
func (s *Service) armLocked(t *trigger, notBefore time.Time) {
	now := s.clock.Now().In(s.loc)
	from := now
	if notBefore.After(from) {
		from = notBefore.In(s.loc)
	}
	t.next = t.sched.Next(from)
	t.state = stateArmed
	t.armSeq++
	seq := t.armSeq
	delay := t.next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(t, seq) })
}

func (t *trigger) stopTimerLocked() {
	if t.timer != nil {
		_ = t.timer.Stop()
		t.timer = nil
	}
	t.armSeq++
}

// fire runs on the timer's goroutine, so a slow Deliver only holds up this
// trigger.
func (s *Service) fire(t *trigger, seq uint64) {
	s.mu.Lock()
	if s.stopped || s.triggers[t.key] != t || t.armSeq != seq || t.state != stateArmed {
		s.mu.Unlock()
		return
	}
	t.state = stateFiring
	t.timer = nil
	scheduled := t.next
	ctx := s.ctx
	s.inFly.Add(1)
	s.mu.Unlock()
	defer s.inFly.Done()

	s.publish(eventbus.ReminderFired, t, scheduled, nil)
	var err error
	if s.sink == nil {
		err = fmt.Errorf("%w: no sink configured", ErrDeliveryFailed)
	} else if derr := s.sink.Deliver(ctx, t.userID, t.text); derr != nil {
		err = fmt.Errorf("%w: %w", ErrDeliveryFailed, derr)
	}

	s.mu.Lock()
	t.last = s.clock.Now()
	t.fires++
	if err != nil {
		t.lastErr = err.Error()
	} else {
		t.lastErr = ""
	}
	rearmed := false
	if !s.stopped && s.triggers[t.key] == t && t.state == stateFiring {
		// Re-arm from the scheduled instant so an early wake-up cannot fire twice.
		s.armLocked(t, scheduled)
		rearmed = true
	}
	next := t.next
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("reminder delivery failed",
			logx.Int64("user_id", t.userID),
			logx.String("at", t.at.String()),
			logx.Err(err),
		)
		s.publish(eventbus.ReminderDeliveryFailed, t, next, err)
	}
	if rearmed {
		s.log.Trace("trigger re-armed", logx.Int64("user_id", t.userID), logx.Time("next", next))
	}
}
