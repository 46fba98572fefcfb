package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"taskbot/internal/eventbus"
	"taskbot/internal/reminder"
	logx "taskbot/pkg/logx"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	// async runs callbacks on their own goroutine like time.AfterFunc.
	async bool
}

type fakeTimer struct {
	c    *fakeClock
	when time.Time
	f    func()
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for i, x := range t.c.timers {
		if x == t {
			t.c.timers = append(t.c.timers[:i], t.c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves time forward, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		idx := -1
		for i, t := range c.timers {
			if t.when.After(target) {
				continue
			}
			if idx < 0 || t.when.Before(c.timers[idx].when) {
				idx = i
			}
		}
		if idx < 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		t := c.timers[idx]
		c.timers = append(c.timers[:idx], c.timers[idx+1:]...)
		if t.when.After(c.now) {
			c.now = t.when
		}
		async := c.async
		c.mu.Unlock()
		if async {
			go t.f()
		} else {
			t.f()
		}
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type delivery struct {
	userID int64
	text   string
}

type recordingSink struct {
	mu    sync.Mutex
	got   []delivery
	err   error
	onHit func(n int)
}

func (s *recordingSink) Deliver(_ context.Context, userID int64, text string) error {
	s.mu.Lock()
	s.got = append(s.got, delivery{userID: userID, text: text})
	n := len(s.got)
	hook := s.onHit
	err := s.err
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func utc(y int, mo time.Month, d, h, m, sec int) time.Time {
	return time.Date(y, mo, d, h, m, sec, 0, time.UTC)
}

func newTestService(t *testing.T, clk Clock, sink Sink, bus eventbus.Bus) *Service {
	t.Helper()
	s := New(Config{Timezone: "UTC"}, clk, sink, logx.Nop(), bus)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func mustTime(t *testing.T, raw string) reminder.TimeOfDay {
	t.Helper()
	at, err := reminder.ParseTimeOfDay(raw)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", raw, err)
	}
	return at
}

func install(t *testing.T, s *Service, userID int64, raw, text string) reminder.Key {
	t.Helper()
	r := reminder.Reminder{UserID: userID, At: mustTime(t, raw), Text: text}
	if err := s.Install(r.Key(), r.At, r.UserID, r.Text); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return r.Key()
}

func TestDailyScheduleNext(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		at   reminder.TimeOfDay
		from time.Time
		want time.Time
	}{
		{"later today", reminder.TimeOfDay{Hour: 9}, utc(2026, 3, 2, 8, 59, 59), utc(2026, 3, 2, 9, 0, 0)},
		{"exact instant rolls over", reminder.TimeOfDay{Hour: 9}, utc(2026, 3, 2, 9, 0, 0), utc(2026, 3, 3, 9, 0, 0)},
		{"just past", reminder.TimeOfDay{Hour: 9}, utc(2026, 3, 2, 9, 0, 0).Add(500 * time.Millisecond), utc(2026, 3, 3, 9, 0, 0)},
		{"across midnight", reminder.TimeOfDay{Minute: 15}, utc(2026, 3, 2, 23, 30, 0), utc(2026, 3, 3, 0, 15, 0)},
		{"month end", reminder.TimeOfDay{Hour: 23, Minute: 59}, utc(2026, 2, 28, 23, 59, 30), utc(2026, 3, 1, 23, 59, 0)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sched, err := dailySchedule(tc.at)
			if err != nil {
				t.Fatalf("dailySchedule: %v", err)
			}
			if got := sched.Next(tc.from); !got.Equal(tc.want) {
				t.Fatalf("Next = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInstallAtExactTimeFiresNextDay(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 9, 0, 0))
	sink := &recordingSink{}
	s := newTestService(t, clk, sink, nil)

	key := install(t, s, 1, "09:00", "stretch")
	next, ok := s.NextFire(key)
	if !ok || !next.Equal(utc(2026, 3, 3, 9, 0, 0)) {
		t.Fatalf("NextFire = %v, %v", next, ok)
	}

	clk.Advance(24*time.Hour - time.Minute)
	if n := sink.Count(); n != 0 {
		t.Fatalf("fired %d times before the next day", n)
	}
	clk.Advance(time.Minute)
	if n := sink.Count(); n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
	if d := sink.got[0]; d.userID != 1 || d.text != "stretch" {
		t.Fatalf("delivery = %+v", d)
	}
}

func TestReinstallSameKeyFiresOncePerDay(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	sink := &recordingSink{}
	s := newTestService(t, clk, sink, nil)

	install(t, s, 7, "09:00", "x")
	install(t, s, 7, "09:00", "x")
	install(t, s, 7, "9:0", "x")

	if s.triggerCount() != 1 || clk.Pending() != 1 {
		t.Fatalf("triggers=%d pending=%d, want 1/1", s.triggerCount(), clk.Pending())
	}
	clk.Advance(3 * 24 * time.Hour)
	if n := sink.Count(); n != 3 {
		t.Fatalf("fired %d times over 3 days, want 3", n)
	}
}

func TestDistinctRemindersFireIndependently(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	sink := &recordingSink{}
	s := newTestService(t, clk, sink, nil)

	install(t, s, 1, "09:00", "a")
	install(t, s, 1, "09:00", "b")
	install(t, s, 2, "09:00", "a")
	install(t, s, 1, "10:30", "a")

	if s.triggerCount() != 4 {
		t.Fatalf("triggers = %d, want 4", s.triggerCount())
	}
	clk.Advance(2 * time.Hour)
	if n := sink.Count(); n != 3 {
		t.Fatalf("fired %d by 10:00, want 3", n)
	}
	clk.Advance(time.Hour)
	if n := sink.Count(); n != 4 {
		t.Fatalf("fired %d by 11:00, want 4", n)
	}
}

func TestDeliveryFailureStillRearms(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	sink := &recordingSink{err: errors.New("chat not found")}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s := newTestService(t, clk, sink, bus)

	key := install(t, s, 3, "09:00", "water")
	clk.Advance(24 * time.Hour)

	if n := sink.Count(); n != 1 {
		t.Fatalf("fired %d, want 1", n)
	}
	next, _ := s.NextFire(key)
	if !next.Equal(utc(2026, 3, 3, 9, 0, 0)) {
		t.Fatalf("next after failure = %v", next)
	}

	var failed *TriggerEvent
	for len(events) > 0 {
		e := <-events
		if e.Type == eventbus.ReminderDeliveryFailed {
			ev := e.Data.(TriggerEvent)
			failed = &ev
		}
	}
	if failed == nil || !strings.Contains(failed.Error, "chat not found") {
		t.Fatalf("missing delivery failure event, got %+v", failed)
	}

	snap := s.Snapshot()
	if len(snap.Triggers) != 1 || snap.Triggers[0].LastError == "" || snap.Triggers[0].Fires != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	clk.Advance(24 * time.Hour)
	if n := sink.Count(); n != 2 {
		t.Fatalf("fired %d after second day, want 2", n)
	}
}

func TestStaleTimerCallbackIsIgnored(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	sink := &recordingSink{}
	s := newTestService(t, clk, sink, nil)

	install(t, s, 1, "09:00", "x")
	clk.mu.Lock()
	stale := clk.timers[0].f
	clk.mu.Unlock()

	install(t, s, 1, "09:00", "x")
	stale()
	if n := sink.Count(); n != 0 {
		t.Fatalf("stale callback delivered %d times", n)
	}
	clk.Advance(time.Hour)
	if n := sink.Count(); n != 1 {
		t.Fatalf("fired %d, want 1", n)
	}
}

func TestReplaceDuringDeliveryDoesNotRearmOldTrigger(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	sink := &recordingSink{}
	s := newTestService(t, clk, sink, nil)

	r := reminder.Reminder{UserID: 1, At: reminder.TimeOfDay{Hour: 9}, Text: "x"}
	sink.onHit = func(n int) {
		if n == 1 {
			if err := s.Install(r.Key(), r.At, r.UserID, r.Text); err != nil {
				t.Errorf("Install during delivery: %v", err)
			}
		}
	}
	if err := s.Install(r.Key(), r.At, r.UserID, r.Text); err != nil {
		t.Fatal(err)
	}

	clk.Advance(time.Hour)
	if s.triggerCount() != 1 || clk.Pending() != 1 {
		t.Fatalf("triggers=%d pending=%d, want 1/1", s.triggerCount(), clk.Pending())
	}
	clk.Advance(24 * time.Hour)
	if n := sink.Count(); n != 2 {
		t.Fatalf("fired %d, want 2", n)
	}
}

func TestShutdownCancelsTriggers(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	sink := &recordingSink{}
	s := New(Config{Timezone: "UTC"}, clk, sink, logx.Nop(), nil)

	key := install(t, s, 1, "09:00", "x")
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	clk.Advance(48 * time.Hour)
	if n := sink.Count(); n != 0 {
		t.Fatalf("fired %d after shutdown", n)
	}
	if clk.Pending() != 0 {
		t.Fatalf("pending timers after shutdown: %d", clk.Pending())
	}
	if err := s.Install(key, key.At, key.UserID, key.Text); !errors.Is(err, ErrStopped) {
		t.Fatalf("Install after shutdown = %v, want ErrStopped", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestSlowDeliveryDoesNotBlockOtherTriggers(t *testing.T) {
	t.Parallel()
	clk := newFakeClock(utc(2026, 3, 2, 8, 0, 0))
	clk.async = true
	release := make(chan struct{})
	fast := make(chan struct{}, 1)
	sink := SinkFunc(func(ctx context.Context, _ int64, text string) error {
		if text == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return ctx.Err()
		}
		fast <- struct{}{}
		return nil
	})
	s := New(Config{Timezone: "UTC"}, clk, sink, logx.Nop(), nil)

	install(t, s, 1, "09:00", "slow")
	install(t, s, 2, "09:00", "fast")
	clk.Advance(time.Hour)

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("fast trigger was blocked by slow delivery")
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestTimezoneAppliesToTimeOfDay(t *testing.T) {
	t.Parallel()
	// 00:00 UTC is 09:00 in Tokyo.
	clk := newFakeClock(utc(2026, 3, 2, 0, 0, 0))
	s := New(Config{Timezone: "Asia/Tokyo"}, clk, &recordingSink{}, logx.Nop(), nil)
	defer s.Shutdown(context.Background())

	key := install(t, s, 1, "09:00", "x")
	next, _ := s.NextFire(key)
	if !next.Equal(utc(2026, 3, 3, 0, 0, 0)) {
		t.Fatalf("next = %v, want 2026-03-03 00:00 UTC", next.UTC())
	}

	s.Apply(Config{Timezone: "UTC"})
	next, _ = s.NextFire(key)
	if !next.Equal(utc(2026, 3, 2, 9, 0, 0)) {
		t.Fatalf("next after tz change = %v", next.UTC())
	}
	if got := s.Snapshot().Timezone; got != "UTC" {
		t.Fatalf("Snapshot timezone = %q", got)
	}
}

func TestInstallRejectsInvalidTime(t *testing.T) {
	t.Parallel()
	s := newTestService(t, newFakeClock(utc(2026, 3, 2, 0, 0, 0)), &recordingSink{}, nil)
	at := reminder.TimeOfDay{Hour: 24}
	err := s.Install(reminder.Key{UserID: 1, At: at, Text: "x"}, at, 1, "x")
	if !errors.Is(err, reminder.ErrInvalidTimeFormat) {
		t.Fatalf("err = %v", err)
	}
	if s.triggerCount() != 0 {
		t.Fatal("invalid install must not add a trigger")
	}
}
