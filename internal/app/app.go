package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskbot/internal/bot"
	"taskbot/internal/config"
	"taskbot/internal/eventbus"
	"taskbot/internal/notifier"
	"taskbot/internal/observability/debug"
	"taskbot/internal/reminder"
	rtsup "taskbot/internal/runtime/supervisor"
	"taskbot/internal/task/scheduler"
	"taskbot/internal/todo"
	kit "taskbot/internal/transport"
	telegram "taskbot/internal/transport/telegram/adapter"
	"taskbot/internal/transport/telegram/router"
	logx "taskbot/pkg/logx"
)

// App wires the bot: config, logging, transport, stores, scheduler, notifier,
// command router and the optional debug server.
type App struct {
	cfgm  *config.Manager
	supMu sync.Mutex
	sup   *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	adapter kit.Adapter

	tasks     *todo.Store
	reminders *reminder.Registry
	sched     *scheduler.Service
	notif     *notifier.Service
	debug     *debug.Service

	cmdm *router.CommandManager

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := mapPollTimeout(cfg)
	if err != nil {
		return nil, err
	}
	routerOpts, err := mapRouterOptions(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()
	notif := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus)
	sched := scheduler.New(mapSchedulerConfig(cfg), scheduler.RealClock(), notif,
		log.With(logx.String("comp", "scheduler")), bus)

	tasks := todo.NewStore()
	reminders := reminder.NewRegistry()

	cmdm := router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, routerOpts)
	cmdm.SetRegistry(bot.New(tasks, reminders, sched, log.With(logx.String("comp", "bot"))).Commands())

	a := &App{
		cfgm:      cfgm,
		log:       log.With(logx.String("comp", "app")),
		logs:      logSvc,
		bus:       bus,
		adapter:   ad,
		tasks:     tasks,
		reminders: reminders,
		sched:     sched,
		notif:     notif,
		cmdm:      cmdm,
		updates:   make(chan kit.Update, 256),
	}
	a.debug = debug.New(mapDebugConfig(cfg), debug.Sources{
		Triggers:    func() any { return sched.Snapshot() },
		Notifier:    func() any { return notif.Stats() },
		Supervisors: func() any { return a.supervisorStatus() },
	}, log.With(logx.String("comp", "debug")))
	return a, nil
}

// supervised is implemented by components that run their own goroutines.
type supervised interface {
	Supervisor() *rtsup.Supervisor
}

// supervisorStatus reports every runtime supervisor by component name.
func (a *App) supervisorStatus() map[string]rtsup.Status {
	out := map[string]rtsup.Status{
		"app":      a.appSupervisor().Status(),
		"router":   a.cmdm.Supervisor().Status(),
		"notifier": a.notif.Supervisor().Status(),
		"debug":    a.debug.Supervisor().Status(),
	}
	if sv, ok := a.adapter.(supervised); ok {
		out["adapter"] = sv.Supervisor().Status()
	}
	return out
}

func (a *App) appSupervisor() *rtsup.Supervisor {
	a.supMu.Lock()
	defer a.supMu.Unlock()
	return a.sup
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.supMu.Lock()
	a.sup = sup
	a.supMu.Unlock()

	// Reloads must also map cleanly before they are committed.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		_, err := mapRouterOptions(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	// Only Stop ends the notifier, so reminders queued at shutdown still drain.
	a.notif.Start(context.WithoutCancel(a.sup.Context()))
	if err := a.debug.Start(a.sup.Context()); err != nil {
		// optional; keep the bot running
		a.log.Warn("debug server not started", logx.Err(err))
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.String("timezone", a.sched.Location().String()),
		logx.String("config", a.cfgm.Path()),
	)
	return nil
}

// applyConfig pushes a reloaded config into the live components.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)

	// Logging first so the remaining messages use the new level and sinks.
	a.logs.Apply(mapLoggingConfig(newCfg))
	a.sched.Apply(mapSchedulerConfig(newCfg))
	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}
	if len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.log.Info("config reloaded", fields...)
}

func (a *App) logEvent(e eventbus.Event) {
	fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
	switch d := e.Data.(type) {
	case scheduler.TriggerEvent:
		fields = append(fields,
			logx.Int64("user_id", d.UserID),
			logx.String("at", d.At),
			logx.Time("next", d.Next),
		)
		if d.Error != "" {
			fields = append(fields, logx.String("err", d.Error))
		}
	case notifier.NotificationEvent:
		fields = append(fields, logx.Int64("chat_id", d.ChatID))
		if d.Error != "" {
			fields = append(fields, logx.String("err", d.Error))
		}
	}
	switch e.Type {
	case eventbus.ReminderDeliveryFailed, eventbus.NotifierFailed, eventbus.NotifierDropped:
		a.log.Warn("event", fields...)
	default:
		// frequent; keep at debug
		a.log.Debug("event", fields...)
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// step bounds one component so it cannot stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// Scheduler first so no reminder is handed to a stopping notifier.
	step("scheduler", 2*time.Second, a.sched.Shutdown)
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.sup.Cancel()
	step("debug", 1*time.Second, a.debug.Stop)
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)

	// state is in memory only; report what is being dropped
	a.log.Info("stopped", logx.Int("reminders", a.reminders.Len()))
	return a.logs.Close()
}
