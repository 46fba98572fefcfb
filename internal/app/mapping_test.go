package app

import (
	"testing"
	"time"

	"taskbot/internal/config"
)

func TestMapLoggingConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Telegram: config.TelegramConfig{Token: "t", GroupLog: " -100123 "},
		Logging: config.LoggingConfig{
			Level:    "debug",
			Telegram: config.LoggingTelegram{Enabled: true, ThreadID: 4, MinLevel: "warn"},
		},
	}
	got := mapLoggingConfig(cfg)
	if got.Level != "debug" || !got.Telegram.Enabled || got.Telegram.ChatID != -100123 || got.Telegram.ThreadID != 4 {
		t.Fatalf("logging = %+v", got)
	}
	cfg.Telegram.GroupLog = ""
	if got := mapLoggingConfig(cfg); got.Telegram.ChatID != 0 {
		t.Fatalf("chat id = %d, want 0", got.Telegram.ChatID)
	}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()
	if got, err := mapNotifierConfig(&config.Config{}); err != nil || got.RetryMax != 0 || got.Workers != 0 {
		t.Fatalf("nil section = %+v, %v", got, err)
	}
	got, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{
		Workers:     3,
		RetryMax:    2,
		RetryBase:   "250ms",
		SendTimeout: "5s",
		Prefix:      "Ping: ",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Workers != 3 || got.RetryMax != 2 || got.RetryBase != 250*time.Millisecond || got.SendTimeout != 5*time.Second || got.ReminderPrefix != "Ping: " {
		t.Fatalf("notifier = %+v", got)
	}
	if _, err := mapNotifierConfig(&config.Config{Notifier: &config.NotifierConfig{RetryMaxDelay: "soon"}}); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestMapRouterOptions(t *testing.T) {
	t.Parallel()
	got, err := mapRouterOptions(&config.Config{})
	if err != nil || got.Workers != 4 || got.DefaultTimeout != 15*time.Second {
		t.Fatalf("defaults = %+v, %v", got, err)
	}
	got, err = mapRouterOptions(&config.Config{Telegram: config.TelegramConfig{Workers: 8, CommandTimeout: "30s"}})
	if err != nil || got.Workers != 8 || got.DefaultTimeout != 30*time.Second {
		t.Fatalf("explicit = %+v, %v", got, err)
	}
}

func TestMapSchedulerAndDebug(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{Timezone: " Europe/Moscow "},
		Debug:     config.DebugConfig{Enabled: true, Addr: "127.0.0.1:7000", Token: " x "},
	}
	if got := mapSchedulerConfig(cfg); got.Timezone != "Europe/Moscow" {
		t.Fatalf("scheduler = %+v", got)
	}
	d := mapDebugConfig(cfg)
	if !d.Enabled || d.Addr != "127.0.0.1:7000" || d.Token != "x" || d.WriteTimeout < 30*time.Second {
		t.Fatalf("debug = %+v", d)
	}
	if p, err := mapPollTimeout(cfg); err != nil || p != 10*time.Second {
		t.Fatalf("poll = %v, %v", p, err)
	}
}
