package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskbot/internal/config"
	"taskbot/internal/notifier"
	"taskbot/internal/observability/debug"
	"taskbot/internal/task/scheduler"
	"taskbot/internal/transport/telegram/router"
	logx "taskbot/pkg/logx"
)

// mapLoggingConfig resolves telegram.group_log into the log chat id.
func mapLoggingConfig(cfg *config.Config) logx.Config {
	var chatID int64
	if raw := strings.TrimSpace(cfg.Telegram.GroupLog); raw != "" {
		// Validate already rejected non-numeric values.
		chatID, _ = strconv.ParseInt(raw, 10, 64)
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     chatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: strings.TrimSpace(cfg.Scheduler.Timezone)}
}

// mapNotifierConfig leaves zero values to the notifier defaults.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{}, nil
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	sendTimeout, err := config.ParseDurationField("notifier.send_timeout", n.SendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:        n.Workers,
		QueueSize:      n.QueueSize,
		RatePerSec:     n.RatePerSec,
		RetryMax:       n.RetryMax,
		RetryBase:      retryBase,
		RetryMaxDelay:  retryMaxDelay,
		SendTimeout:    sendTimeout,
		ReminderPrefix: n.Prefix,
	}, nil
}

func mapRouterOptions(cfg *config.Config) (router.Options, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.command_timeout", cfg.Telegram.CommandTimeout, 15*time.Second)
	if err != nil {
		return router.Options{}, err
	}
	workers := cfg.Telegram.Workers
	if workers <= 0 {
		workers = 4
	}
	return router.Options{Workers: workers, DefaultTimeout: timeout}, nil
}

func mapDebugConfig(cfg *config.Config) debug.Config {
	return debug.Config{
		Enabled:      cfg.Debug.Enabled,
		Addr:         strings.TrimSpace(cfg.Debug.Addr),
		Token:        strings.TrimSpace(cfg.Debug.Token),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // pprof profile defaults to 30s
		IdleTimeout:  60 * time.Second,
	}
}

func mapPollTimeout(cfg *config.Config) (time.Duration, error) {
	d, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return 0, fmt.Errorf("map config: %w", err)
	}
	return d, nil
}
