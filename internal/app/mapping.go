package app

import (
	"fmt"
	"strings"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/config"
	"plantit/internal/notifier"
	"plantit/internal/reminder"
	"plantit/internal/storage"
	"plantit/internal/transport"
	logx "plantit/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "memory":
		return storage.Config{Driver: "memory"}, nil
	case "file", "sqlite":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
		}
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapCalendar(cfg *config.Config) (cadence.Calendar, error) {
	loc, err := config.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return cadence.Calendar{}, fmt.Errorf("calendar.timezone: %w", err)
	}
	first, err := config.ParseWeekday(cfg.Calendar.FirstWeekday)
	if err != nil {
		return cadence.Calendar{}, fmt.Errorf("calendar.first_weekday: %w", err)
	}
	return cadence.Calendar{Location: loc, FirstWeekday: first}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	rc := cfg.Reminders
	every, err := config.ParseDurationField("reminders.reconcile_every", rc.ReconcileEvery)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{
		Enabled:        rc.Enabled,
		DigestCron:     strings.TrimSpace(rc.DigestCron),
		ReconcileEvery: every,
	}, nil
}

func snoozeInterval(cfg *config.Config) time.Duration {
	return config.DurationOr(cfg.Reminders.SnoozeInterval, time.Hour)
}

// mapNotifierConfig applies defaults when the section is omitted and parses
// its duration strings.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := config.DefaultNotifier()
	if cfg.Notifier != nil {
		nc = *cfg.Notifier
	}
	out := notifier.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		DedupMaxEntries: nc.DedupMaxEntries,
	}
	var err error
	if out.RetryBase, err = config.ParseDurationField("notifier.retry_base", nc.RetryBase); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationField("notifier.dedup_window", nc.DedupWindow); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

// reminderTarget is where reminders go: the configured Telegram chat, or the
// log when Telegram is off.
func reminderTarget(cfg *config.Config) (channel string, to transport.ChatTarget) {
	if !cfg.TelegramEnabled() {
		return "log", transport.ChatTarget{}
	}
	return "telegram", transport.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}
}
