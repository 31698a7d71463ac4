package config

import "strings"

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Calendar  CalendarConfig  `json:"calendar"`
	Reminders RemindersConfig `json:"reminders"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	// Telegram is optional. When omitted, reminders are delivered to the log only.
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./plantit.db" }
//
// Drivers: "memory" (tests, dry runs), "file" (JSON snapshot in a directory), "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// CalendarConfig controls how cadences map onto wall-clock dates.
//
// first_weekday decides what weekday number 1 means for day-of-week cadences
// ("sunday" by default, so 1 = Sunday ... 7 = Saturday).
type CalendarConfig struct {
	Timezone     string `json:"timezone,omitempty"`
	FirstWeekday string `json:"first_weekday,omitempty"`
}

// RemindersConfig controls the in-process reminder scheduler.
//
// All durations are Go duration strings.
type RemindersConfig struct {
	Enabled bool `json:"enabled"`
	// DigestCron is a standard 5-field cron spec for the overdue digest.
	// Empty disables the digest.
	DigestCron string `json:"digest_cron,omitempty"`
	// SnoozeInterval defaults to "1h".
	SnoozeInterval string `json:"snooze_interval,omitempty"`
	// ReconcileEvery re-arms timers from the store periodically ("0s" disables).
	ReconcileEvery string `json:"reconcile_every,omitempty"`
}

// NotifierConfig controls the async reminder delivery pipeline.
//
// If the whole section is omitted, the notifier runs with defaults.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID receives reminders. Callbacks from other chats are ignored.
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "sqlite", Path: "./plantit.db", BusyTimeout: "5s"},
		Reminders: RemindersConfig{
			Enabled:        true,
			DigestCron:     "0 8 * * *",
			SnoozeInterval: "1h",
		},
	}
}

// DefaultNotifier mirrors the runtime defaults applied when the notifier section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       256,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "1m",
		DedupMaxEntries: 2000,
	}
}

// TelegramEnabled reports whether the Telegram reminder transport is configured.
func (c *Config) TelegramEnabled() bool {
	return c != nil && c.Telegram != nil && strings.TrimSpace(c.Telegram.Token) != ""
}
