package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks values that would otherwise fail late (at reload or first use).
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory", "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if _, err := LoadLocation(cfg.Calendar.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("calendar.timezone: %w", err))
	}
	if _, err := ParseWeekday(cfg.Calendar.FirstWeekday); err != nil {
		errs = append(errs, fmt.Errorf("calendar.first_weekday: %w", err))
	}

	if spec := strings.TrimSpace(cfg.Reminders.DigestCron); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("reminders.digest_cron: %w", err))
		}
	}
	if _, err := ParseDurationField("reminders.snooze_interval", cfg.Reminders.SnoozeInterval); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("reminders.reconcile_every", cfg.Reminders.ReconcileEvery); err != nil {
		errs = append(errs, err)
	}

	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if t := cfg.Telegram; t != nil && strings.TrimSpace(t.Token) != "" {
		if t.ChatID == 0 {
			errs = append(errs, errors.New("telegram.chat_id: required when telegram.token is set"))
		}
		if _, err := ParseDurationField("telegram.poll_timeout", t.PollTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LoadLocation resolves a timezone name; empty means the process local zone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// ParseWeekday parses an English weekday name; empty means Sunday.
func ParseWeekday(raw string) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", raw)
}
