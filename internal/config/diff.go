package config

import (
	"reflect"
	"sort"
	"strings"

	logx "plantit/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oS, nS := oldCfg.Storage, newCfg.Storage
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) {
		// Storage is opened once; a change only takes effect after restart.
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.restart_required", true),
		)
	}

	if oldCfg.Calendar != newCfg.Calendar {
		changed = append(changed, "calendar")
		attrs = append(attrs,
			logx.String("calendar.timezone", newCfg.Calendar.Timezone),
			logx.String("calendar.first_weekday", newCfg.Calendar.FirstWeekday),
		)
	}

	if oldCfg.Reminders != newCfg.Reminders {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.Bool("reminders.enabled", newCfg.Reminders.Enabled),
			logx.String("reminders.digest_cron", newCfg.Reminders.DigestCron),
			logx.String("reminders.snooze_interval", newCfg.Reminders.SnoozeInterval),
		)
	}

	oldN, newN := DefaultNotifier(), DefaultNotifier()
	if oldCfg.Notifier != nil {
		oldN = *oldCfg.Notifier
	}
	if newCfg.Notifier != nil {
		newN = *newCfg.Notifier
	}
	if oldN != newN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
		)
	}

	// Telegram: never log the token, only whether it is set.
	var oT, nT TelegramConfig
	if oldCfg.Telegram != nil {
		oT = *oldCfg.Telegram
	}
	if newCfg.Telegram != nil {
		nT = *newCfg.Telegram
	}
	if oT != nT {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(nT.Token) != ""),
			logx.Int64("telegram.chat_id", nT.ChatID),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nT.PollTimeout)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
