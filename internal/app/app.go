package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"plantit/internal/config"
	"plantit/internal/eventbus"
	"plantit/internal/notifier"
	"plantit/internal/reminder"
	"plantit/internal/runtime/supervisor"
	"plantit/internal/transport"
	"plantit/internal/transport/telegram"
	"plantit/internal/transport/telegram/router"
	logx "plantit/pkg/logx"
)

// App is the long-running serve mode: reminders fire on time, go out
// through the notifier, and button taps come back as schedule actions.
type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	core *Core

	adapter   transport.Adapter
	notif     *notifier.Service
	reminders *reminder.Service
	actions   *reminder.Actions
	router    *router.Router

	updates chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLoggingConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	bus := eventbus.New()
	core, err := OpenCore(cfg, root, bus)
	if err != nil {
		return nil, err
	}

	var ad transport.Adapter
	if cfg.TelegramEnabled() {
		pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
		if err != nil {
			_ = core.Close()
			return nil, err
		}
		tg, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, root)
		if err != nil {
			_ = core.Close()
			return nil, err
		}
		ad = tg
	} else {
		log.Info("telegram not configured; reminders go to the log", logx.Category(logx.CatNotifications))
		ad = transport.NewLogAdapter(root)
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	notif := notifier.New(ncfg, ad, root.With(logx.String("comp", "notifier")), bus, core.Store)

	rcfg, err := mapReminderConfig(cfg)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	channel, target := reminderTarget(cfg)
	reminders := reminder.NewService(rcfg, core.Calendar, core.Store,
		reminder.NotifierDeliverer{Notifier: notif, Channel: channel, Target: target},
		root.With(logx.String("comp", "reminders")),
		reminder.WithBus(bus),
	)
	core.UseSink(reminders)

	actions := reminder.NewActions(core.Repo, core.Calendar, root.With(logx.String("comp", "actions")),
		reminder.WithAuditor(core.Store),
		reminder.WithActionBus(bus),
		reminder.WithSnoozeInterval(snoozeInterval(cfg)),
	)

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		core:      core,
		adapter:   ad,
		notif:     notif,
		reminders: reminders,
		actions:   actions,
		updates:   make(chan transport.Update, 256),
	}
	if cfg.TelegramEnabled() {
		a.router = router.New(ad, root, cfg.Telegram.ChatID)
		a.registerBot(a.router)
	}
	return a, nil
}

// Core exposes the data layer, e.g. for an import run inside serve.
func (a *App) Core() *Core { return a.core }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	// reject reloads that would only fail once applied
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, err := mapReminderConfig(cfg); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapCalendar(cfg)
		return err
	})

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	a.notif.Start(runCtx)
	if err := a.reminders.Start(runCtx); err != nil {
		return fmt.Errorf("start reminders: %w", err)
	}
	a.sup.Go0("reminder.actions", a.actions.Run)
	if a.router != nil {
		a.sup.Go("router", func(c context.Context) error {
			return a.router.Run(c, a.updates)
		})
	}

	events, unsub := a.core.Bus.Subscribe(128)
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
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
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
				// coalesce bursts
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.Category(logx.CatLifecycle), logx.Int("pending_reminders", len(a.reminders.Pending())))
	return nil
}

// applyConfig applies the sections that can change live. Storage, calendar,
// reminders and telegram are read once at startup.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range []string{"storage", "calendar", "reminders", "telegram"} {
		if slices.Contains(sections, s) {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLoggingConfig(next))

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case wasEnabled && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	a.core.Bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.core.Close()
	}
	a.log.Info("stopping", logx.Category(logx.CatLifecycle), logx.String("reason", string(reason)))

	// Each step gets its own bound so one component cannot stall shutdown.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
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
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("reminders", 2*time.Second, a.reminders.Stop)
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("transport", 2*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Stop)
	step("storage", time.Second, func(context.Context) error { return a.core.Close() })

	a.log.Info("stopped", logx.Category(logx.CatLifecycle))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
