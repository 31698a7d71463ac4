package app

import (
	"plantit/internal/cadence"
	"plantit/internal/config"
	"plantit/internal/eventbus"
	"plantit/internal/importer"
	"plantit/internal/reminder"
	"plantit/internal/repository"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

// Core is the data layer shared by the server and the one-shot CLI
// commands: the store plus the services that mutate it.
type Core struct {
	Config   *config.Config
	Log      logx.Logger
	Calendar cadence.Calendar
	Bus      eventbus.Bus
	Store    storage.Store
	Repo     *repository.Repository
	Importer *importer.Service
}

// OpenCore opens the configured store. Reminders are dropped until UseSink
// installs a live sink.
func OpenCore(cfg *config.Config, log logx.Logger, bus eventbus.Bus) (*Core, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	cal, err := mapCalendar(cfg)
	if err != nil {
		return nil, err
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Debug("storage opened", logx.Category(logx.CatData), logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	c := &Core{Config: cfg, Log: log, Calendar: cal, Bus: bus, Store: st}
	c.UseSink(reminder.NopSink{})
	return c, nil
}

// UseSink rebuilds the repository and importer around s.
func (c *Core) UseSink(s reminder.Sink) {
	c.Repo = repository.New(c.Store, c.Calendar, c.Log.With(logx.String("comp", "repository")),
		repository.WithSink(s),
		repository.WithSnooze(snoozeInterval(c.Config)),
	)
	c.Importer = importer.New(c.Store, c.Calendar, c.Log.With(logx.String("comp", "importer")),
		importer.WithSink(s),
		importer.WithBus(c.Bus),
	)
}

func (c *Core) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
