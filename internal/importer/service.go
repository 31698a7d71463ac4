package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/eventbus"
	"plantit/internal/garden"
	"plantit/internal/legacy"
	"plantit/internal/reminder"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

// DefaultSpecies is applied at commit when the draft's species is blank.
const DefaultSpecies = "Unknown"

var (
	ErrNoDraft        = errors.New("there is no draft available to import")
	ErrEmptyPlantName = errors.New("the plant name cannot be empty")
)

// StoreError reports a failed save. Nothing from the commit was persisted.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "import commit: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// CommitOptions carries the user's reconciliation choices.
type CommitOptions struct {
	// SelectedVillage wins over everything else when set.
	SelectedVillage *garden.Village
	// NewVillageName is matched case-insensitively against ExistingVillages
	// and created with NewVillageClimate when absent.
	NewVillageName    string
	NewVillageClimate garden.Climate
	// ExistingVillages is consulted for name matching; nil means list the store.
	ExistingVillages []garden.Village
}

type CommitResult struct {
	Plant          garden.Plant
	CreatedVillage *garden.Village
	ActivityCount  int
	ScheduleCount  int
}

// CommittedEvent is the payload of eventbus.ImportCommitted.
type CommittedEvent struct {
	PlantID        string `json:"plant_id"`
	PlantName      string `json:"plant_name"`
	Source         string `json:"source"`
	VillageCreated bool   `json:"village_created"`
	Activities     int    `json:"activities"`
	Schedules      int    `json:"schedules"`
	UnknownFields  int    `json:"unknown_fields"`
}

type Option func(*Service)

func WithSink(s reminder.Sink) Option { return func(svc *Service) { svc.sink = s } }
func WithBus(b eventbus.Bus) Option { return func(svc *Service) { svc.bus = b } }
func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

// Service holds at most one pending draft and commits it.
//
// States: idle (no draft) and pending. A successful load replaces any pending
// draft; a successful commit or ClearDraft returns to idle. A failed load or
// commit leaves the state as it was.
type Service struct {
	store storage.Store
	cal   cadence.Calendar
	log   logx.Logger
	sink  reminder.Sink
	bus   eventbus.Bus
	now   func() time.Time

	mu         sync.Mutex
	draft      *legacy.Draft
	lastErr    error
	lastResult *CommitResult
}

func New(store storage.Store, cal cadence.Calendar, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		store: store,
		cal:   cal,
		log:   log.With(logx.Category(logx.CatImportExport)),
		sink:  reminder.NopSink{},
		bus:   eventbus.Nop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadDraft parses data and installs the resulting draft.
func (s *Service) LoadDraft(data []byte, source string, existing []garden.Village) (*legacy.Draft, error) {
	payload, err := legacy.Parser{Location: s.cal.Location}.Parse(data)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.log.Warn("legacy import rejected", logx.String("source", source), logx.Err(err))
		return nil, err
	}

	d := legacy.Builder{Calendar: s.cal, Now: s.now}.Build(payload, existing, source)

	s.mu.Lock()
	s.draft = d
	s.lastErr = nil
	s.lastResult = nil
	s.mu.Unlock()

	s.log.Info("legacy draft loaded",
		logx.String("source", source),
		logx.String("plant", d.Plant.Name),
		logx.Int("activities", len(d.Activities)),
		logx.Int("schedules", len(d.Schedules)),
		logx.Int("unknown_fields", d.TotalUnknownFieldCount()),
	)
	return d, nil
}

// LoadFile reads path and loads it against the store's villages.
func (s *Service) LoadFile(ctx context.Context, path string) (*legacy.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.setLastErr(err)
		return nil, err
	}
	villages, err := s.store.Villages(ctx)
	if err != nil {
		err = &StoreError{Err: err}
		s.setLastErr(err)
		return nil, err
	}
	return s.LoadDraft(data, filepath.Base(path), villages)
}

// Draft returns the pending draft or nil.
func (s *Service) Draft() *legacy.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Service) ClearDraft() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
}

func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) LastResult() *CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

func (s *Service) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Commit persists d in one atomic save. Only the activities and schedules
// still present in d are attached; schedule due dates are kept as built.
//
// d is not modified. On failure the pending draft stays in place.
func (s *Service) Commit(ctx context.Context, d *legacy.Draft, opt CommitOptions) (*CommitResult, error) {
	if d == nil {
		return nil, ErrNoDraft
	}

	plant := d.Plant.Clone()
	plant.Name = strings.TrimSpace(plant.Name)
	if plant.Name == "" {
		s.setLastErr(ErrEmptyPlantName)
		return nil, ErrEmptyPlantName
	}
	plant.Species = strings.TrimSpace(plant.Species)
	if plant.Species == "" {
		plant.Species = DefaultSpecies
	}
	plant.Notes = strings.TrimSpace(plant.Notes)

	existing := opt.ExistingVillages
	if existing == nil {
		vs, err := s.store.Villages(ctx)
		if err != nil {
			return nil, s.fail(d, &StoreError{Err: err})
		}
		existing = vs
	}

	cs := storage.NewChangeSet()
	created := resolveVillage(&plant, d, opt, existing)
	if created != nil {
		cs.PutVillage(*created)
	}

	var lastWater *time.Time
	activities := make([]garden.Activity, 0, len(d.Activities))
	for _, a := range d.Activities {
		a.PlantID = plant.ID
		activities = append(activities, a)
		if a.Kind == garden.ActivityWater && (lastWater == nil || a.CreatedAt.After(*lastWater)) {
			at := a.CreatedAt
			lastWater = &at
		}
	}
	if lastWater != nil {
		plant.LastWateredAt = lastWater
	}

	schedules := make([]garden.Schedule, 0, len(d.Schedules))
	for _, sc := range d.Schedules {
		sc = sc.Clone()
		sc.PlantID = plant.ID
		schedules = append(schedules, sc)
	}

	cs.PutPlant(plant)
	for _, a := range activities {
		cs.PutActivity(a)
	}
	for _, sc := range schedules {
		cs.PutSchedule(sc)
	}

	if err := s.store.Save(ctx, cs); err != nil {
		return nil, s.fail(d, &StoreError{Err: err})
	}

	res := &CommitResult{
		Plant:          plant,
		CreatedVillage: created,
		ActivityCount:  len(activities),
		ScheduleCount:  len(schedules),
	}

	s.mu.Lock()
	s.lastResult = res
	s.lastErr = nil
	if s.draft == d {
		s.draft = nil
	}
	s.mu.Unlock()

	for _, sc := range schedules {
		if r, ok := reminder.For(s.cal, sc, plant.Name); ok {
			s.sink.ScheduleReminder(ctx, r)
		}
	}
	s.afterCommit(ctx, d, res)
	return res, nil
}

func (s *Service) fail(d *legacy.Draft, err error) error {
	s.setLastErr(err)
	s.log.Error("legacy import commit failed",
		logx.String("source", d.Source),
		logx.String("plant", d.Plant.Name),
		logx.Err(err),
	)
	return err
}

// resolveVillage applies the village precedence to plant and returns the
// village to create, if any: selected > already attached > new name > pending.
func resolveVillage(plant *garden.Plant, d *legacy.Draft, opt CommitOptions, existing []garden.Village) *garden.Village {
	if opt.SelectedVillage != nil {
		plant.VillageID = opt.SelectedVillage.ID
		return nil
	}
	if plant.VillageID != "" {
		return nil
	}

	name, climate := strings.TrimSpace(opt.NewVillageName), opt.NewVillageClimate
	if name == "" && d.PendingVillage != nil {
		name, climate = strings.TrimSpace(d.PendingVillage.Name), d.PendingVillage.Climate
	}
	if name == "" {
		return nil
	}
	if v, ok := legacy.MatchVillage(existing, name); ok {
		plant.VillageID = v.ID
		return nil
	}
	if climate == "" {
		climate = garden.Temperate
	}
	v := garden.Village{ID: garden.NewID(), Name: name, Climate: climate}
	plant.VillageID = v.ID
	return &v
}

func (s *Service) afterCommit(ctx context.Context, d *legacy.Draft, res *CommitResult) {
	ev := CommittedEvent{
		PlantID:        res.Plant.ID,
		PlantName:      res.Plant.Name,
		Source:         d.Source,
		VillageCreated: res.CreatedVillage != nil,
		Activities:     res.ActivityCount,
		Schedules:      res.ScheduleCount,
		UnknownFields:  d.TotalUnknownFieldCount(),
	}

	meta, _ := json.Marshal(struct {
		CommittedEvent
		LegacyID string                       `json:"legacy_id,omitempty"`
		Unknown  map[string]map[string]string `json:"unknown,omitempty"`
	}{ev, d.Metadata.LegacyID, d.UnknownFields})

	if err := s.store.AppendAudit(ctx, storage.AuditEntry{
		At:        s.now(),
		Subsystem: "import",
		Action:    "commit",
		Target:    res.Plant.ID,
		OK:        true,
		MetaJSON:  string(meta),
	}); err != nil {
		s.log.Warn("audit append failed", logx.Err(err))
	}

	s.bus.Publish(eventbus.Event{Type: eventbus.ImportCommitted, Time: s.now(), Data: ev})

	fields := []logx.Field{
		logx.String("source", d.Source),
		logx.String("plant_id", res.Plant.ID),
		logx.String("plant", res.Plant.Name),
		logx.Int("activities", res.ActivityCount),
		logx.Int("schedules", res.ScheduleCount),
	}
	if res.CreatedVillage != nil {
		fields = append(fields, logx.String("created_village", res.CreatedVillage.Name))
	}
	s.log.Info("legacy import committed", fields...)
}

// Summary is a one-line description of a commit for CLI output.
func (r *CommitResult) Summary() string {
	msg := fmt.Sprintf("Imported %q with %d activities and %d schedules", r.Plant.Name, r.ActivityCount, r.ScheduleCount)
	if r.CreatedVillage != nil {
		msg += fmt.Sprintf(" (created village %q)", r.CreatedVillage.Name)
	}
	return msg
}
