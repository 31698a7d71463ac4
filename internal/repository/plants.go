package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/garden"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

// PlantInput holds the editable plant fields.
//
// WateringFrequencyInDays manages the plant's watering schedule: set it to
// create or retune one (every N days), leave it nil to remove it.
type PlantInput struct {
	Name                    string
	Species                 string
	Notes                   string
	VillageID               string
	WateringFrequencyInDays *int
}

func (r *Repository) Plants(ctx context.Context, villageID string) ([]garden.Plant, error) {
	return r.store.Plants(ctx, storage.PlantFilter{VillageID: villageID})
}

func (r *Repository) Plant(ctx context.Context, id string) (garden.Plant, error) {
	p, err := r.store.Plant(ctx, id)
	if err != nil {
		return garden.Plant{}, notFound("plant", id, err)
	}
	return p, nil
}

// ResolvePlant finds a plant by id, or by case-insensitive name.
func (r *Repository) ResolvePlant(ctx context.Context, ref string) (garden.Plant, error) {
	ref = strings.TrimSpace(ref)
	if p, err := r.store.Plant(ctx, ref); err == nil {
		return p, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return garden.Plant{}, err
	}
	ps, err := r.store.Plants(ctx, storage.PlantFilter{})
	if err != nil {
		return garden.Plant{}, err
	}
	var found []garden.Plant
	for _, p := range ps {
		if strings.EqualFold(p.Name, ref) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return garden.Plant{}, notFound("plant", ref, storage.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return garden.Plant{}, notFound("plant", ref, ErrAmbiguous)
	}
}

func (r *Repository) CreatePlant(ctx context.Context, in PlantInput) (garden.Plant, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return garden.Plant{}, err
	}
	p := garden.Plant{
		ID:        garden.NewID(),
		Name:      name,
		Species:   strings.TrimSpace(in.Species),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: r.now(),
		VillageID: in.VillageID,
	}

	cs := storage.NewChangeSet().PutPlant(p)
	var watering *garden.Schedule
	if in.WateringFrequencyInDays != nil {
		s := garden.NewSchedule(r.cal, garden.ScheduleSpec{
			PlantID:         p.ID,
			Kind:            garden.ScheduleWatering,
			Cadence:         cadence.EveryNDays,
			FrequencyInDays: *in.WateringFrequencyInDays,
		}, r.now())
		cs.PutSchedule(s)
		watering = &s
	}

	if err := r.save(ctx, "create plant", cs); err != nil {
		return garden.Plant{}, err
	}
	if watering != nil {
		r.arm(ctx, *watering, p.Name)
	}
	r.log.Info("plant created", logx.String("plant_id", p.ID), logx.String("name", p.Name))
	return p, nil
}

// UpdatePlant overwrites the editable fields and reconciles the watering
// schedule with in.WateringFrequencyInDays.
func (r *Repository) UpdatePlant(ctx context.Context, id string, in PlantInput) (garden.Plant, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return garden.Plant{}, err
	}
	p, err := r.Plant(ctx, id)
	if err != nil {
		return garden.Plant{}, err
	}
	p.Name = name
	p.Species = strings.TrimSpace(in.Species)
	p.Notes = strings.TrimSpace(in.Notes)
	p.VillageID = in.VillageID

	scheds, err := r.store.Schedules(ctx, storage.ScheduleFilter{PlantID: p.ID})
	if err != nil {
		return garden.Plant{}, err
	}
	watering, hasWatering := firstOfKind(scheds, garden.ScheduleWatering)

	cs := storage.NewChangeSet().PutPlant(p)
	var rearm *garden.Schedule
	cancel := ""
	switch {
	case in.WateringFrequencyInDays != nil && hasWatering:
		watering.Cadence = cadence.EveryNDays
		watering.FrequencyInDays = max(1, *in.WateringFrequencyInDays)
		watering.Normalize()
		watering.RecomputeNextDue(r.cal, r.now())
		cs.PutSchedule(watering)
		rearm = &watering
	case in.WateringFrequencyInDays != nil:
		s := garden.NewSchedule(r.cal, garden.ScheduleSpec{
			PlantID:         p.ID,
			Kind:            garden.ScheduleWatering,
			Cadence:         cadence.EveryNDays,
			FrequencyInDays: *in.WateringFrequencyInDays,
		}, r.now())
		cs.PutSchedule(s)
		rearm = &s
	case hasWatering:
		cs.Delete(storage.EntitySchedule, watering.ID)
		cancel = watering.ID
	}

	if err := r.save(ctx, "update plant", cs); err != nil {
		return garden.Plant{}, err
	}
	if rearm != nil {
		r.arm(ctx, *rearm, p.Name)
	}
	if cancel != "" {
		r.sink.CancelReminder(ctx, cancel)
	}
	return p, nil
}

// DeletePlant removes the plant with its activities, photos and schedules.
func (r *Repository) DeletePlant(ctx context.Context, id string) error {
	if _, err := r.Plant(ctx, id); err != nil {
		return err
	}
	scheds, err := r.store.Schedules(ctx, storage.ScheduleFilter{PlantID: id})
	if err != nil {
		return err
	}
	if err := r.save(ctx, "delete plant", storage.NewChangeSet().Delete(storage.EntityPlant, id)); err != nil {
		return err
	}
	for _, s := range scheds {
		r.sink.CancelReminder(ctx, s.ID)
	}
	r.log.Info("plant deleted", logx.String("plant_id", id), logx.Int("schedules", len(scheds)))
	return nil
}

// RecordActivity appends an activity dated now. Watering also sets the
// plant's last-watered time. Water and fertilize complete the plant's first
// schedule of the matching kind.
func (r *Repository) RecordActivity(ctx context.Context, plantID string, kind garden.ActivityKind, note string) (garden.Activity, error) {
	if _, ok := garden.ParseActivityKind(string(kind)); !ok {
		return garden.Activity{}, &InvalidError{Field: "kind", Reason: "unknown activity kind " + string(kind)}
	}
	p, err := r.Plant(ctx, plantID)
	if err != nil {
		return garden.Activity{}, err
	}

	var target *garden.Schedule
	if sk, ok := garden.ScheduleKindFor(kind); ok {
		scheds, err := r.store.Schedules(ctx, storage.ScheduleFilter{PlantID: p.ID})
		if err != nil {
			return garden.Activity{}, err
		}
		if s, ok := firstOfKind(scheds, sk); ok {
			target = &s
		}
	}

	a, cs := r.record(p, kind, note, r.now(), target)
	if err := r.save(ctx, "record activity", cs); err != nil {
		return garden.Activity{}, err
	}
	if target != nil {
		r.arm(ctx, *target, p.Name)
	}
	r.log.Debug("activity recorded", logx.String("plant_id", p.ID), logx.String("kind", string(kind)))
	return a, nil
}

// record stages an activity at `at` and, when target is set, marks it
// completed at the same instant.
func (r *Repository) record(p garden.Plant, kind garden.ActivityKind, note string, at time.Time, target *garden.Schedule) (garden.Activity, *storage.ChangeSet) {
	a := garden.Activity{
		ID:        garden.NewID(),
		PlantID:   p.ID,
		CreatedAt: at,
		Kind:      kind,
		Note:      strings.TrimSpace(note),
	}
	cs := storage.NewChangeSet().PutActivity(a)
	if kind == garden.ActivityWater {
		p.LastWateredAt = &at
		cs.PutPlant(p)
	}
	if target != nil {
		target.MarkCompleted(r.cal, at)
		cs.PutSchedule(*target)
	}
	return a, cs
}

// AddPhoto attaches a placeholder photo.
func (r *Repository) AddPhoto(ctx context.Context, plantID, caption, symbol string) (garden.Photo, error) {
	p, err := r.Plant(ctx, plantID)
	if err != nil {
		return garden.Photo{}, err
	}
	ph := garden.NewPhoto(p.ID, strings.TrimSpace(caption), strings.TrimSpace(symbol), r.now())
	if err := r.save(ctx, "add photo", storage.NewChangeSet().PutPhoto(ph)); err != nil {
		return garden.Photo{}, err
	}
	return ph, nil
}

func (r *Repository) Activities(ctx context.Context, plantID string) ([]garden.Activity, error) {
	return r.store.Activities(ctx, plantID)
}

func (r *Repository) Photos(ctx context.Context, plantID string) ([]garden.Photo, error) {
	return r.store.Photos(ctx, plantID)
}

// firstOfKind picks from schedules already sorted by due date.
func firstOfKind(scheds []garden.Schedule, k garden.ScheduleKind) (garden.Schedule, bool) {
	for _, s := range scheds {
		if s.Kind == k {
			return s, true
		}
	}
	return garden.Schedule{}, false
}
