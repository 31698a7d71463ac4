// Package export renders the store as plain records: JSON, one CSV per
// entity, and a zip backup bundling both.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"plantit/internal/garden"
	"plantit/internal/storage"
)

// FormatVersion is bumped whenever a record shape changes incompatibly.
const FormatVersion = 1

// Bundle is a full snapshot of the store.
type Bundle struct {
	Version    int                     `json:"version"`
	ExportedAt string                  `json:"exported_at"`
	Villages   []garden.VillageRecord  `json:"villages"`
	Plants     []garden.PlantRecord    `json:"plants"`
	Activities []garden.ActivityRecord `json:"activities"`
	Schedules  []garden.ScheduleRecord `json:"schedules"`
	Photos     []garden.PhotoRecord    `json:"photos"`
}

// Collect reads every entity from st. now stamps the bundle.
func Collect(ctx context.Context, st storage.Store, now time.Time) (*Bundle, error) {
	villages, err := st.Villages(ctx)
	if err != nil {
		return nil, fmt.Errorf("export villages: %w", err)
	}
	plants, err := st.Plants(ctx, storage.PlantFilter{})
	if err != nil {
		return nil, fmt.Errorf("export plants: %w", err)
	}
	activities, err := st.Activities(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("export activities: %w", err)
	}
	schedules, err := st.Schedules(ctx, storage.ScheduleFilter{})
	if err != nil {
		return nil, fmt.Errorf("export schedules: %w", err)
	}
	photos, err := st.Photos(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("export photos: %w", err)
	}

	b := &Bundle{
		Version:    FormatVersion,
		ExportedAt: garden.FormatTime(now),
		Villages:   make([]garden.VillageRecord, 0, len(villages)),
		Plants:     make([]garden.PlantRecord, 0, len(plants)),
		Activities: make([]garden.ActivityRecord, 0, len(activities)),
		Schedules:  make([]garden.ScheduleRecord, 0, len(schedules)),
		Photos:     make([]garden.PhotoRecord, 0, len(photos)),
	}
	byID := make(map[string]garden.Village, len(villages))
	for _, v := range villages {
		byID[v.ID] = v
		b.Villages = append(b.Villages, v.Record())
	}
	for _, p := range plants {
		b.Plants = append(b.Plants, p.Record(byID))
	}
	for _, a := range activities {
		b.Activities = append(b.Activities, a.Record())
	}
	for _, s := range schedules {
		b.Schedules = append(b.Schedules, s.Record())
	}
	for _, p := range photos {
		b.Photos = append(b.Photos, p.Record())
	}
	return b, nil
}

// Counts reports the number of records per entity.
func (b *Bundle) Counts() map[string]int {
	return map[string]int{
		"villages":   len(b.Villages),
		"plants":     len(b.Plants),
		"activities": len(b.Activities),
		"schedules":  len(b.Schedules),
		"photos":     len(b.Photos),
	}
}

// WriteJSON writes the bundle as indented JSON.
func (b *Bundle) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return nil
}
