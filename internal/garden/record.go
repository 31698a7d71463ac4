package garden

import "time"

// Records are the plain, fully-resolved shapes handed to serializers:
// ids as strings, dates as RFC 3339, enums as their string tags.

type VillageRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Climate string `json:"climate"`
}

type PlantRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Species       string `json:"species"`
	Notes         string `json:"notes"`
	CreatedAt     string `json:"created_at"`
	LastWateredAt string `json:"last_watered_at,omitempty"`
	VillageID     string `json:"village_id,omitempty"`
	VillageName   string `json:"village_name,omitempty"`
}

type ActivityRecord struct {
	ID        string `json:"id"`
	PlantID   string `json:"plant_id"`
	Kind      string `json:"kind"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}

type ScheduleRecord struct {
	ID              string `json:"id"`
	PlantID         string `json:"plant_id"`
	Kind            string `json:"kind"`
	CadenceKind     string `json:"cadence_kind"`
	FrequencyInDays int    `json:"frequency_in_days"`
	Weekday         int    `json:"weekday,omitempty"`
	DayOfMonth      int    `json:"day_of_month,omitempty"`
	NextDueAt       string `json:"next_due_at,omitempty"`
	LastCompletedAt string `json:"last_completed_at,omitempty"`
}

type PhotoRecord struct {
	ID        string `json:"id"`
	PlantID   string `json:"plant_id"`
	Caption   string `json:"caption"`
	Symbol    string `json:"symbol"`
	ColorSeed int    `json:"color_seed"`
	CreatedAt string `json:"created_at"`
}

// FormatTime renders t the way every record does (RFC 3339 with offset, UTC).
func FormatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

func (v Village) Record() VillageRecord {
	return VillageRecord{ID: v.ID, Name: v.Name, Climate: string(v.Climate)}
}

// Record resolves the village name through villages (id -> village).
func (p Plant) Record(villages map[string]Village) PlantRecord {
	r := PlantRecord{
		ID:            p.ID,
		Name:          p.Name,
		Species:       p.Species,
		Notes:         p.Notes,
		CreatedAt:     FormatTime(p.CreatedAt),
		LastWateredAt: formatOptional(p.LastWateredAt),
		VillageID:     p.VillageID,
	}
	if v, ok := villages[p.VillageID]; ok {
		r.VillageName = v.Name
	}
	return r
}

func (a Activity) Record() ActivityRecord {
	return ActivityRecord{
		ID:        a.ID,
		PlantID:   a.PlantID,
		Kind:      string(a.Kind),
		Note:      a.Note,
		CreatedAt: FormatTime(a.CreatedAt),
	}
}

func (s Schedule) Record() ScheduleRecord {
	return ScheduleRecord{
		ID:              s.ID,
		PlantID:         s.PlantID,
		Kind:            string(s.Kind),
		CadenceKind:     string(s.Cadence),
		FrequencyInDays: s.FrequencyInDays,
		Weekday:         s.Weekday,
		DayOfMonth:      s.DayOfMonth,
		NextDueAt:       formatOptional(s.NextDueAt),
		LastCompletedAt: formatOptional(s.LastCompletedAt),
	}
}

func (p Photo) Record() PhotoRecord {
	return PhotoRecord{
		ID:        p.ID,
		PlantID:   p.PlantID,
		Caption:   p.Caption,
		Symbol:    p.Symbol,
		ColorSeed: p.ColorSeed,
		CreatedAt: FormatTime(p.CreatedAt),
	}
}
