package legacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"plantit/internal/cadence"
	"plantit/internal/garden"
)

// Payload is one decoded legacy export: a plant with its history.
type Payload struct {
	Plant      Plant
	Activities []Activity
	Schedules  []Schedule
	// Unknown holds top-level keys other than plant/activities/schedules.
	Unknown map[string]string
}

// Plant fields are optional unless noted; empty strings mean absent.
type Plant struct {
	ID            string
	Name          string // trimmed
	Species       string
	Notes         string
	LastWateredAt *time.Time
	CreatedAt     *time.Time
	VillageName   string
	// VillageClimate is the raw climate text, normalized by the builder.
	VillageClimate string
	Unknown        map[string]string

	villageFromKey bool
}

type Activity struct {
	ID        string
	Kind      garden.ActivityKind // "" when absent
	Note      string
	CreatedAt *time.Time
	Unknown   map[string]string
}

type Schedule struct {
	ID              string
	Kind            garden.ScheduleKind // "" when absent
	Cadence         cadence.Kind        // "" when absent or unrecognized
	FrequencyInDays *int
	Weekday         int
	DayOfMonth      int
	NextDueAt       *time.Time
	LastCompletedAt *time.Time
	Unknown         map[string]string
}

// Parser decodes legacy documents. Location is used for dates written in the
// zone-less fallback layout; nil means time.Local.
type Parser struct {
	Location *time.Location
}

// Parse decodes data. It never fails on unknown keys or odd shapes of known
// keys; see the package doc for what does fail.
func (p Parser) Parse(data []byte) (*Payload, error) {
	doc, err := singleDocument(data)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	root, err := jason.NewValueFromBytes(doc)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	obj, err := root.Object()
	if err != nil {
		return nil, &DecodeError{Err: ErrNotObject}
	}

	m := obj.Map()
	out := &Payload{Unknown: map[string]string{}}

	pv, ok := m["plant"]
	if !ok || isNull(pv) {
		return nil, &DecodeError{Path: "plant", Err: fmt.Errorf("missing plant object")}
	}
	pobj, err := pv.Object()
	if err != nil {
		return nil, &DecodeError{Path: "plant", Err: ErrNotObject}
	}
	if out.Plant.Unknown, err = p.plantTable().decode(pobj, "plant", &out.Plant); err != nil {
		return nil, err
	}
	out.Plant.Name = strings.TrimSpace(out.Plant.Name)

	activities, err := elements(m, "activities")
	if err != nil {
		return nil, err
	}
	at := p.activityTable()
	for i, v := range activities {
		path := fmt.Sprintf("activities[%d]", i)
		o, err := v.Object()
		if err != nil {
			return nil, &DecodeError{Path: path, Err: ErrNotObject}
		}
		var a Activity
		if a.Unknown, err = at.decode(o, path, &a); err != nil {
			return nil, err
		}
		out.Activities = append(out.Activities, a)
	}

	schedules, err := elements(m, "schedules")
	if err != nil {
		return nil, err
	}
	st := p.scheduleTable()
	for i, v := range schedules {
		path := fmt.Sprintf("schedules[%d]", i)
		o, err := v.Object()
		if err != nil {
			return nil, &DecodeError{Path: path, Err: ErrNotObject}
		}
		var s Schedule
		if s.Unknown, err = st.decode(o, path, &s); err != nil {
			return nil, err
		}
		out.Schedules = append(out.Schedules, s)
	}

	for k, v := range m {
		switch k {
		case "plant", "activities", "schedules":
		default:
			out.Unknown[k] = Render(v)
		}
	}
	return out, nil
}

func elements(m map[string]*jason.Value, key string) ([]*jason.Value, error) {
	v, ok := m[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	arr, err := v.Array()
	if err != nil {
		return nil, &DecodeError{Path: key, Err: ErrNotArray}
	}
	return arr, nil
}

// ---- field tables ----

func (p Parser) plantTable() table[Plant] {
	return table[Plant]{
		{"id", []string{"id"}, identifier(garden.ValidID, func(r *Plant, s string) { r.ID = s })},
		{"name", []string{"name"}, text(func(r *Plant, s string) { r.Name = s })},
		{"species", []string{"species"}, text(func(r *Plant, s string) { r.Species = s })},
		{"notes", []string{"notes"}, text(func(r *Plant, s string) { r.Notes = s })},
		{"lastWateredAt", []string{"lastWateredAt"}, date(p.Location, func(r *Plant, t time.Time) { r.LastWateredAt = &t })},
		{"createdAt", []string{"createdAt"}, date(p.Location, func(r *Plant, t time.Time) { r.CreatedAt = &t })},
		// "village" may be a bare name or {name, climate}; the flat keys are
		// only consulted when "village" did not match.
		{"village", []string{"village", "villageName"}, plantVillage},
		{"villageClimate", []string{"villageClimate"}, text(func(r *Plant, s string) {
			if !r.villageFromKey {
				r.VillageClimate = s
			}
		})},
	}
}

func plantVillage(r *Plant, path string, v *jason.Value) (bool, error) {
	fromKey := strings.HasSuffix(path, ".village")
	if s, err := v.String(); err == nil {
		r.VillageName, r.villageFromKey = s, fromKey
		return true, nil
	}
	if !fromKey {
		return false, nil
	}
	obj, err := v.Object()
	if err != nil {
		return false, nil
	}
	nested := obj.Map()
	if n, ok := nested["name"]; ok {
		r.VillageName, _ = scalarText(n)
	}
	if c, ok := nested["climate"]; ok {
		r.VillageClimate, _ = scalarText(c)
	}
	r.villageFromKey = true
	return true, nil
}

func (p Parser) activityTable() table[Activity] {
	return table[Activity]{
		{"id", []string{"id"}, identifier(garden.ValidID, func(r *Activity, s string) { r.ID = s })},
		{"kind", []string{"kind", "type"}, text(func(r *Activity, s string) { r.Kind = NormalizeActivityKind(s) })},
		{"note", []string{"note", "notes"}, text(func(r *Activity, s string) { r.Note = s })},
		{"createdAt", []string{"createdAt", "timestamp"}, date(p.Location, func(r *Activity, t time.Time) { r.CreatedAt = &t })},
	}
}

func (p Parser) scheduleTable() table[Schedule] {
	return table[Schedule]{
		{"id", []string{"id"}, identifier(garden.ValidID, func(r *Schedule, s string) { r.ID = s })},
		{"kind", []string{"kind", "type"}, text(func(r *Schedule, s string) { r.Kind = NormalizeScheduleKind(s) })},
		{"frequencyInDays", []string{"frequency", "frequencyInDays", "interval", "intervalDays"}, integer(func(r *Schedule, n int) { r.FrequencyInDays = &n })},
		{"cadenceKind", []string{"cadenceKind"}, text(func(r *Schedule, s string) {
			if k, ok := cadence.ParseKind(s); ok {
				r.Cadence = k
			}
		})},
		{"weekday", []string{"weekday"}, integer(func(r *Schedule, n int) { r.Weekday = n })},
		{"dayOfMonth", []string{"dayOfMonth"}, integer(func(r *Schedule, n int) { r.DayOfMonth = n })},
		{"nextDueAt", []string{"nextDueAt"}, date(p.Location, func(r *Schedule, t time.Time) { r.NextDueAt = &t })},
		{"lastCompletedAt", []string{"lastCompletedAt", "lastDoneAt"}, date(p.Location, func(r *Schedule, t time.Time) { r.LastCompletedAt = &t })},
	}
}

// singleDocument returns data's one JSON value, rejecting input that has
// anything but whitespace after it.
func singleDocument(data []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailing
	}
	return raw, nil
}

// NormalizeActivityKind maps legacy activity labels onto activity kinds.
// Blank input yields "" (absent); unrecognized labels become notes.
func NormalizeActivityKind(raw string) garden.ActivityKind {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if k, ok := garden.ParseActivityKind(s); ok {
		return k
	}
	switch s {
	case "watered", "watering":
		return garden.ActivityWater
	case "fertilized", "fertiliser", "fertilize":
		return garden.ActivityFertilize
	default:
		return garden.ActivityNote
	}
}

// NormalizeScheduleKind maps legacy schedule labels onto schedule kinds.
// Blank input yields "" (absent); unrecognized labels become custom.
func NormalizeScheduleKind(raw string) garden.ScheduleKind {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if k, ok := garden.ParseScheduleKind(s); ok {
		return k
	}
	switch s {
	case "water", "watering":
		return garden.ScheduleWatering
	case "fertilize", "fertilizing", "fertiliser":
		return garden.ScheduleFertilizing
	default:
		return garden.ScheduleCustom
	}
}
