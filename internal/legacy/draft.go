package legacy

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/garden"
)

// DefaultPlantName is used when the export has no usable plant name.
const DefaultPlantName = "Imported Plant"

// PendingVillage is a village the export names but that does not exist yet.
// It is only created if the user confirms at commit time.
type PendingVillage struct {
	Name    string
	Climate garden.Climate
}

type Metadata struct {
	// LegacyID is the plant id from the export, empty if it had none.
	LegacyID      string
	ActivityCount int
	ScheduleCount int
}

// Draft is an unsaved import: one plant plus candidate history. Nothing in it
// is persisted until the importer commits it.
//
// Plant.VillageID is set when the export's village matched an existing one;
// otherwise PendingVillage may carry a suggestion.
type Draft struct {
	Source         string
	Plant          garden.Plant
	Activities     []garden.Activity
	Schedules      []garden.Schedule
	PendingVillage *PendingVillage
	// UnknownFields groups dropped keys by origin: "payload", "plant",
	// "activity[i]", "schedule[i]".
	UnknownFields map[string]map[string]string
	Metadata      Metadata
}

// TotalUnknownFieldCount counts dropped keys across all groups.
func (d *Draft) TotalUnknownFieldCount() int {
	n := 0
	for _, g := range d.UnknownFields {
		n += len(g)
	}
	return n
}

// UnknownGroups returns group names in display order.
func (d *Draft) UnknownGroups() []string {
	out := make([]string, 0, len(d.UnknownFields))
	for k := range d.UnknownFields {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return groupLess(out[i], out[j]) })
	return out
}

// groupLess orders payload, plant, then indexed groups numerically.
func groupLess(a, b string) bool {
	rank := func(s string) (int, int) {
		switch {
		case s == "payload":
			return 0, 0
		case s == "plant":
			return 1, 0
		case strings.HasPrefix(s, "activity["):
			return 2, groupIndex(s)
		case strings.HasPrefix(s, "schedule["):
			return 3, groupIndex(s)
		default:
			return 4, 0
		}
	}
	ra, ia := rank(a)
	rb, ib := rank(b)
	if ra != rb {
		return ra < rb
	}
	if ia != ib {
		return ia < ib
	}
	return a < b
}

func groupIndex(s string) int {
	open := strings.IndexByte(s, '[')
	n, _ := strconv.Atoi(strings.TrimSuffix(s[open+1:], "]"))
	return n
}

// RetainActivities keeps the activities for which keep returns true.
// Selection is the caller's business; the importer commits whatever remains.
func (d *Draft) RetainActivities(keep func(i int, a garden.Activity) bool) {
	out := d.Activities[:0]
	for i, a := range d.Activities {
		if keep(i, a) {
			out = append(out, a)
		}
	}
	d.Activities = out
}

// RetainSchedules keeps the schedules for which keep returns true.
func (d *Draft) RetainSchedules(keep func(i int, s garden.Schedule) bool) {
	out := d.Schedules[:0]
	for i, s := range d.Schedules {
		if keep(i, s) {
			out = append(out, s)
		}
	}
	d.Schedules = out
}

// Builder turns a Payload into a Draft.
type Builder struct {
	Calendar cadence.Calendar
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Build is a pure transformation apart from id generation and the clock.
func (b Builder) Build(p *Payload, existing []garden.Village, source string) *Draft {
	now := b.now()

	plant := garden.Plant{
		ID:            p.Plant.ID,
		Name:          strings.TrimSpace(p.Plant.Name),
		Species:       p.Plant.Species,
		Notes:         p.Plant.Notes,
		LastWateredAt: p.Plant.LastWateredAt,
		CreatedAt:     now,
	}
	if plant.ID == "" {
		plant.ID = garden.NewID()
	}
	if plant.Name == "" {
		plant.Name = DefaultPlantName
	}
	if p.Plant.CreatedAt != nil {
		plant.CreatedAt = *p.Plant.CreatedAt
	}

	d := &Draft{
		Source:        source,
		UnknownFields: map[string]map[string]string{},
		Metadata: Metadata{
			LegacyID:      p.Plant.ID,
			ActivityCount: len(p.Activities),
			ScheduleCount: len(p.Schedules),
		},
	}

	if name := strings.TrimSpace(p.Plant.VillageName); name != "" {
		if v, ok := MatchVillage(existing, name); ok {
			plant.VillageID = v.ID
		} else {
			climate, _ := garden.ParseClimate(p.Plant.VillageClimate)
			d.PendingVillage = &PendingVillage{Name: name, Climate: climate}
		}
	}
	d.Plant = plant

	for _, a := range p.Activities {
		created := now
		switch {
		case a.CreatedAt != nil:
			created = *a.CreatedAt
		case p.Plant.CreatedAt != nil:
			created = *p.Plant.CreatedAt
		}
		kind := a.Kind
		if kind == "" {
			kind = garden.ActivityNote
		}
		id := a.ID
		if id == "" {
			id = garden.NewID()
		}
		d.Activities = append(d.Activities, garden.Activity{
			ID:        id,
			PlantID:   plant.ID,
			CreatedAt: created,
			Kind:      kind,
			Note:      a.Note,
		})
	}

	for _, s := range p.Schedules {
		freq := garden.DefaultFrequencyInDays
		if s.FrequencyInDays != nil {
			freq = *s.FrequencyInDays
		}
		spec := garden.ScheduleSpec{
			ID:              s.ID,
			PlantID:         plant.ID,
			Kind:            s.Kind,
			Cadence:         s.Cadence,
			FrequencyInDays: max(freq, 1),
			Weekday:         s.Weekday,
			DayOfMonth:      s.DayOfMonth,
			LastCompletedAt: s.LastCompletedAt,
			NextDueAt:       s.NextDueAt,
		}
		if spec.Cadence == "" {
			spec.Cadence = cadence.EveryNDays
		}
		if spec.Cadence != cadence.DayOfWeek || spec.Weekday < 1 || spec.Weekday > 7 {
			spec.Weekday = 0
		}
		if spec.Cadence != cadence.DayOfMonth || spec.DayOfMonth < 1 || spec.DayOfMonth > 31 {
			spec.DayOfMonth = 0
		}
		d.Schedules = append(d.Schedules, garden.NewSchedule(b.Calendar, spec, now))
	}

	if len(p.Unknown) > 0 {
		d.UnknownFields["payload"] = p.Unknown
	}
	if len(p.Plant.Unknown) > 0 {
		d.UnknownFields["plant"] = p.Plant.Unknown
	}
	for i, a := range p.Activities {
		if len(a.Unknown) > 0 {
			d.UnknownFields["activity["+strconv.Itoa(i)+"]"] = a.Unknown
		}
	}
	for i, s := range p.Schedules {
		if len(s.Unknown) > 0 {
			d.UnknownFields["schedule["+strconv.Itoa(i)+"]"] = s.Unknown
		}
	}
	return d
}

// MatchVillage finds a village by name, ignoring case and surrounding space.
func MatchVillage(villages []garden.Village, name string) (garden.Village, bool) {
	name = strings.TrimSpace(name)
	for _, v := range villages {
		if strings.EqualFold(strings.TrimSpace(v.Name), name) {
			return v, true
		}
	}
	return garden.Village{}, false
}
