package garden

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh stable identifier.
func NewID() string { return uuid.NewString() }

// ValidID reports whether s is an identifier NewID could have produced.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

type Climate string

const (
	Tropical    Climate = "tropical"
	Arid        Climate = "arid"
	Temperate   Climate = "temperate"
	Continental Climate = "continental"
	Polar       Climate = "polar"
)

var climates = []Climate{Tropical, Arid, Temperate, Continental, Polar}

func Climates() []Climate { return append([]Climate(nil), climates...) }

// ParseClimate matches case-insensitively; anything else falls back to temperate.
func ParseClimate(raw string) (Climate, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, c := range climates {
		if string(c) == s {
			return c, true
		}
	}
	return Temperate, false
}

func (c Climate) DisplayName() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

type ActivityKind string

const (
	ActivityWater     ActivityKind = "water"
	ActivityFertilize ActivityKind = "fertilize"
	ActivityNote      ActivityKind = "note"
)

func ParseActivityKind(raw string) (ActivityKind, bool) {
	switch k := ActivityKind(raw); k {
	case ActivityWater, ActivityFertilize, ActivityNote:
		return k, true
	}
	return "", false
}

func (k ActivityKind) DisplayName() string {
	switch k {
	case ActivityWater:
		return "Watered"
	case ActivityFertilize:
		return "Fertilized"
	default:
		return "Note"
	}
}

type ScheduleKind string

const (
	ScheduleWatering    ScheduleKind = "watering"
	ScheduleFertilizing ScheduleKind = "fertilizing"
	ScheduleCustom      ScheduleKind = "custom"
)

func ParseScheduleKind(raw string) (ScheduleKind, bool) {
	switch k := ScheduleKind(raw); k {
	case ScheduleWatering, ScheduleFertilizing, ScheduleCustom:
		return k, true
	}
	return "", false
}

func (k ScheduleKind) DisplayName() string {
	switch k {
	case ScheduleWatering:
		return "Watering"
	case ScheduleFertilizing:
		return "Fertilizing"
	default:
		return "Custom"
	}
}

// DefaultActivityKind is the activity that completes a schedule of this kind.
// Custom schedules have none and are completed directly.
func (k ScheduleKind) DefaultActivityKind() (ActivityKind, bool) {
	switch k {
	case ScheduleWatering:
		return ActivityWater, true
	case ScheduleFertilizing:
		return ActivityFertilize, true
	default:
		return "", false
	}
}

// ScheduleKindFor is the inverse of DefaultActivityKind.
func ScheduleKindFor(k ActivityKind) (ScheduleKind, bool) {
	switch k {
	case ActivityWater:
		return ScheduleWatering, true
	case ActivityFertilize:
		return ScheduleFertilizing, true
	default:
		return "", false
	}
}

type Village struct {
	ID      string
	Name    string
	Climate Climate
}

type Plant struct {
	ID            string
	Name          string
	Species       string
	Notes         string
	CreatedAt     time.Time
	LastWateredAt *time.Time
	VillageID     string
}

type Activity struct {
	ID        string
	PlantID   string
	CreatedAt time.Time
	Kind      ActivityKind
	Note      string
}

// Photo is a placeholder: a caption plus an icon and color seed for rendering.
type Photo struct {
	ID        string
	PlantID   string
	CreatedAt time.Time
	Caption   string
	Symbol    string
	ColorSeed int
}

const (
	DefaultPhotoSymbol = "leaf"
	photoColorCount    = 5
)

// NewPhoto builds a placeholder photo. An empty symbol uses the default icon
// and the color seed is derived from the id so lists look varied.
func NewPhoto(plantID, caption, symbol string, at time.Time) Photo {
	p := Photo{
		ID:        NewID(),
		PlantID:   plantID,
		CreatedAt: at,
		Caption:   strings.TrimSpace(caption),
		Symbol:    strings.TrimSpace(symbol),
	}
	if p.Symbol == "" {
		p.Symbol = DefaultPhotoSymbol
	}
	var sum int
	for _, b := range []byte(p.ID) {
		sum += int(b)
	}
	p.ColorSeed = sum % photoColorCount
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Clone returns a deep copy (time pointers are not shared).
func (p Plant) Clone() Plant {
	p.LastWateredAt = cloneTime(p.LastWateredAt)
	return p
}
