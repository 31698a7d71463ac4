package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"plantit/internal/garden"
)

// Document is one rendered CSV file.
type Document struct {
	Filename string
	Contents string
	RowCount int
}

// Documents renders one CSV per entity, in a stable order.
func (b *Bundle) Documents() []Document {
	return []Document{
		VillagesCSV(b.Villages),
		PlantsCSV(b.Plants),
		ActivitiesCSV(b.Activities),
		SchedulesCSV(b.Schedules),
		PhotosCSV(b.Photos),
	}
}

// WriteCSV writes every entity CSV into dir, creating it if needed.
func (b *Bundle) WriteCSV(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	docs := b.Documents()
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		p := filepath.Join(dir, d.Filename)
		if err := os.WriteFile(p, []byte(d.Contents), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", d.Filename, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func VillagesCSV(rs []garden.VillageRecord) Document {
	rows := [][]string{{"id", "name", "climate"}}
	for _, r := range rs {
		rows = append(rows, []string{r.ID, r.Name, r.Climate})
	}
	return makeDocument("villages.csv", rows)
}

func PlantsCSV(rs []garden.PlantRecord) Document {
	rows := [][]string{{"id", "name", "species", "notes", "created_at", "last_watered_at", "village_id", "village_name"}}
	for _, r := range rs {
		rows = append(rows, []string{r.ID, r.Name, r.Species, r.Notes, r.CreatedAt, r.LastWateredAt, r.VillageID, r.VillageName})
	}
	return makeDocument("plants.csv", rows)
}

func ActivitiesCSV(rs []garden.ActivityRecord) Document {
	rows := [][]string{{"id", "plant_id", "kind", "note", "created_at"}}
	for _, r := range rs {
		rows = append(rows, []string{r.ID, r.PlantID, r.Kind, r.Note, r.CreatedAt})
	}
	return makeDocument("activities.csv", rows)
}

func SchedulesCSV(rs []garden.ScheduleRecord) Document {
	rows := [][]string{{"id", "plant_id", "kind", "cadence_kind", "frequency_in_days", "weekday", "day_of_month", "next_due_at", "last_completed_at"}}
	for _, r := range rs {
		rows = append(rows, []string{
			r.ID,
			r.PlantID,
			r.Kind,
			r.CadenceKind,
			strconv.Itoa(r.FrequencyInDays),
			optionalInt(r.Weekday),
			optionalInt(r.DayOfMonth),
			r.NextDueAt,
			r.LastCompletedAt,
		})
	}
	return makeDocument("schedules.csv", rows)
}

func PhotosCSV(rs []garden.PhotoRecord) Document {
	rows := [][]string{{"id", "plant_id", "caption", "symbol", "color_seed", "created_at"}}
	for _, r := range rs {
		rows = append(rows, []string{r.ID, r.PlantID, r.Caption, r.Symbol, strconv.Itoa(r.ColorSeed), r.CreatedAt})
	}
	return makeDocument("photos.csv", rows)
}

// Weekday and day-of-month are 1-based; zero means unset.
func optionalInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func makeDocument(name string, rows [][]string) Document {
	var sb strings.Builder
	for _, row := range rows {
		for i, f := range row {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(Escape(f))
		}
		sb.WriteByte('\n')
	}
	return Document{Filename: name, Contents: sb.String(), RowCount: max(len(rows)-1, 0)}
}

// Escape doubles embedded quotes and wraps the field in quotes when it
// contains a comma, quote or newline. Other fields pass through untouched.
func Escape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
