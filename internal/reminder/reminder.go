package reminder

import (
	"context"
	"strings"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/garden"
)

// Reminder is one pending notification, keyed by schedule id.
// Digest reminders have an empty ScheduleID.
type Reminder struct {
	ScheduleID string
	PlantID    string
	Title      string
	Body       string
	At         time.Time
}

// Sink arms and disarms reminders. Implementations must not block and must
// not fail the caller: errors are theirs to log.
type Sink interface {
	// ScheduleReminder replaces any pending reminder for r.ScheduleID.
	ScheduleReminder(ctx context.Context, r Reminder)
	CancelReminder(ctx context.Context, scheduleID string)
}

// NopSink drops everything. Used by one-shot CLI commands where no process
// stays alive to deliver.
type NopSink struct{}

func (NopSink) ScheduleReminder(context.Context, Reminder) {}
func (NopSink) CancelReminder(context.Context, string)     {}

const fallbackTitle = "Plant Reminder"

// For builds the reminder for s. ok is false when s has no due date.
//
// The trigger time is truncated to the minute.
func For(cal cadence.Calendar, s garden.Schedule, plantName string) (Reminder, bool) {
	if s.NextDueAt == nil {
		return Reminder{}, false
	}
	title := strings.TrimSpace(plantName)
	if title == "" {
		title = fallbackTitle
	}
	return Reminder{
		ScheduleID: s.ID,
		PlantID:    s.PlantID,
		Title:      title,
		Body:       Body(cal, s),
		At:         s.NextDueAt.Truncate(time.Minute),
	}, true
}

// Body is the one-line description shown under the title, e.g.
// "Watering · Every 3 days · Due Jun 1, 2024 09:00".
func Body(cal cadence.Calendar, s garden.Schedule) string {
	parts := []string{s.Kind.DisplayName(), cal.Describe(s.Policy())}
	if s.NextDueAt != nil {
		parts = append(parts, "Due "+cal.In(*s.NextDueAt).Format("Jan 2, 2006 15:04"))
	}
	return strings.Join(parts, " · ")
}
