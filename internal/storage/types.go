package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantit/internal/garden"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// ConstraintError reports a change that would leave a dangling reference.
type ConstraintError struct {
	Entity Entity
	ID     string
	Ref    string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s %s references missing %s", e.Entity, e.ID, e.Ref)
}

// Config configures storage.
//
// Driver values: "memory", "file", "sqlite". Empty means memory.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the repository and importer.
type Store interface {
	Villages(ctx context.Context) ([]garden.Village, error)
	Village(ctx context.Context, id string) (garden.Village, error)
	Plants(ctx context.Context, f PlantFilter) ([]garden.Plant, error)
	Plant(ctx context.Context, id string) (garden.Plant, error)
	// Activities lists a plant's activities newest first; an empty plantID lists all.
	Activities(ctx context.Context, plantID string) ([]garden.Activity, error)
	Schedules(ctx context.Context, f ScheduleFilter) ([]garden.Schedule, error)
	Schedule(ctx context.Context, id string) (garden.Schedule, error)
	// Photos lists a plant's photos newest first; an empty plantID lists all.
	Photos(ctx context.Context, plantID string) ([]garden.Photo, error)

	// Save applies cs atomically.
	Save(ctx context.Context, cs *ChangeSet) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// PlantFilter narrows Plants. The zero value lists every plant sorted by name.
type PlantFilter struct {
	VillageID string
}

// ScheduleFilter narrows Schedules. Results are sorted by next due date
// (schedules without one last).
type ScheduleFilter struct {
	PlantID string
	// DueBy keeps schedules whose next due date is at or before it.
	DueBy *time.Time
}

// AuditEntry records a user-visible operation.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	Subsystem string    `json:"subsystem"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	MetaJSON  string    `json:"meta,omitempty"`
}
