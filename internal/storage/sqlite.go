package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"plantit/internal/cadence"
	"plantit/internal/garden"
	logx "plantit/pkg/logx"
)

//go:embed migrations.sql
var migrationsSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	// Pragmas in the DSN apply to every connection the pool opens.
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; one connection also serializes Save.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}
	if _, err := db.ExecContext(context.Background(), migrationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- time columns: unix nanoseconds, NULL for absent ----

func unixNano(t time.Time) int64 { return t.UnixNano() }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromNano(ns int64) time.Time { return time.Unix(0, ns).UTC() }

func fromNullNano(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := fromNano(ns.Int64)
	return &t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

// ---- queries ----

func (s *sqliteStore) Villages(ctx context.Context) ([]garden.Village, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, climate FROM villages ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []garden.Village{}
	for rows.Next() {
		var v garden.Village
		var climate string
		if err := rows.Scan(&v.ID, &v.Name, &climate); err != nil {
			return nil, err
		}
		v.Climate = garden.Climate(climate)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Village(ctx context.Context, id string) (garden.Village, error) {
	var v garden.Village
	var climate string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, climate FROM villages WHERE id = ?`, id).Scan(&v.ID, &v.Name, &climate)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	v.Climate = garden.Climate(climate)
	return v, err
}

const plantCols = `id, name, species, notes, created_at, last_watered_at, village_id`

type scanner interface{ Scan(dest ...any) error }

func scanPlant(sc scanner) (garden.Plant, error) {
	var (
		p       garden.Plant
		created int64
		watered sql.NullInt64
		village sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.Name, &p.Species, &p.Notes, &created, &watered, &village); err != nil {
		return p, err
	}
	p.CreatedAt = fromNano(created)
	p.LastWateredAt = fromNullNano(watered)
	p.VillageID = village.String
	return p, nil
}

func (s *sqliteStore) Plants(ctx context.Context, f PlantFilter) ([]garden.Plant, error) {
	q := `SELECT ` + plantCols + ` FROM plants`
	var args []any
	if f.VillageID != "" {
		q += ` WHERE village_id = ?`
		args = append(args, f.VillageID)
	}
	q += ` ORDER BY name COLLATE NOCASE, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []garden.Plant{}
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Plant(ctx context.Context, id string) (garden.Plant, error) {
	p, err := scanPlant(s.db.QueryRowContext(ctx, `SELECT `+plantCols+` FROM plants WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *sqliteStore) Activities(ctx context.Context, plantID string) ([]garden.Activity, error) {
	q := `SELECT id, plant_id, created_at, kind, note FROM activities`
	var args []any
	if plantID != "" {
		q += ` WHERE plant_id = ?`
		args = append(args, plantID)
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []garden.Activity{}
	for rows.Next() {
		var (
			a       garden.Activity
			created int64
			kind    string
		)
		if err := rows.Scan(&a.ID, &a.PlantID, &created, &kind, &a.Note); err != nil {
			return nil, err
		}
		a.CreatedAt = fromNano(created)
		a.Kind = garden.ActivityKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

const scheduleCols = `id, plant_id, kind, cadence_kind, frequency_in_days, weekday, day_of_month, last_completed_at, next_due_at`

func scanSchedule(sc scanner) (garden.Schedule, error) {
	var (
		s          garden.Schedule
		kind, cad  string
		last, next sql.NullInt64
	)
	if err := sc.Scan(&s.ID, &s.PlantID, &kind, &cad, &s.FrequencyInDays, &s.Weekday, &s.DayOfMonth, &last, &next); err != nil {
		return s, err
	}
	s.Kind = garden.ScheduleKind(kind)
	s.Cadence = cadence.Kind(cad)
	s.LastCompletedAt = fromNullNano(last)
	s.NextDueAt = fromNullNano(next)
	return s, nil
}

func (s *sqliteStore) Schedules(ctx context.Context, f ScheduleFilter) ([]garden.Schedule, error) {
	q := `SELECT ` + scheduleCols + ` FROM schedules WHERE 1=1`
	var args []any
	if f.PlantID != "" {
		q += ` AND plant_id = ?`
		args = append(args, f.PlantID)
	}
	if f.DueBy != nil {
		q += ` AND next_due_at IS NOT NULL AND next_due_at <= ?`
		args = append(args, unixNano(*f.DueBy))
	}
	q += ` ORDER BY next_due_at IS NULL, next_due_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []garden.Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Schedule(ctx context.Context, id string) (garden.Schedule, error) {
	sc, err := scanSchedule(s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sc, ErrNotFound
	}
	return sc, err
}

func (s *sqliteStore) Photos(ctx context.Context, plantID string) ([]garden.Photo, error) {
	q := `SELECT id, plant_id, created_at, caption, symbol, color_seed FROM photos`
	var args []any
	if plantID != "" {
		q += ` WHERE plant_id = ?`
		args = append(args, plantID)
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []garden.Photo{}
	for rows.Next() {
		var (
			p       garden.Photo
			created int64
		)
		if err := rows.Scan(&p.ID, &p.PlantID, &created, &p.Caption, &p.Symbol, &p.ColorSeed); err != nil {
			return nil, err
		}
		p.CreatedAt = fromNano(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- writes ----

func (s *sqliteStore) Save(ctx context.Context, cs *ChangeSet) error {
	if cs.Len() == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, o := range cs.ops {
		if err := s.applyOp(ctx, tx, o); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) applyOp(ctx context.Context, tx *sql.Tx, o op) error {
	if strings.TrimSpace(o.id) == "" {
		return fmt.Errorf("%s: empty id", o.entity)
	}
	if o.del {
		table, ok := map[Entity]string{
			EntityVillage:  "villages",
			EntityPlant:    "plants",
			EntityActivity: "activities",
			EntitySchedule: "schedules",
			EntityPhoto:    "photos",
		}[o.entity]
		if !ok {
			return fmt.Errorf("unknown entity %q", o.entity)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, o.id)
		return err
	}

	var err error
	switch v := o.val.(type) {
	case garden.Village:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO villages(id, name, climate) VALUES(?,?,?)
			 ON CONFLICT(id) DO UPDATE SET name=excluded.name, climate=excluded.climate`,
			v.ID, v.Name, string(v.Climate))
	case garden.Plant:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO plants(`+plantCols+`) VALUES(?,?,?,?,?,?,?)
			 ON CONFLICT(id) DO UPDATE SET name=excluded.name, species=excluded.species, notes=excluded.notes,
			   created_at=excluded.created_at, last_watered_at=excluded.last_watered_at, village_id=excluded.village_id`,
			v.ID, v.Name, v.Species, v.Notes, unixNano(v.CreatedAt), nullTime(v.LastWateredAt), nullStr(v.VillageID))
	case garden.Activity:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO activities(id, plant_id, created_at, kind, note) VALUES(?,?,?,?,?)
			 ON CONFLICT(id) DO UPDATE SET plant_id=excluded.plant_id, created_at=excluded.created_at,
			   kind=excluded.kind, note=excluded.note`,
			v.ID, v.PlantID, unixNano(v.CreatedAt), string(v.Kind), v.Note)
	case garden.Schedule:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schedules(`+scheduleCols+`) VALUES(?,?,?,?,?,?,?,?,?)
			 ON CONFLICT(id) DO UPDATE SET plant_id=excluded.plant_id, kind=excluded.kind,
			   cadence_kind=excluded.cadence_kind, frequency_in_days=excluded.frequency_in_days,
			   weekday=excluded.weekday, day_of_month=excluded.day_of_month,
			   last_completed_at=excluded.last_completed_at, next_due_at=excluded.next_due_at`,
			v.ID, v.PlantID, string(v.Kind), string(v.Cadence), v.FrequencyInDays, v.Weekday, v.DayOfMonth,
			nullTime(v.LastCompletedAt), nullTime(v.NextDueAt))
	case garden.Photo:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO photos(id, plant_id, created_at, caption, symbol, color_seed) VALUES(?,?,?,?,?,?)
			 ON CONFLICT(id) DO UPDATE SET caption=excluded.caption, symbol=excluded.symbol, color_seed=excluded.color_seed`,
			v.ID, v.PlantID, unixNano(v.CreatedAt), v.Caption, v.Symbol, v.ColorSeed)
	default:
		return fmt.Errorf("%s: unsupported value %T", o.entity, o.val)
	}
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "foreign key") {
		return &ConstraintError{Entity: o.entity, ID: o.id, Ref: err.Error()}
	}
	return err
}

// ---- audit + dedup ----

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, subsystem, action, target, ok, err, meta) VALUES(?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Subsystem, e.Action, nullStr(e.Target), ok, nullStr(e.Error), nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, _ = s.db.ExecContext(pctx, `DELETE FROM dedup WHERE until < ?`, time.Now().UnixMilli())
		cancel()
	}
	return err
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
