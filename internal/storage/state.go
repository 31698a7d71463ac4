package storage

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"plantit/internal/garden"
)

// graph is the in-memory object graph shared by the memory and file drivers.
// It is never mutated in place by Save: changes go to a clone that replaces
// the original only when every op succeeded.
type graph struct {
	Villages   map[string]garden.Village  `json:"villages"`
	Plants     map[string]garden.Plant    `json:"plants"`
	Activities map[string]garden.Activity `json:"activities"`
	Schedules  map[string]garden.Schedule `json:"schedules"`
	Photos     map[string]garden.Photo    `json:"photos"`
}

func newGraph() *graph {
	return &graph{
		Villages:   map[string]garden.Village{},
		Plants:     map[string]garden.Plant{},
		Activities: map[string]garden.Activity{},
		Schedules:  map[string]garden.Schedule{},
		Photos:     map[string]garden.Photo{},
	}
}

// ensure fills nil maps after decoding an older or partial snapshot.
func (g *graph) ensure() {
	if g.Villages == nil {
		g.Villages = map[string]garden.Village{}
	}
	if g.Plants == nil {
		g.Plants = map[string]garden.Plant{}
	}
	if g.Activities == nil {
		g.Activities = map[string]garden.Activity{}
	}
	if g.Schedules == nil {
		g.Schedules = map[string]garden.Schedule{}
	}
	if g.Photos == nil {
		g.Photos = map[string]garden.Photo{}
	}
}

// clone copies the maps; values are copied on write so sharing them is safe
// except for time pointers, which puts always clone.
func (g *graph) clone() *graph {
	return &graph{
		Villages:   maps.Clone(g.Villages),
		Plants:     maps.Clone(g.Plants),
		Activities: maps.Clone(g.Activities),
		Schedules:  maps.Clone(g.Schedules),
		Photos:     maps.Clone(g.Photos),
	}
}

func (g *graph) apply(cs *ChangeSet) error {
	if cs == nil {
		return nil
	}
	for _, o := range cs.ops {
		if strings.TrimSpace(o.id) == "" {
			return fmt.Errorf("%s: empty id", o.entity)
		}
		var err error
		if o.del {
			g.remove(o.entity, o.id)
		} else {
			err = g.put(o)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *graph) put(o op) error {
	switch v := o.val.(type) {
	case garden.Village:
		g.Villages[v.ID] = v
	case garden.Plant:
		if v.VillageID != "" {
			if _, ok := g.Villages[v.VillageID]; !ok {
				return &ConstraintError{Entity: EntityPlant, ID: v.ID, Ref: "village " + v.VillageID}
			}
		}
		g.Plants[v.ID] = v.Clone()
	case garden.Activity:
		if err := g.requirePlant(EntityActivity, v.ID, v.PlantID); err != nil {
			return err
		}
		g.Activities[v.ID] = v
	case garden.Schedule:
		if err := g.requirePlant(EntitySchedule, v.ID, v.PlantID); err != nil {
			return err
		}
		g.Schedules[v.ID] = v.Clone()
	case garden.Photo:
		if err := g.requirePlant(EntityPhoto, v.ID, v.PlantID); err != nil {
			return err
		}
		g.Photos[v.ID] = v
	default:
		return fmt.Errorf("%s: unsupported value %T", o.entity, o.val)
	}
	return nil
}

func (g *graph) requirePlant(e Entity, id, plantID string) error {
	if _, ok := g.Plants[plantID]; !ok {
		return &ConstraintError{Entity: e, ID: id, Ref: "plant " + plantID}
	}
	return nil
}

func (g *graph) remove(e Entity, id string) {
	switch e {
	case EntityVillage:
		delete(g.Villages, id)
		for pid, p := range g.Plants {
			if p.VillageID == id {
				p.VillageID = ""
				g.Plants[pid] = p
			}
		}
	case EntityPlant:
		delete(g.Plants, id)
		for aid, a := range g.Activities {
			if a.PlantID == id {
				delete(g.Activities, aid)
			}
		}
		for sid, s := range g.Schedules {
			if s.PlantID == id {
				delete(g.Schedules, sid)
			}
		}
		for phid, ph := range g.Photos {
			if ph.PlantID == id {
				delete(g.Photos, phid)
			}
		}
	case EntityActivity:
		delete(g.Activities, id)
	case EntitySchedule:
		delete(g.Schedules, id)
	case EntityPhoto:
		delete(g.Photos, id)
	}
}

// ---- queries ----

func lessName(a, b, aID, bID string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return aID < bID
}

func (g *graph) villages() []garden.Village {
	out := make([]garden.Village, 0, len(g.Villages))
	for _, v := range g.Villages {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out
}

func (g *graph) plants(f PlantFilter) []garden.Plant {
	out := make([]garden.Plant, 0, len(g.Plants))
	for _, p := range g.Plants {
		if f.VillageID != "" && p.VillageID != f.VillageID {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out
}

func (g *graph) activities(plantID string) []garden.Activity {
	out := make([]garden.Activity, 0)
	for _, a := range g.Activities {
		if plantID == "" || a.PlantID == plantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (g *graph) schedules(f ScheduleFilter) []garden.Schedule {
	out := make([]garden.Schedule, 0)
	for _, s := range g.Schedules {
		if f.PlantID != "" && s.PlantID != f.PlantID {
			continue
		}
		if f.DueBy != nil && !s.IsDue(*f.DueBy) {
			continue
		}
		out = append(out, s.Clone())
	}
	SortSchedules(out)
	return out
}

func (g *graph) photos(plantID string) []garden.Photo {
	out := make([]garden.Photo, 0)
	for _, p := range g.Photos {
		if plantID == "" || p.PlantID == plantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortSchedules orders by next due date ascending, undated schedules last.
func SortSchedules(s []garden.Schedule) {
	sort.Slice(s, func(i, j int) bool {
		a, b := s[i].NextDueAt, s[j].NextDueAt
		switch {
		case a == nil && b == nil:
			return s[i].ID < s[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return s[i].ID < s[j].ID
		}
	})
}

func pruneExpiredDedup(m map[string]int64, now time.Time) {
	ms := now.UnixMilli()
	for k, v := range m {
		if v < ms {
			delete(m, k)
		}
	}
}
