package storage

import "plantit/internal/garden"

type Entity string

const (
	EntityVillage  Entity = "village"
	EntityPlant    Entity = "plant"
	EntityActivity Entity = "activity"
	EntitySchedule Entity = "schedule"
	EntityPhoto    Entity = "photo"
)

type op struct {
	entity Entity
	del    bool
	id     string
	val    any
}

// ChangeSet collects puts (insert or replace) and deletes to apply in one Save.
// Ops are applied in the order they were added, so a new village must be put
// before a plant that references it.
type ChangeSet struct {
	ops []op
}

func NewChangeSet() *ChangeSet { return &ChangeSet{} }

func (c *ChangeSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ops)
}

func (c *ChangeSet) PutVillage(v garden.Village) *ChangeSet {
	return c.put(EntityVillage, v.ID, v)
}

func (c *ChangeSet) PutPlant(p garden.Plant) *ChangeSet {
	return c.put(EntityPlant, p.ID, p.Clone())
}

func (c *ChangeSet) PutActivity(a garden.Activity) *ChangeSet {
	return c.put(EntityActivity, a.ID, a)
}

func (c *ChangeSet) PutSchedule(s garden.Schedule) *ChangeSet {
	return c.put(EntitySchedule, s.ID, s.Clone())
}

func (c *ChangeSet) PutPhoto(p garden.Photo) *ChangeSet {
	return c.put(EntityPhoto, p.ID, p)
}

// Delete removes a record by id. Deleting a missing record is not an error.
func (c *ChangeSet) Delete(e Entity, id string) *ChangeSet {
	c.ops = append(c.ops, op{entity: e, del: true, id: id})
	return c
}

func (c *ChangeSet) put(e Entity, id string, v any) *ChangeSet {
	c.ops = append(c.ops, op{entity: e, id: id, val: v})
	return c
}
