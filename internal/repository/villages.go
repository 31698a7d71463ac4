package repository

import (
	"context"
	"errors"
	"strings"

	"plantit/internal/garden"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

func (r *Repository) Villages(ctx context.Context) ([]garden.Village, error) {
	return r.store.Villages(ctx)
}

// ResolveVillage finds a village by id, or by case-insensitive name.
func (r *Repository) ResolveVillage(ctx context.Context, ref string) (garden.Village, error) {
	ref = strings.TrimSpace(ref)
	if v, err := r.store.Village(ctx, ref); err == nil {
		return v, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return garden.Village{}, err
	}
	vs, err := r.store.Villages(ctx)
	if err != nil {
		return garden.Village{}, err
	}
	var found []garden.Village
	for _, v := range vs {
		if strings.EqualFold(strings.TrimSpace(v.Name), ref) {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return garden.Village{}, notFound("village", ref, storage.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return garden.Village{}, notFound("village", ref, ErrAmbiguous)
	}
}

func (r *Repository) CreateVillage(ctx context.Context, name string, climate garden.Climate) (garden.Village, error) {
	name, err := cleanName(name)
	if err != nil {
		return garden.Village{}, err
	}
	if climate == "" {
		climate = garden.Temperate
	}
	v := garden.Village{ID: garden.NewID(), Name: name, Climate: climate}
	if err := r.save(ctx, "create village", storage.NewChangeSet().PutVillage(v)); err != nil {
		return garden.Village{}, err
	}
	r.log.Info("village created", logx.String("village_id", v.ID), logx.String("name", v.Name))
	return v, nil
}

// UpdateVillage renames a village and sets its climate. An empty climate
// keeps the current one.
func (r *Repository) UpdateVillage(ctx context.Context, id, name string, climate garden.Climate) (garden.Village, error) {
	name, err := cleanName(name)
	if err != nil {
		return garden.Village{}, err
	}
	v, err := r.store.Village(ctx, id)
	if err != nil {
		return garden.Village{}, notFound("village", id, err)
	}
	v.Name = name
	if climate != "" {
		v.Climate = climate
	}
	if err := r.save(ctx, "update village", storage.NewChangeSet().PutVillage(v)); err != nil {
		return garden.Village{}, err
	}
	return v, nil
}

// DeleteVillage removes the village. Its plants stay, without a village.
func (r *Repository) DeleteVillage(ctx context.Context, id string) error {
	if _, err := r.store.Village(ctx, id); err != nil {
		return notFound("village", id, err)
	}
	if err := r.save(ctx, "delete village", storage.NewChangeSet().Delete(storage.EntityVillage, id)); err != nil {
		return err
	}
	r.log.Info("village deleted", logx.String("village_id", id))
	return nil
}
