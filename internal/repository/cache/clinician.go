// Package cache decorates read-mostly repositories with an in-process cache.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const clinicianListKey = "clinicians:all"

type clinicianRepository struct {
	next  repository.ClinicianRepository
	cache *gocache.Cache
}

// NewClinicianRepository caches clinician lookups for ttl. Lookups that fail,
// including misses, are never cached.
func NewClinicianRepository(next repository.ClinicianRepository, ttl, cleanup time.Duration) repository.ClinicianRepository {
	return &clinicianRepository{
		next:  next,
		cache: gocache.New(ttl, cleanup),
	}
}

func (r *clinicianRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinician, error) {
	key := "clinician:" + id.String()
	if cached, ok := r.cache.Get(key); ok {
		c := cached.(model.Clinician)
		return &c, nil
	}

	c, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, *c)
	return c, nil
}

func (r *clinicianRepository) List(ctx context.Context) ([]*model.Clinician, error) {
	if cached, ok := r.cache.Get(clinicianListKey); ok {
		return copyClinicians(cached.([]model.Clinician)), nil
	}

	list, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]model.Clinician, len(list))
	for i, c := range list {
		values[i] = *c
	}
	r.cache.SetDefault(clinicianListKey, values)
	return copyClinicians(values), nil
}

func copyClinicians(values []model.Clinician) []*model.Clinician {
	out := make([]*model.Clinician, len(values))
	for i := range values {
		c := values[i]
		out[i] = &c
	}
	return out
}
