package memory

import (
	"context"
	"sync"

	"vet-scheduling/internal/domain/availability"
)

type availabilityRepo struct {
	mu    sync.RWMutex
	byVet map[string]availability.Availability
}

func NewAvailabilityRepo() availability.Repository {
	return &availabilityRepo{byVet: make(map[string]availability.Availability)}
}

func (r *availabilityRepo) Replace(ctx context.Context, a availability.Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byVet[a.VetID] = cloneAvailability(a)
	return nil
}

func (r *availabilityRepo) Get(ctx context.Context, vetID string) (availability.Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byVet[vetID]
	if !ok {
		return availability.Availability{}, availability.ErrNotFound
	}
	return cloneAvailability(a), nil
}

// cloneAvailability evita que el caller mute los slices guardados.
func cloneAvailability(a availability.Availability) availability.Availability {
	out := a
	out.Entries = make([]availability.Entry, len(a.Entries))
	for i, e := range a.Entries {
		out.Entries[i] = availability.Entry{Date: e.Date, Slots: append([]string(nil), e.Slots...)}
	}
	out.Exceptions = make([]availability.Exception, len(a.Exceptions))
	for i, ex := range a.Exceptions {
		out.Exceptions[i] = availability.Exception{
			Date:        ex.Date,
			IsAvailable: ex.IsAvailable,
			Slots:       append([]string(nil), ex.Slots...),
		}
	}
	return out
}
