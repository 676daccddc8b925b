package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"vet-scheduling/internal/domain/appointments"
)

// appointmentsRepo arbitra los claims con una sola sección crítica sobre
// el índice de Keys vivas: check + insert nunca se separan.
type appointmentsRepo struct {
	mu   sync.RWMutex
	byID map[string]appointments.Appointment
	live map[appointments.Key]string
}

func NewAppointmentsRepo() appointments.Repository {
	return &appointmentsRepo{
		byID: make(map[string]appointments.Appointment),
		live: make(map[appointments.Key]string),
	}
}

func (r *appointmentsRepo) Claim(ctx context.Context, a appointments.Appointment) error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("appointment id required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID]; exists {
		return errors.New("appointment already exists")
	}
	if _, taken := r.live[a.Key()]; taken {
		return appointments.ErrSlotTaken
	}
	r.byID[a.ID] = a
	if a.Status.Live() {
		r.live[a.Key()] = a.ID
	}
	return nil
}

func (r *appointmentsRepo) Update(ctx context.Context, a appointments.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[a.ID]
	if !ok {
		return appointments.ErrRecordNotFound
	}
	if a.Status.Live() {
		if id, taken := r.live[a.Key()]; taken && id != a.ID {
			return appointments.ErrSlotTaken
		}
	}

	if old.Status.Live() {
		delete(r.live, old.Key())
	}
	if a.Status.Live() {
		r.live[a.Key()] = a.ID
	}
	r.byID[a.ID] = a
	return nil
}

func (r *appointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return appointments.Appointment{}, appointments.ErrRecordNotFound
	}
	return a, nil
}

func (r *appointmentsRepo) ListLive(ctx context.Context, vetID string, from time.Time) ([]appointments.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]appointments.Appointment, 0)
	for key, id := range r.live {
		if key.VetID != vetID || key.Date.Before(from) {
			continue
		}
		out = append(out, r.byID[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

func (r *appointmentsRepo) List(ctx context.Context, f appointments.ListFilter) ([]appointments.Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]appointments.Appointment, 0)
	for _, a := range r.byID {
		if f.VetID != "" && a.VetID != f.VetID {
			continue
		}
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.PetName), search) &&
			!strings.Contains(strings.ToLower(a.OwnerName), search) {
			continue
		}
		matched = append(matched, a)
	}

	// Más recientes primero; id como desempate estable.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < total {
		end = start + f.Limit
	}

	out := make([]appointments.Appointment, end-start)
	copy(out, matched[start:end])
	return out, total, nil
}
