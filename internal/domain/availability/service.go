package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vet-scheduling/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Invalidator se entera de cambios de disponibilidad (cache de slots libres).
type Invalidator interface {
	Invalidate(ctx context.Context, vetID string)
}

type Service struct {
	repo        Repository
	invalidator Invalidator
	log         logger.Logger
	now         func() time.Time
}

func NewService(repo Repository, invalidator Invalidator, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		log:         log.With(map[string]any{"module": "availability"}),
		now:         time.Now,
	}
}

type PublishInput struct {
	Entries    []Entry
	Exceptions []Exception
}

// Publish valida todo y reemplaza la disponibilidad del vet.
// Una sola entrada inválida rechaza la llamada completa.
func (s *Service) Publish(ctx context.Context, vetID string, in PublishInput) (Availability, error) {
	vetID = strings.TrimSpace(vetID)
	if vetID == "" {
		return Availability{}, fmt.Errorf("%w: vet id required", ErrInvalidInput)
	}

	today := Day(s.now().UTC())

	entries, err := normalizeEntries(in.Entries, today)
	if err != nil {
		return Availability{}, err
	}
	exceptions, err := normalizeExceptions(in.Exceptions, today)
	if err != nil {
		return Availability{}, err
	}

	a := Availability{
		VetID:      vetID,
		Entries:    entries,
		Exceptions: exceptions,
		UpdatedAt:  s.now(),
	}

	if err := s.repo.Replace(ctx, a); err != nil {
		s.log.Error("availability replace failed", map[string]any{"vet_id": vetID, "error": err})
		return Availability{}, err
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, vetID)
	}

	s.log.Info("availability published", map[string]any{
		"vet_id":     vetID,
		"entries":    len(entries),
		"exceptions": len(exceptions),
	})
	return a, nil
}

func (s *Service) Get(ctx context.Context, vetID string) (Availability, error) {
	vetID = strings.TrimSpace(vetID)
	if vetID == "" {
		return Availability{}, ErrInvalidInput
	}
	a, err := s.repo.Get(ctx, vetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Availability{}, ErrNotFound
		}
		return Availability{}, err
	}
	return a, nil
}

func normalizeEntries(in []Entry, today time.Time) ([]Entry, error) {
	out := make([]Entry, 0, len(in))
	seen := make(map[time.Time]struct{}, len(in))

	for _, e := range in {
		if e.Date.IsZero() {
			return nil, fmt.Errorf("%w: entry date required", ErrInvalidInput)
		}
		d := Day(e.Date)
		if d.Before(today) {
			return nil, fmt.Errorf("%w: date %s is in the past", ErrInvalidInput, d.Format(DateLayout))
		}
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("%w: date %s published twice", ErrInvalidInput, d.Format(DateLayout))
		}
		seen[d] = struct{}{}

		slots, err := normalizeSlots(e.Slots)
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			return nil, fmt.Errorf("%w: date %s has no slots", ErrInvalidInput, d.Format(DateLayout))
		}
		out = append(out, Entry{Date: d, Slots: slots})
	}
	return out, nil
}

func normalizeExceptions(in []Exception, today time.Time) ([]Exception, error) {
	out := make([]Exception, 0, len(in))
	seen := make(map[time.Time]struct{}, len(in))

	for _, ex := range in {
		if ex.Date.IsZero() {
			return nil, fmt.Errorf("%w: exception date required", ErrInvalidInput)
		}
		d := Day(ex.Date)
		if d.Before(today) {
			return nil, fmt.Errorf("%w: exception %s is in the past", ErrInvalidInput, d.Format(DateLayout))
		}
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("%w: exception %s declared twice", ErrInvalidInput, d.Format(DateLayout))
		}
		seen[d] = struct{}{}

		slots, err := normalizeSlots(ex.Slots)
		if err != nil {
			return nil, err
		}
		if ex.IsAvailable && len(slots) == 0 {
			return nil, fmt.Errorf("%w: exception %s opens the day without slots", ErrInvalidInput, d.Format(DateLayout))
		}
		out = append(out, Exception{Date: d, IsAvailable: ex.IsAvailable, Slots: slots})
	}
	return out, nil
}

// normalizeSlots recorta labels y colapsa duplicados conservando el primer orden.
func normalizeSlots(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, fmt.Errorf("%w: empty slot label", ErrInvalidInput)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
