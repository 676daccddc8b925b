package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vet-scheduling/internal/domain/appointments"
	"vet-scheduling/internal/domain/availability"
	"vet-scheduling/internal/platform/logger"
	"vet-scheduling/internal/ports/slotcache"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("availability not found")
)

// DaySlots es un día con sus slots todavía libres, en orden de publicación.
type DaySlots struct {
	Date  time.Time
	Slots []string
}

type AvailabilityReader interface {
	Get(ctx context.Context, vetID string) (availability.Availability, error)
}

// LedgerReader lee los turnos vivos que consumen slots.
type LedgerReader interface {
	ListLive(ctx context.Context, vetID string, from time.Time) ([]appointments.Appointment, error)
}

// Service proyecta slots libres = publicados - turnos vivos. Solo lectura.
// También invalida el cache cuando cambian disponibilidad o ledger.
type Service struct {
	avail  AvailabilityReader
	ledger LedgerReader
	cache  slotcache.Cache // opcional
	log    logger.Logger
	now    func() time.Time
}

func NewService(avail AvailabilityReader, ledger LedgerReader, cache slotcache.Cache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		avail:  avail,
		ledger: ledger,
		cache:  cache,
		log:    log.With(map[string]any{"module": "slots"}),
		now:    time.Now,
	}
}

// FreeSlots devuelve los días >= from con al menos un slot libre.
// from cero o pasado se ajusta a hoy.
func (s *Service) FreeSlots(ctx context.Context, vetID string, from time.Time) ([]DaySlots, error) {
	vetID = strings.TrimSpace(vetID)
	if vetID == "" {
		return nil, ErrInvalidInput
	}

	today := availability.Day(s.now().UTC())
	if from.IsZero() || availability.Day(from).Before(today) {
		from = today
	}
	from = availability.Day(from)

	cached, gen, hit, cacheOK := s.fromCache(ctx, vetID, from)
	if hit {
		return cached, nil
	}

	days, err := s.compute(ctx, vetID, from)
	if err != nil {
		return nil, err
	}

	if cacheOK {
		if err := s.cache.Set(ctx, vetID, from, gen, toCache(days)); err != nil {
			s.log.Warn("slot cache set failed", map[string]any{"vet_id": vetID, "error": err})
		}
	}
	return days, nil
}

func (s *Service) compute(ctx context.Context, vetID string, from time.Time) ([]DaySlots, error) {
	av, err := s.avail.Get(ctx, vetID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("availability lookup: %w", err)
	}

	live, err := s.ledger.ListLive(ctx, vetID, from)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}

	taken := make(map[time.Time]map[string]struct{})
	for _, a := range live {
		d := availability.Day(a.Date)
		if taken[d] == nil {
			taken[d] = make(map[string]struct{})
		}
		taken[d][a.Slot] = struct{}{}
	}

	out := make([]DaySlots, 0)
	for _, e := range av.Days(from) {
		free := make([]string, 0, len(e.Slots))
		for _, slot := range e.Slots {
			if _, used := taken[e.Date][slot]; used {
				continue
			}
			free = append(free, slot)
		}
		if len(free) == 0 {
			continue
		}
		out = append(out, DaySlots{Date: e.Date, Slots: free})
	}
	return out, nil
}

// Invalidate borra el cache del vet. Errores del cache solo se loguean.
func (s *Service) Invalidate(ctx context.Context, vetID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, vetID); err != nil {
		s.log.Warn("slot cache invalidate failed", map[string]any{"vet_id": vetID, "error": err})
	}
}

// fromCache devuelve (días, generación, hit, usable). usable=false cuando no
// hay cache o falló: en ese caso no se intenta escribir.
func (s *Service) fromCache(ctx context.Context, vetID string, from time.Time) ([]DaySlots, int64, bool, bool) {
	if s.cache == nil {
		return nil, 0, false, false
	}
	days, gen, ok, err := s.cache.Get(ctx, vetID, from)
	if err != nil {
		s.log.Warn("slot cache get failed", map[string]any{"vet_id": vetID, "error": err})
		return nil, 0, false, false
	}
	if !ok {
		return nil, gen, false, true
	}
	out := make([]DaySlots, 0, len(days))
	for _, d := range days {
		out = append(out, DaySlots{Date: d.Date, Slots: d.Slots})
	}
	return out, gen, true, true
}

func toCache(days []DaySlots) []slotcache.Day {
	out := make([]slotcache.Day, 0, len(days))
	for _, d := range days {
		out = append(out, slotcache.Day{Date: d.Date, Slots: d.Slots})
	}
	return out
}
