package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vet-scheduling/internal/domain/availability"
	"vet-scheduling/internal/domain/pets"
	"vet-scheduling/internal/observability/metrics"
	"vet-scheduling/internal/platform/logger"
	"vet-scheduling/internal/platform/pagination"
	"vet-scheduling/internal/ports/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrSlotNotOffered = errors.New("slot not offered")
	ErrConflict       = errors.New("slot already booked")
)

var tracer = otel.Tracer("vet-scheduling.internal.domain.appointments")

type AvailabilityReader interface {
	Get(ctx context.Context, vetID string) (availability.Availability, error)
}

// PetDirectory resuelve mascota => dueño (y nombres para denormalizar).
type PetDirectory interface {
	GetByID(ctx context.Context, id string) (pets.Pet, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, vetID string)
}

type Config struct {
	ClaimTimeout  time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	NotifyTimeout time.Duration
}

type Deps struct {
	Availability AvailabilityReader
	Pets         PetDirectory
	Invalidator  Invalidator // opcional
	Notifier     notify.Notifier
	Metrics      *metrics.BookingMetrics
	Logger       logger.Logger
	Config       Config
}

type Service struct {
	repo     Repository
	avail    AvailabilityReader
	pets     PetDirectory
	inv      Invalidator
	notifier notify.Notifier
	metrics  *metrics.BookingMetrics
	log      logger.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, d Deps) *Service {
	cfg := d.Config
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 3 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		avail:    d.Availability,
		pets:     d.Pets,
		inv:      d.Invalidator,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      log.With(map[string]any{"module": "appointments"}),
		cfg:      cfg,
		now:      time.Now,
	}
}

type ClaimInput struct {
	VetID     string
	PetID     string
	UserID    string
	Date      time.Time
	Slot      string
	Purpose   Purpose
	BookedBy  BookedBy
	PetName   string
	OwnerName string
}

// Claim reserva (vet, fecha, slot) para la mascota. Exactamente un caller
// concurrente gana; el resto recibe ErrConflict.
func (s *Service) Claim(ctx context.Context, in ClaimInput) (Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.claim")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetsched.vet_id", in.VetID),
		attribute.String("vetsched.slot", in.Slot),
	)

	start := time.Now()
	a, err := s.claim(ctx, in)
	result := claimResult(err)
	s.metrics.ObserveClaim(result, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return Appointment{}, err
	}

	span.SetAttributes(attribute.String("vetsched.appointment_id", a.ID))
	s.metrics.ObserveTransition(string(a.Status))
	s.invalidate(ctx, a.VetID)
	s.log.Info("appointment claimed", map[string]any{
		"appointment_id": a.ID,
		"vet_id":         a.VetID,
		"date":           a.Date.Format(availability.DateLayout),
		"slot":           a.Slot,
		"booked_by":      string(a.BookedBy),
	})
	s.dispatch(notify.EventAppointmentBooked, a)
	return a, nil
}

func (s *Service) claim(ctx context.Context, in ClaimInput) (Appointment, error) {
	in.VetID = strings.TrimSpace(in.VetID)
	in.PetID = strings.TrimSpace(in.PetID)
	in.UserID = strings.TrimSpace(in.UserID)
	in.Slot = strings.TrimSpace(in.Slot)

	if in.VetID == "" || in.PetID == "" || in.UserID == "" {
		return Appointment{}, fmt.Errorf("%w: vet, pet and user are required", ErrInvalidInput)
	}
	if in.Slot == "" {
		return Appointment{}, fmt.Errorf("%w: slot required", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return Appointment{}, fmt.Errorf("%w: date required", ErrInvalidInput)
	}
	date := availability.Day(in.Date)
	if date.Before(availability.Day(s.now().UTC())) {
		return Appointment{}, fmt.Errorf("%w: date %s is in the past", ErrInvalidInput, date.Format(availability.DateLayout))
	}
	purpose, ok := ParsePurpose(string(in.Purpose))
	if !ok {
		return Appointment{}, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, in.Purpose)
	}
	if in.BookedBy == "" {
		in.BookedBy = BookedByOwnerRole
	}

	av, err := s.avail.Get(ctx, in.VetID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return Appointment{}, fmt.Errorf("%w: vet has no availability", ErrNotFound)
		}
		return Appointment{}, fmt.Errorf("availability lookup: %w", err)
	}
	if !av.Offers(date, in.Slot) {
		return Appointment{}, ErrSlotNotOffered
	}

	now := s.now()
	a := Appointment{
		ID:        uuid.NewString(),
		PetID:     in.PetID,
		UserID:    in.UserID,
		VetID:     in.VetID,
		Date:      date,
		Slot:      in.Slot,
		Purpose:   purpose,
		Status:    StatusScheduled,
		BookedBy:  in.BookedBy,
		PetName:   strings.TrimSpace(in.PetName),
		OwnerName: strings.TrimSpace(in.OwnerName),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.insert(ctx, a); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// insert corre el claim atómico con timeout acotado. Solo reintenta errores
// transitorios; ErrSlotTaken nunca se reintenta.
func (s *Service) insert(ctx context.Context, a Appointment) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, s.cfg.ClaimTimeout)
		err := s.repo.Claim(actx, a)
		cancel()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrSlotTaken):
			// Un intento previo pudo haber escrito la fila y fallado al responder.
			if attempt > 1 && s.ownsClaim(ctx, a.ID) {
				return nil
			}
			return ErrConflict
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.log.Warn("claim attempt failed", map[string]any{
			"vet_id":  a.VetID,
			"attempt": attempt,
			"error":   err,
		})
		if attempt == s.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("claim: %w", ctx.Err())
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("claim: %w", lastErr)
}

func (s *Service) ownsClaim(ctx context.Context, id string) bool {
	got, err := s.repo.GetByID(ctx, id)
	return err == nil && got.Status.Live()
}

// Book resuelve el ownership según la variante y delega en Claim.
func (s *Service) Book(ctx context.Context, req BookingRequest) (Appointment, error) {
	switch r := req.(type) {
	case BookedByOwner:
		pet, err := s.lookupPet(ctx, r.PetID)
		if err != nil {
			return Appointment{}, err
		}
		if pet.OwnerUserID != strings.TrimSpace(r.OwnerID) {
			return Appointment{}, ErrForbidden
		}
		ownerName := strings.TrimSpace(r.OwnerName)
		if ownerName == "" {
			ownerName = pet.OwnerName
		}
		return s.Claim(ctx, ClaimInput{
			VetID:     r.VetID,
			PetID:     pet.ID,
			UserID:    pet.OwnerUserID,
			Date:      r.Date,
			Slot:      r.Slot,
			Purpose:   r.Purpose,
			BookedBy:  BookedByOwnerRole,
			PetName:   pet.Name,
			OwnerName: ownerName,
		})

	case BookedByVet:
		pet, err := s.lookupPet(ctx, r.PetID)
		if err != nil {
			return Appointment{}, err
		}
		if pet.OwnerUserID != strings.TrimSpace(r.OwnerID) {
			return Appointment{}, fmt.Errorf("%w: pet does not belong to owner", ErrInvalidInput)
		}
		return s.Claim(ctx, ClaimInput{
			VetID:     r.VetID,
			PetID:     pet.ID,
			UserID:    pet.OwnerUserID,
			Date:      r.Date,
			Slot:      r.Slot,
			Purpose:   r.Purpose,
			BookedBy:  BookedByVetRole,
			PetName:   pet.Name,
			OwnerName: pet.OwnerName,
		})

	default:
		return Appointment{}, fmt.Errorf("%w: unknown booking request", ErrInvalidInput)
	}
}

func (s *Service) lookupPet(ctx context.Context, petID string) (pets.Pet, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return pets.Pet{}, fmt.Errorf("%w: pet required", ErrInvalidInput)
	}
	p, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, pets.ErrNotFound) {
			return pets.Pet{}, fmt.Errorf("%w: pet", ErrNotFound)
		}
		return pets.Pet{}, fmt.Errorf("pet lookup: %w", err)
	}
	return p, nil
}

// Cancel pasa pending|scheduled => cancelled. Solo el vet asignado.
// Cancelar algo ya cancelado devuelve el turno sin cambios.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()

	a, err := s.getForVet(ctx, actor, id)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}

	now := s.now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.UpdatedAt = now

	if err := s.repo.Update(ctx, a); err != nil {
		span.RecordError(err)
		s.log.Error("appointment cancel failed", map[string]any{"appointment_id": a.ID, "error": err})
		return Appointment{}, fmt.Errorf("cancel: %w", err)
	}

	s.metrics.ObserveTransition(string(StatusCancelled))
	s.invalidate(ctx, a.VetID)
	s.log.Info("appointment cancelled", map[string]any{"appointment_id": a.ID, "vet_id": a.VetID})
	s.dispatch(notify.EventAppointmentCancelled, a)
	return a, nil
}

// RescheduleInput: nil = no tocar.
type RescheduleInput struct {
	Date    *time.Time
	Slot    *string
	Purpose *Purpose
	PetID   *string
	UserID  *string
}

// Reschedule aplica los campos enviados y deja el turno en pending para
// reconfirmación. No vuelve a chequear la disponibilidad publicada, pero el
// storage sigue impidiendo dos turnos vivos en la misma Key.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id string, in RescheduleInput) (Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()

	a, err := s.getForVet(ctx, actor, id)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}
	prevVet := a.VetID

	if in.Date != nil {
		if in.Date.IsZero() {
			return Appointment{}, fmt.Errorf("%w: date required", ErrInvalidInput)
		}
		d := availability.Day(*in.Date)
		if d.Before(availability.Day(s.now().UTC())) {
			return Appointment{}, fmt.Errorf("%w: date %s is in the past", ErrInvalidInput, d.Format(availability.DateLayout))
		}
		a.Date = d
	}
	if in.Slot != nil {
		slot := strings.TrimSpace(*in.Slot)
		if slot == "" {
			return Appointment{}, fmt.Errorf("%w: slot required", ErrInvalidInput)
		}
		a.Slot = slot
	}
	if in.Purpose != nil {
		p, ok := ParsePurpose(string(*in.Purpose))
		if !ok {
			return Appointment{}, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, *in.Purpose)
		}
		a.Purpose = p
	}
	if in.PetID != nil || in.UserID != nil {
		if err := s.applyPetAndOwner(ctx, &a, in.PetID, in.UserID); err != nil {
			return Appointment{}, err
		}
	}

	now := s.now()
	a.Status = StatusPending
	a.CancelledAt = nil
	a.UpdatedAt = now

	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return Appointment{}, ErrConflict
		}
		span.RecordError(err)
		s.log.Error("appointment reschedule failed", map[string]any{"appointment_id": a.ID, "error": err})
		return Appointment{}, fmt.Errorf("reschedule: %w", err)
	}

	s.metrics.ObserveTransition(string(StatusPending))
	s.invalidate(ctx, prevVet)
	s.log.Info("appointment rescheduled", map[string]any{
		"appointment_id": a.ID,
		"vet_id":         a.VetID,
		"date":           a.Date.Format(availability.DateLayout),
		"slot":           a.Slot,
	})
	s.dispatch(notify.EventAppointmentRescheduled, a)
	return a, nil
}

// applyPetAndOwner mantiene user_id siempre igual al dueño de la mascota.
func (s *Service) applyPetAndOwner(ctx context.Context, a *Appointment, petID, userID *string) error {
	targetPet := a.PetID
	if petID != nil {
		targetPet = strings.TrimSpace(*petID)
	}

	pet, err := s.lookupPet(ctx, targetPet)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown pet", ErrInvalidInput)
		}
		return err
	}
	if userID != nil && strings.TrimSpace(*userID) != pet.OwnerUserID {
		return fmt.Errorf("%w: pet does not belong to user", ErrInvalidInput)
	}

	a.PetID = pet.ID
	a.UserID = pet.OwnerUserID
	a.PetName = pet.Name
	if pet.OwnerName != "" {
		a.OwnerName = pet.OwnerName
	}
	return nil
}

// Get: visible para su vet o su dueño; para el resto no existe.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (Appointment, error) {
	a, err := s.fetch(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if a.VetID != actor.UserID && a.UserID != actor.UserID {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}

type ListQuery struct {
	Status   Status
	Search   string
	Page     int
	PageSize int
}

func (s *Service) ListForVet(ctx context.Context, vetID string, q ListQuery) (pagination.Page[Appointment], error) {
	vetID = strings.TrimSpace(vetID)
	if vetID == "" {
		return pagination.Page[Appointment]{}, ErrInvalidInput
	}
	return s.list(ctx, ListFilter{VetID: vetID}, q)
}

func (s *Service) ListForUser(ctx context.Context, userID string, q ListQuery) (pagination.Page[Appointment], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return pagination.Page[Appointment]{}, ErrInvalidInput
	}
	return s.list(ctx, ListFilter{UserID: userID}, q)
}

func (s *Service) list(ctx context.Context, f ListFilter, q ListQuery) (pagination.Page[Appointment], error) {
	if q.Status != "" {
		st, ok := ParseStatus(string(q.Status))
		if !ok {
			return pagination.Page[Appointment]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, q.Status)
		}
		f.Status = st
	}
	page, size := pagination.Normalize(q.Page, q.PageSize)
	f.Search = strings.TrimSpace(q.Search)
	f.Limit = size
	f.Offset = pagination.Offset(page, size)

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return pagination.Page[Appointment]{}, fmt.Errorf("list appointments: %w", err)
	}
	return pagination.New(items, page, size, total), nil
}

func (s *Service) fetch(ctx context.Context, id string) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, ErrInvalidInput
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *Service) getForVet(ctx context.Context, actor Actor, id string) (Appointment, error) {
	a, err := s.fetch(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !actor.IsVet || a.VetID != actor.UserID {
		return Appointment{}, ErrForbidden
	}
	return a, nil
}

func (s *Service) invalidate(ctx context.Context, vetID string) {
	if s.inv != nil {
		s.inv.Invalidate(ctx, vetID)
	}
}

// dispatch notifica en background con contexto propio: la transición ya
// quedó persistida y un fallo acá solo se loguea.
func (s *Service) dispatch(ev notify.Event, a Appointment) {
	if s.notifier == nil {
		return
	}
	n := notify.Notification{
		Event:         ev,
		AppointmentID: a.ID,
		VetID:         a.VetID,
		UserID:        a.UserID,
		PetName:       a.PetName,
		Date:          a.Date,
		Slot:          a.Slot,
		OccurredAt:    s.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn("notification failed", map[string]any{
				"event":          string(ev),
				"appointment_id": n.AppointmentID,
				"error":          err,
			})
		}
	}()
}

func claimResult(err error) string {
	switch {
	case err == nil:
		return metrics.ClaimWon
	case errors.Is(err, ErrConflict):
		return metrics.ClaimConflict
	case errors.Is(err, ErrSlotNotOffered):
		return metrics.ClaimNotOffered
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return metrics.ClaimInvalid
	default:
		return metrics.ClaimError
	}
}
