package appointments

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSlotTaken: ya existe un turno vivo para (vet, fecha, slot).
	ErrSlotTaken = errors.New("slot taken")
	// ErrRecordNotFound lo devuelven los repos para ids desconocidos.
	ErrRecordNotFound = errors.New("appointment record not found")
)

// ListFilter es la consulta ya normalizada que ejecuta el storage.
// Exactamente uno de VetID/UserID viene seteado.
type ListFilter struct {
	VetID  string
	UserID string
	Status Status // vacío = todos
	Search string // substring case-insensitive sobre pet_name/owner_name
	Limit  int
	Offset int
}

type Repository interface {
	// Claim inserta el turno solo si no hay otro vivo con la misma Key.
	// Es una única operación atómica; devuelve ErrSlotTaken si perdió.
	Claim(ctx context.Context, a Appointment) error

	// Update persiste cambios. Si el turno queda vivo sobre una Key ocupada
	// por otro turno vivo devuelve ErrSlotTaken.
	Update(ctx context.Context, a Appointment) error

	GetByID(ctx context.Context, id string) (Appointment, error)

	// ListLive devuelve los turnos vivos del vet con fecha >= from.
	ListLive(ctx context.Context, vetID string, from time.Time) ([]Appointment, error)

	// List aplica filtros y búsqueda antes de paginar; total es global.
	List(ctx context.Context, f ListFilter) (items []Appointment, total int, err error)
}
