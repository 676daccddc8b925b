package availability

import (
	"context"
	"errors"
)

// ErrNotFound lo devuelven los repos cuando el vet nunca publicó.
var ErrNotFound = errors.New("availability not found")

type Repository interface {
	// Replace guarda la disponibilidad completa del vet en una sola escritura.
	Replace(ctx context.Context, a Availability) error
	Get(ctx context.Context, vetID string) (Availability, error)
}
