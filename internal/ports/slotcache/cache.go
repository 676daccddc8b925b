package slotcache

import (
	"context"
	"time"
)

// Day es la forma cacheada de un día con slots libres.
type Day struct {
	Date  time.Time `json:"date"`
	Slots []string  `json:"slots"`
}

// Cache guarda la proyección de slots libres por (vet, from).
// Get devuelve ok=false en miss y siempre la generación que observó; Set
// escribe bajo esa generación, así un Invalidate intermedio descarta el valor.
type Cache interface {
	Get(ctx context.Context, vetID string, from time.Time) (days []Day, gen int64, ok bool, err error)
	Set(ctx context.Context, vetID string, from time.Time, gen int64, days []Day) error
	Invalidate(ctx context.Context, vetID string) error
}
