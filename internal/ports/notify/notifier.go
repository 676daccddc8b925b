package notify

import (
	"context"
	"time"
)

type Event string

const (
	EventAppointmentBooked      Event = "appointment.booked"
	EventAppointmentCancelled   Event = "appointment.cancelled"
	EventAppointmentRescheduled Event = "appointment.rescheduled"
)

// Notification es lo mínimo que necesita un canal externo (email, push).
type Notification struct {
	Event         Event
	AppointmentID string
	VetID         string
	UserID        string
	PetName       string
	Date          time.Time
	Slot          string
	OccurredAt    time.Time
}

// Notifier despacha notificaciones. El caller no depende del resultado.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
