package lognotify

import (
	"context"

	"vet-scheduling/internal/platform/logger"
	"vet-scheduling/internal/ports/notify"
)

// Notifier deja registro de cada notificación. El envío real (email/push)
// vive en otro servicio que consume estos eventos.
type Notifier struct {
	log logger.Logger
}

func New(log logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{log: log.With(map[string]any{"module": "notify"})}
}

func (n *Notifier) Notify(ctx context.Context, msg notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info("notification dispatched", map[string]any{
		"event":          string(msg.Event),
		"appointment_id": msg.AppointmentID,
		"vet_id":         msg.VetID,
		"user_id":        msg.UserID,
		"pet_name":       msg.PetName,
		"date":           msg.Date.Format("2006-01-02"),
		"slot":           msg.Slot,
	})
	return nil
}
