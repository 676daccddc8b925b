package appointments

import "time"

// BookingRequest es un tagged variant: el dueño reserva para su mascota
// o el vet reserva en nombre de un dueño. No hay otras formas.
type BookingRequest interface {
	bookingRequest()
}

// BookedByOwner: la mascota tiene que ser de OwnerID (si no, ErrForbidden).
type BookedByOwner struct {
	OwnerID   string
	OwnerName string
	PetID     string
	VetID     string
	Date      time.Time
	Slot      string
	Purpose   Purpose
}

// BookedByVet: el vet carga el turno para OwnerID; mascota ajena => ErrInvalidInput.
type BookedByVet struct {
	VetID   string
	OwnerID string
	PetID   string
	Date    time.Time
	Slot    string
	Purpose Purpose
}

func (BookedByOwner) bookingRequest() {}
func (BookedByVet) bookingRequest()   {}
