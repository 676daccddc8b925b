package appointments

import (
	"strings"
	"time"
)

// Status es el único vocabulario de estados del sistema.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Live: todo turno no cancelado ocupa su slot.
func (s Status) Live() bool { return s != StatusCancelled }

func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusScheduled:
		return StatusScheduled, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

type Purpose string

const (
	PurposeRegularCheckup Purpose = "regular_checkup"
	PurposeVaccination    Purpose = "vaccination"
	PurposeInfection      Purpose = "infection"
	PurposeOther          Purpose = "other"
)

// ParsePurpose: vacío => regular_checkup.
func ParsePurpose(s string) (Purpose, bool) {
	switch Purpose(strings.ToLower(strings.TrimSpace(s))) {
	case "", PurposeRegularCheckup:
		return PurposeRegularCheckup, true
	case PurposeVaccination:
		return PurposeVaccination, true
	case PurposeInfection:
		return PurposeInfection, true
	case PurposeOther:
		return PurposeOther, true
	default:
		return "", false
	}
}

// BookedBy registra quién originó el turno.
type BookedBy string

const (
	BookedByOwnerRole BookedBy = "owner"
	BookedByVetRole   BookedBy = "vet"
)

type Appointment struct {
	ID     string
	PetID  string
	UserID string
	VetID  string

	Date    time.Time // día calendario UTC
	Slot    string
	Purpose Purpose
	Status  Status

	BookedBy BookedBy

	// Denormalizados para listado y búsqueda por nombre.
	PetName   string
	OwnerName string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
}

// Key identifica el slot que ocupa un turno vivo.
type Key struct {
	VetID string
	Date  time.Time
	Slot  string
}

func (a Appointment) Key() Key {
	return Key{VetID: a.VetID, Date: a.Date, Slot: a.Slot}
}

// Actor es quien ejecuta una operación del ciclo de vida.
type Actor struct {
	UserID string
	IsVet  bool
}
