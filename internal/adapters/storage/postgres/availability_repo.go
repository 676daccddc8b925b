package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vet-scheduling/internal/domain/availability"
)

// AvailabilityRepo guarda una fila por vet; entries/exceptions van en JSONB
// para que el reemplazo sea una única sentencia.
type AvailabilityRepo struct {
	db *sql.DB
}

func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

type entryRow struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type exceptionRow struct {
	Date        string   `json:"date"`
	IsAvailable bool     `json:"is_available"`
	Slots       []string `json:"slots"`
}

func (r *AvailabilityRepo) Replace(ctx context.Context, a availability.Availability) error {
	entries := make([]entryRow, 0, len(a.Entries))
	for _, e := range a.Entries {
		entries = append(entries, entryRow{Date: e.Date.Format(availability.DateLayout), Slots: e.Slots})
	}
	exceptions := make([]exceptionRow, 0, len(a.Exceptions))
	for _, ex := range a.Exceptions {
		exceptions = append(exceptions, exceptionRow{
			Date:        ex.Date.Format(availability.DateLayout),
			IsAvailable: ex.IsAvailable,
			Slots:       ex.Slots,
		})
	}

	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	exceptionsJSON, err := json.Marshal(exceptions)
	if err != nil {
		return fmt.Errorf("encode exceptions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO vet_availability (vet_id, entries, exceptions, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vet_id) DO UPDATE
		SET entries = EXCLUDED.entries,
			exceptions = EXCLUDED.exceptions,
			updated_at = EXCLUDED.updated_at
	`, a.VetID, entriesJSON, exceptionsJSON, a.UpdatedAt)
	return err
}

func (r *AvailabilityRepo) Get(ctx context.Context, vetID string) (availability.Availability, error) {
	var (
		entriesJSON    []byte
		exceptionsJSON []byte
		updatedAt      time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT entries, exceptions, updated_at
		FROM vet_availability
		WHERE vet_id = $1
	`, vetID).Scan(&entriesJSON, &exceptionsJSON, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return availability.Availability{}, availability.ErrNotFound
		}
		return availability.Availability{}, err
	}

	var entries []entryRow
	if err := json.Unmarshal(entriesJSON, &entries); err != nil {
		return availability.Availability{}, fmt.Errorf("decode entries: %w", err)
	}
	var exceptions []exceptionRow
	if len(exceptionsJSON) > 0 {
		if err := json.Unmarshal(exceptionsJSON, &exceptions); err != nil {
			return availability.Availability{}, fmt.Errorf("decode exceptions: %w", err)
		}
	}

	a := availability.Availability{
		VetID:      vetID,
		Entries:    make([]availability.Entry, 0, len(entries)),
		Exceptions: make([]availability.Exception, 0, len(exceptions)),
		UpdatedAt:  updatedAt,
	}
	for _, e := range entries {
		d, err := availability.ParseDate(e.Date)
		if err != nil {
			return availability.Availability{}, fmt.Errorf("decode entry date: %w", err)
		}
		a.Entries = append(a.Entries, availability.Entry{Date: d, Slots: e.Slots})
	}
	for _, ex := range exceptions {
		d, err := availability.ParseDate(ex.Date)
		if err != nil {
			return availability.Availability{}, fmt.Errorf("decode exception date: %w", err)
		}
		a.Exceptions = append(a.Exceptions, availability.Exception{Date: d, IsAvailable: ex.IsAvailable, Slots: ex.Slots})
	}
	return a, nil
}
