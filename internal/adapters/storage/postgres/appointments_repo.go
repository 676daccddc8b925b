package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vet-scheduling/internal/domain/appointments"
)

type AppointmentsRepo struct {
	db *sql.DB
}

func NewAppointmentsRepo(db *sql.DB) *AppointmentsRepo {
	return &AppointmentsRepo{db: db}
}

const appointmentColumns = `
	id, pet_id, user_id, vet_id,
	appt_date, slot, purpose, status, booked_by,
	pet_name, owner_name,
	created_at, updated_at, cancelled_at`

// Claim es un único INSERT condicional contra el índice único parcial
// appointments_live_slot_uq (vet_id, appt_date, slot) WHERE status <> 'cancelled'.
// Si no devuelve fila, otro turno vivo ya ocupa la Key.
func (r *AppointmentsRepo) Claim(ctx context.Context, a appointments.Appointment) error {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (vet_id, appt_date, slot) WHERE status <> 'cancelled' DO NOTHING
		RETURNING id
	`,
		a.ID,
		a.PetID,
		a.UserID,
		a.VetID,
		a.Date,
		a.Slot,
		string(a.Purpose),
		string(a.Status),
		string(a.BookedBy),
		a.PetName,
		a.OwnerName,
		a.CreatedAt,
		a.UpdatedAt,
		toNullTime(a.CancelledAt),
	).Scan(&id)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return appointments.ErrSlotTaken
	default:
		return err
	}
}

func (r *AppointmentsRepo) Update(ctx context.Context, a appointments.Appointment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET
			pet_id = $2,
			user_id = $3,
			appt_date = $4,
			slot = $5,
			purpose = $6,
			status = $7,
			pet_name = $8,
			owner_name = $9,
			updated_at = $10,
			cancelled_at = $11
		WHERE id = $1
	`,
		a.ID,
		a.PetID,
		a.UserID,
		a.Date,
		a.Slot,
		string(a.Purpose),
		string(a.Status),
		a.PetName,
		a.OwnerName,
		a.UpdatedAt,
		toNullTime(a.CancelledAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appointments.ErrSlotTaken
		}
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return appointments.ErrRecordNotFound
	}
	return nil
}

func (r *AppointmentsRepo) GetByID(ctx context.Context, id string) (appointments.Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appointments.Appointment{}, appointments.ErrRecordNotFound
		}
		return appointments.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentsRepo) ListLive(ctx context.Context, vetID string, from time.Time) ([]appointments.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE vet_id = $1 AND appt_date >= $2 AND status <> 'cancelled'
		ORDER BY appt_date ASC, slot ASC
	`, vetID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// List filtra (incluida la búsqueda por nombre) en SQL y recién después pagina.
func (r *AppointmentsRepo) List(ctx context.Context, f appointments.ListFilter) ([]appointments.Appointment, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.VetID != "" {
		add("vet_id = $%d", f.VetID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(pet_name ILIKE $%d OR owner_name ILIKE $%d)", n, n))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []appointments.Appointment{}, 0, nil
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM appointments%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		appointmentColumns, clause, len(args)+1, len(args)+2,
	), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectAppointments(rows *sql.Rows) ([]appointments.Appointment, error) {
	out := make([]appointments.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(s rowScanner) (appointments.Appointment, error) {
	var (
		a                       appointments.Appointment
		purpose, status, booked string
		cancelledAt             sql.NullTime
	)
	if err := s.Scan(
		&a.ID,
		&a.PetID,
		&a.UserID,
		&a.VetID,
		&a.Date,
		&a.Slot,
		&purpose,
		&status,
		&booked,
		&a.PetName,
		&a.OwnerName,
		&a.CreatedAt,
		&a.UpdatedAt,
		&cancelledAt,
	); err != nil {
		return appointments.Appointment{}, err
	}
	a.Date = dateOnly(a.Date)
	a.Purpose = appointments.Purpose(purpose)
	a.Status = appointments.Status(status)
	a.BookedBy = appointments.BookedBy(booked)
	if cancelledAt.Valid {
		t := cancelledAt.Time
		a.CancelledAt = &t
	}
	return a, nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
