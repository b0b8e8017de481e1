package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements ProviderDirectory, AppointmentRepository and
// ReservationRepository on top of Postgres. The claim and status
// updates are conditional UPDATEs, so the database is the arbiter of
// every race.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var reservedBy *string
	var reservedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.Start,
		&a.End,
		&reservedBy,
		&reservedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ReservedBy = reservedBy
	a.ReservedAt = reservedAt
	return &a, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.ClientID,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	return &r, nil
}

// ProviderDirectory

func (s *PgStore) GetProvider(ctx context.Context, id string) (*Provider, error) {
	var p Provider
	err := s.pool.QueryRow(ctx, `
		SELECT id, name
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM provider_slots
		WHERE provider_id = $1
		ORDER BY start_time
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.Start, &slot.End); err != nil {
			return nil, err
		}
		p.AvailableSlots = append(p.AvailableSlots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *PgStore) AppendProviderSlots(ctx context.Context, id string, slots []Slot) error {
	batch := &pgx.Batch{}
	for _, slot := range slots {
		batch.Queue(`
			INSERT INTO provider_slots (provider_id, start_time, end_time)
			VALUES ($1, $2, $3)
		`, id, slot.Start, slot.End)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range slots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("append provider slot: %w", err)
		}
	}
	return nil
}

// AppointmentRepository

func (s *PgStore) AddAppointments(ctx context.Context, appts []Appointment) error {
	batch := &pgx.Batch{}
	for _, a := range appts {
		batch.Queue(`
			INSERT INTO appointments (id, provider_id, start_time, end_time, reserved_by, reserved_at)
			VALUES ($1, $2, $3, $4, NULL, NULL)
		`, a.ID, a.ProviderID, a.Start, a.End)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range appts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
	}
	return nil
}

func (s *PgStore) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider_id, start_time, end_time, reserved_by, reserved_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) GetByProvider(ctx context.Context, providerID string, page, limit int) ([]Appointment, error) {
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_id, start_time, end_time, reserved_by, reserved_at
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_time, id
		LIMIT $2 OFFSET $3
	`, providerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) CountByProvider(ctx context.Context, providerID string, start, end *time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE provider_id = $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR end_time <= $3)
	`, providerID, start, end).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PgStore) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    reserved_by = $4,
		    reserved_at = $5
		WHERE id = $1
	`, appt.ID, appt.Start, appt.End, appt.ReservedBy, appt.ReservedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *PgStore) ClaimAppointment(ctx context.Context, id, clientID string, at time.Time) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET reserved_by = $2,
		    reserved_at = $3
		WHERE id = $1
		  AND reserved_by IS NULL
		RETURNING id, provider_id, start_time, end_time, reserved_by, reserved_at
	`, id, clientID, at)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// No row matched: either the slot is claimed or it does not
		// exist. One more read tells them apart.
		if _, getErr := s.GetAppointment(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSlotUnavailable
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *PgStore) ReleaseAppointment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET reserved_by = NULL,
		    reserved_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// ReservationRepository

func (s *PgStore) AddReservation(ctx context.Context, res *Reservation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reservations (id, appointment_id, client_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, res.ID, res.AppointmentID, res.ClientID, res.Status, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *PgStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, appointment_id, client_id, status, created_at, updated_at
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (s *PgStore) UpdateReservationStatus(ctx context.Context, id string, from, to ReservationStatus, at time.Time) (*Reservation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = $4
		RETURNING id, appointment_id, client_id, status, created_at, updated_at
	`, id, to, at, from)

	res, err := scanReservation(row)
	if errors.Is(err, ErrReservationNotFound) {
		if _, getErr := s.GetReservation(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleStatus
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *PgStore) FindOverduePending(ctx context.Context, createdBefore time.Time) ([]Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, appointment_id, client_id, status, created_at, updated_at
		FROM reservations
		WHERE status = 'pending'
		  AND created_at < $1
	`, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, reservation_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.ReservationID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
