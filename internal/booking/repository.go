package booking

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidRange      = errors.New("start time must be before end time")
	ErrInvalidDuration   = errors.New("time range must be divisible by slot duration")
	ErrInvalidPagination = errors.New("page and limit must be positive integers")

	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrReservationNotFound = errors.New("reservation not found")

	ErrSlotUnavailable      = errors.New("appointment slot unavailable")
	ErrInsufficientLeadTime = errors.New("appointment start is too close to book")
	ErrReservationExpired   = errors.New("reservation expired")

	// ErrStaleStatus is returned by UpdateReservationStatus when the
	// reservation is no longer in the expected status. Callers decide
	// whether that means a conflict or a benign no-op.
	ErrStaleStatus = errors.New("reservation status changed concurrently")
)

// ProviderDirectory resolves providers and maintains their denormalized
// available-slots cache.
type ProviderDirectory interface {
	GetProvider(ctx context.Context, id string) (*Provider, error)
	AppendProviderSlots(ctx context.Context, id string, slots []Slot) error
}

// AppointmentRepository contains all appointment storage interactions
// needed by the services.
type AppointmentRepository interface {
	AddAppointments(ctx context.Context, appts []Appointment) error
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	GetByProvider(ctx context.Context, providerID string, page, limit int) ([]Appointment, error)
	CountByProvider(ctx context.Context, providerID string, start, end *time.Time) (int, error)
	UpdateAppointment(ctx context.Context, appt *Appointment) error

	// ClaimAppointment sets reserved_by/reserved_at in a single
	// conditional update that succeeds only while the slot is
	// unclaimed. Returns ErrSlotUnavailable if another client holds
	// the slot, ErrAppointmentNotFound if the slot does not exist.
	ClaimAppointment(ctx context.Context, id, clientID string, at time.Time) (*Appointment, error)

	// ReleaseAppointment clears reserved_by/reserved_at, reopening the
	// slot. Releasing an unclaimed slot is a no-op.
	ReleaseAppointment(ctx context.Context, id string) error
}

// ReservationRepository contains all reservation storage interactions
// needed by the services.
type ReservationRepository interface {
	AddReservation(ctx context.Context, res *Reservation) error
	GetReservation(ctx context.Context, id string) (*Reservation, error)

	// UpdateReservationStatus moves a reservation from one status to
	// another as a compare-and-swap keyed on the current status.
	// Returns ErrStaleStatus if the reservation exists but is no
	// longer in the from status, ErrReservationNotFound if it does
	// not exist.
	UpdateReservationStatus(ctx context.Context, id string, from, to ReservationStatus, at time.Time) (*Reservation, error)

	// FindOverduePending returns pending reservations created before
	// the cutoff, for the expiry sweep backstop.
	FindOverduePending(ctx context.Context, createdBefore time.Time) ([]Reservation, error)

	// InsertEvent appends a lifecycle event to the audit log.
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Locker guards the reservation-create critical section per
// appointment. It is an advisory optimization to shed duplicate work;
// the conditional ClaimAppointment update is what actually prevents
// double booking.
type Locker interface {
	WithAppointmentLock(ctx context.Context, appointmentID string, fn func(ctx context.Context) error) error
}

// NopLocker runs the critical section without any locking, relying
// entirely on the store-level claim. Used in tests and single-node
// deployments without Redis.
type NopLocker struct{}

func (NopLocker) WithAppointmentLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
