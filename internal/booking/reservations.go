package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/bookwell/booking/internal/clock"
	"github.com/bookwell/booking/internal/config"
	"github.com/bookwell/booking/internal/expiry"
)

const (
	EventReservationCreated   = "RESERVATION_CREATED"
	EventReservationConfirmed = "RESERVATION_CONFIRMED"
	EventReservationExpired   = "RESERVATION_EXPIRED"
)

// ReservationsService owns the reservation lifecycle: creation against
// an open slot, explicit confirmation, and automatic expiry racing the
// confirmation.
type ReservationsService struct {
	appts        AppointmentRepository
	reservations ReservationRepository
	locker       Locker
	sched        expiry.Scheduler
	clock        clock.Clock
	cfg          config.Config
}

func NewReservationsService(
	appts AppointmentRepository,
	reservations ReservationRepository,
	locker Locker,
	sched expiry.Scheduler,
	clk clock.Clock,
	cfg config.Config,
) *ReservationsService {
	return &ReservationsService{
		appts:        appts,
		reservations: reservations,
		locker:       locker,
		sched:        sched,
		clock:        clk,
		cfg:          cfg,
	}
}

// CreateReservation claims the appointment for the client and creates
// a pending reservation that expires unless confirmed in time. The
// claim is a single conditional update at the store, so two concurrent
// requests on the same slot can never both succeed; the lock around it
// only sheds duplicate work.
func (s *ReservationsService) CreateReservation(ctx context.Context, clientID, appointmentID string) (*Reservation, error) {
	appt, err := s.appts.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Reserved() {
		return nil, ErrSlotUnavailable
	}
	if appt.Start.Sub(s.clock.Now()) < s.cfg.MinAdvanceBooking {
		return nil, ErrInsufficientLeadTime
	}

	var created *Reservation

	err = s.locker.WithAppointmentLock(ctx, appointmentID, func(lockCtx context.Context) error {
		now := s.clock.Now()

		if _, err := s.appts.ClaimAppointment(lockCtx, appointmentID, clientID, now); err != nil {
			return err
		}

		res := &Reservation{
			ID:            uuid.NewString(),
			AppointmentID: appointmentID,
			ClientID:      clientID,
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := s.reservations.AddReservation(lockCtx, res); err != nil {
			if relErr := s.appts.ReleaseAppointment(lockCtx, appointmentID); relErr != nil {
				log.Printf("failed to release appointment %s after reservation insert error: %v", appointmentID, relErr)
			}
			return fmt.Errorf("add reservation: %w", err)
		}

		created = res

		s.logEvent(lockCtx, res.ID, EventReservationCreated, map[string]any{
			"appointment_id": appointmentID,
			"client_id":      clientID,
			"expires_at":     now.Add(s.cfg.ReservationExpiry),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Armed outside the critical section; the task captures only the
	// reservation id and re-fetches state when it fires.
	resID := created.ID
	s.sched.Arm(resID, created.CreatedAt.Add(s.cfg.ReservationExpiry), func(taskCtx context.Context) {
		if err := s.Expire(taskCtx, resID); err != nil {
			log.Printf("failed to expire reservation %s: %v", resID, err)
		}
	})

	return created, nil
}

// ConfirmReservation moves a pending reservation to confirmed.
// Re-confirming an already confirmed reservation is a no-op returning
// the current state.
func (s *ReservationsService) ConfirmReservation(ctx context.Context, clientID, reservationID string) (*Reservation, error) {
	res, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.ClientID != clientID {
		// Never reveal another client's reservation.
		return nil, ErrReservationNotFound
	}

	switch res.Status {
	case StatusConfirmed:
		return res, nil
	case StatusExpired:
		return nil, ErrReservationExpired
	case StatusCanceled:
		// No transition out of canceled.
		return nil, ErrReservationNotFound
	}

	updated, err := s.reservations.UpdateReservationStatus(ctx, reservationID, StatusPending, StatusConfirmed, s.clock.Now())
	if errors.Is(err, ErrStaleStatus) {
		// Lost a race on the status; report the winner's outcome.
		cur, getErr := s.reservations.GetReservation(ctx, reservationID)
		if getErr != nil {
			return nil, getErr
		}
		if cur.Status == StatusConfirmed {
			return cur, nil
		}
		return nil, ErrReservationExpired
	}
	if err != nil {
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}

	s.sched.Cancel(reservationID)

	s.logEvent(ctx, reservationID, EventReservationConfirmed, map[string]any{})

	return updated, nil
}

// Expire applies the pending to expired transition and reopens the
// appointment. A reservation that already left pending makes this a
// silent no-op: the timer firing after a confirm won the race is an
// expected outcome, not a fault.
func (s *ReservationsService) Expire(ctx context.Context, reservationID string) error {
	res, err := s.reservations.GetReservation(ctx, reservationID)
	if errors.Is(err, ErrReservationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load reservation: %w", err)
	}
	if res.Status != StatusPending {
		return nil
	}

	updated, err := s.reservations.UpdateReservationStatus(ctx, reservationID, StatusPending, StatusExpired, s.clock.Now())
	if errors.Is(err, ErrStaleStatus) || errors.Is(err, ErrReservationNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire reservation: %w", err)
	}

	if err := s.appts.ReleaseAppointment(ctx, updated.AppointmentID); err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("release appointment %s: %w", updated.AppointmentID, err)
	}

	s.logEvent(ctx, reservationID, EventReservationExpired, map[string]any{
		"appointment_id": updated.AppointmentID,
	})

	return nil
}

// ExpireOverdue sweeps pending reservations whose expiry window has
// passed. It backstops the in-process timers, which do not survive a
// restart.
func (s *ReservationsService) ExpireOverdue(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.ReservationExpiry)

	overdue, err := s.reservations.FindOverduePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find overdue reservations: %w", err)
	}

	for _, res := range overdue {
		if err := s.Expire(ctx, res.ID); err != nil {
			log.Printf("failed to expire reservation %s: %v", res.ID, err)
		}
	}

	return nil
}

// GetReservation retrieves a reservation by id.
func (s *ReservationsService) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	return s.reservations.GetReservation(ctx, id)
}

func (s *ReservationsService) logEvent(ctx context.Context, reservationID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	resID := reservationID

	ev := EventLog{
		EventType:     eventType,
		ReservationID: &resID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.reservations.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for reservation %s: %v", eventType, reservationID, err)
	}
}
