package booking

import (
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCanceled  ReservationStatus = "canceled"
	StatusExpired   ReservationStatus = "expired"
)

// Appointment is one provider-owned bookable time slot. ReservedBy and
// ReservedAt are both set or both nil; a set ReservedBy is the
// exclusivity lock that prevents a second reservation on the slot.
type Appointment struct {
	ID         string
	ProviderID string
	Start      time.Time
	End        time.Time
	ReservedBy *string
	ReservedAt *time.Time
}

func (a *Appointment) Reserved() bool {
	return a.ReservedBy != nil
}

// Reservation is a client's claim on one appointment. Once the status
// reaches confirmed, canceled or expired it never changes again.
type Reservation struct {
	ID            string
	AppointmentID string
	ClientID      string
	Status        ReservationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *Reservation) Terminal() bool {
	return r.Status != StatusPending
}

// Slot is a bare time interval, used in the provider's denormalized
// available-slots cache.
type Slot struct {
	Start time.Time
	End   time.Time
}

type Provider struct {
	ID             string
	Name           string
	AvailableSlots []Slot
}

// EventLog records a reservation lifecycle event for auditing.
type EventLog struct {
	ID            int64
	EventType     string
	ReservationID *string
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentPage is one page of a provider's appointments plus the
// total matching count.
type AppointmentPage struct {
	Appointments []Appointment
	Page         int
	Limit        int
	TotalCount   int
}
