package api

import (
	"time"

	"github.com/bookwell/booking/internal/booking"
)

type AddSlotsRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentResponse struct {
	ID         string     `json:"id"`
	ProviderID string     `json:"provider_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	ReservedBy *string    `json:"reserved_by,omitempty"`
	ReservedAt *time.Time `json:"reserved_at,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Pagination   Pagination            `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
}

type CreateReservationRequest struct {
	ClientID      string `json:"client_id"`
	AppointmentID string `json:"appointment_id"`
}

type ConfirmReservationRequest struct {
	ClientID string `json:"client_id"`
}

type ReservationResponse struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	ClientID      string    `json:"client_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		Start:      a.Start,
		End:        a.End,
		ReservedBy: a.ReservedBy,
		ReservedAt: a.ReservedAt,
	}
}

func toReservationResponse(r *booking.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		ClientID:      r.ClientID,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
