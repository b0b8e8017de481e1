package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookwell/booking/internal/booking"
	redisclient "github.com/bookwell/booking/internal/redis"
)

func addSlotsHandler(svc *booking.AppointmentsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerID")

		var req AddSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Start.IsZero() || req.End.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_time_range", "start and end are required RFC 3339 timestamps")
			return
		}

		slots, err := svc.AddAppointmentSlots(r.Context(), providerID, req.Start, req.End)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := make([]AppointmentResponse, len(slots))
		for i, a := range slots {
			resp[i] = toAppointmentResponse(a)
		}

		writeJSON(w, http.StatusCreated, map[string]any{"appointments": resp})
	}
}

func listAppointmentsHandler(svc *booking.AppointmentsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := chi.URLParam(r, "providerID")

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", "page must be a positive integer")
			return
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pagination", "limit must be a positive integer")
			return
		}

		start, err := parseTimeParam(r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 timestamp")
			return
		}
		end, err := parseTimeParam(r.URL.Query().Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be an RFC 3339 timestamp")
			return
		}

		pageResult, err := svc.ListAvailableAppointments(r.Context(), providerID, page, limit, start, end)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		resp := AppointmentListResponse{
			Appointments: make([]AppointmentResponse, len(pageResult.Appointments)),
			Pagination: Pagination{
				Page:       pageResult.Page,
				Limit:      pageResult.Limit,
				TotalCount: pageResult.TotalCount,
			},
		}
		for i, a := range pageResult.Appointments {
			resp.Appointments[i] = toAppointmentResponse(a)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *booking.AppointmentsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleAppointmentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func createReservationHandler(svc *booking.ReservationsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.ClientID == "" || req.AppointmentID == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "client_id and appointment_id are required")
			return
		}

		res, err := svc.CreateReservation(r.Context(), req.ClientID, req.AppointmentID)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

func confirmReservationHandler(svc *booking.ReservationsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID := chi.URLParam(r, "id")

		var req ConfirmReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.ClientID == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "client_id is required")
			return
		}

		res, err := svc.ConfirmReservation(r.Context(), req.ClientID, reservationID)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

func getReservationHandler(svc *booking.ReservationsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetReservation(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleReservationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, booking.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_slot_duration", err.Error())
	case errors.Is(err, booking.ErrInvalidPagination):
		writeError(w, http.StatusBadRequest, "invalid_pagination", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleReservationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_reserved", "slot is currently being reserved, please retry shortly")
	case errors.Is(err, booking.ErrInsufficientLeadTime):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_lead_time", err.Error())
	case errors.Is(err, booking.ErrReservationExpired):
		writeError(w, http.StatusConflict, "reservation_expired", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
