package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bookwell/booking/internal/booking"
)

type RouterConfig struct {
	Appointments *booking.AppointmentsService
	Reservations *booking.ReservationsService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/providers/{providerID}/appointments", addSlotsHandler(cfg.Appointments))
	r.Get("/providers/{providerID}/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))

	r.Post("/reservations", createReservationHandler(cfg.Reservations))
	r.Get("/reservations/{id}", getReservationHandler(cfg.Reservations))
	r.Post("/reservations/{id}/confirm", confirmReservationHandler(cfg.Reservations))

	return r
}
