// The expiry worker sweeps pending reservations whose expiry window
// has passed. The api-server arms an in-process timer per reservation;
// this worker is the backstop for timers lost to a restart.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookwell/booking/internal/booking"
	"github.com/bookwell/booking/internal/clock"
	"github.com/bookwell/booking/internal/config"
	"github.com/bookwell/booking/internal/db"
	"github.com/bookwell/booking/internal/expiry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("expiry-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running expiry worker in env=%s interval=%s expiry=%s",
		cfg.Env, cfg.WorkerInterval, cfg.ReservationExpiry)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	store := booking.NewPgStore(pgPool)
	clk := clock.System()

	// The worker never arms timers of its own.
	sched := expiry.NewTimerScheduler(clk, 20*time.Second)
	defer sched.Stop()

	svc := booking.NewReservationsService(store, store, booking.NopLocker{}, sched, clk, cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.ReservationsService) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ExpireOverdue(runCtx); err != nil {
		log.Printf("expiry sweep error: %v", err)
		return
	}
	log.Printf("expiry sweep complete in %s", time.Since(start))
}
