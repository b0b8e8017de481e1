package booking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a database; set BOOKING_TEST_DSN to run them.

func setupTestStore(t *testing.T) *PgStore {
	t.Helper()

	dsn := os.Getenv("BOOKING_TEST_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := applyMigration(ctx, pool); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := pool.Exec(ctx, "TRUNCATE TABLE event_logs, reservations, appointments, provider_slots, providers"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewPgStore(pool)
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}

	var cleaned []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	for _, part := range strings.Split(strings.Join(cleaned, "\n"), ";") {
		stmt := strings.TrimSpace(part)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func seedTestAppointment(t *testing.T, store *PgStore) Appointment {
	t.Helper()
	ctx := context.Background()

	providerID := uuid.NewString()
	if _, err := store.pool.Exec(ctx, `INSERT INTO providers (id, name) VALUES ($1, $2)`, providerID, "Test Provider"); err != nil {
		t.Fatalf("insert provider: %v", err)
	}

	start := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	appt := Appointment{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Start:      start,
		End:        start.Add(15 * time.Minute),
	}
	if err := store.AddAppointments(ctx, []Appointment{appt}); err != nil {
		t.Fatalf("add appointment: %v", err)
	}
	return appt
}

func TestPgClaimAppointmentExclusive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	appt := seedTestAppointment(t, store)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		clientID := fmt.Sprintf("client-%d", i)
		wg.Add(1)
		go func(cid string) {
			defer wg.Done()
			_, err := store.ClaimAppointment(ctx, appt.ID, cid, time.Now())
			errs <- err
		}(clientID)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrSlotUnavailable) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful claim, got %d", success)
	}

	stored, err := store.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if stored.ReservedBy == nil || stored.ReservedAt == nil {
		t.Fatal("claimed appointment missing reservation marker")
	}
}

func TestPgClaimMissingAppointment(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.ClaimAppointment(context.Background(), uuid.NewString(), "client-1", time.Now())
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestPgUpdateReservationStatusCAS(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	appt := seedTestAppointment(t, store)

	now := time.Now().Truncate(time.Second)
	res := &Reservation{
		ID:            uuid.NewString(),
		AppointmentID: appt.ID,
		ClientID:      "client-1",
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.AddReservation(ctx, res); err != nil {
		t.Fatalf("add reservation: %v", err)
	}

	updated, err := store.UpdateReservationStatus(ctx, res.ID, StatusPending, StatusConfirmed, time.Now())
	if err != nil {
		t.Fatalf("confirm CAS: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", updated.Status)
	}

	// A second swap from pending must observe the lost race.
	_, err = store.UpdateReservationStatus(ctx, res.ID, StatusPending, StatusExpired, time.Now())
	if !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("err = %v, want ErrStaleStatus", err)
	}

	_, err = store.UpdateReservationStatus(ctx, uuid.NewString(), StatusPending, StatusExpired, time.Now())
	if !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("err = %v, want ErrReservationNotFound", err)
	}
}

func TestPgUpdateAppointment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	appt := seedTestAppointment(t, store)

	appt.Start = appt.Start.Add(time.Hour)
	appt.End = appt.End.Add(time.Hour)
	if err := store.UpdateAppointment(ctx, &appt); err != nil {
		t.Fatalf("update appointment: %v", err)
	}

	stored, err := store.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if !stored.Start.Equal(appt.Start) || !stored.End.Equal(appt.End) {
		t.Fatalf("stored window [%s, %s), want [%s, %s)", stored.Start, stored.End, appt.Start, appt.End)
	}

	missing := appt
	missing.ID = uuid.NewString()
	if err := store.UpdateAppointment(ctx, &missing); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestPgReleaseAppointmentReopensSlot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	appt := seedTestAppointment(t, store)

	if _, err := store.ClaimAppointment(ctx, appt.ID, "client-1", time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.ReleaseAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	stored, err := store.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if stored.ReservedBy != nil || stored.ReservedAt != nil {
		t.Fatal("released appointment still claimed")
	}

	// The slot can be claimed again.
	if _, err := store.ClaimAppointment(ctx, appt.ID, "client-2", time.Now()); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
}
