// Concurrency tests for the reservation lifecycle (run with -race).
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestConcurrentCreateSameAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	appt := env.publishSlot(t, 48*time.Hour)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		clientID := fmt.Sprintf("client-%d", i)
		wg.Add(1)
		go func(cid string) {
			defer wg.Done()
			_, err := env.service.CreateReservation(ctx, cid, appt.ID)
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
		t.Fatalf("expected exactly 1 successful reservation, got %d", success)
	}

	stored, err := env.appts.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if stored.ReservedBy == nil {
		t.Fatal("winning reservation did not mark the appointment")
	}
}

func TestConcurrentConfirmVsExpire(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	appt := env.publishSlot(t, 48*time.Hour)

	res, err := env.service.CreateReservation(ctx, "client-1", appt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var confirmErr, expireErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, confirmErr = env.service.ConfirmReservation(ctx, "client-1", res.ID)
	}()
	go func() {
		defer wg.Done()
		expireErr = env.service.Expire(ctx, res.ID)
	}()
	wg.Wait()

	if expireErr != nil {
		t.Fatalf("expire returned error: %v", expireErr)
	}

	cur, err := env.reservations.GetReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}

	switch cur.Status {
	case StatusConfirmed:
		if confirmErr != nil {
			t.Fatalf("reservation confirmed but confirm errored: %v", confirmErr)
		}
		stored, _ := env.appts.GetAppointment(ctx, appt.ID)
		if stored.ReservedBy == nil {
			t.Fatal("confirmed reservation lost its slot claim")
		}
	case StatusExpired:
		if !errors.Is(confirmErr, ErrReservationExpired) {
			t.Fatalf("reservation expired but confirm err = %v", confirmErr)
		}
		stored, _ := env.appts.GetAppointment(ctx, appt.ID)
		if stored.ReservedBy != nil {
			t.Fatal("expired reservation left the slot claimed")
		}
	default:
		t.Fatalf("reservation ended in status %s", cur.Status)
	}
}

func TestConcurrentConfirms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	appt := env.publishSlot(t, 48*time.Hour)

	res, err := env.service.CreateReservation(ctx, "client-1", appt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 4
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.ConfirmReservation(ctx, "client-1", res.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent confirm errored: %v", err)
		}
	}

	cur, _ := env.reservations.GetReservation(ctx, res.ID)
	if cur.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", cur.Status)
	}
}
