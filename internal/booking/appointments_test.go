package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAddAppointmentSlotsPersistsAndCaches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now().Add(48 * time.Hour)
	slots, err := env.appointments.AddAppointmentSlots(ctx, "prov-1", start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("add slots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}

	for _, s := range slots {
		stored, err := env.appts.GetAppointment(ctx, s.ID)
		if err != nil {
			t.Fatalf("slot %s not persisted: %v", s.ID, err)
		}
		if stored.Reserved() {
			t.Fatalf("fresh slot %s already reserved", s.ID)
		}
	}

	prov, err := env.directory.GetProvider(ctx, "prov-1")
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if len(prov.AvailableSlots) != 8 {
		t.Fatalf("provider cache has %d slots, want 8", len(prov.AvailableSlots))
	}
}

func TestAddAppointmentSlotsUnknownProvider(t *testing.T) {
	env := newTestEnv(t)
	start := env.clock.Now().Add(48 * time.Hour)

	_, err := env.appointments.AddAppointmentSlots(context.Background(), "nope", start, start.Add(time.Hour))
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("err = %v, want ErrProviderNotFound", err)
	}
}

func TestAddAppointmentSlotsInvalidRangePersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now().Add(48 * time.Hour)

	_, err := env.appointments.AddAppointmentSlots(ctx, "prov-1", start, start.Add(50*time.Minute))
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}

	count, err := env.appts.CountByProvider(ctx, "prov-1", nil, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected nothing persisted, found %d appointments", count)
	}
}

func TestGetAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now().Add(48 * time.Hour)

	slots, err := env.appointments.AddAppointmentSlots(ctx, "prov-1", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("add slots: %v", err)
	}

	got, err := env.appointments.GetAppointment(ctx, slots[2].ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if got.ID != slots[2].ID || !got.Start.Equal(slots[2].Start) {
		t.Fatalf("got appointment %+v, want %+v", got, slots[2])
	}

	if _, err := env.appointments.GetAppointment(ctx, "missing"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestUpdateAppointmentReschedules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now().Add(48 * time.Hour)

	slots, err := env.appointments.AddAppointmentSlots(ctx, "prov-1", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("add slots: %v", err)
	}

	moved := slots[0]
	moved.Start = moved.Start.Add(time.Hour)
	moved.End = moved.End.Add(time.Hour)
	if err := env.appts.UpdateAppointment(ctx, &moved); err != nil {
		t.Fatalf("update appointment: %v", err)
	}

	stored, err := env.appts.GetAppointment(ctx, moved.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if !stored.Start.Equal(moved.Start) || !stored.End.Equal(moved.End) {
		t.Fatalf("stored window [%s, %s), want [%s, %s)", stored.Start, stored.End, moved.Start, moved.End)
	}

	unknown := moved
	unknown.ID = "missing"
	if err := env.appts.UpdateAppointment(ctx, &unknown); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestListAvailableAppointmentsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now().Add(48 * time.Hour)

	if _, err := env.appointments.AddAppointmentSlots(ctx, "prov-1", start, start.Add(3*time.Hour)); err != nil {
		t.Fatalf("add slots: %v", err)
	}

	page1, err := env.appointments.ListAvailableAppointments(ctx, "prov-1", 1, 5, nil, nil)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(page1.Appointments) != 5 {
		t.Fatalf("page 1 has %d appointments, want 5", len(page1.Appointments))
	}
	if page1.TotalCount != 12 {
		t.Fatalf("total = %d, want 12", page1.TotalCount)
	}

	page3, err := env.appointments.ListAvailableAppointments(ctx, "prov-1", 3, 5, nil, nil)
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page3.Appointments) != 2 {
		t.Fatalf("page 3 has %d appointments, want 2", len(page3.Appointments))
	}

	page4, err := env.appointments.ListAvailableAppointments(ctx, "prov-1", 4, 5, nil, nil)
	if err != nil {
		t.Fatalf("list page 4: %v", err)
	}
	if len(page4.Appointments) != 0 {
		t.Fatalf("page past the end has %d appointments", len(page4.Appointments))
	}
}

func TestListAvailableAppointmentsInvalidPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct{ page, limit int }{
		{0, 10},
		{-1, 10},
		{1, 0},
		{1, -5},
	}
	for _, tc := range cases {
		if _, err := env.appointments.ListAvailableAppointments(ctx, "prov-1", tc.page, tc.limit, nil, nil); !errors.Is(err, ErrInvalidPagination) {
			t.Fatalf("page=%d limit=%d err = %v, want ErrInvalidPagination", tc.page, tc.limit, err)
		}
	}
}

func TestListAvailableAppointmentsExactStartFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	start := env.clock.Now().Add(48 * time.Hour)

	if _, err := env.appointments.AddAppointmentSlots(ctx, "prov-1", start, start.Add(time.Hour)); err != nil {
		t.Fatalf("add slots: %v", err)
	}

	// Filters match slot boundaries exactly, not by overlap.
	target := start.Add(30 * time.Minute)
	page, err := env.appointments.ListAvailableAppointments(ctx, "prov-1", 1, 10, &target, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Appointments) != 1 {
		t.Fatalf("filtered page has %d appointments, want 1", len(page.Appointments))
	}
	if !page.Appointments[0].Start.Equal(target) {
		t.Fatalf("filtered slot starts at %s, want %s", page.Appointments[0].Start, target)
	}

	offBoundary := start.Add(10 * time.Minute)
	page, err = env.appointments.ListAvailableAppointments(ctx, "prov-1", 1, 10, &offBoundary, nil)
	if err != nil {
		t.Fatalf("list off-boundary: %v", err)
	}
	if len(page.Appointments) != 0 {
		t.Fatalf("off-boundary filter matched %d appointments", len(page.Appointments))
	}
}
