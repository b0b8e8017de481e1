package booking

import (
	"context"
	"sync"
	"time"
)

// In-memory store implementations. They back the test suite and local
// runs without Postgres; every conditional update takes the store
// mutex so the claim and status CAS semantics match the SQL versions.

type MemoryDirectory struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

func NewMemoryDirectory(providers ...Provider) *MemoryDirectory {
	d := &MemoryDirectory{providers: make(map[string]*Provider)}
	for i := range providers {
		p := providers[i]
		d.providers[p.ID] = &p
	}
	return d
}

func (d *MemoryDirectory) GetProvider(_ context.Context, id string) (*Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cp := *p
	cp.AvailableSlots = append([]Slot(nil), p.AvailableSlots...)
	return &cp, nil
}

func (d *MemoryDirectory) AppendProviderSlots(_ context.Context, id string, slots []Slot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.providers[id]
	if !ok {
		return ErrProviderNotFound
	}
	p.AvailableSlots = append(p.AvailableSlots, slots...)
	return nil
}

type MemoryAppointmentRepo struct {
	mu    sync.RWMutex
	byID  map[string]*Appointment
	order []string // insertion order, stands in for an indexed query's stable ordering
}

func NewMemoryAppointmentRepo() *MemoryAppointmentRepo {
	return &MemoryAppointmentRepo{byID: make(map[string]*Appointment)}
}

func (r *MemoryAppointmentRepo) AddAppointments(_ context.Context, appts []Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range appts {
		a := appts[i]
		if _, ok := r.byID[a.ID]; !ok {
			r.order = append(r.order, a.ID)
		}
		r.byID[a.ID] = &a
	}
	return nil
}

func (r *MemoryAppointmentRepo) GetAppointment(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAppointmentRepo) GetByProvider(_ context.Context, providerID string, page, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Appointment
	for _, id := range r.order {
		a := r.byID[id]
		if a.ProviderID == providerID {
			matched = append(matched, *a)
		}
	}

	offset := (page - 1) * limit
	if offset >= len(matched) {
		return nil, nil
	}
	endIdx := offset + limit
	if endIdx > len(matched) {
		endIdx = len(matched)
	}
	return matched[offset:endIdx], nil
}

func (r *MemoryAppointmentRepo) CountByProvider(_ context.Context, providerID string, start, end *time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.byID {
		if a.ProviderID != providerID {
			continue
		}
		if start != nil && a.Start.Before(*start) {
			continue
		}
		if end != nil && a.End.After(*end) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *MemoryAppointmentRepo) UpdateAppointment(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[appt.ID]; !ok {
		return ErrAppointmentNotFound
	}
	cp := *appt
	r.byID[appt.ID] = &cp
	return nil
}

func (r *MemoryAppointmentRepo) ClaimAppointment(_ context.Context, id, clientID string, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.ReservedBy != nil {
		return nil, ErrSlotUnavailable
	}
	by := clientID
	when := at
	a.ReservedBy = &by
	a.ReservedAt = &when
	cp := *a
	return &cp, nil
}

func (r *MemoryAppointmentRepo) ReleaseAppointment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.ReservedBy = nil
	a.ReservedAt = nil
	return nil
}

type MemoryReservationRepo struct {
	mu     sync.RWMutex
	byID   map[string]*Reservation
	events []EventLog
}

func NewMemoryReservationRepo() *MemoryReservationRepo {
	return &MemoryReservationRepo{byID: make(map[string]*Reservation)}
}

func (r *MemoryReservationRepo) AddReservation(_ context.Context, res *Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.byID[res.ID] = &cp
	return nil
}

func (r *MemoryReservationRepo) GetReservation(_ context.Context, id string) (*Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *MemoryReservationRepo) UpdateReservationStatus(_ context.Context, id string, from, to ReservationStatus, at time.Time) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	if res.Status != from {
		return nil, ErrStaleStatus
	}
	res.Status = to
	res.UpdatedAt = at
	cp := *res
	return &cp, nil
}

func (r *MemoryReservationRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a snapshot of the recorded event log.
func (r *MemoryReservationRepo) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryReservationRepo) FindOverduePending(_ context.Context, createdBefore time.Time) ([]Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Reservation
	for _, res := range r.byID {
		if res.Status == StatusPending && res.CreatedAt.Before(createdBefore) {
			out = append(out, *res)
		}
	}
	return out, nil
}
