package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bookwell/booking/internal/config"
)

// AppointmentsService publishes and lists provider appointment slots.
type AppointmentsService struct {
	providers ProviderDirectory
	appts     AppointmentRepository
	cfg       config.Config
}

func NewAppointmentsService(providers ProviderDirectory, appts AppointmentRepository, cfg config.Config) *AppointmentsService {
	return &AppointmentsService{
		providers: providers,
		appts:     appts,
		cfg:       cfg,
	}
}

// AddAppointmentSlots splits [start, end) into slots of the configured
// duration and persists them for the provider.
func (s *AppointmentsService) AddAppointmentSlots(ctx context.Context, providerID string, start, end time.Time) ([]Appointment, error) {
	if _, err := s.providers.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	slots, err := GenerateSlots(providerID, start, end, s.cfg.SlotDuration)
	if err != nil {
		return nil, err
	}

	if err := s.appts.AddAppointments(ctx, slots); err != nil {
		return nil, fmt.Errorf("persist slots: %w", err)
	}

	// The provider's available-slots cache is denormalized convenience
	// data; a failed append must not roll back persisted slots.
	cache := make([]Slot, len(slots))
	for i, a := range slots {
		cache[i] = Slot{Start: a.Start, End: a.End}
	}
	if err := s.providers.AppendProviderSlots(ctx, providerID, cache); err != nil {
		log.Printf("failed to append slots to provider %s cache: %v", providerID, err)
	}

	return slots, nil
}

// ListAvailableAppointments returns one page of a provider's
// appointments plus the total matching count. Optional start/end
// filters match slot boundaries by exact instant, not range overlap.
func (s *AppointmentsService) ListAvailableAppointments(ctx context.Context, providerID string, page, limit int, start, end *time.Time) (*AppointmentPage, error) {
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPagination
	}

	appts, err := s.appts.GetByProvider(ctx, providerID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	if start != nil {
		filtered := appts[:0]
		for _, a := range appts {
			if a.Start.Equal(*start) {
				filtered = append(filtered, a)
			}
		}
		appts = filtered
	}
	if end != nil {
		filtered := appts[:0]
		for _, a := range appts {
			if a.End.Equal(*end) {
				filtered = append(filtered, a)
			}
		}
		appts = filtered
	}

	total, err := s.appts.CountByProvider(ctx, providerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	return &AppointmentPage{
		Appointments: appts,
		Page:         page,
		Limit:        limit,
		TotalCount:   total,
	}, nil
}

// GetAppointment retrieves a single appointment slot by id.
func (s *AppointmentsService) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	return s.appts.GetAppointment(ctx, id)
}
