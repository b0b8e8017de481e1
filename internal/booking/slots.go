package booking

import (
	"time"

	"github.com/google/uuid"
)

// GenerateSlots partitions [start, end) into contiguous appointment
// slots of exactly slotDuration each. The divisibility check up front
// guarantees the last slot ends exactly at end; a partial trailing
// slot is never silently dropped.
func GenerateSlots(providerID string, start, end time.Time, slotDuration time.Duration) ([]Appointment, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}
	if slotDuration <= 0 || end.Sub(start)%slotDuration != 0 {
		return nil, ErrInvalidDuration
	}

	count := int(end.Sub(start) / slotDuration)
	slots := make([]Appointment, 0, count)

	for cur := start; cur.Before(end); cur = cur.Add(slotDuration) {
		slots = append(slots, Appointment{
			ID:         uuid.NewString(),
			ProviderID: providerID,
			Start:      cur,
			End:        cur.Add(slotDuration),
		})
	}

	return slots, nil
}
