package reminder

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	Kind24h Kind = "24h"
	Kind48h Kind = "48h"
)

// Offset is how long before the appointment a reminder of this kind fires.
func (k Kind) Offset() time.Duration {
	switch k {
	case Kind24h:
		return 24 * time.Hour
	case Kind48h:
		return 48 * time.Hour
	}
	return 0
}

func (k Kind) Valid() bool {
	return k == Kind24h || k == Kind48h
}

type Reminder struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	Kind          Kind       `json:"kind"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Sent          bool       `json:"sent"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// Derive returns the follow-up reminders for an appointment at dt. They are
// computed once at booking time and stored; rescheduling is not supported.
// Reminders whose time has already passed are still returned.
func Derive(appointmentID uuid.UUID, dt time.Time) []Reminder {
	kinds := []Kind{Kind24h, Kind48h}
	out := make([]Reminder, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Reminder{
			ID:            uuid.New(),
			AppointmentID: appointmentID,
			Kind:          k,
			ScheduledAt:   dt.Add(-k.Offset()),
		})
	}
	return out
}
