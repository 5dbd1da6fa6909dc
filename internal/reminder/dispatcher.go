package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var ErrReminderNotFound = errors.New("reminder not found")

// Due is an unsent reminder together with the appointment it belongs to.
type Due struct {
	Reminder
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	AppointmentAt  time.Time `json:"appointment_at"`
}

// Repository is implemented by the booking ledger.
type Repository interface {
	// FindDue returns unsent reminders scheduled at or before now whose
	// appointment is still pending or confirmed and has not started yet.
	FindDue(ctx context.Context, now time.Time, limit int) ([]Due, error)
	// MarkSent flags a reminder as sent. Marking an already sent reminder
	// returns ErrReminderNotFound.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Notifier hands a reminder to the delivery channel.
type Notifier interface {
	Notify(ctx context.Context, d Due) error
}

type Dispatcher struct {
	repo     Repository
	notifier Notifier
	clock    calendar.Clock
	batch    int
	logger   zerolog.Logger
}

func NewDispatcher(repo Repository, notifier Notifier, clock calendar.Clock, batch int, logger zerolog.Logger) *Dispatcher {
	if batch <= 0 {
		batch = 100
	}
	return &Dispatcher{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		batch:    batch,
		logger:   logger.With().Str("component", "reminder_dispatcher").Logger(),
	}
}

// RunOnce dispatches one batch of due reminders and returns how many were
// marked sent. A reminder whose notification fails stays unsent and is
// retried on the next run.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.clock.Now()
	due, err := d.repo.FindDue(ctx, now, d.batch)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := d.notifier.Notify(ctx, r); err != nil {
			d.logger.Error().Err(err).
				Str("reminder_id", r.ID.String()).
				Str("appointment_id", r.AppointmentID.String()).
				Msg("failed to notify reminder")
			continue
		}
		if err := d.repo.MarkSent(ctx, r.ID, now); err != nil {
			if errors.Is(err, ErrReminderNotFound) {
				continue
			}
			d.logger.Error().Err(err).Str("reminder_id", r.ID.String()).Msg("failed to mark reminder sent")
			continue
		}
		sent++
	}

	if sent > 0 {
		d.logger.Info().Int("sent", sent).Int("due", len(due)).Msg("reminders dispatched")
	}
	return sent, nil
}
