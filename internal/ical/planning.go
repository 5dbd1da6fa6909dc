// Package ical renders a practitioner's planning as an RFC 5545 calendar so
// it can be subscribed to from any calendar client.
package ical

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
)

const productID = "-//hackgods//clinic-scheduling//EN"

// WritePlanning writes one VEVENT per appointment. stamp is used as DTSTAMP
// for every event.
func WritePlanning(w io.Writer, practitionerID uuid.UUID, appts []appointment.Appointment, stamp time.Time) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(fmt.Sprintf("Planning %s", practitionerID))

	for _, a := range appts {
		evt := cal.AddEvent(a.ID.String() + "@clinic-scheduling")
		evt.SetDtStampTime(stamp)
		evt.SetCreatedTime(a.CreatedAt)
		evt.SetModifiedAt(a.UpdatedAt)
		evt.SetStartAt(a.DateTime)
		evt.SetEndAt(a.DateTime.Add(availability.SlotGranularity))
		evt.SetSummary(summary(a))
		evt.SetStatus(eventStatus(a.Status))
		if a.Reason != "" {
			evt.SetDescription(a.Reason)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func summary(a appointment.Appointment) string {
	return fmt.Sprintf("Appointment (%s)", a.Status)
}

func eventStatus(s appointment.AppointmentStatus) ics.ObjectStatus {
	switch s {
	case appointment.StatusConfirmed:
		return ics.ObjectStatusConfirmed
	case appointment.StatusPending:
		return ics.ObjectStatusTentative
	default:
		return ics.ObjectStatusCancelled
	}
}
