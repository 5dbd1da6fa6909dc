// Package principal identifies who is calling the scheduling API.
package principal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAdmin        Kind = "admin"
	KindPractitioner Kind = "practitioner"
	KindPatient      Kind = "patient"
)

var ErrInvalidPrincipal = errors.New("invalid principal")

// Principal is the authenticated caller. ID is the practitioner or patient
// the caller acts as and is uuid.Nil for administrators.
type Principal struct {
	Kind Kind
	ID   uuid.UUID
}

func Admin() Principal                    { return Principal{Kind: KindAdmin} }
func Practitioner(id uuid.UUID) Principal { return Principal{Kind: KindPractitioner, ID: id} }
func Patient(id uuid.UUID) Principal      { return Principal{Kind: KindPatient, ID: id} }

// New builds a principal from a role name and subject id.
func New(role string, id uuid.UUID) (Principal, error) {
	switch Kind(role) {
	case KindAdmin:
		return Admin(), nil
	case KindPractitioner, KindPatient:
		if id == uuid.Nil {
			return Principal{}, fmt.Errorf("%w: %s requires a subject id", ErrInvalidPrincipal, role)
		}
		return Principal{Kind: Kind(role), ID: id}, nil
	}
	return Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidPrincipal, role)
}

func (p Principal) IsAdmin() bool { return p.Kind == KindAdmin }

func (p Principal) String() string {
	if p.IsAdmin() {
		return string(p.Kind)
	}
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}

// ActsFor reports whether p may manage the practitioner's schedule.
func (p Principal) ActsFor(practitionerID uuid.UUID) bool {
	return p.IsAdmin() || (p.Kind == KindPractitioner && p.ID == practitionerID)
}

// CanBookFor reports whether p may book on behalf of the patient.
func (p Principal) CanBookFor(patientID uuid.UUID) bool {
	return p.IsAdmin() || (p.Kind == KindPatient && p.ID == patientID)
}

// CanSee reports whether p is a party to an appointment.
func (p Principal) CanSee(patientID, practitionerID uuid.UUID) bool {
	switch p.Kind {
	case KindAdmin:
		return true
	case KindPractitioner:
		return p.ID == practitionerID
	case KindPatient:
		return p.ID == patientID
	}
	return false
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
