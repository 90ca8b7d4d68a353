// Package model defines the core domain types for the event manager.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidSnapshot is returned when persisted event state breaks an invariant.
var ErrInvalidSnapshot = errors.New("invalid event snapshot")

// Participant is a registrant attached to one event.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewParticipant builds a participant with a normalised email.
func NewParticipant(name, email string) Participant {
	return Participant{Name: name, Email: NormalizeEmail(email)}
}

// NormalizeEmail lower-cases an email so it can be used as a uniqueness key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DetailsKind tags the variant payload carried by an event.
type DetailsKind string

const (
	DetailsNone     DetailsKind = ""
	DetailsTalk     DetailsKind = "talk"
	DetailsWorkshop DetailsKind = "workshop"
)

// Details is the per-kind payload: a speaker for talks, required materials for
// workshops, nothing otherwise.
type Details struct {
	Kind      DetailsKind `json:"kind"`
	Speaker   string      `json:"speaker,omitempty"`
	Materials string      `json:"materials,omitempty"`
}

// TalkDetails returns the payload of a talk given by speaker.
func TalkDetails(speaker string) Details {
	return Details{Kind: DetailsTalk, Speaker: speaker}
}

// WorkshopDetails returns the payload of a workshop that needs materials.
func WorkshopDetails(materials string) Details {
	return Details{Kind: DetailsWorkshop, Materials: materials}
}

// IsZero reports whether d carries no variant.
func (d Details) IsZero() bool {
	return d == Details{}
}

// Validate checks that the payload matches its kind.
func (d Details) Validate() error {
	switch d.Kind {
	case DetailsNone:
		if d.Speaker != "" || d.Materials != "" {
			return &ValidationError{Reason: "details payload without a kind"}
		}
	case DetailsTalk:
		if strings.TrimSpace(d.Speaker) == "" || d.Materials != "" {
			return &ValidationError{Reason: "talk details need a speaker only"}
		}
	case DetailsWorkshop:
		if strings.TrimSpace(d.Materials) == "" || d.Speaker != "" {
			return &ValidationError{Reason: "workshop details need materials only"}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown details kind %q", d.Kind)}
	}
	return nil
}

// EventInfo holds the fields fixed when an event is created.
type EventInfo struct {
	Name     string
	Date     Date
	Location string
	Capacity int
	Category string
	Price    decimal.Decimal
	Details  Details
}

// Event is a scheduled activity with finite capacity.
// Fields are reachable only through accessors; registration state changes only
// through RegisterParticipant, CancelParticipant and CheckIn.
type Event struct {
	id           int
	info         EventInfo
	participants []Participant
	checkedIn    map[string]struct{}
}

// NewEvent returns an empty event. Validation of info is the caller's job.
func NewEvent(id int, info EventInfo) *Event {
	return &Event{
		id:        id,
		info:      info,
		checkedIn: make(map[string]struct{}),
	}
}

func (e *Event) ID() int { return e.id }
func (e *Event) Name() string { return e.info.Name }
func (e *Event) Date() Date { return e.info.Date }
func (e *Event) Location() string { return e.info.Location }
func (e *Event) Capacity() int { return e.info.Capacity }
func (e *Event) Category() string { return e.info.Category }
func (e *Event) Price() decimal.Decimal { return e.info.Price }
func (e *Event) Details() Details { return e.info.Details }
func (e *Event) Info() EventInfo { return e.info }
func (e *Event) Registered() int { return len(e.participants) }

// Participants returns a copy of the participants in registration order.
func (e *Event) Participants() []Participant {
	return slices.Clone(e.participants)
}

// CheckedIn returns the checked-in emails, sorted.
func (e *Event) CheckedIn() []string {
	out := make([]string, 0, len(e.checkedIn))
	for email := range e.checkedIn {
		out = append(out, email)
	}
	slices.Sort(out)
	return out
}

// IsCheckedIn reports whether email has been checked in.
func (e *Event) IsCheckedIn(email string) bool {
	_, ok := e.checkedIn[NormalizeEmail(email)]
	return ok
}

// Participant looks up the registration held under email.
func (e *Event) Participant(email string) (Participant, bool) {
	i := e.indexOf(email)
	if i < 0 {
		return Participant{}, false
	}
	return e.participants[i], true
}

// FreeSlots returns the number of available seats.
func (e *Event) FreeSlots() int {
	return e.info.Capacity - len(e.participants)
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return len(e.participants) >= e.info.Capacity
}

func (e *Event) indexOf(email string) int {
	email = NormalizeEmail(email)
	return slices.IndexFunc(e.participants, func(p Participant) bool {
		return NormalizeEmail(p.Email) == email
	})
}

// RegisterParticipant appends p unless the event is full or p's email is
// already registered. It reports whether p was added.
func (e *Event) RegisterParticipant(p Participant) bool {
	if e.IsFull() || e.indexOf(p.Email) >= 0 {
		return false
	}
	e.participants = append(e.participants, p)
	return true
}

// CancelParticipant removes the participant with email and clears their
// check-in. It returns false if nobody is registered under email.
func (e *Event) CancelParticipant(email string) bool {
	i := e.indexOf(email)
	if i < 0 {
		return false
	}
	e.participants = slices.Delete(e.participants, i, i+1)
	delete(e.checkedIn, NormalizeEmail(email))
	return true
}

// CheckIn marks a registered participant as present. Repeating it is a no-op
// that still returns true.
func (e *Event) CheckIn(email string) bool {
	if e.indexOf(email) < 0 {
		return false
	}
	e.checkedIn[NormalizeEmail(email)] = struct{}{}
	return true
}

// Revenue is the number of participants times the ticket price.
func (e *Event) Revenue() decimal.Decimal {
	return e.info.Price.Mul(decimal.NewFromInt(int64(len(e.participants))))
}

// EventSnapshot is the plain-data form of an event used by persistence.
type EventSnapshot struct {
	ID int
	EventInfo
	Participants []Participant
	CheckedIn    []string
}

// Snapshot copies the event's full state.
func (e *Event) Snapshot() EventSnapshot {
	return EventSnapshot{
		ID:           e.id,
		EventInfo:    e.info,
		Participants: e.Participants(),
		CheckedIn:    e.CheckedIn(),
	}
}

// RestoreEvent rebuilds an event from a snapshot. The date is not re-checked
// against today; the structural invariants are.
func RestoreEvent(s EventSnapshot) (*Event, error) {
	if s.Capacity <= 0 {
		return nil, fmt.Errorf("%w: event %d: non-positive capacity", ErrInvalidSnapshot, s.ID)
	}
	if s.Price.IsNegative() {
		return nil, fmt.Errorf("%w: event %d: negative price", ErrInvalidSnapshot, s.ID)
	}
	if len(s.Participants) > s.Capacity {
		return nil, fmt.Errorf("%w: event %d: %d participants exceed capacity %d",
			ErrInvalidSnapshot, s.ID, len(s.Participants), s.Capacity)
	}
	if err := s.Details.Validate(); err != nil {
		return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidSnapshot, s.ID, err)
	}

	e := NewEvent(s.ID, s.EventInfo)
	for _, p := range s.Participants {
		p = NewParticipant(p.Name, p.Email)
		if !e.RegisterParticipant(p) {
			return nil, fmt.Errorf("%w: event %d: duplicate participant %s", ErrInvalidSnapshot, s.ID, p.Email)
		}
	}
	for _, email := range s.CheckedIn {
		if !e.CheckIn(email) {
			return nil, fmt.Errorf("%w: event %d: checked-in %s is not registered", ErrInvalidSnapshot, s.ID, email)
		}
	}
	return e, nil
}

// NumberText keeps a JSON number or string as raw text so it can be parsed
// with the same rules as console input.
type NumberText string

func (n *NumberText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = NumberText(s)
		return nil
	}
	*n = NumberText(strings.TrimSpace(string(b)))
	return nil
}

// CreateEventRequest is the payload for creating a new event.
// Capacity and Price accept numbers or numeric strings.
type CreateEventRequest struct {
	Name     string     `json:"name" validate:"required"`
	Date     string     `json:"date" validate:"required"`
	Location string     `json:"location"`
	Capacity NumberText `json:"capacity"`
	Category string     `json:"category"`
	Price    NumberText `json:"price"`
	Details  *Details   `json:"details,omitempty"`
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CheckInRequest is the payload for checking a participant in.
type CheckInRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
