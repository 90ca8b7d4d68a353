// Package service implements the EventManager: validation, orchestration of
// event operations, reporting, and save/load through the repository layer.
package service

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-manager/internal/model"
	"github.com/Shivanand-hulikatti/event-manager/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventManager owns every event keyed by id and hands out ids that are never
// reused. It is not safe for concurrent use.
type EventManager struct {
	events map[int]*model.Event
	nextID int

	now  func() time.Time
	repo *repository.SnapshotRepository
	log  *zap.Logger
}

// Option configures an EventManager.
type Option func(*EventManager)

// WithClock sets the clock that decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(m *EventManager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *EventManager) { m.log = log }
}

// WithRepository sets the snapshot repository used by Save and Load.
func WithRepository(repo *repository.SnapshotRepository) Option {
	return func(m *EventManager) { m.repo = repo }
}

// NewEventManager constructs an empty EventManager.
func NewEventManager(opts ...Option) *EventManager {
	m := &EventManager{
		events: make(map[int]*model.Event),
		nextID: 1,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.repo == nil {
		m.repo = repository.NewSnapshotRepository(m.log)
	}
	return m
}

// NextID returns the id the next created event will get.
func (m *EventManager) NextID() int {
	return m.nextID
}

// AddEvent validates info and stores a new event under the next id.
func (m *EventManager) AddEvent(info model.EventInfo) (*model.Event, error) {
	today := model.DateOf(m.now())
	if info.Date.Before(today) {
		return nil, &model.ValidationError{Reason: model.ReasonDateInPast}
	}
	if info.Capacity <= 0 {
		return nil, &model.ValidationError{Reason: model.ReasonNonPositiveCapacity}
	}
	if info.Price.IsNegative() {
		return nil, &model.ValidationError{Reason: model.ReasonNegativePrice}
	}
	if err := info.Details.Validate(); err != nil {
		return nil, err
	}

	ev := model.NewEvent(m.nextID, info)
	m.events[ev.ID()] = ev
	m.nextID++

	m.log.Info("event created",
		zap.Int("event_id", ev.ID()),
		zap.String("name", ev.Name()),
		zap.Stringer("date", ev.Date()),
		zap.Int("capacity", ev.Capacity()),
	)
	return ev, nil
}

// compareEvents orders by date, then name, then id.
func compareEvents(a, b *model.Event) int {
	if c := a.Date().Compare(b.Date()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name(), b.Name()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

func (m *EventManager) filter(keep func(*model.Event) bool) []*model.Event {
	out := make([]*model.Event, 0, len(m.events))
	for _, ev := range m.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, compareEvents)
	return out
}

// ListEvents returns every event ordered by date and then name.
func (m *EventManager) ListEvents() []*model.Event {
	return m.filter(func(*model.Event) bool { return true })
}

// FindByCategory returns the events whose category matches, ignoring case.
func (m *EventManager) FindByCategory(category string) []*model.Event {
	return m.filter(func(ev *model.Event) bool {
		return strings.EqualFold(ev.Category(), category)
	})
}

// FindByDate returns the events held on date.
func (m *EventManager) FindByDate(date model.Date) []*model.Event {
	return m.filter(func(ev *model.Event) bool {
		return ev.Date().Equal(date)
	})
}

// EventsWithAvailability returns the events that still have free slots.
func (m *EventManager) EventsWithAvailability() []*model.Event {
	return m.filter(func(ev *model.Event) bool {
		return ev.FreeSlots() > 0
	})
}

// GetEvent returns the event with id, if any.
func (m *EventManager) GetEvent(id int) (*model.Event, bool) {
	ev, ok := m.events[id]
	return ev, ok
}

func (m *EventManager) mustGet(id int) (*model.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, &model.NotFoundError{ID: id}
	}
	return ev, nil
}

// Register adds a participant to an event. The bool is false when the event
// is full or the email is already registered.
func (m *EventManager) Register(eventID int, name, email string) (bool, error) {
	ev, err := m.mustGet(eventID)
	if err != nil {
		return false, err
	}
	ok := ev.RegisterParticipant(model.NewParticipant(name, email))
	m.log.Debug("register",
		zap.Int("event_id", eventID),
		zap.String("email", model.NormalizeEmail(email)),
		zap.Bool("ok", ok),
	)
	return ok, nil
}

// CancelRegistration removes a participant from an event. The bool is false
// when nobody is registered under email.
func (m *EventManager) CancelRegistration(eventID int, email string) (bool, error) {
	ev, err := m.mustGet(eventID)
	if err != nil {
		return false, err
	}
	ok := ev.CancelParticipant(email)
	m.log.Debug("cancel registration",
		zap.Int("event_id", eventID),
		zap.String("email", model.NormalizeEmail(email)),
		zap.Bool("ok", ok),
	)
	return ok, nil
}

// CheckIn marks a registered participant as present.
func (m *EventManager) CheckIn(eventID int, email string) (bool, error) {
	ev, err := m.mustGet(eventID)
	if err != nil {
		return false, err
	}
	ok := ev.CheckIn(email)
	m.log.Debug("check in",
		zap.Int("event_id", eventID),
		zap.String("email", model.NormalizeEmail(email)),
		zap.Bool("ok", ok),
	)
	return ok, nil
}

// TotalRegistered returns the number of participants of an event.
func (m *EventManager) TotalRegistered(eventID int) (int, error) {
	ev, err := m.mustGet(eventID)
	if err != nil {
		return 0, err
	}
	return ev.Registered(), nil
}

// Revenue returns participants times price for an event.
func (m *EventManager) Revenue(eventID int) (decimal.Decimal, error) {
	ev, err := m.mustGet(eventID)
	if err != nil {
		return decimal.Zero, err
	}
	return ev.Revenue(), nil
}

// RegistrationCount is one line of the registrations report.
type RegistrationCount struct {
	EventID    int    `json:"event_id"`
	Name       string `json:"name"`
	Registered int    `json:"registered"`
	Capacity   int    `json:"capacity"`
}

// RegistrationReport lists the registered count of every event in ListEvents
// order.
func (m *EventManager) RegistrationReport() []RegistrationCount {
	events := m.ListEvents()
	out := make([]RegistrationCount, 0, len(events))
	for _, ev := range events {
		out = append(out, RegistrationCount{
			EventID:    ev.ID(),
			Name:       ev.Name(),
			Registered: ev.Registered(),
			Capacity:   ev.Capacity(),
		})
	}
	return out
}

// Snapshot returns the manager's full state with events ordered by id.
func (m *EventManager) Snapshot() repository.Snapshot {
	s := repository.Snapshot{
		NextID: m.nextID,
		Events: make([]model.EventSnapshot, 0, len(m.events)),
	}
	for _, ev := range m.events {
		s.Events = append(s.Events, ev.Snapshot())
	}
	slices.SortFunc(s.Events, func(a, b model.EventSnapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return s
}

// Restore replaces the manager's state with s. Nothing changes if s is
// invalid.
func (m *EventManager) Restore(s repository.Snapshot) error {
	events := make(map[int]*model.Event, len(s.Events))
	nextID := max(s.NextID, 1)
	for _, es := range s.Events {
		if es.ID <= 0 {
			return fmt.Errorf("%w: non-positive event id %d", model.ErrInvalidSnapshot, es.ID)
		}
		if _, dup := events[es.ID]; dup {
			return fmt.Errorf("%w: duplicate event id %d", model.ErrInvalidSnapshot, es.ID)
		}
		ev, err := model.RestoreEvent(es)
		if err != nil {
			return err
		}
		events[es.ID] = ev
		nextID = max(nextID, es.ID+1)
	}

	m.events = events
	m.nextID = nextID
	return nil
}

// Save writes the manager's state to destination.
func (m *EventManager) Save(destination string) error {
	s := m.Snapshot()
	if err := m.repo.Save(destination, s); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	m.log.Info("events saved",
		zap.String("path", destination),
		zap.Int("events", len(s.Events)),
		zap.Int("next_id", s.NextID),
	)
	return nil
}

// Load replaces the manager's state with the snapshot at source. A missing
// source is not an error and leaves the state untouched.
func (m *EventManager) Load(source string) error {
	s, err := m.repo.Load(source)
	if err != nil {
		if errors.Is(err, repository.ErrNoSnapshot) {
			m.log.Info("no saved events, starting empty", zap.String("path", source))
			return nil
		}
		return fmt.Errorf("load events: %w", err)
	}
	if err := m.Restore(s); err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	m.log.Info("events loaded",
		zap.String("path", source),
		zap.Int("events", len(m.events)),
		zap.Int("next_id", m.nextID),
	)
	return nil
}
