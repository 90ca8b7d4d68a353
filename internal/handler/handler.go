// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the EventManager.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/Shivanand-hulikatti/event-manager/internal/metrics"
	"github.com/Shivanand-hulikatti/event-manager/internal/model"
	"github.com/Shivanand-hulikatti/event-manager/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Persistence tells the handler where to save and whether to do it after
// every successful mutation.
type Persistence struct {
	File     string
	Autosave bool
}

// EventHandler holds all HTTP handlers for the event manager API.
// The EventManager is single-threaded; mu serialises every call into it.
type EventHandler struct {
	mu    sync.Mutex
	mgr   *service.EventManager
	store Persistence
	log   *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(mgr *service.EventManager, store Persistence, log *zap.Logger) *EventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &EventHandler{mgr: mgr, store: store, log: log}
	h.refreshGauges()
	return h
}

// ─── Response types ───────────────────────────────────────────────────────────

type eventResponse struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Date       model.Date      `json:"date"`
	Location   string          `json:"location"`
	Capacity   int             `json:"capacity"`
	Category   string          `json:"category"`
	Price      decimal.Decimal `json:"price"`
	Registered int             `json:"registered"`
	FreeSlots  int             `json:"free_slots"`
	Details    *model.Details  `json:"details,omitempty"`
}

func toEventResponse(ev *model.Event) eventResponse {
	resp := eventResponse{
		ID:         ev.ID(),
		Name:       ev.Name(),
		Date:       ev.Date(),
		Location:   ev.Location(),
		Capacity:   ev.Capacity(),
		Category:   ev.Category(),
		Price:      ev.Price(),
		Registered: ev.Registered(),
		FreeSlots:  ev.FreeSlots(),
	}
	if d := ev.Details(); !d.IsZero() {
		resp.Details = &d
	}
	return resp
}

func toEventResponses(events []*model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	return out
}

type registrationResponse struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CheckedIn bool   `json:"checked_in"`
}

type revenueResponse struct {
	EventID    int    `json:"event_id"`
	Registered int    `json:"registered"`
	Price      string `json:"price"`
	Revenue    string `json:"revenue"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// requestError renders a decode or validation failure as a 400.
func requestError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q check", fe.Field(), fe.Tag()))
		}
		writeError(w, http.StatusBadRequest, strings.Join(msgs, "; "))
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

// serviceError maps core error kinds to HTTP statuses and returns the
// metrics outcome.
func (h *EventHandler) serviceError(w http.ResponseWriter, err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return metrics.OutcomeInvalid
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return metrics.OutcomeNotFound
	default:
		h.log.Error("unexpected error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return metrics.OutcomeFailed
	}
}

func eventID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// refreshGauges publishes the event count and every event's registrations,
// so state loaded at startup is visible before the first write.
func (h *EventHandler) refreshGauges() {
	events := h.mgr.ListEvents()
	metrics.SetEvents(len(events))
	for _, ev := range events {
		metrics.SetRegistrations(strconv.Itoa(ev.ID()), ev.Registered())
	}
}

// afterMutation refreshes gauges and autosaves. Callers hold h.mu.
func (h *EventHandler) afterMutation(ev *model.Event) {
	metrics.SetEvents(len(h.mgr.ListEvents()))
	if ev != nil {
		metrics.SetRegistrations(strconv.Itoa(ev.ID()), ev.Registered())
	}
	if !h.store.Autosave {
		return
	}
	if err := h.mgr.Save(h.store.File); err != nil {
		h.log.Error("autosave failed", zap.String("path", h.store.File), zap.Error(err))
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.RecordOperation("add_event", metrics.OutcomeInvalid)
		requestError(w, err)
		return
	}

	info, err := service.ParseNewEvent(req.Name, req.Date, req.Location,
		string(req.Capacity), req.Category, string(req.Price))
	if err != nil {
		metrics.RecordOperation("add_event", h.serviceError(w, err))
		return
	}
	if req.Details != nil {
		info.Details = *req.Details
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ev, err := h.mgr.AddEvent(info)
	if err != nil {
		metrics.RecordOperation("add_event", h.serviceError(w, err))
		return
	}
	h.afterMutation(ev)
	metrics.RecordOperation("add_event", metrics.OutcomeOK)

	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

// ListEvents handles GET /events
// Optional ?category= and ?date= narrow the result.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	rawDate := strings.TrimSpace(r.URL.Query().Get("date"))

	var (
		date    model.Date
		hasDate bool
	)
	if rawDate != "" {
		d, err := model.ParseDate(rawDate)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		date, hasDate = d, true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var events []*model.Event
	switch {
	case hasDate:
		events = h.mgr.FindByDate(date)
		if category != "" {
			events = filterCategory(events, category)
		}
	case category != "":
		events = h.mgr.FindByCategory(category)
	default:
		events = h.mgr.ListEvents()
	}

	writeJSON(w, http.StatusOK, toEventResponses(events))
}

func filterCategory(events []*model.Event, category string) []*model.Event {
	out := events[:0:0]
	for _, ev := range events {
		if strings.EqualFold(ev.Category(), category) {
			out = append(out, ev)
		}
	}
	return out
}

// AvailableEvents handles GET /events/available
func (h *EventHandler) AvailableEvents(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeJSON(w, http.StatusOK, toEventResponses(h.mgr.EventsWithAvailability()))
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ev, ok := h.mgr.GetEvent(id)
	if !ok {
		h.serviceError(w, &model.NotFoundError{ID: id})
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// Register handles POST /events/{id}/registrations
// A refused registration is a 409 naming the reason: full or duplicate.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.RecordOperation("register", metrics.OutcomeInvalid)
		requestError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ok, err := h.mgr.Register(id, strings.TrimSpace(req.Name), req.Email)
	if err != nil {
		metrics.RecordOperation("register", h.serviceError(w, err))
		return
	}
	ev, _ := h.mgr.GetEvent(id)
	if !ok {
		metrics.RecordOperation("register", metrics.OutcomeRejected)
		if ev.IsFull() {
			writeError(w, http.StatusConflict, "event is full")
		} else {
			writeError(w, http.StatusConflict, "email already registered for this event")
		}
		return
	}
	h.afterMutation(ev)
	metrics.RecordOperation("register", metrics.OutcomeOK)

	writeJSON(w, http.StatusCreated, model.NewParticipant(strings.TrimSpace(req.Name), req.Email))
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ev, ok := h.mgr.GetEvent(id)
	if !ok {
		h.serviceError(w, &model.NotFoundError{ID: id})
		return
	}

	participants := ev.Participants()
	regs := make([]registrationResponse, 0, len(participants))
	for _, p := range participants {
		regs = append(regs, registrationResponse{
			Name:      p.Name,
			Email:     p.Email,
			CheckedIn: ev.IsCheckedIn(p.Email),
		})
	}
	writeJSON(w, http.StatusOK, regs)
}

// CancelRegistration handles DELETE /events/{id}/registrations/{email}
func (h *EventHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ok, err := h.mgr.CancelRegistration(id, email)
	if err != nil {
		metrics.RecordOperation("cancel_registration", h.serviceError(w, err))
		return
	}
	if !ok {
		metrics.RecordOperation("cancel_registration", metrics.OutcomeRejected)
		writeError(w, http.StatusNotFound, "participant not registered for this event")
		return
	}
	ev, _ := h.mgr.GetEvent(id)
	h.afterMutation(ev)
	metrics.RecordOperation("cancel_registration", metrics.OutcomeOK)

	w.WriteHeader(http.StatusNoContent)
}

// CheckIn handles POST /events/{id}/checkins
func (h *EventHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.CheckInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.RecordOperation("check_in", metrics.OutcomeInvalid)
		requestError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ok, err := h.mgr.CheckIn(id, req.Email)
	if err != nil {
		metrics.RecordOperation("check_in", h.serviceError(w, err))
		return
	}
	if !ok {
		metrics.RecordOperation("check_in", metrics.OutcomeRejected)
		writeError(w, http.StatusNotFound, "participant not registered for this event")
		return
	}
	ev, _ := h.mgr.GetEvent(id)
	h.afterMutation(ev)
	metrics.RecordOperation("check_in", metrics.OutcomeOK)

	p, _ := ev.Participant(req.Email)
	writeJSON(w, http.StatusOK, registrationResponse{
		Name:      p.Name,
		Email:     p.Email,
		CheckedIn: true,
	})
}

// Revenue handles GET /events/{id}/revenue
func (h *EventHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	registered, err := h.mgr.TotalRegistered(id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	revenue, err := h.mgr.Revenue(id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	ev, _ := h.mgr.GetEvent(id)

	writeJSON(w, http.StatusOK, revenueResponse{
		EventID:    id,
		Registered: registered,
		Price:      ev.Price().StringFixed(2),
		Revenue:    revenue.StringFixed(2),
	})
}

// RegistrationReport handles GET /reports/registrations
func (h *EventHandler) RegistrationReport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeJSON(w, http.StatusOK, h.mgr.RegistrationReport())
}

// Save handles POST /admin/save
func (h *EventHandler) Save(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.mgr.Save(h.store.File); err != nil {
		metrics.RecordOperation("save", h.serviceError(w, err))
		return
	}
	metrics.RecordOperation("save", metrics.OutcomeOK)
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": h.store.File})
}

// SaveNow writes the manager's state to the configured file. Used on shutdown.
func (h *EventHandler) SaveNow() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mgr.Save(h.store.File)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
