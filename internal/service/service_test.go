package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-manager/internal/model"
	"github.com/Shivanand-hulikatti/event-manager/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2030, time.January, 15, 10, 0, 0, 0, time.UTC)

func today() model.Date { return model.DateOf(fixedNow) }

func newTestManager() *EventManager {
	return NewEventManager(WithClock(func() time.Time { return fixedNow }))
}

func info(name string, daysAhead, capacity int, category, price string) model.EventInfo {
	return model.EventInfo{
		Name:     name,
		Date:     today().AddDays(daysAhead),
		Location: "Main hall",
		Capacity: capacity,
		Category: category,
		Price:    decimal.RequireFromString(price),
	}
}

func mustAdd(t *testing.T, m *EventManager, in model.EventInfo) *model.Event {
	t.Helper()
	ev, err := m.AddEvent(in)
	require.NoError(t, err)
	return ev
}

func eventIDs(events []*model.Event) []int {
	ids := make([]int, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID())
	}
	return ids
}

func TestAddEvent_AssignsIncreasingIDs(t *testing.T) {
	m := newTestManager()

	a := mustAdd(t, m, info("A", 0, 1, "Tech", "0"))
	b := mustAdd(t, m, info("B", 5, 1, "Tech", "0"))
	c := mustAdd(t, m, info("C", 5, 1, "Tech", "0"))

	assert.Equal(t, []int{1, 2, 3}, []int{a.ID(), b.ID(), c.ID()})
	assert.Equal(t, 4, m.NextID())
}

func TestAddEvent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		in     model.EventInfo
		reason string
	}{
		{"past date", info("Old", -1, 10, "Tech", "10"), model.ReasonDateInPast},
		{"zero capacity", info("Zero", 1, 0, "Tech", "10"), model.ReasonNonPositiveCapacity},
		{"negative capacity", info("Neg", 1, -3, "Tech", "10"), model.ReasonNonPositiveCapacity},
		{"negative price", info("Cheap", 1, 3, "Tech", "-0.01"), model.ReasonNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()

			ev, err := m.AddEvent(tt.in)

			assert.Nil(t, ev)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
			assert.Empty(t, m.ListEvents(), "collection unchanged")
			assert.Equal(t, 1, m.NextID(), "no id consumed")
		})
	}
}

func TestAddEvent_TodayIsAllowed(t *testing.T) {
	m := newTestManager()

	// Late in the day still counts as today.
	m.now = func() time.Time { return fixedNow.Add(13*time.Hour + 59*time.Minute) }
	_, err := m.AddEvent(info("Tonight", 0, 1, "Tech", "0"))
	assert.NoError(t, err)
}

func TestAddEvent_Details(t *testing.T) {
	m := newTestManager()

	in := info("Talk", 1, 10, "Palestra", "30")
	in.Details = model.TalkDetails("Dra. Silvia")
	ev := mustAdd(t, m, in)
	assert.Equal(t, "Dra. Silvia", ev.Details().Speaker)

	bad := info("Broken", 1, 10, "Workshop", "30")
	bad.Details = model.Details{Kind: model.DetailsWorkshop}
	_, err := m.AddEvent(bad)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListEvents_OrderedByDateThenName(t *testing.T) {
	m := newTestManager()
	mustAdd(t, m, info("Zeta", 3, 1, "x", "0"))  // 1
	mustAdd(t, m, info("Alpha", 3, 1, "x", "0")) // 2
	mustAdd(t, m, info("Mid", 1, 1, "x", "0"))   // 3
	mustAdd(t, m, info("Alpha", 3, 1, "x", "0")) // 4, same date and name as 2

	assert.Equal(t, []int{3, 2, 4, 1}, eventIDs(m.ListEvents()))
}

func TestFindByCategoryAndDate(t *testing.T) {
	m := newTestManager()
	mustAdd(t, m, info("Go", 2, 1, "Tech", "0"))
	mustAdd(t, m, info("Ads", 2, 1, "Marketing", "0"))
	mustAdd(t, m, info("Rust", 4, 1, "tech", "0"))

	assert.Equal(t, []int{1, 3}, eventIDs(m.FindByCategory("TECH")))
	assert.Empty(t, m.FindByCategory("Music"))
	assert.NotNil(t, m.FindByCategory("Music"))

	assert.Equal(t, []int{2, 1}, eventIDs(m.FindByDate(today().AddDays(2))))
	assert.Empty(t, m.FindByDate(today().AddDays(30)))
}

func TestGetEvent(t *testing.T) {
	m := newTestManager()
	ev := mustAdd(t, m, info("Go", 2, 1, "Tech", "0"))

	got, ok := m.GetEvent(ev.ID())
	assert.True(t, ok)
	assert.Same(t, ev, got)

	got, ok = m.GetEvent(99)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestUnknownEvent_NotFound(t *testing.T) {
	m := newTestManager()

	calls := map[string]func() error{
		"register": func() error { _, err := m.Register(7, "A", "a@x.com"); return err },
		"cancel":   func() error { _, err := m.CancelRegistration(7, "a@x.com"); return err },
		"check_in": func() error { _, err := m.CheckIn(7, "a@x.com"); return err },
		"total":    func() error { _, err := m.TotalRegistered(7); return err },
		"revenue":  func() error { _, err := m.Revenue(7); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var nf *model.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, 7, nf.ID)
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestRegister_CapacityAndDuplicates(t *testing.T) {
	m := newTestManager()
	first := mustAdd(t, m, info("First", 1, 3, "Tech", "0"))
	second := mustAdd(t, m, info("Second", 1, 3, "Tech", "0"))

	ok, err := m.Register(first.ID(), "Ana", "Ana@X.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ana@x.com", first.Participants()[0].Email, "email is normalised")

	ok, err = m.Register(first.ID(), "Ana twin", "ana@x.COM")
	require.NoError(t, err)
	assert.False(t, ok, "same email twice in one event")

	ok, err = m.Register(second.ID(), "Ana", "ana@x.com")
	require.NoError(t, err)
	assert.True(t, ok, "same email in another event")

	for _, email := range []string{"b@x.com", "c@x.com", "d@x.com", "e@x.com"} {
		_, err := m.Register(first.ID(), "P", email)
		require.NoError(t, err)
		assert.LessOrEqual(t, first.Registered(), first.Capacity())
	}
	total, err := m.TotalRegistered(first.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestCancelRegistration_ClearsCheckIn(t *testing.T) {
	m := newTestManager()
	ev := mustAdd(t, m, info("Conf", 1, 2, "Tech", "10"))

	_, err := m.Register(ev.ID(), "A", "a@x.com")
	require.NoError(t, err)
	ok, err := m.CheckIn(ev.ID(), "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.CancelRegistration(ev.ID(), "A@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, ev.IsCheckedIn("a@x.com"))

	ok, err = m.CheckIn(ev.ID(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok, "check-in fails until re-registered")

	ok, err = m.CancelRegistration(ev.ID(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Register(ev.ID(), "A", "a@x.com")
	require.NoError(t, err)
	ok, err = m.CheckIn(ev.ID(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckIn_Idempotent(t *testing.T) {
	m := newTestManager()
	ev := mustAdd(t, m, info("Conf", 1, 2, "Tech", "10"))
	_, err := m.Register(ev.ID(), "A", "a@x.com")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := m.CheckIn(ev.ID(), "a@x.com")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, []string{"a@x.com"}, ev.CheckedIn())
}

func TestConfScenario(t *testing.T) {
	m := newTestManager()
	ev := mustAdd(t, m, info("Conf", 10, 2, "Tech", "100.0"))
	id := ev.ID()

	register := func(name, email string) bool {
		t.Helper()
		ok, err := m.Register(id, name, email)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, register("A", "a@x.com"))
	assert.True(t, register("B", "b@x.com"))
	assert.False(t, register("C", "c@x.com"), "full")

	revenue, err := m.Revenue(id)
	require.NoError(t, err)
	assert.True(t, revenue.Equal(decimal.NewFromInt(200)), "revenue = %s", revenue)

	ok, err := m.CancelRegistration(id, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, register("C", "c@x.com"), "slot freed")

	revenue, err = m.Revenue(id)
	require.NoError(t, err)
	assert.Equal(t, "200.00", revenue.StringFixed(2))
}

func TestEventsWithAvailabilityAndReport(t *testing.T) {
	m := newTestManager()
	full := mustAdd(t, m, info("Full", 1, 1, "x", "0"))
	open := mustAdd(t, m, info("Open", 2, 2, "x", "0"))
	_, err := m.Register(full.ID(), "A", "a@x.com")
	require.NoError(t, err)
	_, err = m.Register(open.ID(), "A", "a@x.com")
	require.NoError(t, err)

	assert.Equal(t, []int{open.ID()}, eventIDs(m.EventsWithAvailability()))
	assert.Equal(t, []RegistrationCount{
		{EventID: full.ID(), Name: "Full", Registered: 1, Capacity: 1},
		{EventID: open.ID(), Name: "Open", Registered: 1, Capacity: 2},
	}, m.RegistrationReport())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	m := newTestManager()

	talk := info("Talk", 3, 3, "Palestra", "19.90")
	talk.Details = model.TalkDetails("Ana")
	a := mustAdd(t, m, talk)
	b := mustAdd(t, m, info("Lab", 1, 2, "Workshop", "0"))
	c := mustAdd(t, m, info("Dropped", 1, 2, "x", "5"))
	_ = c

	for _, email := range []string{"z@x.com", "m@x.com", "a@x.com"} {
		_, err := m.Register(a.ID(), "P "+email, email)
		require.NoError(t, err)
	}
	_, err := m.CheckIn(a.ID(), "m@x.com")
	require.NoError(t, err)
	_, err = m.CheckIn(a.ID(), "a@x.com")
	require.NoError(t, err)
	_, err = m.Register(b.ID(), "Solo", "solo@x.com")
	require.NoError(t, err)

	require.NoError(t, m.Save(path))

	loaded := newTestManager()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, m.NextID(), loaded.NextID())
	require.Equal(t, eventIDs(m.ListEvents()), eventIDs(loaded.ListEvents()))
	for _, want := range m.ListEvents() {
		got, ok := loaded.GetEvent(want.ID())
		require.True(t, ok)
		assert.Equal(t, want.Name(), got.Name())
		assert.True(t, want.Date().Equal(got.Date()))
		assert.Equal(t, want.Location(), got.Location())
		assert.Equal(t, want.Capacity(), got.Capacity())
		assert.Equal(t, want.Category(), got.Category())
		assert.True(t, want.Price().Equal(got.Price()))
		assert.Equal(t, want.Details(), got.Details())
		assert.Equal(t, want.Participants(), nilIfEmpty(got.Participants()))
		assert.Equal(t, want.CheckedIn(), got.CheckedIn())
		assert.True(t, want.Revenue().Equal(got.Revenue()))
	}

	fresh := mustAdd(t, loaded, info("After reload", 1, 1, "x", "0"))
	assert.Equal(t, 4, fresh.ID(), "ids are never reused after a reload")
}

func nilIfEmpty(ps []model.Participant) []model.Participant {
	if len(ps) == 0 {
		return nil
	}
	return ps
}

func TestLoad_MissingFileIsNoop(t *testing.T) {
	m := newTestManager()
	ev := mustAdd(t, m, info("Keep", 1, 1, "x", "0"))

	require.NoError(t, m.Load(filepath.Join(t.TempDir(), "first-run.json")))

	got, ok := m.GetEvent(ev.ID())
	assert.True(t, ok)
	assert.Same(t, ev, got)
	assert.Equal(t, 2, m.NextID())
}

func TestLoad_CorruptFileKeepsState(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager()
	mustAdd(t, m, info("Keep", 1, 1, "x", "0"))

	overCapacity := `{"events": [{"id": 1, "date": "2030-01-01", "capacity": 1, "price": 0,
		"participants": [{"name": "A", "email": "a@x.com"}, {"name": "B", "email": "b@x.com"}]}]}`
	tests := map[string]string{
		"malformed":     `{"next_id": 3, "events": [`,
		"duplicate id":  `{"events": [{"id": 1, "date": "2030-01-01", "capacity": 1, "price": 0}, {"id": 1, "date": "2030-01-01", "capacity": 1, "price": 0}]}`,
		"zero id":       `{"events": [{"id": 0, "date": "2030-01-01", "capacity": 1, "price": 0}]}`,
		"over capacity": overCapacity,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "corrupt.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			assert.Error(t, m.Load(path))
			assert.Len(t, m.ListEvents(), 1)
			assert.Equal(t, 2, m.NextID())
		})
	}
}

func TestLoad_NextIDDefaultsAndIsRaised(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	body := `{"events": [
		{"id": 5, "name": "Old", "date": "2020-02-02", "location": "L", "capacity": 2,
		 "category": "C", "price": 9.5,
		 "participants": [{"name": "A", "email": "a@x.com"}],
		 "checked_in": ["A@X.com", "a@x.com"]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m := newTestManager()
	require.NoError(t, m.Load(path))

	assert.Equal(t, 6, m.NextID(), "next_id never collides with a stored id")
	ev, ok := m.GetEvent(5)
	require.True(t, ok)
	assert.Equal(t, "2020-02-02", ev.Date().String(), "past dates survive a load")
	assert.Equal(t, []string{"a@x.com"}, ev.CheckedIn())
}

func TestLoad_NormalisesParticipantEmails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	body := `{"next_id": 2, "events": [
		{"id": 1, "name": "Conf", "date": "2030-02-01", "location": "L", "capacity": 2,
		 "category": "C", "price": 1,
		 "participants": [{"name": "A", "email": " A@X.com "}],
		 "checked_in": ["a@x.com"]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m := newTestManager()
	require.NoError(t, m.Load(path))

	ev, ok := m.GetEvent(1)
	require.True(t, ok)
	assert.Equal(t, []model.Participant{{Name: "A", Email: "a@x.com"}}, ev.Participants())
	assert.Equal(t, []string{"a@x.com"}, ev.CheckedIn())
	assert.Equal(t, []model.Participant{{Name: "A", Email: "a@x.com"}}, m.Snapshot().Events[0].Participants)

	ok, err := m.Register(1, "A again", "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok, "loaded email still blocks a duplicate")
}

func TestRestore_ReplacesState(t *testing.T) {
	m := newTestManager()
	mustAdd(t, m, info("Gone", 1, 1, "x", "0"))

	require.NoError(t, m.Restore(repository.Snapshot{NextID: 10}))
	assert.Empty(t, m.ListEvents())
	assert.Equal(t, 10, m.NextID())
}
