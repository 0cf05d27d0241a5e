package admission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/namefold"
)

// fakeEvents is an in-memory EventRepository.
type fakeEvents struct {
	events map[string]*model.Event
}

func newFakeEvents(events ...*model.Event) *fakeEvents {
	f := &fakeEvents{events: make(map[string]*model.Event)}
	for _, ev := range events {
		f.events[ev.ID] = ev
	}
	return f
}

func (f *fakeEvents) CreateEvent(_ context.Context, event *model.Event) error {
	f.events[event.ID] = event
	return nil
}

func (f *fakeEvents) GetEvent(_ context.Context, id string) (*model.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	copied := *ev
	return &copied, nil
}

func (f *fakeEvents) ListOpenEvents(_ context.Context) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range f.events {
		if ev.IsOpen() {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) UpdateEvent(_ context.Context, event *model.Event) error {
	if _, ok := f.events[event.ID]; !ok {
		return apperror.NotFound("event", event.ID)
	}
	copied := *event
	f.events[event.ID] = &copied
	return nil
}

func (f *fakeEvents) SetEventStatus(_ context.Context, id, status string) error {
	ev, ok := f.events[id]
	if !ok {
		return apperror.NotFound("event", id)
	}
	ev.Status = status
	return nil
}

// fakeRegs is an in-memory RegistrationRepository enforcing the same
// capacity and uniqueness rules as the sqlite implementation.
type fakeRegs struct {
	events *fakeEvents
	regs   []model.Registration
	err    error // forced error for failure-path tests
}

func (f *fakeRegs) InsertIfCapacity(_ context.Context, reg *model.Registration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.regs {
		if r.EventID == reg.EventID && r.FoldedName == reg.FoldedName {
			return false, apperror.DuplicateName(reg.Name, r.Name)
		}
	}
	ev, ok := f.events.events[reg.EventID]
	if !ok || !ev.IsOpen() {
		return false, nil
	}
	count := 0
	for _, r := range f.regs {
		if r.EventID == reg.EventID {
			count++
		}
	}
	if count >= ev.Capacity {
		return false, nil
	}
	reg.ID = xid.New().String()
	f.regs = append(f.regs, *reg)
	return true, nil
}

func (f *fakeRegs) DeleteRegistration(_ context.Context, eventID, foldedName string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for i, r := range f.regs {
		if r.EventID == eventID && r.FoldedName == foldedName {
			f.regs = append(f.regs[:i], f.regs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegs) ListRegistrations(_ context.Context, eventID string) ([]model.Registration, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Registration
	for _, r := range f.regs {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegs) CountRegistrations(_ context.Context, eventID string) (int, error) {
	regs, err := f.ListRegistrations(context.Background(), eventID)
	return len(regs), err
}

func (f *fakeRegs) RegistrantUserIDs(_ context.Context, eventID string) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, r := range f.regs {
		if r.EventID == eventID && r.UserID != 0 && !seen[r.UserID] {
			seen[r.UserID] = true
			out = append(out, r.UserID)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent(capacity int) *model.Event {
	return &model.Event{
		ID:       xid.New().String(),
		Title:    "Пятничная игра",
		Capacity: capacity,
		Status:   model.EventScheduled,
	}
}

func newTestController(events ...*model.Event) (*Controller, *fakeEvents, *fakeRegs) {
	fe := newFakeEvents(events...)
	fr := &fakeRegs{events: fe}
	return NewController(fe, fr, testLogger()), fe, fr
}

func TestAdmitSuccess(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, _ := newTestController(ev)

	conf, err := ctrl.Admit(context.Background(), ev.ID, "  Иван Петров  ", 42)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, conf.Event.ID)
	assert.Equal(t, 1, conf.Registered)
}

func TestAdmitValidation(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, _ := newTestController(ev)

	tests := []struct {
		name    string
		rawName string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"too long", strings.Repeat("я", MaxNameLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.Admit(context.Background(), ev.ID, tt.rawName, 0)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestAdmitUnknownEvent(t *testing.T) {
	ctrl, _, _ := newTestController()

	_, err := ctrl.Admit(context.Background(), "missing", "Иван", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAdmitCancelledEvent(t *testing.T) {
	ev := testEvent(5)
	ev.Status = model.EventCancelled
	ctrl, _, _ := newTestController(ev)

	_, err := ctrl.Admit(context.Background(), ev.ID, "Иван", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAdmitDuplicateFoldedName(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, _ := newTestController(ev)

	_, err := ctrl.Admit(context.Background(), ev.ID, "Пётр Семёнов", 1)
	require.NoError(t, err)

	// Different spelling, same person after folding.
	_, err = ctrl.Admit(context.Background(), ev.ID, "ПЕТР  СЕМЕНОВ", 2)
	require.ErrorIs(t, err, apperror.ErrDuplicateName)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Пётр Семёнов", appErr.Field)
}

func TestAdmitCapacityExceeded(t *testing.T) {
	ev := testEvent(2)
	ctrl, _, _ := newTestController(ev)

	_, err := ctrl.Admit(context.Background(), ev.ID, "Иван", 1)
	require.NoError(t, err)
	_, err = ctrl.Admit(context.Background(), ev.ID, "Мария", 2)
	require.NoError(t, err)

	_, err = ctrl.Admit(context.Background(), ev.ID, "Олег", 3)
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)
}

func TestAdmitStoreFailure(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, regs := newTestController(ev)
	regs.err = errors.New("disk I/O error")

	_, err := ctrl.Admit(context.Background(), ev.ID, "Иван", 0)
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

func TestWithdraw(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, regs := newTestController(ev)

	_, err := ctrl.Admit(context.Background(), ev.ID, "Иван Петров", 0)
	require.NoError(t, err)

	// Withdraw by a differently-spelled but equivalent name.
	err = ctrl.Withdraw(context.Background(), ev.ID, "иван петров")
	require.NoError(t, err)
	assert.Empty(t, regs.regs)

	// Second withdrawal finds nothing.
	err = ctrl.Withdraw(context.Background(), ev.ID, "Иван Петров")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestWithdrawFreesSeat(t *testing.T) {
	ev := testEvent(1)
	ctrl, _, _ := newTestController(ev)

	_, err := ctrl.Admit(context.Background(), ev.ID, "Иван", 0)
	require.NoError(t, err)
	_, err = ctrl.Admit(context.Background(), ev.ID, "Мария", 0)
	require.ErrorIs(t, err, apperror.ErrCapacityExceeded)

	require.NoError(t, ctrl.Withdraw(context.Background(), ev.ID, "Иван"))

	_, err = ctrl.Admit(context.Background(), ev.ID, "Мария", 0)
	assert.NoError(t, err)
}

func TestSetCapacityValidation(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, _ := newTestController(ev)

	assert.ErrorIs(t, ctrl.SetCapacity(context.Background(), ev.ID, 0), apperror.ErrValidation)
	assert.ErrorIs(t, ctrl.SetCapacity(context.Background(), ev.ID, -3), apperror.ErrValidation)
}

func TestSetCapacityBelowCountKeepsRegistrations(t *testing.T) {
	ev := testEvent(5)
	ctrl, events, regs := newTestController(ev)

	for _, name := range []string{"Иван", "Мария", "Олег"} {
		_, err := ctrl.Admit(context.Background(), ev.ID, name, 0)
		require.NoError(t, err)
	}

	require.NoError(t, ctrl.SetCapacity(context.Background(), ev.ID, 2))

	assert.Equal(t, 2, events.events[ev.ID].Capacity)
	assert.Len(t, regs.regs, 3, "existing registrations survive the cap")

	_, err := ctrl.Admit(context.Background(), ev.ID, "Пётр", 0)
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)
}

func TestRoster(t *testing.T) {
	ev := testEvent(5)
	ctrl, _, _ := newTestController(ev)

	_, err := ctrl.Admit(context.Background(), ev.ID, "Иван", 0)
	require.NoError(t, err)
	_, err = ctrl.Admit(context.Background(), ev.ID, "Мария", 0)
	require.NoError(t, err)

	got, regs, err := ctrl.Roster(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	require.Len(t, regs, 2)
	assert.Equal(t, "Иван", regs[0].Name)
	assert.Equal(t, namefold.Fold("Иван"), regs[0].FoldedName)
}
