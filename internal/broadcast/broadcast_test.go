package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/transport"
)

type fakeUsers struct {
	ids []int64
	err error
}

func (f *fakeUsers) UpsertUser(_ context.Context, _ *model.User) error { return nil }

func (f *fakeUsers) ListUserIDs(_ context.Context) ([]int64, error) {
	return f.ids, f.err
}

type fakeRegistrants struct {
	ids map[string][]int64
}

func (f *fakeRegistrants) InsertIfCapacity(_ context.Context, _ *model.Registration) (bool, error) {
	return false, nil
}

func (f *fakeRegistrants) DeleteRegistration(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (f *fakeRegistrants) ListRegistrations(_ context.Context, _ string) ([]model.Registration, error) {
	return nil, nil
}

func (f *fakeRegistrants) CountRegistrations(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (f *fakeRegistrants) RegistrantUserIDs(_ context.Context, eventID string) ([]int64, error) {
	return f.ids[eventID], nil
}

// recordingSender records every delivery and fails the chat IDs in failFor.
type recordingSender struct {
	sent    []int64
	failFor map[int64]bool
}

func (s *recordingSender) Send(_ context.Context, chatID int64, _ transport.OutboundMessage) error {
	if s.failFor[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	s.sent = append(s.sent, chatID)
	return nil
}

func testDispatcher(users *fakeUsers, regs *fakeRegistrants, sender transport.Sender, delay time.Duration) *Dispatcher {
	return NewDispatcher(users, regs, sender, delay, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchEveryone(t *testing.T) {
	sender := &recordingSender{}
	d := testDispatcher(&fakeUsers{ids: []int64{1, 2, 3}}, &fakeRegistrants{}, sender, 0)

	report, err := d.Dispatch(context.Background(), Everyone(), transport.Text("привет"))
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 3, Failed: 0, Total: 3}, report)
	assert.Equal(t, []int64{1, 2, 3}, sender.sent)
}

func TestDispatchEventRegistrants(t *testing.T) {
	sender := &recordingSender{}
	regs := &fakeRegistrants{ids: map[string][]int64{"ev1": {10, 20}}}
	d := testDispatcher(&fakeUsers{ids: []int64{1, 2, 3}}, regs, sender, 0)

	report, err := d.Dispatch(context.Background(), EventRegistrants("ev1"), transport.Text("игра переносится"))
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 2, Failed: 0, Total: 2}, report)
	assert.Equal(t, []int64{10, 20}, sender.sent)
}

func TestDispatchFailureDoesNotAbort(t *testing.T) {
	sender := &recordingSender{failFor: map[int64]bool{3: true}}
	d := testDispatcher(&fakeUsers{ids: []int64{1, 2, 3, 4, 5}}, &fakeRegistrants{}, sender, 0)

	report, err := d.Dispatch(context.Background(), Everyone(), transport.Text("привет"))
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 4, Failed: 1, Total: 5}, report)
	assert.Equal(t, []int64{1, 2, 4, 5}, sender.sent)
}

func TestDispatchEmptyAudience(t *testing.T) {
	sender := &recordingSender{}
	d := testDispatcher(&fakeUsers{}, &fakeRegistrants{}, sender, 0)

	report, err := d.Dispatch(context.Background(), Everyone(), transport.Text("привет"))
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, sender.sent)
}

func TestDispatchResolveFailure(t *testing.T) {
	d := testDispatcher(&fakeUsers{err: errors.New("db locked")}, &fakeRegistrants{}, &recordingSender{}, 0)

	_, err := d.Dispatch(context.Background(), Everyone(), transport.Text("привет"))
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

func TestDispatchCancelledBetweenSends(t *testing.T) {
	sender := &recordingSender{}
	d := testDispatcher(&fakeUsers{ids: []int64{1, 2, 3}}, &fakeRegistrants{}, sender, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var report Report
	var err error
	go func() {
		defer close(done)
		report, err = d.Dispatch(ctx, Everyone(), transport.Text("привет"))
	}()

	// The first send has no delay; the run then blocks on the pacing timer.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 3, report.Total)
}

func TestDispatchPacing(t *testing.T) {
	sender := &recordingSender{}
	d := testDispatcher(&fakeUsers{ids: []int64{1, 2, 3}}, &fakeRegistrants{}, sender, 30*time.Millisecond)

	start := time.Now()
	report, err := d.Dispatch(context.Background(), Everyone(), transport.Text("привет"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sent)
	// Two inter-send gaps of 30ms each.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestReportString(t *testing.T) {
	r := Report{Sent: 4, Failed: 1, Total: 5}
	assert.Equal(t, "sent 4, failed 1, total 5", r.String())
}
