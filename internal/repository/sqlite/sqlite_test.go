package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/namefold"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestEvent(t *testing.T, db *DB, title string, capacity int) *model.Event {
	t.Helper()
	event := &model.Event{
		Title:    title,
		StartsAt: time.Now().Add(24 * time.Hour),
		EndsAt:   time.Now().Add(28 * time.Hour),
		Capacity: capacity,
		Location: "club",
	}
	if err := db.CreateEvent(context.Background(), event); err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

func register(t *testing.T, db *DB, eventID, name string) bool {
	t.Helper()
	ok, err := db.InsertIfCapacity(context.Background(), &model.Registration{
		EventID:    eventID,
		Name:       name,
		FoldedName: namefold.Fold(name),
	})
	if err != nil {
		t.Fatalf("InsertIfCapacity(%q) error = %v", name, err)
	}
	return ok
}

func TestEventCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	event := createTestEvent(t, db, "Friday cash game", 9)

	if event.ID == "" {
		t.Fatal("Create did not assign an ID")
	}
	if event.Status != model.EventScheduled {
		t.Errorf("Status = %q, want scheduled", event.Status)
	}

	got, err := db.GetEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Friday cash game" || got.Capacity != 9 {
		t.Errorf("got %+v", got)
	}
}

func TestEventGetByIDNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetEvent(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListOpenSkipsCancelled(t *testing.T) {
	db := newTestDB(t)
	keep := createTestEvent(t, db, "keep", 9)
	drop := createTestEvent(t, db, "drop", 9)

	if err := db.SetEventStatus(context.Background(), drop.ID, model.EventCancelled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	events, err := db.ListOpenEvents(context.Background())
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(events) != 1 || events[0].ID != keep.ID {
		t.Errorf("ListOpen() = %+v, want only %s", events, keep.ID)
	}
}

func TestInsertIfCapacityFillsToCapacity(t *testing.T) {
	db := newTestDB(t)
	event := createTestEvent(t, db, "small game", 2)

	if !register(t, db, event.ID, "Иван") {
		t.Fatal("first admission rejected")
	}
	if !register(t, db, event.ID, "Мария") {
		t.Fatal("second admission rejected")
	}
	if register(t, db, event.ID, "Пётр") {
		t.Error("admission over capacity accepted")
	}

	count, err := db.CountRegistrations(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("CountByEvent() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestInsertIfCapacityRejectsDuplicateFoldedName(t *testing.T) {
	db := newTestDB(t)
	event := createTestEvent(t, db, "game", 9)

	if !register(t, db, event.ID, "Иван") {
		t.Fatal("first admission rejected")
	}

	_, err := db.InsertIfCapacity(context.Background(), &model.Registration{
		EventID:    event.ID,
		Name:       "иван ",
		FoldedName: namefold.Fold("иван "),
	})
	if !errors.Is(err, apperror.ErrDuplicateName) {
		t.Errorf("error = %v, want ErrDuplicateName", err)
	}

	// The error names the registration that holds the seat, as stored, not
	// the spelling that just collided with it.
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want *apperror.AppError", err)
	}
	if appErr.Field != "Иван" {
		t.Errorf("conflicting name = %q, want %q", appErr.Field, "Иван")
	}
}

func TestInsertIfCapacityRejectsCancelledEvent(t *testing.T) {
	db := newTestDB(t)
	event := createTestEvent(t, db, "game", 9)

	if err := db.SetEventStatus(context.Background(), event.ID, model.EventCancelled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	if register(t, db, event.ID, "Иван") {
		t.Error("admission to a cancelled event accepted")
	}
}

func TestCapacityLoweredBelowCountBlocksOnlyNewAdmissions(t *testing.T) {
	db := newTestDB(t)
	event := createTestEvent(t, db, "game", 3)

	for _, name := range []string{"Иван", "Мария", "Пётр"} {
		if !register(t, db, event.ID, name) {
			t.Fatalf("admission of %q rejected", name)
		}
	}

	event.Capacity = 2
	if err := db.UpdateEvent(context.Background(), event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// Existing registrations survive; new ones are blocked.
	count, err := db.CountRegistrations(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("CountByEvent() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3 after capacity cut", count)
	}
	if register(t, db, event.ID, "Анна") {
		t.Error("admission accepted past a lowered capacity")
	}
}

func TestDeleteRegistration(t *testing.T) {
	db := newTestDB(t)
	event := createTestEvent(t, db, "game", 9)
	register(t, db, event.ID, "Иван")
	register(t, db, event.ID, "Мария")

	ok, err := db.DeleteRegistration(context.Background(), event.ID, namefold.Fold("ИВАН "))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !ok {
		t.Fatal("Delete() did not match the folded name")
	}

	// Second delete finds nothing and touches nothing.
	ok, err = db.DeleteRegistration(context.Background(), event.ID, namefold.Fold("Иван"))
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if ok {
		t.Error("second Delete() reported a match")
	}

	regs, err := db.ListRegistrations(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("ListByEvent() error = %v", err)
	}
	if len(regs) != 1 || regs[0].Name != "Мария" {
		t.Errorf("remaining registrations = %+v", regs)
	}
}

// TestConcurrentAdmissions hammers one event with more goroutines than seats.
// Exactly capacity admissions must succeed. Runs against a file-backed DB so
// every goroutine shares the same database through the pool.
func TestConcurrentAdmissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	db, err := New(path)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	const capacity = 5
	const attempts = 20

	event := &model.Event{
		Title:    "contested game",
		StartsAt: time.Now().Add(time.Hour),
		EndsAt:   time.Now().Add(2 * time.Hour),
		Capacity: capacity,
	}
	if err := db.CreateEvent(context.Background(), event); err != nil {
		t.Fatalf("creating event: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := db.InsertIfCapacity(context.Background(), &model.Registration{
				EventID:    event.ID,
				Name:       "Player " + string(rune('A'+n)),
				FoldedName: namefold.Fold("Player " + string(rune('A'+n))),
			})
			if err != nil {
				t.Errorf("InsertIfCapacity error: %v", err)
				results <- false
				return
			}
			results <- ok
		}(i)
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	if admitted != capacity {
		t.Errorf("admitted = %d, want exactly %d", admitted, capacity)
	}

	count, err := db.CountRegistrations(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("CountByEvent() error = %v", err)
	}
	if count != capacity {
		t.Errorf("stored count = %d, want %d", count, capacity)
	}
}

func TestPlayerUpsertAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, p := range []model.Player{
		{Name: "Иван", Rating: 4850},
		{Name: "Мария", Rating: 4720},
		{Name: "Пётр", Rating: 4630},
	} {
		player := p
		if err := db.UpsertPlayer(ctx, &player); err != nil {
			t.Fatalf("Upsert(%q) error = %v", p.Name, err)
		}
	}

	// Re-upserting under a different spelling of the same folded name
	// updates in place instead of duplicating.
	if err := db.UpsertPlayer(ctx, &model.Player{Name: "петр", Rating: 4700}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	players, err := db.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("List() returned %d players, want 3", len(players))
	}
	if players[0].Name != "Иван" {
		t.Errorf("roster not ordered by rating: first = %q", players[0].Name)
	}
	for _, p := range players {
		if namefold.Fold(p.Name) == "петр" {
			if p.Rating != 4700 || p.Name != "петр" {
				t.Errorf("upsert did not replace rating/spelling: %+v", p)
			}
		}
	}
}

func TestPlayerDeleteRemovesCard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertPlayer(ctx, &model.Player{Name: "Анна", Rating: 4580}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := db.UpsertCard(ctx, &model.PlayerCard{PlayerName: "Анна", FileID: "file-123"}); err != nil {
		t.Fatalf("UpsertCard() error = %v", err)
	}

	ok, err := db.DeletePlayer(ctx, namefold.Fold("Анна"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !ok {
		t.Fatal("Delete() reported no match")
	}

	_, err = db.GetCard(ctx, namefold.Fold("Анна"))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetCard after delete = %v, want ErrNotFound", err)
	}
}

func TestUserUpsertAndListIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertPlayer(ctx, &model.Player{Name: "noise", Rating: 1}); err != nil {
		t.Fatalf("player Upsert() error = %v", err)
	}

	u := &model.User{ID: 42, FirstName: "Ivan", Username: "ivan"}
	if err := db.UpsertUser(ctx, u); err != nil {
		t.Fatalf("user Upsert() error = %v", err)
	}
	// Second contact with a new username updates in place.
	if err := db.UpsertUser(ctx, &model.User{ID: 42, FirstName: "Ivan", Username: "ivan_p"}); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if err := db.UpsertUser(ctx, &model.User{ID: 43, FirstName: "Maria"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	ids, err := db.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ListIDs() = %v, want two ids", ids)
	}
}
