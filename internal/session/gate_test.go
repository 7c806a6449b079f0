package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/api/apitest"
	"github.com/ziadkadry99/devcompass/internal/db"
)

// stubValidator blocks each Exists call until a result is delivered for
// that identity.
type stubValidator struct {
	mu      sync.Mutex
	results map[string]chan error
	calls   []string
}

func newStubValidator() *stubValidator {
	return &stubValidator{results: map[string]chan error{}}
}

func (s *stubValidator) ch(id string) chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.results[id]
	if !ok {
		ch = make(chan error, 1)
		s.results[id] = ch
	}
	return ch
}

func (s *stubValidator) Exists(ctx context.Context, id string) error {
	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.mu.Unlock()
	select {
	case err := <-s.ch(id):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubValidator) deliver(id string, err error) { s.ch(id) <- err }

func setupSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLStore(database)
}

func settle(t *testing.T, g *Gate) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := g.Settled(ctx)
	if err != nil {
		t.Fatalf("Settled: %v", err)
	}
	return st
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := setupSQLStore(t)
	ctx := context.Background()

	id, err := store.Load(ctx)
	if err != nil || !id.IsZero() {
		t.Fatalf("empty Load = %q, %v", id, err)
	}
	if err := store.Save(ctx, "1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "2"); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if id, _ := store.Load(ctx); id != "2" {
		t.Errorf("Load = %q, want 2", id)
	}
	if err := store.Erase(ctx); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if id, _ := store.Load(ctx); !id.IsZero() {
		t.Errorf("Load after Erase = %q", id)
	}
}

func TestStartWithoutIdentitySkipsNetwork(t *testing.T) {
	backend := apitest.New(t)
	g := NewGate(setupSQLStore(t), backend.Client())
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := g.Snapshot()
	if st.Valid || st.Pending || !st.Identity.IsZero() {
		t.Errorf("state = %+v, want empty", st)
	}
	if backend.TotalHits() != 0 {
		t.Errorf("expected no backend calls, got %d", backend.TotalHits())
	}
}

func TestStartRevalidatesStoredIdentity(t *testing.T) {
	backend := apitest.New(t)
	backend.AddRepo(api.RepoInfo{ID: "7", RepoURL: "https://github.com/a/b"})
	store := NewMemoryStore("7")
	g := NewGate(store, backend.Client())
	defer g.Close()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := settle(t, g)
	if !st.Valid || st.Identity != "7" {
		t.Errorf("state = %+v, want valid 7", st)
	}
	if saves, erases := store.Counts(); saves != 1 || erases != 0 {
		t.Errorf("saves=%d erases=%d, want a single refresh", saves, erases)
	}
}

func TestStartDropsUnknownIdentity(t *testing.T) {
	backend := apitest.New(t)
	store := setupSQLStore(t)
	ctx := context.Background()
	store.Save(ctx, "7")

	g := NewGate(store, backend.Client())
	defer g.Close()
	g.Start(ctx)

	st := settle(t, g)
	if st.Valid || !st.Identity.IsZero() {
		t.Errorf("state = %+v, want cleared", st)
	}
	if id, _ := store.Load(ctx); !id.IsZero() {
		t.Errorf("persisted identity = %q, want erased", id)
	}
	if backend.Hits("GET /repo") != 1 {
		t.Errorf("expected one validation request, got %d", backend.Hits("GET /repo"))
	}
}

func TestNetworkFailureDropsIdentity(t *testing.T) {
	backend := apitest.New(t)
	client := backend.Client()
	backend.Server.Close()

	store := NewMemoryStore("7")
	g := NewGate(store, client)
	defer g.Close()
	g.Start(context.Background())

	st := settle(t, g)
	if st.Valid || !st.Identity.IsZero() {
		t.Errorf("state = %+v, want cleared", st)
	}
	if id, _ := store.Load(context.Background()); !id.IsZero() {
		t.Errorf("persisted identity = %q, want erased", id)
	}
}

func TestAdoptIsNotOptimistic(t *testing.T) {
	v := newStubValidator()
	store := NewMemoryStore("")
	g := NewGate(store, v)
	defer g.Close()
	ctx := context.Background()

	if err := g.Adopt(ctx, "42"); err != nil {
		t.Fatalf("Adopt: %v", err)
	}
	st := g.Snapshot()
	if st.Valid || !st.Pending || st.Identity != "42" {
		t.Fatalf("state before validation = %+v", st)
	}
	if id, _ := store.Load(ctx); id != "42" {
		t.Errorf("persisted identity = %q, want 42", id)
	}

	v.deliver("42", nil)
	st = settle(t, g)
	if !st.Valid || st.Identity != "42" {
		t.Errorf("state after validation = %+v", st)
	}
}

func TestAdoptFailureIsIdempotent(t *testing.T) {
	backend := apitest.New(t)
	store := setupSQLStore(t)
	g := NewGate(store, backend.Client())
	defer g.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g.Adopt(ctx, "99")
		st := settle(t, g)
		if st.Valid || !st.Identity.IsZero() {
			t.Fatalf("attempt %d: state = %+v, want cleared", i, st)
		}
		if id, _ := store.Load(ctx); !id.IsZero() {
			t.Fatalf("attempt %d: persisted identity = %q", i, id)
		}
	}
}

func TestStaleValidationIsDiscarded(t *testing.T) {
	v := newStubValidator()
	g := NewGate(NewMemoryStore(""), v)
	defer g.Close()
	ctx := context.Background()

	g.Adopt(ctx, "A")
	g.Adopt(ctx, "B")

	v.deliver("B", nil)
	st := settle(t, g)
	if !st.Valid || st.Identity != "B" {
		t.Fatalf("state = %+v, want valid B", st)
	}

	// The slow answer for A arrives last and must not win.
	v.deliver("A", errors.New("not found"))
	g.wg.Wait()

	st = g.Snapshot()
	if !st.Valid || st.Identity != "B" {
		t.Errorf("state after stale result = %+v, want valid B", st)
	}
}

func TestClearDiscardsPendingValidation(t *testing.T) {
	v := newStubValidator()
	store := NewMemoryStore("")
	g := NewGate(store, v)
	defer g.Close()
	ctx := context.Background()

	g.Adopt(ctx, "A")
	if err := g.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	v.deliver("A", nil)
	g.wg.Wait()

	st := g.Snapshot()
	if st.Valid || !st.Identity.IsZero() || st.Pending {
		t.Errorf("state = %+v, want cleared", st)
	}
	if id, _ := store.Load(ctx); !id.IsZero() {
		t.Errorf("persisted identity = %q, want erased", id)
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	v := newStubValidator()
	g := NewGate(NewMemoryStore(""), v)
	defer g.Close()

	updates, stop := g.Subscribe()
	defer stop()

	if st := <-updates; st.Valid {
		t.Fatalf("initial state = %+v", st)
	}

	g.Adopt(context.Background(), "5")
	v.deliver("5", nil)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-updates:
			if st.Valid {
				if st.Identity != "5" {
					t.Fatalf("valid state for %q", st.Identity)
				}
				return
			}
		case <-deadline:
			t.Fatal("never observed a valid state")
		}
	}
}

func TestSettledHonoursContext(t *testing.T) {
	v := newStubValidator()
	g := NewGate(NewMemoryStore(""), v)
	defer g.Close()
	g.Adopt(context.Background(), "slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := g.Settled(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if st.Valid {
		t.Error("pending identity reported as valid")
	}
}
