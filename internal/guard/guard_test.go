package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/api/apitest"
	"github.com/ziadkadry99/devcompass/internal/session"
)

var testPatterns = []string{"/dashboard", "/dashboard/**", "/chat/**"}

func newRouter(t *testing.T, gate Gate) (http.Handler, *int) {
	t.Helper()
	g, err := New(gate, "/", testPatterns)
	if err != nil {
		t.Fatal(err)
	}
	served := 0
	r := chi.NewRouter()
	r.Use(g.Middleware)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("entry")) })
	r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		served++
		w.Write([]byte("dashboard"))
	})
	r.Get("/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		served++
		w.Write([]byte("chat"))
	})
	return r, &served
}

func startGate(t *testing.T, stored session.Identity, backend *apitest.Backend) *session.Gate {
	t.Helper()
	gate := session.NewGate(session.NewMemoryStore(stored), backend.Client())
	if err := gate.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(gate.Close)
	return gate
}

func TestNewRejectsBadPattern(t *testing.T) {
	if _, err := New(nil, "/", []string{"/chat/[a"}); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestProtects(t *testing.T) {
	g, err := New(nil, "/", testPatterns)
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]bool{
		"/":               false,
		"/dashboard":      true,
		"/dashboard/":     true,
		"/dashboard/x/y":  true,
		"/chat/42":        true,
		"/static/app.css": false,
	}
	for path, want := range tests {
		if got := g.Protects(path); got != want {
			t.Errorf("Protects(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestUnknownStoredIdentityIsRedirected(t *testing.T) {
	backend := apitest.New(t)
	gate := startGate(t, "7", backend)
	router, served := newRouter(t, gate)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("redirect wrote a body: %q", rec.Body.String())
	}
	if *served != 0 {
		t.Error("protected handler ran for an invalid session")
	}
	if gate.Identity() != "" {
		t.Errorf("identity = %q, want cleared", gate.Identity())
	}
}

func TestNoIdentityIsRedirectedWithoutNetwork(t *testing.T) {
	backend := apitest.New(t)
	gate := startGate(t, "", backend)
	router, served := newRouter(t, gate)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/1", nil))
	if rec.Code != http.StatusSeeOther || *served != 0 {
		t.Errorf("status = %d served = %d", rec.Code, *served)
	}
	if backend.TotalHits() != 0 {
		t.Error("guard caused a backend request")
	}
}

func TestValidSessionIsServed(t *testing.T) {
	backend := apitest.New(t)
	backend.AddRepo(api.RepoInfo{ID: "42", Name: "WSL"})
	gate := startGate(t, "42", backend)
	router, served := newRouter(t, gate)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "dashboard" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if *served != 1 {
		t.Errorf("served = %d, want 1", *served)
	}
}

func TestUnprotectedPathsPassThrough(t *testing.T) {
	backend := apitest.New(t)
	gate := startGate(t, "", backend)
	router, _ := newRouter(t, gate)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "entry" {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestGuardWaitsForPendingCheck(t *testing.T) {
	backend := apitest.New(t)
	backend.AddRepo(api.RepoInfo{ID: "42"})
	release := backend.HoldRepo("42")
	gate := startGate(t, "42", backend)
	router, served := newRouter(t, gate)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		done <- rec
	}()

	select {
	case <-done:
		t.Fatal("guard decided before revalidation finished")
	case <-time.After(30 * time.Millisecond):
	}
	release()

	rec := <-done
	if rec.Code != http.StatusOK || *served != 1 {
		t.Errorf("status = %d served = %d", rec.Code, *served)
	}
}

func TestGuardGivesUpWithClient(t *testing.T) {
	backend := apitest.New(t)
	backend.AddRepo(api.RepoInfo{ID: "42"})
	release := backend.HoldRepo("42")
	defer release()
	gate := startGate(t, "42", backend)
	router, served := newRouter(t, gate)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil).WithContext(ctx))
	if *served != 0 {
		t.Error("handler ran while revalidation was pending")
	}
}

func TestRequireGuardsEverything(t *testing.T) {
	backend := apitest.New(t)
	gate := startGate(t, "", backend)
	g, err := New(gate, "/home", nil)
	if err != nil {
		t.Fatal(err)
	}
	h := g.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/home" {
		t.Errorf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestWatchEvictsOnce(t *testing.T) {
	states := make(chan session.State, 4)
	states <- session.State{Identity: "1", Valid: true}
	states <- session.State{Identity: "2", Pending: true}
	states <- session.State{}
	states <- session.State{}

	evictions := 0
	Watch(context.Background(), states, func() { evictions++ })
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
}

func TestWatchStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Watch(ctx, make(chan session.State), func() { t.Error("evicted") })
}
