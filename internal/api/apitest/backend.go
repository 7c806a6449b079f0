// Package apitest provides an in-process fake of the analysis backend for
// tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/devcompass/internal/api"
)

// Backend is a scriptable fake of the DevCompass backend API.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	repos     map[string]api.RepoInfo
	order     []string
	statuses  []api.StatusResponse
	setupURLs []string
	hits      map[string]int
	gates     map[string]chan struct{}

	failSetup  bool
	failStatus int
	failDelete bool

	diagrams map[string]string
	podcasts map[string]string
	history  map[string][]api.ChatHistoryItem
}

// New starts a fake backend that is shut down when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		repos:    map[string]api.RepoInfo{},
		hits:     map[string]int{},
		gates:    map[string]chan struct{}{},
		diagrams: map[string]string{},
		podcasts: map[string]string{},
		history:  map[string][]api.ChatHistoryItem{},
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the API root of the fake backend.
func (b *Backend) URL() string { return b.Server.URL + "/api" }

// Client returns an api.Client pointed at the fake backend.
func (b *Backend) Client() *api.Client { return api.NewClient(b.URL(), b.Server.Client()) }

// AddRepo registers a repository record.
func (b *Backend) AddRepo(r api.RepoInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := string(r.ID)
	if _, ok := b.repos[id]; !ok {
		b.order = append(b.order, id)
	}
	b.repos[id] = r
}

// RemoveRepo deletes a repository record without going through the API.
func (b *Backend) RemoveRepo(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

// QueueStatus appends responses served by GET /status, one per call. The
// last queued response keeps being served once the queue drains.
func (b *Backend) QueueStatus(statuses ...api.StatusResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, statuses...)
}

// HoldRepo makes GET /repo/{id} block until the returned release func is
// called.
func (b *Backend) HoldRepo(id string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// FailSetup makes POST /setup answer 500 while on is true.
func (b *Backend) FailSetup(on bool) {
	b.mu.Lock()
	b.failSetup = on
	b.mu.Unlock()
}

// FailStatus makes the next n GET /status calls answer 500.
func (b *Backend) FailStatus(n int) {
	b.mu.Lock()
	b.failStatus = n
	b.mu.Unlock()
}

// FailDelete makes DELETE /repo/{id} answer 500 while on is true.
func (b *Backend) FailDelete(on bool) {
	b.mu.Lock()
	b.failDelete = on
	b.mu.Unlock()
}

// SetDiagram sets the graph script served for a repository.
func (b *Backend) SetDiagram(id, script string) {
	b.mu.Lock()
	b.diagrams[id] = script
	b.mu.Unlock()
}

// SetPodcast sets the podcast script served for a repository.
func (b *Backend) SetPodcast(id, script string) {
	b.mu.Lock()
	b.podcasts[id] = script
	b.mu.Unlock()
}

// ChatLog returns the chat history recorded for a repository.
func (b *Backend) ChatLog(id string) []api.ChatHistoryItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.ChatHistoryItem(nil), b.history[id]...)
}

// SetupURLs returns the URLs posted to /setup so far.
func (b *Backend) SetupURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.setupURLs...)
}

// Hits returns how many requests matched a route pattern, e.g. "GET /status".
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// TotalHits returns the number of requests served.
func (b *Backend) TotalHits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

func (b *Backend) removeLocked(id string) bool {
	if _, ok := b.repos[id]; !ok {
		return false
	}
	delete(b.repos, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

func (b *Backend) count(route string) {
	b.mu.Lock()
	b.hits[route]++
	b.mu.Unlock()
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/setup", b.handleSetup)
		r.Get("/status", b.handleStatus)
		r.Get("/get-all-repos", b.handleList)
		r.Get("/repo/{id}", b.handleGetRepo)
		r.Delete("/repo/{id}", b.handleDeleteRepo)
		r.Get("/diagram/{id}", b.handleDiagram)
		r.Post("/chat/{id}", b.handleChat)
		r.Get("/chat/{id}/history", b.handleHistory)
		r.Post("/podcast/{id}", b.handlePodcast)
	})
	return r
}

func (b *Backend) handleSetup(w http.ResponseWriter, r *http.Request) {
	b.count("POST /setup")
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	b.mu.Lock()
	b.setupURLs = append(b.setupURLs, req.URL)
	fail := b.failSetup
	b.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "setup failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Setup started."})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.count("GET /status")
	b.mu.Lock()
	if b.failStatus > 0 {
		b.failStatus--
		b.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "status unavailable"})
		return
	}
	resp := api.StatusResponse{Status: "processing"}
	if len(b.statuses) > 0 {
		resp = b.statuses[0]
		if len(b.statuses) > 1 {
			b.statuses = b.statuses[1:]
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.count("GET /get-all-repos")
	b.mu.Lock()
	out := make([]api.RepoInfo, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.repos[id])
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	b.count("GET /repo")
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	gate := b.gates[id]
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	repo, ok := b.repos[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Repository not found"})
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (b *Backend) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	b.count("DELETE /repo")
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	if b.failDelete {
		b.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "delete failed"})
		return
	}
	ok := b.removeLocked(id)
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Repository not found or could not be deleted."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleDiagram(w http.ResponseWriter, r *http.Request) {
	b.count("GET /diagram")
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	script, ok := b.diagrams[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Error: repository not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"graph_script": script})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	b.count("POST /chat")
	id := chi.URLParam(r, "id")
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	b.mu.Lock()
	_, ok := b.repos[id]
	answer := "You asked: " + req.Message
	if ok {
		b.history[id] = append(b.history[id], api.ChatHistoryItem{
			ID:       int64(len(b.history[id]) + 1),
			RepoID:   api.ID(id),
			Query:    req.Message,
			Response: answer,
		})
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Repository not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	b.count("GET /chat/history")
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	items := append([]api.ChatHistoryItem{}, b.history[id]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, items)
}

func (b *Backend) handlePodcast(w http.ResponseWriter, r *http.Request) {
	b.count("POST /podcast")
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	script, ok := b.podcasts[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Error: repository not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"script": script})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
