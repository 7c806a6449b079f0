package frontend

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// indexData is what the entry page shows.
type indexData struct {
	Repos     []api.RepoInfo
	Deleting  map[string]bool
	Running   bool
	Progress  job.Update
	Text      string
	Width     int
	JobError  string
	DeleteErr string
	Runs      []job.Run
}

func (f *Frontend) handleIndex(w http.ResponseWriter, r *http.Request) {
	f.refreshRepos(r.Context())

	running, current, jobErr := f.jobState()
	text, width := current.Display()

	f.mu.Lock()
	data := indexData{
		Repos:     append([]api.RepoInfo(nil), f.repos...),
		Deleting:  copyFlags(f.deleting),
		Running:   running,
		Progress:  current,
		Text:      text,
		Width:     width,
		JobError:  jobErr,
		DeleteErr: f.deleteErr,
	}
	f.deleteErr = ""
	f.mu.Unlock()

	if f.history != nil {
		runs, err := f.history.List(r.Context(), 5)
		if err != nil {
			log.Printf("frontend: listing job history: %v", err)
		}
		data.Runs = runs
	}
	f.render(w, "index", "Dev Compass", data)
}

// refreshRepos replaces the local repository list with the backend's. A
// failed fetch shows an empty list.
func (f *Frontend) refreshRepos(ctx context.Context) {
	repos, err := f.client.ListRepos(ctx)
	if err != nil {
		log.Printf("frontend: listing repositories: %v", err)
		repos = nil
	}
	f.mu.Lock()
	f.repos = repos
	f.mu.Unlock()
}

func (f *Frontend) handleOpenRepo(w http.ResponseWriter, r *http.Request) {
	id := session.Identity(chi.URLParam(r, "id"))
	if err := f.gate.Adopt(r.Context(), id); err != nil {
		log.Printf("frontend: opening repository %s: %v", id, err)
		http.Redirect(w, r, f.entry, http.StatusSeeOther)
		return
	}
	// The guard on /dashboard waits for the revalidation started above.
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (f *Frontend) handleDeleteRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := f.deleteRepo(r.Context(), id); err != nil {
		f.mu.Lock()
		f.deleteErr = "Could not delete the repository."
		f.mu.Unlock()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// deleteRepo removes id from the local list at once, asks the backend to
// delete it and then re-fetches the list. A failed delete puts the entry
// back. Deleting the active repository ends the session.
func (f *Frontend) deleteRepo(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.deleting[id] {
		f.mu.Unlock()
		return errors.New("delete already in progress")
	}
	f.deleting[id] = true
	previous := f.repos
	f.repos = withoutRepo(f.repos, id)
	f.mu.Unlock()

	err := f.client.DeleteRepo(ctx, id)

	f.mu.Lock()
	delete(f.deleting, id)
	if err != nil {
		f.repos = previous
	}
	f.mu.Unlock()

	if err != nil {
		log.Printf("frontend: deleting repository %s: %v", id, err)
		return err
	}

	if f.gate.Identity() == session.Identity(id) {
		if cerr := f.gate.Clear(ctx); cerr != nil {
			log.Printf("frontend: clearing session after delete: %v", cerr)
		}
	}
	f.refreshRepos(ctx)
	return nil
}

func withoutRepo(repos []api.RepoInfo, id string) []api.RepoInfo {
	out := make([]api.RepoInfo, 0, len(repos))
	for _, r := range repos {
		if string(r.ID) != id {
			out = append(out, r)
		}
	}
	return out
}

func copyFlags(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// detailOr returns the backend's error detail, or fallback when there is
// none.
func detailOr(err error, fallback string) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	return fallback
}
