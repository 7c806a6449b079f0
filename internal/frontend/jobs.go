package frontend

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// startJob validates ref and runs the job in the background. Blank input
// fails here, before any request is made.
func (f *Frontend) startJob(ref string) error {
	if _, err := job.NormalizeURL(ref, ""); err != nil {
		return err
	}

	f.mu.Lock()
	if f.jobRunning {
		f.mu.Unlock()
		return job.ErrJobInProgress
	}
	f.jobRunning = true
	f.jobErr = ""
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runJob(ref)
	}()
	return nil
}

func (f *Frontend) runJob(ref string) {
	defer func() {
		f.mu.Lock()
		f.jobRunning = false
		f.mu.Unlock()
	}()

	id, err := f.poller.Submit(f.ctx, ref, func(u job.Update) {
		f.hub.publish(topicJob, progressEvent(u))
	})
	if err != nil {
		if f.ctx.Err() != nil {
			return
		}
		msg := err.Error()
		var je *job.Error
		if errors.As(err, &je) {
			msg = je.Message
		}
		log.Printf("frontend: processing %q failed: %v", ref, err)
		f.mu.Lock()
		f.jobErr = msg
		f.mu.Unlock()
		f.hub.publish(topicJob, event{Type: "failed", Message: msg})
		return
	}

	f.adopt(id)
	f.hub.publish(topicJob, event{Type: "navigate", To: "/dashboard"})
}

// adopt hands id to the gate. The gate revalidates before anything is
// admitted, so a failure here only needs logging.
func (f *Frontend) adopt(id session.Identity) {
	if err := f.gate.Adopt(f.ctx, id); err != nil {
		log.Printf("frontend: adopting repository %s: %v", id, err)
	}
}

func progressEvent(u job.Update) event {
	text, width := u.Display()
	return event{
		Type:    "progress",
		Status:  string(u.Status),
		Text:    text,
		Width:   width,
		Message: u.Message,
	}
}

func (f *Frontend) jobState() (running bool, current job.Update, errMsg string) {
	f.mu.Lock()
	running, errMsg = f.jobRunning, f.jobErr
	f.mu.Unlock()
	if running {
		current, _ = f.poller.Current()
		if current.Status == "" {
			current.Status = job.StatusSetup
		}
	}
	return running, current, errMsg
}

func (f *Frontend) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ref := r.FormValue("repo")
	// Blank input leaves the form as it was.
	if err := f.startJob(ref); err != nil && !errors.Is(err, job.ErrEmptyReference) {
		f.mu.Lock()
		f.jobErr = err.Error()
		f.mu.Unlock()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// analyzeRequest is the JSON body of POST /api/analyze.
type analyzeRequest struct {
	Repo string `json:"repo"`
}

func (f *Frontend) handleAnalyzeJSON(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	switch err := f.startJob(req.Repo); {
	case errors.Is(err, job.ErrEmptyReference):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, job.ErrJobInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": string(job.StatusSetup)})
	}
}

func (f *Frontend) handleJobs(w http.ResponseWriter, r *http.Request) {
	if f.history == nil {
		writeJSON(w, http.StatusOK, []job.Run{})
		return
	}
	runs, err := f.history.List(r.Context(), 20)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []job.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (f *Frontend) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.gate.Snapshot())
}

func (f *Frontend) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if err := f.gate.Clear(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, f.gate.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
