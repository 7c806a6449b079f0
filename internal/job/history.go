package job

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/devcompass/internal/db"
)

// Run is a recorded job submission.
type Run struct {
	ID         string     `json:"id"`
	RepoURL    string     `json:"repo_url"`
	Status     Status     `json:"status"`
	Message    string     `json:"message,omitempty"`
	RepoID     string     `json:"repo_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// History stores job submissions in the job_runs table.
type History struct {
	db *db.DB
}

// NewHistory creates a History backed by the given database.
func NewHistory(database *db.DB) *History {
	return &History{db: database}
}

// Begin records a new submission in the setup state.
func (h *History) Begin(ctx context.Context, repoURL string) (*Run, error) {
	r := &Run{
		ID:        uuid.New().String(),
		RepoURL:   repoURL,
		Status:    StatusSetup,
		StartedAt: time.Now().UTC(),
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO job_runs (id, repo_url, status, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.RepoURL, string(r.Status), r.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting job run: %w", err)
	}
	return r, nil
}

// Finish stores the final state of a submission.
func (h *History) Finish(ctx context.Context, id string, status Status, message, repoID string) error {
	if !status.Known() {
		status = StatusError
	}
	_, err := h.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, message = ?, repo_id = ?, finished_at = ? WHERE id = ?`,
		string(status), message, repoID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating job run: %w", err)
	}
	return nil
}

// List returns the most recent submissions, newest first.
func (h *History) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, repo_url, status, message, repo_id, started_at, finished_at
		 FROM job_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing job runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.RepoURL, &status, &r.Message, &r.RepoID, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		r.Status = Status(status)
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
