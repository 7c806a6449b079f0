package job

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// Backend is the part of the analysis API a job needs.
type Backend interface {
	Setup(ctx context.Context, repoURL string) error
	Status(ctx context.Context) (*api.StatusResponse, error)
}

// Observer receives every update of a job, in order.
type Observer func(Update)

// Options tunes a Poller. Zero values fall back to the defaults below.
type Options struct {
	// Interval between status samples.
	Interval time.Duration
	// SettleDelay is how long "done" is held before Submit returns.
	SettleDelay time.Duration
	// MaxRetries is how many consecutive failed samples are tolerated
	// before the job fails. Zero fails on the first one.
	MaxRetries int
	// HostBase is prepended to owner/name references.
	HostBase string
	// History, if set, records every submission.
	History *History
}

const (
	DefaultInterval    = 3000 * time.Millisecond
	DefaultSettleDelay = 1000 * time.Millisecond
)

// Poller submits ingestion jobs and polls them to completion. At most one
// job runs at a time.
type Poller struct {
	backend Backend
	opts    Options
	running atomic.Bool
	current atomic.Value // Update
}

// NewPoller creates a Poller for the given backend.
func NewPoller(backend Backend, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.HostBase == "" {
		opts.HostBase = DefaultHostBase
	}
	return &Poller{backend: backend, opts: opts}
}

// Busy reports whether a job is in flight.
func (p *Poller) Busy() bool { return p.running.Load() }

// Current returns the latest update of the running job, if any.
func (p *Poller) Current() (Update, bool) {
	if !p.Busy() {
		return Update{}, false
	}
	u, ok := p.current.Load().(Update)
	return u, ok
}

// Submit starts ingesting ref and blocks until the backend reports a
// terminal status, the job fails, or ctx is done. Cancelling ctx stops
// polling; a request already sent is not aborted but its result is ignored.
func (p *Poller) Submit(ctx context.Context, ref string, observe Observer) (session.Identity, error) {
	repoURL, err := NormalizeURL(ref, p.opts.HostBase)
	if err != nil {
		return "", err
	}

	if !p.running.CompareAndSwap(false, true) {
		return "", ErrJobInProgress
	}
	defer p.running.Store(false)

	r := &run{poller: p, observe: observe}
	if h := p.opts.History; h != nil {
		rec, herr := h.Begin(ctx, repoURL)
		if herr != nil {
			log.Printf("job: recording submission of %s: %v", repoURL, herr)
		}
		r.record = rec
	}

	id, err := r.execute(ctx, repoURL)
	r.finish(err)
	return id, err
}

// run is the state of a single Submit call.
type run struct {
	poller  *Poller
	observe Observer
	record  *Run
	last    Update
}

func (r *run) emit(u Update) {
	r.last = u
	r.poller.current.Store(u)
	if r.observe != nil {
		r.observe(u)
	}
}

func (r *run) fail(kind Kind, msg string, cause error) error {
	r.emit(Update{Status: StatusError, Message: msg})
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func (r *run) execute(ctx context.Context, repoURL string) (session.Identity, error) {
	opts := r.poller.opts
	r.emit(Update{Status: StatusSetup})

	if err := r.poller.backend.Setup(ctx, repoURL); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", r.fail(KindSubmission, submissionMessage, err)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		resp, err := r.poller.backend.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failures++
			if failures > opts.MaxRetries {
				return "", r.fail(KindPollTransport, "Lost contact with the backend while processing.", err)
			}
			log.Printf("job: status check failed (%d/%d tolerated): %v", failures, opts.MaxRetries, err)
			continue
		}
		failures = 0

		u := Update{
			Status:   Status(resp.Status),
			Message:  resp.Message,
			Identity: session.Identity(resp.RepoID),
		}
		if u.Status == StatusError && u.Message == "" {
			u.Message = defaultFailureMessage
		}

		switch u.Outcome() {
		case Continue:
			r.emit(u)
		case Fail:
			r.emit(u)
			return "", &Error{Kind: KindServer, Message: u.Message}
		case Resolve:
			if u.Identity.IsZero() {
				r.emit(u)
				return "", r.fail(KindServer, missingIDMessage, nil)
			}
			r.emit(u)
			r.emit(Update{Status: StatusDone, Identity: u.Identity})
			if err := sleep(ctx, opts.SettleDelay); err != nil {
				return "", err
			}
			return u.Identity, nil
		}
	}
}

func (r *run) finish(err error) {
	h := r.poller.opts.History
	if h == nil || r.record == nil {
		return
	}
	status, msg := r.last.Status, r.last.Message
	if err != nil && status != StatusError {
		// Cancelled jobs are recorded as errors so they never look pending.
		status, msg = StatusError, err.Error()
	}
	// The caller's context may already be cancelled; history is best effort.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if herr := h.Finish(ctx, r.record.ID, status, msg, string(r.last.Identity)); herr != nil {
		log.Printf("job: recording result of %s: %v", r.record.RepoURL, herr)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
