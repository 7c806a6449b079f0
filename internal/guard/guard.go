// Package guard keeps requests for repository views away from handlers
// until the session gate has confirmed the active repository.
package guard

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/devcompass/internal/session"
)

// Gate is the part of session.Gate the guard reads.
type Gate interface {
	Settled(ctx context.Context) (session.State, error)
}

// Guard decides whether a request may reach a protected view.
type Guard struct {
	gate     Gate
	entry    string
	patterns []string
}

// New creates a guard that sends rejected requests to entry. Paths matching
// any of patterns (doublestar globs) are protected.
func New(gate Gate, entry string, patterns []string) (*Guard, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid protected pattern %q", p)
		}
	}
	if entry == "" {
		entry = "/"
	}
	return &Guard{gate: gate, entry: entry, patterns: patterns}, nil
}

// Entry returns the path rejected requests are sent to.
func (g *Guard) Entry() string { return g.entry }

// Protects reports whether path needs a valid session.
func (g *Guard) Protects(path string) bool {
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	for _, p := range g.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Allow waits for any pending revalidation and reports whether the session
// is valid. It never admits while the check is still running.
func (g *Guard) Allow(ctx context.Context) (bool, error) {
	st, err := g.gate.Settled(ctx)
	if err != nil {
		return false, err
	}
	return st.Valid, nil
}

// Middleware guards every request whose path is protected and passes the
// rest through.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protects(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		g.serve(w, r, next)
	})
}

// Require guards every request, regardless of path.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, next)
	})
}

func (g *Guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ok, err := g.Allow(r.Context())
	if err != nil {
		// Client went away while the check was pending.
		return
	}
	if !ok {
		Redirect(w, g.entry)
		return
	}
	next.ServeHTTP(w, r)
}

// Redirect sends a single See Other to target with an empty body.
func Redirect(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusSeeOther)
}

// Watch calls evict once the session stops being valid. It returns after
// evicting, or when ctx is done or states is closed. A state that is still
// pending never triggers eviction.
func Watch(ctx context.Context, states <-chan session.State, evict func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if !st.Valid && !st.Pending {
				evict()
				return
			}
		}
	}
}
