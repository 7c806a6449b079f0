package session

import (
	"context"
	"log"
	"sync"
)

// Validator checks whether the backend still knows an identity. A nil
// error means the identity exists; anything else, including transport
// failures, means it must not be trusted.
type Validator interface {
	Exists(ctx context.Context, id string) error
}

// State is a point-in-time view of the gate.
type State struct {
	Identity Identity `json:"identity"`
	Valid    bool     `json:"valid"`
	Pending  bool     `json:"pending"`
}

// Gate owns the active identity and whether the server has confirmed it.
// Valid is only ever true right after a successful server round-trip for
// the current identity.
type Gate struct {
	store     Store
	validator Validator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	seq     uint64
	settled chan struct{}
	subs    map[int]chan State
	nextSub int
}

// NewGate creates a gate over the given slot and validator. Call Start to
// load and revalidate the persisted identity.
func NewGate(store Store, validator Validator) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		store:     store,
		validator: validator,
		ctx:       ctx,
		cancel:    cancel,
		subs:      map[int]chan State{},
	}
}

// Start reads the persisted identity. With no identity the gate is invalid
// immediately and no request is made; otherwise revalidation begins in the
// background.
func (g *Gate) Start(ctx context.Context) error {
	id, err := g.store.Load(ctx)
	if err != nil {
		log.Printf("session: reading persisted identity: %v", err)
		id = ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{Identity: id}
	if id.IsZero() {
		g.notifyLocked()
		return err
	}
	g.revalidateLocked(id)
	return nil
}

// Adopt makes id the active identity, persists it and revalidates it. The
// gate stays invalid until the server confirms the identity.
func (g *Gate) Adopt(ctx context.Context, id Identity) error {
	if id.IsZero() {
		return g.Clear(ctx)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{Identity: id}
	err := g.store.Save(ctx, id)
	if err != nil {
		log.Printf("session: persisting identity %s: %v", id, err)
	}
	g.revalidateLocked(id)
	return err
}

// Clear drops the active identity, in memory and in the slot. Any
// in-flight revalidation result is discarded.
func (g *Gate) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.state = State{}
	err := g.store.Erase(ctx)
	if err != nil {
		log.Printf("session: erasing identity: %v", err)
	}
	g.settleLocked()
	g.notifyLocked()
	return err
}

// Identity returns the active identity, which may not be validated yet.
func (g *Gate) Identity() Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Identity
}

// Valid reports whether the active identity has been confirmed by the server.
func (g *Gate) Valid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Valid
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Settled waits until no revalidation is pending and returns the resulting
// state. It returns early with ctx's error if ctx is done first.
func (g *Gate) Settled(ctx context.Context) (State, error) {
	for {
		g.mu.Lock()
		st, ch := g.state, g.settled
		g.mu.Unlock()
		if !st.Pending || ch == nil {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Subscribe returns a channel that receives the latest state after every
// change. Slow readers only ever see the most recent state. The returned
// func stops the subscription.
func (g *Gate) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = ch
	ch <- g.state
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

// Close abandons in-flight revalidations and waits for them to return.
func (g *Gate) Close() {
	g.cancel()
	g.wg.Wait()
}

func (g *Gate) revalidateLocked(id Identity) {
	g.seq++
	seq := g.seq
	g.state.Valid = false
	g.state.Pending = true
	if g.settled == nil {
		g.settled = make(chan struct{})
	}
	g.notifyLocked()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := g.validator.Exists(g.ctx, string(id))
		g.finish(id, seq, err)
	}()
}

func (g *Gate) finish(id Identity, seq uint64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The gate is shutting down; leave the slot as it is.
	if g.ctx.Err() != nil {
		return
	}
	// A newer adopt or clear happened while this request was in flight.
	if g.seq != seq || g.state.Identity != id {
		return
	}

	if err == nil {
		if saveErr := g.store.Save(g.ctx, id); saveErr != nil {
			log.Printf("session: refreshing identity %s: %v", id, saveErr)
		}
		g.state = State{Identity: id, Valid: true}
	} else {
		log.Printf("session: identity %s rejected: %v", id, err)
		if eraseErr := g.store.Erase(g.ctx); eraseErr != nil {
			log.Printf("session: erasing identity: %v", eraseErr)
		}
		g.state = State{}
	}
	g.settleLocked()
	g.notifyLocked()
}

func (g *Gate) settleLocked() {
	if g.settled != nil {
		close(g.settled)
		g.settled = nil
	}
}

func (g *Gate) notifyLocked() {
	for _, ch := range g.subs {
		select {
		case ch <- g.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- g.state
		}
	}
}
