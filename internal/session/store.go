package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ziadkadry99/devcompass/internal/db"
)

// Identity is an opaque token naming a repository the backend has ingested.
// The zero value means no repository is active.
type Identity string

// IsZero reports whether no identity is set.
func (id Identity) IsZero() bool { return id == "" }

func (id Identity) String() string { return string(id) }

// Store is the single persisted identity slot. Only the Gate writes it.
type Store interface {
	Load(ctx context.Context) (Identity, error)
	Save(ctx context.Context, id Identity) error
	Erase(ctx context.Context) error
}

// SQLStore keeps the slot in the session_slot table.
type SQLStore struct {
	db *db.DB
}

// NewSQLStore creates a Store backed by the given database.
func NewSQLStore(database *db.DB) *SQLStore {
	return &SQLStore{db: database}
}

// Load returns the persisted identity, or the zero Identity if the slot is empty.
func (s *SQLStore) Load(ctx context.Context) (Identity, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT identity FROM session_slot WHERE slot = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading session slot: %w", err)
	}
	return Identity(id), nil
}

// Save writes id into the slot, replacing any previous value.
func (s *SQLStore) Save(ctx context.Context, id Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_slot (slot, identity, updated_at) VALUES (1, ?, datetime('now'))
		ON CONFLICT(slot) DO UPDATE SET identity = excluded.identity, updated_at = excluded.updated_at`,
		string(id))
	if err != nil {
		return fmt.Errorf("saving session slot: %w", err)
	}
	return nil
}

// Erase empties the slot.
func (s *SQLStore) Erase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_slot WHERE slot = 1`); err != nil {
		return fmt.Errorf("erasing session slot: %w", err)
	}
	return nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	id     Identity
	saves  int
	erases int
}

// NewMemoryStore returns a MemoryStore pre-loaded with id.
func NewMemoryStore(id Identity) *MemoryStore {
	return &MemoryStore{id: id}
}

func (m *MemoryStore) Load(context.Context) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *MemoryStore) Save(_ context.Context, id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	m.saves++
	return nil
}

func (m *MemoryStore) Erase(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = ""
	m.erases++
	return nil
}

// Counts returns how many times Save and Erase were called.
func (m *MemoryStore) Counts() (saves, erases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.erases
}
