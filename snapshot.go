package session

import (
	"context"
	"sync"
)

// Snapshot is the durable form of a session: the bearer credential plus the
// serialized subject. It is written on every successful credential change and
// cleared on logout or invalidation.
type Snapshot struct {
	Credential string    `json:"credential"`
	Subject    *Identity `json:"subject,omitempty"`
}

// Valid reports whether the snapshot can seed an authenticated session.
func (s *Snapshot) Valid() bool {
	return s != nil && s.Credential != "" && s.Subject != nil
}

// Store persists session snapshots. Load returns (nil, nil) when no snapshot
// exists. Clear must be idempotent; it is invoked both by the manager and by
// the transport when concurrent requests fail with a rejected credential.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store. It backs tests and short-lived clients
// that do not want durable persistence.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return nil, nil
	}

	copied := *m.snapshot
	if m.snapshot.Subject != nil {
		subject := *m.snapshot.Subject
		copied.Subject = &subject
	}

	return &copied, nil
}

func (m *MemoryStore) Save(ctx context.Context, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snapshot == nil {
		m.snapshot = nil
		return nil
	}

	copied := *snapshot
	if snapshot.Subject != nil {
		subject := *snapshot.Subject
		copied.Subject = &subject
	}
	m.snapshot = &copied

	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = nil
	return nil
}
