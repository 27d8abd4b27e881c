package gate

import (
	"context"
	"sync"
	"time"
)

// TargetStore remembers, per session, the path a login redirect came from.
type TargetStore interface {
	Remember(ctx context.Context, sessionID, path string) error
	// Consume returns and forgets the remembered path. An empty string means
	// nothing was remembered.
	Consume(ctx context.Context, sessionID string) (string, error)
}

// Memory is an in-process TargetStore whose entries expire after ttl.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	path    string
	expires time.Time
}

// NewMemory creates an in-process target store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Remember(_ context.Context, sessionID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
		}
	}
	m.entries[sessionID] = memoryEntry{path: path, expires: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Consume(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sessionID]
	if !ok {
		return "", nil
	}
	delete(m.entries, sessionID)
	if m.now().After(e.expires) {
		return "", nil
	}
	return e.path, nil
}

// Gate evaluates navigations and keeps the post-login redirect contract.
type Gate struct {
	targets TargetStore
}

// New creates a Gate backed by targets.
func New(targets TargetStore) *Gate {
	return &Gate{targets: targets}
}

// Navigate evaluates req for a session and, on a login redirect, remembers
// the requested path for that session.
func (g *Gate) Navigate(ctx context.Context, sessionID string, req Request) (Decision, error) {
	d := Evaluate(req)
	if d.IsLoginRedirect() && sessionID != "" {
		if err := g.targets.Remember(ctx, sessionID, req.Path); err != nil {
			return d, err
		}
	}
	return d, nil
}

// PostLoginTarget returns where a successful login lands. An explicit from
// takes precedence over the remembered path; both must be local paths.
func (g *Gate) PostLoginTarget(ctx context.Context, sessionID, from string) (string, error) {
	remembered, err := g.targets.Consume(ctx, sessionID)
	if err != nil {
		return HomePath, err
	}
	if from != "" {
		return SafeTarget(from), nil
	}
	return SafeTarget(remembered), nil
}
