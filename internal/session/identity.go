// Package session implements the client-side core of the kudos app: the
// anonymous identity session, the "last joined group" side-channel, and
// the SessionContext state machine that owns every live subscription for
// the current (identity, group) pair.
//
// This file covers the identity session. An identity is an opaque string
// handed out by a provider; it resolves exactly once per process lifetime
// and is immutable afterwards. Dependent components must not issue any
// data operation before readiness.
package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IdentityProvider hands out a stable anonymous identity. Implementations
// are expected to retry transient failures themselves; Resolve should
// block until an identity is available or ctx ends. The core imposes no
// timeout on readiness.
type IdentityProvider interface {
	Resolve(ctx context.Context) (string, error)
}

// IdentitySession wraps a provider and caches its answer: the transition
// from unresolved to ready fires once and is irreversible for the process
// lifetime. Safe for concurrent use.
type IdentitySession struct {
	provider IdentityProvider

	mu       sync.Mutex
	resolved bool
	userID   string
	ready    chan struct{}
}

// NewIdentitySession returns a session backed by the given provider.
func NewIdentitySession(p IdentityProvider) *IdentitySession {
	return &IdentitySession{provider: p, ready: make(chan struct{})}
}

// Resolve returns the session identity, consulting the provider on the
// first call. A failed attempt (ctx ended before the provider answered)
// leaves the session unresolved; a later call tries again.
func (s *IdentitySession) Resolve(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.userID, nil
	}

	id, err := s.provider.Resolve(ctx)
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("identity provider returned an empty id")
	}

	s.userID = id
	s.resolved = true
	close(s.ready)
	return id, nil
}

// Ready returns a channel closed once the identity has resolved.
func (s *IdentitySession) Ready() <-chan struct{} { return s.ready }

// UserID returns the resolved identity, or false while unresolved.
func (s *IdentitySession) UserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.resolved
}

// FileIdentityProvider persists a generated identity as a small file under
// Dir, so restarts resume the same anonymous identity. The first Resolve
// mints a UUID and writes it with owner-only permissions.
type FileIdentityProvider struct {
	Dir string
}

// Resolve implements IdentityProvider.
func (p *FileIdentityProvider) Resolve(_ context.Context) (string, error) {
	path := filepath.Join(p.Dir, "identity")

	b, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	id := uuid.NewString()
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}
