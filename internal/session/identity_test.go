package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeProvider struct {
	id    string
	err   error
	calls int
}

func (p *fakeProvider) Resolve(context.Context) (string, error) {
	p.calls++
	return p.id, p.err
}

func TestIdentitySession_ResolvesOnceAndCaches(t *testing.T) {
	p := &fakeProvider{id: "anon-1"}
	s := NewIdentitySession(p)

	if _, ok := s.UserID(); ok {
		t.Fatalf("session resolved before Resolve")
	}

	id, err := s.Resolve(context.Background())
	if err != nil || id != "anon-1" {
		t.Fatalf("Resolve: id=%q err=%v", id, err)
	}

	// The second call answers from cache.
	if _, err := s.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("provider consulted %d times", p.calls)
	}

	select {
	case <-s.Ready():
	default:
		t.Fatalf("Ready not closed after resolve")
	}
	if got, ok := s.UserID(); !ok || got != "anon-1" {
		t.Fatalf("UserID: %q %v", got, ok)
	}
}

func TestIdentitySession_FailedAttemptAllowsRetry(t *testing.T) {
	p := &fakeProvider{err: errors.New("offline")}
	s := NewIdentitySession(p)

	if _, err := s.Resolve(context.Background()); err == nil {
		t.Fatalf("expected error from provider")
	}

	p.err = nil
	p.id = "anon-2"
	id, err := s.Resolve(context.Background())
	if err != nil || id != "anon-2" {
		t.Fatalf("retry failed: id=%q err=%v", id, err)
	}
}

func TestIdentitySession_RejectsEmptyIdentity(t *testing.T) {
	s := NewIdentitySession(&fakeProvider{id: "  "})
	if _, err := s.Resolve(context.Background()); err == nil {
		t.Fatalf("expected error for blank identity")
	}
}

func TestFileIdentityProvider_MintsOnceAndPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	p := &FileIdentityProvider{Dir: dir}

	first, err := p.Resolve(context.Background())
	if err != nil || first == "" {
		t.Fatalf("first resolve: id=%q err=%v", first, err)
	}

	second, err := p.Resolve(context.Background())
	if err != nil || second != first {
		t.Fatalf("identity not stable across resolves: %q vs %q (err=%v)", first, second, err)
	}

	// A new provider over the same dir resumes the same identity.
	again, err := (&FileIdentityProvider{Dir: dir}).Resolve(context.Background())
	if err != nil || again != first {
		t.Fatalf("identity not persisted: %q vs %q (err=%v)", first, again, err)
	}

	info, err := os.Stat(filepath.Join(dir, "identity"))
	if err != nil {
		t.Fatalf("identity file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("identity file permissions too open: %v", info.Mode().Perm())
	}
}
