package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestProfileService_GetAbsentIsNilNotError(t *testing.T) {
	db, b := newServiceEnv(t)
	svc := NewProfileService(db, b)

	p, err := svc.Get(context.Background(), "fresh-identity")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile for fresh identity, got %+v", p)
	}
}

func TestProfileService_SaveRejectsWhitespaceOnlyName(t *testing.T) {
	db, b := newServiceEnv(t)
	svc := NewProfileService(db, b)

	for _, name := range []string{"", "   ", "\t\n  \t"} {
		if _, err := svc.Save(context.Background(), "u1", name); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("Save(%q): expected ErrEmptyName, got %v", name, err)
		}
	}

	// Nothing was written.
	p, err := svc.Get(context.Background(), "u1")
	if err != nil || p != nil {
		t.Fatalf("rejected save left state behind: p=%v err=%v", p, err)
	}
}

func TestProfileService_SaveNormalizesAndReplaces(t *testing.T) {
	db, b := newServiceEnv(t)
	svc := NewProfileService(db, b)
	ctx := context.Background()

	if _, err := svc.Save(ctx, "u1", "  Alex \t  B  "); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.DisplayName != "Alex B" {
		t.Fatalf("whitespace not normalized: %q", p.DisplayName)
	}

	if _, err := svc.Save(ctx, "u1", "Sam"); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	p, err = svc.Get(ctx, "u1")
	if err != nil || p.DisplayName != "Sam" {
		t.Fatalf("save is not a full replace: p=%+v err=%v", p, err)
	}
}

func TestProfileService_SaveClipsLongNames(t *testing.T) {
	db, b := newServiceEnv(t)
	svc := NewProfileService(db, b)

	long := strings.Repeat("x", svc.NameMaxLen+25)
	p, err := svc.Save(context.Background(), "u1", long)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := len([]rune(p.DisplayName)); got != svc.NameMaxLen {
		t.Fatalf("expected %d runes, got %d", svc.NameMaxLen, got)
	}
}

func TestProfileService_SubscribeDeliversCurrentThenCommittedSaves(t *testing.T) {
	db, b := newServiceEnv(t)
	svc := NewProfileService(db, b)
	ctx := context.Background()

	ch, cancel, err := svc.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// First snapshot is the current state: no profile yet.
	if first := recvSnapshot(t, ch); first != nil {
		t.Fatalf("expected nil first snapshot, got %+v", first)
	}

	if _, err := svc.Save(ctx, "u1", "Alex"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	next := recvSnapshot(t, ch)
	if next == nil || next.DisplayName != "Alex" {
		t.Fatalf("subscription missed the save: %+v", next)
	}

	// A save for another identity is invisible here.
	if _, err := svc.Save(ctx, "u2", "Other"); err != nil {
		t.Fatalf("Save u2: %v", err)
	}
	select {
	case v := <-ch:
		t.Fatalf("cross-identity bleed: %+v", v)
	default:
	}

	cancel()
	recvClosed(t, ch)
}
