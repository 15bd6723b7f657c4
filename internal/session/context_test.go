package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/services"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// staticIdentity hands out a fixed id, so tests can address users directly.
type staticIdentity struct{ id string }

func (p staticIdentity) Resolve(context.Context) (string, error) { return p.id, nil }

type sessionEnv struct {
	profiles    *services.ProfileService
	groups      *services.GroupService
	compliments *services.ComplimentService
	broker      *stream.Broker
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("session_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(&domain.Profile{}, &domain.Group{}, &domain.Membership{}, &domain.Compliment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	b := stream.NewBroker()
	t.Cleanup(func() {
		b.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	groups := services.NewGroupService(db, b)
	return &sessionEnv{
		profiles:    services.NewProfileService(db, b),
		groups:      groups,
		compliments: services.NewComplimentService(db, b),
		broker:      b,
	}
}

// newSession builds a started session for userID with its own state dir.
func (env *sessionEnv) newSession(t *testing.T, userID string, memory GroupMemory) *SessionContext {
	t.Helper()

	if memory == nil {
		memory = &FileGroupMemory{Dir: t.TempDir()}
	}
	sc := NewSessionContext(
		NewIdentitySession(staticIdentity{id: userID}),
		env.profiles, env.groups, env.compliments, memory,
	)
	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s): %v", userID, err)
	}
	t.Cleanup(sc.Close)
	return sc
}

// waitFor drains Updates until pred accepts a snapshot or the deadline hits.
func waitFor(t *testing.T, sc *SessionContext, what string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	var last Snapshot
	for {
		select {
		case snap, open := <-sc.Updates():
			if !open {
				t.Fatalf("updates closed while waiting for %s (last: %+v)", what, last)
			}
			last = snap
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s (last: %+v)", what, last)
		}
	}
}

func recvNotice(t *testing.T, sc *SessionContext) Notice {
	t.Helper()
	select {
	case n := <-sc.Notices():
		return n
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for notice")
		return Notice{}
	}
}

func TestSessionContext_FreshIdentityWaitsForName(t *testing.T) {
	env := newSessionEnv(t)
	sc := env.newSession(t, "alice", nil)

	snap := waitFor(t, sc, "auth-ready state", func(s Snapshot) bool {
		return s.State == StateAuthReadyNoProfile
	})
	if snap.UserID != "alice" || snap.Profile != nil {
		t.Fatalf("unexpected fresh snapshot: %+v", snap)
	}

	// Data operations are refused until a name exists.
	if _, err := sc.CreateGroup(context.Background(), "g"); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("CreateGroup without profile: expected ErrNoProfile, got %v", err)
	}
	if err := sc.JoinGroup(context.Background(), "whatever"); !errors.Is(err, ErrNoProfile) {
		t.Fatalf("JoinGroup without profile: expected ErrNoProfile, got %v", err)
	}
}

func TestSessionContext_SetNameAdvancesToGroupChoice(t *testing.T) {
	env := newSessionEnv(t)
	sc := env.newSession(t, "alice", nil)

	if err := sc.SetName(context.Background(), "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	snap := waitFor(t, sc, "no-group-selected state", func(s Snapshot) bool {
		return s.State == StateNoGroupSelected && s.Profile != nil
	})
	if snap.Profile.DisplayName != "Alice" {
		t.Fatalf("profile not reflected: %+v", snap.Profile)
	}
}

func TestSessionContext_CreateJoinAndExchangeCompliments(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	alice := env.newSession(t, "alice", nil)
	if err := alice.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName alice: %v", err)
	}
	gid, err := alice.CreateGroup(ctx, "Team")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	waitFor(t, alice, "alice in group", func(s Snapshot) bool {
		return s.State == StateInGroup && s.Group != nil && s.Group.ID == gid
	})

	bob := env.newSession(t, "bob", nil)
	if err := bob.SetName(ctx, "Bob"); err != nil {
		t.Fatalf("SetName bob: %v", err)
	}
	if err := bob.JoinGroup(ctx, gid); err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}

	// Both rosters converge on two members in join order.
	waitFor(t, alice, "alice sees bob on roster", func(s Snapshot) bool {
		return len(s.Roster) == 2 && s.Roster[1].MemberID == "bob"
	})
	waitFor(t, bob, "bob sees full roster", func(s Snapshot) bool {
		return len(s.Roster) == 2
	})

	if err := bob.SendCompliment(ctx, "alice", "great onboarding"); err != nil {
		t.Fatalf("SendCompliment: %v", err)
	}

	got := waitFor(t, alice, "compliment arrival", func(s Snapshot) bool {
		return len(s.Received) == 1
	})
	if got.Received[0].Message != "great onboarding" || got.Received[0].SenderID != "bob" {
		t.Fatalf("received view wrong: %+v", got.Received)
	}
	waitFor(t, bob, "bob sent view", func(s Snapshot) bool {
		return len(s.Sent) == 1 && len(s.Received) == 0
	})
}

func TestSessionContext_SendRequiresGroupAndOtherReceiver(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	alice := env.newSession(t, "alice", nil)
	if err := alice.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	if err := alice.SendCompliment(ctx, "bob", "hi"); !errors.Is(err, ErrNoGroup) {
		t.Fatalf("expected ErrNoGroup, got %v", err)
	}

	if _, err := alice.CreateGroup(ctx, "Team"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := alice.SendCompliment(ctx, "alice", "hi me"); !errors.Is(err, services.ErrSelfCompliment) {
		t.Fatalf("expected ErrSelfCompliment, got %v", err)
	}
}

func TestSessionContext_JoinFailureLeavesStateUntouched(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	alice := env.newSession(t, "alice", nil)
	if err := alice.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	if err := alice.JoinGroup(ctx, "no-such-group"); !errors.Is(err, services.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
	if got := alice.State(); got != StateNoGroupSelected {
		t.Fatalf("failed join moved state to %v", got)
	}
}

func TestSessionContext_LeaveGroupIsLocalOnly(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	memory := &FileGroupMemory{Dir: t.TempDir()}
	alice := env.newSession(t, "alice", memory)
	if err := alice.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	gid, err := alice.CreateGroup(ctx, "Team")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	waitFor(t, alice, "in group", func(s Snapshot) bool { return s.State == StateInGroup })

	alice.LeaveGroup()

	waitFor(t, alice, "back to group choice", func(s Snapshot) bool {
		return s.State == StateNoGroupSelected && s.Group == nil && len(s.Roster) == 0
	})
	if remembered, _ := memory.Load(); remembered != "" {
		t.Fatalf("leave kept the remembered group: %q", remembered)
	}

	// The membership row survives: leaving is a client act, not a server one.
	roster, err := env.groups.Roster(ctx, gid)
	if err != nil || len(roster) != 1 {
		t.Fatalf("membership row gone after leave: roster=%+v err=%v", roster, err)
	}
}

func TestSessionContext_GroupDeletedFallsBackWithOneNotice(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	memory := &FileGroupMemory{Dir: t.TempDir()}
	alice := env.newSession(t, "alice", memory)
	if err := alice.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	gid, err := alice.CreateGroup(ctx, "Doomed")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	waitFor(t, alice, "in group", func(s Snapshot) bool { return s.State == StateInGroup })

	if err := env.groups.Delete(ctx, gid); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	waitFor(t, alice, "fallback after deletion", func(s Snapshot) bool {
		return s.State == StateNoGroupSelected && s.Group == nil
	})
	n := recvNotice(t, alice)
	if n.Kind != NoticeGroupDeleted {
		t.Fatalf("unexpected notice: %+v", n)
	}
	select {
	case extra := <-alice.Notices():
		t.Fatalf("second notice for one deletion: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
	if remembered, _ := memory.Load(); remembered != "" {
		t.Fatalf("deleted group still remembered: %q", remembered)
	}
}

func TestSessionContext_RestartRehydratesRememberedGroup(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	memory := &FileGroupMemory{Dir: t.TempDir()}
	first := env.newSession(t, "alice", memory)
	if err := first.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	gid, err := first.CreateGroup(ctx, "Team")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	waitFor(t, first, "in group", func(s Snapshot) bool { return s.State == StateInGroup })
	first.Close()

	second := env.newSession(t, "alice", memory)
	snap := waitFor(t, second, "rehydrated group", func(s Snapshot) bool {
		return s.State == StateInGroup && s.Group != nil
	})
	if snap.Group.ID != gid {
		t.Fatalf("rehydrated wrong group: %+v", snap.Group)
	}
}

func TestSessionContext_RememberedGroupGoneAtStartup(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	memory := &FileGroupMemory{Dir: t.TempDir()}
	if err := memory.Store("deleted-while-away"); err != nil {
		t.Fatalf("seed memory: %v", err)
	}
	if _, err := env.profiles.Save(ctx, "alice", "Alice"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	alice := env.newSession(t, "alice", memory)

	waitFor(t, alice, "fallback at startup", func(s Snapshot) bool {
		return s.State == StateNoGroupSelected
	})
	if n := recvNotice(t, alice); n.Kind != NoticeGroupDeleted {
		t.Fatalf("unexpected notice: %+v", n)
	}
	if remembered, _ := memory.Load(); remembered != "" {
		t.Fatalf("stale group id kept: %q", remembered)
	}
}

func TestSessionContext_ConcurrentPublishAndClose(t *testing.T) {
	env := newSessionEnv(t)

	// Publishers race Close over many fresh sessions; a send after the
	// updates channel closed would panic and fail the run.
	for i := 0; i < 200; i++ {
		sc := env.newSession(t, "alice", nil)

		stop := make(chan struct{})
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						sc.emit()
					}
				}
			}()
		}

		drained := make(chan struct{})
		go func() {
			for range sc.Updates() {
			}
			close(drained)
		}()

		sc.Close()
		close(stop)
		wg.Wait()

		select {
		case <-drained:
		case <-time.After(2 * time.Second):
			t.Fatalf("updates channel still open after Close (iteration %d)", i)
		}
	}
}

func TestSessionContext_SwitchingGroupsDoesNotBleedViews(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	alice := env.newSession(t, "alice", nil)
	if err := alice.SetName(ctx, "Alice"); err != nil {
		t.Fatalf("SetName alice: %v", err)
	}
	bob := env.newSession(t, "bob", nil)
	if err := bob.SetName(ctx, "Bob"); err != nil {
		t.Fatalf("SetName bob: %v", err)
	}

	g1, err := alice.CreateGroup(ctx, "First")
	if err != nil {
		t.Fatalf("create g1: %v", err)
	}
	if err := bob.JoinGroup(ctx, g1); err != nil {
		t.Fatalf("bob joins g1: %v", err)
	}
	if err := bob.SendCompliment(ctx, "alice", "hello in g1"); err != nil {
		t.Fatalf("send in g1: %v", err)
	}
	waitFor(t, alice, "g1 compliment", func(s Snapshot) bool { return len(s.Received) == 1 })

	g2, err := alice.CreateGroup(ctx, "Second")
	if err != nil {
		t.Fatalf("create g2: %v", err)
	}

	// The g2 views start empty; nothing from g1 may surface.
	snap := waitFor(t, alice, "clean g2 views", func(s Snapshot) bool {
		return s.State == StateInGroup && s.Group != nil && s.Group.ID == g2
	})
	if len(snap.Received) != 0 || len(snap.Sent) != 0 {
		t.Fatalf("cross-group bleed after switch: %+v", snap)
	}

	// More traffic in g1 stays invisible to the g2 session: either no new
	// snapshot arrives at all, or whatever arrives is still clean.
	if err := bob.SendCompliment(ctx, "alice", "still g1"); err != nil {
		t.Fatalf("second send in g1: %v", err)
	}
	select {
	case s := <-alice.Updates():
		if s.Group == nil || s.Group.ID != g2 || len(s.Received) != 0 {
			t.Fatalf("g1 traffic leaked into g2 session: %+v", s)
		}
	case <-time.After(200 * time.Millisecond):
	}
}
