// SessionContext: the orchestrator that composes the identity session,
// the profile store, the group registry, and the compliment ledger into
// one client session.
//
// It owns every live subscription for the current (identity, group) pair
// as an explicit cancellable set guarded by a generation counter:
// replacing the pair tears the old set down before attaching the new one,
// and a late in-flight delivery from a previous generation is discarded.
// Local state is always a projection of the latest pushed snapshots; it
// is never independently mutated.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kudoslab/go-kudos-backend/internal/domain"
	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// Session-level sentinel errors.
var (
	// ErrNoProfile is returned when an operation requires a display name
	// that has not been set yet.
	ErrNoProfile = errors.New("display name not set")

	// ErrNoGroup is returned when an operation requires a selected group.
	ErrNoGroup = errors.New("no group selected")
)

// State enumerates the session states.
type State int

const (
	// StateUnauthenticated: identity not yet resolved. No data operation
	// may be issued.
	StateUnauthenticated State = iota
	// StateAuthReadyNoProfile: identity resolved, no display name yet.
	StateAuthReadyNoProfile
	// StateAuthReadyHasProfile: identity and display name known; group
	// selection not yet resolved.
	StateAuthReadyHasProfile
	// StateNoGroupSelected: ready, with no group chosen.
	StateNoGroupSelected
	// StateInGroup: all four group-scoped live views are attached.
	StateInGroup
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthReadyNoProfile:
		return "auth-ready-no-profile"
	case StateAuthReadyHasProfile:
		return "auth-ready-has-profile"
	case StateNoGroupSelected:
		return "no-group-selected"
	case StateInGroup:
		return "in-group"
	default:
		return "unknown"
	}
}

// NoticeKind classifies user-visible notices.
type NoticeKind int

const (
	// NoticeGroupDeleted: the current group was deleted out of band and
	// the session fell back to NoGroupSelected.
	NoticeGroupDeleted NoticeKind = iota
)

// Notice is a transient, user-visible message raised by the session.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Snapshot is the session's full projected state at one instant. Slices
// and pointers are owned by the session's sources; consumers must treat a
// snapshot as read-only.
type Snapshot struct {
	State    State
	UserID   string
	Profile  *domain.Profile
	Group    *domain.Group
	Roster   []domain.Membership
	Received []domain.Compliment
	Sent     []domain.Compliment
}

// ProfileStore is the profile capability consumed by the session.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Save(ctx context.Context, userID, name string) (*domain.Profile, error)
	Subscribe(ctx context.Context, userID string) (<-chan *domain.Profile, stream.CancelFunc, error)
}

// GroupRegistry is the group capability consumed by the session.
type GroupRegistry interface {
	Create(ctx context.Context, name, creatorID, creatorName string) (*domain.Group, error)
	Lookup(ctx context.Context, groupID string) (*domain.Group, error)
	Join(ctx context.Context, groupID, userID, displayName string) (*domain.Membership, error)
	SubscribeRoster(ctx context.Context, groupID string) (<-chan []domain.Membership, stream.CancelFunc, error)
	SubscribeMeta(ctx context.Context, groupID string) (<-chan *domain.Group, stream.CancelFunc, error)
}

// ComplimentLedger is the ledger capability consumed by the session.
type ComplimentLedger interface {
	Send(ctx context.Context, senderID, receiverID, groupID, message string) (*domain.Compliment, error)
	SubscribeReceived(ctx context.Context, userID, groupID string) (<-chan []domain.Compliment, stream.CancelFunc, error)
	SubscribeSent(ctx context.Context, userID, groupID string) (<-chan []domain.Compliment, stream.CancelFunc, error)
}

// SessionContext composes identity, profile, group, and ledger into one
// client session. Construct with NewSessionContext, call Start once, then
// drive it through the public methods. Safe for concurrent use.
type SessionContext struct {
	identity *IdentitySession
	profiles ProfileStore
	groups   GroupRegistry
	ledger   ComplimentLedger
	memory   GroupMemory

	ctx context.Context

	mu            sync.Mutex
	state         State
	userID        string
	profile       *domain.Profile
	groupID       string
	group         *domain.Group
	roster        []domain.Membership
	received      []domain.Compliment
	sent          []domain.Compliment
	gen           uint64
	cancels       []stream.CancelFunc
	profileCancel stream.CancelFunc
	closed        bool

	updates chan Snapshot
	notices chan Notice
}

// NewSessionContext wires a session from its collaborators. Nothing is
// resolved or subscribed until Start.
func NewSessionContext(id *IdentitySession, profiles ProfileStore, groups GroupRegistry, ledger ComplimentLedger, memory GroupMemory) *SessionContext {
	return &SessionContext{
		identity: id,
		profiles: profiles,
		groups:   groups,
		ledger:   ledger,
		memory:   memory,
		state:    StateUnauthenticated,
		updates:  make(chan Snapshot, 1),
		notices:  make(chan Notice, 8),
	}
}

// Updates returns the coalesced snapshot stream: the latest projected
// state, replaced in place when the consumer lags.
func (sc *SessionContext) Updates() <-chan Snapshot { return sc.updates }

// Notices returns the stream of user-visible notices.
func (sc *SessionContext) Notices() <-chan Notice { return sc.notices }

// State returns the current session state.
func (sc *SessionContext) State() State {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// CurrentGroup returns the selected group id, or "" outside InGroup.
func (sc *SessionContext) CurrentGroup() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.groupID
}

// Start resolves the identity, attaches the profile subscription, and
// rehydrates the previous group when one is remembered. The given context
// bounds the whole session: all subscriptions are torn down when it ends.
//
// Resume is optimistic: a remembered group is entered immediately, and
// whether it still exists is resolved by the group-meta subscription.
func (sc *SessionContext) Start(ctx context.Context) error {
	sc.ctx = ctx

	uid, err := sc.identity.Resolve(ctx)
	if err != nil {
		return err
	}

	ch, cancel, err := sc.profiles.Subscribe(ctx, uid)
	if err != nil {
		return err
	}
	var first *domain.Profile
	select {
	case first = <-ch:
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	hasProfile := first != nil && first.DisplayName != ""
	sc.mu.Lock()
	sc.userID = uid
	sc.profile = first
	sc.profileCancel = cancel
	if hasProfile {
		sc.state = StateAuthReadyHasProfile
	} else {
		sc.state = StateAuthReadyNoProfile
	}
	sc.mu.Unlock()
	go sc.consumeProfile(ch)

	if !hasProfile {
		sc.emit()
		return nil
	}

	remembered, err := sc.memory.Load()
	if err != nil {
		log.Warn().Err(err).Msg("group memory unreadable; starting without a group")
		remembered = ""
	}
	if remembered == "" {
		sc.setState(StateNoGroupSelected)
		return nil
	}
	if err := sc.enterGroup(remembered); err != nil {
		sc.setState(StateNoGroupSelected)
		return err
	}
	return nil
}

// SetName saves the display name. On success the profile subscription
// confirms the write; the state advances to AuthReadyHasProfile (and on
// to NoGroupSelected when no group is pending).
func (sc *SessionContext) SetName(ctx context.Context, name string) error {
	sc.mu.Lock()
	uid := sc.userID
	sc.mu.Unlock()

	p, err := sc.profiles.Save(ctx, uid, name)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	sc.profile = p // optimistic echo; the subscription delivers the same state
	if sc.state == StateAuthReadyNoProfile || sc.state == StateAuthReadyHasProfile {
		sc.state = StateNoGroupSelected
	}
	sc.publishLocked()
	sc.mu.Unlock()
	return nil
}

// CreateGroup creates a group, remembers it, and enters it. Requires a
// display name (ErrNoProfile otherwise).
func (sc *SessionContext) CreateGroup(ctx context.Context, name string) (string, error) {
	uid, display, err := sc.requireProfile()
	if err != nil {
		return "", err
	}
	g, err := sc.groups.Create(ctx, name, uid, display)
	if err != nil {
		return "", err
	}
	sc.remember(g.ID)
	return g.ID, sc.enterGroup(g.ID)
}

// JoinGroup joins an existing group, remembers it, and enters it. A
// failed join (including NotFound) leaves the session state untouched.
func (sc *SessionContext) JoinGroup(ctx context.Context, groupID string) error {
	uid, display, err := sc.requireProfile()
	if err != nil {
		return err
	}
	if _, err := sc.groups.Join(ctx, groupID, uid, display); err != nil {
		return err
	}
	sc.remember(groupID)
	return sc.enterGroup(groupID)
}

// LeaveGroup drops the current selection. Local only: the membership row
// is untouched, the remembered id is cleared, and all four group-scoped
// subscriptions are cancelled.
func (sc *SessionContext) LeaveGroup() {
	sc.mu.Lock()
	if sc.state != StateInGroup {
		sc.mu.Unlock()
		return
	}
	sc.teardownGroupLocked()
	sc.state = StateNoGroupSelected
	sc.publishLocked()
	sc.mu.Unlock()

	if err := sc.memory.Clear(); err != nil {
		log.Warn().Err(err).Msg("clearing group memory failed")
	}
}

// SendCompliment sends a compliment to another member of the current
// group. Returns ErrNoGroup outside InGroup; validation and membership
// errors come back from the ledger unchanged.
func (sc *SessionContext) SendCompliment(ctx context.Context, receiverID, message string) error {
	sc.mu.Lock()
	uid, gid, state := sc.userID, sc.groupID, sc.state
	sc.mu.Unlock()
	if state != StateInGroup {
		return ErrNoGroup
	}
	_, err := sc.ledger.Send(ctx, uid, receiverID, gid, message)
	return err
}

// Close tears down every subscription and closes the update stream.
func (sc *SessionContext) Close() {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.closed = true
	sc.teardownGroupLocked()
	if sc.profileCancel != nil {
		sc.profileCancel()
		sc.profileCancel = nil
	}
	// Closed under the same lock that guards every publish, so a publisher
	// either finished its send before this point or observes closed and
	// never touches the channel.
	close(sc.updates)
	sc.mu.Unlock()
}

// ---- internals ----

// requireProfile returns the identity and display name, or ErrNoProfile.
func (sc *SessionContext) requireProfile() (uid, display string, err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.profile == nil || sc.profile.DisplayName == "" {
		return "", "", ErrNoProfile
	}
	return sc.userID, sc.profile.DisplayName, nil
}

// remember stores groupID in the side-channel, logging (not failing) on
// error: the join itself already succeeded.
func (sc *SessionContext) remember(groupID string) {
	if err := sc.memory.Store(groupID); err != nil {
		log.Warn().Err(err).Str("group_id", groupID).Msg("storing group memory failed")
	}
}

// enterGroup swaps the owned subscription set to the new group: the old
// generation is torn down first, then the four live views (meta, roster,
// received, sent) attach keyed on the current (identity, group) pair.
func (sc *SessionContext) enterGroup(groupID string) error {
	sc.mu.Lock()
	sc.teardownGroupLocked()
	gen := sc.gen
	uid := sc.userID
	sc.groupID = groupID
	sc.state = StateInGroup
	sc.mu.Unlock()

	ctx := sc.ctx
	var attached []stream.CancelFunc
	abort := func(err error) error {
		for _, cancel := range attached {
			cancel()
		}
		sc.mu.Lock()
		if gen == sc.gen {
			sc.groupID = ""
			sc.state = StateNoGroupSelected
		}
		sc.mu.Unlock()
		return err
	}

	metaCh, cancelMeta, err := sc.groups.SubscribeMeta(ctx, groupID)
	if err != nil {
		return abort(err)
	}
	attached = append(attached, cancelMeta)

	rosterCh, cancelRoster, err := sc.groups.SubscribeRoster(ctx, groupID)
	if err != nil {
		return abort(err)
	}
	attached = append(attached, cancelRoster)

	recvCh, cancelRecv, err := sc.ledger.SubscribeReceived(ctx, uid, groupID)
	if err != nil {
		return abort(err)
	}
	attached = append(attached, cancelRecv)

	sentCh, cancelSent, err := sc.ledger.SubscribeSent(ctx, uid, groupID)
	if err != nil {
		return abort(err)
	}
	attached = append(attached, cancelSent)

	sc.mu.Lock()
	if gen != sc.gen || sc.closed {
		// Superseded while attaching; the newer generation owns the state.
		sc.mu.Unlock()
		for _, cancel := range attached {
			cancel()
		}
		return nil
	}
	sc.cancels = attached
	sc.publishLocked()
	sc.mu.Unlock()

	go sc.consumeMeta(gen, metaCh)
	go sc.consumeRoster(gen, rosterCh)
	go sc.consumeReceived(gen, recvCh)
	go sc.consumeSent(gen, sentCh)

	return nil
}

// teardownGroupLocked cancels the current generation's subscriptions and
// resets the group-scoped projection. Bumping the generation first makes
// any late delivery from the old subscriptions fall on the floor.
func (sc *SessionContext) teardownGroupLocked() {
	sc.gen++
	for _, cancel := range sc.cancels {
		cancel()
	}
	sc.cancels = nil
	sc.groupID = ""
	sc.group = nil
	sc.roster = nil
	sc.received = nil
	sc.sent = nil
}

// apply runs mutate under the lock if gen is still current, then pushes a
// fresh snapshot. Stale generations are discarded.
func (sc *SessionContext) apply(gen uint64, mutate func()) {
	sc.mu.Lock()
	if gen != sc.gen || sc.closed {
		sc.mu.Unlock()
		return
	}
	mutate()
	sc.publishLocked()
	sc.mu.Unlock()
}

func (sc *SessionContext) consumeProfile(ch <-chan *domain.Profile) {
	for p := range ch {
		sc.mu.Lock()
		if sc.closed {
			sc.mu.Unlock()
			return
		}
		sc.profile = p
		if p != nil && p.DisplayName != "" && sc.state == StateAuthReadyNoProfile {
			sc.state = StateNoGroupSelected
		}
		sc.publishLocked()
		sc.mu.Unlock()
	}
}

func (sc *SessionContext) consumeMeta(gen uint64, ch <-chan *domain.Group) {
	for g := range ch {
		if g != nil {
			sc.apply(gen, func() { sc.group = g })
			continue
		}
		// Absent: deleted out of band (or already gone at resume).
		sc.groupDeleted(gen)
		return
	}
}

func (sc *SessionContext) consumeRoster(gen uint64, ch <-chan []domain.Membership) {
	for members := range ch {
		members := members
		sc.apply(gen, func() { sc.roster = members })
	}
}

func (sc *SessionContext) consumeReceived(gen uint64, ch <-chan []domain.Compliment) {
	for items := range ch {
		items := items
		sc.apply(gen, func() { sc.received = items })
	}
}

func (sc *SessionContext) consumeSent(gen uint64, ch <-chan []domain.Compliment) {
	for items := range ch {
		items := items
		sc.apply(gen, func() { sc.sent = items })
	}
}

// groupDeleted handles the group-deleted signal for generation gen: fall
// back to NoGroupSelected, forget the remembered id, and raise exactly
// one notice. A stale generation is ignored.
func (sc *SessionContext) groupDeleted(gen uint64) {
	sc.mu.Lock()
	if gen != sc.gen || sc.closed {
		sc.mu.Unlock()
		return
	}
	name := ""
	if sc.group != nil {
		name = sc.group.Name
	}
	sc.teardownGroupLocked()
	sc.state = StateNoGroupSelected
	sc.publishLocked()
	sc.mu.Unlock()

	if err := sc.memory.Clear(); err != nil {
		log.Warn().Err(err).Msg("clearing group memory failed")
	}
	msg := "This group was deleted."
	if name != "" {
		msg = "The group \"" + name + "\" was deleted."
	}
	sc.notify(Notice{Kind: NoticeGroupDeleted, Message: msg})
}

func (sc *SessionContext) setState(s State) {
	sc.mu.Lock()
	sc.state = s
	sc.publishLocked()
	sc.mu.Unlock()
}

func (sc *SessionContext) emit() {
	sc.mu.Lock()
	sc.publishLocked()
	sc.mu.Unlock()
}

func (sc *SessionContext) snapshotLocked() Snapshot {
	return Snapshot{
		State:    sc.state,
		UserID:   sc.userID,
		Profile:  sc.profile,
		Group:    sc.group,
		Roster:   sc.roster,
		Received: sc.received,
		Sent:     sc.sent,
	}
}

// publishLocked delivers the current projection on the coalescing updates
// channel: when the consumer lags, the stale pending snapshot is replaced
// by the new one. The caller holds sc.mu, which serializes delivery with
// every other publish and with Close — snapshots arrive in build order
// and a send can never hit a closed channel. Both channel operations are
// non-blocking, so the lock is never held across a wait.
func (sc *SessionContext) publishLocked() {
	if sc.closed {
		return
	}
	snap := sc.snapshotLocked()
	for {
		select {
		case sc.updates <- snap:
			return
		default:
		}
		select {
		case <-sc.updates:
		default:
		}
	}
}

// notify delivers a notice without blocking; an unread backlog drops the
// oldest entries first.
func (sc *SessionContext) notify(n Notice) {
	for {
		select {
		case sc.notices <- n:
			return
		default:
		}
		select {
		case <-sc.notices:
		default:
		}
	}
}
