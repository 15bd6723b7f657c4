// Package stream implements the in-process change broker behind all live
// subscriptions. The database remains the single source of truth: the
// broker never carries data, only change notifications for a topic.
// Subscribers react to a notification by re-reading the query they care
// about, so every delivered snapshot reflects committed state and snapshots
// observed through one subscription advance in commit order.
//
// Notifications are coalesced: each subscriber has a one-slot mailbox, and
// a publish into a full mailbox is dropped. The pending notification
// already guarantees the subscriber will observe a state at least as new
// as the one being announced, so a slow consumer can never block a
// publisher and never misses the final state.
package stream

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Topic identifies one logical query whose result set can change.
type Topic string

// CancelFunc releases a live subscription. It is idempotent and must be
// invoked before re-subscribing with different keys (and before the owning
// scope ends); a leaked subscription keeps delivering stale-keyed
// snapshots, which shows up as cross-group data bleed.
type CancelFunc func()

// ProfileTopic is the topic for one identity's profile document.
func ProfileTopic(userID string) Topic { return Topic("profile:" + userID) }

// GroupTopic is the topic for a group's metadata (creation and deletion).
func GroupTopic(groupID string) Topic { return Topic("group:" + groupID) }

// RosterTopic is the topic for a group's membership roster.
func RosterTopic(groupID string) Topic { return Topic("roster:" + groupID) }

// LedgerTopic is the topic for all compliments within a group. Both the
// received and the sent views of every member key off this one topic;
// filtering happens at re-query time.
func LedgerTopic(groupID string) Topic { return Topic("ledger:" + groupID) }

// subscribers gauges the number of live broker subscriptions by topic kind.
var subscribers = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "stream_subscribers",
		Help: "Current number of live change-feed subscriptions.",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(subscribers)
}

// kind extracts the topic prefix ("profile", "roster", ...) for metrics,
// keeping label cardinality bounded.
func kind(t Topic) string {
	for i := 0; i < len(t); i++ {
		if t[i] == ':' {
			return string(t[:i])
		}
	}
	return "unknown"
}

// Broker fans change notifications out to per-topic subscribers.
// The zero value is not usable; construct with NewBroker.
// All methods are safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	subs   map[Topic]map[uint64]chan struct{}
	nextID uint64
	closed bool
}

// NewBroker returns an empty broker ready for use.
func NewBroker() *Broker {
	return &Broker{subs: make(map[Topic]map[uint64]chan struct{})}
}

// Subscribe registers interest in a topic. The returned channel receives a
// (coalesced) signal whenever the topic is published. The returned cancel
// function unregisters the subscription and closes the channel; it is
// idempotent. Cancel must be called before re-subscribing with different
// keys, otherwise stale deliveries leak across scopes.
func (b *Broker) Subscribe(topic Topic) (<-chan struct{}, CancelFunc) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	m, ok := b.subs[topic]
	if !ok {
		m = make(map[uint64]chan struct{})
		b.subs[topic] = m
	}
	m[id] = ch
	b.mu.Unlock()

	subscribers.WithLabelValues(kind(topic)).Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			removed := false
			if m, ok := b.subs[topic]; ok {
				if _, live := m[id]; live {
					delete(m, id)
					close(ch)
					removed = true
					if len(m) == 0 {
						delete(b.subs, topic)
					}
				}
			}
			b.mu.Unlock()
			if removed {
				subscribers.WithLabelValues(kind(topic)).Dec()
			}
		})
	}
	return ch, cancel
}

// Publish announces that the result set behind topic has changed. Callers
// must publish only after the corresponding write has committed, so that a
// subscriber's re-read is guaranteed to observe the change.
func (b *Broker) Publish(topic Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
			// Mailbox full: a notification is already pending.
		}
	}
}

// Close shuts the broker down and closes every subscriber channel. Any
// later Subscribe returns an already-closed channel; Publish becomes a
// no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, m := range b.subs {
		for id, ch := range m {
			close(ch)
			delete(m, id)
			subscribers.WithLabelValues(kind(topic)).Dec()
		}
		delete(b.subs, topic)
	}
}
