// Package services – live subscriptions
//
// This file implements the shared machinery behind every Subscribe*
// method. A subscription couples a broker topic with a fetch function:
// the current result set is delivered immediately, and after every change
// notification the query is re-run against the database and the fresh
// snapshot is pushed. The database stays the single source of truth; a
// delivered snapshot is never locally mutated.
package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kudoslab/go-kudos-backend/internal/stream"
)

// CancelFunc mirrors stream.CancelFunc for callers of the Subscribe*
// methods.
type CancelFunc = stream.CancelFunc

// watch subscribes to topic and returns a channel of query snapshots.
//
// Delivery contract:
//   - The current snapshot is fetched up front; a failing initial fetch
//     fails the subscription (ReadError semantics).
//   - Each later change notification triggers a re-fetch. Notifications
//     are coalesced by the broker, so consecutive snapshots observed on
//     the channel advance in the store's commit order.
//   - A re-fetch error is logged and skipped; the subscription stays
//     live.
//   - The channel is closed after cancellation (or context end).
func watch[T any](ctx context.Context, b *stream.Broker, topic stream.Topic, fetch func(context.Context) (T, error)) (<-chan T, CancelFunc, error) {
	first, err := fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	ticks, unsubscribe := b.Subscribe(topic)
	out := make(chan T, 1)
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}

	go func() {
		defer close(out)

		deliver := func(v T) bool {
			select {
			case out <- v:
				return true
			case <-done:
				return false
			case <-ctx.Done():
				return false
			}
		}

		if !deliver(first) {
			cancel()
			return
		}
		for {
			select {
			case _, ok := <-ticks:
				if !ok {
					cancel()
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			}

			next, err := fetch(ctx)
			if err != nil {
				log.Warn().Err(err).Str("topic", string(topic)).Msg("subscription re-fetch failed")
				continue
			}
			if !deliver(next) {
				cancel()
				return
			}
		}
	}()

	return out, cancel, nil
}
