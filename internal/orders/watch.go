package orders

import (
	"context"
	"sync"
)

// WatchNew subscribes to the orders collection and calls fn with every
// snapshot together with the orders that were not in the previous one. The
// first snapshot only primes the watcher: its orders are never reported as
// new.
func (s *Store) WatchNew(ctx context.Context, fn func(all, added []Order)) (func(), error) {
	var (
		mu     sync.Mutex
		primed bool
		seen   = map[string]bool{}
	)
	return s.Subscribe(ctx, func(all []Order) {
		mu.Lock()
		defer mu.Unlock()

		var added []Order
		next := make(map[string]bool, len(all))
		for _, o := range all {
			next[o.ID] = true
			if primed && !seen[o.ID] {
				added = append(added, o)
			}
		}
		seen = next
		primed = true
		fn(all, added)
	})
}
