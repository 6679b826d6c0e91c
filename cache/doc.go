// Package cache provides the time-bounded, immutable snapshot of selectable
// SRV targets used by every read path of the client.
//
// Design
//
//   - Immutability: a Cache is built once from a resolver answer and never
//     mutated. Refreshing produces a new Cache that replaces the old one in
//     the client's slot (an atomic pointer swap). Readers that loaded the old
//     snapshot keep using it until they drop it.
//
//   - Validity: a snapshot is valid while it has at least one item and the
//     current time has not passed its expiration. The expiration is derived
//     from the smallest TTL among the records it was built from.
//
//   - Zero value: an empty, already expired Cache; a nil *Cache behaves the
//     same. The client's first access therefore always triggers a refresh.
//
// Basic usage
//
//	snap := cache.New([]string{"a", "b"}, time.Now().Add(30*time.Second))
//	if snap.Valid() {
//	    for _, it := range snap.Items() {
//	        _ = it
//	    }
//	}
//
// Swapping snapshots
//
//	var slot atomic.Pointer[cache.Cache[string]]
//	if cur := slot.Load(); !cur.Valid() {
//	    slot.Store(cache.New(fresh, validUntil))
//	}
package cache
