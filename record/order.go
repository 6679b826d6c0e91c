package record

import (
	"math/rand/v2"
	"slices"
)

// Key sorts SRV records per RFC 2782: ascending by priority, then descending
// by weight multiplied by a random draw.
//
// This is tie-break randomization proportional to weight, not the RFC's
// cumulative-weight draw without replacement. Distribution under repeated
// orderings differs slightly from the RFC procedure.
type Key struct {
	Priority uint16
	Weighted uint32
}

// SortKey builds the key for one record given a fresh random draw.
func SortKey(priority, weight, draw uint16) Key {
	return Key{Priority: priority, Weighted: uint32(weight) * uint32(draw)}
}

// Compare orders keys: lower priority first, higher weighted value first.
func (k Key) Compare(o Key) int {
	switch {
	case k.Priority < o.Priority:
		return -1
	case k.Priority > o.Priority:
		return 1
	case k.Weighted > o.Weighted:
		return -1
	case k.Weighted < o.Weighted:
		return 1
	}
	return 0
}

// Draw yields a random uint16. Implementations must be safe for the caller's
// concurrency; a nil Draw means the goroutine-safe global source.
type Draw func() uint16

// DefaultDraw uses math/rand/v2's global source.
func DefaultDraw() uint16 { return uint16(rand.Uint32()) }

// OrderIndices returns 0..n-1 sorted by SortKey. One draw is taken per index,
// each call, so repeated orderings re-shuffle weighted ties.
func OrderIndices(n int, priority, weight func(i int) uint16, draw Draw) []int {
	if draw == nil {
		draw = DefaultDraw
	}
	keys := make([]Key, n)
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		keys[i] = SortKey(priority(i), weight(i), draw())
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return keys[a].Compare(keys[b]) })
	return idx
}

// Order sorts records in place by priority and randomized weight.
// Resolver backends and callers that skip the policy layer use it directly.
func Order(records []SRV, draw Draw) {
	idx := OrderIndices(len(records),
		func(i int) uint16 { return records[i].Priority },
		func(i int) uint16 { return records[i].Weight },
		draw)
	sorted := make([]SRV, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}
