// Package rfc2782 implements the RFC 2782 target selection policy.
package rfc2782

import (
	"context"
	"iter"
	"math/rand/v2"
	"net/url"
	"slices"

	"github.com/IvanBrykalov/srvclient/cache"
	"github.com/IvanBrykalov/srvclient/internal/util"
	"github.com/IvanBrykalov/srvclient/policy"
	"github.com/IvanBrykalov/srvclient/record"
)

// Item is an address together with the SRV fields that drive ordering.
type Item struct {
	URI      *url.URL
	Priority uint16
	Weight   uint16
}

// Policy orders targets by ascending priority, reshuffling each priority tier
// by weight on every ordering. It keeps no feedback state, so it never drifts
// toward a target the way Affinity does.
type Policy struct {
	draw record.Draw
}

// New returns a Policy drawing from math/rand/v2's global source.
func New() *Policy { return &Policy{draw: record.DefaultDraw} }

// NewWithSource returns a Policy drawing from src (e.g. a seeded PCG for
// reproducible orderings). src is locked internally.
func NewWithSource(src rand.Source) *Policy {
	r := rand.New(util.NewLockedSource(src))
	return &Policy{draw: func() uint16 { return uint16(r.Uint32()) }}
}

// RefreshCache caches every record with its address. One unparsable record
// fails the whole refresh.
func (p *Policy) RefreshCache(ctx context.Context, src policy.Source) (*cache.Cache[Item], error) {
	recs, validUntil, err := src.Records(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		u, err := src.URI(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{URI: u, Priority: rec.Priority, Weight: rec.Weight})
	}
	return cache.New(items, validUntil), nil
}

// Order sorts indices ascending by priority and, within a priority, descending
// by weight times a fresh random draw per item.
func (p *Policy) Order(items []Item) iter.Seq[int] {
	idx := record.OrderIndices(len(items),
		func(i int) uint16 { return items[i].Priority },
		func(i int) uint16 { return items[i].Weight },
		p.draw)
	return slices.Values(idx)
}

// URI returns the item's address.
func (p *Policy) URI(item Item) *url.URL { return item.URI }

// NoteSuccess is a no-op.
func (p *Policy) NoteSuccess(_ *url.URL) {}

// NoteFailure is a no-op.
func (p *Policy) NoteFailure(_ *url.URL) {}

// Compile-time check: ensure Policy implements policy.Policy.
var _ policy.Policy[Item] = (*Policy)(nil)
