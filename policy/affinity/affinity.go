// Package affinity implements the Affinity target selection policy.
package affinity

import (
	"context"
	"iter"
	"net/url"
	"sync/atomic"

	"github.com/IvanBrykalov/srvclient/cache"
	"github.com/IvanBrykalov/srvclient/policy"
)

// Policy prefers the last target an operation succeeded on. Other targets
// follow in discovery order. Failures never penalize a target; affinity
// only strengthens on success.
//
// The remembered address is swapped atomically, so concurrent executions may
// read and update it without locking.
type Policy struct {
	last atomic.Pointer[url.URL]
}

// New returns an Affinity policy with no remembered target.
func New() *Policy { return &Policy{} }

// RefreshCache caches the service's addresses in discovery order.
func (p *Policy) RefreshCache(ctx context.Context, src policy.Source) (*cache.Cache[*url.URL], error) {
	uris, validUntil, err := src.URIs(ctx)
	if err != nil {
		return nil, err
	}
	return cache.New(uris, validUntil), nil
}

// Order yields the preferred index first, then 0..n-1 skipping it.
// The preferred index is 0 when nothing succeeded yet or the remembered
// target is not part of items (affinity does not survive a refresh that
// drops the old target).
func (p *Policy) Order(items []*url.URL) iter.Seq[int] {
	return preferring(len(items), indexOf(items, p.last.Load()))
}

// URI is the identity projection: Affinity caches addresses directly.
func (p *Policy) URI(item *url.URL) *url.URL { return item }

// NoteSuccess remembers addr as the preferred target.
func (p *Policy) NoteSuccess(addr *url.URL) { p.last.Store(addr) }

// NoteFailure is a no-op for Affinity.
func (p *Policy) NoteFailure(_ *url.URL) {}

// Last returns the remembered target, or nil.
func (p *Policy) Last() *url.URL { return p.last.Load() }

func indexOf(items []*url.URL, want *url.URL) int {
	if want == nil {
		return 0
	}
	s := want.String()
	for i, u := range items {
		if u == want || u.String() == s {
			return i
		}
	}
	return 0
}

func preferring(n, preferred int) iter.Seq[int] {
	return func(yield func(int) bool) {
		if n == 0 {
			return
		}
		if !yield(preferred) {
			return
		}
		for i := 0; i < n; i++ {
			if i == preferred {
				continue
			}
			if !yield(i) {
				return
			}
		}
	}
}

// Compile-time check: ensure Policy implements policy.Policy.
var _ policy.Policy[*url.URL] = (*Policy)(nil)
