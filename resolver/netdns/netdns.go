// Package netdns implements resolver.Resolver on top of the standard library's
// net.Resolver (the system resolver, or the pure Go one).
//
// net.Resolver does not expose record TTLs, so results are considered valid
// for a fixed duration chosen at construction.
package netdns

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/IvanBrykalov/srvclient/record"
	"github.com/IvanBrykalov/srvclient/resolver"
)

// DefaultTTL is used when New receives a non-positive ttl.
const DefaultTTL = 60 * time.Second

// Resolver looks up SRV records through a *net.Resolver.
type Resolver struct {
	r   *net.Resolver
	ttl time.Duration
	now func() time.Time
}

// New returns a Resolver using r. If r is nil, net.DefaultResolver is used.
// ttl bounds how long results may be cached (<= 0 => DefaultTTL).
func New(r *net.Resolver, ttl time.Duration) *Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{r: r, ttl: ttl, now: time.Now}
}

// LookupSRV queries name directly (no _service._proto composition).
func (r *Resolver) LookupSRV(ctx context.Context, name string) ([]record.SRV, time.Time, error) {
	_, addrs, err := r.r.LookupSRV(ctx, "", "", name)
	if err != nil {
		return nil, time.Time{}, errors.WithMessagef(err, "netdns: SRV lookup %s", name)
	}
	recs := make([]record.SRV, 0, len(addrs))
	for _, a := range addrs {
		recs = append(recs, record.SRV{
			Target:   a.Target,
			Port:     a.Port,
			Priority: a.Priority,
			Weight:   a.Weight,
			TTL:      r.ttl,
		})
	}
	return recs, r.now().Add(r.ttl), nil
}

var _ resolver.Resolver = (*Resolver)(nil)
