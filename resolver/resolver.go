// Package resolver defines the SRV lookup capability the client depends on.
//
// The DNS wire protocol lives behind this interface; see the netdns and
// dnsmsg subpackages for concrete backends.
package resolver

import (
	"context"
	"time"

	"github.com/IvanBrykalov/srvclient/record"
)

// Resolver looks up SRV records.
type Resolver interface {
	// LookupSRV returns the records for a fully qualified SRV name
	// (e.g. "_http._tcp.example.com") without sorting or shuffling, along with
	// the instant until which they may be cached.
	LookupSRV(ctx context.Context, name string) ([]record.SRV, time.Time, error)
}

// Func is an easy-to-use implementation of Resolver.
type Func func(ctx context.Context, name string) ([]record.SRV, time.Time, error)

// LookupSRV calls f.
func (f Func) LookupSRV(ctx context.Context, name string) ([]record.SRV, time.Time, error) {
	return f(ctx, name)
}

// Lookup calls r.LookupSRV and orders the result by priority and randomized
// weight per RFC 2782 (see record.Order).
func Lookup(ctx context.Context, r Resolver, name string) ([]record.SRV, time.Time, error) {
	recs, validUntil, err := r.LookupSRV(ctx, name)
	if err != nil {
		return nil, time.Time{}, err
	}
	record.Order(recs, nil)
	return recs, validUntil, nil
}
