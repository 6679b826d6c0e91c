// Package policy defines how a client populates its cache and orders SRV
// targets for an attempt sequence. Implementations live in subpackages
// (affinity, rfc2782).
package policy

import (
	"context"
	"iter"
	"net/url"
	"time"

	"github.com/IvanBrykalov/srvclient/cache"
	"github.com/IvanBrykalov/srvclient/record"
)

// Source is what a policy may ask of the client when refreshing its cache.
// The client implements it using its resolver, service name, scheme and
// path prefix.
type Source interface {
	// Records looks up the service's SRV records, ordered by priority and
	// randomized weight, with the instant until which they are valid.
	Records(ctx context.Context) ([]record.SRV, time.Time, error)
	// URI turns a record into a callable address.
	URI(rec record.SRV) (*url.URL, error)
	// URIs looks up the records and turns every one of them into an address.
	// It fails as a whole if any record cannot be turned into an address.
	URIs(ctx context.Context) ([]*url.URL, time.Time, error)
}

// Policy is a target selection strategy over cache items of type I.
//
// Semantics:
//   - RefreshCache builds a fresh snapshot through the Source. The snapshot
//     expires no later than the least fresh record it was built from.
//   - Order yields indices into items in the order attempts should be made.
//     It must not copy or reorder items and yields each index at most once.
//   - NoteSuccess/NoteFailure are feedback hooks called once per finished
//     attempt. They must not block.
//
// All methods are safe for concurrent use.
type Policy[I any] interface {
	RefreshCache(ctx context.Context, src Source) (*cache.Cache[I], error)
	Order(items []I) iter.Seq[int]
	URI(item I) *url.URL
	NoteSuccess(addr *url.URL)
	NoteFailure(addr *url.URL)
}
