package resolver

import (
	"context"
	"slices"
	"time"

	"github.com/IvanBrykalov/srvclient/record"
)

// Static always answers with the same records, whatever the name. It is
// mostly intended for tests, benchmarks and development setups without DNS.
type Static struct {
	Records []record.SRV

	// TTL overrides the records' own TTLs when positive. Otherwise the
	// smallest record TTL decides validity.
	TTL time.Duration

	// Err, if set, is returned instead of the records.
	Err error

	// Now overrides the time source (tests). Nil => time.Now.
	Now func() time.Time
}

// LookupSRV implements Resolver. The returned slice is a copy.
func (s *Static) LookupSRV(ctx context.Context, _ string) ([]record.SRV, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if s.Err != nil {
		return nil, time.Time{}, s.Err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = record.MinTTL(s.Records)
	}
	return slices.Clone(s.Records), now.Add(ttl), nil
}

var _ Resolver = (*Static)(nil)
