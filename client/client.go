package client

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/srvclient/cache"
	"github.com/IvanBrykalov/srvclient/internal/singleflight"
	"github.com/IvanBrykalov/srvclient/internal/util"
	"github.com/IvanBrykalov/srvclient/policy"
	"github.com/IvanBrykalov/srvclient/policy/affinity"
	"github.com/IvanBrykalov/srvclient/record"
	"github.com/IvanBrykalov/srvclient/resolver"
	"github.com/IvanBrykalov/srvclient/resolver/netdns"
)

// Client discovers the targets of one SRV name and runs operations against
// them. I is the policy's cached item type.
//
// A Client is safe for concurrent use. The cache slot holds an immutable
// snapshot; a refresh builds a new one and swaps the pointer.
type Client[I any] struct {
	opt Options[I]

	slot atomic.Pointer[cache.Cache[I]]
	sf   singleflight.Group[string, *cache.Cache[I]]

	stats counters
}

type counters struct {
	refreshes     util.PaddedAtomicUint64
	refreshErrors util.PaddedAtomicUint64
	attempts      util.PaddedAtomicUint64
	successes     util.PaddedAtomicUint64
	failures      util.PaddedAtomicUint64
}

// Stats is a point-in-time view of client counters.
type Stats struct {
	Refreshes     uint64
	RefreshErrors uint64
	Attempts      uint64
	Successes     uint64
	Failures      uint64
}

// New returns a client for name using the system resolver and the
// affinity policy.
func New(name string) *Client[*url.URL] {
	return NewWithOptions(Options[*url.URL]{
		ServiceName: name,
		Policy:      affinity.New(),
	})
}

// NewWithResolver is New with a caller-supplied resolver.
func NewWithResolver(name string, r resolver.Resolver) *Client[*url.URL] {
	return NewWithOptions(Options[*url.URL]{
		ServiceName: name,
		Resolver:    r,
		Policy:      affinity.New(),
	})
}

// NewWithOptions builds a client from opt, applying defaults for zero
// fields. It panics if opt.Policy is nil.
func NewWithOptions[I any](opt Options[I]) *Client[I] {
	if opt.Policy == nil {
		panic("srvclient: Options.Policy must not be nil")
	}
	if opt.Resolver == nil {
		opt.Resolver = netdns.New(nil, 0)
	}
	if opt.Scheme == "" {
		opt.Scheme = DefaultScheme
	}
	if opt.PathPrefix == "" {
		opt.PathPrefix = DefaultPathPrefix
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = systemClock{}
	}
	return &Client[I]{opt: opt}
}

// ---- Builders ----
//
// Every builder returns a new client with an empty cache. The receiver is
// left untouched and keeps working.

// WithServiceName returns a client for another SRV name.
func (c *Client[I]) WithServiceName(name string) *Client[I] {
	opt := c.opt
	opt.ServiceName = name
	return NewWithOptions(opt)
}

// WithResolver returns a client that looks names up through r.
func (c *Client[I]) WithResolver(r resolver.Resolver) *Client[I] {
	opt := c.opt
	opt.Resolver = r
	return NewWithOptions(opt)
}

// WithScheme returns a client that builds addresses with scheme.
func (c *Client[I]) WithScheme(scheme string) *Client[I] {
	opt := c.opt
	opt.Scheme = scheme
	return NewWithOptions(opt)
}

// WithPathPrefix returns a client that builds addresses with prefix as path.
func (c *Client[I]) WithPathPrefix(prefix string) *Client[I] {
	opt := c.opt
	opt.PathPrefix = prefix
	return NewWithOptions(opt)
}

// WithLogger returns a client that logs through l.
func (c *Client[I]) WithLogger(l *zap.Logger) *Client[I] {
	opt := c.opt
	opt.Logger = l
	return NewWithOptions(opt)
}

// WithMetrics returns a client that reports through m.
func (c *Client[I]) WithMetrics(m Metrics) *Client[I] {
	opt := c.opt
	opt.Metrics = m
	return NewWithOptions(opt)
}

// WithPolicy returns a client using p. The item type may change, so this is
// a function rather than a method.
func WithPolicy[I, J any](c *Client[I], p policy.Policy[J]) *Client[J] {
	o := c.opt
	return NewWithOptions(Options[J]{
		ServiceName: o.ServiceName,
		Resolver:    o.Resolver,
		Policy:      p,
		Scheme:      o.Scheme,
		PathPrefix:  o.PathPrefix,
		Logger:      o.Logger,
		Metrics:     o.Metrics,
		Clock:       o.Clock,
	})
}

// ---- Accessors ----

func (c *Client[I]) ServiceName() string         { return c.opt.ServiceName }
func (c *Client[I]) Resolver() resolver.Resolver { return c.opt.Resolver }
func (c *Client[I]) Policy() policy.Policy[I]    { return c.opt.Policy }
func (c *Client[I]) Scheme() string              { return c.opt.Scheme }
func (c *Client[I]) PathPrefix() string          { return c.opt.PathPrefix }
func (c *Client[I]) Logger() *zap.Logger         { return c.opt.Logger }

// Snapshot returns the installed cache snapshot, or nil before the first
// successful refresh. It may be expired.
func (c *Client[I]) Snapshot() *cache.Cache[I] { return c.slot.Load() }

// Stats returns a snapshot of the client counters.
func (c *Client[I]) Stats() Stats {
	return Stats{
		Refreshes:     c.stats.refreshes.Load(),
		RefreshErrors: c.stats.refreshErrors.Load(),
		Attempts:      c.stats.attempts.Load(),
		Successes:     c.stats.successes.Load(),
		Failures:      c.stats.failures.Load(),
	}
}

// ---- policy.Source ----

var _ policy.Source = (*Client[*url.URL])(nil)

// Records looks up the service name and returns the records in
// RFC 2782-approximate order.
func (c *Client[I]) Records(ctx context.Context) ([]record.SRV, time.Time, error) {
	recs, validUntil, err := resolver.Lookup(ctx, c.opt.Resolver, c.opt.ServiceName)
	if err != nil {
		return nil, time.Time{}, &LookupError{Name: c.opt.ServiceName, Err: err}
	}
	return recs, validUntil, nil
}

// URI builds the address for rec with the client's scheme and path prefix.
func (c *Client[I]) URI(rec record.SRV) (*url.URL, error) {
	u, err := record.URI(rec, c.opt.Scheme, c.opt.PathPrefix)
	if err != nil {
		return nil, &ParseError{Record: rec, Err: err}
	}
	return u, nil
}

// URIs is Records followed by URI on each record. Any parse failure fails
// the whole call.
func (c *Client[I]) URIs(ctx context.Context) ([]*url.URL, time.Time, error) {
	recs, validUntil, err := c.Records(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	out := make([]*url.URL, 0, len(recs))
	for _, r := range recs {
		u, err := c.URI(r)
		if err != nil {
			return nil, time.Time{}, err
		}
		out = append(out, u)
	}
	return out, validUntil, nil
}

// ---- Cache ----

// Refresh rebuilds the cache unconditionally. Concurrent refreshes of the
// same client share one lookup.
func (c *Client[I]) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx, true)
	return err
}

// validCache returns the current snapshot if it is still valid, otherwise
// refreshes and returns the new one.
func (c *Client[I]) validCache(ctx context.Context) (*cache.Cache[I], error) {
	if snap := c.slot.Load(); snap.ValidAt(c.opt.Clock.Now()) {
		c.opt.Metrics.CacheHit()
		return snap, nil
	}
	c.opt.Metrics.CacheMiss()
	return c.refresh(ctx, false)
}

// refreshTimeout bounds a shared lookup, which no single caller can cancel.
const refreshTimeout = 30 * time.Second

// refresh installs a new snapshot. Unless force is set, a snapshot that
// became valid while the caller was on its way here is returned as is.
//
// The lookup is shared by every caller waiting on it. Each caller stops
// waiting when its own ctx ends, with its own ctx.Err().
func (c *Client[I]) refresh(ctx context.Context, force bool) (*cache.Cache[I], error) {
	snap, err, _ := c.sf.Do(ctx, c.opt.ServiceName, func(ctx context.Context) (*cache.Cache[I], error) {
		if cur := c.slot.Load(); !force && cur.ValidAt(c.opt.Clock.Now()) {
			return cur, nil
		}
		ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()

		start := time.Now()
		snap, err := c.opt.Policy.RefreshCache(ctx, c)
		took := time.Since(start)
		c.stats.refreshes.Add(1)
		c.opt.Metrics.Refresh(took, err)
		if err != nil {
			c.stats.refreshErrors.Add(1)
			c.opt.Logger.Warn("SRV cache refresh failed",
				zap.String("service", c.opt.ServiceName),
				zap.Duration("took", took),
				zap.Error(err),
			)
			return nil, err
		}
		if snap == nil {
			snap = cache.New[I](nil, time.Time{})
		}
		// Installed before the flight ends so late arrivals see it as valid.
		c.slot.Store(snap)
		c.opt.Metrics.Targets(snap.Len())
		c.opt.Logger.Debug("SRV cache refreshed",
			zap.String("service", c.opt.ServiceName),
			zap.Int("targets", snap.Len()),
			zap.Time("expires_at", snap.ExpiresAt()),
			zap.Duration("took", took),
		)
		return snap, nil
	})
	return snap, err
}
