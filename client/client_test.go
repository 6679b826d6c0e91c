package client

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/srvclient/policy/affinity"
	"github.com/IvanBrykalov/srvclient/policy/rfc2782"
	"github.com/IvanBrykalov/srvclient/record"
	"github.com/IvanBrykalov/srvclient/resolver"
)

// --- test doubles ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingResolver answers with recs, valid for ttl from the fake clock, and
// counts lookups.
type countingResolver struct {
	clock *fakeClock
	recs  []record.SRV
	ttl   time.Duration
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (r *countingResolver) LookupSRV(ctx context.Context, _ string) ([]record.SRV, time.Time, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, time.Time{}, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, time.Time{}, r.err
	}
	out := make([]record.SRV, len(r.recs))
	copy(out, r.recs)
	return out, r.clock.Now().Add(r.ttl), nil
}

type recordingMetrics struct {
	hits, misses, refreshes, refreshErrs atomic.Int64
	successes, failures                  atomic.Int64
	targets                              atomic.Int64
}

func (m *recordingMetrics) CacheHit()  { m.hits.Add(1) }
func (m *recordingMetrics) CacheMiss() { m.misses.Add(1) }
func (m *recordingMetrics) Refresh(_ time.Duration, err error) {
	m.refreshes.Add(1)
	if err != nil {
		m.refreshErrs.Add(1)
	}
}
func (m *recordingMetrics) Targets(n int) { m.targets.Store(int64(n)) }
func (m *recordingMetrics) Attempt(o Outcome, _ time.Duration) {
	if o == OutcomeSuccess {
		m.successes.Add(1)
		return
	}
	m.failures.Add(1)
}

func srv(target string, port uint16) record.SRV {
	return record.SRV{Target: target, Port: port, TTL: time.Minute}
}

// threeTargets returns a client over a.test, b.test and c.test, all with the
// same priority and zero weight, so the resolver keeps their order.
func threeTargets(t *testing.T) (*Client[*url.URL], *countingResolver, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	r := &countingResolver{
		clock: clk,
		recs:  []record.SRV{srv("a.test.", 8001), srv("b.test.", 8002), srv("c.test.", 8003)},
		ttl:   time.Minute,
	}
	c := NewWithOptions(Options[*url.URL]{
		ServiceName: "_http._tcp.test",
		Resolver:    r,
		Policy:      affinity.New(),
		Scheme:      "http",
		Clock:       clk,
	})
	return c, r, clk
}

// --- tests ---

func TestNewWithOptions_Defaults(t *testing.T) {
	t.Parallel()

	c := New("_http._tcp.example.com")
	assert.Equal(t, "_http._tcp.example.com", c.ServiceName())
	assert.Equal(t, DefaultScheme, c.Scheme())
	assert.Equal(t, DefaultPathPrefix, c.PathPrefix())
	assert.NotNil(t, c.Resolver())
	assert.NotNil(t, c.Logger())
	assert.IsType(t, &affinity.Policy{}, c.Policy())
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestNewWithOptions_NilPolicyPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewWithOptions(Options[*url.URL]{ServiceName: "x"})
	})
}

func TestClient_URIs(t *testing.T) {
	t.Parallel()

	c, _, _ := threeTargets(t)
	c = c.WithPathPrefix("/api")
	uris, until, err := c.URIs(context.Background())
	require.NoError(t, err)
	require.Len(t, uris, 3)
	assert.Equal(t, "http://a.test:8001/api", uris[0].String())
	assert.Equal(t, "http://c.test:8003/api", uris[2].String())
	assert.False(t, until.IsZero())
}

func TestClient_RefreshReusesUntilExpiry(t *testing.T) {
	t.Parallel()

	c, r, clk := threeTargets(t)
	m := &recordingMetrics{}
	c = c.WithMetrics(m)
	op := func(context.Context, *url.URL) (int, error) { return 1, nil }

	for range 3 {
		_, err := Execute(context.Background(), c, Serial, op)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), r.calls.Load())
	assert.Equal(t, int64(1), m.misses.Load())
	assert.Equal(t, int64(2), m.hits.Load())
	assert.Equal(t, int64(3), m.targets.Load())

	// Exactly at expiry the snapshot is still valid.
	clk.Advance(time.Minute)
	_, err := Execute(context.Background(), c, Serial, op)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.calls.Load())

	clk.Advance(time.Nanosecond)
	_, err = Execute(context.Background(), c, Serial, op)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.calls.Load())
	assert.Equal(t, uint64(2), c.Stats().Refreshes)
}

func TestClient_LookupErrorAbortsExecution(t *testing.T) {
	t.Parallel()

	boom := errors.New("servfail")
	c := NewWithResolver("_x._tcp.test", &resolver.Static{Err: boom})
	m := &recordingMetrics{}
	c = c.WithMetrics(m)

	var called atomic.Bool
	_, err := Execute(context.Background(), c, Serial, func(context.Context, *url.URL) (struct{}, error) {
		called.Store(true)
		return struct{}{}, nil
	})

	var le *LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "_x._tcp.test", le.Name)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called.Load())
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, int64(1), m.refreshErrs.Load())
	assert.Equal(t, uint64(1), c.Stats().RefreshErrors)
}

func TestClient_ParseErrorFailsWholeRefresh(t *testing.T) {
	t.Parallel()

	c := NewWithResolver("_x._tcp.test", &resolver.Static{Records: []record.SRV{
		srv("good.test.", 80),
		srv("bad host.test.", 80),
	}})

	err := c.Refresh(context.Background())
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad host.test.", pe.Record.Target)
	assert.Nil(t, c.Snapshot())

	// rfc2782 goes through the same per-record parsing.
	w := WithPolicy(c, rfc2782.New())
	require.ErrorAs(t, w.Refresh(context.Background()), &pe)
}

func TestClient_EmptyAnswerIsNoTargets(t *testing.T) {
	t.Parallel()

	c := NewWithResolver("_x._tcp.test", &resolver.Static{TTL: time.Minute})
	var called atomic.Bool
	op := func(context.Context, *url.URL) (int, error) {
		called.Store(true)
		return 0, nil
	}

	for _, mode := range []Execution{Serial, Concurrent} {
		_, err := Execute(context.Background(), c, mode, op)
		assert.ErrorIs(t, err, ErrNoTargets, mode.String())
	}
	assert.False(t, called.Load())
	// An empty snapshot is never valid, so each execution looked up again.
	assert.Equal(t, uint64(2), c.Stats().Refreshes)
}

func TestClient_BuildersResetCache(t *testing.T) {
	t.Parallel()

	c, r, _ := threeTargets(t)
	require.NoError(t, c.Refresh(context.Background()))
	require.NotNil(t, c.Snapshot())

	assert.Nil(t, c.WithServiceName("_other._tcp.test").Snapshot())
	assert.Nil(t, c.WithResolver(r).Snapshot())
	assert.Nil(t, c.WithScheme("https").Snapshot())
	assert.Nil(t, c.WithPathPrefix("/v2").Snapshot())
	assert.Nil(t, c.WithLogger(nil).Snapshot())
	assert.Nil(t, c.WithMetrics(nil).Snapshot())
	assert.Nil(t, WithPolicy(c, rfc2782.New()).Snapshot())

	// The original keeps its snapshot.
	assert.NotNil(t, c.Snapshot())

	// New settings show up in the next refresh.
	v2 := c.WithScheme("https").WithPathPrefix("/v2")
	uris, _, err := v2.URIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://a.test:8001/v2", uris[0].String())
}

func TestClient_RefreshCoalesces(t *testing.T) {
	t.Parallel()

	c, r, _ := threeTargets(t)
	r.delay = 30 * time.Millisecond

	var eg errgroup.Group
	for range 16 {
		eg.Go(func() error {
			_, err := Execute(context.Background(), c, Serial, func(context.Context, *url.URL) (int, error) {
				return 1, nil
			})
			return err
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int64(1), r.calls.Load())
	assert.Equal(t, uint64(16), c.Stats().Successes)
}

// The caller that started a refresh gives up; another caller sharing that
// refresh still gets the targets instead of the first caller's cancellation.
func TestClient_RefreshSurvivesStarterCancel(t *testing.T) {
	t.Parallel()

	c, r, _ := threeTargets(t)
	r.delay = 100 * time.Millisecond
	op := func(context.Context, *url.URL) (int, error) { return 1, nil }

	ctx, cancel := context.WithCancel(context.Background())
	starter := make(chan error, 1)
	go func() {
		_, err := Execute(ctx, c, Serial, op)
		starter <- err
	}()
	time.Sleep(20 * time.Millisecond) // starter is inside the lookup

	other := make(chan error, 1)
	go func() {
		_, err := Execute(context.Background(), c, Serial, op)
		other <- err
	}()
	time.Sleep(20 * time.Millisecond) // other joined the same lookup
	cancel()

	err := <-starter
	assert.ErrorIs(t, err, context.Canceled)
	var le *LookupError
	assert.False(t, errors.As(err, &le), "own cancellation is not a lookup failure")

	require.NoError(t, <-other)
	assert.Equal(t, int64(1), r.calls.Load())
	assert.Equal(t, 3, c.Snapshot().Len())
	assert.Zero(t, c.Stats().RefreshErrors)
}

func TestParseExecution(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Execution{
		"":           Serial,
		"serial":     Serial,
		"Concurrent": Concurrent,
		" SERIAL ":   Serial,
	} {
		got, err := ParseExecution(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseExecution("parallel")
	assert.Error(t, err)
	assert.Equal(t, "Execution(7)", Execution(7).String())
}
