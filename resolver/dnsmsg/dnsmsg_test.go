package dnsmsg

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/srvclient/resolver"
)

// zone maps an SRV owner name to its records in presentation format.
type zone map[string][]string

func (z zone) handler(t testing.TB) dns.HandlerFunc {
	return func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		lines, ok := z[req.Question[0].Name]
		if !ok {
			m.SetRcode(req, dns.RcodeNameError)
		}
		for _, l := range lines {
			rr, err := dns.NewRR(l)
			if err != nil {
				t.Errorf("bad fixture %q: %v", l, err)
				continue
			}
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	}
}

// serve starts an in-process DNS server on a UDP loopback port and returns
// its address.
func serve(t testing.TB, h dns.Handler) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: h, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0) }

func TestLookupSRV_Single(t *testing.T) {
	t.Parallel()

	addr := serve(t, zone{
		"_http._tcp.single.local.": {"_http._tcp.single.local. 300 IN SRV 10 100 8080 primary.single.local."},
	}.handler(t))

	r := New(addr)
	r.Now = fixedNow
	recs, until, err := r.LookupSRV(context.Background(), "_http._tcp.single.local")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "primary.single.local.", recs[0].Target)
	assert.Equal(t, uint16(8080), recs[0].Port)
	assert.Equal(t, uint16(10), recs[0].Priority)
	assert.Equal(t, uint16(100), recs[0].Weight)
	assert.Equal(t, 300*time.Second, recs[0].TTL)
	assert.Equal(t, fixedNow().Add(300*time.Second), until)
}

func TestLookupSRV_MultipleMinTTLAndOrdering(t *testing.T) {
	t.Parallel()

	addr := serve(t, zone{
		"_http._tcp.multi.local.": {
			"_http._tcp.multi.local. 300 IN SRV 10 100 8080 primary.multi.local.",
			"_http._tcp.multi.local. 60 IN SRV 20 50 8081 secondary.multi.local.",
			"_http._tcp.multi.local. 120 IN SRV 10 25 8082 backup.multi.local.",
		},
	}.handler(t))

	r := New(addr)
	r.Now = fixedNow

	recs, until, err := r.LookupSRV(context.Background(), "_http._tcp.multi.local")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, fixedNow().Add(60*time.Second), until, "least fresh record bounds validity")

	ordered, _, err := resolver.Lookup(context.Background(), r, "_http._tcp.multi.local")
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	for i := 1; i < len(ordered); i++ {
		assert.LessOrEqual(t, ordered[i-1].Priority, ordered[i].Priority)
	}
	assert.Equal(t, "secondary.multi.local.", ordered[2].Target)
}

func TestLookupSRV_NXDomain(t *testing.T) {
	t.Parallel()

	addr := serve(t, zone{}.handler(t))
	_, _, err := New(addr).LookupSRV(context.Background(), "_http._tcp.missing.local")
	require.Error(t, err)

	var rc *RcodeError
	require.True(t, errors.As(err, &rc))
	assert.Equal(t, dns.RcodeNameError, rc.Rcode)
}

func TestLookupSRV_EmptyAnswer(t *testing.T) {
	t.Parallel()

	addr := serve(t, zone{"_http._tcp.empty.local.": nil}.handler(t))
	r := New(addr)
	r.Now = fixedNow
	recs, until, err := r.LookupSRV(context.Background(), "_http._tcp.empty.local")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, fixedNow(), until)
}

// The first server is unreachable (no listener on a closed port), the second answers.
func TestLookupSRV_FallsBackToNextServer(t *testing.T) {
	t.Parallel()

	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.LocalAddr().String()
	require.NoError(t, dead.Close())

	addr := serve(t, zone{
		"_http._tcp.single.local.": {"_http._tcp.single.local. 30 IN SRV 1 1 80 a.single.local."},
	}.handler(t))

	r := New(deadAddr, addr)
	r.Timeout = 200 * time.Millisecond
	recs, _, err := r.LookupSRV(context.Background(), "_http._tcp.single.local")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLookupSRV_NoServers(t *testing.T) {
	t.Parallel()
	_, _, err := (&Resolver{}).LookupSRV(context.Background(), "x")
	assert.Error(t, err)
}

func TestNew_DefaultPort(t *testing.T) {
	t.Parallel()
	r := New("10.0.0.1", "10.0.0.2:5353")
	assert.Equal(t, []string{"10.0.0.1:53", "10.0.0.2:5353"}, r.Servers)
}

func TestFromResolvConf(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 127.0.0.1\noptions timeout:3\n"), 0o600))

	r, err := FromResolvConf(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:53"}, r.Servers)
	assert.Equal(t, 3*time.Second, r.Timeout)

	_, err = FromResolvConf(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func BenchmarkLookupSRV(b *testing.B) {
	addr := serve(b, zone{
		"_http._tcp.bench.local.": {
			"_http._tcp.bench.local. 60 IN SRV 10 50 8080 a.bench.local.",
			"_http._tcp.bench.local. 60 IN SRV 10 50 8080 b.bench.local.",
			"_http._tcp.bench.local. 60 IN SRV 20 10 8080 c.bench.local.",
		},
	}.handler(b))
	r := New(addr)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := resolver.Lookup(ctx, r, "_http._tcp.bench.local"); err != nil {
			b.Fatal(err)
		}
	}
}
