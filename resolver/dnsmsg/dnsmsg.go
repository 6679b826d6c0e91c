// Package dnsmsg implements resolver.Resolver by speaking the DNS protocol
// directly (github.com/miekg/dns). Unlike the standard library it reports
// real record TTLs, so cache expiry follows what the zone publishes.
package dnsmsg

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"

	"github.com/IvanBrykalov/srvclient/record"
	"github.com/IvanBrykalov/srvclient/resolver"
)

// DefaultTimeout bounds a single exchange with one server.
const DefaultTimeout = 2 * time.Second

// RcodeError reports a non-success response code (NXDOMAIN, SERVFAIL, ...).
type RcodeError struct {
	Name   string
	Server string
	Rcode  int
}

func (e *RcodeError) Error() string {
	return fmt.Sprintf("dnsmsg: %s from %s: %s", e.Name, e.Server, dns.RcodeToString[e.Rcode])
}

// Resolver sends SRV queries to a fixed list of name servers, trying them in
// order until one answers.
type Resolver struct {
	// Servers are "host:port" addresses.
	Servers []string
	// Timeout per exchange (0 => DefaultTimeout).
	Timeout time.Duration
	// Now overrides the time source (tests). Nil => time.Now.
	Now func() time.Time
}

// New returns a Resolver querying servers. A server without a port gets :53.
func New(servers ...string) *Resolver {
	r := &Resolver{Timeout: DefaultTimeout}
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		r.Servers = append(r.Servers, s)
	}
	return r
}

// FromResolvConf builds a Resolver from a resolv.conf style file
// (usually /etc/resolv.conf).
func FromResolvConf(path string) (*Resolver, error) {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dnsmsg: read %s", path)
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	r := New(servers...)
	if cfg.Timeout > 0 {
		r.Timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return r, nil
}

// LookupSRV implements resolver.Resolver. The cache expiry is the response
// time plus the smallest answer TTL. An empty answer section yields no
// records and an already expired instant.
func (r *Resolver) LookupSRV(ctx context.Context, name string) ([]record.SRV, time.Time, error) {
	if len(r.Servers) == 0 {
		return nil, time.Time{}, errors.New("dnsmsg: no servers configured")
	}

	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	q.RecursionDesired = true

	var lastErr error
	for _, server := range r.Servers {
		resp, err := r.exchange(ctx, q, server)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = &RcodeError{Name: name, Server: server, Rcode: resp.Rcode}
			// NXDOMAIN is authoritative; other servers would agree.
			if resp.Rcode == dns.RcodeNameError {
				break
			}
			continue
		}
		recs := answers(resp)
		return recs, r.now().Add(record.MinTTL(recs)), nil
	}
	return nil, time.Time{}, errors.WithMessagef(lastErr, "dnsmsg: SRV lookup %s", name)
}

// exchange performs the query over UDP, retrying over TCP when truncated.
func (r *Resolver) exchange(ctx context.Context, q *dns.Msg, server string) (*dns.Msg, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	udp := &dns.Client{Net: "udp", Timeout: timeout}
	resp, _, err := udp.ExchangeContext(ctx, q, server)
	if err != nil {
		return nil, errors.Wrapf(err, "exchange with %s", server)
	}
	if !resp.Truncated {
		return resp, nil
	}
	tcp := &dns.Client{Net: "tcp", Timeout: timeout}
	resp, _, err = tcp.ExchangeContext(ctx, q, server)
	if err != nil {
		return nil, errors.Wrapf(err, "tcp exchange with %s", server)
	}
	return resp, nil
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// answers keeps only SRV records from the answer section (CNAMEs etc. are
// followed by the recursive server).
func answers(resp *dns.Msg) []record.SRV {
	recs := make([]record.SRV, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		recs = append(recs, record.SRV{
			Target:   srv.Target,
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
			TTL:      time.Duration(srv.Hdr.Ttl) * time.Second,
		})
	}
	return recs
}

var _ resolver.Resolver = (*Resolver)(nil)
