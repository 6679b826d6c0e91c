// Package record defines the SRV record value produced by resolver backends
// and the RFC 2782 helpers shared by resolvers and policies.
package record

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SRV is a single DNS SRV record. Values are immutable once produced by a
// resolver.
type SRV struct {
	// Target is the host name of the service instance.
	Target string
	// Port is the TCP/UDP port of the service instance.
	Port uint16
	// Priority: lower value = more preferred.
	Priority uint16
	// Weight is the relative selection probability within a priority tier.
	Weight uint16
	// TTL is the time-to-live of the record as returned by DNS.
	TTL time.Duration
}

// HostPort returns "target:port" with the trailing root dot removed.
func (r SRV) HostPort() string {
	return net.JoinHostPort(strings.TrimSuffix(r.Target, "."), strconv.Itoa(int(r.Port)))
}

// String implements fmt.Stringer.
func (r SRV) String() string {
	return fmt.Sprintf("%s prio=%d weight=%d ttl=%s", r.HostPort(), r.Priority, r.Weight, r.TTL)
}

var (
	errEmptyScheme = errors.New("record: empty scheme")
	errEmptyTarget = errors.New("record: empty target")
)

// URI builds a callable address from a record, e.g.
//
//	URI(SRV{Target: "a.example.com.", Port: 8211}, "https", "/")  => https://a.example.com:8211/
//	URI(SRV{Target: "a.example.com", Port: 8211}, "http", "/bar") => http://a.example.com:8211/bar
//
// pathPrefix may carry a query ("/x?y=1"). It must be empty or start with '/'.
func URI(r SRV, scheme, pathPrefix string) (*url.URL, error) {
	if scheme == "" {
		return nil, errEmptyScheme
	}
	if strings.TrimSuffix(r.Target, ".") == "" {
		return nil, errEmptyTarget
	}
	if pathPrefix == "" {
		pathPrefix = "/"
	}
	if !strings.HasPrefix(pathPrefix, "/") {
		return nil, fmt.Errorf("record: path prefix %q must start with '/'", pathPrefix)
	}
	u, err := url.Parse(scheme + "://" + r.HostPort() + pathPrefix)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(u.Scheme, scheme) || u.User != nil ||
		u.Hostname() != strings.TrimSuffix(r.Target, ".") || u.Port() != strconv.Itoa(int(r.Port)) {
		return nil, fmt.Errorf("record: %q does not form a valid address with scheme %q", r.Target, scheme)
	}
	return u, nil
}

// MinTTL returns the smallest TTL among records, or 0 when there are none.
// A cache built from records must not outlive the least fresh of them.
func MinTTL(records []SRV) time.Duration {
	if len(records) == 0 {
		return 0
	}
	least := records[0].TTL
	for _, r := range records[1:] {
		if r.TTL < least {
			least = r.TTL
		}
	}
	return least
}
