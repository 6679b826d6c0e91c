package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/IvanBrykalov/srvclient/internal/config"
	"github.com/IvanBrykalov/srvclient/record"
	"github.com/IvanBrykalov/srvclient/resolver"
	"github.com/IvanBrykalov/srvclient/resolver/dnsmsg"
	"github.com/IvanBrykalov/srvclient/resolver/netdns"
)

// parseTarget parses "host:port[:priority[:weight]]" into a record.
// IPv6 hosts must be bracketed: "[::1]:8080:10:5".
func parseTarget(s string, ttl time.Duration) (record.SRV, error) {
	s = strings.TrimSpace(s)
	var host, rest string
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return record.SRV{}, fmt.Errorf("target %q: missing ']'", s)
		}
		host, rest = s[1:end], strings.TrimPrefix(s[end+1:], ":")
	} else {
		var ok bool
		host, rest, ok = strings.Cut(s, ":")
		if !ok {
			return record.SRV{}, fmt.Errorf("target %q: want host:port[:priority[:weight]]", s)
		}
	}
	if host == "" {
		return record.SRV{}, fmt.Errorf("target %q: empty host", s)
	}

	parts := strings.Split(rest, ":")
	if len(parts) > 3 || parts[0] == "" {
		return record.SRV{}, fmt.Errorf("target %q: want host:port[:priority[:weight]]", s)
	}
	nums := make([]uint16, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return record.SRV{}, errors.Wrapf(err, "target %q", s)
		}
		nums[i] = uint16(n)
	}
	return record.SRV{
		Target:   host,
		Port:     nums[0],
		Priority: nums[1],
		Weight:   nums[2],
		TTL:      ttl,
	}, nil
}

// buildResolver picks the SRV backend named by the configuration.
func buildResolver(cfg *config.Config) (resolver.Resolver, error) {
	switch cfg.Resolver.Kind {
	case "static":
		recs := make([]record.SRV, 0, len(cfg.Resolver.Targets))
		for _, t := range cfg.Resolver.Targets {
			r, err := parseTarget(t, cfg.Resolver.TTL)
			if err != nil {
				return nil, err
			}
			recs = append(recs, r)
		}
		return &resolver.Static{Records: recs}, nil
	case "dns":
		if len(cfg.Resolver.Nameservers) > 0 {
			r := dnsmsg.New(cfg.Resolver.Nameservers...)
			r.Timeout = cfg.Resolver.Timeout
			return r, nil
		}
		r, err := dnsmsg.FromResolvConf(cfg.Resolver.ResolvConf)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return netdns.New(&net.Resolver{PreferGo: true}, cfg.Resolver.TTL), nil
	}
}
