package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/srvclient/policy"
	"github.com/IvanBrykalov/srvclient/resolver"
)

const (
	// DefaultScheme is used for addresses when Options.Scheme is empty.
	DefaultScheme = "https"
	// DefaultPathPrefix is used for addresses when Options.PathPrefix is empty.
	DefaultPathPrefix = "/"
)

// Outcome classifies a finished attempt.
type Outcome int

const (
	// OutcomeSuccess means the operation returned a nil error.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the operation returned an error.
	OutcomeFailure
)

// String returns a stable label ("success" / "failure").
func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// Metrics exposes client-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// CacheHit/CacheMiss are reported once per execution when acquiring a snapshot.
	CacheHit()
	CacheMiss()
	// Refresh reports a finished cache refresh (err is nil on success).
	Refresh(took time.Duration, err error)
	// Targets reports the number of targets in a freshly installed snapshot.
	Targets(n int)
	// Attempt reports one finished operation attempt.
	Attempt(outcome Outcome, took time.Duration)
}

// Clock provides the current time; useful for deterministic expiry tests.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a Client. Zero values are safe except Policy;
// defaults are applied in NewWithOptions():
//   - nil Resolver  => system resolver (netdns, 60s validity)
//   - empty Scheme  => "https"
//   - empty PathPrefix => "/"
//   - nil Logger    => zap.NewNop()
//   - nil Metrics   => NoopMetrics
//   - nil Clock     => time.Now
type Options[I any] struct {
	// ServiceName is the SRV name to look up, e.g. "_http._tcp.example.com".
	ServiceName string

	// Resolver performs the SRV lookups.
	Resolver resolver.Resolver

	// Policy decides cache contents and attempt order. Required.
	Policy policy.Policy[I]

	// Scheme and PathPrefix shape the addresses built from records.
	Scheme     string
	PathPrefix string

	// Observability
	Logger  *zap.Logger
	Metrics Metrics

	// Clock decides snapshot validity. Nil => time.Now().
	Clock Clock
}
