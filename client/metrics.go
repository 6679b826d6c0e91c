package client

import "time"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) CacheHit()                      {}
func (NoopMetrics) CacheMiss()                     {}
func (NoopMetrics) Refresh(time.Duration, error)   {}
func (NoopMetrics) Targets(int)                    {}
func (NoopMetrics) Attempt(Outcome, time.Duration) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
