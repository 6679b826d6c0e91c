// Package client runs caller-supplied operations against the targets
// advertised by a DNS SRV name.
//
// Design
//
//   - Discovery: the client looks the service name up through a
//     resolver.Resolver, turns every record into a URL
//     (scheme://target:port/prefix) and asks its policy to build a cache
//     snapshot from them. The snapshot is reused until the smallest record
//     TTL runs out.
//
//   - Policy: the policy decides what is cached and in which order the
//     candidates are attempted. affinity (the default) caches plain URLs and
//     puts the last successful one first; rfc2782 caches URLs with their
//     priority and weight and reorders them on every execution.
//
//   - Execution: Serial tries candidates one by one and stops at the first
//     success. Concurrent starts all candidates at once and returns the first
//     success; the remaining attempts see their context cancelled.
//
//   - Refresh: concurrent executions hitting an expired snapshot share one
//     lookup. A failed lookup, or a record that cannot become a URL, fails
//     the execution before any attempt is made.
//
//   - Builders: every With* method returns a fresh client with an empty
//     cache. The original client is unaffected.
//
// Basic usage
//
//	c := client.New("_http._tcp.example.com")
//	body, err := client.Execute(ctx, c, client.Serial,
//	    func(ctx context.Context, addr *url.URL) ([]byte, error) {
//	        return fetch(ctx, addr)
//	    })
//
// Streaming results
//
//	seq, err := client.ExecuteStream(ctx, c, client.Concurrent, op)
//	if err != nil {
//	    return err
//	}
//	for res := range seq {
//	    if res.Err == nil {
//	        break // remaining attempts are cancelled
//	    }
//	}
//
// Switching policy
//
//	weighted := client.WithPolicy(c, rfc2782.New())
package client
