package client

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/IvanBrykalov/srvclient/record"
)

// ErrNoTargets is returned when the refreshed cache yields no candidates.
// It is distinct from every attempt failing, which returns an *AttemptError.
var ErrNoTargets = errors.New("srvclient: no SRV targets to use")

// LookupError reports a resolver failure. It aborts the execution.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("srvclient: SRV lookup %s: %v", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ParseError reports a record that could not become an address. A refresh
// with any such record fails as a whole.
type ParseError struct {
	Record record.SRV
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("srvclient: building address from SRV record %s: %v", e.Record.HostPort(), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AttemptError carries the last operation failure when no attempt succeeded.
// Err is the operation's own error.
type AttemptError struct {
	Address *url.URL
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("srvclient: attempt on %s: %v", e.Address, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }
