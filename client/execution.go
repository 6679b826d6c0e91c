package client

import (
	"fmt"
	"strings"
)

// Execution selects how an operation is run across candidates.
type Execution int

const (
	// Serial attempts candidates one at a time in policy order. The default.
	Serial Execution = iota
	// Concurrent starts every candidate at once, each attempt in its own
	// goroutine, and yields results in completion order. The operation must
	// be safe for concurrent use. Once the caller stops consuming results,
	// the attempts still running are abandoned and see their context
	// cancelled.
	Concurrent
)

// String implements fmt.Stringer.
func (e Execution) String() string {
	switch e {
	case Serial:
		return "serial"
	case Concurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("Execution(%d)", int(e))
	}
}

// ParseExecution maps "serial" / "concurrent" (case-insensitive) to an
// Execution. An empty string means Serial.
func ParseExecution(s string) (Execution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "serial":
		return Serial, nil
	case "concurrent":
		return Concurrent, nil
	default:
		return Serial, fmt.Errorf("srvclient: unknown execution mode %q (use serial or concurrent)", s)
	}
}
