package routing

import (
	"fmt"
	"strings"
)

// Architecture is a routing strategy under test.
type Architecture int

const (
	// Centralized routes from one coordinator straight to a domain agent.
	Centralized Architecture = iota
	// Distributed routes coordinator -> domain agent -> sub-agent.
	Distributed
	// Direct asks a single agent to name the domain label.
	Direct
)

// Architectures lists every strategy in reporting order.
var Architectures = []Architecture{Centralized, Distributed, Direct}

func (a Architecture) String() string {
	switch a {
	case Centralized:
		return "centralized"
	case Distributed:
		return "distributed"
	case Direct:
		return "direct"
	default:
		return fmt.Sprintf("architecture(%d)", int(a))
	}
}

// Title is the display name used in reports.
func (a Architecture) Title() string {
	s := a.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ExpectedHops is the number of distinct agents a well-behaved dispatch visits.
func (a Architecture) ExpectedHops() int {
	switch a {
	case Centralized:
		return 2
	case Distributed:
		return 3
	default:
		return 1
	}
}

// ParseArchitecture converts a case-insensitive name into an Architecture.
func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "centralized":
		return Centralized, nil
	case "distributed":
		return Distributed, nil
	case "direct":
		return Direct, nil
	default:
		return 0, fmt.Errorf("unknown architecture %q", s)
	}
}
