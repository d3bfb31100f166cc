package experiment

import (
	"fmt"
	"strings"

	"github.com/moolen/routebench/internal/routing"
)

// Mode selects which architectures an experiment evaluates.
type Mode string

const (
	// ModeQuick compares the centralized and distributed architectures.
	ModeQuick Mode = "quick"
	// ModeCompare evaluates every architecture.
	ModeCompare     Mode = "compare"
	ModeCentralized Mode = "centralized"
	ModeDistributed Mode = "distributed"
	ModeDirect      Mode = "direct"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeQuick, ModeCompare, ModeCentralized, ModeDistributed, ModeDirect}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Modes {
		if m == valid {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Architectures returns the architectures evaluated by the mode, in report order.
func (m Mode) Architectures() []routing.Architecture {
	switch m {
	case ModeQuick:
		return []routing.Architecture{routing.Centralized, routing.Distributed}
	case ModeCompare:
		return append([]routing.Architecture(nil), routing.Architectures...)
	case ModeCentralized:
		return []routing.Architecture{routing.Centralized}
	case ModeDistributed:
		return []routing.Architecture{routing.Distributed}
	case ModeDirect:
		return []routing.Architecture{routing.Direct}
	default:
		return nil
	}
}
