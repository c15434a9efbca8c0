package target

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies the host a descriptor provisions.
type Kind string

const (
	// KindPi is a Raspberry Pi edge host.
	KindPi Kind = "pi"
	// KindEC2 is an AWS EC2 instance.
	KindEC2 Kind = "ec2"
	// KindGeneric is any host, or no host at all for account-level work.
	KindGeneric Kind = "generic"
)

// ErrInvalidKind indicates an unrecognized target kind.
var ErrInvalidKind = errors.New("invalid target kind")

// ParseKind parses a Kind from a string.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPi:
		return KindPi, nil
	case KindEC2:
		return KindEC2, nil
	case KindGeneric:
		return KindGeneric, nil
	default:
		return "", fmt.Errorf("%w: %q (valid kinds: pi, ec2, generic)", ErrInvalidKind, s)
	}
}

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}

// IsHost returns true for kinds that describe a concrete machine.
// Account-level targets (generic) have no hostname, user, or install root.
func (k Kind) IsHost() bool {
	return k == KindPi || k == KindEC2
}
