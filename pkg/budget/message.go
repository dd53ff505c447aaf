package budget

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole normalizes a raw role string (case-insensitive, surrounding
// whitespace ignored) into one of the three known roles.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSystem:
		return RoleSystem, nil
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, raw)
	}
}

// Message is one chat turn under budget management. Role and Content are
// immutable after creation; Tokens is computed once at insertion and never
// recomputed.
type Message struct {
	Role    Role
	Content string
	Tokens  int
	AddedAt time.Time // diagnostics only; ordering is insertion order
}

// IsSystem reports whether the message carries the system role
func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}
