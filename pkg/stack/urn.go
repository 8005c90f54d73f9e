package stack

import (
	"fmt"
	"strings"
)

// URN uniquely identifies a resource: urn:awslbc:<stack>::<type>::<name>.
type URN string

const urnPrefix = "urn:awslbc:"

// NewURN builds the URN of a resource.
func NewURN(stack, typ, name string) URN {
	return URN(fmt.Sprintf("%s%s::%s::%s", urnPrefix, stack, typ, name))
}

// ParseURN splits a URN into stack, type and name.
func ParseURN(s string) (stack, typ, name string, err error) {
	rest, ok := strings.CutPrefix(s, urnPrefix)
	if !ok {
		return "", "", "", fmt.Errorf("invalid URN %q: missing %q prefix", s, urnPrefix)
	}
	parts := strings.SplitN(rest, "::", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid URN %q: want %s<stack>::<type>::<name>", s, urnPrefix)
	}
	return parts[0], parts[1], parts[2], nil
}

// Stack returns the stack component.
func (u URN) Stack() string {
	s, _, _, _ := ParseURN(string(u))
	return s
}

// Type returns the type component.
func (u URN) Type() string {
	_, t, _, _ := ParseURN(string(u))
	return t
}

// Name returns the name component.
func (u URN) Name() string {
	_, _, n, _ := ParseURN(string(u))
	return n
}

func (u URN) String() string { return string(u) }
