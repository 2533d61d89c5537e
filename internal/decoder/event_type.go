package decoder

import (
	"fmt"
	"strings"
)

// EventType is a parsed `address::module::struct` fully-qualified event or
// resource type tag. Address is normalized to a left-zero-padded 32-byte
// hex string with a `0x` prefix before comparison or hashing.
type EventType struct {
	Address string
	Module  string
	Struct  string
}

// String reconstructs the canonical `address::module::struct` form.
func (e EventType) String() string {
	return fmt.Sprintf("%s::%s::%s", e.Address, e.Module, e.Struct)
}

// ParseEventType rejects any string with fewer than 3 `::`-separated parts
// and normalizes the address part to exactly 66 chars (`0x` + 64 hex
// digits).
func ParseEventType(raw string) (EventType, error) {
	parts := strings.SplitN(raw, "::", 3)
	if len(parts) < 3 {
		return EventType{}, fmt.Errorf("event type %q: expected address::module::struct", raw)
	}

	addr, err := NormalizeAddress(parts[0])
	if err != nil {
		return EventType{}, fmt.Errorf("event type %q: %w", raw, err)
	}

	return EventType{Address: addr, Module: parts[1], Struct: parts[2]}, nil
}

// NormalizeAddress left-zero-pads a hex address to 32 bytes and lower-cases
// it, always returning a `0x`-prefixed 66-char string.
func NormalizeAddress(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return "", fmt.Errorf("empty address")
	}
	if len(s) > 64 {
		return "", fmt.Errorf("address %q longer than 32 bytes", raw)
	}
	for _, c := range s {
		if !isHexDigit(c) {
			return "", fmt.Errorf("address %q is not valid hex", raw)
		}
	}
	padded := strings.Repeat("0", 64-len(s)) + s
	return "0x" + padded, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// IsFrameworkEvent is true when the decoded 32-byte address has all-zero
// first 31 bytes and a last byte < 16: addresses 0x0..00 through 0x0..0f
// are reserved for the Aptos framework.
func IsFrameworkEvent(e EventType) bool {
	addr := strings.TrimPrefix(e.Address, "0x")
	if len(addr) != 64 {
		return false
	}
	first62 := addr[:62]
	lastByte := addr[62:]
	for _, c := range first62 {
		if c != '0' {
			return false
		}
	}
	var lastVal int
	if _, err := fmt.Sscanf(lastByte, "%x", &lastVal); err != nil {
		return false
	}
	return lastVal < 16
}
