// Package memsize provides a byte-count type that parses human-readable
// sizes such as "5m" or "64KiB", mirroring how the session configuration
// layer accepts block_size as either a bare integer or a scaled string.
package memsize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a count of bytes.
type Size int64

// Byte-scale constants, decimal and binary.
const (
	B   Size = 1
	KB  Size = 1000 * B
	MB  Size = 1000 * KB
	GB  Size = 1000 * MB
	KiB Size = 1024 * B
	MiB Size = 1024 * KiB
	GiB Size = 1024 * MiB
)

// String renders s using the largest binary unit that divides it evenly,
// falling back to a plain byte count.
func (s Size) String() string {
	switch {
	case s != 0 && s%GiB == 0:
		return fmt.Sprintf("%dGiB", s/GiB)
	case s != 0 && s%MiB == 0:
		return fmt.Sprintf("%dMiB", s/MiB)
	case s != 0 && s%KiB == 0:
		return fmt.Sprintf("%dKiB", s/KiB)
	default:
		return fmt.Sprintf("%dB", int64(s))
	}
}

var suffixes = map[string]Size{
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"kib": KiB,
	"m":   MB,
	"mb":  MB,
	"mib": MiB,
	"g":   GB,
	"gb":  GB,
	"gib": GiB,
}

// Parse converts a human-readable size, such as "5m", "64KiB", or a bare
// integer byte count, into a Size.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("memsize: empty size")
	}

	i := len(s)
	for i > 0 && (s[i-1] < '0' || s[i-1] > '9') && s[i-1] != '.' {
		i--
	}
	numPart, suffixPart := s[:i], strings.ToLower(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("memsize: invalid size %q: %w", s, err)
	}

	if suffixPart == "" {
		return Size(value), nil
	}
	unit, ok := suffixes[suffixPart]
	if !ok {
		return 0, fmt.Errorf("memsize: unknown unit %q in %q", suffixPart, s)
	}
	return Size(value * float64(unit)), nil
}
