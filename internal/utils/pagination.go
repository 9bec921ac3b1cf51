// Package utils provides small helpers for reading request parameters.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseLimit reads a ?limit= value. Blank or malformed input yields def.
// Negative results become 0 (meaning "no limit" to the callers) and, when
// max > 0, values above max are capped.
//
//	ParseLimit("25", 0, 100)  // 25
//	ParseLimit("500", 0, 100) // 100
//	ParseLimit("-3", 0, 100)  // 0
func ParseLimit(raw string, def, max int) int {
	n := AtoiDefault(strings.TrimSpace(raw), def)
	if n < 0 {
		n = 0
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
