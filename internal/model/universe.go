package model

import "strings"

// Universe is the fixed set of symbols known to the system. It is built once
// at startup and never changes afterwards.
type Universe struct {
	symbols []string
	byUpper map[string]string // upper-cased -> canonical
}

// NewUniverse builds a universe from the given symbols, preserving order.
// Blank entries and case-insensitive duplicates are ignored.
func NewUniverse(symbols ...string) Universe {
	u := Universe{byUpper: make(map[string]string, len(symbols))}
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToUpper(s)
		if _, dup := u.byUpper[key]; dup {
			continue
		}
		u.byUpper[key] = s
		u.symbols = append(u.symbols, s)
	}
	return u
}

// Symbols returns the universe in configuration order. The slice is a copy.
func (u Universe) Symbols() []string {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out
}

// Len returns the number of symbols.
func (u Universe) Len() int { return len(u.symbols) }

// Canonical resolves s case-insensitively and returns the configured spelling.
func (u Universe) Canonical(s string) (string, bool) {
	c, ok := u.byUpper[strings.ToUpper(strings.TrimSpace(s))]
	return c, ok
}

// Contains reports whether s is exactly a member of the universe.
func (u Universe) Contains(s string) bool {
	c, ok := u.Canonical(s)
	return ok && c == s
}
