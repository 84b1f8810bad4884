// Package textual holds the pieces shared by every textual backend: unique
// identifier generation against a target language's reserved-word list, and
// the byte-string escaping textual output (HLSL string literals, C string
// literals) needs for names that don't round-trip as plain identifiers.
package textual

import "fmt"

// Namer generates unique identifiers against a reserved-word set, adding a
// numeric suffix on collision. It has no opinion on case sensitivity; a
// caller whose target language is case-insensitive (HLSL) should fold case
// before calling Reserve/Call and track its own casefolded set on top.
type Namer struct {
	reserved map[string]struct{}
	used     map[string]struct{}
	counter  uint32
}

// NewNamer starts a Namer with reserved pre-seeded as always-taken, so the
// first user identifier that collides with a keyword gets a numeric suffix
// rather than silently shadowing it.
func NewNamer(reserved map[string]struct{}) *Namer {
	n := &Namer{reserved: reserved, used: make(map[string]struct{})}
	return n
}

// Reserve marks name as taken without returning it, for names the backend
// itself emits outside the normal Call path (e.g. a fixed entry-point name).
func (n *Namer) Reserve(name string) {
	n.used[name] = struct{}{}
}

func (n *Namer) isTaken(name string) bool {
	if _, ok := n.reserved[name]; ok {
		return true
	}
	_, ok := n.used[name]
	return ok
}

// Call returns a unique identifier derived from base: base itself if free,
// otherwise base with an incrementing numeric suffix.
func (n *Namer) Call(base string) string {
	if base == "" {
		base = "_unnamed"
	}
	if !n.isTaken(base) {
		n.used[base] = struct{}{}
		return base
	}
	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", base, n.counter)
		if !n.isTaken(candidate) {
			n.used[candidate] = struct{}{}
			return candidate
		}
	}
}
