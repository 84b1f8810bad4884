package hlsl

import (
	"strings"

	"github.com/gogpu/kong/textual"
)

// namer wraps textual.Namer with HLSL's case-insensitive keyword matching
// and per-source-name memoization: HLSL treats `Float` and `float` as the
// same identifier, so uniqueness and reservation both fold to lowercase
// before reaching the shared namer, and a given source name always maps
// back to the same emitted identifier no matter how many times a backend
// asks for it (a declaration site and every later reference to it must
// agree on spelling).
type namer struct {
	inner    *textual.Namer
	assigned map[string]string
}

func newNamer() *namer {
	return &namer{inner: textual.NewNamer(nil), assigned: make(map[string]string)}
}

func (n *namer) call(base string) string {
	if name, ok := n.assigned[base]; ok {
		return name
	}
	escaped := Escape(base)
	lower := strings.ToLower(escaped)
	folded := n.inner.Call(lower)
	name := escaped
	if folded != lower {
		// folded is lower with a "_N" suffix the shared namer added on
		// collision; graft that suffix onto the original-case identifier
		// instead of returning the casefolded form.
		name = escaped + folded[len(lower):]
	}
	n.assigned[base] = name
	return name
}

// declared reports whether base already has a memoized name, i.e. call
// has already been invoked for this exact source name.
func (n *namer) declared(base string) bool {
	_, ok := n.assigned[base]
	return ok
}

func (n *namer) reserve(name string) {
	n.inner.Reserve(strings.ToLower(name))
}
