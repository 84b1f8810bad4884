// Package ir defines the intermediate representation consumed by the
// analyzer and backends: interned names, the type table, module-level
// globals, functions with their opcode buffers, descriptor sets, and the
// opcode set itself.
//
// Every table lives on a single *Context value (see context.go) rather than
// behind package-level state, so a compilation is just a Context that a
// front end populates and backends read back.
package ir

// NameID is a non-zero interned identifier key. The zero value, NoName,
// means "no name".
type NameID uint64

// NoName is the sentinel for "no name" (id 0).
const NoName NameID = 0

// NameTable interns strings to stable ids. Two equal strings always yield
// the same id; the underlying arena only grows, so ids are never
// invalidated and Intern is idempotent.
type NameTable struct {
	names []string // index 0 is unused ("" for NoName)
	index map[string]NameID
}

// NewNameTable returns an empty table with id 0 reserved for NoName.
func NewNameTable() *NameTable {
	return &NameTable{
		names: []string{""},
		index: make(map[string]NameID),
	}
}

// Intern returns the stable id for name, allocating a fresh one on first
// use. Intern("") is rejected by callers; the table itself does not
// special-case it beyond never returning it for a non-empty string.
func (t *NameTable) Intern(name string) NameID {
	if id, ok := t.index[name]; ok {
		return id
	}
	id := NameID(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = id
	return id
}

// Lookup returns the id for name if it has already been interned.
func (t *NameTable) Lookup(name string) (NameID, bool) {
	id, ok := t.index[name]
	return id, ok
}

// Text returns the string for id, or "" if id is NoName or out of range.
func (t *NameTable) Text(id NameID) string {
	if id == NoName || int(id) >= len(t.names) {
		return ""
	}
	return t.names[id]
}
