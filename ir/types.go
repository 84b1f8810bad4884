package ir

import "math"

// TypeID indexes the type table. NoType is the sentinel for "not found".
type TypeID uint32

// NoType means "no type"; UnboundedSize marks a runtime-sized array.
const (
	NoType        TypeID = math.MaxUint32
	UnboundedSize uint32 = math.MaxUint32
)

// TextureKind tags sampled/writable image types.
type TextureKind uint8

const (
	TextureNone TextureKind = iota
	Texture2D
	Texture2DArray
	TextureCube
)

// TypeRef is a type plus an optional array size, the shape a member or
// parameter carries (spec §3: "a type reference (type id + array size)").
type TypeRef struct {
	Type      TypeID
	ArraySize uint32 // 0 = not an array, UnboundedSize = runtime array
}

// Member is a named field of a struct or the synthetic swizzle member of a
// vector type.
type Member struct {
	Name    NameID
	Type    TypeRef
	Literal *Literal // optional: set by decorations or pipeline blocks
}

// Literal is a constant value attached to a member via a decoration or a
// pipeline block (e.g. `vertex: my_vertex_shader`).
type Literal struct {
	Kind    LiteralKind
	Float   float64
	Int     int64
	Bool    bool
	Ident   NameID
}

// LiteralKind discriminates which field of Literal is meaningful.
type LiteralKind uint8

const (
	LiteralFloat LiteralKind = iota
	LiteralInt
	LiteralBool
	LiteralIdent
)

// Type is an entry in the type table.
type Type struct {
	Name       NameID
	Attributes []NameID
	Members    []Member
	BuiltIn    bool
	ArraySize  uint32 // 0 = not an array; UnboundedSize = runtime-sized
	BaseType   TypeID // meaningful when ArraySize != 0
	Texture    TextureKind
}

// HasAttribute reports whether the type carries the named attribute.
func (t *Type) HasAttribute(name NameID) bool {
	for _, a := range t.Attributes {
		if a == name {
			return true
		}
	}
	return false
}

// MemberIndex returns the index of the member named name, or -1.
func (t *Type) MemberIndex(name NameID) int {
	for i, m := range t.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// TypeTable interns types. Built-in scalar/vector/matrix types, samplers,
// and the fixed texture kinds must be installed (via NewContext) before any
// user code references them by name.
type TypeTable struct {
	types   []Type
	byName  map[NameID]TypeID
}

// NewTypeTable returns an empty table.
func NewTypeTable() *TypeTable {
	return &TypeTable{byName: make(map[NameID]TypeID)}
}

// Add interns a fresh type and returns its id. Types are never deduplicated
// by structure at this layer — SPIR-V-level dedup happens in the backend's
// own registries (ir.Type identity is "this declaration", not "this shape").
func (t *TypeTable) Add(typ Type) TypeID {
	id := TypeID(len(t.types))
	t.types = append(t.types, typ)
	if typ.Name != NoName {
		if _, exists := t.byName[typ.Name]; !exists {
			t.byName[typ.Name] = id
		}
	}
	return id
}

// FindByName returns NoType if no type with that name has been added.
func (t *TypeTable) FindByName(name NameID) TypeID {
	if id, ok := t.byName[name]; ok {
		return id
	}
	return NoType
}

// Get returns the type for id. Panics on an out-of-range id: every TypeID
// that exists in the IR must have come from this table.
func (t *TypeTable) Get(id TypeID) *Type {
	return &t.types[id]
}

// Len returns the number of interned types.
func (t *TypeTable) Len() int { return len(t.types) }

// All returns every type id in insertion order.
func (t *TypeTable) All() []TypeID {
	ids := make([]TypeID, len(t.types))
	for i := range ids {
		ids[i] = TypeID(i)
	}
	return ids
}
