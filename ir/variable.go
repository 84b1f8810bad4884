package ir

// VarID is a monotonically allocated handle shared by LOCAL, GLOBAL, and
// INTERNAL variables alike (spec §3). Id 0 is the sentinel "not found".
type VarID uint64

// NoVar is the sentinel variable id.
const NoVar VarID = 0

// VarKind distinguishes storage-backed variables from SSA-like temporaries.
type VarKind uint8

const (
	VarLocal VarKind = iota
	VarGlobal
	VarInternal
)

// Variable is the triple spec §3 describes: {id, type, kind}.
type Variable struct {
	ID   VarID
	Type TypeRef
	Kind VarKind
}

// VarAllocator hands out VarIDs starting at 1. It never recycles ids, and
// it is the only place a fresh VarID is minted — every opcode that defines
// a value must go through AllocInternal/AllocLocal/AllocGlobal.
type VarAllocator struct {
	next VarID
	vars []Variable // index by VarID - 1
}

// NewVarAllocator returns an allocator with the next id at 1.
func NewVarAllocator() *VarAllocator {
	return &VarAllocator{next: 1}
}

func (a *VarAllocator) alloc(t TypeRef, kind VarKind) Variable {
	v := Variable{ID: a.next, Type: t, Kind: kind}
	a.vars = append(a.vars, v)
	a.next++
	return v
}

// AllocLocal allocates a LOCAL-kind variable (a declared local or a
// function parameter).
func (a *VarAllocator) AllocLocal(t TypeRef) Variable { return a.alloc(t, VarLocal) }

// AllocGlobal allocates a GLOBAL-kind variable, one per module-level global.
func (a *VarAllocator) AllocGlobal(t TypeRef) Variable { return a.alloc(t, VarGlobal) }

// AllocInternal allocates an INTERNAL (SSA-like temporary) variable.
// compiler.Lower allocates its temporaries with AllocLocal, so INTERNAL
// variables come only from code that builds IR directly.
func (a *VarAllocator) AllocInternal(t TypeRef) Variable { return a.alloc(t, VarInternal) }

// Lookup returns the Variable for id, or the zero Variable and false if id
// has not been allocated (including NoVar).
func (a *VarAllocator) Lookup(id VarID) (Variable, bool) {
	if id == NoVar || int(id) > len(a.vars) {
		return Variable{}, false
	}
	return a.vars[id-1], true
}

// Next returns the id that the next allocation will receive, i.e. the
// count of ids allocated so far, plus one.
func (a *VarAllocator) Next() VarID { return a.next }

// BlockID labels a structured-control-flow scope (if/while/block). This is
// a domain distinct from VarID — spec §4.2 requires block and variable ids
// never collide, and using a separate Go type makes mixing them a compile
// error rather than a runtime bug.
type BlockID uint32

// BlockAllocator hands out BlockIDs starting at 1, disjoint from VarIDs by
// construction (different type, own counter).
type BlockAllocator struct {
	next BlockID
}

// NewBlockAllocator returns an allocator with the next id at 1.
func NewBlockAllocator() *BlockAllocator { return &BlockAllocator{next: 1} }

// Alloc returns the next BlockID.
func (a *BlockAllocator) Alloc() BlockID {
	id := a.next
	a.next++
	return id
}
