package ir

// Context is the single value a compilation threads through every stage,
// replacing the five process-wide mutable tables the historical C
// implementation kept (spec §9). NewContext performs what spec calls
// `*_init`: it installs every built-in type before any user code can
// reference one.
//
// Context is safe to read concurrently once the compiler phase has
// finished (spec §5): nothing written after that point mutates it, so
// multiple backends may each hold a *Context and run on separate
// goroutines, provided each backend instance owns its own private state
// (see spirv.Backend).
type Context struct {
	Names     *NameTable
	Types     *TypeTable
	Globals   *GlobalTable
	Functions *FunctionTable
	Sets      *SetTable
	Builtins  Builtins

	vars   *VarAllocator
	blocks *BlockAllocator
}

// NewContext allocates fresh, empty tables and installs every built-in
// type and its synthetic swizzle members.
func NewContext() *Context {
	names := NewNameTable()
	types := NewTypeTable()
	ctx := &Context{
		Names:     names,
		Types:     types,
		Globals:   NewGlobalTable(),
		Functions: NewFunctionTable(),
		Sets:      NewSetTable(),
		vars:      NewVarAllocator(),
		blocks:    NewBlockAllocator(),
	}
	ctx.Builtins = installBuiltins(names, types)
	return ctx
}

// AllocLocal allocates a LOCAL-kind variable.
func (ctx *Context) AllocLocal(t TypeRef) Variable { return ctx.vars.AllocLocal(t) }

// AllocInternal allocates an INTERNAL-kind (SSA-like temporary) variable.
func (ctx *Context) AllocInternal(t TypeRef) Variable { return ctx.vars.AllocInternal(t) }

// AllocBlock allocates a fresh structured-control-flow block id.
func (ctx *Context) AllocBlock() BlockID { return ctx.blocks.Alloc() }

// LookupVar resolves a variable id back to its {type, kind}.
func (ctx *Context) LookupVar(id VarID) (Variable, bool) { return ctx.vars.Lookup(id) }

// NextVarID reports the id the next allocation will receive. Testable
// property 1 in spec §8 ("every value-producing opcode allocates a
// variable id strictly greater than every previously allocated id") holds
// by construction: this is the only allocator, and it never rewinds.
func (ctx *Context) NextVarID() VarID { return ctx.vars.Next() }

// ConvertGlobals allocates a synthetic GLOBAL-kind variable for every
// global that does not have one yet, in table order (spec §4.2's
// convert_globals). Idempotent: a global that already has Var != NoVar is
// left alone.
func (ctx *Context) ConvertGlobals() {
	for _, id := range ctx.Globals.All() {
		g := ctx.Globals.Get(id)
		if g.Var != NoVar {
			continue
		}
		v := ctx.vars.AllocGlobal(g.Type)
		g.Var = v.ID
	}
}
