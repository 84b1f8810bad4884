package ir

// FunctionID indexes the functions table.
type FunctionID uint32

// MaxParams is the fixed cap on typed+named parameters a function may
// declare (spec §2.4: "up to 256 typed+named parameters").
const MaxParams = 256

// Param is one function parameter.
type Param struct {
	Name       NameID
	Type       TypeRef
	Attributes []NameID
	Var        Variable // allocated by the caller before lowering; compiler.Lower binds Name to it
}

// Function is a named function: a return type, parameters, an attribute
// list, and (once lowered) a code buffer of opcodes. Block holds the
// front end's AST for the body; it is opaque to this package (the
// tokenizer/parser live outside this module's scope) and is nil for
// built-ins such as `sample` or `float2`.
type Function struct {
	Name       NameID
	Params     []Param
	Return     *TypeRef
	Attributes []NameID
	Block      any // *ast.Block, or nil for a built-in
	Code       []Op
	SetGroup   SetGroup
}

// IsBuiltIn reports whether f has no body (spec §3: "Functions with
// block == NULL are built-ins").
func (f *Function) IsBuiltIn() bool { return f.Block == nil }

// Emit appends op to f's code buffer, in the order emitted (spec §4.2:
// "Emits into a per-function byte buffer; appends by copying opcode.size
// bytes" — here, appending to the slice is the byte copy).
func (f *Function) Emit(op Op) {
	f.Code = append(f.Code, op)
}

// FunctionTable holds every function, keyed by declaration order.
type FunctionTable struct {
	functions []Function
	byName    map[NameID]FunctionID
}

// NewFunctionTable returns an empty table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{byName: make(map[NameID]FunctionID)}
}

// Add interns a new function and returns its id.
func (t *FunctionTable) Add(f Function) FunctionID {
	id := FunctionID(len(t.functions))
	t.functions = append(t.functions, f)
	t.byName[f.Name] = id
	return id
}

// FindByName returns the function id for name, or false if absent.
func (t *FunctionTable) FindByName(name NameID) (FunctionID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Get returns a pointer to the function so callers can append code.
func (t *FunctionTable) Get(id FunctionID) *Function { return &t.functions[id] }

// Len returns the number of functions.
func (t *FunctionTable) Len() int { return len(t.functions) }

// All returns every function id in declaration order.
func (t *FunctionTable) All() []FunctionID {
	ids := make([]FunctionID, len(t.functions))
	for i := range ids {
		ids[i] = FunctionID(i)
	}
	return ids
}
