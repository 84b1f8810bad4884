package ir

// GlobalID indexes the globals table.
type GlobalID uint32

// GlobalKind distinguishes the different shapes a module-level global can
// take, per spec §2.3.
type GlobalKind uint8

const (
	GlobalUniformBuffer GlobalKind = iota // struct
	GlobalTexture
	GlobalSampler
	GlobalAccelerationStructure
	GlobalConstant // scalar/vector constant
)

// Global is a named, typed module-level value. Each global is associated
// with a synthetic IR variable id once the compiler phase runs
// (Context.ConvertGlobals populates Var).
type Global struct {
	Name NameID
	Kind GlobalKind
	Type TypeRef
	Var  VarID // set by Context.ConvertGlobals; NoVar until then

	// Sets lists every descriptor set this global has been added to.
	// Populated by Context.AddGlobalToSet. Analyzer's find_referenced_sets
	// relies on this to detect globals reachable from multiple sets.
	Sets []SetID
}

// GlobalTable holds every module-level global, keyed by declaration order.
type GlobalTable struct {
	globals []Global
	byName  map[NameID]GlobalID
}

// NewGlobalTable returns an empty table.
func NewGlobalTable() *GlobalTable {
	return &GlobalTable{byName: make(map[NameID]GlobalID)}
}

// Add interns a new global and returns its id.
func (t *GlobalTable) Add(g Global) GlobalID {
	id := GlobalID(len(t.globals))
	t.globals = append(t.globals, g)
	t.byName[g.Name] = id
	return id
}

// FindByName returns the global id for name, or false if absent.
func (t *GlobalTable) FindByName(name NameID) (GlobalID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Get returns a pointer to the global so callers can mutate Var/Sets.
func (t *GlobalTable) Get(id GlobalID) *Global { return &t.globals[id] }

// Len returns the number of globals.
func (t *GlobalTable) Len() int { return len(t.globals) }

// All returns every global id in declaration order.
func (t *GlobalTable) All() []GlobalID {
	ids := make([]GlobalID, len(t.globals))
	for i := range ids {
		ids[i] = GlobalID(i)
	}
	return ids
}

// FindByVar returns the global whose synthetic variable id is v, or false.
// Used by the analyzer to resolve an opcode operand back to a global.
func (t *GlobalTable) FindByVar(v VarID) (GlobalID, bool) {
	for i, g := range t.globals {
		if g.Var == v {
			return GlobalID(i), true
		}
	}
	return 0, false
}
