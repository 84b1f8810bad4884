package ir

// SetID indexes the descriptor-set table.
type SetID uint32

// SetMember pairs a global with whether it is writable within this set
// (spec §3: "per-global writability bits").
type SetMember struct {
	Global   GlobalID
	Writable bool
}

// DescriptorSet is a named, ordered group of globals. Binding indices are
// derived by backends from the order globals appear here (spec §4.4).
type DescriptorSet struct {
	Name    NameID
	Members []SetMember
}

// RootConstantsName is the reserved descriptor-set name that must contain
// exactly one struct global, which still receives binding 0 within its own
// slot (spec §4.4).
const RootConstantsName = "root_constants"

// SetTable holds every descriptor set, keyed by declaration order.
type SetTable struct {
	sets   []DescriptorSet
	byName map[NameID]SetID
}

// NewSetTable returns an empty table.
func NewSetTable() *SetTable {
	return &SetTable{byName: make(map[NameID]SetID)}
}

// GetOrAdd returns the existing set named name, or creates a fresh empty
// one (spec's original add_set is idempotent by name).
func (t *SetTable) GetOrAdd(name NameID) SetID {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := SetID(len(t.sets))
	t.sets = append(t.sets, DescriptorSet{Name: name})
	t.byName[name] = id
	return id
}

// Get returns a pointer to the set so callers can append members.
func (t *SetTable) Get(id SetID) *DescriptorSet { return &t.sets[id] }

// Len returns the number of sets.
func (t *SetTable) Len() int { return len(t.sets) }

// SetGroup is the ordered list of descriptor sets a function references,
// from which backends derive binding indices (spec §3).
type SetGroup []SetID

// AddGlobalToSet adds global g to set, writable as given, records the
// membership on the global itself (used by the analyzer's ambiguous-set
// check), and is idempotent if g is already a member of set.
func (ctx *Context) AddGlobalToSet(set SetID, g GlobalID, writable bool) {
	s := ctx.Sets.Get(set)
	for _, m := range s.Members {
		if m.Global == g {
			return
		}
	}
	s.Members = append(s.Members, SetMember{Global: g, Writable: writable})
	global := ctx.Globals.Get(g)
	for _, existing := range global.Sets {
		if existing == set {
			return
		}
	}
	global.Sets = append(global.Sets, set)
}
