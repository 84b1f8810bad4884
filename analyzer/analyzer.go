// Package analyzer computes, for a single entry function, everything a
// backend needs to emit just that function's slice of the module:
// the transitive call graph, the globals and descriptor sets it touches,
// and (at the whole-module level) how entry points group into pipelines
// that can compile in parallel.
package analyzer

import (
	"fmt"

	"github.com/gogpu/kong/ir"
)

// Stage distinguishes the two entry-point roles a pipeline wires together.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

// Reach is the result of walking everything reachable from one entry
// function: every function it (transitively) calls, every global any of
// those functions touches, and the resolved descriptor set each global
// belongs to.
type Reach struct {
	Functions []ir.FunctionID
	Globals   []ir.GlobalID

	globalSet map[ir.GlobalID]ir.SetID
	binding   map[ir.GlobalID]uint32
}

// GlobalSet reports the descriptor set a global was resolved to.
func (r Reach) GlobalSet(g ir.GlobalID) (ir.SetID, bool) {
	s, ok := r.globalSet[g]
	return s, ok
}

// Binding reports the binding slot assigned to a global within its set:
// the global's position among the set's members in declaration order.
func (r Reach) Binding(g ir.GlobalID) uint32 {
	return r.binding[g]
}

// Reachable walks the call graph starting at entry and returns every
// function, global and descriptor set it can touch. It panics only on
// malformed IR (an opcode referencing a variable id nothing allocated);
// ambiguous descriptor set membership is reported as an error from
// ReferencedSets, matching the historical compiler's fatal diagnostic.
func Reachable(ctx *ir.Context, entry ir.FunctionID) Reach {
	funcs := ReferencedFunctions(ctx, entry)
	globals := referencedGlobals(ctx, funcs)
	sets, _ := ReferencedSets(ctx, globals)

	r := Reach{
		Functions: funcs,
		Globals:   globals,
		globalSet: make(map[ir.GlobalID]ir.SetID),
		binding:   make(map[ir.GlobalID]uint32),
	}
	for _, setID := range sets {
		set := ctx.Sets.Get(setID)
		for i, m := range set.Members {
			r.globalSet[m.Global] = setID
			r.binding[m.Global] = uint32(i)
		}
	}
	return r
}

// ReferencedFunctions returns entry and every function transitively called
// from it, in discovery order. A function with a nil Block (built-in) is
// included but contributes no further edges.
func ReferencedFunctions(ctx *ir.Context, entry ir.FunctionID) []ir.FunctionID {
	seen := map[ir.FunctionID]bool{entry: true}
	order := []ir.FunctionID{entry}

	for i := 0; i < len(order); i++ {
		fn := ctx.Functions.Get(order[i])
		if fn.IsBuiltIn() {
			continue
		}
		for _, op := range fn.Code {
			call, ok := op.(ir.Call)
			if !ok {
				continue
			}
			callee, ok := ctx.Functions.FindByName(call.Func)
			if !ok {
				continue
			}
			if !seen[callee] {
				seen[callee] = true
				order = append(order, callee)
			}
		}
	}
	return order
}

// referencedGlobals scans every opcode in funcs for variable operands that
// resolve back to a global (ground on find_referenced_globals: only the
// opcode kinds that can name a global operand are inspected).
func referencedGlobals(ctx *ir.Context, funcs []ir.FunctionID) []ir.GlobalID {
	var order []ir.GlobalID
	seen := map[ir.GlobalID]bool{}
	add := func(v ir.VarID) {
		g, ok := ctx.Globals.FindByVar(v)
		if !ok || seen[g] {
			return
		}
		seen[g] = true
		order = append(order, g)
	}

	for _, fid := range funcs {
		fn := ctx.Functions.Get(fid)
		if fn.IsBuiltIn() {
			continue
		}
		for _, op := range fn.Code {
			switch o := op.(type) {
			case ir.Binary:
				add(o.Left.ID)
				add(o.Right.ID)
			case ir.LoadAccessList:
				add(o.From.ID)
			case ir.StoreAccessList:
				add(o.To.ID)
				add(o.From.ID)
			case ir.StoreVariable:
				add(o.To.ID)
				add(o.From.ID)
			case ir.Not:
				add(o.From.ID)
			case ir.Return:
				if o.Value != nil {
					add(o.Value.ID)
				}
			case ir.If:
				add(o.Condition.ID)
			case ir.WhileCondition:
				add(o.Condition.ID)
			case ir.Call:
				for _, p := range o.Params {
					add(p.ID)
				}
			}
		}
	}
	return order
}

// ReferencedSets resolves each referenced global to exactly one descriptor
// set, matching find_referenced_sets: globals that belong to only one set
// resolve trivially in a first pass, then a second pass requires every
// ambiguous (multi-set) global to already be covered by a set one of its
// unambiguous siblings pulled in. A global whose every candidate set is
// still unresolved after that is a hard error, exactly as in the original.
func ReferencedSets(ctx *ir.Context, globals []ir.GlobalID) ([]ir.SetID, error) {
	var sets []ir.SetID
	has := func(id ir.SetID) bool {
		for _, s := range sets {
			if s == id {
				return true
			}
		}
		return false
	}
	add := func(id ir.SetID) {
		if !has(id) {
			sets = append(sets, id)
		}
	}

	for _, gid := range globals {
		g := ctx.Globals.Get(gid)
		if len(g.Sets) == 1 {
			add(g.Sets[0])
		}
	}

	for _, gid := range globals {
		g := ctx.Globals.Get(gid)
		if len(g.Sets) < 2 {
			continue
		}
		found := false
		for _, s := range g.Sets {
			if has(s) {
				found = true
				break
			}
		}
		if !found {
			return sets, fmt.Errorf("global %s could be used from multiple descriptor sets", ctx.Names.Text(g.Name))
		}
	}
	return sets, nil
}

// Pipeline names the (up to) four shader stages a `pipe`-tagged type wires
// together. Amplification and mesh shaders are recognized but not yet
// lowered by any backend; they are carried here so PipelineBuckets can
// still separate pipelines that share neither vertex nor fragment stage.
type Pipeline struct {
	Vertex         ir.FunctionID
	Amplification  ir.FunctionID
	Mesh           ir.FunctionID
	Fragment       ir.FunctionID
	HasVertex      bool
	HasAmplification bool
	HasMesh        bool
}

// PipelineBuckets greedily groups pipelines so that no two pipelines
// sharing a vertex, amplification, mesh or fragment function end up in the
// same bucket — each bucket can then compile fully in parallel with every
// other bucket, since no backend instance touches a function another
// bucket is also touching (spec §5). Grounded on find_pipeline_buckets's
// first-fit greedy scan.
func PipelineBuckets(pipelines []Pipeline) [][]int {
	remaining := make([]int, len(pipelines))
	for i := range remaining {
		remaining[i] = i
	}

	var buckets [][]int
	for len(remaining) > 0 {
		bucket := []int{remaining[0]}
		var next []int
		for _, idx := range remaining[1:] {
			if conflicts(pipelines[idx], bucket, pipelines) {
				next = append(next, idx)
			} else {
				bucket = append(bucket, idx)
			}
		}
		buckets = append(buckets, bucket)
		remaining = next
	}
	return buckets
}

func conflicts(p Pipeline, bucket []int, all []Pipeline) bool {
	for _, idx := range bucket {
		q := all[idx]
		if p.HasVertex && q.HasVertex && p.Vertex == q.Vertex {
			return true
		}
		if p.HasAmplification && q.HasAmplification && p.Amplification == q.Amplification {
			return true
		}
		if p.HasMesh && q.HasMesh && p.Mesh == q.Mesh {
			return true
		}
		if p.Fragment == q.Fragment {
			return true
		}
	}
	return false
}
