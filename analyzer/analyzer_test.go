package analyzer

import (
	"testing"

	"github.com/gogpu/kong/ir"
)

func TestReferencedFunctionsTransitive(t *testing.T) {
	ctx := ir.NewContext()
	helper := ctx.Functions.Add(ir.Function{Name: ctx.Names.Intern("helper"), Code: []ir.Op{ir.Return{}}})
	helperName := ctx.Functions.Get(helper).Name

	main := ctx.Functions.Add(ir.Function{
		Name:  ctx.Names.Intern("main"),
		Block: struct{}{},
		Code:  []ir.Op{ir.Call{Func: helperName}},
	})

	got := ReferencedFunctions(ctx, main)
	if len(got) != 2 || got[0] != main || got[1] != helper {
		t.Fatalf("ReferencedFunctions = %v, want [main, helper]", got)
	}
}

func TestReferencedFunctionsBuiltinHasNoEdges(t *testing.T) {
	ctx := ir.NewContext()
	builtin := ctx.Functions.Add(ir.Function{Name: ctx.Names.Intern("sin"), Block: nil})
	got := ReferencedFunctions(ctx, builtin)
	if len(got) != 1 {
		t.Fatalf("builtin function pulled in %d functions, want 1", len(got))
	}
}

// TestReferencedSetsUnambiguous checks that a global in exactly one set
// always resolves to that set.
func TestReferencedSetsUnambiguous(t *testing.T) {
	ctx := ir.NewContext()
	g := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("mvp"), Kind: ir.GlobalUniformBuffer, Type: ir.TypeRef{Type: ctx.Builtins.FloatMat[4]}})
	set := ctx.Sets.GetOrAdd(ctx.Names.Intern("frame"))
	ctx.AddGlobalToSet(set, g, false)

	sets, err := ReferencedSets(ctx, []ir.GlobalID{g})
	if err != nil {
		t.Fatalf("ReferencedSets: %v", err)
	}
	if len(sets) != 1 || sets[0] != set {
		t.Fatalf("got %v, want [%v]", sets, set)
	}
}

// TestReferencedSetsAmbiguousResolvedByOthers exercises the two-pass
// algorithm: a global split across two sets resolves once an unambiguous
// sibling global has already pulled one of those sets in.
func TestReferencedSetsAmbiguousResolvedByOthers(t *testing.T) {
	ctx := ir.NewContext()
	setA := ctx.Sets.GetOrAdd(ctx.Names.Intern("A"))
	setB := ctx.Sets.GetOrAdd(ctx.Names.Intern("B"))

	unambiguous := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("light"), Kind: ir.GlobalUniformBuffer})
	ctx.AddGlobalToSet(setA, unambiguous, false)

	ambiguous := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("tex"), Kind: ir.GlobalTexture})
	ctx.AddGlobalToSet(setA, ambiguous, false)
	ctx.AddGlobalToSet(setB, ambiguous, false)

	sets, err := ReferencedSets(ctx, []ir.GlobalID{unambiguous, ambiguous})
	if err != nil {
		t.Fatalf("ReferencedSets: %v", err)
	}
	if len(sets) != 1 || sets[0] != setA {
		t.Fatalf("got %v, want only [%v]", sets, setA)
	}
}

func TestReferencedSetsUnresolvableAmbiguityErrors(t *testing.T) {
	ctx := ir.NewContext()
	setA := ctx.Sets.GetOrAdd(ctx.Names.Intern("A"))
	setB := ctx.Sets.GetOrAdd(ctx.Names.Intern("B"))
	g := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("tex"), Kind: ir.GlobalTexture})
	ctx.AddGlobalToSet(setA, g, false)
	ctx.AddGlobalToSet(setB, g, false)

	_, err := ReferencedSets(ctx, []ir.GlobalID{g})
	if err == nil {
		t.Fatalf("expected ambiguous descriptor set error")
	}
}

// TestPipelineBuckets covers scenario S5: vertex {A,A,B,C,C} paired with
// fragment {X,Y,X,Y,Z} should bucket into exactly 2 groups.
func TestPipelineBuckets(t *testing.T) {
	var a, b, c, x, y, z ir.FunctionID = 1, 2, 3, 10, 11, 12
	pipelines := []Pipeline{
		{Vertex: a, HasVertex: true, Fragment: x},
		{Vertex: a, HasVertex: true, Fragment: y},
		{Vertex: b, HasVertex: true, Fragment: x},
		{Vertex: c, HasVertex: true, Fragment: y},
		{Vertex: c, HasVertex: true, Fragment: z},
	}
	buckets := PipelineBuckets(pipelines)
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2: %v", len(buckets), buckets)
	}
}

func TestPipelineBucketsNoConflictsSingleBucket(t *testing.T) {
	var v1, v2, f1, f2 ir.FunctionID = 1, 2, 3, 4
	pipelines := []Pipeline{
		{Vertex: v1, HasVertex: true, Fragment: f1},
		{Vertex: v2, HasVertex: true, Fragment: f2},
	}
	buckets := PipelineBuckets(pipelines)
	if len(buckets) != 1 || len(buckets[0]) != 2 {
		t.Fatalf("got %v, want a single bucket with both pipelines", buckets)
	}
}
