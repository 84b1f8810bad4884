package ir

import "testing"

func TestAccessPathResultTypeMember(t *testing.T) {
	ctx := NewContext()
	vec4Name := ctx.Names.Intern("vec4ref")
	wName := ctx.Names.Intern("w")
	structID := ctx.Types.Add(Type{
		Name: vec4Name,
		Members: []Member{
			{Name: wName, Type: TypeRef{Type: ctx.Builtins.FloatVec[4]}},
		},
	})

	path := AccessPath{{Kind: AccessMember, MemberName: wName, MemberIndex: 0}}
	got, err := path.ResultType(ctx, TypeRef{Type: structID})
	if err != nil {
		t.Fatalf("ResultType: %v", err)
	}
	if got.Type != ctx.Builtins.FloatVec[4] {
		t.Fatalf("got %v, want float4", got.Type)
	}
}

func TestAccessPathResultTypeSwizzleChain(t *testing.T) {
	ctx := NewContext()
	path := AccessPath{
		{Kind: AccessSwizzle, Components: []int{0, 1, 2}}, // .xyz on float4 -> float3
		{Kind: AccessSwizzle, Components: []int{1, 0}},    // .yx on float3 -> float2
	}
	got, err := path.ResultType(ctx, TypeRef{Type: ctx.Builtins.FloatVec[4]})
	if err != nil {
		t.Fatalf("ResultType: %v", err)
	}
	if got.Type != ctx.Builtins.FloatVec[2] {
		t.Fatalf("got %v, want float2", got.Type)
	}
}

func TestAccessPathIndexPastTerminal(t *testing.T) {
	ctx := NewContext()
	// float has no members; indexing further must fail.
	path := AccessPath{
		{Kind: AccessSwizzle, Components: []int{0}}, // float4 -> float
		{Kind: AccessSwizzle, Components: []int{0}}, // float -> error
	}
	_, err := path.ResultType(ctx, TypeRef{Type: ctx.Builtins.FloatVec[4]})
	if err == nil {
		t.Fatalf("expected error indexing past terminal type")
	}
}

func TestDescriptorSetMembership(t *testing.T) {
	ctx := NewContext()
	gName := ctx.Names.Intern("mvp")
	g := ctx.Globals.Add(Global{Name: gName, Kind: GlobalUniformBuffer, Type: TypeRef{Type: ctx.Builtins.FloatMat[4]}})

	setA := ctx.Sets.GetOrAdd(ctx.Names.Intern("setA"))
	setB := ctx.Sets.GetOrAdd(ctx.Names.Intern("setB"))
	ctx.AddGlobalToSet(setA, g, false)
	ctx.AddGlobalToSet(setB, g, false)
	// Idempotent re-add.
	ctx.AddGlobalToSet(setA, g, false)

	global := ctx.Globals.Get(g)
	if len(global.Sets) != 2 {
		t.Fatalf("global.Sets = %v, want 2 entries", global.Sets)
	}
	if len(ctx.Sets.Get(setA).Members) != 1 {
		t.Fatalf("setA has %d members, want 1 (idempotent add)", len(ctx.Sets.Get(setA).Members))
	}
}
