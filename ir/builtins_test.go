package ir

import "testing"

// TestSwizzleRoundTrip exercises scenario S3: vec.xyz.yx on a float4
// yields a float2, and the synthesized member set covers every 1..4
// length permutation over both xyzw and rgba.
func TestSwizzleRoundTrip(t *testing.T) {
	ctx := NewContext()
	f4 := ctx.Types.Get(ctx.Builtins.FloatVec[4])

	xyzIdx := f4.MemberIndex(ctx.Names.Intern("xyz"))
	if xyzIdx < 0 {
		t.Fatalf("float4 has no xyz member")
	}
	if f4.Members[xyzIdx].Type.Type != ctx.Builtins.FloatVec[3] {
		t.Fatalf("xyz member type = %v, want float3", f4.Members[xyzIdx].Type.Type)
	}

	f3 := ctx.Types.Get(ctx.Builtins.FloatVec[3])
	yxIdx := f3.MemberIndex(ctx.Names.Intern("yx"))
	if yxIdx < 0 {
		t.Fatalf("float3 has no yx member")
	}
	if f3.Members[yxIdx].Type.Type != ctx.Builtins.FloatVec[2] {
		t.Fatalf("yx member type = %v, want float2", f3.Members[yxIdx].Type.Type)
	}

	// Single-letter swizzles reduce to the scalar type.
	xIdx := f4.MemberIndex(ctx.Names.Intern("x"))
	if xIdx < 0 || f4.Members[xIdx].Type.Type != ctx.Builtins.Float {
		t.Fatalf("x member missing or not float")
	}

	// rgba alphabet is also present.
	rIdx := f4.MemberIndex(ctx.Names.Intern("r"))
	if rIdx < 0 || f4.Members[rIdx].Type.Type != ctx.Builtins.Float {
		t.Fatalf("r member missing or not float")
	}
	rgbaIdx := f4.MemberIndex(ctx.Names.Intern("rgba"))
	if rgbaIdx < 0 || f4.Members[rgbaIdx].Type.Type != ctx.Builtins.FloatVec[4] {
		t.Fatalf("rgba member missing or not float4")
	}
}

func TestSwizzleMemberCount(t *testing.T) {
	ctx := NewContext()
	f2 := ctx.Types.Get(ctx.Builtins.FloatVec[2])
	// Per letter-set: lengths 1..2 over a 2-letter alphabet = 2 + 4 = 6.
	// Two letter-sets (xy, rg) => 12 synthesized members total.
	if len(f2.Members) != 12 {
		t.Fatalf("float2 has %d synthesized members, want 12", len(f2.Members))
	}
}

func TestBuiltinsInstalledBeforeUserTypes(t *testing.T) {
	ctx := NewContext()
	if ctx.Types.FindByName(ctx.Names.Intern("float4")) == NoType {
		t.Fatalf("float4 not installed")
	}
	userType := ctx.Names.Intern("MyStruct")
	if ctx.Types.FindByName(userType) != NoType {
		t.Fatalf("unregistered user type found")
	}
}
