package hlsl

import (
	"strings"
	"testing"

	"github.com/gogpu/kong/analyzer"
	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/compiler"
	"github.com/gogpu/kong/ir"
)

// buildVertexEntry assembles a minimal vertex entry point: a uniform
// buffer global bound to a descriptor set, an output struct whose first
// member is the clip position, and a body that declares a local of that
// struct type and returns it.
func buildVertexEntry(t *testing.T) (*ir.Context, ir.FunctionID) {
	t.Helper()
	ctx := ir.NewContext()

	uniformName := ctx.Names.Intern("Frame")
	mvpName := ctx.Names.Intern("mvp")
	uniformType := ctx.Types.Add(ir.Type{
		Name: uniformName,
		Members: []ir.Member{
			{Name: mvpName, Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}},
		},
	})
	global := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("frame"), Kind: ir.GlobalUniformBuffer, Type: ir.TypeRef{Type: uniformType}})
	set := ctx.Sets.GetOrAdd(ctx.Names.Intern("pass"))
	ctx.AddGlobalToSet(set, global, false)
	ctx.ConvertGlobals()

	outName := ctx.Names.Intern("VertexOutput")
	positionName := ctx.Names.Intern("position")
	outType := ctx.Types.Add(ir.Type{
		Name: outName,
		Members: []ir.Member{
			{Name: positionName, Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}},
		},
	})

	fn := ir.Function{Name: ctx.Names.Intern("vs_main"), Return: &ir.TypeRef{Type: outType}}
	id := ctx.Functions.Add(fn)
	fnPtr := ctx.Functions.Get(id)

	body := ast.NewBuilder().
		Decl("out", "VertexOutput", nil).
		AssignStmt(ast.Member(ast.Var("out"), "position"), ast.Member(ast.Var("frame"), "mvp"), nil).
		ReturnStmt(ast.Var("out")).
		Build()

	if err := compiler.Lower(ctx, fnPtr, body); err != nil {
		t.Fatalf("compiler.Lower: %v", err)
	}
	return ctx, id
}

func TestBackendEmitsStructAndCbuffer(t *testing.T) {
	ctx, entry := buildVertexEntry(t)
	out, err := NewBackend(ctx).Emit(entry, analyzer.StageVertex)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(out, "struct VertexOutput") {
		t.Fatalf("missing output struct decl:\n%s", out)
	}
	if !strings.Contains(out, "SV_Position") {
		t.Fatalf("first output member should carry SV_Position:\n%s", out)
	}
	if !strings.Contains(out, "cbuffer Frame") {
		t.Fatalf("missing cbuffer decl:\n%s", out)
	}
	if !strings.Contains(out, "register(b0, space0)") {
		t.Fatalf("missing register binding:\n%s", out)
	}
}

func TestBackendEmitsFunctionBody(t *testing.T) {
	ctx, entry := buildVertexEntry(t)
	out, err := NewBackend(ctx).Emit(entry, analyzer.StageVertex)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(out, "vs_main") {
		t.Fatalf("missing entry function signature:\n%s", out)
	}
	if !strings.Contains(out, "return _out;") {
		t.Fatalf("missing return statement:\n%s", out)
	}
	if !strings.Contains(out, "_out.position = mvp;") {
		t.Fatalf("cbuffer member reference should elide the instance name:\n%s", out)
	}
}

func TestBackendFragmentReturnGetsSVTarget(t *testing.T) {
	ctx := ir.NewContext()
	outName := ctx.Names.Intern("FragOutput")
	colorName := ctx.Names.Intern("color")
	outType := ctx.Types.Add(ir.Type{
		Name: outName,
		Members: []ir.Member{
			{Name: colorName, Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}},
		},
	})
	fn := ir.Function{Name: ctx.Names.Intern("ps_main"), Return: &ir.TypeRef{Type: outType}}
	id := ctx.Functions.Add(fn)
	fnPtr := ctx.Functions.Get(id)

	body := ast.NewBuilder().
		Decl("out", "FragOutput", nil).
		ReturnStmt(ast.Var("out")).
		Build()
	if err := compiler.Lower(ctx, fnPtr, body); err != nil {
		t.Fatalf("compiler.Lower: %v", err)
	}

	out, err := NewBackend(ctx).Emit(id, analyzer.StageFragment)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(out, "SV_Target0") {
		t.Fatalf("fragment output member should carry SV_Target0:\n%s", out)
	}
}

func TestNamerPreservesCaseOnCollision(t *testing.T) {
	n := newNamer()
	first := n.call("Value")
	second := n.call("value")
	if first == second {
		t.Fatalf("case-insensitive collision not deduplicated: both resolved to %q", first)
	}
	if !strings.HasPrefix(second, "value") && !strings.HasPrefix(second, "Value") {
		t.Fatalf("second name lost original casing: %q", second)
	}
}
