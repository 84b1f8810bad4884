package kong

import (
	"testing"

	"github.com/gogpu/kong/analyzer"
	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/ir"
	"github.com/gogpu/kong/spirv"
)

// buildTriangleEntry assembles a minimal fragment entry point: a single
// function taking a one-member input struct {position: float4} and declared
// to return float4, whose body returns the constant 1, matching the historical
// naga_test.go fixture shape (a trivial shader that exercises the full
// pipeline without resource bindings).
func buildTriangleEntry(t *testing.T) (*ir.Context, ir.FunctionID) {
	t.Helper()
	ctx := ir.NewContext()
	inType := ctx.Types.Add(ir.Type{
		Name:    ctx.Names.Intern("PSIn"),
		Members: []ir.Member{{Name: ctx.Names.Intern("position"), Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}}},
	})
	param := ctx.AllocLocal(ir.TypeRef{Type: inType})
	fn := ir.Function{
		Name:   ctx.Names.Intern("ps_main"),
		Params: []ir.Param{{Name: ctx.Names.Intern("in"), Type: ir.TypeRef{Type: inType}, Var: param}},
		Return: &ir.TypeRef{Type: ctx.Builtins.FloatVec[4]},
	}
	id := ctx.Functions.Add(fn)

	body := ast.NewBuilder().
		ReturnStmt(ast.Num(1)).
		Build()

	if err := Lower(ctx, map[ir.FunctionID]*ast.Block{id: body}); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return ctx, id
}

func TestCompileSPIRVHasValidMagic(t *testing.T) {
	ctx, entry := buildTriangleEntry(t)
	bin, err := Compile(ctx, entry, analyzer.StageFragment, DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(bin) < 4 {
		t.Fatalf("SPIR-V output too short: %d bytes", len(bin))
	}
	magic := uint32(bin[0]) | uint32(bin[1])<<8 | uint32(bin[2])<<16 | uint32(bin[3])<<24
	if magic != 0x07230203 {
		t.Fatalf("invalid SPIR-V magic: got 0x%08x", magic)
	}
}

func TestCompileHLSLProducesText(t *testing.T) {
	ctx, entry := buildTriangleEntry(t)
	opts := CompileOptions{Target: TargetHLSL}
	out, err := Compile(ctx, entry, analyzer.StageFragment, opts)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected non-empty HLSL text")
	}
}

func TestGenerateSPIRVMatchesCompile(t *testing.T) {
	ctx, entry := buildTriangleEntry(t)
	direct, err := GenerateSPIRV(ctx, entry, analyzer.StageFragment, spirv.DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateSPIRV: %v", err)
	}
	if len(direct) == 0 {
		t.Fatalf("expected non-empty SPIR-V binary")
	}
}

func TestLowerPropagatesCompilerError(t *testing.T) {
	ctx := ir.NewContext()
	fn := ir.Function{Name: ctx.Names.Intern("broken")}
	id := ctx.Functions.Add(fn)
	body := ast.NewBuilder().ReturnStmt(ast.Var("missing")).Build()

	if err := Lower(ctx, map[ir.FunctionID]*ast.Block{id: body}); err == nil {
		t.Fatalf("expected lowering error to propagate")
	}
}
