package cstub

import (
	"strings"
	"testing"

	"github.com/gogpu/kong/ir"
)

// buildPipeline assembles a minimal `pipe`-tagged type wiring a vertex
// shader (taking a float3-position vertex input) to a fragment shader,
// plus a uniform-buffer global with a float4x4 member so the matrix
// transpose path in the unlock helper gets exercised.
func buildPipeline(t *testing.T) *ir.Context {
	t.Helper()
	ctx := ir.NewContext()

	posName := ctx.Names.Intern("position")
	vertexInput := ctx.Types.Add(ir.Type{
		Name: ctx.Names.Intern("VertexInput"),
		Members: []ir.Member{
			{Name: posName, Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[3]}},
		},
	})

	outName := ctx.Names.Intern("VertexOutput")
	outType := ctx.Types.Add(ir.Type{
		Name: outName,
		Members: []ir.Member{
			{Name: ctx.Names.Intern("clip_position"), Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}},
		},
	})

	vsName := ctx.Names.Intern("vs_main")
	vsParamVar := ctx.AllocLocal(ir.TypeRef{Type: vertexInput})
	vs := ir.Function{
		Name:   vsName,
		Params: []ir.Param{{Name: posName, Type: ir.TypeRef{Type: vertexInput}, Var: vsParamVar}},
		Return: &ir.TypeRef{Type: outType},
		Block:  struct{}{}, // non-nil: marks this as a non-built-in
	}
	ctx.Functions.Add(vs)

	fsName := ctx.Names.Intern("ps_main")
	fs := ir.Function{Name: fsName, Block: struct{}{}}
	ctx.Functions.Add(fs)

	mvpName := ctx.Names.Intern("mvp")
	frameType := ctx.Types.Add(ir.Type{
		Name: ctx.Names.Intern("Frame"),
		Members: []ir.Member{
			{Name: mvpName, Type: ir.TypeRef{Type: ctx.Builtins.FloatMat[4]}},
		},
	})
	ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("frame"), Kind: ir.GlobalUniformBuffer, Type: ir.TypeRef{Type: frameType}})

	pipeAttr := ctx.Names.Intern("pipe")
	ctx.Types.Add(ir.Type{
		Name:       ctx.Names.Intern("MyPipe"),
		Attributes: []ir.NameID{pipeAttr},
		Members: []ir.Member{
			{Name: ctx.Names.Intern("vertex"), Literal: &ir.Literal{Kind: ir.LiteralIdent, Ident: vsName}},
			{Name: ctx.Names.Intern("fragment"), Literal: &ir.Literal{Kind: ir.LiteralIdent, Ident: fsName}},
		},
	})

	return ctx
}

func TestEmitHeaderDeclaresVertexStructAndPipeline(t *testing.T) {
	ctx := buildPipeline(t)
	out, err := NewBackend(ctx).EmitHeader()
	if err != nil {
		t.Fatalf("EmitHeader: %v", err)
	}
	if !strings.Contains(out, "typedef struct VertexInput {") {
		t.Fatalf("missing vertex input struct:\n%s", out)
	}
	if !strings.Contains(out, "kinc_vector3_t position;") {
		t.Fatalf("vertex input member should use kinc_vector3_t:\n%s", out)
	}
	if !strings.Contains(out, "extern kinc_g4_pipeline_t MyPipe;") {
		t.Fatalf("missing pipeline extern:\n%s", out)
	}
	if !strings.Contains(out, "Frame_buffer_lock") {
		t.Fatalf("missing uniform buffer helper declarations:\n%s", out)
	}
	if !strings.Contains(out, "void Frame_buffer_set_mvp(kope_g5_buffer *buffer, float4x4 value);") {
		t.Fatalf("missing per-member setter declaration:\n%s", out)
	}
}

func TestEmitSourceWiresShadersAndVertexLayout(t *testing.T) {
	ctx := buildPipeline(t)
	out, err := NewBackend(ctx).EmitSource()
	if err != nil {
		t.Fatalf("EmitSource: %v", err)
	}
	if !strings.Contains(out, "#include \"kong_vs_main.h\"") {
		t.Fatalf("missing vertex shader include:\n%s", out)
	}
	if !strings.Contains(out, "#include \"kong_ps_main.h\"") {
		t.Fatalf("missing fragment shader include:\n%s", out)
	}
	if !strings.Contains(out, "MyPipe.vertex_shader = &vs_main;") {
		t.Fatalf("missing vertex shader wiring:\n%s", out)
	}
	if !strings.Contains(out, "kinc_g4_vertex_structure_add(&VertexInput_structure, \"position\", KINC_G4_VERTEX_DATA_F32_3X);") {
		t.Fatalf("missing vertex structure entry:\n%s", out)
	}
	if !strings.Contains(out, "MyPipe.input_layout[0] = &VertexInput_structure;") {
		t.Fatalf("missing input layout wiring:\n%s", out)
	}
}

func TestEmitSourceTransposesMatrixOnUnlock(t *testing.T) {
	ctx := buildPipeline(t)
	out, err := NewBackend(ctx).EmitSource()
	if err != nil {
		t.Fatalf("EmitSource: %v", err)
	}
	if !strings.Contains(out, "void Frame_buffer_unlock(kope_g5_buffer *buffer) {") {
		t.Fatalf("missing buffer unlock function:\n%s", out)
	}
	if !strings.Contains(out, "kinc_matrix4x4_transpose(&data->mvp);") {
		t.Fatalf("missing matrix transpose on unlock:\n%s", out)
	}
	if !strings.Contains(out, "void Frame_buffer_set_mvp(kope_g5_buffer *buffer, float4x4 value) {") {
		t.Fatalf("missing per-member setter body:\n%s", out)
	}
	if !strings.Contains(out, "data->mvp = value;") {
		t.Fatalf("setter body should assign the member directly:\n%s", out)
	}
}

func TestEmitHeaderRejectsPipeWithoutVertexStage(t *testing.T) {
	ctx := ir.NewContext()
	pipeAttr := ctx.Names.Intern("pipe")
	ctx.Types.Add(ir.Type{
		Name:       ctx.Names.Intern("Broken"),
		Attributes: []ir.NameID{pipeAttr},
	})
	if _, err := NewBackend(ctx).EmitHeader(); err == nil {
		t.Fatalf("expected error for pipe without a vertex stage")
	}
}
