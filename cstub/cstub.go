// Package cstub generates the C integration layer a host application links
// against: a header/source pair declaring one vertex-input struct and
// vertex-structure descriptor per `pipe`-tagged pipeline, the pipeline
// objects themselves in declaration order, a kong_init that wires shaders
// and vertex layouts together, and per-uniform-buffer
// init/destroy/lock/unlock/set helpers. Grounded on the historical
// c_export (c.c) and the buffer helper generation in kope.c; the
// per-member setters are a small addition c.c/kope.c didn't generate.
package cstub

import (
	"fmt"
	"strings"

	"github.com/gogpu/kong/ir"
	"github.com/gogpu/kong/textual"
)

// Backend walks a *ir.Context's types and globals looking for the shapes
// c_export recognized by naming convention rather than a dedicated IR node:
// a `pipe`-attributed type wires named shader functions together, and every
// uniform-buffer global gets buffer helpers.
type Backend struct {
	ctx      *ir.Context
	pipeName ir.NameID
	vertName ir.NameID
	fragName ir.NameID
}

func NewBackend(ctx *ir.Context) *Backend {
	return &Backend{
		ctx:      ctx,
		pipeName: ctx.Names.Intern("pipe"),
		vertName: ctx.Names.Intern("vertex"),
		fragName: ctx.Names.Intern("fragment"),
	}
}

// pipeline is one `pipe`-tagged type resolved to its member shader
// functions and the vertex entry's parameter struct.
type pipeline struct {
	name         string
	vertexName   string
	fragmentName string
	vertexInput  ir.TypeID
}

// pipelines returns every pipe-tagged type in declaration order, matching
// c_export's single forward scan over the type table.
func (b *Backend) pipelines() ([]pipeline, error) {
	var out []pipeline
	for _, tid := range b.ctx.Types.All() {
		t := b.ctx.Types.Get(tid)
		if t.BuiltIn || !t.HasAttribute(b.pipeName) {
			continue
		}

		p := pipeline{name: b.ctx.Names.Text(t.Name), vertexInput: ir.NoType}
		for _, m := range t.Members {
			if m.Literal == nil || m.Literal.Kind != ir.LiteralIdent {
				continue
			}
			switch m.Name {
			case b.vertName:
				p.vertexName = b.ctx.Names.Text(m.Literal.Ident)
			case b.fragName:
				p.fragmentName = b.ctx.Names.Text(m.Literal.Ident)
			default:
				return nil, fmt.Errorf("pipe %s: unknown stage member %q", p.name, b.ctx.Names.Text(m.Name))
			}
		}
		if p.vertexName == "" {
			return nil, fmt.Errorf("pipe %s: missing vertex stage", p.name)
		}

		fid, ok := b.ctx.Functions.FindByName(b.ctx.Names.Intern(p.vertexName))
		if !ok {
			return nil, fmt.Errorf("pipe %s: vertex function %q not found", p.name, p.vertexName)
		}
		fn := b.ctx.Functions.Get(fid)
		if len(fn.Params) == 0 {
			return nil, fmt.Errorf("pipe %s: vertex function %q takes no parameters", p.name, p.vertexName)
		}
		p.vertexInput = fn.Params[0].Type.Type

		out = append(out, p)
	}
	return out, nil
}

// typeString renders the C type used for a struct member, matching
// type_string's special-casing of the scalar/vector built-ins that Kinc's
// math header already names.
func (b *Backend) typeString(t ir.TypeID) string {
	switch t {
	case b.ctx.Builtins.Float:
		return "float"
	case b.ctx.Builtins.FloatVec[2]:
		return "kinc_vector2_t"
	case b.ctx.Builtins.FloatVec[3]:
		return "kinc_vector3_t"
	case b.ctx.Builtins.FloatVec[4]:
		return "kinc_vector4_t"
	}
	return b.ctx.Names.Text(b.ctx.Types.Get(t).Name)
}

// vertexDataConstant maps a vertex-input member's type to the Kinc
// vertex-structure element constant, matching structure_type.
func (b *Backend) vertexDataConstant(t ir.TypeID) (string, error) {
	switch t {
	case b.ctx.Builtins.Float:
		return "KINC_G4_VERTEX_DATA_F32_1X", nil
	case b.ctx.Builtins.FloatVec[2]:
		return "KINC_G4_VERTEX_DATA_F32_2X", nil
	case b.ctx.Builtins.FloatVec[3]:
		return "KINC_G4_VERTEX_DATA_F32_3X", nil
	case b.ctx.Builtins.FloatVec[4]:
		return "KINC_G4_VERTEX_DATA_F32_4X", nil
	}
	return "", fmt.Errorf("type %s cannot appear in a vertex input", b.ctx.Names.Text(b.ctx.Types.Get(t).Name))
}

// EmitHeader writes kong.h: the vertex-input structs and their matching
// Kinc vertex-structure externs, kong_init's prototype, and one pipeline
// object extern per pipe-tagged type.
func (b *Backend) EmitHeader() (string, error) {
	pipes, err := b.pipelines()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("#include <kinc/graphics4/pipeline.h>\n")
	out.WriteString("#include <kinc/graphics4/vertexbuffer.h>\n")
	out.WriteString("#include <kinc/math/vector.h>\n\n")

	for _, vt := range vertexInputTypes(pipes) {
		t := b.ctx.Types.Get(vt)
		name := b.ctx.Names.Text(t.Name)

		fmt.Fprintf(&out, "typedef struct %s {\n", name)
		for _, m := range t.Members {
			fmt.Fprintf(&out, "\t%s %s;\n", b.typeString(m.Type.Type), b.ctx.Names.Text(m.Name))
		}
		fmt.Fprintf(&out, "} %s;\n\n", name)
		fmt.Fprintf(&out, "extern kinc_g4_vertex_structure_t %s_structure;\n\n", name)
	}

	out.WriteString("void kong_init(void);\n\n")

	for _, p := range pipes {
		fmt.Fprintf(&out, "extern kinc_g4_pipeline_t %s;\n\n", p.name)
	}

	if err := b.emitBufferHeaders(&out); err != nil {
		return "", err
	}

	return out.String(), nil
}

// vertexInputTypes returns each distinct vertex-input type used by pipes,
// in first-use order, mirroring c_export's vertex_inputs accumulator.
func vertexInputTypes(pipes []pipeline) []ir.TypeID {
	seen := make(map[ir.TypeID]bool)
	var out []ir.TypeID
	for _, p := range pipes {
		if p.vertexInput == ir.NoType || seen[p.vertexInput] {
			continue
		}
		seen[p.vertexInput] = true
		out = append(out, p.vertexInput)
	}
	return out
}

// bufferGlobals returns every global eligible for init/destroy/lock/
// unlock/set-member helpers: the globals of kind GlobalUniformBuffer. No
// other kind of global gets helpers.
func (b *Backend) bufferGlobals() []ir.GlobalID {
	var out []ir.GlobalID
	for _, gid := range b.ctx.Globals.All() {
		g := b.ctx.Globals.Get(gid)
		if g.Kind != ir.GlobalUniformBuffer {
			continue
		}
		out = append(out, gid)
	}
	return out
}

// bufferTypeName names the generated struct/function family for a
// uniform-buffer global: the backing type's own name if it has one,
// otherwise the global's name with a _type suffix (kope.c's fallback for
// anonymous block types).
func (b *Backend) bufferTypeName(gid ir.GlobalID) string {
	g := b.ctx.Globals.Get(gid)
	t := b.ctx.Types.Get(g.Type.Type)
	if t.Name != ir.NoName {
		return b.ctx.Names.Text(t.Name)
	}
	return b.ctx.Names.Text(g.Name) + "_type"
}

func (b *Backend) emitBufferHeaders(out *strings.Builder) error {
	for _, gid := range b.bufferGlobals() {
		name := b.bufferTypeName(gid)
		g := b.ctx.Globals.Get(gid)
		t := b.ctx.Types.Get(g.Type.Type)

		fmt.Fprintf(out, "void %s_buffer_init(kope_g5_device *device, kope_g5_buffer *buffer);\n", name)
		fmt.Fprintf(out, "void %s_buffer_destroy(kope_g5_buffer *buffer);\n", name)
		fmt.Fprintf(out, "%s *%s_buffer_lock(kope_g5_buffer *buffer);\n", name, name)
		fmt.Fprintf(out, "void %s_buffer_unlock(kope_g5_buffer *buffer);\n", name)
		for _, m := range t.Members {
			memberName := b.ctx.Names.Text(m.Name)
			fmt.Fprintf(out, "void %s_buffer_set_%s(kope_g5_buffer *buffer, %s value);\n", name, memberName, b.typeString(m.Type.Type))
		}
		out.WriteString("\n")
	}
	return nil
}

// EmitSource writes kong.c: per-stage shader includes, pipeline/vertex-
// structure storage, kong_init, and the buffer helper bodies.
func (b *Backend) EmitSource() (string, error) {
	pipes, err := b.pipelines()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("#include \"kong.h\"\n\n")

	for _, p := range pipes {
		fmt.Fprintf(&out, "#include \"kong_%s.h\"\n", p.vertexName)
		if p.fragmentName != "" {
			fmt.Fprintf(&out, "#include \"kong_%s.h\"\n", p.fragmentName)
		}
	}
	out.WriteString("\n")

	for _, p := range pipes {
		fmt.Fprintf(&out, "kinc_g4_pipeline_t %s;\n\n", p.name)
	}

	vertexTypes := vertexInputTypes(pipes)
	for _, vt := range vertexTypes {
		name := b.ctx.Names.Text(b.ctx.Types.Get(vt).Name)
		fmt.Fprintf(&out, "kinc_g4_vertex_structure_t %s_structure;\n", name)
	}

	out.WriteString("\nvoid kong_init(void) {\n")
	for _, p := range pipes {
		if err := b.emitPipelineInit(&out, p); err != nil {
			return "", err
		}
	}
	out.WriteString("}\n")

	if err := b.emitBufferSources(&out); err != nil {
		return "", err
	}

	return out.String(), nil
}

func (b *Backend) emitPipelineInit(out *strings.Builder, p pipeline) error {
	fmt.Fprintf(out, "\tkinc_g4_pipeline_init(&%s);\n\n", p.name)

	fmt.Fprintf(out, "\tkinc_g4_shader_t %s;\n", p.vertexName)
	fmt.Fprintf(out, "\tkinc_g4_shader_init(&%s, %s_code, %s_code_size, KINC_G4_SHADER_TYPE_VERTEX);\n", p.vertexName, p.vertexName, p.vertexName)
	fmt.Fprintf(out, "\t%s.vertex_shader = &%s;\n\n", p.name, p.vertexName)

	if p.fragmentName != "" {
		fmt.Fprintf(out, "\tkinc_g4_shader_t %s;\n", p.fragmentName)
		fmt.Fprintf(out, "\tkinc_g4_shader_init(&%s, %s_code, %s_code_size, KINC_G4_SHADER_TYPE_FRAGMENT);\n", p.fragmentName, p.fragmentName, p.fragmentName)
		fmt.Fprintf(out, "\t%s.fragment_shader = &%s;\n\n", p.name, p.fragmentName)
	}

	t := b.ctx.Types.Get(p.vertexInput)
	inputName := b.ctx.Names.Text(t.Name)
	fmt.Fprintf(out, "\tkinc_g4_vertex_structure_init(&%s_structure);\n", inputName)
	for _, m := range t.Members {
		c, err := b.vertexDataConstant(m.Type.Type)
		if err != nil {
			return fmt.Errorf("pipe %s: %w", p.name, err)
		}
		fmt.Fprintf(out, "\tkinc_g4_vertex_structure_add(&%s_structure, %s, %s);\n", inputName, textual.EscapeString(b.ctx.Names.Text(m.Name)), c)
	}
	out.WriteString("\n")

	fmt.Fprintf(out, "\t%s.input_layout[0] = &%s_structure;\n", p.name, inputName)
	fmt.Fprintf(out, "\t%s.input_layout[1] = NULL;\n\n", p.name)
	fmt.Fprintf(out, "\tkinc_g4_pipeline_compile(&%s);\n\n", p.name)
	return nil
}

// hasMatrix reports whether t's own fields include a square float matrix,
// the case kope.c transposes on unlock (row-major shader layout, column-
// major GPU layout).
func (b *Backend) hasMatrix(t *ir.Type) bool {
	for _, m := range t.Members {
		if m.Type.Type == b.ctx.Builtins.FloatMat[3] || m.Type.Type == b.ctx.Builtins.FloatMat[4] {
			return true
		}
	}
	return false
}

func (b *Backend) emitBufferSources(out *strings.Builder) error {
	for _, gid := range b.bufferGlobals() {
		g := b.ctx.Globals.Get(gid)
		t := b.ctx.Types.Get(g.Type.Type)
		name := b.bufferTypeName(gid)

		fmt.Fprintf(out, "\nvoid %s_buffer_init(kope_g5_device *device, kope_g5_buffer *buffer) {\n", name)
		out.WriteString("\tkope_g5_buffer_parameters parameters;\n")
		fmt.Fprintf(out, "\tparameters.size = %d;\n", b.structSize(t))
		out.WriteString("\tparameters.usage_flags = KOPE_G5_BUFFER_USAGE_CPU_WRITE;\n")
		out.WriteString("\tkope_g5_device_create_buffer(device, &parameters, buffer);\n")
		out.WriteString("}\n\n")

		fmt.Fprintf(out, "void %s_buffer_destroy(kope_g5_buffer *buffer) {\n", name)
		out.WriteString("\tkope_g5_buffer_destroy(buffer);\n")
		out.WriteString("}\n\n")

		fmt.Fprintf(out, "%s *%s_buffer_lock(kope_g5_buffer *buffer) {\n", name, name)
		fmt.Fprintf(out, "\treturn (%s *)kope_g5_buffer_lock(buffer);\n", name)
		out.WriteString("}\n\n")

		fmt.Fprintf(out, "void %s_buffer_unlock(kope_g5_buffer *buffer) {\n", name)
		if b.hasMatrix(t) {
			fmt.Fprintf(out, "\t%s *data = (%s *)kope_g5_buffer_lock(buffer);\n", name, name)
			for _, m := range t.Members {
				switch m.Type.Type {
				case b.ctx.Builtins.FloatMat[4]:
					fmt.Fprintf(out, "\tkinc_matrix4x4_transpose(&data->%s);\n", b.ctx.Names.Text(m.Name))
				case b.ctx.Builtins.FloatMat[3]:
					b.emitMatrix3x3Transpose(out, m.Name)
				}
			}
		}
		out.WriteString("\tkope_g5_buffer_unlock(buffer);\n")
		out.WriteString("}\n\n")

		for _, m := range t.Members {
			memberName := b.ctx.Names.Text(m.Name)
			fmt.Fprintf(out, "void %s_buffer_set_%s(kope_g5_buffer *buffer, %s value) {\n", name, memberName, b.typeString(m.Type.Type))
			fmt.Fprintf(out, "\t%s *data = (%s *)kope_g5_buffer_lock(buffer);\n", name, name)
			fmt.Fprintf(out, "\tdata->%s = value;\n", memberName)
			out.WriteString("\tkope_g5_buffer_unlock(buffer);\n")
			out.WriteString("}\n\n")
		}
	}
	return nil
}

// emitMatrix3x3Transpose pads a shader-side 3x3 matrix into the 4-column
// layout GPU buffers expect, matching kope.c's manual component shuffle
// (there is no kinc_matrix3x3_transpose equivalent for the padded layout).
func (b *Backend) emitMatrix3x3Transpose(out *strings.Builder, member ir.NameID) {
	name := b.ctx.Names.Text(member)
	fmt.Fprintf(out, "\t{\n")
	fmt.Fprintf(out, "\t\tkinc_matrix3x3_t m = data->%s;\n", name)
	fmt.Fprintf(out, "\t\tfloat *m_data = (float *)&data->%s;\n", name)
	rows := []int{0, 1, 2, -1, 3, 4, 5, -1, 6, 7, 8, -1}
	for i, src := range rows {
		if src < 0 {
			fmt.Fprintf(out, "\t\tm_data[%d] = 0.0f;\n", i)
		} else {
			fmt.Fprintf(out, "\t\tm_data[%d] = m.m[%d];\n", i, src)
		}
	}
	out.WriteString("\t}\n")
}

// structSize computes a struct's std140-ish byte size for the buffer
// allocation request: every scalar/vector is assumed 4-byte-component and
// padded to a 16-byte stride like a uniform-buffer member would be,
// mirroring struct_size's role in kope.c without replicating Kinc's exact
// layout tables (out of scope: the generated .h/.c pair only needs a size
// large enough for kope_g5_device_create_buffer, not a byte-exact ABI).
func (b *Backend) structSize(t *ir.Type) int {
	size := 0
	for _, m := range t.Members {
		size += b.memberStride(m.Type.Type)
	}
	return size
}

func (b *Backend) memberStride(t ir.TypeID) int {
	switch t {
	case b.ctx.Builtins.Float, b.ctx.Builtins.Int, b.ctx.Builtins.Uint, b.ctx.Builtins.Bool:
		return 16
	case b.ctx.Builtins.FloatMat[3]:
		return 48
	case b.ctx.Builtins.FloatMat[4]:
		return 64
	}
	for n := 2; n <= 4; n++ {
		if t == b.ctx.Builtins.FloatVec[n] || t == b.ctx.Builtins.IntVec[n] || t == b.ctx.Builtins.UintVec[n] {
			return 16
		}
	}
	return 16
}
