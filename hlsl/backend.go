package hlsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/kong/analyzer"
	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/ir"
)

// Backend renders one entry point and everything reachable from it (per
// analyzer.Reachable) as a single HLSL source string: struct declarations
// for every user type the entry touches, resource declarations with
// register/space bindings for every reachable global, and a plain
// function per reachable function with the entry itself carrying
// stage-appropriate semantics on its return value.
type Backend struct {
	ctx   *ir.Context
	names *namer // top-level scope: types, globals, functions
	out   strings.Builder
}

// NewBackend constructs a Backend over ctx. A Backend is single-use.
func NewBackend(ctx *ir.Context) *Backend {
	return &Backend{ctx: ctx, names: newNamer()}
}

// Emit renders entry (and its transitive call/global closure) as HLSL
// source text.
func (b *Backend) Emit(entry ir.FunctionID, stage analyzer.Stage) (string, error) {
	reach := analyzer.Reachable(b.ctx, entry)

	seenTypes := map[ir.TypeID]bool{}
	for _, gid := range reach.Globals {
		g := b.ctx.Globals.Get(gid)
		if g.Kind == ir.GlobalUniformBuffer {
			b.emitStructDecl(g.Type.Type, seenTypes, nil)
		}
	}
	fn := b.ctx.Functions.Get(entry)
	if fn.Return != nil {
		b.emitStructDecl(fn.Return.Type, seenTypes, entrySemantics(stage, false))
	}
	for _, p := range fn.Params {
		b.emitStructDecl(p.Type.Type, seenTypes, entrySemantics(stage, true))
	}

	for _, gid := range reach.Globals {
		if err := b.emitGlobal(gid, reach); err != nil {
			return "", err
		}
	}

	for _, fid := range reach.Functions {
		if err := b.emitFunction(fid); err != nil {
			return "", err
		}
	}

	return b.out.String(), nil
}

// entrySemantics picks the per-member semantic convention for an entry
// function's struct-typed parameter or return value: vertex input members
// are TEXCOORDn, vertex output's first member is the clip
// position and the rest are TEXCOORDn, and a fragment's output members are
// SV_Targetn.
func entrySemantics(stage analyzer.Stage, isParam bool) func(i int, m ir.Member) string {
	return func(i int, m ir.Member) string {
		if stage == analyzer.StageVertex && !isParam {
			if i == 0 {
				return "SV_Position"
			}
			return "TEXCOORD" + strconv.Itoa(i-1)
		}
		if stage == analyzer.StageFragment && !isParam {
			return "SV_Target" + strconv.Itoa(i)
		}
		return "TEXCOORD" + strconv.Itoa(i)
	}
}

// emitStructDecl writes a `struct Name { ... };` for t, recursing into
// member struct types first so a struct never references a type declared
// after it. Builtin (non-struct) types and types already emitted are
// skipped. semantics is nil for an ordinary (non-entry-facing) struct.
func (b *Backend) emitStructDecl(t ir.TypeID, seen map[ir.TypeID]bool, semantics func(int, ir.Member) string) {
	if seen[t] {
		return
	}
	typ := b.ctx.Types.Get(t)
	if typ.BuiltIn || len(typ.Members) == 0 {
		return
	}
	seen[t] = true
	for _, m := range typ.Members {
		b.emitStructDecl(m.Type.Type, seen, nil)
	}

	name := b.names.call(b.ctx.Names.Text(typ.Name))
	fmt.Fprintf(&b.out, "struct %s {\n", name)
	for i, m := range typ.Members {
		memberName := Escape(b.ctx.Names.Text(m.Name))
		decl := b.typeRefText(m.Type, memberName)
		if semantics != nil {
			fmt.Fprintf(&b.out, "    %s : %s;\n", decl, semantics(i, m))
		} else {
			fmt.Fprintf(&b.out, "    %s;\n", decl)
		}
	}
	b.out.WriteString("};\n\n")
}

// emitGlobal writes the register-bound resource declaration for one
// reachable global.
func (b *Backend) emitGlobal(gid ir.GlobalID, reach analyzer.Reach) error {
	g := b.ctx.Globals.Get(gid)
	set, hasSet := reach.GlobalSet(gid)
	binding := reach.Binding(gid)

	switch g.Kind {
	case ir.GlobalUniformBuffer:
		// The cbuffer block name is the backing struct type's name, not
		// the global's own instance name: HLSL exposes a cbuffer's
		// members directly at global scope, so the instance name never
		// appears in generated code (expr's ast.Access case elides it).
		blockName := b.typeName(g.Type.Type)
		typ := b.ctx.Types.Get(g.Type.Type)
		fmt.Fprintf(&b.out, "cbuffer %s%s {\n", blockName, registerSuffix("b", set, binding, hasSet))
		for _, m := range typ.Members {
			memberName := Escape(b.ctx.Names.Text(m.Name))
			fmt.Fprintf(&b.out, "    %s;\n", b.typeRefText(m.Type, memberName))
		}
		b.out.WriteString("};\n\n")
		return nil

	case ir.GlobalTexture:
		name := b.names.call(b.ctx.Names.Text(g.Name))
		kind := b.ctx.Types.Get(g.Type.Type).Texture
		fmt.Fprintf(&b.out, "%s %s%s;\n\n", textureTypeName(kind), name, registerSuffix("t", set, binding, hasSet))
		return nil

	case ir.GlobalSampler:
		name := b.names.call(b.ctx.Names.Text(g.Name))
		fmt.Fprintf(&b.out, "SamplerState %s%s;\n\n", name, registerSuffix("s", set, binding, hasSet))
		return nil

	case ir.GlobalAccelerationStructure:
		name := b.names.call(b.ctx.Names.Text(g.Name))
		fmt.Fprintf(&b.out, "RaytracingAccelerationStructure %s%s;\n\n", name, registerSuffix("t", set, binding, hasSet))
		return nil

	case ir.GlobalConstant:
		// Same elision as a uniform buffer member: the global's own
		// name becomes the bare member identifier, wrapped in a
		// singleton cbuffer whose block name is never referenced.
		memberName := b.names.call(b.ctx.Names.Text(g.Name))
		blockName := b.names.call(b.ctx.Names.Text(g.Name) + "_const")
		fmt.Fprintf(&b.out, "cbuffer %s%s {\n    %s;\n};\n\n", blockName, registerSuffix("b", set, binding, hasSet), b.typeRefText(g.Type, memberName))
		return nil

	default:
		return fmt.Errorf("hlsl: unhandled global kind %v", g.Kind)
	}
}

func registerSuffix(letter string, set ir.SetID, binding uint32, hasSet bool) string {
	if !hasSet {
		return ""
	}
	return fmt.Sprintf(" : register(%s%d, space%d)", letter, binding, set)
}

func textureTypeName(k ir.TextureKind) string {
	switch k {
	case ir.Texture2DArray:
		return "Texture2DArray"
	case ir.TextureCube:
		return "TextureCube"
	default:
		return "Texture2D"
	}
}

// emitFunction writes one reachable function: built-ins (Block == nil)
// are intrinsics the HLSL standard library already provides and are
// skipped.
func (b *Backend) emitFunction(fid ir.FunctionID) error {
	fn := b.ctx.Functions.Get(fid)
	if fn.IsBuiltIn() {
		return nil
	}
	body, ok := fn.Block.(*ast.Block)
	if !ok {
		return fmt.Errorf("hlsl: function %s has no lowered body", b.ctx.Names.Text(fn.Name))
	}

	retType := "void"
	if fn.Return != nil {
		retType = b.typeRefText(*fn.Return, "")
	}
	name := b.names.call(b.ctx.Names.Text(fn.Name))

	locals := newNamer()
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		pname := locals.call(b.ctx.Names.Text(p.Name))
		params[i] = b.typeRefText(p.Type, pname)
	}

	fmt.Fprintf(&b.out, "%s %s(%s) {\n", strings.TrimSpace(retType), name, strings.Join(params, ", "))
	e := &funcEmitter{backend: b, names: locals}
	e.writeBlock(body, 1)
	b.out.WriteString(e.buf.String())
	b.out.WriteString("}\n\n")
	return nil
}

// typeRefText renders a declaration for ref named ident: scalars, vectors
// and matrices print as "Type ident", arrays append HLSL's trailing
// "[N]"/"[]" bracket.
func (b *Backend) typeRefText(ref ir.TypeRef, ident string) string {
	base := b.typeName(ref.Type)
	switch {
	case ref.ArraySize == 0:
		if ident == "" {
			return base
		}
		return base + " " + ident
	case ref.ArraySize == ir.UnboundedSize:
		return fmt.Sprintf("%s %s[]", base, ident)
	default:
		return fmt.Sprintf("%s %s[%d]", base, ident, ref.ArraySize)
	}
}

func (b *Backend) typeName(t ir.TypeID) string {
	bi := b.ctx.Builtins
	switch t {
	case bi.Float:
		return "float"
	case bi.Int:
		return "int"
	case bi.Uint:
		return "uint"
	case bi.Bool:
		return "bool"
	case bi.Sampler:
		return "SamplerState"
	}
	for n := 2; n <= 4; n++ {
		switch t {
		case bi.FloatVec[n]:
			return "float" + strconv.Itoa(n)
		case bi.IntVec[n]:
			return "int" + strconv.Itoa(n)
		case bi.UintVec[n]:
			return "uint" + strconv.Itoa(n)
		case bi.BoolVec[n]:
			return "bool" + strconv.Itoa(n)
		case bi.FloatMat[n]:
			return "float" + strconv.Itoa(n) + "x" + strconv.Itoa(n)
		}
	}
	typ := b.ctx.Types.Get(t)
	return b.names.call(b.ctx.Names.Text(typ.Name))
}

// funcEmitter walks one function's *ast.Block and prints HLSL statement
// and expression text directly, sidestepping the flat ir.Op stream the
// SPIR-V backend consumes: a textual backend wants structured control
// flow, which the AST already carries.
type funcEmitter struct {
	backend *Backend
	names   *namer
	buf     strings.Builder
}

func (e *funcEmitter) indent(depth int) { e.buf.WriteString(strings.Repeat("    ", depth)) }

// identText resolves a source identifier to its emitted HLSL spelling: a
// local or parameter already declared in this function keeps the name its
// declaration was given, otherwise the identifier must name a module-level
// global or function and is resolved (and memoized) against the backend's
// top-level namer instead of this function's local one.
func (e *funcEmitter) identText(name string) string {
	if e.names.declared(name) {
		return e.names.call(name)
	}
	ctx := e.backend.ctx
	if gid, ok := ctx.Globals.FindByName(ctx.Names.Intern(name)); ok {
		return e.backend.names.call(ctx.Names.Text(ctx.Globals.Get(gid).Name))
	}
	if fid, ok := ctx.Functions.FindByName(ctx.Names.Intern(name)); ok {
		return e.backend.names.call(ctx.Names.Text(ctx.Functions.Get(fid).Name))
	}
	return e.names.call(name)
}

func (e *funcEmitter) writeBlock(blk *ast.Block, depth int) {
	for _, stmt := range blk.Statements {
		e.writeStmt(stmt, depth)
	}
}

func (e *funcEmitter) writeStmt(stmt ast.Stmt, depth int) {
	switch st := stmt.(type) {
	case ast.ExprStmt:
		e.indent(depth)
		e.buf.WriteString(e.expr(st.Expr))
		e.buf.WriteString(";\n")

	case ast.VarDecl:
		e.indent(depth)
		name := e.names.call(st.Name)
		typeName := Escape(st.Type)
		if tid := e.backend.ctx.Types.FindByName(e.backend.ctx.Names.Intern(st.Type)); tid != ir.NoType {
			typeName = e.backend.typeName(tid)
		}
		e.buf.WriteString(typeName)
		e.buf.WriteString(" ")
		e.buf.WriteString(name)
		if st.Init != nil {
			e.buf.WriteString(" = ")
			e.buf.WriteString(e.expr(st.Init))
		}
		e.buf.WriteString(";\n")

	case ast.Assign:
		e.indent(depth)
		e.buf.WriteString(e.expr(st.Target))
		e.buf.WriteString(" ")
		e.buf.WriteString(compoundOperatorText(st.Compound))
		e.buf.WriteString(" ")
		e.buf.WriteString(e.expr(st.Value))
		e.buf.WriteString(";\n")

	case ast.Return:
		e.indent(depth)
		if st.Value == nil {
			e.buf.WriteString("return;\n")
			return
		}
		e.buf.WriteString("return ")
		e.buf.WriteString(e.expr(st.Value))
		e.buf.WriteString(";\n")

	case ast.If:
		e.indent(depth)
		fmt.Fprintf(&e.buf, "if (%s) {\n", e.expr(st.Cond))
		e.writeBlock(st.Then, depth+1)
		e.indent(depth)
		if st.Else != nil {
			e.buf.WriteString("} else {\n")
			e.writeBlock(st.Else, depth+1)
			e.indent(depth)
		}
		e.buf.WriteString("}\n")

	case ast.While:
		e.indent(depth)
		fmt.Fprintf(&e.buf, "while (%s) {\n", e.expr(st.Cond))
		e.writeBlock(st.Body, depth+1)
		e.indent(depth)
		e.buf.WriteString("}\n")

	case ast.DoWhile:
		e.indent(depth)
		e.buf.WriteString("do {\n")
		e.writeBlock(st.Body, depth+1)
		e.indent(depth)
		fmt.Fprintf(&e.buf, "} while (%s);\n", e.expr(st.Cond))

	case ast.Block:
		e.indent(depth)
		e.buf.WriteString("{\n")
		e.writeBlock(&st, depth+1)
		e.indent(depth)
		e.buf.WriteString("}\n")
	}
}

func (e *funcEmitter) expr(ex ast.Expr) string {
	switch v := ex.(type) {
	case ast.NumberLiteral:
		if v.IsFloat {
			return strconv.FormatFloat(v.Float, 'g', -1, 64) + "f"
		}
		return strconv.FormatInt(int64(v.Float), 10)

	case ast.BoolLiteral:
		if v.Value {
			return "true"
		}
		return "false"

	case ast.Ident:
		return e.identText(v.Name)

	case ast.Unary:
		return unaryOperatorText(v.Op) + e.expr(v.Operand)

	case ast.Binary:
		return e.expr(v.Left) + " " + binaryOperatorText(v.Op) + " " + e.expr(v.Right)

	case ast.Call:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = e.expr(a)
		}
		return Escape(v.Callee) + "(" + strings.Join(args, ", ") + ")"

	case ast.Access:
		// A cbuffer global has no HLSL instance name of its own: its
		// members are visible directly at global scope, so a one-step
		// member access on it elides the base entirely.
		if baseIdent, ok := v.Base.(ast.Ident); ok && v.Kind == ast.AccessMember {
			if gid, isGlobal := e.backend.ctx.Globals.FindByName(e.backend.ctx.Names.Intern(baseIdent.Name)); isGlobal {
				if e.backend.ctx.Globals.Get(gid).Kind == ir.GlobalUniformBuffer {
					return Escape(v.Name)
				}
			}
		}
		base := e.expr(v.Base)
		switch v.Kind {
		case ast.AccessIndex:
			return base + "[" + e.expr(v.Index) + "]"
		default: // AccessMember and AccessSwizzle both print as dot access in HLSL
			return base + "." + Escape(v.Name)
		}

	default:
		return fmt.Sprintf("/* unsupported expr %T */", ex)
	}
}

func unaryOperatorText(op ast.UnaryOp) string {
	if op == ast.UnaryNot {
		return "!"
	}
	return "-"
}

func binaryOperatorText(op ir.BinaryKind) string {
	switch op {
	case ir.BinaryAdd:
		return "+"
	case ir.BinarySub:
		return "-"
	case ir.BinaryMultiply:
		return "*"
	case ir.BinaryDivide:
		return "/"
	case ir.BinaryMod:
		return "%"
	case ir.BinaryEqual:
		return "=="
	case ir.BinaryNotEqual:
		return "!="
	case ir.BinaryGreater:
		return ">"
	case ir.BinaryGreaterEqual:
		return ">="
	case ir.BinaryLess:
		return "<"
	case ir.BinaryLessEqual:
		return "<="
	case ir.BinaryAnd:
		return "&&"
	case ir.BinaryOr:
		return "||"
	case ir.BinaryBitwiseAnd:
		return "&"
	case ir.BinaryBitwiseOr:
		return "|"
	case ir.BinaryBitwiseXor:
		return "^"
	case ir.BinaryShiftLeft:
		return "<<"
	case ir.BinaryShiftRight:
		return ">>"
	default:
		return "?"
	}
}

func compoundOperatorText(c *ir.CompoundOp) string {
	if c == nil {
		return "="
	}
	switch *c {
	case ir.CompoundAdd:
		return "+="
	case ir.CompoundSub:
		return "-="
	case ir.CompoundMultiply:
		return "*="
	case ir.CompoundDivide:
		return "/="
	default:
		return "="
	}
}
