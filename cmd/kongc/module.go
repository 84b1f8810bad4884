// Module description decoding: since the tokenizer/parser that would
// normally turn shader source text into an ast.Block per function are
// outside this compiler's scope, kongc's input is the already-built
// lowering contract (types, globals, functions, function bodies) encoded
// as JSON. A real front end would build this structure directly in
// memory; kongc's JSON format exists only to give the CLI something
// concrete to read from disk.
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gogpu/kong/analyzer"
	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/ir"
)

type moduleFile struct {
	Types     []typeDecl     `json:"types"`
	Globals   []globalDecl   `json:"globals"`
	Functions []functionDecl `json:"functions"`
	Entries   []entryDecl    `json:"entries"`
}

type typeDecl struct {
	Name       string        `json:"name"`
	Attributes []string      `json:"attributes"`
	Members    []memberDecl  `json:"members"`
	ArraySize  uint32        `json:"arraySize"`
	BaseType   string        `json:"baseType"`
}

type memberDecl struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Array   uint32        `json:"array"`
	Literal *literalDecl `json:"literal"`
}

type literalDecl struct {
	Kind  string  `json:"kind"` // "float", "int", "bool", "ident"
	Float float64 `json:"float"`
	Int   int64   `json:"int"`
	Bool  bool    `json:"bool"`
	Ident string  `json:"ident"`
}

type globalDecl struct {
	Name string   `json:"name"`
	Kind string   `json:"kind"` // "uniform_buffer", "texture", "sampler", "acceleration_structure", "constant"
	Type string   `json:"type"`
	Sets []setRef `json:"sets"`
}

type setRef struct {
	Set      string `json:"set"`
	Writable bool   `json:"writable"`
}

type functionDecl struct {
	Name   string      `json:"name"`
	Params []paramDecl `json:"params"`
	Return string      `json:"return"`
	Body   []stmtDecl  `json:"body"`
}

type paramDecl struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type entryDecl struct {
	Function string `json:"function"`
	Stage    string `json:"stage"` // "vertex" or "fragment"
}

// stmtDecl and exprDecl use a "kind" discriminator decoded in two passes:
// json.RawMessage defers parsing the kind-specific fields until the
// discriminator is known, the same approach a hand-written recursive-
// descent parser would use one token ahead.
type stmtDecl struct {
	Kind string `json:"kind"`

	Expr     *exprDecl  `json:"expr"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Init     *exprDecl  `json:"init"`
	Target   *exprDecl  `json:"target"`
	Value    *exprDecl  `json:"value"`
	Compound string     `json:"compound"`
	Cond     *exprDecl  `json:"cond"`
	Then     []stmtDecl `json:"then"`
	Else     []stmtDecl `json:"else"`
	Body     []stmtDecl `json:"body"`
}

type exprDecl struct {
	Kind    string      `json:"kind"`
	Value   float64     `json:"value"`
	IsFloat bool        `json:"isFloat"`
	Bool    bool        `json:"bool"`
	Name    string      `json:"name"`
	Op      string      `json:"op"`
	Operand *exprDecl   `json:"operand"`
	Left    *exprDecl   `json:"left"`
	Right   *exprDecl   `json:"right"`
	Callee  string      `json:"callee"`
	Args    []exprDecl  `json:"args"`
	Base    *exprDecl   `json:"base"`
	Access  string      `json:"access"`
	Member  string      `json:"member"`
	Index   *exprDecl   `json:"index"`
}

// decodeModule reads a moduleFile and builds a *ir.Context plus the
// per-function bodies Lower needs and the entry points the CLI should
// emit, in declaration order (types and globals must land in the tables
// before any function body or pipeline reference can resolve them by
// name, matching the historical front end's single forward pass).
func decodeModule(r io.Reader) (*ir.Context, map[ir.FunctionID]*ast.Block, []resolvedEntry, error) {
	var mf moduleFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, nil, nil, fmt.Errorf("decoding module: %w", err)
	}

	ctx := ir.NewContext()

	for _, td := range mf.Types {
		t := ir.Type{Name: ctx.Names.Intern(td.Name), ArraySize: td.ArraySize}
		for _, a := range td.Attributes {
			t.Attributes = append(t.Attributes, ctx.Names.Intern(a))
		}
		if td.BaseType != "" {
			bt, ok := lookupTypeName(ctx, td.BaseType)
			if !ok {
				return nil, nil, nil, fmt.Errorf("type %s: unknown base type %q", td.Name, td.BaseType)
			}
			t.BaseType = bt
		}
		for _, md := range td.Members {
			mt, ok := lookupTypeName(ctx, md.Type)
			if !ok {
				return nil, nil, nil, fmt.Errorf("type %s member %s: unknown type %q", td.Name, md.Name, md.Type)
			}
			m := ir.Member{Name: ctx.Names.Intern(md.Name), Type: ir.TypeRef{Type: mt, ArraySize: md.Array}}
			if md.Literal != nil {
				lit, err := decodeLiteral(ctx, *md.Literal)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("type %s member %s: %w", td.Name, md.Name, err)
				}
				m.Literal = &lit
			}
			t.Members = append(t.Members, m)
		}
		ctx.Types.Add(t)
	}

	sets := make(map[string]ir.SetID)
	globalsByName := make(map[string]ir.GlobalID)
	for _, gd := range mf.Globals {
		kind, err := decodeGlobalKind(gd.Kind)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("global %s: %w", gd.Name, err)
		}
		gt, ok := lookupTypeName(ctx, gd.Type)
		if !ok {
			return nil, nil, nil, fmt.Errorf("global %s: unknown type %q", gd.Name, gd.Type)
		}
		gid := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern(gd.Name), Kind: kind, Type: ir.TypeRef{Type: gt}})
		globalsByName[gd.Name] = gid
		for _, sr := range gd.Sets {
			setID, ok := sets[sr.Set]
			if !ok {
				setID = ctx.Sets.GetOrAdd(ctx.Names.Intern(sr.Set))
				sets[sr.Set] = setID
			}
			ctx.AddGlobalToSet(setID, gid, sr.Writable)
		}
	}

	bodies := make(map[ir.FunctionID]*ast.Block)
	functionsByName := make(map[string]ir.FunctionID)
	for _, fd := range mf.Functions {
		fn := ir.Function{Name: ctx.Names.Intern(fd.Name)}
		if fd.Return != "" {
			rt, ok := lookupTypeName(ctx, fd.Return)
			if !ok {
				return nil, nil, nil, fmt.Errorf("function %s: unknown return type %q", fd.Name, fd.Return)
			}
			fn.Return = &ir.TypeRef{Type: rt}
		}
		for _, pd := range fd.Params {
			pt, ok := lookupTypeName(ctx, pd.Type)
			if !ok {
				return nil, nil, nil, fmt.Errorf("function %s param %s: unknown type %q", fd.Name, pd.Name, pd.Type)
			}
			v := ctx.AllocLocal(ir.TypeRef{Type: pt})
			fn.Params = append(fn.Params, ir.Param{Name: ctx.Names.Intern(pd.Name), Type: ir.TypeRef{Type: pt}, Var: v})
		}
		fid := ctx.Functions.Add(fn)
		functionsByName[fd.Name] = fid
		if len(fd.Body) > 0 {
			block, err := decodeBlock(fd.Body)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("function %s: %w", fd.Name, err)
			}
			bodies[fid] = block
		}
	}

	var entries []resolvedEntry
	for _, ed := range mf.Entries {
		fid, ok := functionsByName[ed.Function]
		if !ok {
			return nil, nil, nil, fmt.Errorf("entry %s: function not declared", ed.Function)
		}
		stage, err := decodeStage(ed.Stage)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("entry %s: %w", ed.Function, err)
		}
		entries = append(entries, resolvedEntry{Function: fid, Stage: stage, Name: ed.Function})
	}

	return ctx, bodies, entries, nil
}

type resolvedEntry struct {
	Function ir.FunctionID
	Stage    analyzer.Stage
	Name     string
}

func decodeStage(s string) (analyzer.Stage, error) {
	switch s {
	case "vertex":
		return analyzer.StageVertex, nil
	case "fragment":
		return analyzer.StageFragment, nil
	default:
		return 0, fmt.Errorf("unknown stage %q (want vertex or fragment)", s)
	}
}

func decodeGlobalKind(k string) (ir.GlobalKind, error) {
	switch k {
	case "uniform_buffer":
		return ir.GlobalUniformBuffer, nil
	case "texture":
		return ir.GlobalTexture, nil
	case "sampler":
		return ir.GlobalSampler, nil
	case "acceleration_structure":
		return ir.GlobalAccelerationStructure, nil
	case "constant":
		return ir.GlobalConstant, nil
	default:
		return 0, fmt.Errorf("unknown global kind %q", k)
	}
}

func decodeLiteral(ctx *ir.Context, ld literalDecl) (ir.Literal, error) {
	switch ld.Kind {
	case "float":
		return ir.Literal{Kind: ir.LiteralFloat, Float: ld.Float}, nil
	case "int":
		return ir.Literal{Kind: ir.LiteralInt, Int: ld.Int}, nil
	case "bool":
		return ir.Literal{Kind: ir.LiteralBool, Bool: ld.Bool}, nil
	case "ident":
		return ir.Literal{Kind: ir.LiteralIdent, Ident: ctx.Names.Intern(ld.Ident)}, nil
	default:
		return ir.Literal{}, fmt.Errorf("unknown literal kind %q", ld.Kind)
	}
}

// lookupTypeName resolves a type name against both user-declared types and
// the built-in scalar/vector/matrix names (float, float4, float4x4, ...),
// the same type-table lookup compiler.Lower uses for a local declaration's
// type.
func lookupTypeName(ctx *ir.Context, name string) (ir.TypeID, bool) {
	id, ok := ctx.Names.Lookup(name)
	if !ok {
		return ir.NoType, false
	}
	t := ctx.Types.FindByName(id)
	if t == ir.NoType {
		return ir.NoType, false
	}
	return t, true
}

func decodeBlock(stmts []stmtDecl) (*ast.Block, error) {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, sd := range stmts {
		s, err := decodeStmt(sd)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return &ast.Block{Statements: out}, nil
}

func decodeStmt(sd stmtDecl) (ast.Stmt, error) {
	switch sd.Kind {
	case "expr":
		e, err := decodeExpr(sd.Expr)
		if err != nil {
			return nil, err
		}
		return ast.ExprStmt{Expr: e}, nil
	case "decl":
		init, err := decodeOptionalExpr(sd.Init)
		if err != nil {
			return nil, err
		}
		return ast.VarDecl{Name: sd.Name, Type: sd.Type, Init: init}, nil
	case "assign":
		target, err := decodeExpr(sd.Target)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(sd.Value)
		if err != nil {
			return nil, err
		}
		var compound *ir.CompoundOp
		if sd.Compound != "" {
			c, err := decodeCompound(sd.Compound)
			if err != nil {
				return nil, err
			}
			compound = &c
		}
		return ast.Assign{Target: target, Value: value, Compound: compound}, nil
	case "return":
		v, err := decodeOptionalExpr(sd.Value)
		if err != nil {
			return nil, err
		}
		return ast.Return{Value: v}, nil
	case "if":
		cond, err := decodeExpr(sd.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeBlock(sd.Then)
		if err != nil {
			return nil, err
		}
		var els *ast.Block
		if sd.Else != nil {
			els, err = decodeBlock(sd.Else)
			if err != nil {
				return nil, err
			}
		}
		return ast.If{Cond: cond, Then: then, Else: els}, nil
	case "while":
		cond, err := decodeExpr(sd.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(sd.Body)
		if err != nil {
			return nil, err
		}
		return ast.While{Cond: cond, Body: body}, nil
	case "dowhile":
		cond, err := decodeExpr(sd.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeBlock(sd.Body)
		if err != nil {
			return nil, err
		}
		return ast.DoWhile{Cond: cond, Body: body}, nil
	case "block":
		return decodeBlock(sd.Body)
	default:
		return nil, fmt.Errorf("unknown statement kind %q", sd.Kind)
	}
}

func decodeOptionalExpr(e *exprDecl) (ast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return decodeExpr(e)
}

func decodeExpr(e *exprDecl) (ast.Expr, error) {
	if e == nil {
		return nil, fmt.Errorf("missing expression")
	}
	switch e.Kind {
	case "num":
		return ast.NumberLiteral{Float: e.Value, IsFloat: e.IsFloat}, nil
	case "bool":
		return ast.BoolLiteral{Value: e.Bool}, nil
	case "ident":
		return ast.Ident{Name: e.Name}, nil
	case "unary":
		op, err := decodeUnaryOp(e.Op)
		if err != nil {
			return nil, err
		}
		operand, err := decodeExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: op, Operand: operand}, nil
	case "binary":
		op, err := decodeBinaryOp(e.Op)
		if err != nil {
			return nil, err
		}
		left, err := decodeExpr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: op, Left: left, Right: right}, nil
	case "call":
		args := make([]ast.Expr, len(e.Args))
		for i := range e.Args {
			a, err := decodeExpr(&e.Args[i])
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return ast.Call{Callee: e.Callee, Args: args}, nil
	case "access":
		base, err := decodeExpr(e.Base)
		if err != nil {
			return nil, err
		}
		kind, err := decodeAccessKind(e.Access)
		if err != nil {
			return nil, err
		}
		access := ast.Access{Base: base, Kind: kind, Name: e.Member}
		if kind == ast.AccessIndex {
			idx, err := decodeExpr(e.Index)
			if err != nil {
				return nil, err
			}
			access.Index = idx
		}
		return access, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", e.Kind)
	}
}

func decodeUnaryOp(op string) (ast.UnaryOp, error) {
	switch op {
	case "neg":
		return ast.UnaryNegate, nil
	case "not":
		return ast.UnaryNot, nil
	default:
		return 0, fmt.Errorf("unknown unary operator %q", op)
	}
}

func decodeBinaryOp(op string) (ir.BinaryKind, error) {
	switch op {
	case "add":
		return ir.BinaryAdd, nil
	case "sub":
		return ir.BinarySub, nil
	case "mul":
		return ir.BinaryMultiply, nil
	case "div":
		return ir.BinaryDivide, nil
	case "mod":
		return ir.BinaryMod, nil
	case "eq":
		return ir.BinaryEqual, nil
	case "ne":
		return ir.BinaryNotEqual, nil
	case "gt":
		return ir.BinaryGreater, nil
	case "ge":
		return ir.BinaryGreaterEqual, nil
	case "lt":
		return ir.BinaryLess, nil
	case "le":
		return ir.BinaryLessEqual, nil
	case "and":
		return ir.BinaryAnd, nil
	case "or":
		return ir.BinaryOr, nil
	case "band":
		return ir.BinaryBitwiseAnd, nil
	case "bor":
		return ir.BinaryBitwiseOr, nil
	case "bxor":
		return ir.BinaryBitwiseXor, nil
	case "shl":
		return ir.BinaryShiftLeft, nil
	case "shr":
		return ir.BinaryShiftRight, nil
	default:
		return 0, fmt.Errorf("unknown binary operator %q", op)
	}
}

func decodeCompound(op string) (ir.CompoundOp, error) {
	switch op {
	case "add":
		return ir.CompoundAdd, nil
	case "sub":
		return ir.CompoundSub, nil
	case "mul":
		return ir.CompoundMultiply, nil
	case "div":
		return ir.CompoundDivide, nil
	default:
		return 0, fmt.Errorf("unknown compound operator %q", op)
	}
}

func decodeAccessKind(k string) (ast.AccessKind, error) {
	switch k {
	case "member":
		return ast.AccessMember, nil
	case "index":
		return ast.AccessIndex, nil
	case "swizzle":
		return ast.AccessSwizzle, nil
	default:
		return 0, fmt.Errorf("unknown access kind %q", k)
	}
}
