// Package compiler lowers an ast.Block into a flat stream of ir.Op values
// appended to an ir.Function, resolving identifiers through a scope chain
// exactly like the historical find_variable/find_local_var walk: look in
// the nearest enclosing block first, then fall back to the module's
// converted globals.
package compiler

import (
	"fmt"

	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/ir"
)

// scope is one link in the block nesting chain; each ast.Block lowered
// pushes a fresh scope whose vars are populated as VarDecls are seen, then
// pops back to its parent once the block ends.
type scope struct {
	vars   map[string]ir.Variable
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]ir.Variable), parent: parent}
}

func (s *scope) lookup(name string) (ir.Variable, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return ir.Variable{}, false
}

// resolve looks a name up through the scope chain first, falling back to
// the module's converted globals (find_variable's historical fallback: a
// name not bound by any enclosing block must name a global).
func resolve(ctx *ir.Context, s *scope, name string) (ir.Variable, bool) {
	if v, ok := s.lookup(name); ok {
		return v, true
	}
	gid, ok := ctx.Globals.FindByName(ctx.Names.Intern(name))
	if !ok {
		return ir.Variable{}, false
	}
	g := ctx.Globals.Get(gid)
	if g.Var == ir.NoVar {
		return ir.Variable{}, false
	}
	return ir.Variable{ID: g.Var, Type: g.Type, Kind: ir.VarGlobal}, true
}

// Lower appends fn's body to fn.Code, binding fn's own parameters as the
// outermost scope before walking body. ctx.ConvertGlobals must already have
// run, since global lookups resolve through it (find_variable's fallback).
func Lower(ctx *ir.Context, fn *ir.Function, body *ast.Block) error {
	fn.Block = body
	top := newScope(nil)
	for _, p := range fn.Params {
		top.vars[ctx.Names.Text(p.Name)] = p.Var
	}
	return lowerBlock(ctx, fn, body, top)
}

func lowerBlock(ctx *ir.Context, fn *ir.Function, b *ast.Block, parent *scope) error {
	id := ctx.AllocBlock()
	fn.Emit(ir.BlockStart{ID: id})
	s := newScope(parent)
	for _, stmt := range b.Statements {
		if err := lowerStmt(ctx, fn, stmt, s); err != nil {
			return err
		}
	}
	fn.Emit(ir.BlockEnd{ID: id})
	return nil
}

func lowerStmt(ctx *ir.Context, fn *ir.Function, stmt ast.Stmt, s *scope) error {
	switch st := stmt.(type) {
	case ast.ExprStmt:
		_, err := lowerExpr(ctx, fn, st.Expr, s)
		return err

	case ast.VarDecl:
		typeID := ctx.Types.FindByName(ctx.Names.Intern(st.Type))
		if typeID == ir.NoType {
			return fmt.Errorf("compiler: unknown type %q for local %q", st.Type, st.Name)
		}
		v := ctx.AllocLocal(ir.TypeRef{Type: typeID})
		s.vars[st.Name] = v
		fn.Emit(ir.Var{Variable: v})
		if st.Init != nil {
			init, err := lowerExpr(ctx, fn, st.Init, s)
			if err != nil {
				return err
			}
			fn.Emit(ir.StoreVariable{To: v, From: init})
		}
		return nil

	case ast.Assign:
		return lowerAssign(ctx, fn, st, s)

	case ast.Return:
		if st.Value == nil {
			fn.Emit(ir.Return{})
			return nil
		}
		v, err := lowerExpr(ctx, fn, st.Value, s)
		if err != nil {
			return err
		}
		fn.Emit(ir.Return{Value: &v})
		return nil

	case ast.If:
		cond, err := lowerExpr(ctx, fn, st.Cond, s)
		if err != nil {
			return err
		}
		start := ctx.AllocBlock()
		end := ctx.AllocBlock()
		fn.Emit(ir.If{Condition: cond, Start: start, End: end})
		if err := lowerBlock(ctx, fn, st.Then, s); err != nil {
			return err
		}
		if st.Else != nil {
			if err := lowerBlock(ctx, fn, st.Else, s); err != nil {
				return err
			}
		}
		return nil

	case ast.While:
		start := ctx.AllocBlock()
		cont := ctx.AllocBlock()
		end := ctx.AllocBlock()
		fn.Emit(ir.WhileStart{Start: start, Continue: cont, End: end})
		cond, err := lowerExpr(ctx, fn, st.Cond, s)
		if err != nil {
			return err
		}
		fn.Emit(ir.WhileCondition{Condition: cond, End: end})
		if err := lowerBlock(ctx, fn, st.Body, s); err != nil {
			return err
		}
		fn.Emit(ir.WhileEnd{Start: start, Continue: cont, End: end})
		return nil

	case ast.DoWhile:
		start := ctx.AllocBlock()
		cont := ctx.AllocBlock()
		end := ctx.AllocBlock()
		fn.Emit(ir.WhileStart{Start: start, Continue: cont, End: end})
		if err := lowerBlock(ctx, fn, st.Body, s); err != nil {
			return err
		}
		cond, err := lowerExpr(ctx, fn, st.Cond, s)
		if err != nil {
			return err
		}
		fn.Emit(ir.WhileCondition{Condition: cond, End: end})
		fn.Emit(ir.WhileEnd{Start: start, Continue: cont, End: end})
		return nil

	case ast.Block:
		return lowerBlock(ctx, fn, &st, s)

	default:
		return fmt.Errorf("compiler: unsupported statement %T", stmt)
	}
}

func lowerAssign(ctx *ir.Context, fn *ir.Function, a ast.Assign, s *scope) error {
	value, err := lowerExpr(ctx, fn, a.Value, s)
	if err != nil {
		return err
	}
	switch target := a.Target.(type) {
	case ast.Ident:
		v, ok := resolve(ctx, s, target.Name)
		if !ok {
			return fmt.Errorf("compiler: variable %q not found", target.Name)
		}
		fn.Emit(ir.StoreVariable{To: v, From: value, Compound: a.Compound})
		return nil

	case ast.Access:
		base, path, err := flattenAccess(ctx, fn, target, s)
		if err != nil {
			return err
		}
		fn.Emit(ir.StoreAccessList{To: base, From: value, Path: path, Compound: a.Compound})
		return nil

	default:
		return fmt.Errorf("compiler: assignment target must be a variable or member access")
	}
}

func lowerExpr(ctx *ir.Context, fn *ir.Function, e ast.Expr, s *scope) (ir.Variable, error) {
	switch ex := e.(type) {
	case ast.NumberLiteral:
		if ex.IsFloat {
			v := ctx.AllocLocal(ir.TypeRef{Type: ctx.Builtins.Float})
			fn.Emit(ir.LoadFloatConstant{To: v, Value: float32(ex.Float)})
			return v, nil
		}
		v := ctx.AllocLocal(ir.TypeRef{Type: ctx.Builtins.Int})
		fn.Emit(ir.LoadIntConstant{To: v, Value: int32(ex.Float)})
		return v, nil

	case ast.BoolLiteral:
		v := ctx.AllocLocal(ir.TypeRef{Type: ctx.Builtins.Bool})
		fn.Emit(ir.LoadBoolConstant{To: v, Value: ex.Value})
		return v, nil

	case ast.Ident:
		v, ok := resolve(ctx, s, ex.Name)
		if !ok {
			return ir.Variable{}, fmt.Errorf("compiler: variable %q not found", ex.Name)
		}
		return v, nil

	case ast.Unary:
		from, err := lowerExpr(ctx, fn, ex.Operand, s)
		if err != nil {
			return ir.Variable{}, err
		}
		if ex.Op != ast.UnaryNot {
			return ir.Variable{}, fmt.Errorf("compiler: unary operator %v not implemented", ex.Op)
		}
		to := ctx.AllocLocal(from.Type)
		fn.Emit(ir.Not{To: to, From: from})
		return to, nil

	case ast.Binary:
		left, err := lowerExpr(ctx, fn, ex.Left, s)
		if err != nil {
			return ir.Variable{}, err
		}
		right, err := lowerExpr(ctx, fn, ex.Right, s)
		if err != nil {
			return ir.Variable{}, err
		}
		resultType := left.Type
		if ex.Op.IsComparison() || ex.Op == ir.BinaryAnd || ex.Op == ir.BinaryOr {
			resultType = ir.TypeRef{Type: ctx.Builtins.Bool}
		}
		to := ctx.AllocLocal(resultType)
		fn.Emit(ir.Binary{Kind: ex.Op, To: to, Left: left, Right: right})
		return to, nil

	case ast.Call:
		var params []ir.Variable
		for _, a := range ex.Args {
			v, err := lowerExpr(ctx, fn, a, s)
			if err != nil {
				return ir.Variable{}, err
			}
			params = append(params, v)
		}
		funcName := ctx.Names.Intern(ex.Callee)
		retType, ok := builtinCallReturnType(ctx, ex.Callee)
		if !ok {
			retType = ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}
			if callee, ok := ctx.Functions.FindByName(funcName); ok {
				if r := ctx.Functions.Get(callee).Return; r != nil {
					retType = *r
				}
			}
		}
		to := ctx.AllocLocal(retType)
		fn.Emit(ir.Call{To: &to, Func: funcName, Params: params})
		return to, nil

	case ast.Access:
		base, path, err := flattenAccess(ctx, fn, ex, s)
		if err != nil {
			return ir.Variable{}, err
		}
		resultType, err := path.ResultType(ctx, base.Type)
		if err != nil {
			return ir.Variable{}, err
		}
		to := ctx.AllocLocal(resultType)
		fn.Emit(ir.LoadAccessList{To: to, From: base, Path: path})
		return to, nil

	default:
		return ir.Variable{}, fmt.Errorf("compiler: unsupported expression %T", e)
	}
}

// builtinCallReturnType resolves the result type of a vector-constructor
// call (float2/float3/float4 and the int/uint/bool equivalents) by name:
// these built-ins have no ir.Function entry to read a declared return type
// from, so the arity has to be parsed out of the callee's own spelling.
func builtinCallReturnType(ctx *ir.Context, callee string) (ir.TypeRef, bool) {
	if len(callee) < 2 {
		return ir.TypeRef{}, false
	}
	last := callee[len(callee)-1]
	if last < '2' || last > '4' {
		return ir.TypeRef{}, false
	}
	size := int(last - '0')
	bi := ctx.Builtins
	switch callee[:len(callee)-1] {
	case "float":
		return ir.TypeRef{Type: bi.FloatVec[size]}, true
	case "int":
		return ir.TypeRef{Type: bi.IntVec[size]}, true
	case "uint":
		return ir.TypeRef{Type: bi.UintVec[size]}, true
	case "bool":
		return ir.TypeRef{Type: bi.BoolVec[size]}, true
	default:
		return ir.TypeRef{}, false
	}
}

// flattenAccess walks a (possibly nested) ast.Access chain down to its
// Ident root and builds the corresponding ir.AccessPath, resolving member
// names to indices, swizzle text to component lists, and index
// expressions to a lowered variable, against the type each step produces —
// the same left-to-right struct walk compiler.c's EXPRESSION_MEMBER
// handling performs, but against ir.TypeTable instead of re-deriving it
// from a parallel AST type annotation. fn is needed only to lower
// ast.AccessIndex's dynamic index sub-expression.
func flattenAccess(ctx *ir.Context, fn *ir.Function, e ast.Access, s *scope) (ir.Variable, ir.AccessPath, error) {
	var chain []ast.Access
	cur := e
	for {
		chain = append([]ast.Access{cur}, chain...)
		base, ok := cur.Base.(ast.Access)
		if !ok {
			break
		}
		cur = base
	}
	root, ok := chain[0].Base.(ast.Ident)
	if !ok {
		return ir.Variable{}, nil, fmt.Errorf("compiler: access chain must root in a variable")
	}
	baseVar, ok := resolve(ctx, s, root.Name)
	if !ok {
		return ir.Variable{}, nil, fmt.Errorf("compiler: variable %q not found", root.Name)
	}

	var path ir.AccessPath
	curType := baseVar.Type
	for _, step := range chain {
		switch step.Kind {
		case ast.AccessMember:
			t := ctx.Types.Get(curType.Type)
			idx := t.MemberIndex(ctx.Names.Intern(step.Name))
			if idx < 0 {
				return ir.Variable{}, nil, fmt.Errorf("compiler: member %q not found", step.Name)
			}
			path = append(path, ir.AccessStep{Kind: ir.AccessMember, MemberName: ctx.Names.Intern(step.Name), MemberIndex: idx, AfterType: t.Members[idx].Type})
			curType = t.Members[idx].Type
		case ast.AccessSwizzle:
			components, err := swizzleComponents(step.Name)
			if err != nil {
				return ir.Variable{}, nil, err
			}
			path = append(path, ir.AccessStep{Kind: ir.AccessSwizzle, Components: components})
		case ast.AccessIndex:
			t := ctx.Types.Get(curType.Type)
			if t.ArraySize == 0 {
				return ir.Variable{}, nil, fmt.Errorf("compiler: index access on non-array type")
			}
			idx, err := lowerExpr(ctx, fn, step.Index, s)
			if err != nil {
				return ir.Variable{}, nil, err
			}
			path = append(path, ir.AccessStep{Kind: ir.AccessElement, IndexVar: idx.ID})
			curType = ir.TypeRef{Type: t.BaseType}
		default:
			return ir.Variable{}, nil, fmt.Errorf("compiler: unknown access step kind")
		}
	}
	return baseVar, path, nil
}

var swizzleAlphabets = [2]string{"xyzw", "rgba"}

func swizzleComponents(text string) ([]int, error) {
	for _, alphabet := range swizzleAlphabets {
		ok := true
		for _, r := range text {
			if !containsRune(alphabet, r) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out := make([]int, len(text))
		for i, r := range text {
			out[i] = indexRune(alphabet, r)
		}
		return out, nil
	}
	return nil, fmt.Errorf("compiler: %q mixes swizzle alphabets", text)
}

func containsRune(s string, r rune) bool { return indexRune(s, r) >= 0 }

func indexRune(s string, r rune) int {
	for i, c := range s {
		if c == r {
			return i
		}
	}
	return -1
}
