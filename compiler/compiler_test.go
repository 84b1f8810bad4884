package compiler

import (
	"testing"

	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/ir"
)

func newTestFunction(ctx *ir.Context, params map[string]ir.TypeRef) (*ir.Function, ir.FunctionID) {
	fn := ir.Function{Name: ctx.Names.Intern("test")}
	for name, t := range params {
		v := ctx.AllocLocal(t)
		fn.Params = append(fn.Params, ir.Param{Name: ctx.Names.Intern(name), Type: t, Var: v})
	}
	id := ctx.Functions.Add(fn)
	return ctx.Functions.Get(id), id
}

func TestLowerReturnConstant(t *testing.T) {
	ctx := ir.NewContext()
	fn, _ := newTestFunction(ctx, nil)

	body := ast.NewBuilder().ReturnStmt(ast.Num(1)).Build()
	if err := Lower(ctx, fn, body); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	if len(fn.Code) < 4 {
		t.Fatalf("expected at least BlockStart, LoadFloatConstant, Return, BlockEnd; got %d ops", len(fn.Code))
	}
	var sawReturn bool
	for _, op := range fn.Code {
		if _, ok := op.(ir.Return); ok {
			sawReturn = true
		}
	}
	if !sawReturn {
		t.Fatalf("no Return opcode emitted")
	}
}

// TestLowerCompoundStore exercises scenario S6: `a.b += v` fuses into a
// single StoreAccessList opcode carrying a non-nil Compound, not a
// separate load+add+store.
func TestLowerCompoundStore(t *testing.T) {
	ctx := ir.NewContext()
	vec4Name := ctx.Names.Intern("holder")
	wName := ctx.Names.Intern("w")
	structID := ctx.Types.Add(ir.Type{
		Name: vec4Name,
		Members: []ir.Member{
			{Name: wName, Type: ir.TypeRef{Type: ctx.Builtins.FloatVec[4]}},
		},
	})

	fn, _ := newTestFunction(ctx, map[string]ir.TypeRef{"a": {Type: structID}})

	add := ir.CompoundAdd
	body := ast.NewBuilder().
		AssignStmt(ast.Member(ast.Var("a"), "w"), ast.Num(1), &add).
		Build()

	if err := Lower(ctx, fn, body); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var found *ir.StoreAccessList
	for _, op := range fn.Code {
		if s, ok := op.(ir.StoreAccessList); ok {
			found = &s
		}
	}
	if found == nil {
		t.Fatalf("no StoreAccessList opcode emitted")
	}
	if found.Compound == nil || *found.Compound != ir.CompoundAdd {
		t.Fatalf("StoreAccessList.Compound = %v, want CompoundAdd", found.Compound)
	}
}

func TestLowerIfElse(t *testing.T) {
	ctx := ir.NewContext()
	fn, _ := newTestFunction(ctx, nil)

	thenBlock := ast.NewBuilder().ReturnStmt(ast.Num(1)).Build()
	elseBlock := ast.NewBuilder().ReturnStmt(ast.Num(0)).Build()
	body := ast.NewBuilder().
		IfStmt(ast.Bool(true), thenBlock, elseBlock).
		Build()

	if err := Lower(ctx, fn, body); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var ifCount int
	for _, op := range fn.Code {
		if _, ok := op.(ir.If); ok {
			ifCount++
		}
	}
	if ifCount != 1 {
		t.Fatalf("got %d If opcodes, want 1", ifCount)
	}
}

func TestLowerWhileLoop(t *testing.T) {
	ctx := ir.NewContext()
	fn, _ := newTestFunction(ctx, nil)

	loopBody := ast.NewBuilder().ExprStatement(ast.Var("x")).Build()
	body := ast.NewBuilder().
		Decl("x", "float", ast.Num(0)).
		WhileStmt(ast.Bool(true), loopBody).
		Build()

	// x is declared in the function's top-level scope; the while body
	// pushes its own nested scope, but lookup still walks up the parent
	// chain, so this must lower without error.
	if err := Lower(ctx, fn, body); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var sawStart, sawCond, sawEnd bool
	for _, op := range fn.Code {
		switch op.(type) {
		case ir.WhileStart:
			sawStart = true
		case ir.WhileCondition:
			sawCond = true
		case ir.WhileEnd:
			sawEnd = true
		}
	}
	if !sawStart || !sawCond || !sawEnd {
		t.Fatalf("missing while opcodes: start=%v cond=%v end=%v", sawStart, sawCond, sawEnd)
	}
}

// TestLowerResolvesGlobalFallback exercises the find_variable-style
// fallback: a name unbound by any enclosing block must resolve against
// the module's converted globals instead of failing outright.
func TestLowerResolvesGlobalFallback(t *testing.T) {
	ctx := ir.NewContext()
	g := ctx.Globals.Add(ir.Global{Name: ctx.Names.Intern("tint"), Kind: ir.GlobalConstant, Type: ir.TypeRef{Type: ctx.Builtins.Float}})
	ctx.ConvertGlobals()

	fn, _ := newTestFunction(ctx, nil)
	body := ast.NewBuilder().ReturnStmt(ast.Var("tint")).Build()
	if err := Lower(ctx, fn, body); err != nil {
		t.Fatalf("Lower: %v", err)
	}

	wantVar := ctx.Globals.Get(g).Var
	var got ir.VarID
	for _, op := range fn.Code {
		if r, ok := op.(ir.Return); ok && r.Value != nil {
			got = r.Value.ID
		}
	}
	if got != wantVar {
		t.Fatalf("returned var id = %d, want global's var id %d", got, wantVar)
	}
}

func TestLowerUnknownVariableErrors(t *testing.T) {
	ctx := ir.NewContext()
	fn, _ := newTestFunction(ctx, nil)
	body := ast.NewBuilder().ReturnStmt(ast.Var("missing")).Build()
	if err := Lower(ctx, fn, body); err == nil {
		t.Fatalf("expected error for undefined variable")
	}
}
