package ast

import "github.com/gogpu/kong/ir"

// Builder fluently assembles ast.Block trees for tests, standing in for the
// tokenizer/parser this package does not implement.
type Builder struct {
	block *Block
}

// NewBuilder starts an empty block.
func NewBuilder() *Builder { return &Builder{block: &Block{}} }

// Build returns the assembled block.
func (b *Builder) Build() *Block { return b.block }

func (b *Builder) push(s Stmt) *Builder {
	b.block.Statements = append(b.block.Statements, s)
	return b
}

// Decl appends a local variable declaration.
func (b *Builder) Decl(name, typeName string, init Expr) *Builder {
	return b.push(VarDecl{Name: name, Type: typeName, Init: init})
}

// AssignStmt appends a plain or compound assignment.
func (b *Builder) AssignStmt(target, value Expr, compound *ir.CompoundOp) *Builder {
	return b.push(Assign{Target: target, Value: value, Compound: compound})
}

// ReturnStmt appends a return statement.
func (b *Builder) ReturnStmt(value Expr) *Builder {
	return b.push(Return{Value: value})
}

// ExprStatement appends a bare expression statement (e.g. a call for its
// side effect).
func (b *Builder) ExprStatement(e Expr) *Builder {
	return b.push(ExprStmt{Expr: e})
}

// IfStmt appends an if/else.
func (b *Builder) IfStmt(cond Expr, then, els *Block) *Builder {
	return b.push(If{Cond: cond, Then: then, Else: els})
}

// WhileStmt appends a pre-tested loop.
func (b *Builder) WhileStmt(cond Expr, body *Block) *Builder {
	return b.push(While{Cond: cond, Body: body})
}

// Num builds a float literal expression.
func Num(v float64) Expr { return NumberLiteral{Float: v, IsFloat: true} }

// IntNum builds an integer literal expression.
func IntNum(v float64) Expr { return NumberLiteral{Float: v, IsFloat: false} }

// Bool builds a boolean literal expression.
func Bool(v bool) Expr { return BoolLiteral{Value: v} }

// Var builds an identifier reference expression.
func Var(name string) Expr { return Ident{Name: name} }

// Bin builds a binary expression.
func Bin(op ir.BinaryKind, left, right Expr) Expr { return Binary{Op: op, Left: left, Right: right} }

// Member builds a member-access expression.
func Member(base Expr, name string) Expr { return Access{Base: base, Kind: AccessMember, Name: name} }

// Swizzle builds a swizzle-access expression.
func Swizzle(base Expr, text string) Expr {
	return Access{Base: base, Kind: AccessSwizzle, Name: text}
}

// Index builds an element-access expression (base[idx]).
func Index(base, idx Expr) Expr {
	return Access{Base: base, Kind: AccessIndex, Index: idx}
}
