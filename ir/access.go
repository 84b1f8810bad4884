package ir

// AccessStepKind discriminates the three ways an access path can address a
// subvalue, per spec §3.
type AccessStepKind uint8

const (
	AccessMember AccessStepKind = iota
	AccessElement
	AccessSwizzle
)

// AccessStep is one link in an access path.
type AccessStep struct {
	Kind AccessStepKind

	// AccessMember: the member's name and its index within the parent
	// struct/vector, plus the type after this step (spec §3: "the type
	// after the step recorded").
	MemberName  NameID
	MemberIndex int
	AfterType   TypeRef

	// AccessElement: the variable id holding the (dynamic) index.
	IndexVar VarID

	// AccessSwizzle: 1-4 component indices over xyzw.
	Components []int
}

// AccessPath is an ordered list of steps applied to a root variable to
// address a subvalue (member/element/swizzle chain).
type AccessPath []AccessStep

// ResultType walks path starting from rootType, returning the type after
// the last step. compiler.Lower uses it to type a LOAD_ACCESS_LIST's result
// (spec §8 property 3); it also rejects paths that index past the terminal
// type (spec §8 property 12: an access path with a step after a
// scalar/terminal type is invalid).
func (p AccessPath) ResultType(ctx *Context, rootType TypeRef) (TypeRef, error) {
	cur := rootType
	for i, step := range p {
		switch step.Kind {
		case AccessMember:
			t := ctx.Types.Get(cur.Type)
			if step.MemberIndex < 0 || step.MemberIndex >= len(t.Members) {
				return TypeRef{}, Errorf(DebugContext{}, "access path step %d: member index out of range", i)
			}
			cur = t.Members[step.MemberIndex].Type
		case AccessElement:
			t := ctx.Types.Get(cur.Type)
			if t.ArraySize == 0 {
				return TypeRef{}, Errorf(DebugContext{}, "access path step %d: element access on non-array type", i)
			}
			cur = TypeRef{Type: t.BaseType}
		case AccessSwizzle:
			size := len(step.Components)
			scalar, vecOf, ok := ctx.vectorComponents(cur.Type)
			if !ok {
				return TypeRef{}, Errorf(DebugContext{}, "access path step %d: swizzle on non-vector type", i)
			}
			if size == 1 {
				cur = TypeRef{Type: scalar}
			} else {
				cur = TypeRef{Type: vecOf(size)}
			}
		default:
			return TypeRef{}, Errorf(DebugContext{}, "access path step %d: unknown step kind", i)
		}
		if cur.Type == NoType {
			return TypeRef{}, Errorf(DebugContext{}, "access path step %d: indexes past terminal type", i)
		}
	}
	return cur, nil
}

// vectorComponents reports the scalar type and a vector-of-size constructor
// for a builtin float, int or uint vector type id, used by
// AccessPath.ResultType to validate swizzles without hard-coding each kind.
// Any other type, bool vectors included, reports ok == false.
func (ctx *Context) vectorComponents(vec TypeID) (scalar TypeID, vecOf func(size int) TypeID, ok bool) {
	b := &ctx.Builtins
	switch vec {
	case b.FloatVec[2], b.FloatVec[3], b.FloatVec[4]:
		return b.Float, func(n int) TypeID { return b.FloatVec[n] }, true
	case b.IntVec[2], b.IntVec[3], b.IntVec[4]:
		return b.Int, func(n int) TypeID { return b.IntVec[n] }, true
	case b.UintVec[2], b.UintVec[3], b.UintVec[4]:
		return b.Uint, func(n int) TypeID { return b.UintVec[n] }, true
	default:
		return NoType, nil, false
	}
}
