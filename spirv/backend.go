package spirv

import (
	"fmt"
	"os/exec"

	"github.com/gogpu/kong/analyzer"
	"github.com/gogpu/kong/ir"
)

// Options configures SPIR-V generation.
type Options struct {
	Version       Version
	Debug         bool
	Validate      bool
	ValidatorPath string // defaults to "spirv-val" on PATH
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{Version: Version1_3, Validate: false, ValidatorPath: "spirv-val"}
}

// Backend lowers one entry point, with every function and global reachable
// from it, to a SPIR-V binary module. A
// Backend instance is single-use and not safe for concurrent reuse; the
// analyzer's bucketing is what lets callers run one Backend per goroutine
// over the immutable *ir.Context (spec §5).
type Backend struct {
	ctx     *ir.Context
	options Options
	mod     *ModuleBuilder

	// dedup tables, private to this Backend instance
	typeIDs map[typeKey]uint32
	varIDs  map[ir.VarID]uint32
	funcIDs map[ir.FunctionID]uint32
	glslExt uint32

	// pointerVars marks every VarID backed by an actual SPIR-V pointer
	// (a declared local, a global, or an entry's parameter-struct
	// variable) as opposed to a plain SSA value id. ir.VarKind can't be
	// used for this: every compiler-allocated temporary, not just
	// locals, comes back as VarLocal.
	pointerVars map[ir.VarID]bool

	// storageClass records the storage class backing each pointer
	// variable, needed to rebuild the correct OpAccessChain pointer
	// type at each access-chain step.
	storageClass map[ir.VarID]StorageClass

	sampledImageTypes map[uint32]uint32 // image type id -> sampled-image type id
	blockDecorated    map[uint32]bool   // struct value type ids already Block-decorated
}

type typeKey struct {
	t       ir.TypeID
	pointer bool
	class   StorageClass
}

// NewBackend constructs a Backend for a single entry point.
func NewBackend(ctx *ir.Context, options Options) *Backend {
	return &Backend{
		ctx:               ctx,
		options:           options,
		mod:               NewModuleBuilder(options.Version),
		typeIDs:           make(map[typeKey]uint32),
		varIDs:            make(map[ir.VarID]uint32),
		funcIDs:           make(map[ir.FunctionID]uint32),
		pointerVars:       make(map[ir.VarID]bool),
		storageClass:      make(map[ir.VarID]StorageClass),
		sampledImageTypes: make(map[uint32]uint32),
		blockDecorated:    make(map[uint32]bool),
	}
}

// Emit lowers the given entry function and everything reachable from it
// (per analyzer.Reachable) into a complete SPIR-V module and returns the
// encoded binary.
func (b *Backend) Emit(entry ir.FunctionID, stage analyzer.Stage) ([]byte, error) {
	reach := analyzer.Reachable(b.ctx, entry)

	b.mod.AddCapability(CapabilityShader)
	b.glslExt = b.mod.AddExtInstImport("GLSL.std.450")
	b.mod.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	for _, fid := range reach.Functions {
		if fid == entry {
			continue
		}
		if _, err := b.declareFunction(fid); err != nil {
			return nil, err
		}
	}

	var interfaceIDs []uint32
	for _, gid := range reach.Globals {
		id, err := b.declareGlobal(gid, reach)
		if err != nil {
			return nil, err
		}
		interfaceIDs = append(interfaceIDs, id)
	}

	for _, fid := range reach.Functions {
		if fid == entry {
			continue
		}
		if err := b.emitFunctionBody(fid); err != nil {
			return nil, err
		}
	}

	entryID, entryIfaces, err := b.emitEntryFunction(entry, stage)
	if err != nil {
		return nil, err
	}
	interfaceIDs = append(interfaceIDs, entryIfaces...)

	execModel := ExecutionModelVertex
	if stage == analyzer.StageFragment {
		execModel = ExecutionModelFragment
	}
	fn := b.ctx.Functions.Get(entry)
	b.mod.AddEntryPoint(execModel, entryID, b.ctx.Names.Text(fn.Name), interfaceIDs)
	if stage == analyzer.StageFragment {
		b.mod.AddExecutionMode(entryID, ExecutionModeOriginUpperLeft)
	}

	bin := b.mod.Build()
	if b.options.Validate {
		if err := b.validate(bin); err != nil {
			return nil, err
		}
	}
	return bin, nil
}

func (b *Backend) declareFunction(fid ir.FunctionID) (uint32, error) {
	if id, ok := b.funcIDs[fid]; ok {
		return id, nil
	}
	fn := b.ctx.Functions.Get(fid)
	var retType uint32
	var err error
	if fn.Return != nil {
		retType, err = b.typeID(*fn.Return, false, 0)
		if err != nil {
			return 0, err
		}
	} else {
		retType = b.voidType()
	}
	var paramTypes []uint32
	for _, p := range fn.Params {
		pt, err := b.typeID(p.Type, false, 0)
		if err != nil {
			return 0, err
		}
		paramTypes = append(paramTypes, pt)
	}
	fnType := b.mod.AddTypeFunction(retType, paramTypes...)
	id := b.mod.AddFunction(fnType, retType, FunctionControlNone)
	b.mod.AddName(id, b.ctx.Names.Text(fn.Name))
	b.funcIDs[fid] = id
	return id, nil
}

func (b *Backend) emitFunctionBody(fid ir.FunctionID) error {
	fn := b.ctx.Functions.Get(fid)
	if fn.IsBuiltIn() {
		return nil
	}
	b.mod.AddLabel()
	if err := b.hoistVars(fn.Code); err != nil {
		return err
	}
	return b.finishBody(fn.Code, nil)
}

// finishBody emits ops in full (via emitBody) and terminates with a final
// OpReturn if the stream didn't already end on one — lowerBlock never
// emits a trailing Return for a function falling off its last statement,
// but SPIR-V requires every basic block to end on a terminator.
func (b *Backend) finishBody(ops []ir.Op, onReturn func(ir.Return) error) error {
	if err := b.emitBody(ops, onReturn); err != nil {
		return err
	}
	if !endsInReturn(ops) {
		b.mod.AddReturn()
	}
	b.mod.AddFunctionEnd()
	return nil
}

func endsInReturn(ops []ir.Op) bool {
	if len(ops) == 0 {
		return false
	}
	_, ok := ops[len(ops)-1].(ir.Return)
	return ok
}

// hoistVars declares every local variable up front, in source order: SPIR-V
// requires all of a function's OpVariables to precede any other
// instruction in its entry block (spec §4.5). fn.Code is one flat slice
// for the whole function, so a single linear scan reaches variables
// declared inside nested if/while blocks too.
func (b *Backend) hoistVars(ops []ir.Op) error {
	for _, op := range ops {
		if v, ok := op.(ir.Var); ok {
			if err := b.emitVarDecl(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitBody walks ops with an index cursor rather than a flat range loop:
// ir.If and ir.WhileStart each consume a nested BlockStart/BlockEnd region
// that must be lowered as a unit, not dispatched one opcode at a time.
func (b *Backend) emitBody(ops []ir.Op, onReturn func(ir.Return) error) error {
	i := 0
	for i < len(ops) {
		next, err := b.emitOpAt(ops, i, onReturn)
		if err != nil {
			return err
		}
		i = next
	}
	return nil
}

func (b *Backend) emitOpAt(ops []ir.Op, i int, onReturn func(ir.Return) error) (int, error) {
	switch o := ops[i].(type) {
	case ir.Var:
		return i + 1, nil // hoisted already, see hoistVars
	case ir.If:
		return b.emitIf(ops, i, o, onReturn)
	case ir.WhileStart:
		return b.emitWhile(ops, i, o, onReturn)
	case ir.Return:
		if onReturn != nil {
			if err := onReturn(o); err != nil {
				return 0, err
			}
		} else if err := b.emitReturn(o); err != nil {
			return 0, err
		}
		return i + 1, nil
	case ir.BlockStart, ir.BlockEnd:
		return i + 1, nil
	default:
		if err := b.emitOp(ops[i]); err != nil {
			return 0, err
		}
		return i + 1, nil
	}
}

// matchingBlockEnd returns the index of the ir.BlockEnd that closes the
// ir.BlockStart at ops[start], counting nested Start/End pairs opened by
// blocks inside it. The compiler never matches an If/While's own block ids
// to its nested lowerBlock call's ids, so this is a structural (bracket)
// match rather than an id lookup.
func matchingBlockEnd(ops []ir.Op, start int) (int, error) {
	depth := 0
	for i := start; i < len(ops); i++ {
		switch ops[i].(type) {
		case ir.BlockStart:
			depth++
		case ir.BlockEnd:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("spirv: unterminated block starting at op %d", start)
}

func (b *Backend) emitIf(ops []ir.Op, i int, o ir.If, onReturn func(ir.Return) error) (int, error) {
	condVal, err := b.materialize(o.Condition)
	if err != nil {
		return 0, err
	}

	i++
	if _, ok := ops[i].(ir.BlockStart); !ok {
		return 0, fmt.Errorf("spirv: if not followed by a block")
	}
	thenStart := i + 1
	thenEnd, err := matchingBlockEnd(ops, i)
	if err != nil {
		return 0, err
	}

	hasElse := false
	elseStart, elseEnd := 0, 0
	next := thenEnd + 1
	if next < len(ops) {
		if _, ok := ops[next].(ir.BlockStart); ok {
			hasElse = true
			elseStart = next + 1
			elseEnd, err = matchingBlockEnd(ops, next)
			if err != nil {
				return 0, err
			}
		}
	}

	mergeLabel := b.mod.AllocID()
	thenLabel := b.mod.AllocID()
	falseLabel := mergeLabel
	var elseLabel uint32
	if hasElse {
		elseLabel = b.mod.AllocID()
		falseLabel = elseLabel
	}

	b.mod.AddSelectionMerge(mergeLabel, SelectionControlNone)
	b.mod.AddBranchConditional(condVal, thenLabel, falseLabel)

	b.mod.AddLabelID(thenLabel)
	if err := b.emitBody(ops[thenStart:thenEnd], onReturn); err != nil {
		return 0, err
	}
	b.mod.AddBranch(mergeLabel)

	after := thenEnd + 1
	if hasElse {
		b.mod.AddLabelID(elseLabel)
		if err := b.emitBody(ops[elseStart:elseEnd], onReturn); err != nil {
			return 0, err
		}
		b.mod.AddBranch(mergeLabel)
		after = elseEnd + 1
	}
	b.mod.AddLabelID(mergeLabel)
	return after, nil
}

// emitWhile lowers both pre-tested (ast.While) and post-tested (ast.DoWhile)
// loops into the standard structured SPIR-V loop shape (header/continue/
// merge labels around a single OpLoopMerge). The two forms share every
// opcode kind; they differ only in whether the condition ops precede or
// follow the body block in the op stream, which this detects by checking
// whether a BlockStart immediately follows WhileStart.
func (b *Backend) emitWhile(ops []ir.Op, i int, o ir.WhileStart, onReturn func(ir.Return) error) (int, error) {
	i++

	headerLabel := b.mod.AllocID()
	condLabel := b.mod.AllocID()
	bodyLabel := b.mod.AllocID()
	continueLabel := b.mod.AllocID()
	mergeLabel := b.mod.AllocID()

	_, isDoWhile := ops[i].(ir.BlockStart)

	b.mod.AddBranch(headerLabel)
	b.mod.AddLabelID(headerLabel)
	b.mod.AddLoopMerge(mergeLabel, continueLabel, LoopControlNone)

	if isDoWhile {
		b.mod.AddBranch(bodyLabel)
		bodyStart := i + 1
		bodyEnd, err := matchingBlockEnd(ops, i)
		if err != nil {
			return 0, err
		}
		b.mod.AddLabelID(bodyLabel)
		if err := b.emitBody(ops[bodyStart:bodyEnd], onReturn); err != nil {
			return 0, err
		}
		b.mod.AddBranch(continueLabel)

		j := bodyEnd + 1
		condStart := j
		for j < len(ops) {
			if _, ok := ops[j].(ir.WhileCondition); ok {
				break
			}
			j++
		}
		if j >= len(ops) {
			return 0, fmt.Errorf("spirv: while loop missing condition")
		}
		b.mod.AddLabelID(continueLabel)
		if err := b.emitBody(ops[condStart:j], onReturn); err != nil {
			return 0, err
		}
		wc := ops[j].(ir.WhileCondition)
		condVal, err := b.materialize(wc.Condition)
		if err != nil {
			return 0, err
		}
		b.mod.AddBranchConditional(condVal, headerLabel, mergeLabel)
		j++
		if _, ok := ops[j].(ir.WhileEnd); !ok {
			return 0, fmt.Errorf("spirv: while loop missing WhileEnd")
		}
		j++
		b.mod.AddLabelID(mergeLabel)
		return j, nil
	}

	b.mod.AddBranch(condLabel)
	b.mod.AddLabelID(condLabel)
	j := i
	for j < len(ops) {
		if _, ok := ops[j].(ir.WhileCondition); ok {
			break
		}
		j++
	}
	if j >= len(ops) {
		return 0, fmt.Errorf("spirv: while loop missing condition")
	}
	if err := b.emitBody(ops[i:j], onReturn); err != nil {
		return 0, err
	}
	wc := ops[j].(ir.WhileCondition)
	condVal, err := b.materialize(wc.Condition)
	if err != nil {
		return 0, err
	}
	b.mod.AddBranchConditional(condVal, bodyLabel, mergeLabel)
	j++

	if _, ok := ops[j].(ir.BlockStart); !ok {
		return 0, fmt.Errorf("spirv: while loop missing body block")
	}
	bodyStart := j + 1
	bodyEnd, err := matchingBlockEnd(ops, j)
	if err != nil {
		return 0, err
	}
	b.mod.AddLabelID(bodyLabel)
	if err := b.emitBody(ops[bodyStart:bodyEnd], onReturn); err != nil {
		return 0, err
	}
	b.mod.AddBranch(continueLabel)
	b.mod.AddLabelID(continueLabel)
	b.mod.AddBranch(headerLabel)

	k := bodyEnd + 1
	if _, ok := ops[k].(ir.WhileEnd); !ok {
		return 0, fmt.Errorf("spirv: while loop missing WhileEnd")
	}
	k++
	b.mod.AddLabelID(mergeLabel)
	return k, nil
}

// emitOp maps one opcode onto its SPIR-V instruction sequence: arithmetic
// and comparison opcodes pick float vs signed-int encodings from the
// operand's declared type, not from the source operator's spelling.
// ir.Var, ir.If, ir.WhileStart/Condition/End and ir.Return are handled by
// emitOpAt/emitBody instead, since they each need more than one opcode's
// worth of context (hoisting, nested blocks, entry-point epilogue).
func (b *Backend) emitOp(op ir.Op) error {
	switch o := op.(type) {
	case ir.LoadFloatConstant:
		return b.emitFloatConstant(o)
	case ir.LoadIntConstant:
		return b.emitIntConstant(o)
	case ir.LoadBoolConstant:
		return b.emitBoolConstant(o)
	case ir.Binary:
		return b.emitBinary(o)
	case ir.Not:
		return b.emitNot(o)
	case ir.StoreVariable:
		return b.emitStoreVariable(o)
	case ir.LoadAccessList:
		return b.emitLoadAccessList(o)
	case ir.StoreAccessList:
		return b.emitStoreAccessList(o)
	case ir.Call:
		return b.emitCall(o)
	case ir.BlockStart, ir.BlockEnd:
		return nil
	default:
		return fmt.Errorf("spirv: unsupported opcode %T", op)
	}
}

func (b *Backend) emitVarDecl(o ir.Var) error {
	ty, err := b.typeID(o.Variable.Type, true, StorageClassFunction)
	if err != nil {
		return err
	}
	id := b.mod.AddLocalVariable(ty)
	b.varIDs[o.Variable.ID] = id
	b.pointerVars[o.Variable.ID] = true
	b.storageClass[o.Variable.ID] = StorageClassFunction
	return nil
}

func (b *Backend) emitFloatConstant(o ir.LoadFloatConstant) error {
	ty, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	id := b.mod.AddConstantFloat32(ty, o.Value)
	b.varIDs[o.To.ID] = id
	return nil
}

func (b *Backend) emitIntConstant(o ir.LoadIntConstant) error {
	ty, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	id := b.mod.AddConstant(ty, uint32(o.Value))
	b.varIDs[o.To.ID] = id
	return nil
}

func (b *Backend) emitBoolConstant(o ir.LoadBoolConstant) error {
	ty, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	var bits uint32
	if o.Value {
		bits = 1
	}
	id := b.mod.AddConstant(ty, bits)
	b.varIDs[o.To.ID] = id
	return nil
}

// materialize returns a usable SPIR-V value id for v: if v is backed by a
// pointer (a declared local, a global, or an entry parameter), a bare
// reference to it in the op stream carries no separate Load opcode — the
// compiler's ast.Ident case returns the variable itself, not a freshly
// loaded temp — so using it as an operand here must OpLoad through the
// pointer. A plain SSA temporary (the result of some other op) already
// holds a value id and is returned as-is.
func (b *Backend) materialize(v ir.Variable) (uint32, error) {
	id, ok := b.varIDs[v.ID]
	if !ok {
		return 0, fmt.Errorf("spirv: operand not yet materialized")
	}
	if !b.pointerVars[v.ID] {
		return id, nil
	}
	ty, err := b.typeID(v.Type, false, 0)
	if err != nil {
		return 0, err
	}
	return b.mod.AddLoad(ty, id), nil
}

func (b *Backend) emitBinary(o ir.Binary) error {
	left, err := b.materialize(o.Left)
	if err != nil {
		return err
	}
	right, err := b.materialize(o.Right)
	if err != nil {
		return err
	}
	resultType, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	opcode, err := binaryOpcode(o.Kind, b.isFloatType(o.Left.Type.Type))
	if err != nil {
		return err
	}
	id := b.mod.AddBinaryOp(opcode, resultType, left, right)
	b.varIDs[o.To.ID] = id
	return nil
}

func (b *Backend) emitNot(o ir.Not) error {
	from, err := b.materialize(o.From)
	if err != nil {
		return err
	}
	resultType, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	id := b.mod.AddUnaryOp(OpLogicalNot, resultType, from)
	b.varIDs[o.To.ID] = id
	return nil
}

func (b *Backend) emitStoreVariable(o ir.StoreVariable) error {
	dst, ok := b.varIDs[o.To.ID]
	if !ok {
		return fmt.Errorf("spirv: store target not declared")
	}
	src, err := b.materialize(o.From)
	if err != nil {
		return err
	}
	if o.Compound != nil {
		// Fused compound store: the IR already folded load+combine into
		// one opcode, so emit it as load, combine, store here.
		ty, err := b.typeID(o.To.Type, false, 0)
		if err != nil {
			return err
		}
		cur := b.mod.AddLoad(ty, dst)
		opcode, err := compoundOpcode(*o.Compound, b.isFloatType(o.To.Type.Type))
		if err != nil {
			return err
		}
		src = b.mod.AddBinaryOp(opcode, ty, cur, src)
	}
	b.mod.AddStore(dst, src)
	return nil
}

func (b *Backend) emitReturn(o ir.Return) error {
	if o.Value == nil {
		b.mod.AddReturn()
		return nil
	}
	id, err := b.materialize(*o.Value)
	if err != nil {
		return err
	}
	b.mod.AddReturnValue(id)
	return nil
}

// splitAccessPath separates the member/element steps that form a valid
// SPIR-V access chain (pointer-producing) from a trailing swizzle step,
// which SPIR-V has no pointer representation for: a swizzle is always
// applied after the chain's OpLoad (read) or before its OpStore (write).
// A path may carry at most one swizzle step, and only as its last step,
// since swizzling a vector yields a value, not something indexable.
func splitAccessPath(path ir.AccessPath) (chain ir.AccessPath, swizzle *ir.AccessStep, err error) {
	for i, step := range path {
		if step.Kind == ir.AccessSwizzle {
			if i != len(path)-1 {
				return nil, nil, fmt.Errorf("spirv: swizzle step must be last in an access path")
			}
			s := step
			return path[:i], &s, nil
		}
	}
	return path, nil, nil
}

// walkAccessChainPointer emits the OpAccessChain (if the chain is
// non-empty) needed to reach the storage addressed by chain, starting from
// basePtr/baseType (the root variable's pointer and declared type). It
// returns the resulting pointer id, its pointee type id, and the pointee
// ir.TypeRef (needed by callers that must apply a trailing swizzle).
func (b *Backend) walkAccessChainPointer(chain ir.AccessPath, basePtr uint32, class StorageClass, rootType ir.TypeRef) (uint32, uint32, ir.TypeRef, error) {
	if len(chain) == 0 {
		ty, err := b.typeID(rootType, false, 0)
		if err != nil {
			return 0, 0, ir.TypeRef{}, err
		}
		return basePtr, ty, rootType, nil
	}

	indexType, err := b.typeID(ir.TypeRef{Type: b.ctx.Builtins.Uint}, false, 0)
	if err != nil {
		return 0, 0, ir.TypeRef{}, err
	}

	var indices []uint32
	cur := rootType
	for i, step := range chain {
		switch step.Kind {
		case ir.AccessMember:
			indices = append(indices, b.mod.AddConstant(indexType, uint32(step.MemberIndex)))
		case ir.AccessElement:
			idx, ok := b.varIDs[step.IndexVar]
			if !ok {
				return 0, 0, ir.TypeRef{}, fmt.Errorf("spirv: access index not materialized")
			}
			indices = append(indices, idx)
		default:
			return 0, 0, ir.TypeRef{}, fmt.Errorf("spirv: unexpected step in access chain")
		}
		next, err := (ir.AccessPath{step}).ResultType(b.ctx, cur)
		if err != nil {
			return 0, 0, ir.TypeRef{}, fmt.Errorf("spirv: access path step %d: %w", i, err)
		}
		cur = next
	}

	pointeeType, err := b.typeID(cur, false, 0)
	if err != nil {
		return 0, 0, ir.TypeRef{}, err
	}
	ptrType, err := b.typeID(cur, true, class)
	if err != nil {
		return 0, 0, ir.TypeRef{}, err
	}
	ptr := b.mod.AddAccessChain(ptrType, basePtr, indices...)
	return ptr, pointeeType, cur, nil
}

// scalarComponentType returns the scalar type underlying a float/int/uint
// vector type id, used to size an extracted or inserted swizzle component.
func (b *Backend) scalarComponentType(vec ir.TypeID) ir.TypeRef {
	bi := b.ctx.Builtins
	for n := 2; n <= 4; n++ {
		if vec == bi.FloatVec[n] {
			return ir.TypeRef{Type: bi.Float}
		}
		if vec == bi.IntVec[n] {
			return ir.TypeRef{Type: bi.Int}
		}
		if vec == bi.UintVec[n] {
			return ir.TypeRef{Type: bi.Uint}
		}
	}
	return ir.TypeRef{Type: vec}
}

// applyLoadSwizzle reads the post-swizzle value out of a freshly loaded
// vector, via OpCompositeExtract for a single component or OpVectorShuffle
// for two or more.
func (b *Backend) applyLoadSwizzle(loaded uint32, vecType ir.TypeRef, step ir.AccessStep, resultType ir.TypeRef) (uint32, error) {
	resID, err := b.typeID(resultType, false, 0)
	if err != nil {
		return 0, err
	}
	if len(step.Components) == 1 {
		return b.mod.AddCompositeExtract(resID, loaded, uint32(step.Components[0])), nil
	}
	comps := make([]uint32, len(step.Components))
	for i, c := range step.Components {
		comps[i] = uint32(c)
	}
	return b.mod.AddVectorShuffle(resID, loaded, loaded, comps), nil
}

// insertSwizzle returns a copy of cur with src written into the swizzled
// components named by step, via a sequential OpCompositeInsert chain (one
// insert per component — SPIR-V has no single "scatter" instruction).
func (b *Backend) insertSwizzle(cur uint32, curType ir.TypeRef, src uint32, step ir.AccessStep) (uint32, error) {
	curID, err := b.typeID(curType, false, 0)
	if err != nil {
		return 0, err
	}
	if len(step.Components) == 1 {
		return b.mod.AddCompositeInsert(curID, src, cur, uint32(step.Components[0])), nil
	}
	scalar := b.scalarComponentType(curType.Type)
	scalarID, err := b.typeID(scalar, false, 0)
	if err != nil {
		return 0, err
	}
	result := cur
	for i, c := range step.Components {
		comp := b.mod.AddCompositeExtract(scalarID, src, uint32(i))
		result = b.mod.AddCompositeInsert(curID, comp, result, uint32(c))
	}
	return result, nil
}

// emitLoadAccessList lowers LOAD_ACCESS_LIST. A memory source (the root
// variable is pointer-backed: a declared local, a global, or an entry
// parameter) walks an OpAccessChain and OpLoads through it; a value source
// (every other ir.Variable — the compiler only ever allocates those as
// plain SSA temporaries) has no pointer to chain through, so member/element
// steps become OpCompositeExtract directly over the already-materialized
// value. Either way a trailing swizzle step applies after the load/extract.
func (b *Backend) emitLoadAccessList(o ir.LoadAccessList) error {
	chain, swizzle, err := splitAccessPath(o.Path)
	if err != nil {
		return err
	}

	if basePtr, ok := b.varIDs[o.From.ID]; ok && b.pointerVars[o.From.ID] {
		class := b.storageClass[o.From.ID]
		ptr, pointeeType, pointeeRef, err := b.walkAccessChainPointer(chain, basePtr, class, o.From.Type)
		if err != nil {
			return err
		}
		loaded := b.mod.AddLoad(pointeeType, ptr)
		if swizzle == nil {
			b.varIDs[o.To.ID] = loaded
			return nil
		}
		result, err := b.applyLoadSwizzle(loaded, pointeeRef, *swizzle, o.To.Type)
		if err != nil {
			return err
		}
		b.varIDs[o.To.ID] = result
		return nil
	}

	value, ok := b.varIDs[o.From.ID]
	if !ok {
		return fmt.Errorf("spirv: access-list source not materialized")
	}
	cur := value
	curType := o.From.Type
	for _, step := range chain {
		next, err := (ir.AccessPath{step}).ResultType(b.ctx, curType)
		if err != nil {
			return err
		}
		nextID, err := b.typeID(next, false, 0)
		if err != nil {
			return err
		}
		switch step.Kind {
		case ir.AccessMember:
			cur = b.mod.AddCompositeExtract(nextID, cur, uint32(step.MemberIndex))
		case ir.AccessElement:
			return fmt.Errorf("spirv: dynamic element access on a non-memory value is not supported")
		}
		curType = next
	}
	if swizzle == nil {
		b.varIDs[o.To.ID] = cur
		return nil
	}
	result, err := b.applyLoadSwizzle(cur, curType, *swizzle, o.To.Type)
	if err != nil {
		return err
	}
	b.varIDs[o.To.ID] = result
	return nil
}

// emitStoreAccessList lowers STORE_ACCESS_LIST: walk the member/element
// prefix as a pointer chain, then either OpStore the source directly (no
// swizzle) or load-modify-store through OpCompositeInsert for a swizzled
// write. A compound-fused store loads the current value first and combines
// before writing, same as emitStoreVariable's plain-variable case.
func (b *Backend) emitStoreAccessList(o ir.StoreAccessList) error {
	chain, swizzle, err := splitAccessPath(o.Path)
	if err != nil {
		return err
	}
	basePtr, ok := b.varIDs[o.To.ID]
	if !ok || !b.pointerVars[o.To.ID] {
		return fmt.Errorf("spirv: store-access-list target is not addressable")
	}
	class := b.storageClass[o.To.ID]
	ptr, pointeeType, pointeeRef, err := b.walkAccessChainPointer(chain, basePtr, class, o.To.Type)
	if err != nil {
		return err
	}
	src, err := b.materialize(o.From)
	if err != nil {
		return err
	}

	if swizzle != nil {
		cur := b.mod.AddLoad(pointeeType, ptr)
		updated, err := b.insertSwizzle(cur, pointeeRef, src, *swizzle)
		if err != nil {
			return err
		}
		src = updated
	}

	if o.Compound != nil {
		cur := b.mod.AddLoad(pointeeType, ptr)
		opcode, err := compoundOpcode(*o.Compound, b.isFloatType(pointeeRef.Type))
		if err != nil {
			return err
		}
		src = b.mod.AddBinaryOp(opcode, pointeeType, cur, src)
	}

	b.mod.AddStore(ptr, src)
	return nil
}

// constructorArity recognizes a vector-constructor built-in's name
// (float2/float3/float4 and the int/uint/bool equivalents) and returns its
// arity.
func constructorArity(name string) (int, bool) {
	if len(name) < 2 {
		return 0, false
	}
	last := name[len(name)-1]
	if last < '2' || last > '4' {
		return 0, false
	}
	switch name[:len(name)-1] {
	case "float", "int", "uint", "bool":
		return int(last - '0'), true
	}
	return 0, false
}

func (b *Backend) emitCall(o ir.Call) error {
	name := b.ctx.Names.Text(o.Func)
	if name == "sample" {
		return b.emitSampleCall(o)
	}
	if _, ok := constructorArity(name); ok {
		return b.emitConstructorCall(o)
	}
	return fmt.Errorf("spirv: function calls not yet supported (%s)", name)
}

func (b *Backend) emitConstructorCall(o ir.Call) error {
	if o.To == nil {
		return fmt.Errorf("spirv: constructor call has no result")
	}
	resultType, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	constituents := make([]uint32, 0, len(o.Params))
	for _, p := range o.Params {
		id, err := b.materialize(p)
		if err != nil {
			return err
		}
		constituents = append(constituents, id)
	}
	id := b.mod.AddCompositeConstruct(resultType, constituents...)
	b.varIDs[o.To.ID] = id
	return nil
}

// emitSampleCall lowers sample(texture, sampler, coordinate): the texture
// and sampler operands name global variables, so their SPIR-V value is
// their pointer's OpLoad, not the pointer itself.
func (b *Backend) emitSampleCall(o ir.Call) error {
	if o.To == nil {
		return fmt.Errorf("spirv: sample() call has no result")
	}
	if len(o.Params) < 3 {
		return fmt.Errorf("spirv: sample() requires (texture, sampler, coordinate)")
	}
	texVar, sampVar, uvVar := o.Params[0], o.Params[1], o.Params[2]

	texPtr, ok := b.varIDs[texVar.ID]
	if !ok {
		return fmt.Errorf("spirv: sample() texture operand not materialized")
	}
	sampPtr, ok := b.varIDs[sampVar.ID]
	if !ok {
		return fmt.Errorf("spirv: sample() sampler operand not materialized")
	}
	uv, err := b.materialize(uvVar)
	if err != nil {
		return err
	}

	imageTypeID, err := b.typeID(texVar.Type, false, 0)
	if err != nil {
		return err
	}
	samplerTypeID, err := b.typeID(sampVar.Type, false, 0)
	if err != nil {
		return err
	}

	image := b.mod.AddLoad(imageTypeID, texPtr)
	sampler := b.mod.AddLoad(samplerTypeID, sampPtr)
	sampledImageType := b.sampledImageTypeID(imageTypeID)
	sampledImage := b.mod.AddSampledImage(sampledImageType, image, sampler)

	resultType, err := b.typeID(o.To.Type, false, 0)
	if err != nil {
		return err
	}
	id := b.mod.AddImageSampleImplicitLod(resultType, sampledImage, uv)
	b.varIDs[o.To.ID] = id
	return nil
}

func (b *Backend) sampledImageTypeID(imageTypeID uint32) uint32 {
	if id, ok := b.sampledImageTypes[imageTypeID]; ok {
		return id
	}
	id := b.mod.AddTypeSampledImage(imageTypeID)
	b.sampledImageTypes[imageTypeID] = id
	return id
}

// emitEntryFunction builds the vertex/fragment entry point itself (spec
// §4.4): one Input OpVariable per parameter-struct member (skipping member
// 0, position, for a fragment entry), one Output OpVariable per
// return-struct member (member 0 wrapped in a Block-decorated struct
// carrying the Position builtin, for a vertex entry; a lone float4 at
// location 0 for a fragment entry), a Function-storage copy of the
// parameter struct loaded from the Inputs, the lowered body, and — at each
// RETURN-with-value — the return value's members extracted and stored into
// the Outputs.
func (b *Backend) emitEntryFunction(entry ir.FunctionID, stage analyzer.Stage) (uint32, []uint32, error) {
	fn := b.ctx.Functions.Get(entry)
	if len(fn.Params) != 1 {
		return 0, nil, fmt.Errorf("spirv: entry point must take exactly one parameter struct")
	}
	if fn.Return == nil {
		return 0, nil, fmt.Errorf("spirv: entry point must return a value")
	}

	paramType := b.ctx.Types.Get(fn.Params[0].Type.Type)
	returnType := b.ctx.Types.Get(fn.Return.Type)

	voidTy := b.voidType()
	fnType := b.mod.AddTypeFunction(voidTy)
	id := b.mod.AddFunction(fnType, voidTy, FunctionControlNone)
	b.mod.AddName(id, b.ctx.Names.Text(fn.Name))
	b.funcIDs[entry] = id

	b.mod.AddLabel()

	var interfaceIDs []uint32

	skipInput0 := stage == analyzer.StageFragment
	inputVars := make([]uint32, len(paramType.Members))
	for i, m := range paramType.Members {
		if i == 0 && skipInput0 {
			continue
		}
		ptrTy, err := b.typeID(m.Type, true, StorageClassInput)
		if err != nil {
			return 0, nil, err
		}
		v := b.mod.AddVariable(ptrTy, StorageClassInput)
		loc := uint32(i)
		if skipInput0 {
			loc = uint32(i - 1)
		}
		b.mod.AddDecorate(v, DecorationLocation, loc)
		inputVars[i] = v
		interfaceIDs = append(interfaceIDs, v)
	}

	var outputVars []uint32
	var positionBlockVar uint32
	if stage == analyzer.StageVertex {
		outputVars = make([]uint32, len(returnType.Members))
		posMemberTy, err := b.typeID(returnType.Members[0].Type, false, 0)
		if err != nil {
			return 0, nil, err
		}
		blockID := b.mod.AddTypeStruct(posMemberTy)
		b.mod.AddDecorate(blockID, DecorationBlock)
		b.mod.AddMemberDecorate(blockID, 0, DecorationBuiltIn, uint32(BuiltInPosition))
		blockPtrTy := b.mod.AddTypePointer(StorageClassOutput, blockID)
		positionBlockVar = b.mod.AddVariable(blockPtrTy, StorageClassOutput)
		interfaceIDs = append(interfaceIDs, positionBlockVar)

		for i := 1; i < len(returnType.Members); i++ {
			m := returnType.Members[i]
			ptrTy, err := b.typeID(m.Type, true, StorageClassOutput)
			if err != nil {
				return 0, nil, err
			}
			v := b.mod.AddVariable(ptrTy, StorageClassOutput)
			b.mod.AddDecorate(v, DecorationLocation, uint32(i-1))
			outputVars[i] = v
			interfaceIDs = append(interfaceIDs, v)
		}
	} else {
		ptrTy, err := b.typeID(*fn.Return, true, StorageClassOutput)
		if err != nil {
			return 0, nil, err
		}
		v := b.mod.AddVariable(ptrTy, StorageClassOutput)
		b.mod.AddDecorate(v, DecorationLocation, 0)
		outputVars = []uint32{v}
		interfaceIDs = append(interfaceIDs, v)
	}

	paramPtrTy, err := b.typeID(fn.Params[0].Type, true, StorageClassFunction)
	if err != nil {
		return 0, nil, err
	}
	paramVar := b.mod.AddLocalVariable(paramPtrTy)
	paramVarID := fn.Params[0].Var.ID
	b.varIDs[paramVarID] = paramVar
	b.pointerVars[paramVarID] = true
	b.storageClass[paramVarID] = StorageClassFunction

	if err := b.hoistVars(fn.Code); err != nil {
		return 0, nil, err
	}

	indexType, err := b.typeID(ir.TypeRef{Type: b.ctx.Builtins.Uint}, false, 0)
	if err != nil {
		return 0, nil, err
	}
	for i, m := range paramType.Members {
		if i == 0 && skipInput0 {
			continue
		}
		memberTy, err := b.typeID(m.Type, false, 0)
		if err != nil {
			return 0, nil, err
		}
		loaded := b.mod.AddLoad(memberTy, inputVars[i])
		memberPtrTy, err := b.typeID(m.Type, true, StorageClassFunction)
		if err != nil {
			return 0, nil, err
		}
		idxConst := b.mod.AddConstant(indexType, uint32(i))
		dst := b.mod.AddAccessChain(memberPtrTy, paramVar, idxConst)
		b.mod.AddStore(dst, loaded)
	}

	onReturn := func(ret ir.Return) error {
		if ret.Value == nil {
			return fmt.Errorf("spirv: entry point return must carry a value")
		}
		retVal, err := b.materialize(*ret.Value)
		if err != nil {
			return err
		}
		if stage == analyzer.StageFragment {
			b.mod.AddStore(outputVars[0], retVal)
			b.mod.AddReturn()
			return nil
		}
		for i, m := range returnType.Members {
			memberTy, err := b.typeID(m.Type, false, 0)
			if err != nil {
				return err
			}
			extracted := b.mod.AddCompositeExtract(memberTy, retVal, uint32(i))
			if i == 0 {
				posPtrTy, err := b.typeID(m.Type, true, StorageClassOutput)
				if err != nil {
					return err
				}
				zero := b.mod.AddConstant(indexType, 0)
				dst := b.mod.AddAccessChain(posPtrTy, positionBlockVar, zero)
				b.mod.AddStore(dst, extracted)
				continue
			}
			b.mod.AddStore(outputVars[i], extracted)
		}
		b.mod.AddReturn()
		return nil
	}

	if err := b.finishBody(fn.Code, onReturn); err != nil {
		return 0, nil, err
	}
	return id, interfaceIDs, nil
}

func (b *Backend) declareGlobal(gid ir.GlobalID, reach analyzer.Reach) (uint32, error) {
	g := b.ctx.Globals.Get(gid)
	class := StorageClassUniformConstant
	switch g.Kind {
	case ir.GlobalUniformBuffer:
		class = StorageClassUniform
	case ir.GlobalTexture, ir.GlobalSampler:
		class = StorageClassUniformConstant
	case ir.GlobalConstant:
		class = StorageClassPrivate
	}
	if g.Kind == ir.GlobalUniformBuffer {
		valID, err := b.typeID(g.Type, false, 0)
		if err != nil {
			return 0, err
		}
		if !b.blockDecorated[valID] {
			b.blockDecorated[valID] = true
			b.decorateUniformBlock(valID, b.ctx.Types.Get(g.Type.Type))
		}
	}
	ty, err := b.typeID(g.Type, true, class)
	if err != nil {
		return 0, err
	}
	id := b.mod.AddVariable(ty, class)
	b.mod.AddName(id, b.ctx.Names.Text(g.Name))
	if len(g.Sets) > 0 {
		set, ok := reach.GlobalSet(gid)
		if !ok {
			return 0, fmt.Errorf("spirv: global %s has no resolved descriptor set", b.ctx.Names.Text(g.Name))
		}
		b.mod.AddDecorate(id, DecorationDescriptorSet, uint32(set))
		b.mod.AddDecorate(id, DecorationBinding, reach.Binding(gid))
	}
	if g.Var != ir.NoVar {
		b.varIDs[g.Var] = id
		b.pointerVars[g.Var] = true
		b.storageClass[g.Var] = class
	}
	return id, nil
}

// decorateUniformBlock applies the backend's simplified, non-std140 layout
// to a uniform-buffer-backed struct: each member gets a monotonically
// increasing Offset, and each matrix member additionally gets ColMajor and
// a MatrixStride sized to its column count. Vector/scalar members use their
// natural (unpadded) size — this backend does not implement std140's
// vec4-alignment padding rules (spec §4.4).
func (b *Backend) decorateUniformBlock(structID uint32, t *ir.Type) {
	b.mod.AddDecorate(structID, DecorationBlock)
	bi := b.ctx.Builtins
	offset := uint32(0)
	for i, m := range t.Members {
		b.mod.AddMemberDecorate(structID, uint32(i), DecorationOffset, offset)
		size := uint32(4)
		switch m.Type.Type {
		case bi.FloatMat[2]:
			b.mod.AddMemberDecorate(structID, uint32(i), DecorationColMajor)
			b.mod.AddMemberDecorate(structID, uint32(i), DecorationMatrixStride, 8)
			size = 8
		case bi.FloatMat[3]:
			b.mod.AddMemberDecorate(structID, uint32(i), DecorationColMajor)
			b.mod.AddMemberDecorate(structID, uint32(i), DecorationMatrixStride, 12)
			size = 12
		case bi.FloatMat[4]:
			b.mod.AddMemberDecorate(structID, uint32(i), DecorationColMajor)
			b.mod.AddMemberDecorate(structID, uint32(i), DecorationMatrixStride, 16)
			size = 16
		default:
			if n, ok := vectorWidth(bi, m.Type.Type); ok {
				size = uint32(n * 4)
			}
		}
		offset += size
	}
}

// vectorWidth reports the component count of a float/int/uint vector type.
func vectorWidth(bi ir.Builtins, t ir.TypeID) (int, bool) {
	for n := 2; n <= 4; n++ {
		if t == bi.FloatVec[n] || t == bi.IntVec[n] || t == bi.UintVec[n] {
			return n, true
		}
	}
	return 0, false
}

func (b *Backend) isFloatType(t ir.TypeID) bool {
	bi := b.ctx.Builtins
	if t == bi.Float {
		return true
	}
	for _, v := range bi.FloatVec {
		if v == t {
			return true
		}
	}
	return false
}

// typeID returns (creating if absent) the SPIR-V type id for ref, optionally
// wrapped in OpTypePointer for the given storage class. Dedup keys on
// (type, pointer, class): the wire format requires a distinct OpTypePointer
// per pointer/class combination, but spirv-val rejects a redeclared
// identical value type.
func (b *Backend) typeID(ref ir.TypeRef, pointer bool, class StorageClass) (uint32, error) {
	key := typeKey{t: ref.Type, pointer: pointer, class: class}
	if id, ok := b.typeIDs[key]; ok {
		return id, nil
	}
	base, err := b.baseTypeID(ref)
	if err != nil {
		return 0, err
	}
	id := base
	if pointer {
		id = b.mod.AddTypePointer(class, base)
	}
	b.typeIDs[key] = id
	return id, nil
}

func (b *Backend) baseTypeID(ref ir.TypeRef) (uint32, error) {
	valueKey := typeKey{t: ref.Type, pointer: false, class: 0}
	if id, ok := b.typeIDs[valueKey]; ok {
		return id, nil
	}
	bi := b.ctx.Builtins
	var id uint32
	switch ref.Type {
	case bi.Float:
		id = b.mod.AddTypeFloat(32)
	case bi.Int:
		id = b.mod.AddTypeInt(32, true)
	case bi.Uint:
		id = b.mod.AddTypeInt(32, false)
	case bi.Bool:
		id = b.mod.AddTypeBool()
	case bi.Sampler:
		id = b.mod.AddTypeSampler()
	case bi.Tex2D:
		comp, err := b.typeID(ir.TypeRef{Type: bi.Float}, false, 0)
		if err != nil {
			return 0, err
		}
		id = b.mod.AddTypeImage(comp, Dim2D, false)
	case bi.Tex2DArray:
		comp, err := b.typeID(ir.TypeRef{Type: bi.Float}, false, 0)
		if err != nil {
			return 0, err
		}
		id = b.mod.AddTypeImage(comp, Dim2D, true)
	case bi.TexCube:
		comp, err := b.typeID(ir.TypeRef{Type: bi.Float}, false, 0)
		if err != nil {
			return 0, err
		}
		id = b.mod.AddTypeImage(comp, DimCube, false)
	default:
		matched := false
		for size := 2; size <= 4 && !matched; size++ {
			switch ref.Type {
			case bi.FloatVec[size]:
				comp, err := b.typeID(ir.TypeRef{Type: bi.Float}, false, 0)
				if err != nil {
					return 0, err
				}
				id = b.mod.AddTypeVector(comp, uint32(size))
				matched = true
			case bi.IntVec[size]:
				comp, err := b.typeID(ir.TypeRef{Type: bi.Int}, false, 0)
				if err != nil {
					return 0, err
				}
				id = b.mod.AddTypeVector(comp, uint32(size))
				matched = true
			case bi.UintVec[size]:
				comp, err := b.typeID(ir.TypeRef{Type: bi.Uint}, false, 0)
				if err != nil {
					return 0, err
				}
				id = b.mod.AddTypeVector(comp, uint32(size))
				matched = true
			case bi.FloatMat[size]:
				col, err := b.typeID(ir.TypeRef{Type: bi.FloatVec[size]}, false, 0)
				if err != nil {
					return 0, err
				}
				id = b.mod.AddTypeMatrix(col, uint32(size))
				matched = true
			}
		}
		if !matched {
			t := b.ctx.Types.Get(ref.Type)
			var memberTypes []uint32
			for _, m := range t.Members {
				mt, err := b.typeID(m.Type, false, 0)
				if err != nil {
					return 0, err
				}
				memberTypes = append(memberTypes, mt)
			}
			id = b.mod.AddTypeStruct(memberTypes...)
		}
	}
	if ref.ArraySize != 0 && ref.ArraySize != ir.UnboundedSize {
		lenType, err := b.typeID(ir.TypeRef{Type: b.ctx.Builtins.Uint}, false, 0)
		if err != nil {
			return 0, err
		}
		lenConst := b.mod.AddConstant(lenType, ref.ArraySize)
		id = b.mod.AddTypeArray(id, lenConst)
	}
	b.typeIDs[valueKey] = id
	return id, nil
}

func (b *Backend) voidType() uint32 {
	key := typeKey{t: ir.NoType, pointer: false, class: 0}
	if id, ok := b.typeIDs[key]; ok {
		return id
	}
	id := b.mod.AddTypeVoid()
	b.typeIDs[key] = id
	return id
}

func binaryOpcode(kind ir.BinaryKind, isFloat bool) (OpCode, error) {
	pick := func(f, i OpCode) (OpCode, error) {
		if isFloat {
			return f, nil
		}
		return i, nil
	}
	switch kind {
	case ir.BinaryAdd:
		return pick(OpFAdd, OpIAdd)
	case ir.BinarySub:
		return pick(OpFSub, OpISub)
	case ir.BinaryMultiply:
		return pick(OpFMul, OpIMul)
	case ir.BinaryDivide:
		return pick(OpFDiv, OpSDiv)
	case ir.BinaryMod:
		return pick(OpFMod, OpSMod)
	case ir.BinaryEqual:
		return pick(OpFOrdEqual, OpIEqual)
	case ir.BinaryNotEqual:
		return pick(OpFOrdNotEqual, OpINotEqual)
	case ir.BinaryGreater:
		return pick(OpFOrdGreaterThan, OpSGreaterThan)
	case ir.BinaryGreaterEqual:
		return pick(OpFOrdGreaterThanEqual, OpSGreaterThanEqual)
	case ir.BinaryLess:
		return pick(OpFOrdLessThan, OpSLessThan)
	case ir.BinaryLessEqual:
		return pick(OpFOrdLessThanEqual, OpSLessThanEqual)
	case ir.BinaryAnd:
		return OpLogicalAnd, nil
	case ir.BinaryOr:
		return OpLogicalOr, nil
	case ir.BinaryBitwiseAnd:
		return OpBitwiseAnd, nil
	case ir.BinaryBitwiseOr:
		return OpBitwiseOr, nil
	case ir.BinaryBitwiseXor:
		return OpBitwiseXor, nil
	case ir.BinaryShiftLeft:
		return OpShiftLeftLogical, nil
	case ir.BinaryShiftRight:
		return OpShiftRightLogical, nil
	default:
		return 0, fmt.Errorf("spirv: unhandled binary kind %v", kind)
	}
}

func compoundOpcode(kind ir.CompoundOp, isFloat bool) (OpCode, error) {
	switch kind {
	case ir.CompoundAdd:
		if isFloat {
			return OpFAdd, nil
		}
		return OpIAdd, nil
	case ir.CompoundSub:
		if isFloat {
			return OpFSub, nil
		}
		return OpISub, nil
	case ir.CompoundMultiply:
		if isFloat {
			return OpFMul, nil
		}
		return OpIMul, nil
	case ir.CompoundDivide:
		if isFloat {
			return OpFDiv, nil
		}
		return OpSDiv, nil
	default:
		return 0, fmt.Errorf("spirv: unhandled compound op %v", kind)
	}
}

// validate shells out to spirv-val: run the subprocess, surface a non-zero
// exit as an error. Mirrors the vendor-compiler os/exec contract.
func (b *Backend) validate(bin []byte) error {
	cmd := exec.Command(b.options.ValidatorPath, "--target-env", "vulkan1.1")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, werr := stdin.Write(bin)
		stdin.Close()
		done <- werr
	}()
	out, err := cmd.CombinedOutput()
	if werr := <-done; werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return fmt.Errorf("spirv: validation failed: %w\n%s", err, out)
	}
	return nil
}
