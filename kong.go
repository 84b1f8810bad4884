// Package kong provides a Pure Go shading-language compiler.
//
// kong's front end (tokenizer/parser) is outside this module's scope: a
// caller builds an *ir.Context (types, globals, functions) and an
// ast.Block per function body, the same contract compiler.Lower consumes.
// This package wires that already-built input through lowering,
// reachability analysis, and the SPIR-V/HLSL/C-stub backends.
//
// Example usage (SPIR-V):
//
//	ctx := ir.NewContext()
//	// ... populate ctx.Types, ctx.Globals, ctx.Functions ...
//	if err := kong.Lower(ctx, bodies); err != nil {
//	    log.Fatal(err)
//	}
//	spirvBytes, err := kong.GenerateSPIRV(ctx, entry, analyzer.StageFragment, spirv.DefaultOptions())
package kong

import (
	"fmt"

	"github.com/gogpu/kong/analyzer"
	"github.com/gogpu/kong/ast"
	"github.com/gogpu/kong/compiler"
	"github.com/gogpu/kong/cstub"
	"github.com/gogpu/kong/hlsl"
	"github.com/gogpu/kong/ir"
	"github.com/gogpu/kong/spirv"
)

// Target names a code generator kong can drive.
type Target int

const (
	TargetSPIRV Target = iota
	TargetHLSL
)

// CompileOptions configures a single entry point's compilation. SPIRV is
// read only when Target is TargetSPIRV; spirv.Options.Validate controls
// whether Backend.Emit runs spirv-val on the result.
type CompileOptions struct {
	Target Target
	SPIRV  spirv.Options
}

// DefaultOptions returns SPIR-V output with validation off, matching
// spirv.DefaultOptions.
func DefaultOptions() CompileOptions {
	return CompileOptions{Target: TargetSPIRV, SPIRV: spirv.DefaultOptions()}
}

// Lower converts every global to its synthetic variable
// (ctx.ConvertGlobals), then runs compiler.Lower over every function named
// in bodies. Globals are converted first because compiler.Lower resolves a
// global reference through the global's Var (spec §4.2/§4.3).
func Lower(ctx *ir.Context, bodies map[ir.FunctionID]*ast.Block) error {
	ctx.ConvertGlobals()
	for fid, body := range bodies {
		fn := ctx.Functions.Get(fid)
		if err := compiler.Lower(ctx, fn, body); err != nil {
			return fmt.Errorf("lowering %s: %w", ctx.Names.Text(fn.Name), err)
		}
	}
	return nil
}

// GenerateSPIRV lowers the given entry point and everything reachable from
// it into a complete SPIR-V module.
func GenerateSPIRV(ctx *ir.Context, entry ir.FunctionID, stage analyzer.Stage, opts spirv.Options) ([]byte, error) {
	backend := spirv.NewBackend(ctx, opts)
	bin, err := backend.Emit(entry, stage)
	if err != nil {
		return nil, fmt.Errorf("SPIR-V generation: %w", err)
	}
	return bin, nil
}

// GenerateHLSL lowers the given entry point into HLSL source text.
func GenerateHLSL(ctx *ir.Context, entry ir.FunctionID, stage analyzer.Stage) (string, error) {
	out, err := hlsl.NewBackend(ctx).Emit(entry, stage)
	if err != nil {
		return "", fmt.Errorf("HLSL generation: %w", err)
	}
	return out, nil
}

// GenerateCStubs renders the kong.h/kong.c pair for every `pipe`-tagged
// type and uniform-buffer global reachable from the module's type/global
// tables (cstub scans ctx directly rather than taking a single entry
// point, since one pipeline's pair wires multiple stages together).
func GenerateCStubs(ctx *ir.Context) (header, source string, err error) {
	backend := cstub.NewBackend(ctx)
	header, err = backend.EmitHeader()
	if err != nil {
		return "", "", fmt.Errorf("C header generation: %w", err)
	}
	source, err = backend.EmitSource()
	if err != nil {
		return "", "", fmt.Errorf("C source generation: %w", err)
	}
	return header, source, nil
}

// Compile runs GenerateSPIRV or GenerateHLSL according to opts.Target.
func Compile(ctx *ir.Context, entry ir.FunctionID, stage analyzer.Stage, opts CompileOptions) ([]byte, error) {
	switch opts.Target {
	case TargetHLSL:
		text, err := GenerateHLSL(ctx, entry, stage)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	default:
		return GenerateSPIRV(ctx, entry, stage, opts.SPIRV)
	}
}

// Buckets groups a module's pipelines so that every bucket can compile in
// parallel with every other bucket: no two pipelines sharing a vertex or
// fragment function end up in the same bucket (analyzer.PipelineBuckets).
func Buckets(pipelines []analyzer.Pipeline) [][]int {
	return analyzer.PipelineBuckets(pipelines)
}
