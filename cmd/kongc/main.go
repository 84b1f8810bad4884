// Command kongc is the kong shading-language compiler CLI.
//
// kongc's input is a module description in JSON (see module.go): the
// tokenizer/parser that would normally turn shader source text into a
// lowering-ready AST lives outside this compiler, so kongc reads the
// already-built module contract directly rather than parsing source files.
//
// Usage:
//
//	kongc [options] <module.json>
//
// Examples:
//
//	kongc shader.json                        # compile a single-entry module to stdout
//	kongc -o out/shader shader.json          # compile to out/shader.<entry>.<ext>
//	kongc -target hlsl shader.json           # emit HLSL text instead of SPIR-V
//	kongc -export-c out/c shader.json        # also emit the C integration stubs
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/gogpu/kong"
	"github.com/gogpu/kong/spirv"
)

var (
	output      = flag.String("o", "", "output path prefix (default: stdout for a single entry)")
	debugFlag   = flag.Bool("debug", false, "set spirv.Options.Debug (the SPIR-V backend does not read it; debug names are always emitted)")
	validate    = flag.Bool("validate", true, "run spirv-val over generated SPIR-V")
	target      = flag.String("target", "spirv", "output format: spirv or hlsl")
	exportC     = flag.String("export-c", "", "directory to also emit kong.h/kong.c C integration stubs into")
	versionFlag = flag.Bool("version", false, "print version")
)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("kongc version %s\n", version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no module file specified")
		usage()
		os.Exit(1)
	}

	if err := run(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(modulePath string) error {
	var compileTarget kong.Target
	var ext string
	switch *target {
	case "spirv":
		compileTarget = kong.TargetSPIRV
		ext = "spv"
	case "hlsl":
		compileTarget = kong.TargetHLSL
		ext = "hlsl"
	default:
		return fmt.Errorf("unknown target %q (want spirv or hlsl)", *target)
	}

	f, err := os.Open(modulePath)
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}
	defer f.Close()

	ctx, bodies, entries, err := decodeModule(f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("module declares no entry points")
	}

	if err := kong.Lower(ctx, bodies); err != nil {
		return err
	}

	spirvOpts := spirv.DefaultOptions()
	spirvOpts.Debug = *debugFlag
	spirvOpts.Validate = *validate
	opts := kong.CompileOptions{Target: compileTarget, SPIRV: spirvOpts}

	for _, entry := range entries {
		out, err := kong.Compile(ctx, entry.Function, entry.Stage, opts)
		if err != nil {
			return fmt.Errorf("compiling %s: %w", entry.Name, err)
		}
		if err := writeEntryOutput(entry.Name, ext, out, len(entries)); err != nil {
			return err
		}
	}

	if *exportC != "" {
		header, source, err := kong.GenerateCStubs(ctx)
		if err != nil {
			return fmt.Errorf("generating C stubs: %w", err)
		}
		if err := os.MkdirAll(*exportC, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", *exportC, err)
		}
		if err := os.WriteFile(filepath.Join(*exportC, "kong.h"), []byte(header), 0o644); err != nil {
			return fmt.Errorf("writing kong.h: %w", err)
		}
		if err := os.WriteFile(filepath.Join(*exportC, "kong.c"), []byte(source), 0o644); err != nil {
			return fmt.Errorf("writing kong.c: %w", err)
		}
		fmt.Printf("Wrote C stubs to %s\n", *exportC)
	}

	return nil
}

// writeEntryOutput writes one entry point's compiled output either to
// stdout (no -o, single entry), or to "<prefix>.<entry>.<ext>" (-o given).
// A module with several entries and no -o is an error.
func writeEntryOutput(entryName, ext string, out []byte, entryCount int) error {
	if *output == "" {
		if entryCount > 1 {
			return fmt.Errorf("module has %d entry points; -o is required to disambiguate output files", entryCount)
		}
		_, err := os.Stdout.Write(out)
		return err
	}
	path := fmt.Sprintf("%s.%s.%s", *output, entryName, ext)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", path, len(out))
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: kongc [options] <module.json>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  kongc shader.json                  Compile to SPIR-V on stdout\n")
	fmt.Fprintf(os.Stderr, "  kongc -o out/shader shader.json    Compile every entry to out/shader.<entry>.spv\n")
	fmt.Fprintf(os.Stderr, "  kongc -target hlsl shader.json     Emit HLSL text instead\n")
	fmt.Fprintf(os.Stderr, "  kongc -export-c out/c shader.json  Also emit the C integration stubs\n")
}
