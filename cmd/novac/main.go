// Package main is novac, Nova's ahead-of-time compiler driver: a thin CLI
// wiring Lexer → Parser → HIR Gen → MIR Gen → LLVM CG (spec §2) and emitting
// the resulting LLVM IR text.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/orizon/internal/codegen"
	"github.com/orizon-lang/orizon/internal/hir"
	"github.com/orizon-lang/orizon/internal/mir"
	"github.com/orizon-lang/orizon/internal/parser"
)

var (
	version = "0.1.0-alpha"

	// minLLVMText is the lowest github.com/llir/llvm-compatible IR text
	// version novac declares support for; checked only against the
	// user-supplied -target-llvm flag, since this backend never shells out
	// to a system LLVM toolchain itself (spec §4.5's scope cut).
	minLLVMText = semver.MustParse("12.0.0")
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		outPath     = flag.String("o", "", "output path for the emitted LLVM IR (default: stdout)")
		targetLLVM  = flag.String("target-llvm", "", "require the LLVM text version this module targets be at least this compatible")
		watch       = flag.Bool("watch", false, "recompile on source file changes")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("novac %s\n", version)

		return
	}

	if *targetLLVM != "" {
		if err := checkLLVMCompat(*targetLLVM); err != nil {
			fmt.Fprintf(os.Stderr, "novac: %v\n", err)
			os.Exit(1)
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if *watch {
		if err := watchAndCompile(args, *outPath); err != nil {
			fmt.Fprintf(os.Stderr, "novac: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if err := compileAll(args, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "novac: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: novac [-o output.ll] [-watch] [-target-llvm version] <file.ts> [file2.ts ...]")
}

// checkLLVMCompat is novac's Masterminds/semver compatibility gate: a
// stand-in for the real toolchain-version check a driver that did shell out
// to `llc`/`clang` would need, kept here so the dependency has a concrete
// home per SPEC_FULL.md's domain-stack wiring.
func checkLLVMCompat(want string) error {
	c, err := semver.NewConstraint(">= " + want)
	if err != nil {
		return fmt.Errorf("invalid -target-llvm constraint %q: %w", want, err)
	}

	if !c.Check(minLLVMText) {
		return fmt.Errorf("novac's backend targets LLVM IR text compatible with %s, which does not satisfy %q", minLLVMText, want)
	}

	return nil
}

// compileAll compiles every input file independently and concurrently:
// each file gets its own Lexer/Parser/HIRBuilder/MIRGenerator/LLVMCodeGen
// value, matching spec §5's "nothing in these packages is shared across
// compilation units" — errgroup fans the independent units out, not shared
// mutable compiler state.
func compileAll(files []string, outPath string) error {
	var g errgroup.Group

	results := make([]*codegen.LLVMCodeGen, len(files))

	for i, f := range files {
		i, f := i, f

		g.Go(func() error {
			cg, err := compileOne(f)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}

			results[i] = cg

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, f := range files {
		dest := outPath
		if dest == "" {
			dest = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)) + ".ll"
		}

		if len(files) > 1 && outPath != "" {
			dest = fmt.Sprintf("%s.%d.ll", outPath, i)
		}

		if err := results[i].EmitLLVMIR(dest); err != nil {
			return fmt.Errorf("%s: writing %s: %w", f, dest, err)
		}

		fmt.Printf("%s -> %s\n", f, dest)
	}

	return nil
}

// compileOne runs the full five-stage pipeline over one source file.
func compileOne(path string) (*codegen.LLVMCodeGen, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	moduleName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	prog, parseDiags := parser.ParseProgram(string(src), path)
	if parseDiags.HasErrors() {
		return nil, fmt.Errorf("parse errors:\n%s", parseDiags.Format())
	}

	hirMod, hirDiags := hir.GenerateHIR(prog, moduleName)
	if hirDiags.HasFatal() {
		return nil, fmt.Errorf("HIR generation errors:\n%s", hirDiags.Format())
	}

	mirMod, mirDiags := mir.GenerateMIR(hirMod, moduleName)
	if mirDiags.HasFatal() {
		return nil, fmt.Errorf("MIR generation errors:\n%s", mirDiags.Format())
	}

	cg := codegen.New(moduleName)
	if !cg.Generate(mirMod) {
		return nil, fmt.Errorf("code generation errors:\n%s", cg.Diagnostics().Format())
	}

	return cg, nil
}

// watchAndCompile recompiles every input file whenever fsnotify reports a
// write to it, until the process is interrupted.
func watchAndCompile(files []string, outPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, f := range files {
		if err := w.Add(f); err != nil {
			return fmt.Errorf("watching %s: %w", f, err)
		}
	}

	fmt.Println("novac: watching for changes (Ctrl-C to stop)")

	if err := compileAll(files, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "novac: %v\n", err)
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := compileAll([]string{ev.Name}, outPath); err != nil {
				fmt.Fprintf(os.Stderr, "novac: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			fmt.Fprintf(os.Stderr, "novac: watch error: %v\n", err)
		}
	}
}
