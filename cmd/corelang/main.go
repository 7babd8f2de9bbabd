// Command corelang drives the code generation engine from the command line.
//
// Lexing and parsing a .core source file are out of scope for this engine
// (the driver receives an already-built AST); corelang therefore
// compiles a small embedded sample program rather than an arbitrary source
// file, exercising the same CompilerFactory/Driver wiring a real front end
// would use once it hands over a domain.CompileInput.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sokoide/corelang/internal/application"
	"github.com/sokoide/corelang/internal/domain"
)

var (
	outputFile    string
	optimizeLevel int
	debug         bool
	verbose       bool
	winTarget     bool
	warnAsError   bool
	showVersion   bool
)

const corelangVersion = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "corelang",
	Short: "corelang lowers a pre-built AST to LLVM IR",
	Long: `corelang drives the code generation engine: it wires a
domain.CompileInput through internal/application.CompilerFactory and writes
the resulting textual LLVM IR to stdout or --output.

Since lexing and parsing are out of scope for this engine, running corelang
with no further front end attached compiles a small built-in sample program.
This is primarily useful for smoke-testing the generator, a target, and the
optimization/warning flags below against a real driver.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println("corelang", corelangVersion)
			return nil
		}
		return run()
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().IntVarP(&optimizeLevel, "optimize", "O", 0, "optimization level recorded in CompilationOptions")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "set DebugInfo in CompilationOptions (not read by the generator)")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable verbose driver logging")
	rootCmd.Flags().BoolVar(&winTarget, "windows", false, "target Win64 ABI instead of the Unix default")
	rootCmd.Flags().BoolVar(&warnAsError, "warnings-as-errors", false, "treat warnings as a failed compilation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	config := application.DefaultCompilerConfig()
	config.Verbose = verbose
	config.ErrorOutput = os.Stderr
	factory := application.NewCompilerFactory(config)
	driver := factory.CreateDriver()

	var target domain.TargetInfo = domain.UnixTargetInfo{}
	if winTarget {
		target = domain.WindowsTargetInfo{}
	}

	input := domain.CompileInput{
		Program:  sampleProgram(),
		Language: "core",
		Mode:     "release",
		Target:   target,
		Options: domain.CompilationOptions{
			Language:          "core",
			Mode:              "release",
			OptimizationLevel: optimizeLevel,
			DebugInfo:         debug,
			WarningsAsErrors:  warnAsError,
		},
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := driver.Compile(input, out); err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	return nil
}

// sampleProgram builds `func main(): s32 { return 0; }`, enough to exercise
// the driver end to end without a front end attached.
func sampleProgram() *domain.Program {
	body := &domain.BlockStmt{
		Statements: []domain.Statement{
			&domain.ReturnStmt{
				Value: &domain.LiteralExpr{Value: int64(0), Type_: domain.NewSignedInt(32)},
			},
		},
	}

	mainFn := &domain.FunctionDecl{
		Name:       "main",
		ReturnType: domain.NewSignedInt(32),
		Body:       body,
	}

	return &domain.Program{Declarations: []domain.Declaration{mainFn}}
}
