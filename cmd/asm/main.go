// Command asm assembles a toyasm source file into a ROM image.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lookbusy1344/toyasm/analyzer"
	"github.com/lookbusy1344/toyasm/codegen"
	"github.com/lookbusy1344/toyasm/config"
	"github.com/lookbusy1344/toyasm/parser"
	"github.com/lookbusy1344/toyasm/rom"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		outFile     = flag.String("o", "", "Output ROM file (default: input file with .rom extension)")
		debugMode   = flag.Bool("debug", false, "Emit debug metadata (label names) into the ROM")
		verbose     = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("toyasm assembler %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(1)
	}

	srcFile := flag.Arg(0)
	src, err := os.ReadFile(srcFile) // #nosec G304 -- user-specified source path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", srcFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if !*debugMode {
		*debugMode = cfg.Assembler.DebugMode
	}

	lexer := parser.NewLexer(string(src), srcFile)
	tokens := lexer.TokenizeAll()
	if lexer.Errors().HasErrors() {
		fmt.Fprint(os.Stderr, lexer.Errors().Error())
		os.Exit(1)
	}

	symbols := parser.NewSymbolTable()
	pp := parser.NewPreprocessor(symbols)
	expanded := pp.Process(tokens)
	if pp.Errors().HasErrors() {
		fmt.Fprint(os.Stderr, pp.Errors().Error())
		os.Exit(1)
	}

	image, errs := codegen.Generate(expanded, symbols, *debugMode)
	if errs.HasErrors() {
		fmt.Fprint(os.Stderr, errs.Error())
		os.Exit(1)
	}

	header, err := rom.Decode(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: assembler produced an invalid header: %v\n", err)
		os.Exit(1)
	}

	report, err := analyzer.Analyze(image, header.EntryPoint, len(image), errs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(errs.Warnings) > 0 {
		fmt.Fprint(os.Stderr, errs.PrintWarnings())
	}

	if *verbose {
		fmt.Printf("Entry point: 0x%04X\n", header.EntryPoint)
		fmt.Printf("ROM size: %d bytes\n", len(image))
		fmt.Printf("Stride defined: %v, indexed addressing used: %v, BRK present: %v\n",
			report.IsStrideDefined, report.IsIndexedDefined, report.IsBreakDefined)
	}

	dst := *outFile
	if dst == "" {
		dst = romPathFor(srcFile)
	}

	if err := os.WriteFile(dst, image, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot write %s: %v\n", dst, err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Wrote %s\n", dst)
	}
}

func romPathFor(srcFile string) string {
	return strings.TrimSuffix(srcFile, filepath.Ext(srcFile)) + ".rom"
}

func printHelp() {
	fmt.Printf(`toyasm assembler %s

Usage: asm [options] <source-file>

Options:
  -help       Show this help message
  -version    Show version information
  -o FILE     Output ROM file (default: input file with .rom extension)
  -debug      Emit debug metadata (label names) into the ROM
  -verbose    Verbose output

Examples:
  asm program.s
  asm -debug -o program.rom program.s
`, Version)
}
