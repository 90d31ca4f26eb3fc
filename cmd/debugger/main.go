// Command debugger runs the interactive toyasm debugger, in either CLI or
// TUI mode, over a ROM image assembled with debug metadata.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lookbusy1344/toyasm/debugger"
	"github.com/lookbusy1344/toyasm/disasm"
	"github.com/lookbusy1344/toyasm/rom"
	"github.com/lookbusy1344/toyasm/vm"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		tuiMode     = flag.Bool("tui", false, "Use TUI (Text User Interface) debugger")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("toyasm debugger %s\n", Version)
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

	romFile := flag.Arg(0)
	image, err := os.ReadFile(romFile) // #nosec G304 -- user-specified rom path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", romFile, err)
		os.Exit(1)
	}

	header, err := rom.Decode(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	machine, err := vm.New(image, header.EntryPoint, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dbg := debugger.NewDebugger(machine)
	dbg.LoadSymbols(symbolsFromMetadata(image, header.EntryPoint))

	if *tuiMode {
		if err := debugger.RunTUI(dbg); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("toyasm Debugger - Type 'help' for commands")
	fmt.Printf("ROM loaded: %s\n", romFile)
	fmt.Println()

	if err := debugger.RunCLI(dbg); err != nil {
		fmt.Fprintf(os.Stderr, "Debugger error: %v\n", err)
		os.Exit(1)
	}
}

// symbolsFromMetadata recovers a name->address map from LABEL_NAME debug
// metadata spans, the only symbol information a ROM image carries once
// assembled. Images built without -debug at asm time yield an empty map.
func symbolsFromMetadata(image []byte, entryPoint uint16) map[string]uint32 {
	symbols := make(map[string]uint32)
	for _, l := range disasm.DecodeAll(image, entryPoint, uint16(len(image))) {
		var name string
		if _, err := fmt.Sscanf(l.Text, "; label %q", &name); err != nil || name == "" {
			continue
		}
		symbols[name] = uint32(l.Addr)
	}
	return symbols
}

func printHelp() {
	fmt.Printf(`toyasm debugger %s

Usage: debugger [options] <rom-file>

Options:
  -help       Show this help message
  -version    Show version information
  -tui        Use TUI (Text User Interface) debugger instead of the CLI

Debugger Commands (CLI mode):
  run, r             Start/restart program execution
  continue, c        Continue execution
  step, s            Execute single instruction
  next, n            Step over JSR calls
  break ADDR         Set breakpoint at address/label
  info registers     Show all registers
  print EXPR         Evaluate and print expression
  help               Show debugger help

Examples:
  debugger program.rom
  debugger -tui program.rom
`, Version)
}
