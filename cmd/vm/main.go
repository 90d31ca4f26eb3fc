// Command vm runs a toyasm ROM image to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lookbusy1344/toyasm/config"
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
		maxCycles   = flag.Uint64("max-cycles", 0, "Maximum cycles before a forced halt (0 = use config default)")
		verbose     = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("toyasm vm %s\n", Version)
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

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	cycleLimit := *maxCycles
	if cycleLimit == 0 {
		cycleLimit = cfg.VM.MaxCycles
	}

	machine, err := vm.New(image, header.EntryPoint, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Entry point: 0x%04X\n", header.EntryPoint)
		fmt.Fprintf(os.Stderr, "Debug mode: %v\n", header.DebugMode)
		fmt.Fprintf(os.Stderr, "Cycle limit: %d\n", cycleLimit)
	}

	if cycleLimit == 0 {
		if err := machine.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Runtime error at PC=0x%04X: %v\n", machine.PC, err)
			os.Exit(1)
		}
	} else {
		var cycles uint64
		for !machine.Halted && cycles < cycleLimit {
			if err := machine.Step(); err != nil {
				fmt.Fprintf(os.Stderr, "Runtime error at PC=0x%04X: %v\n", machine.PC, err)
				os.Exit(1)
			}
			cycles++
		}
		if !machine.Halted {
			fmt.Fprintf(os.Stderr, "Cycle limit of %d reached without halting\n", cycleLimit)
			os.Exit(1)
		}
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Halted: %v (PC=0x%04X)\n", machine.HaltKind, machine.PC)
	}
}

func printHelp() {
	fmt.Printf(`toyasm vm %s

Usage: vm [options] <rom-file>

Options:
  -help          Show this help message
  -version       Show version information
  -max-cycles N  Maximum cycles before a forced halt (0 = use config default)
  -verbose       Verbose output (to stderr; program output stays on stdout)

Examples:
  vm program.rom
  vm -max-cycles 500000 program.rom
`, Version)
}
