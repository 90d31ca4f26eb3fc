// Package analyzer walks a finished ROM image looking for static
// hazards: use of indexed addressing without ever setting a stride, and
// programs with no voluntary halt.
package analyzer

import (
	"fmt"

	"github.com/lookbusy1344/toyasm/parser"
	"github.com/lookbusy1344/toyasm/rom"
)

// Report summarizes one analysis pass over a ROM image.
type Report struct {
	IsStrideDefined  bool
	IsIndexedDefined bool
	IsBreakDefined   bool
}

// Analyze walks image from entryPoint to originalLength, the length of the
// assembler's own input before any padding, stepping by each opcode's
// instruction width and skipping debug-metadata spans. It returns a hard
// error if the image is itself too large to be a valid ROM, and otherwise
// a populated Report plus any warnings appended to errs.
func Analyze(image []byte, entryPoint uint16, originalLength int, errs *parser.ErrorList) (Report, error) {
	if len(image) >= 65536 {
		err := parser.NewError(parser.Position{}, parser.ErrRomTooLarge,
			fmt.Sprintf("ROM image is %d bytes, must be under 65536", len(image)))
		errs.AddError(err)
		return Report{}, err
	}

	var report Report
	pc := int(entryPoint)
	for pc < originalLength && pc < len(image) {
		op := rom.Opcode(image[pc])

		if op == rom.DEBUG_METADATA_SIGNAL {
			pc = skipMetadata(image, pc)
			continue
		}

		switch op {
		case rom.STRIDE_LIT:
			report.IsStrideDefined = true
		case rom.LDA_ADDR_X, rom.LDA_ADDR_Y:
			report.IsIndexedDefined = true
		case rom.BRK:
			report.IsBreakDefined = true
		}

		width, ok := rom.InstructionLength(op)
		if !ok {
			width = 1
		}
		pc += width
	}

	if report.IsIndexedDefined && !report.IsStrideDefined {
		errs.AddWarning(&parser.Warning{Message: "indexed addressing is used but no stride was ever set"})
	}
	if !report.IsBreakDefined {
		errs.AddWarning(&parser.Warning{Message: "program contains no BRK and will never halt voluntarily"})
	}
	return report, nil
}

// skipMetadata mirrors vm.State.skipDebugMetadata: it scans forward from a
// DEBUG_METADATA_SIGNAL byte at pc to the matching closing signal byte and
// returns the offset just past it.
func skipMetadata(image []byte, pc int) int {
	p := pc + 2
	for p < len(image) && rom.Opcode(image[p]) != rom.DEBUG_METADATA_SIGNAL {
		p++
	}
	if p < len(image) {
		p++
	}
	return p
}
