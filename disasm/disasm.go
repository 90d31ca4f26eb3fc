// Package disasm renders a ROM image back into readable instruction
// text. The debugger needs to describe ROM contents to a human, and a
// table walk that decodes one instruction serves both its disassembly
// pane and its recovery of label names from debug metadata.
package disasm

import (
	"fmt"
	"strings"

	"github.com/lookbusy1344/toyasm/rom"
)

// Line is one decoded instruction or debug-metadata comment.
type Line struct {
	Addr uint16
	Text string
	Raw  []byte
}

// DecodeAll walks image from start to end (exclusive), producing one Line
// per instruction or debug-metadata span.
func DecodeAll(image []byte, start, end uint16) []Line {
	var lines []Line
	pc := start
	for pc < end {
		text, width := Decode(image, pc)
		w := uint16(width)
		hi := int(pc) + width
		if hi > len(image) {
			hi = len(image)
		}
		lines = append(lines, Line{Addr: pc, Text: text, Raw: image[pc:hi]})
		if w == 0 {
			break
		}
		pc += w
	}
	return lines
}

// Decode renders the single instruction or debug-metadata span at pc,
// returning its text and total width in bytes.
func Decode(image []byte, pc uint16) (string, int) {
	if int(pc) >= len(image) {
		return "<out of bounds>", 0
	}
	op := rom.Opcode(image[pc])

	if op == rom.DEBUG_METADATA_SIGNAL {
		return decodeMetadata(image, pc)
	}

	width, ok := rom.InstructionLength(op)
	if !ok {
		return fmt.Sprintf("; unknown opcode 0x%02X", image[pc]), 1
	}

	operandBytes := image[minInt(int(pc)+1, len(image)):minInt(int(pc)+width, len(image))]
	return fmt.Sprintf("%-12s %s", op.String(), formatOperand(op, operandBytes)), width
}

func decodeMetadata(image []byte, pc uint16) (string, int) {
	p := int(pc) + 2
	for p < len(image) && rom.Opcode(image[p]) != rom.DEBUG_METADATA_SIGNAL {
		p++
	}
	var name string
	if int(pc)+2 <= len(image) && p <= len(image) {
		name = string(image[int(pc)+2 : minInt(p, len(image))])
	}
	if p < len(image) {
		p++
	}
	return fmt.Sprintf("; label %q", name), p - int(pc)
}

func formatOperand(op rom.Opcode, b []byte) string {
	switch len(b) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("0x%02X", b[0])
	case 2:
		return fmt.Sprintf("$0x%04X", uint16(b[0])|uint16(b[1])<<8)
	case 4:
		v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return fmt.Sprintf("0x%08X", v)
	default:
		parts := make([]string, len(b))
		for i, x := range b {
			parts[i] = fmt.Sprintf("%02X", x)
		}
		return strings.Join(parts, " ")
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
