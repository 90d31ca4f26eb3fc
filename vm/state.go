// Package vm implements the register/stack virtual machine described by
// the instruction set in the rom package: three isolated 64KB-class
// address spaces, a small register file, and a synchronous fetch/decode/
// dispatch loop.
package vm

import "github.com/lookbusy1344/toyasm/rom"

const (
	romSize   = 65536
	wramSize  = 65536
	stackSize = 1024
)

// Flags holds the four condition flags updated by arithmetic and compare
// instructions.
type Flags struct {
	C bool
	Z bool
	N bool
	V bool
}

// State is the complete machine state. The three memory arrays and the
// register file are embedded by value; nothing here is heap-allocated
// beyond the State itself.
type State struct {
	ROM   [romSize]byte
	WRAM  [wramSize]byte
	Stack [stackSize]byte

	A, X, Y uint32
	PC      uint16
	SP      uint16

	// EntryPoint and StackTop record the values PC and SP were loaded
	// with, so Reset can restore them without needing the original ROM
	// bytes again.
	EntryPoint uint16
	StackTop   uint16

	Flags Flags

	IndexByteStride uint8

	// OriginalROMFilesize bounds PC: execution past the original input
	// size, even within the allocated ROM array, is out of bounds.
	OriginalROMFilesize int

	Halted   bool
	HaltKind HaltKind
	HaltMsg  string

	// Out receives every byte written by a print syscall. Tests supply a
	// bytes.Buffer; cmd/vm wires it to os.Stdout.
	Out Writer
}

// Writer is the minimal sink the syscall layer writes observable output
// to. io.Writer satisfies it; it is declared locally so this package does
// not need to import io just for this one method set.
type Writer interface {
	Write(p []byte) (n int, err error)
}

// HaltKind classifies why the machine stopped.
type HaltKind int

const (
	HaltNone HaltKind = iota
	HaltBreak
	HaltFault
)

// New creates a State with the given ROM image loaded at offset 0, PC set
// from the header's entry point, and SP at the top of the stack.
func New(image []byte, entryPoint uint16, out Writer) (*State, error) {
	if len(image) > romSize {
		return nil, &Fault{Kind: ErrRomFileTooBig, Message: "rom image exceeds 65536 bytes"}
	}
	s := &State{
		PC:                  entryPoint,
		SP:                  stackSize - 1,
		EntryPoint:          entryPoint,
		StackTop:            stackSize - 1,
		OriginalROMFilesize: len(image),
		Out:                 out,
	}
	copy(s.ROM[:], image)
	return s, nil
}

// Reset restores registers, flags, and WRAM/stack to their initial state
// without reloading the ROM image, so a debugger can restart execution of
// the same program. Only the two scratch regions are cleared; ROM is never
// mutated at runtime so it is untouched.
func (s *State) Reset() {
	s.A, s.X, s.Y = 0, 0, 0
	s.PC = s.EntryPoint
	s.SP = s.StackTop
	s.Flags = Flags{}
	s.IndexByteStride = 0
	s.Halted = false
	s.HaltKind = HaltNone
	s.HaltMsg = ""
	for i := range s.WRAM {
		s.WRAM[i] = 0
	}
	for i := range s.Stack {
		s.Stack[i] = 0
	}
}

// Fill overwrites every register and memory region with b. It exists only
// for deterministic test harnesses; release code never calls it.
func (s *State) Fill(b byte) {
	for i := range s.ROM {
		s.ROM[i] = b
	}
	for i := range s.WRAM {
		s.WRAM[i] = b
	}
	for i := range s.Stack {
		s.Stack[i] = b
	}
	word := uint32(b) | uint32(b)<<8 | uint32(b)<<16 | uint32(b)<<24
	s.A, s.X, s.Y = word, word, word
}

// fetchOpcode reads the opcode byte at the current PC.
func (s *State) fetchOpcode() (rom.Opcode, error) {
	if int(s.PC) >= s.OriginalROMFilesize {
		return 0, &Fault{Kind: ErrPCOutOfBounds, Message: "PC out of bounds"}
	}
	op, ok := rom.Valid(s.ROM[s.PC])
	if !ok {
		return 0, &Fault{Kind: ErrPanicByte, Message: "executed unknown opcode byte"}
	}
	return op, nil
}
