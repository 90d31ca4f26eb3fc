package vm

import (
	"fmt"

	"github.com/lookbusy1344/toyasm/rom"
)

// doSyscall dispatches on the low byte of A, with X and Y as arguments.
// Every failure here is fatal: this language has no error-recovery
// syscall variant.
func (s *State) doSyscall() error {
	code := rom.Syscall(byte(s.A))
	switch code {
	case rom.SyscallPrintROMString:
		return s.printCString(s.ROM[:], uint32(s.X))
	case rom.SyscallPrintWRAMString:
		return s.printCString(s.WRAM[:], uint32(s.X))
	case rom.SyscallPrintNewlines:
		for i := uint32(0); i < s.X; i++ {
			fmt.Fprint(s.Out, "\n")
		}
	case rom.SyscallPrintChar:
		ch := byte(s.X)
		if ch < 0x20 || ch > 0x7E {
			ch = '?'
		}
		fmt.Fprintf(s.Out, "%c", ch)
	case rom.SyscallPrintDecimal:
		fmt.Fprintf(s.Out, "%d", int32(s.X))
	case rom.SyscallPrintHex:
		fmt.Fprintf(s.Out, "%08X", s.X)
	default:
		return &Fault{Kind: ErrBadSyscall, Message: fmt.Sprintf("unknown syscall code 0x%02X", byte(s.A))}
	}
	return nil
}

// printCString writes bytes from buf starting at addr up to (excluding) a
// NUL terminator, wrap-safe. It fails if no terminator is found anywhere
// in the containing 65536-byte region.
func (s *State) printCString(buf []byte, addr uint32) error {
	for i := 0; i < len(buf); i++ {
		b := buf[wrapIndex(addr, i, len(buf))]
		if b == 0 {
			return nil
		}
		if _, err := s.Out.Write([]byte{b}); err != nil {
			return err
		}
	}
	return &Fault{Kind: ErrBadSyscall, Message: "string syscall found no NUL terminator"}
}
