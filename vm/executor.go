package vm

import (
	"context"

	"github.com/lookbusy1344/toyasm/rom"
)

// Run executes instructions until the machine halts or ctx is done. ctx is
// checked once per dispatched instruction and never awaited
// mid-instruction.
func (s *State) Run(ctx context.Context) error {
	for !s.Halted {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step decodes and executes the single instruction at PC. It returns a
// *Fault on any runtime error; the fault also halts the machine.
func (s *State) Step() error {
	op, err := s.fetchOpcode()
	if err != nil {
		s.halt(HaltFault, err.(*Fault).Message)
		return err
	}

	length, _ := rom.InstructionLength(op)
	advance := true

	switch op {
	case rom.PANIC:
		f := &Fault{Kind: ErrPanicByte, Message: "executed null byte"}
		s.halt(HaltFault, f.Message)
		return f

	case rom.SYSTEMCALL:
		if err := s.doSyscall(); err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}

	case rom.STRIDE_LIT:
		s.IndexByteStride = s.ROM[s.PC+1]

	case rom.BRK:
		s.halt(HaltBreak, "")

	case rom.NOP:
		// no effect

	case rom.CLC:
		s.Flags.C = false
	case rom.SEC:
		s.Flags.C = true

	case rom.LDA_LIT:
		s.A = s.ReadROM32(s.PC + 1)
		s.Flags.Z = s.A == 0
	case rom.LDX_LIT:
		s.X = s.ReadROM32(s.PC + 1)
		s.Flags.Z = s.X == 0
	case rom.LDY_LIT:
		s.Y = s.ReadROM32(s.PC + 1)
		s.Flags.Z = s.Y == 0

	case rom.LDA_ADDR:
		addr := s.ReadROM16(s.PC + 1)
		s.A = s.ReadWRAM32(addr)
		s.Flags.Z = s.A == 0
	case rom.LDX_ADDR:
		addr := s.ReadROM16(s.PC + 1)
		s.X = s.ReadWRAM32(addr)
		s.Flags.Z = s.X == 0
	case rom.LDY_ADDR:
		addr := s.ReadROM16(s.PC + 1)
		s.Y = s.ReadWRAM32(addr)
		s.Flags.Z = s.Y == 0

	case rom.LDA_X:
		s.A = s.X
		s.Flags.Z = s.X == 0
	case rom.LDA_Y:
		s.A = s.Y
		s.Flags.Z = s.Y == 0
	case rom.LDX_A:
		s.X = s.A
		s.Flags.Z = s.A == 0
	case rom.LDX_Y:
		// X <- Y; see DESIGN.md open-question resolution.
		s.X = s.Y
		s.Flags.Z = s.Y == 0
	case rom.LDY_A:
		s.Y = s.A
		s.Flags.Z = s.A == 0
	case rom.LDY_X:
		s.Y = s.X
		s.Flags.Z = s.X == 0

	case rom.LDA_ADDR_X:
		addr := s.indexedAddress(s.PC+1, s.X)
		s.A = s.ReadWRAM32(addr)
		s.Flags.Z = s.A == 0
	case rom.LDA_ADDR_Y:
		addr := s.indexedAddress(s.PC+1, s.Y)
		s.A = s.ReadWRAM32(addr)
		s.Flags.Z = s.A == 0

	case rom.LEA_ADDR:
		s.A = uint32(s.ReadROM16(s.PC + 1))
	case rom.LEX_ADDR:
		s.X = uint32(s.ReadROM16(s.PC + 1))
	case rom.LEY_ADDR:
		s.Y = uint32(s.ReadROM16(s.PC + 1))

	case rom.STA_ADDR:
		s.WriteWRAM32(s.ReadROM16(s.PC+1), s.A)
	case rom.STX_ADDR:
		s.WriteWRAM32(s.ReadROM16(s.PC+1), s.X)
	case rom.STY_ADDR:
		s.WriteWRAM32(s.ReadROM16(s.PC+1), s.Y)

	case rom.JMP_ADDR:
		s.PC = s.ReadROM16(s.PC + 1)
		advance = false
	case rom.JSR_ADDR:
		target := s.ReadROM16(s.PC + 1)
		if err := s.push16(s.PC + 3); err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
		s.PC = target
		advance = false

	case rom.RET:
		addr, err := s.pop16()
		if err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
		s.PC = addr
		advance = false

	case rom.CMP_A_X:
		s.Flags = compare(s.A, s.X)
	case rom.CMP_A_Y:
		s.Flags = compare(s.A, s.Y)
	case rom.CMP_A_LIT:
		s.Flags = compare(s.A, s.ReadROM32(s.PC+1))
	case rom.CMP_A_ADDR:
		s.Flags = compare(s.A, s.ReadWRAM32(s.ReadROM16(s.PC+1)))
	case rom.CMP_X_A:
		s.Flags = compare(s.X, s.A)
	case rom.CMP_X_Y:
		s.Flags = compare(s.X, s.Y)
	case rom.CMP_X_LIT:
		s.Flags = compare(s.X, s.ReadROM32(s.PC+1))
	case rom.CMP_X_ADDR:
		s.Flags = compare(s.X, s.ReadWRAM32(s.ReadROM16(s.PC+1)))
	case rom.CMP_Y_A:
		s.Flags = compare(s.Y, s.A)
	case rom.CMP_Y_X:
		s.Flags = compare(s.Y, s.X)
	case rom.CMP_Y_LIT:
		s.Flags = compare(s.Y, s.ReadROM32(s.PC+1))
	case rom.CMP_Y_ADDR:
		s.Flags = compare(s.Y, s.ReadWRAM32(s.ReadROM16(s.PC+1)))

	case rom.BCS_ADDR:
		advance = !s.branchIf(s.Flags.C)
	case rom.BCC_ADDR:
		advance = !s.branchIf(!s.Flags.C)
	case rom.BEQ_ADDR:
		advance = !s.branchIf(s.Flags.Z)
	case rom.BNE_ADDR:
		advance = !s.branchIf(!s.Flags.Z)
	case rom.BMI_ADDR:
		advance = !s.branchIf(s.Flags.N)
	case rom.BPL_ADDR:
		advance = !s.branchIf(!s.Flags.N)
	case rom.BVS_ADDR:
		advance = !s.branchIf(s.Flags.V)
	case rom.BVC_ADDR:
		advance = !s.branchIf(!s.Flags.V)

	case rom.ADD_LIT:
		s.A, s.Flags = addWithCarry(s.A, s.ReadROM32(s.PC+1), s.Flags.C)
	case rom.ADD_ADDR:
		s.A, s.Flags = addWithCarry(s.A, s.ReadWRAM32(s.ReadROM16(s.PC+1)), s.Flags.C)
	case rom.ADD_X:
		s.A, s.Flags = addWithCarry(s.A, s.X, s.Flags.C)
	case rom.ADD_Y:
		s.A, s.Flags = addWithCarry(s.A, s.Y, s.Flags.C)

	case rom.SUB_LIT:
		s.A, s.Flags = subWithBorrow(s.A, s.ReadROM32(s.PC+1), s.Flags.C)
	case rom.SUB_ADDR:
		s.A, s.Flags = subWithBorrow(s.A, s.ReadWRAM32(s.ReadROM16(s.PC+1)), s.Flags.C)
	case rom.SUB_X:
		s.A, s.Flags = subWithBorrow(s.A, s.X, s.Flags.C)
	case rom.SUB_Y:
		s.A, s.Flags = subWithBorrow(s.A, s.Y, s.Flags.C)

	case rom.INC_A:
		s.A, s.Flags = addWithCarry(s.A, 1, false)
	case rom.INC_X:
		s.X, s.Flags = addWithCarry(s.X, 1, false)
	case rom.INC_Y:
		s.Y, s.Flags = addWithCarry(s.Y, 1, false)
	case rom.INC_ADDR:
		addr := s.ReadROM16(s.PC + 1)
		v, f := addWithCarry(s.ReadWRAM32(addr), 1, false)
		s.WriteWRAM32(addr, v)
		s.Flags = f

	case rom.DEC_A:
		// DEC_A is a 1-byte instruction; see DESIGN.md open-question
		// resolution.
		s.A, s.Flags = subWithBorrow(s.A, 1, true)
	case rom.DEC_X:
		s.X, s.Flags = subWithBorrow(s.X, 1, true)
	case rom.DEC_Y:
		s.Y, s.Flags = subWithBorrow(s.Y, 1, true)
	case rom.DEC_ADDR:
		addr := s.ReadROM16(s.PC + 1)
		v, f := subWithBorrow(s.ReadWRAM32(addr), 1, true)
		s.WriteWRAM32(addr, v)
		s.Flags = f

	case rom.PUSH_A:
		if err := s.push32(s.A); err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
	case rom.PUSH_X:
		if err := s.push32(s.X); err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
	case rom.PUSH_Y:
		if err := s.push32(s.Y); err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}

	case rom.POP_A:
		v, err := s.pop32()
		if err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
		s.A = v
	case rom.POP_X:
		v, err := s.pop32()
		if err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
		s.X = v
	case rom.POP_Y:
		v, err := s.pop32()
		if err != nil {
			s.halt(HaltFault, err.(*Fault).Message)
			return err
		}
		s.Y = v

	case rom.DEBUG_METADATA_SIGNAL:
		s.PC = s.skipDebugMetadata(s.PC)
		advance = false

	default:
		f := &Fault{Kind: ErrPanicByte, Message: "unimplemented opcode"}
		s.halt(HaltFault, f.Message)
		return f
	}

	if advance {
		s.PC += uint16(length)
	}
	return nil
}

func (s *State) branchIf(taken bool) bool {
	if !taken {
		return false
	}
	s.PC = s.ReadROM16(s.PC + 1)
	return true
}

// indexedAddress computes base +% (index *% stride), the
// LDA_ADDR_X/LDA_ADDR_Y effective-address rule. Both additions wrap in
// 16 bits.
func (s *State) indexedAddress(baseAddrPos uint16, index uint32) uint16 {
	base := s.ReadROM16(baseAddrPos)
	return base + uint16(index)*uint16(s.IndexByteStride)
}

// skipDebugMetadata scans forward from a DEBUG_METADATA_SIGNAL byte at pc
// to the matching closing signal byte and returns the PC just past it.
func (s *State) skipDebugMetadata(pc uint16) uint16 {
	p := pc + 2 // skip signal byte + metadata-type byte
	for int(p) < s.OriginalROMFilesize && s.ROM[p] != byte(rom.DEBUG_METADATA_SIGNAL) {
		p++
	}
	if int(p) < s.OriginalROMFilesize {
		p++ // consume closing signal byte
	}
	return p
}

func (s *State) halt(kind HaltKind, msg string) {
	s.Halted = true
	s.HaltKind = kind
	s.HaltMsg = msg
}
