package vm

import (
	"context"
	"testing"

	"github.com/lookbusy1344/toyasm/rom"
)

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
func cat(bs ...[]byte) (out []byte) {
	for _, b := range bs {
		out = append(out, b...)
	}
	return out
}

func TestStep_LoadsAndMoves(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.LDA_LIT)}, le32(0x12345678),
		[]byte{byte(rom.LDX_A)},
		[]byte{byte(rom.LDY_X)},
		[]byte{byte(rom.BRK)},
	)...))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.A != 0x12345678 || s.X != 0x12345678 || s.Y != 0x12345678 {
		t.Errorf("registers = %08X %08X %08X, want all 0x12345678", s.A, s.X, s.Y)
	}
	if s.HaltKind != HaltBreak {
		t.Errorf("halt kind = %v, want HaltBreak", s.HaltKind)
	}
}

func TestStep_LDXYTransferIsXFromY(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.LDX_Y), byte(rom.BRK)))
	s.Y = 99
	s.X = 1

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.X != 99 || s.Y != 99 {
		t.Errorf("X=%d Y=%d after LDX_Y, want both 99", s.X, s.Y)
	}
}

func TestStep_LoadSetsZeroFlag(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.LDA_LIT)}, le32(0),
		[]byte{byte(rom.BRK)},
	)...))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !s.Flags.Z {
		t.Error("Z flag must be set after loading zero")
	}
}

func TestStep_StoreAndLoadWRAM(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.LDA_LIT)}, le32(0xCAFEBABE),
		[]byte{byte(rom.STA_ADDR)}, le16(0x0200),
		[]byte{byte(rom.LDX_ADDR)}, le16(0x0200),
		[]byte{byte(rom.BRK)},
	)...))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.X != 0xCAFEBABE {
		t.Errorf("X = 0x%08X, want 0xCAFEBABE", s.X)
	}
}

func TestStep_LEALoadsTheAddressItself(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.LEA_ADDR)}, le16(0x1337),
		[]byte{byte(rom.BRK)},
	)...))
	s.WRAM[0x1337] = 0xEE

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.A != 0x1337 {
		t.Errorf("A = 0x%08X, want the literal 0x1337, not memory contents", s.A)
	}
}

func TestStep_IndexedLoadUsesStride(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.STRIDE_LIT), 0x04},
		[]byte{byte(rom.LDA_ADDR_Y)}, le16(0x0100),
		[]byte{byte(rom.BRK)},
	)...))
	s.Y = 3
	s.WriteWRAM32(0x010C, 0x11223344)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.IndexByteStride != 4 {
		t.Errorf("stride = %d, want 4", s.IndexByteStride)
	}
	if s.A != 0x11223344 {
		t.Errorf("A = 0x%08X, want 0x11223344 from 0x0100 + 3*4", s.A)
	}
}

func TestStep_JSRAndRETRoundTrip(t *testing.T) {
	// JSR at the entry point; the subroutine is one RET. After RET, PC
	// must be the JSR's own address plus 3.
	jsrPC := rom.DefaultEntryPoint
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.JSR_ADDR)}, le16(0x0014),
		[]byte{byte(rom.BRK)},
		[]byte{byte(rom.RET)},
	)...))
	initialSP := s.SP

	if err := s.Step(); err != nil { // JSR
		t.Fatalf("JSR error: %v", err)
	}
	if s.PC != 0x0014 {
		t.Fatalf("PC = 0x%04X after JSR, want 0x0014", s.PC)
	}
	if err := s.Step(); err != nil { // RET
		t.Fatalf("RET error: %v", err)
	}
	if want := jsrPC + 3; s.PC != want {
		t.Errorf("PC = 0x%04X after RET, want 0x%04X", s.PC, want)
	}
	if s.SP != initialSP {
		t.Errorf("SP = %d after RET, want initial %d", s.SP, initialSP)
	}
}

func TestStep_RETOnEmptyStackFaults(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.RET)))

	err := s.Step()
	if err == nil {
		t.Fatal("expected StackUnderflow")
	}
	if f := err.(*Fault); f.Kind != ErrStackUnderflow {
		t.Errorf("fault kind = %s, want StackUnderflow", f.Kind)
	}
	if !s.Halted || s.HaltKind != HaltFault {
		t.Error("fault must halt the machine")
	}
}

func TestStep_PushPopPreservesValueAndSP(t *testing.T) {
	s, _ := newMachine(t, program(
		byte(rom.PUSH_A),
		byte(rom.POP_X),
		byte(rom.BRK),
	))
	s.A = 0xDEADBEEF
	initialSP := s.SP

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.X != 0xDEADBEEF {
		t.Errorf("X = 0x%08X, want the pushed 0xDEADBEEF", s.X)
	}
	if s.SP != initialSP {
		t.Errorf("SP = %d, want initial %d", s.SP, initialSP)
	}
}

func TestStep_BranchesFollowFlags(t *testing.T) {
	tests := []struct {
		name  string
		op    rom.Opcode
		flags Flags
		taken bool
	}{
		{"BCS taken", rom.BCS_ADDR, Flags{C: true}, true},
		{"BCS not taken", rom.BCS_ADDR, Flags{}, false},
		{"BCC taken", rom.BCC_ADDR, Flags{}, true},
		{"BEQ taken", rom.BEQ_ADDR, Flags{Z: true}, true},
		{"BNE taken", rom.BNE_ADDR, Flags{}, true},
		{"BNE not taken", rom.BNE_ADDR, Flags{Z: true}, false},
		{"BMI taken", rom.BMI_ADDR, Flags{N: true}, true},
		{"BPL taken", rom.BPL_ADDR, Flags{}, true},
		{"BVS taken", rom.BVS_ADDR, Flags{V: true}, true},
		{"BVC not taken", rom.BVC_ADDR, Flags{V: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newMachine(t, program(cat(
				[]byte{byte(tt.op)}, le16(0x0030),
				[]byte{byte(rom.BRK)},
			)...))
			s.Flags = tt.flags

			if err := s.Step(); err != nil {
				t.Fatalf("Step error: %v", err)
			}
			if tt.taken && s.PC != 0x0030 {
				t.Errorf("PC = 0x%04X, want branch target 0x0030", s.PC)
			}
			if !tt.taken && s.PC != rom.DefaultEntryPoint+3 {
				t.Errorf("PC = 0x%04X, want fall-through 0x%04X", s.PC, rom.DefaultEntryPoint+3)
			}
		})
	}
}

func TestStep_ArithmeticUsesCarryFlag(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.SEC)},
		[]byte{byte(rom.ADD_LIT)}, le32(10),
		[]byte{byte(rom.BRK)},
	)...))
	s.A = 5

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.A != 16 {
		t.Errorf("A = %d, want 5 + 10 + carry = 16", s.A)
	}
}

func TestStep_IncDecIgnoreStoredCarry(t *testing.T) {
	s, _ := newMachine(t, program(
		byte(rom.SEC),
		byte(rom.INC_A),
		byte(rom.DEC_X),
		byte(rom.BRK),
	))
	s.A = 7
	s.X = 7

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.A != 8 {
		t.Errorf("A = %d after INC with C set, want 8", s.A)
	}
	if s.X != 6 {
		t.Errorf("X = %d after DEC with C set, want 6", s.X)
	}
}

func TestStep_IncDecAddr(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.INC_ADDR)}, le16(0x0040),
		[]byte{byte(rom.DEC_ADDR)}, le16(0x0044),
		[]byte{byte(rom.BRK)},
	)...))
	s.WriteWRAM32(0x0040, 41)
	s.WriteWRAM32(0x0044, 43)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := s.ReadWRAM32(0x0040); got != 42 {
		t.Errorf("WRAM[0x40] = %d, want 42", got)
	}
	if got := s.ReadWRAM32(0x0044); got != 42 {
		t.Errorf("WRAM[0x44] = %d, want 42", got)
	}
}

func TestStep_PanicByteHalts(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.PANIC)))

	err := s.Step()
	if err == nil {
		t.Fatal("expected PanicByte")
	}
	if f := err.(*Fault); f.Kind != ErrPanicByte {
		t.Errorf("fault kind = %s, want PanicByte", f.Kind)
	}
}

func TestStep_PCOutOfBoundsHalts(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.NOP)))

	if err := s.Step(); err != nil { // NOP advances PC past the image
		t.Fatalf("NOP error: %v", err)
	}
	err := s.Step()
	if err == nil {
		t.Fatal("expected PCOutOfBounds")
	}
	if f := err.(*Fault); f.Kind != ErrPCOutOfBounds {
		t.Errorf("fault kind = %s, want PCOutOfBounds", f.Kind)
	}
}

func TestStep_DebugMetadataIsSkippedNotExecuted(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.DEBUG_METADATA_SIGNAL), rom.MetadataLabelName},
		[]byte("Loop"),
		[]byte{byte(rom.DEBUG_METADATA_SIGNAL)},
		[]byte{byte(rom.BRK)},
	)...))

	if err := s.Step(); err != nil {
		t.Fatalf("metadata skip error: %v", err)
	}
	if want := rom.DefaultEntryPoint + 7; s.PC != want {
		t.Fatalf("PC = 0x%04X after metadata, want 0x%04X", s.PC, want)
	}
	if err := s.Step(); err != nil {
		t.Fatalf("BRK error: %v", err)
	}
	if s.HaltKind != HaltBreak {
		t.Error("program must reach the BRK past the metadata span")
	}
}

func TestReset_RestoresInitialState(t *testing.T) {
	s, _ := newMachine(t, program(cat(
		[]byte{byte(rom.LDA_LIT)}, le32(0x55),
		[]byte{byte(rom.STA_ADDR)}, le16(0x0010),
		[]byte{byte(rom.PUSH_A)},
		[]byte{byte(rom.BRK)},
	)...))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	s.Reset()

	if s.A != 0 || s.PC != s.EntryPoint || s.SP != s.StackTop || s.Halted {
		t.Errorf("Reset left state dirty: A=%d PC=%04X SP=%d halted=%v", s.A, s.PC, s.SP, s.Halted)
	}
	if s.ReadWRAM32(0x0010) != 0 {
		t.Error("Reset must clear WRAM")
	}
	if s.ROM[16] != byte(rom.LDA_LIT) {
		t.Error("Reset must leave ROM intact")
	}
}
