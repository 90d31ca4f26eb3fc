package vm

import (
	"testing"

	"github.com/lookbusy1344/toyasm/rom"
)

func TestStackRoundTripMixedWidths(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.BRK)))
	initialSP := s.SP

	pushes := []struct {
		width int
		value uint64
	}{
		{2, 0xF001},
		{2, 0xF002},
		{2, 0xF003},
		{2, 0xF004},
		{8, 0x0011223344556677},
		{2, 0xF005},
	}
	for _, p := range pushes {
		if err := s.pushN(p.width, p.value); err != nil {
			t.Fatalf("pushN(%d, 0x%X) error: %v", p.width, p.value, err)
		}
	}

	wantPops := []struct {
		width int
		value uint64
	}{
		{2, 0xF005},
		{8, 0x0011223344556677},
		{2, 0xF004},
		{2, 0xF003},
		{2, 0xF002},
		{2, 0xF001},
	}
	for _, p := range wantPops {
		got, err := s.popN(p.width)
		if err != nil {
			t.Fatalf("popN(%d) error: %v", p.width, err)
		}
		if got != p.value {
			t.Errorf("popN(%d) = 0x%X, want 0x%X", p.width, got, p.value)
		}
	}

	if s.SP != initialSP {
		t.Errorf("SP = %d after full drain, want initial %d", s.SP, initialSP)
	}
}

func TestStackOverflow(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.BRK)))

	// Pushing is refused once SP would drop below the value's width, so a
	// 1024-byte stack accepts 255 u32 pushes and rejects the 256th.
	for i := 0; i < stackSize/4-1; i++ {
		if err := s.push32(uint32(i)); err != nil {
			t.Fatalf("push %d error: %v", i, err)
		}
	}
	err := s.push32(0xDEAD)
	if err == nil {
		t.Fatal("expected StackOverflow")
	}
	if f := err.(*Fault); f.Kind != ErrStackOverflow {
		t.Errorf("fault kind = %s, want StackOverflow", f.Kind)
	}
}

func TestStackUnderflow(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.BRK)))

	_, err := s.pop32()
	if err == nil {
		t.Fatal("expected StackUnderflow")
	}
	if f := err.(*Fault); f.Kind != ErrStackUnderflow {
		t.Errorf("fault kind = %s, want StackUnderflow", f.Kind)
	}
}

func TestStackPartialUnderflow(t *testing.T) {
	s, _ := newMachine(t, program(byte(rom.BRK)))

	if err := s.push16(0x1234); err != nil {
		t.Fatalf("push16 error: %v", err)
	}
	if _, err := s.pop32(); err == nil {
		t.Fatal("popping 4 bytes with only 2 on the stack must underflow")
	}
}
