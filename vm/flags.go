package vm

// addWithCarry computes a + b + c_in with u32 wraparound, returning the
// result and the four condition flags.
func addWithCarry(a, b uint32, cIn bool) (uint32, Flags) {
	carry := uint64(0)
	if cIn {
		carry = 1
	}
	wide := uint64(a) + uint64(b) + carry
	result := uint32(wide)

	var f Flags
	f.C = wide > 0xFFFFFFFF
	aSign := a>>31 == 1
	bSign := b>>31 == 1
	rSign := result>>31 == 1
	f.V = aSign == bSign && rSign != aSign
	f.N = rSign
	f.Z = result == 0
	return result, f
}

// subWithBorrow computes a - (b + (1 - c_in)) with u32 wraparound.
func subWithBorrow(a, b uint32, cIn bool) (uint32, Flags) {
	borrow := uint32(1)
	if cIn {
		borrow = 0
	}
	subtrahend := b + borrow
	result := a - subtrahend

	var f Flags
	f.C = uint64(a) < uint64(subtrahend)
	negB := -int32(b)
	aSign := a>>31 == 1
	bSign := uint32(negB)>>31 == 1
	rSign := result>>31 == 1
	f.V = aSign == bSign && rSign != aSign
	f.N = rSign
	f.Z = result == 0
	return result, f
}

// compare is equivalent to subWithBorrow(a, b, true) with the result
// discarded; only the flags are returned.
func compare(a, b uint32) Flags {
	_, f := subWithBorrow(a, b, true)
	return f
}
