package vm

// wrapIndex returns (a+i) mod len(buf), the wrap-safe byte index for
// accesses that span the end of a memory array.
func wrapIndex(a uint32, i, size int) int {
	return int((a + uint32(i)) % uint32(size))
}

func readLE(buf []byte, addr uint32, width int) uint32 {
	var v uint32
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint32(buf[wrapIndex(addr, i, len(buf))])
	}
	return v
}

func writeLE(buf []byte, addr uint32, width int, value uint32) {
	for i := 0; i < width; i++ {
		buf[wrapIndex(addr, i, len(buf))] = byte(value)
		value >>= 8
	}
}

// ReadWRAM32 reads a wrap-safe little-endian u32 from WRAM.
func (s *State) ReadWRAM32(addr uint16) uint32 { return readLE(s.WRAM[:], uint32(addr), 4) }

// WriteWRAM32 writes a wrap-safe little-endian u32 to WRAM.
func (s *State) WriteWRAM32(addr uint16, value uint32) { writeLE(s.WRAM[:], uint32(addr), 4, value) }

// ReadROM16 reads a wrap-safe little-endian u16 from ROM.
func (s *State) ReadROM16(addr uint16) uint16 { return uint16(readLE(s.ROM[:], uint32(addr), 2)) }

// ReadROM32 reads a wrap-safe little-endian u32 from ROM.
func (s *State) ReadROM32(addr uint16) uint32 { return readLE(s.ROM[:], uint32(addr), 4) }

// ReadWRAMByte reads a single byte from WRAM at addr, wrap-safe (a 1-byte
// access never actually wraps, but goes through the same path as every
// other accessor for consistency).
func (s *State) ReadWRAMByte(addr uint16) byte {
	return s.WRAM[wrapIndex(uint32(addr), 0, wramSize)]
}

// WriteWRAMByte writes a single byte to WRAM at addr.
func (s *State) WriteWRAMByte(addr uint16, b byte) {
	s.WRAM[wrapIndex(uint32(addr), 0, wramSize)] = b
}
