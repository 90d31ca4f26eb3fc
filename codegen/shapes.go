package codegen

import (
	"github.com/lookbusy1344/toyasm/rom"
	"github.com/lookbusy1344/toyasm/token"
)

// A handler inspects the operand tokens following a mnemonic (the mnemonic
// token itself is not included) and emits the chosen opcode plus operand
// bytes through g. Mnemonics dispatch through a name-keyed table rather
// than one long if/else chain; each handler still does its own
// structural matching on the operand tokens,
// since the shapes are too heterogeneous (bare registers, addresses,
// label references) for a single generic pattern table to pay for itself.
type handler func(g *generator, operands []token.Token) error

var mnemonics = map[string]handler{
	"PANIC":   bareOpcode(rom.PANIC),
	"SYSCALL": bareOpcode(rom.SYSTEMCALL),
	"BRK":     bareOpcode(rom.BRK),
	"NOP":     bareOpcode(rom.NOP),
	"CLC":     bareOpcode(rom.CLC),
	"SEC":     bareOpcode(rom.SEC),
	"RET":     bareOpcode(rom.RET),

	"STRIDE": handleStride,

	"LDA": loadHandler("A"),
	"LDX": loadHandler("X"),
	"LDY": loadHandler("Y"),

	"LEA": leaHandler(rom.LEA_ADDR),
	"LEX": leaHandler(rom.LEX_ADDR),
	"LEY": leaHandler(rom.LEY_ADDR),

	"STA": staHandler(rom.STA_ADDR),
	"STX": staHandler(rom.STX_ADDR),
	"STY": staHandler(rom.STY_ADDR),

	"JMP": branchHandler(rom.JMP_ADDR),
	"JSR": jsrHandler,

	"CMP": handleCmp,

	"BCS": branchHandler(rom.BCS_ADDR),
	"BCC": branchHandler(rom.BCC_ADDR),
	"BEQ": branchHandler(rom.BEQ_ADDR),
	"BNE": branchHandler(rom.BNE_ADDR),
	"BMI": branchHandler(rom.BMI_ADDR),
	"BPL": branchHandler(rom.BPL_ADDR),
	"BVS": branchHandler(rom.BVS_ADDR),
	"BVC": branchHandler(rom.BVC_ADDR),

	"ADD": arithHandler(rom.ADD_LIT, rom.ADD_ADDR, rom.ADD_X, rom.ADD_Y),
	"SUB": arithHandler(rom.SUB_LIT, rom.SUB_ADDR, rom.SUB_X, rom.SUB_Y),

	"INC": incDecHandler(rom.INC_A, rom.INC_X, rom.INC_Y, rom.INC_ADDR),
	"DEC": incDecHandler(rom.DEC_A, rom.DEC_X, rom.DEC_Y, rom.DEC_ADDR),

	"PUSH": regOnlyHandler(rom.PUSH_A, rom.PUSH_X, rom.PUSH_Y),
	"POP":  regOnlyHandler(rom.POP_A, rom.POP_X, rom.POP_Y),
}

// isAddressClass reports whether k can stand in an address operand
// position: a direct $address, a label identifier, or a relative label
// reference. All three lower to the same 2-byte little-endian form via
// generator.emitAddressOperand.
func isAddressClass(k token.Kind) bool {
	switch k {
	case token.ADDRESS, token.IDENTIFIER, token.BACKWARD_LABEL_REF, token.FORWARD_LABEL_REF:
		return true
	default:
		return false
	}
}

func bareOpcode(op rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 0 {
			return g.errUnknownShape(operands)
		}
		g.emitByte(byte(op))
		return nil
	}
}

func handleStride(g *generator, operands []token.Token) error {
	if len(operands) != 1 || operands[0].Kind != token.LITERAL {
		return g.errUnknownShape(operands)
	}
	g.emitByte(byte(rom.STRIDE_LIT))
	g.emitByte(byte(operands[0].Value))
	return nil
}

// loadHandler builds the handler for LDA/LDX/LDY, whose shapes are the
// richest in the instruction set: a 4-byte literal, a 2-byte address, an
// indexed address (A only), or a register-to-register move.
func loadHandler(reg string) handler {
	litOp, addrOp := map[string]rom.Opcode{"A": rom.LDA_LIT, "X": rom.LDX_LIT, "Y": rom.LDY_LIT}[reg],
		map[string]rom.Opcode{"A": rom.LDA_ADDR, "X": rom.LDX_ADDR, "Y": rom.LDY_ADDR}[reg]
	moves := map[string]map[token.Kind]rom.Opcode{
		"A": {token.REG_X: rom.LDA_X, token.REG_Y: rom.LDA_Y},
		"X": {token.REG_A: rom.LDX_A, token.REG_Y: rom.LDX_Y},
		"Y": {token.REG_A: rom.LDY_A, token.REG_X: rom.LDY_X},
	}[reg]

	return func(g *generator, operands []token.Token) error {
		switch {
		case len(operands) == 1 && operands[0].Kind == token.LITERAL:
			g.emitByte(byte(litOp))
			g.emitLE(operands[0].Value, 4)
			return nil

		case len(operands) == 1 && isAddressClass(operands[0].Kind):
			g.emitByte(byte(addrOp))
			return g.emitAddressOperand(operands[0])

		case len(operands) == 1:
			if op, ok := moves[operands[0].Kind]; ok {
				g.emitByte(byte(op))
				return nil
			}

		case len(operands) == 2 && reg == "A" && isAddressClass(operands[0].Kind):
			switch operands[1].Kind {
			case token.REG_X:
				g.emitByte(byte(rom.LDA_ADDR_X))
				return g.emitAddressOperand(operands[0])
			case token.REG_Y:
				g.emitByte(byte(rom.LDA_ADDR_Y))
				return g.emitAddressOperand(operands[0])
			}
		}
		return g.errUnknownShape(operands)
	}
}

func leaHandler(op rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 1 || !isAddressClass(operands[0].Kind) {
			return g.errUnknownShape(operands)
		}
		g.emitByte(byte(op))
		return g.emitAddressOperand(operands[0])
	}
}

func staHandler(op rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 1 || !isAddressClass(operands[0].Kind) {
			return g.errUnknownShape(operands)
		}
		g.emitByte(byte(op))
		return g.emitAddressOperand(operands[0])
	}
}

// branchHandler builds JMP and the eight conditional branches, all of
// which take a single address-valued operand: a direct $address, a label
// name, or a relative label reference.
func branchHandler(op rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 1 {
			return g.errUnknownShape(operands)
		}
		g.emitByte(byte(op))
		return g.emitAddressOperand(operands[0])
	}
}

func jsrHandler(g *generator, operands []token.Token) error {
	if len(operands) != 1 {
		return g.errUnknownShape(operands)
	}
	g.emitByte(byte(rom.JSR_ADDR))
	return g.emitAddressOperand(operands[0])
}

func handleCmp(g *generator, operands []token.Token) error {
	if len(operands) != 2 {
		return g.errUnknownShape(operands)
	}
	regName, ok := registerName(operands[0].Kind)
	if !ok {
		return g.errUnknownShape(operands)
	}
	table := map[string]map[token.Kind]rom.Opcode{
		"A": {token.REG_X: rom.CMP_A_X, token.REG_Y: rom.CMP_A_Y, token.LITERAL: rom.CMP_A_LIT, token.ADDRESS: rom.CMP_A_ADDR},
		"X": {token.REG_A: rom.CMP_X_A, token.REG_Y: rom.CMP_X_Y, token.LITERAL: rom.CMP_X_LIT, token.ADDRESS: rom.CMP_X_ADDR},
		"Y": {token.REG_A: rom.CMP_Y_A, token.REG_X: rom.CMP_Y_X, token.LITERAL: rom.CMP_Y_LIT, token.ADDRESS: rom.CMP_Y_ADDR},
	}[regName]
	kind := operands[1].Kind
	if isAddressClass(kind) {
		kind = token.ADDRESS
	}
	op, ok := table[kind]
	if !ok {
		return g.errUnknownShape(operands)
	}
	g.emitByte(byte(op))
	switch kind {
	case token.LITERAL:
		g.emitLE(operands[1].Value, 4)
	case token.ADDRESS:
		return g.emitAddressOperand(operands[1])
	}
	return nil
}

// arithHandler builds ADD and SUB, whose destination is always A: the
// single operand is a literal, a direct address, or the X/Y register.
func arithHandler(litOp, addrOp, xOp, yOp rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 1 {
			return g.errUnknownShape(operands)
		}
		switch {
		case operands[0].Kind == token.LITERAL:
			g.emitByte(byte(litOp))
			g.emitLE(operands[0].Value, 4)
		case isAddressClass(operands[0].Kind):
			g.emitByte(byte(addrOp))
			return g.emitAddressOperand(operands[0])
		case operands[0].Kind == token.REG_X:
			g.emitByte(byte(xOp))
		case operands[0].Kind == token.REG_Y:
			g.emitByte(byte(yOp))
		default:
			return g.errUnknownShape(operands)
		}
		return nil
	}
}

func incDecHandler(aOp, xOp, yOp, addrOp rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 1 {
			return g.errUnknownShape(operands)
		}
		switch {
		case operands[0].Kind == token.REG_A:
			g.emitByte(byte(aOp))
		case operands[0].Kind == token.REG_X:
			g.emitByte(byte(xOp))
		case operands[0].Kind == token.REG_Y:
			g.emitByte(byte(yOp))
		case isAddressClass(operands[0].Kind):
			g.emitByte(byte(addrOp))
			return g.emitAddressOperand(operands[0])
		default:
			return g.errUnknownShape(operands)
		}
		return nil
	}
}

func regOnlyHandler(aOp, xOp, yOp rom.Opcode) handler {
	return func(g *generator, operands []token.Token) error {
		if len(operands) != 1 {
			return g.errUnknownShape(operands)
		}
		switch operands[0].Kind {
		case token.REG_A:
			g.emitByte(byte(aOp))
		case token.REG_X:
			g.emitByte(byte(xOp))
		case token.REG_Y:
			g.emitByte(byte(yOp))
		default:
			return g.errUnknownShape(operands)
		}
		return nil
	}
}

func registerName(k token.Kind) (string, bool) {
	switch k {
	case token.REG_A:
		return "A", true
	case token.REG_X:
		return "X", true
	case token.REG_Y:
		return "Y", true
	default:
		return "", false
	}
}
