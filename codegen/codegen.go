// Package codegen turns an expanded token stream into a ROM image. It
// runs its own emission routine twice, discarding the first pass's
// output, so that labels may be referenced before their address is
// known.
package codegen

import (
	"fmt"

	"github.com/lookbusy1344/toyasm/parser"
	"github.com/lookbusy1344/toyasm/rom"
	"github.com/lookbusy1344/toyasm/token"
)

const (
	defaultEntryPoint = 16
	maxLineTokens     = 8
)

// generator carries the mutable state of a single emission pass.
type generator struct {
	symbols   *parser.SymbolTable
	debugMode bool
	pass      int // 1 or 2; controls relative-label-reference resolution
	out       []byte
	errs      *parser.ErrorList

	lineBuf    []token.Token
	byteDefLen int // 0 = inactive, else 1/2/4
}

// Generate runs the two-pass emission algorithm and returns the finished
// ROM image, or a nil image and a non-empty error list on failure.
func Generate(tokens []token.Token, symbols *parser.SymbolTable, debugMode bool) ([]byte, *parser.ErrorList) {
	errs := &parser.ErrorList{}

	symbols.ResetAnonCounter()
	first := &generator{symbols: symbols, debugMode: debugMode, pass: 1, errs: errs}
	first.run(tokens)
	if errs.HasErrors() {
		return nil, errs
	}

	symbols.ResetAnonCounter()
	second := &generator{symbols: symbols, debugMode: debugMode, pass: 2, errs: errs}
	second.run(tokens)
	if errs.HasErrors() {
		return nil, errs
	}
	return second.out, errs
}

func (g *generator) run(tokens []token.Token) {
	g.emitHeaderPlaceholder()

	for _, t := range tokens {
		switch t.Kind {
		case token.EOF:
			g.flushLine(t.Pos)
			g.patchEntryPoint()
			return

		case token.LINEFINISH:
			if g.byteDefLen != 0 {
				g.byteDefLen = 0
				continue
			}
			g.flushLine(t.Pos)

		case token.LABEL:
			g.defineLabel(t.Identifier, t.Pos, false)

		case token.ANON_LABEL:
			g.defineLabel(g.symbols.NextAnonName(), t.Pos, true)

		case token.KW_DB:
			g.byteDefLen = 1
		case token.KW_DW:
			g.byteDefLen = 2
		case token.KW_DD:
			g.byteDefLen = 4

		default:
			if g.byteDefLen != 0 {
				g.emitByteDefToken(t)
				continue
			}
			g.lineBuf = append(g.lineBuf, t)
			if len(g.lineBuf) > maxLineTokens {
				g.errs.AddError(parser.NewError(t.Pos, parser.ErrInstructionLineTooLong,
					"instruction line exceeds 8 tokens"))
				g.lineBuf = nil
			}
		}
	}
	g.patchEntryPoint()
}

func (g *generator) currentOffset() uint32 { return uint32(len(g.out)) }

func (g *generator) emitHeaderPlaceholder() {
	g.out = append(g.out, 0x69, 0x01, 0x00, 0x00)
	for i := 0; i < 11; i++ {
		g.out = append(g.out, 0xCC)
	}
	debugByte := byte(0)
	if g.debugMode {
		debugByte = 1
	}
	g.out = append(g.out, debugByte)
}

func (g *generator) patchEntryPoint() {
	addr := uint32(defaultEntryPoint)
	if sym, ok := g.symbols.Get("_START"); ok {
		if sym.Kind != parser.SymLabel {
			g.errs.AddError(parser.NewError(sym.Pos, parser.ErrMisuseOfLabels,
				"_START must be a label"))
			return
		}
		addr = sym.Address
	}
	g.out[2] = byte(addr)
	g.out[3] = byte(addr >> 8)
}

func (g *generator) defineLabel(name string, pos token.Pos, anonymous bool) {
	addr := g.currentOffset()
	g.symbols.Add(&parser.Symbol{Name: name, Kind: parser.SymLabel, Address: addr, Anonymous: anonymous, Pos: pos})

	if g.debugMode {
		displayName := name
		if anonymous {
			displayName = "ANON_LABEL"
		}
		g.emitByte(byte(rom.DEBUG_METADATA_SIGNAL))
		g.emitByte(rom.MetadataLabelName)
		g.out = append(g.out, []byte(displayName)...)
		g.emitByte(byte(rom.DEBUG_METADATA_SIGNAL))
	}
}

func (g *generator) emitByteDefToken(t token.Token) {
	switch t.Kind {
	case token.LITERAL, token.ADDRESS:
		g.emitLE(t.Value, g.byteDefLen)
	default:
		g.errs.AddError(parser.NewError(t.Pos, parser.ErrBadByteDefinition,
			fmt.Sprintf("expected a literal or address value in .db/.dw/.dd, got %s", t.Kind)))
	}
}

func (g *generator) flushLine(pos token.Pos) {
	if len(g.lineBuf) == 0 {
		return
	}
	line := g.lineBuf
	g.lineBuf = nil

	mnemonic := line[0]
	if mnemonic.Kind != token.IDENTIFIER {
		g.errs.AddError(parser.NewError(mnemonic.Pos, parser.ErrUnknownOpcodeShape,
			"expected a mnemonic at start of line"))
		return
	}
	h, ok := mnemonics[mnemonic.Identifier]
	if !ok {
		g.reportIdentifier(mnemonic)
		return
	}
	if err := h(g, line[1:]); err != nil {
		_ = pos // position already attached inside errUnknownShape
	}
}

// reportIdentifier classifies a leading identifier that is not a known
// mnemonic: a lingering macro/define name that never got expanded, or one
// that never resolved to anything at all.
func (g *generator) reportIdentifier(t token.Token) {
	sym, ok := g.symbols.Get(t.Identifier)
	if !ok {
		g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnknownIdentifier,
			fmt.Sprintf("unknown identifier %q", t.Identifier)))
		return
	}
	switch sym.Kind {
	case parser.SymMacro:
		g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnexpandedMacro,
			fmt.Sprintf("macro %q was never expanded", t.Identifier)))
	case parser.SymDefine:
		g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnexpandedDefine,
			fmt.Sprintf("define %q was never expanded", t.Identifier)))
	default:
		g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnknownOpcodeShape,
			fmt.Sprintf("%q is a label, not a mnemonic", t.Identifier)))
	}
}

// emitAddressOperand resolves an operand naming a target address — a
// direct $address, a label identifier, or a relative label reference —
// and appends its 2-byte little-endian form.
func (g *generator) emitAddressOperand(t token.Token) error {
	switch t.Kind {
	case token.ADDRESS:
		g.emitLE(t.Value, 2)
		return nil

	case token.IDENTIFIER:
		sym, ok := g.symbols.Get(t.Identifier)
		if !ok {
			g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnknownIdentifier,
				fmt.Sprintf("unknown identifier %q", t.Identifier)))
			return g.errs.First()
		}
		switch sym.Kind {
		case parser.SymLabel:
			g.emitLE(sym.Address, 2)
			return nil
		case parser.SymMacro:
			g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnexpandedMacro,
				fmt.Sprintf("macro %q was never expanded", t.Identifier)))
		case parser.SymDefine:
			g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnexpandedDefine,
				fmt.Sprintf("define %q was never expanded", t.Identifier)))
		}
		return g.errs.First()

	case token.BACKWARD_LABEL_REF, token.FORWARD_LABEL_REF:
		addr, ok := g.symbols.SearchRelativeLabel(t, g.currentOffset())
		if !ok {
			if g.pass == 1 {
				// Forward labels generally can't resolve yet; emit the
				// placeholder and let pass 2 either resolve it for real or
				// raise the error below.
				g.emitLE(0, 2)
				return nil
			}
			g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnresolvedRelativeLabel,
				"relative label reference has no matching anonymous label"))
			return g.errs.First()
		}
		g.emitLE(addr, 2)
		return nil

	default:
		g.errs.AddError(parser.NewError(t.Pos, parser.ErrUnknownOpcodeShape,
			"expected an address, label, or relative label reference"))
		return g.errs.First()
	}
}

func (g *generator) errUnknownShape(operands []token.Token) error {
	pos := token.Pos{}
	if len(operands) > 0 {
		pos = operands[0].Pos
	}
	err := parser.NewError(pos, parser.ErrUnknownOpcodeShape, "no matching instruction shape for operand list")
	g.errs.AddError(err)
	return err
}

func (g *generator) emitByte(b byte) { g.out = append(g.out, b) }

// emitLE appends the low width bytes of v, little-endian.
func (g *generator) emitLE(v uint32, width int) {
	for i := 0; i < width; i++ {
		g.out = append(g.out, byte(v))
		v >>= 8
	}
}
