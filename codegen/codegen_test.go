package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/toyasm/codegen"
	"github.com/lookbusy1344/toyasm/parser"
	"github.com/lookbusy1344/toyasm/rom"
	"github.com/lookbusy1344/toyasm/token"
)

// assemble runs the full pipeline over src and returns the ROM image,
// failing the test on any phase error.
func assemble(t *testing.T, src string, debugMode bool) []byte {
	t.Helper()
	image, errs := tryAssemble(t, src, debugMode)
	require.False(t, errs.HasErrors(), "assembly failed: %v", errs)
	return image
}

// tryAssemble is assemble without the success requirement, for tests that
// expect codegen errors. Lex and preprocessor errors still fail the test,
// since they would mask the condition under test.
func tryAssemble(t *testing.T, src string, debugMode bool) ([]byte, *parser.ErrorList) {
	t.Helper()
	lexer := parser.NewLexer(src, "test.asm")
	tokens := lexer.TokenizeAll()
	require.False(t, lexer.Errors().HasErrors(), "lex failed: %v", lexer.Errors())

	symbols := parser.NewSymbolTable()
	pp := parser.NewPreprocessor(symbols)
	expanded := pp.Process(tokens)
	require.False(t, pp.Errors().HasErrors(), "preprocess failed: %v", pp.Errors())

	return codegen.Generate(expanded, symbols, debugMode)
}

const helloSource = `STR:
  .db "Hello!\n"
_START:
  LDA 0x0
  LEX STR
  SYSCALL
  BRK
`

func TestGenerate_HelloWorldByteExact(t *testing.T) {
	image := assemble(t, helloSource, false)

	want := []byte{
		0x69, 0x01, 0x18, 0x00,
		0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC, 0xCC,
		0x00,
		'H', 'e', 'l', 'l', 'o', '!', '\n', 0x00,
		byte(rom.LDA_LIT), 0x00, 0x00, 0x00, 0x00,
		byte(rom.LEX_ADDR), 0x10, 0x00,
		byte(rom.SYSTEMCALL),
		byte(rom.BRK),
	}
	assert.Equal(t, want, image)
}

func TestGenerate_HeaderDefaults(t *testing.T) {
	// _START is first, so the entry point equals the default 16 even when
	// resolved from the label.
	image := assemble(t, "_START:\n  BRK\n", false)

	header, err := rom.Decode(image)
	require.NoError(t, err)
	assert.Equal(t, uint16(16), header.EntryPoint)
	assert.False(t, header.DebugMode)
	assert.Equal(t, rom.MagicNumber, image[0])
	assert.Equal(t, rom.LanguageVersion, image[1])
	for i := 4; i < 15; i++ {
		assert.Equal(t, rom.ReservedFill, image[i], "reserved byte %d", i)
	}
}

func TestGenerate_EntryPointFollowsStart(t *testing.T) {
	image := assemble(t, "  NOP\n  NOP\n_START:\n  BRK\n", false)

	header, err := rom.Decode(image)
	require.NoError(t, err)
	assert.Equal(t, uint16(18), header.EntryPoint, "two NOP bytes precede _START")
}

func TestGenerate_SecondPassIsFixedPoint(t *testing.T) {
	lexer := parser.NewLexer(helloSource, "test.asm")
	tokens := lexer.TokenizeAll()
	require.False(t, lexer.Errors().HasErrors())

	symbols := parser.NewSymbolTable()
	pp := parser.NewPreprocessor(symbols)
	expanded := pp.Process(tokens)
	require.False(t, pp.Errors().HasErrors())

	first, errs := codegen.Generate(expanded, symbols, false)
	require.False(t, errs.HasErrors())

	// Re-running emission over the already-resolved symbol table must
	// reproduce the same bytes: pass 3 equals pass 2.
	second, errs := codegen.Generate(expanded, symbols, false)
	require.False(t, errs.HasErrors())
	assert.Equal(t, first, second)
}

func TestGenerate_RelativeLabels(t *testing.T) {
	src := `_START:
  @:
  NOP
  @:
  JMP @-
  JMP @--
  BRK
`
	image := assemble(t, src, false)

	want := []byte{
		byte(rom.NOP),
		byte(rom.JMP_ADDR), 0x11, 0x00,
		byte(rom.JMP_ADDR), 0x10, 0x00,
		byte(rom.BRK),
	}
	assert.Equal(t, want, image[16:])

	// The first JMP targets the nearer (second) anonymous label, one byte
	// past the farther (first) one.
	firstTarget := uint16(image[18]) | uint16(image[19])<<8
	secondTarget := uint16(image[21]) | uint16(image[22])<<8
	assert.Equal(t, firstTarget, secondTarget+1)
}

func TestGenerate_ForwardRelativeLabel(t *testing.T) {
	src := `_START:
  JMP @+
  NOP
  @:
  BRK
`
	image := assemble(t, src, false)

	want := []byte{
		byte(rom.JMP_ADDR), 0x14, 0x00,
		byte(rom.NOP),
		byte(rom.BRK),
	}
	assert.Equal(t, want, image[16:])
}

func TestGenerate_ForwardNamedLabel(t *testing.T) {
	src := `_START:
  JMP Done
  NOP
Done:
  BRK
`
	image := assemble(t, src, false)

	want := []byte{
		byte(rom.JMP_ADDR), 0x14, 0x00,
		byte(rom.NOP),
		byte(rom.BRK),
	}
	assert.Equal(t, want, image[16:])
}

func TestGenerate_ByteDefinitionWidths(t *testing.T) {
	src := `_START:
  .db 0x11 0x22
  .dw 0x3344
  .dd 0x55667788
  BRK
`
	image := assemble(t, src, false)

	want := []byte{
		0x11, 0x22,
		0x44, 0x33,
		0x88, 0x77, 0x66, 0x55,
		byte(rom.BRK),
	}
	assert.Equal(t, want, image[16:])
}

func TestGenerate_InstructionShapes(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []byte
	}{
		{"lda literal", "LDA 0x42", []byte{byte(rom.LDA_LIT), 0x42, 0x00, 0x00, 0x00}},
		{"lda address", "LDA $0x1337", []byte{byte(rom.LDA_ADDR), 0x37, 0x13}},
		{"lda indexed x", "LDA $0x1337 X", []byte{byte(rom.LDA_ADDR_X), 0x37, 0x13}},
		{"lda indexed y", "LDA $0x1337 Y", []byte{byte(rom.LDA_ADDR_Y), 0x37, 0x13}},
		{"lda from x", "LDA X", []byte{byte(rom.LDA_X)}},
		{"ldx from y", "LDX Y", []byte{byte(rom.LDX_Y)}},
		{"lea", "LEA $0x0020", []byte{byte(rom.LEA_ADDR), 0x20, 0x00}},
		{"sta", "STA $0x0040", []byte{byte(rom.STA_ADDR), 0x40, 0x00}},
		{"cmp a literal", "CMP A 0x42", []byte{byte(rom.CMP_A_LIT), 0x42, 0x00, 0x00, 0x00}},
		{"cmp x y", "CMP X Y", []byte{byte(rom.CMP_X_Y)}},
		{"cmp y address", "CMP Y $0x0008", []byte{byte(rom.CMP_Y_ADDR), 0x08, 0x00}},
		{"add literal", "ADD 0x1", []byte{byte(rom.ADD_LIT), 0x01, 0x00, 0x00, 0x00}},
		{"sub address", "SUB $0x0004", []byte{byte(rom.SUB_ADDR), 0x04, 0x00}},
		{"add x", "ADD X", []byte{byte(rom.ADD_X)}},
		{"inc a", "INC A", []byte{byte(rom.INC_A)}},
		{"dec address", "DEC $0x0010", []byte{byte(rom.DEC_ADDR), 0x10, 0x00}},
		{"push pop", "PUSH A", []byte{byte(rom.PUSH_A)}},
		{"stride", "STRIDE 0x4", []byte{byte(rom.STRIDE_LIT), 0x04}},
		{"clc", "CLC", []byte{byte(rom.CLC)}},
		{"ret", "RET", []byte{byte(rom.RET)}},
		{"jsr", "JSR $0x0010", []byte{byte(rom.JSR_ADDR), 0x10, 0x00}},
		{"bne", "BNE $0x0010", []byte{byte(rom.BNE_ADDR), 0x10, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := assemble(t, "_START:\n  "+tt.line+"\n  BRK\n", false)
			want := append(append([]byte{}, tt.want...), byte(rom.BRK))
			assert.Equal(t, want, image[16:])
		})
	}
}

func TestGenerate_EmittedSizeMatchesWidthSum(t *testing.T) {
	src := `_START:
  LDA 0x1
  STA $0x0000
  JSR Sub
  BRK
Sub:
  INC A
  RET
`
	image := assemble(t, src, false)

	wantSize := rom.HeaderSize
	for _, op := range []rom.Opcode{rom.LDA_LIT, rom.STA_ADDR, rom.JSR_ADDR, rom.BRK, rom.INC_A, rom.RET} {
		w, ok := rom.InstructionLength(op)
		require.True(t, ok)
		wantSize += w
	}
	assert.Equal(t, wantSize, len(image))
}

func TestGenerate_DebugMetadata(t *testing.T) {
	image := assemble(t, "_START:\n  @:\n  BRK\n", true)

	header, err := rom.Decode(image)
	require.NoError(t, err)
	assert.True(t, header.DebugMode)
	// _START is recorded at offset 16, before its own metadata bytes.
	assert.Equal(t, uint16(16), header.EntryPoint)

	want := []byte{
		byte(rom.DEBUG_METADATA_SIGNAL), rom.MetadataLabelName,
		'_', 'S', 'T', 'A', 'R', 'T',
		byte(rom.DEBUG_METADATA_SIGNAL),
		byte(rom.DEBUG_METADATA_SIGNAL), rom.MetadataLabelName,
		'A', 'N', 'O', 'N', '_', 'L', 'A', 'B', 'E', 'L',
		byte(rom.DEBUG_METADATA_SIGNAL),
		byte(rom.BRK),
	}
	assert.Equal(t, want, image[16:])
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind parser.ErrorKind
	}{
		{
			"line too long",
			"_START:\n  CMP A 0x1 0x2 0x3 0x4 0x5 0x6 0x7 0x8\n",
			parser.ErrInstructionLineTooLong,
		},
		{
			"bad byte definition",
			"_START:\n  .db X\n",
			parser.ErrBadByteDefinition,
		},
		{
			"unknown identifier",
			"_START:\n  JMP Nowhere\n",
			parser.ErrUnknownIdentifier,
		},
		{
			"unresolved relative label",
			"_START:\n  JMP @-\n  BRK\n",
			parser.ErrUnresolvedRelativeLabel,
		},
		{
			"unknown shape",
			"_START:\n  LDA\n",
			parser.ErrUnknownOpcodeShape,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := tryAssemble(t, tt.src, false)
			require.True(t, errs.HasErrors(), "expected a codegen error")
			assert.Equal(t, tt.kind, errs.First().Kind)
		})
	}
}

func TestGenerate_UnexpandedMacroOperand(t *testing.T) {
	symbols := parser.NewSymbolTable()
	symbols.Add(&parser.Symbol{Name: "_START", Kind: parser.SymLabel, Address: 16})
	symbols.Add(&parser.Symbol{Name: "Mac", Kind: parser.SymMacro})

	tokens := []token.Token{
		{Kind: token.IDENTIFIER, Identifier: "JMP"},
		{Kind: token.IDENTIFIER, Identifier: "Mac"},
		{Kind: token.LINEFINISH},
		{Kind: token.EOF},
	}
	_, errs := codegen.Generate(tokens, symbols, false)
	require.True(t, errs.HasErrors())
	assert.Equal(t, parser.ErrUnexpandedMacro, errs.First().Kind)
}

func TestGenerate_MisusedStartSymbol(t *testing.T) {
	symbols := parser.NewSymbolTable()
	symbols.Add(&parser.Symbol{Name: "_START", Kind: parser.SymMacro})

	tokens := []token.Token{
		{Kind: token.IDENTIFIER, Identifier: "BRK"},
		{Kind: token.LINEFINISH},
		{Kind: token.EOF},
	}
	_, errs := codegen.Generate(tokens, symbols, false)
	require.True(t, errs.HasErrors())
	assert.Equal(t, parser.ErrMisuseOfLabels, errs.First().Kind)
}
