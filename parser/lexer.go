package parser

import (
	"strings"

	"github.com/lookbusy1344/toyasm/token"
)

// errEmptyNumber and errBadDigit are internal sentinels used only inside
// scanNumber/parseUint to distinguish "not a number" from the caller's
// perspective.
var (
	errEmptyNumber = simpleErr("empty numeric literal")
	errBadDigit    = simpleErr("invalid digit for base")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// keywords is the reserved-word set: directives that must be recognized
// before codegen sees the stream.
var keywords = map[string]token.Kind{
	".db":        token.KW_DB,
	".dw":        token.KW_DW,
	".dd":        token.KW_DD,
	".macro":     token.KW_MACRO,
	".endmacro":  token.KW_ENDMACRO,
	".repeat":    token.KW_REPEAT,
	".endrepeat": token.KW_ENDREPEAT,
	".define":    token.KW_DEFINE,
}

// registers is the reserved register-name set; these never lex as labels
// or identifiers, even if a source file never uses them in that role.
var registers = map[string]token.Kind{
	"A":  token.REG_A,
	"X":  token.REG_X,
	"Y":  token.REG_Y,
	"PC": token.REG_PC,
	"SC": token.REG_SC,
}

// Lexer turns source bytes into a Token sequence. It
// never blocks and never allocates beyond the token slice it returns.
type Lexer struct {
	input    string
	filename string
	pos      int
	line     int
	column   int
	ch       byte

	errors *ErrorList

	// pending queues the extra tokens produced by one multi-byte string
	// literal scan; NextToken drains it before scanning further.
	pending []token.Token

	sawEntryPoint bool
	entryPointPos token.Pos
}

// NewLexer creates a lexer over input. filename is used for diagnostics
// only.
func NewLexer(input, filename string) *Lexer {
	l := &Lexer{
		input:    input,
		filename: filename,
		line:     1,
		errors:   &ErrorList{},
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.pos]
	}
	l.pos++
	l.column++
}

func (l *Lexer) currentPos() token.Pos {
	return token.Pos{Filename: l.filename, Line: l.line, Column: l.column}
}

// isSpace covers the ASCII whitespace set plus NUL; an embedded NUL byte
// separates words like any other whitespace. End of input also pins ch to
// 0, so every skip loop must check atEOF or it will never terminate.
func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\v', '\f', 0:
		return true
	default:
		return false
	}
}

// atEOF reports whether the input is exhausted, as opposed to ch being a
// genuine NUL byte inside the input.
func (l *Lexer) atEOF() bool {
	return l.pos > len(l.input)
}

func isWordChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' ||
		ch == '_' || ch == '.' || ch == '$'
}

func (l *Lexer) skipSpaces() {
	for isSpace(l.ch) && !l.atEOF() {
		l.readChar()
	}
}

// Errors returns the diagnostics accumulated while lexing.
func (l *Lexer) Errors() *ErrorList { return l.errors }

// TokenizeAll lexes the entire input, returning the full token sequence
// terminated by EOF, collapsing consecutive LINEFINISH tokens, and checks
// the _START entry-point uniqueness invariant once lexing is complete.
// The last instruction line always ends in LINEFINISH, synthesized when
// the input has no final newline.
func (l *Lexer) TokenizeAll() []token.Token {
	var out []token.Token
	lastWasLinefinish := true // collapse a leading LINEFINISH too
	for {
		tok := l.NextToken()
		if tok.Kind == token.EOF {
			if !lastWasLinefinish {
				out = append(out, token.Token{Kind: token.LINEFINISH, Pos: tok.Pos})
			}
			out = append(out, tok)
			break
		}
		if tok.Kind == token.LINEFINISH {
			if lastWasLinefinish {
				continue
			}
			lastWasLinefinish = true
		} else {
			lastWasLinefinish = false
		}
		out = append(out, tok)
	}
	if !l.sawEntryPoint {
		l.errors.AddError(NewError(l.currentPos(), ErrEntryPointNotDefined, "_START label is never defined"))
	}
	return out
}

// NextToken returns the next token, draining the pending queue first.
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	return l.scan()
}

func (l *Lexer) scan() token.Token {
	for {
		l.skipSpaces()

		switch {
		case l.ch == '\n':
			pos := l.currentPos()
			for l.ch == '\n' {
				l.readChar()
				l.line++
				l.column = 0
				l.skipSpaces()
			}
			return token.Token{Kind: token.LINEFINISH, Pos: pos}

		case l.ch == ';':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue

		case l.ch == '"':
			return l.scanString(true)

		case l.ch == '\'':
			return l.scanString(false)

		case l.ch == '@':
			return l.scanAtWord()

		case l.atEOF():
			return token.Token{Kind: token.EOF, Pos: l.currentPos()}

		default:
			return l.scanWord()
		}
	}
}

// scanString consumes a quoted string literal and queues one LITERAL
// token per byte (plus a trailing LITERAL=0 for double-quoted strings),
// returning the first of them.
func (l *Lexer) scanString(doubleQuoted bool) token.Token {
	quote := l.ch
	pos := l.currentPos()
	l.readChar() // consume opening quote

	var bytes []byte
	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			if b, ok := decodeEscape(l.ch); ok {
				bytes = append(bytes, b)
			}
			// unknown escapes are dropped silently
			if l.ch != 0 {
				l.readChar()
			}
			continue
		}
		bytes = append(bytes, l.ch)
		l.readChar()
	}
	if l.ch == quote {
		l.readChar() // consume closing quote
	}
	if doubleQuoted {
		bytes = append(bytes, 0)
	}

	toks := make([]token.Token, 0, len(bytes))
	for _, b := range bytes {
		toks = append(toks, token.Token{Kind: token.LITERAL, Value: uint32(b), Pos: pos})
	}
	if len(toks) == 0 {
		return l.scan()
	}
	l.pending = append(l.pending, toks[1:]...)
	return toks[0]
}

func decodeEscape(ch byte) (byte, bool) {
	switch ch {
	case '0':
		return 0x00, true
	case 'n':
		return 0x0A, true
	case 't':
		return 0x09, true
	case '\\':
		return 0x5C, true
	case '"':
		return 0x22, true
	case '\'':
		return 0x27, true
	default:
		return 0, false
	}
}

// scanAtWord handles every token beginning with '@': anonymous labels
// (@: or @Name:) and relative label references (@+, @++, @-, @--, ...).
func (l *Lexer) scanAtWord() token.Token {
	pos := l.currentPos()
	l.readChar() // consume '@'

	switch {
	case l.ch == ':':
		l.readChar()
		return token.Token{Kind: token.ANON_LABEL, Pos: pos}

	case l.ch == '+' || l.ch == '-':
		op := l.ch
		count := uint32(0)
		for l.ch == '+' || l.ch == '-' {
			if l.ch != op {
				l.errors.AddError(NewError(pos, ErrMixedOperatorsInRelativeLabel,
					"relative label reference mixes '+' and '-'"))
				for l.ch == '+' || l.ch == '-' {
					l.readChar()
				}
				return token.Token{Kind: token.IDENTIFIER, Identifier: "@", Pos: pos}
			}
			count++
			l.readChar()
		}
		kind := token.FORWARD_LABEL_REF
		if op == '-' {
			kind = token.BACKWARD_LABEL_REF
		}
		return token.Token{Kind: kind, Value: count, Pos: pos}

	default:
		// @Name: — a decoratively named anonymous label. The name is
		// discarded; ANON_LABEL never carries an identifier (see the
		// token.go invariant). Without the trailing ':' this is not a
		// label definition at all; fold it into an identifier so codegen
		// reports UnknownIdentifier at the use site.
		start := l.pos - 1
		for isWordChar(l.ch) {
			l.readChar()
		}
		if l.ch == ':' {
			l.readChar()
			return token.Token{Kind: token.ANON_LABEL, Pos: pos}
		}
		return token.Token{Kind: token.IDENTIFIER, Identifier: "@" + l.input[start:l.pos-1], Pos: pos}
	}
}

// scanWord handles everything not starting with '@', '"', '\'', ';', or a
// newline: numbers, named labels, keywords, registers, and identifiers
// (including every instruction mnemonic, SYSCALL, and STRIDE — codegen
// recognizes those by text, not by a dedicated token kind).
func (l *Lexer) scanWord() token.Token {
	pos := l.currentPos()
	start := l.pos - 1
	for isWordChar(l.ch) {
		l.readChar()
	}
	word := l.input[start : l.pos-1]

	if word == "" {
		// Stray punctuation the grammar doesn't define; consume it and
		// fold it into an identifier so codegen reports UnknownIdentifier
		// rather than the lexer looping forever.
		ch := l.ch
		l.readChar()
		return token.Token{Kind: token.IDENTIFIER, Identifier: string(ch), Pos: pos}
	}

	if _, reserved := registers[word]; l.ch == ':' && !reserved {
		l.readChar()
		if word == "_START" {
			if l.sawEntryPoint {
				l.errors.AddError(NewError(pos, ErrMultipleEntryPoints, "_START label defined more than once"))
			}
			l.sawEntryPoint = true
			l.entryPointPos = pos
		}
		return token.Token{Kind: token.LABEL, Identifier: word, Pos: pos}
	}

	if tok, ok := l.scanNumber(word, pos); ok {
		return tok
	}

	if kind, ok := keywords[word]; ok {
		return token.Token{Kind: kind, Pos: pos}
	}
	if word == strings.ToUpper(word) {
		if kind, ok := registers[word]; ok {
			return token.Token{Kind: kind, Pos: pos}
		}
	}

	return token.Token{Kind: token.IDENTIFIER, Identifier: word, Pos: pos}
}

// scanNumber recognizes $0x../$0d.. (ADDRESS) and 0x../0d.. (LITERAL)
// forms. ok is false if word has no numeric prefix at all, in which case
// the caller keeps classifying it as something else.
func (l *Lexer) scanNumber(word string, pos token.Pos) (token.Token, bool) {
	isAddr := strings.HasPrefix(word, "$")
	body := word
	if isAddr {
		body = word[1:]
	}

	var base int
	switch {
	case strings.HasPrefix(body, "0x"):
		base, body = 16, body[2:]
	case strings.HasPrefix(body, "0d"):
		base, body = 10, body[2:]
	default:
		return token.Token{}, false
	}

	value, err := parseUint(body, base)
	if err != nil {
		return token.Token{}, false
	}

	if isAddr {
		if value > 0xFFFF {
			l.errors.AddError(NewError(pos, ErrAddrTooLarge, "address literal exceeds 0xFFFF: "+word))
			value &= 0xFFFF
		}
		return token.Token{Kind: token.ADDRESS, Value: uint32(value), Pos: pos}, true
	}
	if value > 0xFFFFFFFF {
		l.errors.AddError(NewError(pos, ErrNumTooLarge, "numeric literal exceeds 32 bits: "+word))
		value &= 0xFFFFFFFF
	}
	return token.Token{Kind: token.LITERAL, Value: uint32(value), Pos: pos}, true
}

func parseUint(s string, base int) (uint64, error) {
	if s == "" {
		return 0, errEmptyNumber
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d, ok := digitValue(s[i])
		if !ok || d >= base {
			return 0, errBadDigit
		}
		v = v*uint64(base) + uint64(d)
	}
	return v, nil
}

func digitValue(ch byte) (int, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10, true
	default:
		return 0, false
	}
}
