package parser

import "github.com/lookbusy1344/toyasm/token"

// maxSubstitutions bounds total macro/define replacements performed by
// expand, guarding against a macro or define that (directly or through a
// chain of others) expands into itself.
const maxSubstitutions = 1 << 20

// Preprocessor transforms a lexed token stream into the expanded stream
// codegen consumes, populating symbols as it goes.
type Preprocessor struct {
	symbols *SymbolTable
	errors  *ErrorList
}

// NewPreprocessor creates a preprocessor that records labels, macros, and
// defines into symbols.
func NewPreprocessor(symbols *SymbolTable) *Preprocessor {
	return &Preprocessor{symbols: symbols, errors: &ErrorList{}}
}

// Errors returns the diagnostics accumulated while preprocessing.
func (pp *Preprocessor) Errors() *ErrorList { return pp.errors }

// Process runs both logical passes over tokens and returns the expanded
// stream.
func (pp *Preprocessor) Process(tokens []token.Token) []token.Token {
	stripped := pp.strip(tokens)
	if pp.errors.HasErrors() {
		return stripped
	}
	return pp.expand(stripped)
}

// strip is pass 1: dummy-label insertion, and collection of .macro and
// .define blocks into the symbol table. Both kinds of block are removed
// from the returned stream.
func (pp *Preprocessor) strip(tokens []token.Token) []token.Token {
	var out []token.Token
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch tok.Kind {
		case token.LABEL:
			pp.symbols.Add(&Symbol{Name: tok.Identifier, Kind: SymLabel, Pos: tok.Pos})
			out = append(out, tok)
			i++

		case token.KW_MACRO:
			i = pp.stripMacro(tokens, i)

		case token.KW_DEFINE:
			i = pp.stripDefine(tokens, i)

		default:
			out = append(out, tok)
			i++
		}
	}
	return out
}

func (pp *Preprocessor) stripMacro(tokens []token.Token, i int) int {
	openPos := tokens[i].Pos
	j := i + 1
	if j >= len(tokens) || tokens[j].Kind != token.IDENTIFIER {
		pp.errors.AddError(NewError(openPos, ErrNamelessMacro, "macro has no name"))
		return pp.skipToEndmacro(tokens, j)
	}
	name := tokens[j].Identifier
	namePos := tokens[j].Pos
	j++

	if j >= len(tokens) || tokens[j].Kind != token.LINEFINISH {
		pp.errors.AddError(NewError(namePos, ErrBadMacro, "macro name must be followed by a newline: "+name))
	} else {
		j++
	}

	var body []token.Token
	closed := false
	for j < len(tokens) {
		switch tokens[j].Kind {
		case token.KW_MACRO:
			pp.errors.AddError(NewError(tokens[j].Pos, ErrBadMacro, "nested macro definition inside: "+name))
			return pp.skipToEndmacro(tokens, j+1)
		case token.KW_ENDMACRO:
			j++
			closed = true
		}
		if closed {
			break
		}
		body = append(body, tokens[j])
		j++
	}
	if !closed {
		pp.errors.AddError(NewError(namePos, ErrMissingMacroContents, "EOF inside macro body: "+name))
		return j
	}

	pp.symbols.Add(&Symbol{Name: name, Kind: SymMacro, Body: body, Pos: namePos})

	if j < len(tokens) && tokens[j].Kind == token.LINEFINISH {
		j++
	}
	return j
}

func (pp *Preprocessor) stripDefine(tokens []token.Token, i int) int {
	openPos := tokens[i].Pos
	j := i + 1
	if j >= len(tokens) || tokens[j].Kind != token.IDENTIFIER {
		pp.errors.AddError(NewError(openPos, ErrNamelessDefine, "define has no name"))
		return pp.skipToLinefinish(tokens, j)
	}
	name := tokens[j].Identifier
	namePos := tokens[j].Pos
	j++

	if j >= len(tokens) || tokens[j].Kind == token.LINEFINISH || tokens[j].Kind == token.EOF {
		pp.errors.AddError(NewError(namePos, ErrBadDefine, "define has no payload: "+name))
		return pp.skipToLinefinish(tokens, j)
	}
	payload := tokens[j]
	pp.symbols.Add(&Symbol{Name: name, Kind: SymDefine, Payload: payload, Pos: namePos})
	return pp.skipToLinefinish(tokens, j+1)
}

func (pp *Preprocessor) skipToEndmacro(tokens []token.Token, i int) int {
	for i < len(tokens) && tokens[i].Kind != token.KW_ENDMACRO && tokens[i].Kind != token.EOF {
		i++
	}
	if i < len(tokens) && tokens[i].Kind == token.KW_ENDMACRO {
		i++
	}
	return i
}

func (pp *Preprocessor) skipToLinefinish(tokens []token.Token, i int) int {
	for i < len(tokens) && tokens[i].Kind != token.LINEFINISH && tokens[i].Kind != token.EOF {
		i++
	}
	if i < len(tokens) && tokens[i].Kind == token.LINEFINISH {
		i++
	}
	return i
}

// expand is pass 2: repeat unrolling, macro splicing, and define
// substitution. It works over an explicit queue rather than a single
// forward scan so that tokens produced by one expansion (e.g. a macro body
// containing a further .repeat) are themselves rescanned.
func (pp *Preprocessor) expand(tokens []token.Token) []token.Token {
	queue := append([]token.Token{}, tokens...)
	var out []token.Token
	substitutions := 0

	for len(queue) > 0 {
		tok := queue[0]
		queue = queue[1:]

		switch tok.Kind {
		case token.KW_REPEAT:
			queue = pp.expandRepeat(tok, queue)

		case token.IDENTIFIER:
			sym, ok := pp.symbols.Get(tok.Identifier)
			if !ok {
				out = append(out, tok)
				continue
			}
			switch sym.Kind {
			case SymMacro:
				substitutions++
				if substitutions > maxSubstitutions {
					pp.errors.AddError(NewError(tok.Pos, ErrBadMacro, "macro expansion did not terminate: "+tok.Identifier))
					continue
				}
				spliced := make([]token.Token, len(sym.Body))
				for k, b := range sym.Body {
					spliced[k] = b.Clone()
				}
				if len(spliced) > 0 && spliced[len(spliced)-1].Kind == token.LINEFINISH &&
					len(queue) > 0 && queue[0].Kind == token.LINEFINISH {
					spliced = spliced[:len(spliced)-1]
				}
				queue = append(spliced, queue...)
			case SymDefine:
				substitutions++
				if substitutions > maxSubstitutions {
					pp.errors.AddError(NewError(tok.Pos, ErrBadDefine, "define expansion did not terminate: "+tok.Identifier))
					continue
				}
				queue = append([]token.Token{sym.Payload.Clone()}, queue...)
			default:
				out = append(out, tok)
			}

		default:
			out = append(out, tok)
		}
	}
	return out
}

func (pp *Preprocessor) expandRepeat(openTok token.Token, queue []token.Token) []token.Token {
	if len(queue) == 0 || queue[0].Kind != token.LITERAL {
		pp.errors.AddError(NewError(openTok.Pos, ErrMissingRepeatLiteralParameter, "repeat requires a literal count"))
		return queue
	}
	count := queue[0].Value
	queue = queue[1:]

	if len(queue) == 0 || queue[0].Kind != token.LINEFINISH {
		pp.errors.AddError(NewError(openTok.Pos, ErrMissingNewlineAtRepeat, "repeat count must be followed by a newline"))
	} else {
		queue = queue[1:]
	}

	var body []token.Token
	closed := false
	for len(queue) > 0 {
		if queue[0].Kind == token.KW_ENDREPEAT {
			queue = queue[1:]
			closed = true
			break
		}
		body = append(body, queue[0])
		queue = queue[1:]
	}
	if !closed {
		pp.errors.AddError(NewError(openTok.Pos, ErrEmptyRepeatContents, "EOF inside repeat block"))
		return queue
	}
	if len(queue) > 0 && queue[0].Kind == token.LINEFINISH {
		queue = queue[1:]
	}
	if len(body) == 0 {
		pp.errors.AddError(NewError(openTok.Pos, ErrEmptyRepeatContents, "repeat body is empty"))
		return queue
	}

	unrolled := make([]token.Token, 0, int(count)*len(body))
	for k := uint32(0); k < count; k++ {
		for _, b := range body {
			unrolled = append(unrolled, b.Clone())
		}
	}
	return append(unrolled, queue...)
}
