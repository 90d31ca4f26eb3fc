package parser

import (
	"fmt"
	"sort"

	"github.com/lookbusy1344/toyasm/token"
)

// SymbolKind distinguishes the three payload shapes a Symbol can carry.
type SymbolKind int

const (
	SymLabel SymbolKind = iota
	SymMacro
	SymDefine
)

// Symbol is a named entry in the SymbolTable. Exactly one of the payload
// fields is meaningful, selected by Kind.
type Symbol struct {
	Name string
	Kind SymbolKind

	// SymLabel payload.
	Address   uint32
	Anonymous bool

	// SymMacro payload: the interior token sequence between .macro <name>
	// and .endmacro, excluding both.
	Body []token.Token

	// SymDefine payload: exactly one token.
	Payload token.Token

	Pos token.Pos

	// seq is the insertion sequence number, used only to break ties in
	// SearchRelativeLabel; it is not exposed outside this package.
	seq int
}

// SymbolTable is a keyed mapping from identifier to Symbol with
// insertion-ordered iteration and replace-on-reinsert semantics: adding a
// symbol under a name that already exists overwrites its payload but
// keeps its position in insertion order.
type SymbolTable struct {
	symbols map[string]*Symbol
	order   []string
	nextSeq int
	anonSeq int
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

// Add inserts sym, or replaces the existing entry under the same name if
// one is present. The insertion-order position of a replaced name is
// unchanged; its tie-break sequence number still advances, since codegen's
// pass 1 "replacing" a preprocessor dummy placeholder is itself a later,
// real insertion.
func (st *SymbolTable) Add(sym *Symbol) {
	if _, exists := st.symbols[sym.Name]; !exists {
		st.order = append(st.order, sym.Name)
	}
	sym.seq = st.nextSeq
	st.nextSeq++
	st.symbols[sym.Name] = sym
}

// Get returns the symbol stored under name, if any.
func (st *SymbolTable) Get(name string) (*Symbol, bool) {
	sym, ok := st.symbols[name]
	return sym, ok
}

// NextAnonName returns the next deterministic anonymous-label name and
// advances the counter.
func (st *SymbolTable) NextAnonName() string {
	name := fmt.Sprintf("ANON_LABEL_%08X", st.anonSeq)
	st.anonSeq++
	return name
}

// ResetAnonCounter rewinds the anonymous-label name counter to zero without
// touching any stored symbol. Codegen calls this between its two emission
// passes so that each pass assigns the same sequence of generated names to
// the same sequence of anonymous labels, letting pass 2's Add calls replace
// pass 1's placeholders in place instead of piling up duplicates.
func (st *SymbolTable) ResetAnonCounter() {
	st.anonSeq = 0
}

// SearchRelativeLabel resolves a BACKWARD_LABEL_REF or FORWARD_LABEL_REF
// token against the anonymous labels known so far, relative to
// currentROMOffset. It returns the nth-nearest anonymous label's address
// in the requested direction, with ties at equal address broken by
// preferring the later insertion (strict insertion order is undefined by
// the source in the other direction — see DESIGN.md).
func (st *SymbolTable) SearchRelativeLabel(tok token.Token, currentROMOffset uint32) (uint32, bool) {
	n := int(tok.Value)
	if n < 1 {
		return 0, false
	}

	var candidates []*Symbol
	for _, name := range st.order {
		sym := st.symbols[name]
		if sym.Kind == SymLabel && sym.Anonymous {
			candidates = append(candidates, sym)
		}
	}

	switch tok.Kind {
	case token.BACKWARD_LABEL_REF:
		var filtered []*Symbol
		for _, c := range candidates {
			if c.Address < currentROMOffset {
				filtered = append(filtered, c)
			}
		}
		sort.SliceStable(filtered, func(i, j int) bool {
			if filtered[i].Address != filtered[j].Address {
				return filtered[i].Address > filtered[j].Address
			}
			return filtered[i].seq > filtered[j].seq
		})
		if n > len(filtered) {
			return 0, false
		}
		return filtered[n-1].Address, true

	case token.FORWARD_LABEL_REF:
		var filtered []*Symbol
		for _, c := range candidates {
			if c.Address >= currentROMOffset {
				filtered = append(filtered, c)
			}
		}
		sort.SliceStable(filtered, func(i, j int) bool {
			if filtered[i].Address != filtered[j].Address {
				return filtered[i].Address < filtered[j].Address
			}
			return filtered[i].seq > filtered[j].seq
		})
		if n > len(filtered) {
			return 0, false
		}
		return filtered[n-1].Address, true

	default:
		return 0, false
	}
}

// Clear resets the table to empty, including the anonymous-label counter.
func (st *SymbolTable) Clear() {
	st.symbols = make(map[string]*Symbol)
	st.order = nil
	st.nextSeq = 0
	st.anonSeq = 0
}
