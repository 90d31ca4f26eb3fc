package parser

import (
	"fmt"
	"strings"

	"github.com/lookbusy1344/toyasm/token"
)

// Position is a source location, used for diagnostics only.
type Position = token.Pos

// ErrorKind categorizes a compile-time diagnostic by the phase that raised
// it and the specific condition named in the error taxonomy.
type ErrorKind int

const (
	// Lex errors
	ErrNumTooLarge ErrorKind = iota
	ErrAddrTooLarge
	ErrMixedOperatorsInRelativeLabel
	ErrEntryPointNotDefined
	ErrMultipleEntryPoints

	// Preprocessor errors
	ErrBadMacro
	ErrNamelessMacro
	ErrBadName
	ErrMissingMacroContents
	ErrBadDefine
	ErrNamelessDefine
	ErrEmptyRepeatContents
	ErrMissingRepeatLiteralParameter
	ErrMissingNewlineAtRepeat

	// Codegen errors
	ErrInstructionLineTooLong
	ErrBadByteDefinition
	ErrUnknownIdentifier
	ErrUnexpandedMacro
	ErrUnexpandedDefine
	ErrMisuseOfLabels
	ErrUnknownOpcodeShape
	ErrUnresolvedRelativeLabel

	// Analyzer hard error
	ErrRomTooLarge
)

var kindNames = map[ErrorKind]string{
	ErrNumTooLarge:                   "NumTooLarge",
	ErrAddrTooLarge:                  "AddrTooLarge",
	ErrMixedOperatorsInRelativeLabel: "MixedOperatorsInRelativeLabel",
	ErrEntryPointNotDefined:          "EntryPointNotDefined",
	ErrMultipleEntryPoints:           "MultipleEntryPoints",
	ErrBadMacro:                      "BadMacro",
	ErrNamelessMacro:                 "NamelessMacro",
	ErrBadName:                       "BadName",
	ErrMissingMacroContents:          "MissingMacroContents",
	ErrBadDefine:                     "BadDefine",
	ErrNamelessDefine:                "NamelessDefine",
	ErrEmptyRepeatContents:           "EmptyRepeatContents",
	ErrMissingRepeatLiteralParameter: "MissingRepeatLiteralParameter",
	ErrMissingNewlineAtRepeat:        "MissingNewlineAtRepeat",
	ErrInstructionLineTooLong:        "InstructionLineTooLong",
	ErrBadByteDefinition:             "BadByteDefinition",
	ErrUnknownIdentifier:             "UnknownIdentifier",
	ErrUnexpandedMacro:               "UnexpandedMacro",
	ErrUnexpandedDefine:              "UnexpandedDefine",
	ErrMisuseOfLabels:                "MisuseOfLabels",
	ErrUnknownOpcodeShape:            "UnknownOpcodeShape",
	ErrUnresolvedRelativeLabel:       "UnresolvedRelativeLabel",
	ErrRomTooLarge:                   "RomTooLarge",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Error is a single fatal diagnostic raised by any assembler phase.
type Error struct {
	Pos     Position
	Message string
	Context string
	Kind    ErrorKind
}

func NewError(pos Position, kind ErrorKind, message string) *Error {
	return &Error{Pos: pos, Message: message, Kind: kind}
}

func NewErrorWithContext(pos Position, kind ErrorKind, message, context string) *Error {
	return &Error{Pos: pos, Message: message, Context: context, Kind: kind}
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: error: %s [%s]\n", e.Pos, e.Message, e.Kind)
	if e.Context != "" {
		fmt.Fprintf(&sb, "    %s\n", e.Context)
	}
	return sb.String()
}

// Warning is a non-fatal diagnostic; it never changes the exit status of
// the assembler.
type Warning struct {
	Pos     Position
	Message string
}

func (w *Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Pos, w.Message)
}

// ErrorList collects every diagnostic raised during one assembler
// invocation. Every error is fatal to compilation; the list
// exists so each phase reports through the same shape and so every
// warning from a single run can be surfaced together, not so errors can
// be recovered from.
type ErrorList struct {
	Errors   []*Error
	Warnings []*Warning
}

func (el *ErrorList) AddError(err *Error)   { el.Errors = append(el.Errors, err) }
func (el *ErrorList) AddWarning(w *Warning) { el.Warnings = append(el.Warnings, w) }
func (el *ErrorList) HasErrors() bool       { return len(el.Errors) > 0 }

// First returns the first error added, or nil if there are none.
func (el *ErrorList) First() *Error {
	if len(el.Errors) == 0 {
		return nil
	}
	return el.Errors[0]
}

func (el *ErrorList) Error() string {
	var sb strings.Builder
	for _, e := range el.Errors {
		sb.WriteString(e.Error())
	}
	return sb.String()
}

func (el *ErrorList) PrintWarnings() string {
	var sb strings.Builder
	for _, w := range el.Warnings {
		sb.WriteString(w.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
