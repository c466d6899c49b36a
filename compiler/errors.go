package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Compile-time error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies a compile-time diagnostic.
type ErrorKind int

const (
	ErrLexical ErrorKind = iota
	ErrSyntax
	ErrName
	ErrType
	ErrDuplicateDeclaration
	ErrVisibility
	ErrCompile
)

var errorKindNames = map[ErrorKind]string{
	ErrLexical:              "LexicalError",
	ErrSyntax:               "SyntaxError",
	ErrName:                 "NameError",
	ErrType:                 "TypeError",
	ErrDuplicateDeclaration: "DuplicateDeclarationError",
	ErrVisibility:           "VisibilityError",
	ErrCompile:              "CompileError",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Diagnostic is a single compile-time error with source position.
// Compilation reports the first unrecoverable diagnostic and stops;
// it never emits a partial module.
type Diagnostic struct {
	Kind ErrorKind
	Pos  Position
	Msg  string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s at line %d, column %d: %s", d.Kind, d.Pos.Line, d.Pos.Column, d.Msg)
}

// errorAt builds a Diagnostic at the given position.
func errorAt(kind ErrorKind, pos Position, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
