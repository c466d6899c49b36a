package compiler

import (
	"github.com/CipherCoRetech/SypherLang/bytecode"
)

// Compile runs the full pipeline over source text: lexing and parsing,
// semantic analysis, then code generation. On any error no module is
// produced; the returned error is a *Diagnostic carrying the source
// position.
func Compile(source string) (*bytecode.Module, error) {
	prog, err := Parse(source)
	if err != nil {
		return nil, err
	}
	if err := Analyze(prog); err != nil {
		return nil, err
	}
	return Generate(prog)
}
