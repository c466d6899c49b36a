package vm

import (
	"errors"
	"fmt"
)

// TrapKind classifies runtime failures. A trap aborts the current
// top-level invocation and rolls back its state changes; invocations
// running concurrently are unaffected.
type TrapKind uint8

const (
	TrapStackUnderflow TrapKind = iota
	TrapTypeMismatch
	TrapDivisionByZero
	TrapOutOfGas
	TrapStorageConflict
	TrapCryptoFailed
	TrapDecryptionFailed
	TrapBadModule
)

var trapKindNames = map[TrapKind]string{
	TrapStackUnderflow:   "StackUnderflow",
	TrapTypeMismatch:     "TypeMismatch",
	TrapDivisionByZero:   "DivisionByZero",
	TrapOutOfGas:         "OutOfGas",
	TrapStorageConflict:  "StorageConflict",
	TrapCryptoFailed:     "CryptoFailed",
	TrapDecryptionFailed: "DecryptionFailed",
	TrapBadModule:        "BadModule",
}

func (k TrapKind) String() string {
	if name, ok := trapKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TrapKind(%d)", uint8(k))
}

// Trap is the error type for failures raised during execution. It
// records the trap kind, the function being executed, and the code
// offset of the faulting instruction.
type Trap struct {
	Kind     TrapKind
	Function string
	Offset   int
	Detail   string
}

func (t *Trap) Error() string {
	if t.Detail == "" {
		return fmt.Sprintf("trap %s in %s at %04X", t.Kind, t.Function, t.Offset)
	}
	return fmt.Sprintf("trap %s in %s at %04X: %s", t.Kind, t.Function, t.Offset, t.Detail)
}

// AsTrap unwraps a Trap from an error chain.
func AsTrap(err error) (*Trap, bool) {
	var t *Trap
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// IsTrap reports whether err is a trap of the given kind.
func IsTrap(err error, kind TrapKind) bool {
	t, ok := AsTrap(err)
	return ok && t.Kind == kind
}
