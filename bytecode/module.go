package bytecode

import "fmt"

// ModuleVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const ModuleVersion uint16 = 1

// ConstKind discriminates constant pool entries.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstString
)

// String returns a human-readable name for ConstKind.
func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstString:
		return "string"
	default:
		return fmt.Sprintf("ConstKind(%d)", uint8(k))
	}
}

// Constant is one deduplicated literal in the constant pool.
type Constant struct {
	Kind ConstKind `cbor:"1,keyasint"`
	Int  int64     `cbor:"2,keyasint,omitempty"`
	Str  string    `cbor:"3,keyasint,omitempty"`
}

// IntConstant builds an int pool entry.
func IntConstant(v int64) Constant { return Constant{Kind: ConstInt, Int: v} }

// StringConstant builds a string pool entry.
func StringConstant(s string) Constant { return Constant{Kind: ConstString, Str: s} }

// FuncInfo is one function table entry: a labeled instruction range
// with a known arity.
type FuncInfo struct {
	Name       string   `cbor:"1,keyasint"`
	Contract   string   `cbor:"2,keyasint,omitempty"` // empty for top-level functions
	Offset     uint32   `cbor:"3,keyasint"`           // entry offset into Code
	Arity      uint8    `cbor:"4,keyasint"`
	NumLocals  uint8    `cbor:"5,keyasint"` // total local slots including parameters
	ParamNames []string `cbor:"6,keyasint,omitempty"`
	Return     string   `cbor:"7,keyasint,omitempty"` // type name, empty for void
}

// QualifiedName returns Contract.Name for members, Name otherwise.
func (f *FuncInfo) QualifiedName() string {
	if f.Contract == "" {
		return f.Name
	}
	return f.Contract + "." + f.Name
}

// StateSlot describes one declared contract state variable. Slot
// indices are assigned in declaration order and are stable for the
// lifetime of the contract.
type StateSlot struct {
	Contract string `cbor:"1,keyasint"`
	Name     string `cbor:"2,keyasint"`
	Slot     uint16 `cbor:"3,keyasint"`
	Type     string `cbor:"4,keyasint"`
	Public   bool   `cbor:"5,keyasint,omitempty"`
}

// Module is a compiled program: one flat code section, a deduplicated
// constant pool, a function table, and the contract storage layout.
// Modules are immutable once emitted and may be shared read-only
// across concurrently executing invocations.
type Module struct {
	Version   uint16      `cbor:"1,keyasint"`
	Code      []byte      `cbor:"2,keyasint"`
	Constants []Constant  `cbor:"3,keyasint,omitempty"`
	Functions []FuncInfo  `cbor:"4,keyasint,omitempty"`
	Contracts []string    `cbor:"5,keyasint,omitempty"`
	Storage   []StateSlot `cbor:"6,keyasint,omitempty"`
}

// NewModule creates a new empty module with the current version.
func NewModule() *Module {
	return &Module{
		Version: ModuleVersion,
		Code:    make([]byte, 0, 256),
	}
}

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// AddConstant adds a constant to the pool and returns its index.
// If an equal constant already exists, returns the existing index.
func (m *Module) AddConstant(c Constant) uint16 {
	for i, existing := range m.Constants {
		if existing == c {
			return uint16(i)
		}
	}
	idx := uint16(len(m.Constants))
	m.Constants = append(m.Constants, c)
	return idx
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

// Emit appends a single-byte opcode to the code section.
func (m *Module) Emit(op Opcode) int {
	offset := len(m.Code)
	m.Code = append(m.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (m *Module) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(m.Code)
	m.Code = append(m.Code, byte(op))
	m.Code = append(m.Code, operands...)
	return offset
}

// EmitU8 appends an opcode with one u8 operand.
func (m *Module) EmitU8(op Opcode, v uint8) int {
	return m.EmitWithOperand(op, v)
}

// EmitU16 appends an opcode with one big-endian u16 operand.
func (m *Module) EmitU16(op Opcode, v uint16) int {
	return m.EmitWithOperand(op, byte(v>>8), byte(v))
}

// EmitConstant emits an OpConst instruction for the given value,
// adding it to the pool if not already present.
func (m *Module) EmitConstant(c Constant) int {
	idx := m.AddConstant(c)
	return m.EmitU16(OpConst, idx)
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (m *Module) EmitJump(op Opcode) int {
	offset := len(m.Code)
	m.Code = append(m.Code, byte(op), 0xFF, 0xFF)
	return offset + 1
}

// PatchJump patches a jump placeholder to target the current position.
func (m *Module) PatchJump(placeholderOffset int) {
	jumpFrom := placeholderOffset + 2
	delta := len(m.Code) - jumpFrom
	m.Code[placeholderOffset] = byte(delta >> 8)
	m.Code[placeholderOffset+1] = byte(delta)
}

// EmitLoop emits a backward jump to the given loop start.
func (m *Module) EmitLoop(loopStart int) {
	jumpFrom := len(m.Code) + 3
	delta := loopStart - jumpFrom
	m.Code = append(m.Code, byte(OpJump), byte(delta>>8), byte(delta))
}

// CurrentOffset returns the current offset in the code section.
func (m *Module) CurrentOffset() int {
	return len(m.Code)
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// ContractIndex returns the index of a contract name, interning it if
// new. The index is the operand of the state access opcodes.
func (m *Module) ContractIndex(name string) uint16 {
	for i, c := range m.Contracts {
		if c == name {
			return uint16(i)
		}
	}
	idx := uint16(len(m.Contracts))
	m.Contracts = append(m.Contracts, name)
	return idx
}

// FunctionByName finds a function table entry by plain or qualified
// name. Plain names match top-level functions first, then any unique
// contract member.
func (m *Module) FunctionByName(name string) (int, *FuncInfo) {
	for i := range m.Functions {
		f := &m.Functions[i]
		if f.Contract == "" && f.Name == name {
			return i, f
		}
	}
	found := -1
	for i := range m.Functions {
		f := &m.Functions[i]
		if f.QualifiedName() == name || f.Name == name {
			if found >= 0 {
				return -1, nil // ambiguous
			}
			found = i
		}
	}
	if found < 0 {
		return -1, nil
	}
	return found, &m.Functions[found]
}

// StateLayout returns the storage slots declared by one contract,
// ordered by slot index.
func (m *Module) StateLayout(contract string) []StateSlot {
	var slots []StateSlot
	for _, s := range m.Storage {
		if s.Contract == contract {
			slots = append(slots, s)
		}
	}
	return slots
}
