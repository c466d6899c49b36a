package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpPop Opcode = 0x01 // Pop top of stack
	OpDup Opcode = 0x02 // Duplicate top of stack

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst      Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpConstTrue  Opcode = 0x11 // Push boolean true
	OpConstFalse Opcode = 0x12 // Push boolean false

	// ========================================================================
	// Local variables (0x20-0x2F)
	// ========================================================================

	OpLoadLocal  Opcode = 0x20 // Push local slot: OpLoadLocal <slot:u8>
	OpStoreLocal Opcode = 0x21 // Pop and store to local slot: OpStoreLocal <slot:u8>

	// ========================================================================
	// Contract state (0x30-0x3F)
	// ========================================================================

	OpLoadState  Opcode = 0x30 // Push state value: OpLoadState <contract:u16> <slot:u16>
	OpStoreState Opcode = 0x31 // Pop and store state value: OpStoreState <contract:u16> <slot:u16>

	// ========================================================================
	// Arithmetic (0x40-0x4F)
	// ========================================================================

	OpAdd Opcode = 0x40 // Pop two ints, push sum (wraps on overflow)
	OpSub Opcode = 0x41 // Pop two ints, push difference (a - b where b is TOS)
	OpMul Opcode = 0x42 // Pop two ints, push product
	OpDiv Opcode = 0x43 // Pop two ints, push quotient; traps on zero divisor
	OpMod Opcode = 0x44 // Pop two ints, push remainder; traps on zero divisor
	OpNeg Opcode = 0x45 // Negate int on top of stack

	// ========================================================================
	// Comparison (0x50-0x5F)
	// ========================================================================

	OpEq Opcode = 0x50 // Pop two, push true if equal
	OpNe Opcode = 0x51 // Pop two, push true if not equal
	OpLt Opcode = 0x52 // Pop two, push true if a < b
	OpLe Opcode = 0x53 // Pop two, push true if a <= b
	OpGt Opcode = 0x54 // Pop two, push true if a > b
	OpGe Opcode = 0x55 // Pop two, push true if a >= b

	// ========================================================================
	// Logical operations (0x58-0x5F)
	// ========================================================================

	OpNot Opcode = 0x58 // Logical NOT on top of stack
	OpAnd Opcode = 0x59 // Pop two bools, push conjunction
	OpOr  Opcode = 0x5A // Pop two bools, push disjunction

	// ========================================================================
	// String operations (0x60-0x6F)
	// ========================================================================

	OpConcat Opcode = 0x60 // Concatenate top two strings

	// ========================================================================
	// Mapping operations (0x68-0x6F)
	// ========================================================================

	OpMapGet Opcode = 0x68 // map key -> value (zero value when key absent)
	OpMapSet Opcode = 0x69 // map key value -> modified map

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpJump      Opcode = 0x80 // Unconditional jump: OpJump <offset:i16>
	OpJumpFalse Opcode = 0x81 // Jump if top is false: OpJumpFalse <offset:i16>

	// ========================================================================
	// Calls (0x90-0x9F)
	// ========================================================================

	OpCall    Opcode = 0x90 // Call function: OpCall <fn:u16> <argc:u8>
	OpRet     Opcode = 0x91 // Return top of stack to the caller
	OpRetVoid Opcode = 0x92 // Return without a value

	// ========================================================================
	// Privacy/crypto (0xA0-0xAF)
	// ========================================================================

	OpProve          Opcode = 0xA0 // Pop int witness, push proof
	OpVerify         Opcode = 0xA1 // Pop proof, push verification bool
	OpLatticeKeygen  Opcode = 0xA2 // Push fresh keypair
	OpLatticeEncrypt Opcode = 0xA3 // Pop key plaintext, push ciphertext
	OpLatticeDecrypt Opcode = 0xA4 // Pop key ciphertext, push plaintext
	OpExchangeKey    Opcode = 0xA5 // Pop two keys, push shared key
	OpSigVerify      Opcode = 0xA6 // Pop key message signature, push bool

	// ========================================================================
	// Concurrency (0xB0-0xBF)
	// ========================================================================

	OpSpawn Opcode = 0xB0 // Schedule independent call: OpSpawn <fn:u16> <argc:u8>, push handle
	OpJoin  Opcode = 0xB1 // Pop handle, block until resolved, push result

	// ========================================================================
	// Events (0xC0-0xCF)
	// ========================================================================

	OpEmit Opcode = 0xC0 // Emit event: OpEmit <name:u16> <argc:u8>
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop: {"NOP", 0, 0, 0},
	OpPop: {"POP", 1, 0, 0},
	OpDup: {"DUP", 1, 2, 0},

	// Constants
	OpConst:      {"CONST", 0, 1, 2},
	OpConstTrue:  {"CONST_TRUE", 0, 1, 0},
	OpConstFalse: {"CONST_FALSE", 0, 1, 0},

	// Local variables
	OpLoadLocal:  {"LOAD_LOCAL", 0, 1, 1},
	OpStoreLocal: {"STORE_LOCAL", 1, 0, 1},

	// Contract state
	OpLoadState:  {"LOAD_STATE", 0, 1, 4},
	OpStoreState: {"STORE_STATE", 1, 0, 4},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpMod: {"MOD", 2, 1, 0},
	OpNeg: {"NEG", 1, 1, 0},

	// Comparison
	OpEq: {"EQ", 2, 1, 0},
	OpNe: {"NE", 2, 1, 0},
	OpLt: {"LT", 2, 1, 0},
	OpLe: {"LE", 2, 1, 0},
	OpGt: {"GT", 2, 1, 0},
	OpGe: {"GE", 2, 1, 0},

	// Logical
	OpNot: {"NOT", 1, 1, 0},
	OpAnd: {"AND", 2, 1, 0},
	OpOr:  {"OR", 2, 1, 0},

	// String
	OpConcat: {"CONCAT", 2, 1, 0},

	// Mapping
	OpMapGet: {"MAP_GET", 2, 1, 0},
	OpMapSet: {"MAP_SET", 3, 1, 0},

	// Control flow
	OpJump:      {"JUMP", 0, 0, 2},
	OpJumpFalse: {"JUMP_FALSE", 1, 0, 2},

	// Calls
	OpCall:    {"CALL", -1, 1, 3},
	OpRet:     {"RET", 1, 0, 0},
	OpRetVoid: {"RET_VOID", 0, 0, 0},

	// Privacy/crypto
	OpProve:          {"PROVE", 1, 1, 0},
	OpVerify:         {"VERIFY", 1, 1, 0},
	OpLatticeKeygen:  {"LATTICE_KEYGEN", 0, 1, 0},
	OpLatticeEncrypt: {"LATTICE_ENCRYPT", 2, 1, 0},
	OpLatticeDecrypt: {"LATTICE_DECRYPT", 2, 1, 0},
	OpExchangeKey:    {"EXCHANGE_KEY", 2, 1, 0},
	OpSigVerify:      {"SIG_VERIFY", 3, 1, 0},

	// Concurrency
	OpSpawn: {"SPAWN", -1, 1, 3},
	OpJoin:  {"JOIN", 1, 1, 0},

	// Events
	OpEmit: {"EMIT", -1, 0, 3},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpFalse
}

// IsReturn returns true if this opcode terminates the current frame.
func (op Opcode) IsReturn() bool {
	return op == OpRet || op == OpRetVoid
}

// IsCrypto returns true if this opcode calls into the privacy backend.
func (op Opcode) IsCrypto() bool {
	return op >= OpProve && op <= OpSigVerify
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
