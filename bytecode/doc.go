// Package bytecode defines the compiled representation of SypherLang
// programs: a stack-machine instruction set, the Module container, and
// the serialized wire format.
//
// The format is designed for:
//   - Compact representation (typically 1-5 bytes per instruction)
//   - Fast decoding (fixed-width opcodes, simple operand formats)
//   - Deterministic serialization (identical source compiles to
//     byte-identical artifacts)
//
// # Architecture Overview
//
//   - Opcodes: ~40 stack-based instructions covering arithmetic,
//     control flow, variable and contract-state access, calls into the
//     privacy backend, and the spawn/join concurrency pair.
//
//   - Module: one flat code section plus a deduplicated constant pool,
//     a function table (name, entry offset, arity), and the contract
//     storage layout mapping declared state variables to stable slot
//     indices. Modules are immutable once emitted and safe to share
//     across concurrently executing invocations.
//
//   - Wire format: a "SYBC" magic prefix followed by a deterministic
//     CBOR encoding of the module, produced by Serialize and consumed
//     by Deserialize.
//
// The compiler package lowers analyzed source to a Module; the vm
// package executes one.
package bytecode
