// Package vm executes compiled bytecode modules.
//
// A Machine wraps one module, a state store, and a cryptographic
// backend. Each Execute call is one invocation: it runs in its own
// optimistic transaction, commits on success, and rolls back wholly
// on any trap, so failed invocations never leave partial state.
//
// The interpreter is a fetch-decode-execute loop over a stack of
// activation frames. Contract state moves through the transaction as
// deterministically encoded values; proof, key, and ciphertext values
// stay opaque between the crypto backend and storage.
//
// Spawned calls run on a shared worker pool with their own
// transactions and resolve through handles; joining a handle merges
// the child's writes and events into the caller. Gas is metered
// across the whole invocation tree.
package vm
