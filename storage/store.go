// Package storage is the contract-state boundary consumed by the VM:
// a slot-addressed key-value store with transactional begin/commit/
// rollback semantics.
//
// Transactions use optimistic isolation. Reads see a stable snapshot,
// writes are buffered, and Commit validates that no slot touched by
// the transaction was committed by anyone else in the meantime. The
// loser of a race fails with ErrConflict and leaves the store
// untouched, so the caller can retry.
package storage

import (
	"context"
	"errors"
)

// ErrConflict is returned by Commit when another transaction
// committed an overlapping slot first.
var ErrConflict = errors.New("storage: commit conflict")

// ErrTxnDone is returned when a finished transaction is used again.
var ErrTxnDone = errors.New("storage: transaction already finished")

// SlotKey addresses one contract state slot.
type SlotKey struct {
	Contract string
	Slot     uint16
}

// Store is the contract-state store. Values are opaque bytes; the VM
// encodes and decodes them. A missing slot reads as nil with no
// error.
type Store interface {
	// Get reads the committed value of one slot.
	Get(ctx context.Context, contract string, slot uint16) ([]byte, error)

	// Set writes one slot directly, outside any transaction. Meant
	// for seeding state; invocations go through Begin.
	Set(ctx context.Context, contract string, slot uint16, value []byte) error

	// Begin opens a transaction with a snapshot of current state.
	Begin(ctx context.Context) (Txn, error)

	// Close releases the store.
	Close() error
}

// Txn is one transaction. Not safe for concurrent use; each
// invocation owns its transaction exclusively.
type Txn interface {
	// Get reads a slot, preferring the transaction's own buffered
	// writes, then the snapshot taken at Begin.
	Get(ctx context.Context, contract string, slot uint16) ([]byte, error)

	// Set buffers a write. Nothing is visible to other transactions
	// until Commit.
	Set(ctx context.Context, contract string, slot uint16, value []byte) error

	// Delete buffers removal of a slot. A deleted slot reads as nil,
	// the same as a slot never written.
	Delete(ctx context.Context, contract string, slot uint16) error

	// Writes returns the buffered write set. The scheduler uses it to
	// merge spawned-call effects into the parent transaction.
	Writes() map[SlotKey][]byte

	// Commit atomically publishes the buffered writes. Fails with
	// ErrConflict if any slot read or written by this transaction was
	// committed by another transaction since Begin.
	Commit(ctx context.Context) error

	// Rollback discards the transaction. Safe to call after a failed
	// Commit.
	Rollback(ctx context.Context) error
}
