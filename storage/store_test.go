package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores returns one of each Store implementation for shared tests.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// Missing slot reads as nil.
			v, err := s.Get(ctx, "Vault", 0)
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, s.Set(ctx, "Vault", 0, []byte("a")))
			v, err = s.Get(ctx, "Vault", 0)
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), v)

			// Slots are scoped per contract.
			v, err = s.Get(ctx, "Other", 0)
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestTxnBufferedWrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "C", 0, []byte("old")))

			txn, err := s.Begin(ctx)
			require.NoError(t, err)

			require.NoError(t, txn.Set(ctx, "C", 0, []byte("new")))

			// The transaction sees its own write.
			v, err := txn.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Equal(t, []byte("new"), v)

			// Nobody else does until commit.
			v, err = s.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Equal(t, []byte("old"), v)

			require.NoError(t, txn.Commit(ctx))

			v, err = s.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Equal(t, []byte("new"), v)
		})
	}
}

func TestTxnSnapshotRead(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "C", 1, []byte("v1")))

			txn, err := s.Begin(ctx)
			require.NoError(t, err)

			v, err := txn.Get(ctx, "C", 1)
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)

			// A direct write lands behind the transaction's back.
			require.NoError(t, s.Set(ctx, "C", 1, []byte("v2")))

			// Repeat reads stay on the snapshot.
			v, err = txn.Get(ctx, "C", 1)
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), v)
		})
	}
}

func TestTxnConflict(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a, err := s.Begin(ctx)
			require.NoError(t, err)
			b, err := s.Begin(ctx)
			require.NoError(t, err)

			require.NoError(t, a.Set(ctx, "C", 0, []byte("a")))
			require.NoError(t, b.Set(ctx, "C", 0, []byte("b")))

			// First committer wins; the second aborts.
			require.NoError(t, a.Commit(ctx))
			assert.ErrorIs(t, b.Commit(ctx), ErrConflict)

			v, err := s.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), v)
		})
	}
}

func TestTxnDisjointSlotsBothCommit(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a, err := s.Begin(ctx)
			require.NoError(t, err)
			b, err := s.Begin(ctx)
			require.NoError(t, err)

			require.NoError(t, a.Set(ctx, "C", 0, []byte("a")))
			require.NoError(t, b.Set(ctx, "C", 1, []byte("b")))

			require.NoError(t, a.Commit(ctx))
			require.NoError(t, b.Commit(ctx))

			v0, _ := s.Get(ctx, "C", 0)
			v1, _ := s.Get(ctx, "C", 1)
			assert.Equal(t, []byte("a"), v0)
			assert.Equal(t, []byte("b"), v1)
		})
	}
}

func TestTxnReadConflict(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "C", 0, []byte("base")))

			reader, err := s.Begin(ctx)
			require.NoError(t, err)
			writer, err := s.Begin(ctx)
			require.NoError(t, err)

			// Reader observes slot 0 and writes slot 1 based on it.
			_, err = reader.Get(ctx, "C", 0)
			require.NoError(t, err)
			require.NoError(t, reader.Set(ctx, "C", 1, []byte("derived")))

			// Writer invalidates the read before the reader commits.
			require.NoError(t, writer.Set(ctx, "C", 0, []byte("changed")))
			require.NoError(t, writer.Commit(ctx))

			assert.ErrorIs(t, reader.Commit(ctx), ErrConflict)
		})
	}
}

func TestTxnDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "C", 0, []byte("a")))

			txn, err := s.Begin(ctx)
			require.NoError(t, err)

			require.NoError(t, txn.Delete(ctx, "C", 0))

			// The transaction sees the slot as gone.
			v, err := txn.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Nil(t, v)

			// Nobody else does until commit.
			v, err = s.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), v)

			require.NoError(t, txn.Commit(ctx))

			v, err = s.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestTxnDeleteConflicts(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "C", 0, []byte("a")))

			reader, err := s.Begin(ctx)
			require.NoError(t, err)
			deleter, err := s.Begin(ctx)
			require.NoError(t, err)

			_, err = reader.Get(ctx, "C", 0)
			require.NoError(t, err)
			require.NoError(t, reader.Set(ctx, "C", 1, []byte("derived")))

			// The delete commits first and invalidates the read.
			require.NoError(t, deleter.Delete(ctx, "C", 0))
			require.NoError(t, deleter.Commit(ctx))

			assert.ErrorIs(t, reader.Commit(ctx), ErrConflict)
		})
	}
}

func TestTxnRollback(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			txn, err := s.Begin(ctx)
			require.NoError(t, err)

			require.NoError(t, txn.Set(ctx, "C", 0, []byte("x")))
			require.NoError(t, txn.Rollback(ctx))

			v, err := s.Get(ctx, "C", 0)
			require.NoError(t, err)
			assert.Nil(t, v)

			// A finished transaction rejects further use.
			_, err = txn.Get(ctx, "C", 0)
			assert.ErrorIs(t, err, ErrTxnDone)
			assert.ErrorIs(t, txn.Commit(ctx), ErrTxnDone)
		})
	}
}

func TestTxnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	txn, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, txn.Set(ctx, "A", 0, []byte("x")))
	require.NoError(t, txn.Set(ctx, "B", 7, []byte("y")))

	w := txn.Writes()
	assert.Len(t, w, 2)
	assert.Equal(t, []byte("x"), w[SlotKey{"A", 0}])
	assert.Equal(t, []byte("y"), w[SlotKey{"B", 7}])

	// Mutating the returned map must not leak into the transaction.
	w[SlotKey{"A", 0}][0] = 'z'
	v, err := txn.Get(ctx, "A", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), v)
}
