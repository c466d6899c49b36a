package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProveVerifyRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	b := NewDefaultBackend()

	proof, err := b.Prove([]byte{42})
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	ok, err := b.Verify(proof)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyCorruptedProof(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	b := NewDefaultBackend()

	proof, err := b.Prove([]byte("secret"))
	require.NoError(t, err)

	// Flip one byte anywhere in the envelope. Verification must
	// never come back true.
	for _, i := range []int{0, len(proof) / 2, len(proof) - 1} {
		corrupted := make([]byte, len(proof))
		copy(corrupted, proof)
		corrupted[i] ^= 0x01

		ok, _ := b.Verify(corrupted)
		assert.False(t, ok, "corrupted byte %d verified", i)
	}
}

func TestVerifyGarbage(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	b := NewDefaultBackend()

	for _, input := range [][]byte{nil, {}, []byte("not a proof")} {
		ok, _ := b.Verify(input)
		assert.False(t, ok)
	}
}

func TestSecretCommitmentDeterministic(t *testing.T) {
	a := secretCommitment([]byte("hello"))
	b := secretCommitment([]byte("hello"))
	c := secretCommitment([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.LessOrEqual(t, len(a), 32)
}

func TestTestBackendProveVerify(t *testing.T) {
	b := NewTestBackend()

	proof, err := b.Prove([]byte{42})
	require.NoError(t, err)

	ok, err := b.Verify(proof)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, i := range []int{0, len(proof) / 2, len(proof) - 1} {
		corrupted := make([]byte, len(proof))
		copy(corrupted, proof)
		corrupted[i] ^= 0x01

		ok, _ := b.Verify(corrupted)
		assert.False(t, ok, "corrupted byte %d verified", i)
	}

	ok, err = b.Verify([]byte("garbage"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTestBackendProveDeterministic(t *testing.T) {
	b := NewTestBackend()

	p1, err := b.Prove([]byte("x"))
	require.NoError(t, err)
	p2, err := b.Prove([]byte("x"))
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
}
