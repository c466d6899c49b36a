package privacy

import (
	"crypto/subtle"
	"encoding/binary"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

const testProofTag = "SypherLang:test-proof"

// testProofEnvelope carries a commitment to the secret plus a
// checksum over the whole envelope, so that any single-byte
// corruption is caught by Verify.
type testProofEnvelope struct {
	Commitment []byte `cbor:"1,keyasint"`
	Checksum   []byte `cbor:"2,keyasint"`
}

// TestBackend is a deterministic, setup-free Backend for tests.
// Key generation is a counter hash instead of system randomness and
// proofs are hash commitments instead of Groth16, so virtual machine
// tests run in microseconds. Encryption, key exchange, and signature
// verification share the production code paths.
//
// Not secure. Never wire it into anything but tests.
type TestBackend struct {
	mu      sync.Mutex
	counter uint64
}

var _ Backend = (*TestBackend)(nil)

func NewTestBackend() *TestBackend {
	return &TestBackend{}
}

func (b *TestBackend) Prove(secret []byte) ([]byte, error) {
	h := sha3.New256()
	h.Write([]byte(testProofTag))
	h.Write(secret)
	commitment := h.Sum(nil)
	return encodeCBOR(testProofEnvelope{
		Commitment: commitment,
		Checksum:   testProofChecksum(commitment),
	})
}

func (b *TestBackend) Verify(proof []byte) (bool, error) {
	var env testProofEnvelope
	if err := cbor.Unmarshal(proof, &env); err != nil {
		return false, nil
	}
	if len(env.Commitment) == 0 || len(env.Checksum) == 0 {
		return false, nil
	}
	want := testProofChecksum(env.Commitment)
	return subtle.ConstantTimeCompare(want, env.Checksum) == 1, nil
}

func (b *TestBackend) Keygen() ([]byte, error) {
	b.mu.Lock()
	n := b.counter
	b.counter++
	b.mu.Unlock()

	h := sha3.New256()
	h.Write([]byte("SypherLang:test-seed"))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h.Write(buf[:])
	return keyMaterialFromSeed(h.Sum(nil))
}

func (b *TestBackend) Encrypt(key, plaintext []byte) ([]byte, error) {
	// Nonces come from a keyed hash stream so repeated runs produce
	// identical ciphertexts.
	shake := sha3.NewShake256()
	shake.Write([]byte("SypherLang:test-nonce"))
	shake.Write(key)
	shake.Write(plaintext)
	return latticeEncrypt(shake, key, plaintext)
}

func (b *TestBackend) Decrypt(key, ciphertext []byte) ([]byte, error) {
	return latticeDecrypt(key, ciphertext)
}

func (b *TestBackend) Exchange(a, c []byte) ([]byte, error) {
	return latticeExchange(a, c)
}

func (b *TestBackend) VerifySignature(key, message, sig []byte) (bool, error) {
	return latticeVerifySignature(key, message, sig)
}

func testProofChecksum(commitment []byte) []byte {
	h := sha3.New256()
	h.Write([]byte("SypherLang:test-proof-check"))
	h.Write(commitment)
	return h.Sum(nil)
}
