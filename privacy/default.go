package privacy

import "crypto/rand"

// DefaultBackend is the production Backend: Groth16 proofs over a
// MiMC preimage commitment, and lattice key material with HKDF-derived
// XChaCha20-Poly1305 encryption. The zero value is not usable; call
// NewDefaultBackend.
//
// The first Prove or Verify pays for circuit compilation and trusted
// setup; subsequent calls reuse the keys.
type DefaultBackend struct {
	prover prover
}

var _ Backend = (*DefaultBackend)(nil)

func NewDefaultBackend() *DefaultBackend {
	return &DefaultBackend{}
}

func (b *DefaultBackend) Prove(secret []byte) ([]byte, error) {
	return b.prover.prove(secret)
}

func (b *DefaultBackend) Verify(proof []byte) (bool, error) {
	return b.prover.verify(proof)
}

func (b *DefaultBackend) Keygen() ([]byte, error) {
	return latticeKeygen(rand.Reader)
}

func (b *DefaultBackend) Encrypt(key, plaintext []byte) ([]byte, error) {
	return latticeEncrypt(rand.Reader, key, plaintext)
}

func (b *DefaultBackend) Decrypt(key, ciphertext []byte) ([]byte, error) {
	return latticeDecrypt(key, ciphertext)
}

func (b *DefaultBackend) Exchange(a, c []byte) ([]byte, error) {
	return latticeExchange(a, c)
}

func (b *DefaultBackend) VerifySignature(key, message, sig []byte) (bool, error) {
	return latticeVerifySignature(key, message, sig)
}
