// Package privacy implements the cryptographic operations the virtual
// machine exposes as built-ins: zero-knowledge proof generation and
// verification, lattice-style key material, authenticated encryption,
// shared-secret key exchange, and signature verification.
//
// All values crossing the Backend boundary are opaque byte sequences.
// Callers store, forward, and compare them but never inspect their
// internal structure; the encoding is private to this package and may
// change between versions.
package privacy

import "errors"

var (
	ErrProofGenerationFailed   = errors.New("proof generation failed")
	ErrProofVerificationFailed = errors.New("proof verification failed")
	ErrInvalidProof            = errors.New("malformed proof object")
	ErrInvalidKeyMaterial      = errors.New("malformed key material")
	ErrDecryptionFailed        = errors.New("decryption failed")
	ErrKeyExchangeFailed       = errors.New("key exchange failed")
)

// Backend is the pluggable cryptographic capability injected into the
// virtual machine. Implementations must be safe for concurrent use:
// the scheduler invokes crypto built-ins from multiple workers.
//
// Verify and VerifySignature report tampering as a false result, not
// an error; errors are reserved for inputs this package never
// produced (truncated envelopes, foreign encodings).
type Backend interface {
	// Prove produces a proof of knowledge of secret without
	// revealing it. The returned proof object embeds everything a
	// verifier needs.
	Prove(secret []byte) ([]byte, error)

	// Verify checks a proof object produced by Prove. A corrupted
	// proof yields false or an error, never true.
	Verify(proof []byte) (bool, error)

	// Keygen generates fresh key material. Successive calls return
	// distinct values.
	Keygen() ([]byte, error)

	// Encrypt seals plaintext under the given key material.
	Encrypt(key, plaintext []byte) ([]byte, error)

	// Decrypt opens a ciphertext produced by Encrypt. A wrong key or
	// a corrupted ciphertext fails with ErrDecryptionFailed.
	Decrypt(key, ciphertext []byte) ([]byte, error)

	// Exchange derives a shared secret from two parties' key
	// material. It is symmetric: Exchange(a, b) and Exchange(b, a)
	// return the same derived key material.
	Exchange(a, b []byte) ([]byte, error)

	// VerifySignature checks a detached signature over message made
	// with Sign under the same key material.
	VerifySignature(key, message, sig []byte) (bool, error)
}
