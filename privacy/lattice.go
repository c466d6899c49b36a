package privacy

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const (
	// SeedSize is the length of the private half of key material.
	SeedSize = 32

	// derived per-message AEAD keys
	derivedKeySize = chacha20poly1305.KeySize
	nonceSize      = chacha20poly1305.NonceSizeX

	hkdfInfo = "sypherlang-lattice-v1"

	pubTag      = "SypherLang:pub"
	exchangeTag = "SypherLang:exchange"
	sigTag      = "SypherLang:sig"
)

// keyMaterial is the wire form of an opaque key value: a secret seed
// and the public half derived from it. The seed never appears in
// ciphertexts, proofs, or signatures.
type keyMaterial struct {
	Seed []byte `cbor:"1,keyasint"`
	Pub  []byte `cbor:"2,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

func encodeCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decodeKeyMaterial(encoded []byte) (keyMaterial, error) {
	var km keyMaterial
	if err := cbor.Unmarshal(encoded, &km); err != nil {
		return keyMaterial{}, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if len(km.Seed) != SeedSize || len(km.Pub) == 0 {
		return keyMaterial{}, ErrInvalidKeyMaterial
	}
	return km, nil
}

// keyMaterialFromSeed derives the public half and encodes the pair.
func keyMaterialFromSeed(seed []byte) ([]byte, error) {
	pub := sha3.Sum256(append([]byte(pubTag), seed...))
	return encodeCBOR(keyMaterial{Seed: seed, Pub: pub[:]})
}

// latticeKeygen draws a fresh seed from random and packages it as key
// material. The randomness source is a parameter so deterministic
// backends can reuse the same derivation.
func latticeKeygen(random io.Reader) ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(random, seed); err != nil {
		return nil, fmt.Errorf("generating key seed: %w", err)
	}
	return keyMaterialFromSeed(seed)
}

// messageKey derives the per-message AEAD key from key material. The
// public half salts the derivation so unrelated keys with colliding
// seeds (a deterministic backend concern) still diverge.
func messageKey(km keyMaterial) ([]byte, error) {
	key := make([]byte, derivedKeySize)
	r := hkdf.New(sha256.New, km.Seed, km.Pub, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving message key: %w", err)
	}
	return key, nil
}

// latticeEncrypt seals plaintext under the key material. The result
// is nonce-prefixed; the public half binds the ciphertext to the key
// as associated data.
func latticeEncrypt(random io.Reader, encodedKey, plaintext []byte) ([]byte, error) {
	km, err := decodeKeyMaterial(encodedKey)
	if err != nil {
		return nil, err
	}
	key, err := messageKey(km)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, km.Pub)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	return append(out, sealed...), nil
}

// latticeDecrypt opens a nonce-prefixed ciphertext. Wrong key and
// tampered ciphertext are indistinguishable to the caller.
func latticeDecrypt(encodedKey, ciphertext []byte) ([]byte, error) {
	km, err := decodeKeyMaterial(encodedKey)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < nonceSize {
		return nil, ErrDecryptionFailed
	}
	key, err := messageKey(km)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], km.Pub)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// latticeExchange derives a shared secret from two parties' key
// material. The derivation hashes the two public halves in a
// canonical order, so both parties arrive at identical key material.
func latticeExchange(a, b []byte) ([]byte, error) {
	ka, err := decodeKeyMaterial(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}
	kb, err := decodeKeyMaterial(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyExchangeFailed, err)
	}

	lo, hi := ka.Pub, kb.Pub
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	h := sha3.New256()
	h.Write([]byte(exchangeTag))
	h.Write(lo)
	h.Write(hi)
	return keyMaterialFromSeed(h.Sum(nil))
}

// Sign produces a detached signature over message under the given key
// material. There is no source-language built-in for signing;
// signatures originate outside contract code and are checked inside
// it with verify_sig.
func Sign(encodedKey, message []byte) ([]byte, error) {
	km, err := decodeKeyMaterial(encodedKey)
	if err != nil {
		return nil, err
	}
	return signatureDigest(km, message), nil
}

func signatureDigest(km keyMaterial, message []byte) []byte {
	h := sha3.New256()
	h.Write([]byte(sigTag))
	h.Write(km.Seed)
	h.Write(km.Pub)
	h.Write(message)
	return h.Sum(nil)
}

// latticeVerifySignature checks a detached signature made with Sign.
func latticeVerifySignature(encodedKey, message, sig []byte) (bool, error) {
	km, err := decodeKeyMaterial(encodedKey)
	if err != nil {
		return false, err
	}
	want := signatureDigest(km, message)
	return subtle.ConstantTimeCompare(want, sig) == 1, nil
}
