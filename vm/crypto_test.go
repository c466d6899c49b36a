package vm

import (
	"context"
	"testing"

	"github.com/CipherCoRetech/SypherLang/privacy"
)

func TestProveVerifyInLanguage(t *testing.T) {
	src := `
function roundtrip(): bool {
    proof p = prove(42);
    return verify(p);
}
`
	m, _ := newTestMachine(t, src, Options{})
	got := returned(t, run(t, m, "roundtrip", nil))
	if !got.IsTruthy() {
		t.Error("verify(prove(42)) = false, want true")
	}
}

func TestBuiltinAliases(t *testing.T) {
	src := `
function roundtrip(): bool {
    proof p = prove_privacy(7);
    return verify_proof(p);
}
`
	m, _ := newTestMachine(t, src, Options{})
	got := returned(t, run(t, m, "roundtrip", nil))
	if !got.IsTruthy() {
		t.Error("verify_proof(prove_privacy(7)) = false, want true")
	}
}

func TestVerifyCorruptedProofValue(t *testing.T) {
	// Corrupt the proof between prove and verify, outside the
	// language: generate it with the backend, damage it, and feed it
	// in as an input.
	src := `
function check(p: proof): bool {
    return verify(p);
}
`
	m, _ := newTestMachine(t, src, Options{})

	backend := privacy.NewTestBackend()
	proof, err := backend.Prove([]byte{0, 0, 0, 0, 0, 0, 0, 42})
	if err != nil {
		t.Fatalf("Prove() error: %v", err)
	}

	got := returned(t, run(t, m, "check", map[string]Value{"p": ProofValue(proof)}))
	if !got.IsTruthy() {
		t.Fatal("intact proof rejected")
	}

	corrupted := make([]byte, len(proof))
	copy(corrupted, proof)
	corrupted[len(corrupted)/2] ^= 0x01
	got = returned(t, run(t, m, "check", map[string]Value{"p": ProofValue(corrupted)}))
	if got.IsTruthy() {
		t.Error("corrupted proof verified")
	}
}

func TestKeyExchange(t *testing.T) {
	src := `
function distinct(): bool {
    lattice_keypair alice;
    lattice_keypair bob;
    return alice == bob;
}

function shared(): bool {
    lattice_keypair alice;
    lattice_keypair bob;
    let ab = exchange_key(alice, bob);
    let ba = exchange_key(bob, alice);
    return ab == ba;
}
`
	m, _ := newTestMachine(t, src, Options{})

	if got := returned(t, run(t, m, "distinct", nil)); got.IsTruthy() {
		t.Error("two generated keypairs compare equal")
	}
	if got := returned(t, run(t, m, "shared", nil)); !got.IsTruthy() {
		t.Error("exchange_key is not symmetric")
	}
}

func TestEncryptDecryptInLanguage(t *testing.T) {
	src := `
function roundtrip(msg: string): string {
    lattice_keypair k;
    let c = encrypt(k, msg);
    return decrypt(k, c);
}

function sealed(msg: string): bool {
    lattice_keypair k;
    let c = encrypt(k, msg);
    let c2 = encrypt(k, msg);
    return c == c2;
}
`
	m, _ := newTestMachine(t, src, Options{})

	got := returned(t, run(t, m, "roundtrip", map[string]Value{"msg": StringValue("secret ballot")}))
	if got.Str != "secret ballot" {
		t.Errorf("decrypt(encrypt(msg)) = %q, want %q", got.Str, "secret ballot")
	}
	// The deterministic test backend seals the same message to the
	// same bytes; the point here is that ciphertexts are comparable
	// opaque values.
	if got := returned(t, run(t, m, "sealed", map[string]Value{"msg": StringValue("x")})); !got.IsTruthy() {
		t.Error("equal ciphertexts compare unequal")
	}
}

func TestDecryptWrongKeyTraps(t *testing.T) {
	src := `
function crossed(msg: string): string {
    lattice_keypair alice;
    lattice_keypair bob;
    let c = encrypt(alice, msg);
    return decrypt(bob, c);
}
`
	m, _ := newTestMachine(t, src, Options{})
	_, err := m.Execute(context.Background(), "crossed", map[string]Value{"msg": StringValue("hi")})
	if !IsTrap(err, TrapDecryptionFailed) {
		t.Fatalf("got %v, want DecryptionFailed trap", err)
	}
}

func TestSignatureVerification(t *testing.T) {
	// Signatures are produced outside contract code and checked
	// inside it.
	backend := privacy.NewTestBackend()
	key, err := backend.Keygen()
	if err != nil {
		t.Fatalf("Keygen() error: %v", err)
	}
	sig, err := privacy.Sign(key, []byte("pay 5"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	src := `
function check(k: key, msg: string, sig: ciphertext): bool {
    return verify_sig(k, msg, sig);
}
`
	m, _ := newTestMachine(t, src, Options{})

	inputs := map[string]Value{
		"k":   KeyValue(key),
		"msg": StringValue("pay 5"),
		"sig": CiphertextValue(sig),
	}
	if got := returned(t, run(t, m, "check", inputs)); !got.IsTruthy() {
		t.Error("valid signature rejected")
	}

	inputs["msg"] = StringValue("pay 500")
	if got := returned(t, run(t, m, "check", inputs)); got.IsTruthy() {
		t.Error("signature verified against a different message")
	}
}
