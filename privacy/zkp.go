package privacy

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcHash "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/fxamacker/cbor/v2"
)

// domainTagPreimage separates this circuit's hashes from any other use
// of MiMC over the same field.
var domainTagPreimage = domainSeparatorElement("SypherLang:preimage")

// preimageCircuit proves knowledge of a secret whose MiMC hash equals
// a public commitment.
type preimageCircuit struct {
	Commitment frontend.Variable `gnark:",public"`

	Secret frontend.Variable
}

// Define implements frontend.Circuit.
func (c *preimageCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(domainTagPreimage.BigInt(new(big.Int)))
	h.Write(c.Secret)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}

// proofEnvelope is the wire form of a proof object: the public
// commitment plus the serialized Groth16 proof over it.
type proofEnvelope struct {
	Commitment []byte `cbor:"1,keyasint"`
	Proof      []byte `cbor:"2,keyasint"`
}

// prover holds the compiled preimage circuit and its Groth16 keys.
// Compilation and trusted setup run once, lazily, on first use.
type prover struct {
	setupOnce sync.Once
	setupErr  error
	cs        constraint.ConstraintSystem
	pk        groth16.ProvingKey
	vk        groth16.VerifyingKey

	// groth16 prove/verify are not documented as concurrency-safe
	// over shared keys.
	proofMu sync.Mutex
}

func (p *prover) setup() error {
	p.setupOnce.Do(func() {
		cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &preimageCircuit{})
		if err != nil {
			p.setupErr = fmt.Errorf("compiling preimage circuit: %w", err)
			return
		}
		pk, vk, err := groth16.Setup(cs)
		if err != nil {
			p.setupErr = fmt.Errorf("groth16 setup: %w", err)
			return
		}
		p.cs, p.pk, p.vk = cs, pk, vk
	})
	return p.setupErr
}

// prove generates a proof of knowledge of secret and returns the
// encoded proof envelope.
func (p *prover) prove(secret []byte) ([]byte, error) {
	if err := p.setup(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}

	commitment := secretCommitment(secret)
	secretElement := bytesToFieldElement(secret)
	assignment := &preimageCircuit{
		Commitment: new(big.Int).SetBytes(commitment),
		Secret:     secretElement.BigInt(new(big.Int)),
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}

	p.proofMu.Lock()
	proof, err := groth16.Prove(p.cs, p.pk, w)
	p.proofMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGenerationFailed, err)
	}
	return encodeCBOR(proofEnvelope{Commitment: commitment, Proof: buf.Bytes()})
}

// verify checks an encoded proof envelope. Envelopes this package
// never produced are errors; a well-formed envelope whose proof does
// not check out is simply false.
func (p *prover) verify(encoded []byte) (bool, error) {
	if err := p.setup(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}

	var env proofEnvelope
	if err := cbor.Unmarshal(encoded, &env); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if len(env.Commitment) == 0 || len(env.Proof) == 0 {
		return false, ErrInvalidProof
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(env.Proof)); err != nil {
		return false, nil
	}

	public := &preimageCircuit{Commitment: new(big.Int).SetBytes(env.Commitment)}
	pw, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}

	p.proofMu.Lock()
	err = groth16.Verify(proof, p.vk, pw)
	p.proofMu.Unlock()
	return err == nil, nil
}

// secretCommitment computes the public MiMC commitment for a secret,
// matching the in-circuit hash byte for byte.
func secretCommitment(secret []byte) []byte {
	h := mimcHash.NewMiMC()
	h.Write(fieldElementBytes(domainTagPreimage))
	h.Write(fieldElementBytes(bytesToFieldElement(secret)))
	return h.Sum(nil)
}

// bytesToFieldElement reduces bytes into a BN254 scalar field element.
func bytesToFieldElement(data []byte) fr.Element {
	var e fr.Element
	e.SetBytes(data)
	return e
}

// fieldElementBytes returns the canonical 32-byte form of an element.
func fieldElementBytes(e fr.Element) []byte {
	b := e.Bytes()
	return b[:]
}

func domainSeparatorElement(tag string) fr.Element {
	var e fr.Element
	e.SetBytes([]byte(tag))
	return e
}
