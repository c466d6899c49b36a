package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Magic bytes for compiled module files: "SYBC" (SypherLang ByteCode).
var ModuleMagic = []byte{'S', 'Y', 'B', 'C'}

// encMode is the deterministic CBOR encoder shared by all modules.
// Core-deterministic encoding makes compiled output byte-stable, so
// identical source always hashes to identical artifacts.
var encMode cbor.EncMode

// decMode rejects unknown fields and duplicate map keys on load.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: cbor encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: cbor decode mode: %v", err))
	}
}

// Serialize encodes the module to bytes for storage and transport.
// Format: [magic:4] followed by a deterministic CBOR encoding of the
// module struct.
func (m *Module) Serialize() ([]byte, error) {
	body, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode module: %w", err)
	}
	buf := make([]byte, 0, len(ModuleMagic)+len(body))
	buf = append(buf, ModuleMagic...)
	buf = append(buf, body...)
	return buf, nil
}

// Deserialize decodes a module from bytes produced by Serialize.
func Deserialize(data []byte) (*Module, error) {
	if len(data) < len(ModuleMagic) {
		return nil, fmt.Errorf("bytecode too short: need at least %d bytes, got %d", len(ModuleMagic), len(data))
	}
	if string(data[:4]) != string(ModuleMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", ModuleMagic, data[:4])
	}

	var m Module
	if err := decMode.Unmarshal(data[4:], &m); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if m.Version > ModuleVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", m.Version, ModuleVersion)
	}
	return &m, nil
}
