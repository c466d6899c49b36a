package vm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Kind identifies the runtime type of a Value.
type Kind uint8

const (
	KindInt Kind = iota
	KindBool
	KindString
	KindAddress
	KindProof
	KindKey
	KindCiphertext
	KindMap

	// KindHandle is the result of spawning a call. Handles live only
	// on the operand stack and in locals; they are never stored.
	KindHandle
)

var kindNames = map[Kind]string{
	KindInt:        "int",
	KindBool:       "bool",
	KindString:     "string",
	KindAddress:    "address",
	KindProof:      "proof",
	KindKey:        "key",
	KindCiphertext: "ciphertext",
	KindMap:        "mapping",
	KindHandle:     "handle",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// AddressLen is the byte length of an address value.
const AddressLen = 20

// Value is a runtime value on the operand stack and in contract
// storage. Exactly one payload field is meaningful for a given Kind:
// Int for int and bool (bool is 0 or 1), Str for string, Bytes for
// address/proof/key/ciphertext, Entries for mappings.
//
// Proof, key, and ciphertext payloads are opaque: the machine stores,
// forwards, and compares them but never inspects their bytes.
type Value struct {
	Kind    Kind
	Int     int64
	Str     string
	Bytes   []byte
	Entries map[string]Value
}

func IntValue(n int64) Value { return Value{Kind: KindInt, Int: n} }

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func BoolValue(b bool) Value {
	v := Value{Kind: KindBool}
	if b {
		v.Int = 1
	}
	return v
}

func AddressValue(addr [AddressLen]byte) Value {
	return Value{Kind: KindAddress, Bytes: addr[:]}
}

func ProofValue(b []byte) Value      { return Value{Kind: KindProof, Bytes: b} }
func KeyValue(b []byte) Value        { return Value{Kind: KindKey, Bytes: b} }
func CiphertextValue(b []byte) Value { return Value{Kind: KindCiphertext, Bytes: b} }

// MapValue creates an empty mapping. valueType names the element
// type so reads of absent keys yield the right zero value; it rides
// in the Str field.
func MapValue(valueType string) Value {
	return Value{Kind: KindMap, Str: valueType, Entries: make(map[string]Value)}
}

// ParseAddress decodes a 20-byte address from hex, with or without a
// 0x prefix.
func ParseAddress(s string) (Value, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Value{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != AddressLen {
		return Value{}, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, AddressLen, len(b))
	}
	var addr [AddressLen]byte
	copy(addr[:], b)
	return AddressValue(addr), nil
}

// IsTruthy reports the boolean interpretation of a bool value. Only
// bool values are truthy or falsy; callers check Kind first.
func (v Value) IsTruthy() bool { return v.Int != 0 }

// Equal reports deep equality. Opaque byte values compare by content,
// never by provenance.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt, KindBool:
		return v.Int == o.Int
	case KindString:
		return v.Str == o.Str
	case KindAddress, KindProof, KindKey, KindCiphertext:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindMap:
		if len(v.Entries) != len(o.Entries) {
			return false
		}
		for k, ve := range v.Entries {
			oe, ok := o.Entries[k]
			if !ok || !ve.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for traces and event logs.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		if v.Int != 0 {
			return "true"
		}
		return "false"
	case KindString:
		return strconv.Quote(v.Str)
	case KindAddress:
		return "0x" + hex.EncodeToString(v.Bytes)
	case KindProof, KindKey, KindCiphertext:
		return fmt.Sprintf("%s(%d bytes)", v.Kind, len(v.Bytes))
	case KindMap:
		return fmt.Sprintf("mapping(%d entries)", len(v.Entries))
	}
	return v.Kind.String()
}

// mapKey returns the canonical storage key for a mapping index. The
// compiler restricts mapping keys to int, bool, string, and address,
// so every reachable kind has a stable textual form.
func (v Value) mapKey() string {
	switch v.Kind {
	case KindInt, KindBool:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case KindString:
		return "s:" + v.Str
	case KindAddress:
		return "a:" + hex.EncodeToString(v.Bytes)
	}
	return "x:" + v.String()
}

// wireValue is the CBOR form a Value takes in contract storage.
type wireValue struct {
	Kind    uint8                `cbor:"1,keyasint"`
	Int     int64                `cbor:"2,keyasint,omitempty"`
	Str     string               `cbor:"3,keyasint,omitempty"`
	Bytes   []byte               `cbor:"4,keyasint,omitempty"`
	Entries map[string]wireValue `cbor:"5,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
}

func toWire(v Value) wireValue {
	w := wireValue{Kind: uint8(v.Kind), Int: v.Int, Str: v.Str, Bytes: v.Bytes}
	if v.Entries != nil {
		w.Entries = make(map[string]wireValue, len(v.Entries))
		for k, e := range v.Entries {
			w.Entries[k] = toWire(e)
		}
	}
	return w
}

func fromWire(w wireValue) Value {
	v := Value{Kind: Kind(w.Kind), Int: w.Int, Str: w.Str, Bytes: w.Bytes}
	if w.Entries != nil {
		v.Entries = make(map[string]Value, len(w.Entries))
		for k, e := range w.Entries {
			v.Entries[k] = fromWire(e)
		}
	}
	return v
}

// EncodeValue serializes a value for contract storage. The encoding
// is deterministic so identical values produce identical slot bytes.
func EncodeValue(v Value) ([]byte, error) {
	return encMode.Marshal(toWire(v))
}

// DecodeValue deserializes a storage slot back into a value.
func DecodeValue(data []byte) (Value, error) {
	var w wireValue
	if err := decMode.Unmarshal(data, &w); err != nil {
		return Value{}, fmt.Errorf("decoding stored value: %w", err)
	}
	return fromWire(w), nil
}

// zeroValue returns the initial value of a storage slot or local for
// a declared type name, as the compiler renders type names.
func zeroValue(typeName string) Value {
	switch typeName {
	case "bool":
		return BoolValue(false)
	case "string":
		return StringValue("")
	case "address":
		return Value{Kind: KindAddress, Bytes: make([]byte, AddressLen)}
	case "proof":
		return Value{Kind: KindProof}
	case "key":
		return Value{Kind: KindKey}
	case "ciphertext":
		return Value{Kind: KindCiphertext}
	}
	if strings.HasPrefix(typeName, "mapping(") {
		return MapValue(mappingValueType(typeName))
	}
	return IntValue(0)
}

// mappingValueType extracts V from "mapping(K,V)". The compiler
// rejects mapping-valued mappings, so V never contains a comma.
func mappingValueType(typeName string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(typeName, "mapping("), ")")
	if i := strings.IndexByte(inner, ','); i >= 0 {
		return inner[i+1:]
	}
	return "int"
}
