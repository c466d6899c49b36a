package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Static type system: int, bool, string, address, mapping(K,V), proof, key
// ---------------------------------------------------------------------------

// TypeKind identifies a builtin type.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeVoid
	TypeInt
	TypeBool
	TypeString
	TypeAddress
	TypeProof
	TypeKey
	TypeCiphertext
	TypeMapping
	TypeHandle
)

var typeKindNames = map[TypeKind]string{
	TypeInvalid:    "invalid",
	TypeVoid:       "void",
	TypeInt:        "int",
	TypeBool:       "bool",
	TypeString:     "string",
	TypeAddress:    "address",
	TypeProof:      "proof",
	TypeKey:        "key",
	TypeCiphertext: "ciphertext",
	TypeMapping:    "mapping",
	TypeHandle:     "handle",
}

func (k TypeKind) String() string {
	if name, ok := typeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// Type is a resolved static type. Mapping types carry their key and
// value types; all other kinds stand alone.
type Type struct {
	Kind  TypeKind
	Key   *Type // mapping key type
	Value *Type // mapping value type
}

// Singleton types for the scalar kinds.
var (
	VoidType       = Type{Kind: TypeVoid}
	IntType        = Type{Kind: TypeInt}
	BoolType       = Type{Kind: TypeBool}
	StringType     = Type{Kind: TypeString}
	AddressType    = Type{Kind: TypeAddress}
	ProofType      = Type{Kind: TypeProof}
	KeyType        = Type{Kind: TypeKey}
	CiphertextType = Type{Kind: TypeCiphertext}
)

// MappingType builds a mapping(K,V) type.
func MappingType(key, value Type) Type {
	return Type{Kind: TypeMapping, Key: &key, Value: &value}
}

// HandleType builds the type of a spawned-call handle whose join
// yields a value of the given result type.
func HandleType(result Type) Type {
	return Type{Kind: TypeHandle, Value: &result}
}

// Equal reports structural type equality.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind == TypeMapping {
		return t.Key.Equal(*other.Key) && t.Value.Equal(*other.Value)
	}
	if t.Kind == TypeHandle {
		return t.Value.Equal(*other.Value)
	}
	return true
}

// IsMapping reports whether t is a mapping type.
func (t Type) IsMapping() bool { return t.Kind == TypeMapping }

// Comparable reports whether values of t support == and !=.
func (t Type) Comparable() bool {
	return t.Kind != TypeMapping && t.Kind != TypeVoid && t.Kind != TypeHandle
}

// Ordered reports whether values of t support < <= > >=.
func (t Type) Ordered() bool { return t.Kind == TypeInt || t.Kind == TypeString }

func (t Type) String() string {
	if t.Kind == TypeMapping {
		return fmt.Sprintf("mapping(%s,%s)", t.Key, t.Value)
	}
	if t.Kind == TypeHandle {
		return fmt.Sprintf("handle(%s)", t.Value)
	}
	return t.Kind.String()
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// StorageClass says where a variable lives at runtime.
type StorageClass int

const (
	StorageLocal StorageClass = iota
	StorageParam
	StorageState
)

func (s StorageClass) String() string {
	switch s {
	case StorageLocal:
		return "local"
	case StorageParam:
		return "parameter"
	case StorageState:
		return "contract-state"
	default:
		return fmt.Sprintf("StorageClass(%d)", int(s))
	}
}

// Symbol is one resolved declaration in a lexical scope.
type Symbol struct {
	Name     string
	Type     Type
	Depth    int // scope depth, 0 = function top level
	Mutable  bool
	Storage  StorageClass
	Slot     int    // local slot or state storage slot
	Contract string // owning contract for state symbols
	Public   bool   // state symbols only
}
