package compiler

// ---------------------------------------------------------------------------
// Privacy/crypto builtins
//
// Builtins parse as ordinary call expressions; the semantic analyzer
// resolves their names and checks their fixed signatures.
// ---------------------------------------------------------------------------

// Builtin identifies a privacy/crypto builtin function.
type Builtin int

const (
	BuiltinNone Builtin = iota
	BuiltinKeygen
	BuiltinEncrypt
	BuiltinDecrypt
	BuiltinExchangeKey
	BuiltinProve
	BuiltinVerify
	BuiltinVerifySig
)

func (b Builtin) String() string {
	switch b {
	case BuiltinKeygen:
		return "lattice_keypair"
	case BuiltinEncrypt:
		return "encrypt"
	case BuiltinDecrypt:
		return "decrypt"
	case BuiltinExchangeKey:
		return "exchange_key"
	case BuiltinProve:
		return "prove_privacy"
	case BuiltinVerify:
		return "verify_proof"
	case BuiltinVerifySig:
		return "verify_sig"
	default:
		return "none"
	}
}

// builtinSig is the fixed signature of a builtin.
type builtinSig struct {
	id     Builtin
	params []Type
	ret    Type
}

// builtinTable maps callable names to builtin signatures. prove and
// verify are accepted as short aliases.
var builtinTable = map[string]builtinSig{
	"lattice_keypair": {BuiltinKeygen, nil, KeyType},
	"encrypt":         {BuiltinEncrypt, []Type{KeyType, StringType}, CiphertextType},
	"decrypt":         {BuiltinDecrypt, []Type{KeyType, CiphertextType}, StringType},
	"exchange_key":    {BuiltinExchangeKey, []Type{KeyType, KeyType}, KeyType},
	"prove_privacy":   {BuiltinProve, []Type{IntType}, ProofType},
	"prove":           {BuiltinProve, []Type{IntType}, ProofType},
	"verify_proof":    {BuiltinVerify, []Type{ProofType}, BoolType},
	"verify":          {BuiltinVerify, []Type{ProofType}, BoolType},
	"verify_sig":      {BuiltinVerifySig, []Type{KeyType, StringType, CiphertextType}, BoolType},
}

// IsBuiltinName reports whether name is reserved for a builtin.
func IsBuiltinName(name string) bool {
	_, ok := builtinTable[name]
	return ok
}
