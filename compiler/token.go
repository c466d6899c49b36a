package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the SypherLang lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt    // 42
	TokenString // "hello"

	TokenIdentifier // foo, Bar

	// Keywords
	TokenContract
	TokenFunction
	TokenLet
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenTrue
	TokenFalse
	TokenPublic
	TokenPrivate
	TokenEmit
	TokenSpawn
	TokenJoin
	TokenLatticeKeypair

	// Type keywords
	TokenTypeInt
	TokenTypeBool
	TokenTypeString
	TokenTypeAddress
	TokenTypeMapping
	TokenTypeProof
	TokenTypeKey
	TokenTypeCiphertext

	// Operators
	TokenAssign  // =
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // ==
	TokenNe      // !=
	TokenLt      // <
	TokenLe      // <=
	TokenGt      // >
	TokenGe      // >=
	TokenAndAnd  // &&
	TokenOrOr    // ||
	TokenBang    // !

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenDot       // .
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "EOF",
	TokenError:          "ERROR",
	TokenInt:            "INT",
	TokenString:         "STRING",
	TokenIdentifier:     "IDENTIFIER",
	TokenContract:       "contract",
	TokenFunction:       "function",
	TokenLet:            "let",
	TokenReturn:         "return",
	TokenIf:             "if",
	TokenElse:           "else",
	TokenWhile:          "while",
	TokenTrue:           "true",
	TokenFalse:          "false",
	TokenPublic:         "public",
	TokenPrivate:        "private",
	TokenEmit:           "emit",
	TokenSpawn:          "spawn",
	TokenJoin:           "join",
	TokenLatticeKeypair: "lattice_keypair",
	TokenTypeInt:        "int",
	TokenTypeBool:       "bool",
	TokenTypeString:     "string",
	TokenTypeAddress:    "address",
	TokenTypeMapping:    "mapping",
	TokenTypeProof:      "proof",
	TokenTypeKey:        "key",
	TokenTypeCiphertext: "ciphertext",
	TokenAssign:         "=",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenSlash:          "/",
	TokenPercent:        "%",
	TokenEq:             "==",
	TokenNe:             "!=",
	TokenLt:             "<",
	TokenLe:             "<=",
	TokenGt:             ">",
	TokenGe:             ">=",
	TokenAndAnd:         "&&",
	TokenOrOr:           "||",
	TokenBang:           "!",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenComma:          ",",
	TokenSemicolon:      ";",
	TokenColon:          ":",
	TokenDot:            ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

// reservedWords maps reserved identifiers to their token types.
var reservedWords = map[string]TokenType{
	"contract":        TokenContract,
	"function":        TokenFunction,
	"let":             TokenLet,
	"return":          TokenReturn,
	"if":              TokenIf,
	"else":            TokenElse,
	"while":           TokenWhile,
	"true":            TokenTrue,
	"false":           TokenFalse,
	"public":          TokenPublic,
	"private":         TokenPrivate,
	"emit":            TokenEmit,
	"spawn":           TokenSpawn,
	"join":            TokenJoin,
	"lattice_keypair": TokenLatticeKeypair,
	"int":             TokenTypeInt,
	"bool":            TokenTypeBool,
	"string":          TokenTypeString,
	"address":         TokenTypeAddress,
	"mapping":         TokenTypeMapping,
	"proof":           TokenTypeProof,
	"key":             TokenTypeKey,
	"ciphertext":      TokenTypeCiphertext,
}

// IsTypeKeyword reports whether t names a builtin type.
func (t TokenType) IsTypeKeyword() bool {
	switch t {
	case TokenTypeInt, TokenTypeBool, TokenTypeString, TokenTypeAddress,
		TokenTypeMapping, TokenTypeProof, TokenTypeKey, TokenTypeCiphertext:
		return true
	}
	return false
}
