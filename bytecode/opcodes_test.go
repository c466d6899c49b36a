package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xFE)
	if !strings.HasPrefix(op.String(), "UNKNOWN") {
		t.Errorf("String() = %q, want UNKNOWN prefix", op.String())
	}
	if op.OperandLen() != 0 {
		t.Errorf("OperandLen() = %d, want 0", op.OperandLen())
	}
}

func TestOperandLengths(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpNop, 0},
		{OpConst, 2},
		{OpLoadLocal, 1},
		{OpStoreLocal, 1},
		{OpLoadState, 4},
		{OpStoreState, 4},
		{OpJump, 2},
		{OpJumpFalse, 2},
		{OpCall, 3},
		{OpSpawn, 3},
		{OpEmit, 3},
		{OpAdd, 0},
		{OpProve, 0},
		{OpJoin, 0},
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.want {
			t.Errorf("%s OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
		if got := tt.op.InstructionLen(); got != tt.want+1 {
			t.Errorf("%s InstructionLen() = %d, want %d", tt.op, got, tt.want+1)
		}
	}
}

func TestOpcodeClassification(t *testing.T) {
	if !OpJump.IsJump() || !OpJumpFalse.IsJump() {
		t.Error("jump opcodes not classified as jumps")
	}
	if OpCall.IsJump() {
		t.Error("CALL classified as jump")
	}
	if !OpRet.IsReturn() || !OpRetVoid.IsReturn() {
		t.Error("return opcodes not classified as returns")
	}
	for _, op := range []Opcode{OpProve, OpVerify, OpLatticeKeygen, OpLatticeEncrypt, OpLatticeDecrypt, OpExchangeKey, OpSigVerify} {
		if !op.IsCrypto() {
			t.Errorf("%s not classified as crypto", op)
		}
	}
	if OpAdd.IsCrypto() {
		t.Error("ADD classified as crypto")
	}
}

func TestOpcodeRangesDistinct(t *testing.T) {
	seen := map[Opcode]bool{}
	for _, op := range AllOpcodes() {
		if seen[op] {
			t.Errorf("opcode 0x%02X defined twice", byte(op))
		}
		seen[op] = true
	}
	if OpcodeCount() != len(seen) {
		t.Errorf("OpcodeCount() = %d, want %d", OpcodeCount(), len(seen))
	}
}
