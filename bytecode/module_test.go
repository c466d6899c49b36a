package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewModule(t *testing.T) {
	m := NewModule()

	if m.Version != ModuleVersion {
		t.Errorf("Version = %d, want %d", m.Version, ModuleVersion)
	}
	if m.Code == nil {
		t.Error("Code is nil")
	}
}

func TestModuleAddConstant(t *testing.T) {
	m := NewModule()

	idx0 := m.AddConstant(IntConstant(42))
	if idx0 != 0 {
		t.Errorf("first constant index = %d, want 0", idx0)
	}

	idx1 := m.AddConstant(StringConstant("hello"))
	if idx1 != 1 {
		t.Errorf("second constant index = %d, want 1", idx1)
	}

	// Duplicates return the existing index.
	if idx := m.AddConstant(IntConstant(42)); idx != 0 {
		t.Errorf("duplicate int index = %d, want 0", idx)
	}

	// An int and a string never collide, even with similar content.
	idx2 := m.AddConstant(IntConstant(0))
	idx3 := m.AddConstant(StringConstant(""))
	if idx2 == idx3 {
		t.Errorf("int 0 and empty string share index %d", idx2)
	}
}

func TestModuleEmit(t *testing.T) {
	m := NewModule()

	if off := m.Emit(OpNop); off != 0 {
		t.Errorf("first emit offset = %d, want 0", off)
	}
	if off := m.EmitU8(OpLoadLocal, 3); off != 1 {
		t.Errorf("second emit offset = %d, want 1", off)
	}
	if off := m.EmitU16(OpConst, 0x0102); off != 3 {
		t.Errorf("third emit offset = %d, want 3", off)
	}

	want := []byte{byte(OpNop), byte(OpLoadLocal), 3, byte(OpConst), 0x01, 0x02}
	if !bytes.Equal(m.Code, want) {
		t.Errorf("Code = %v, want %v", m.Code, want)
	}
}

func TestModuleJumpPatching(t *testing.T) {
	m := NewModule()

	placeholder := m.EmitJump(OpJumpFalse)
	m.Emit(OpNop)
	m.Emit(OpNop)
	m.PatchJump(placeholder)

	// Jump lands after the two NOPs: delta = 2.
	if m.Code[placeholder] != 0 || m.Code[placeholder+1] != 2 {
		t.Errorf("patched offset = %d,%d, want 0,2", m.Code[placeholder], m.Code[placeholder+1])
	}
}

func TestModuleEmitLoop(t *testing.T) {
	m := NewModule()

	loopStart := m.CurrentOffset()
	m.Emit(OpNop)
	m.EmitLoop(loopStart)

	// After the jump the pc sits at offset 4; the loop start is 0, so
	// the encoded delta is -4.
	delta := int16(uint16(m.Code[2])<<8 | uint16(m.Code[3]))
	if delta != -4 {
		t.Errorf("loop delta = %d, want -4", delta)
	}
}

func TestModuleContractIndex(t *testing.T) {
	m := NewModule()

	if idx := m.ContractIndex("Vault"); idx != 0 {
		t.Errorf("first contract index = %d, want 0", idx)
	}
	if idx := m.ContractIndex("Token"); idx != 1 {
		t.Errorf("second contract index = %d, want 1", idx)
	}
	if idx := m.ContractIndex("Vault"); idx != 0 {
		t.Errorf("repeat contract index = %d, want 0", idx)
	}
}

func TestModuleFunctionByName(t *testing.T) {
	m := NewModule()
	m.Functions = []FuncInfo{
		{Name: "deposit", Contract: "Vault"},
		{Name: "main"},
		{Name: "balance", Contract: "Vault"},
	}

	if i, f := m.FunctionByName("main"); i != 1 || f == nil {
		t.Errorf("main index = %d, want 1", i)
	}
	if i, f := m.FunctionByName("Vault.deposit"); i != 0 || f == nil {
		t.Errorf("Vault.deposit index = %d, want 0", i)
	}
	// Plain member name resolves when unique.
	if i, _ := m.FunctionByName("balance"); i != 2 {
		t.Errorf("balance index = %d, want 2", i)
	}
	if i, f := m.FunctionByName("missing"); i != -1 || f != nil {
		t.Errorf("missing lookup = %d,%v, want -1,nil", i, f)
	}
}

func TestModuleStateLayout(t *testing.T) {
	m := NewModule()
	m.Storage = []StateSlot{
		{Contract: "A", Name: "x", Slot: 0, Type: "int"},
		{Contract: "B", Name: "y", Slot: 0, Type: "bool"},
		{Contract: "A", Name: "z", Slot: 1, Type: "string"},
	}

	layout := m.StateLayout("A")
	if len(layout) != 2 {
		t.Fatalf("layout entries = %d, want 2", len(layout))
	}
	if layout[0].Name != "x" || layout[1].Name != "z" {
		t.Errorf("layout = %v", layout)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	m := NewModule()
	m.ContractIndex("Vault")
	m.Storage = append(m.Storage, StateSlot{Contract: "Vault", Name: "total", Slot: 0, Type: "int", Public: true})
	m.Functions = append(m.Functions, FuncInfo{
		Name: "deposit", Contract: "Vault", Offset: 0, Arity: 1,
		NumLocals: 1, ParamNames: []string{"n"},
	})
	m.EmitConstant(IntConstant(5))
	m.EmitConstant(StringConstant("event"))
	m.Emit(OpAdd)
	m.Emit(OpRetVoid)

	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !bytes.HasPrefix(data, ModuleMagic) {
		t.Errorf("serialized data missing magic prefix")
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if got.Version != m.Version {
		t.Errorf("Version = %d, want %d", got.Version, m.Version)
	}
	if !bytes.Equal(got.Code, m.Code) {
		t.Errorf("Code = %v, want %v", got.Code, m.Code)
	}
	if len(got.Constants) != 2 || got.Constants[0] != IntConstant(5) {
		t.Errorf("Constants = %v", got.Constants)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != "deposit" {
		t.Errorf("Functions = %v", got.Functions)
	}
	if len(got.Storage) != 1 || !got.Storage[0].Public {
		t.Errorf("Storage = %v", got.Storage)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	build := func() *Module {
		m := NewModule()
		m.ContractIndex("C")
		m.EmitConstant(StringConstant("x"))
		m.EmitConstant(IntConstant(1))
		m.Emit(OpRetVoid)
		return m
	}

	a, err := build().Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	b, err := build().Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal modules serialized differently")
	}
}

func TestDeserializeErrors(t *testing.T) {
	if _, err := Deserialize([]byte{1, 2}); err == nil {
		t.Error("short input accepted")
	}
	if _, err := Deserialize([]byte("XXXX....")); err == nil {
		t.Error("bad magic accepted")
	}

	m := NewModule()
	m.Version = ModuleVersion + 1
	data, err := m.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if _, err := Deserialize(data); err == nil {
		t.Error("future version accepted")
	}
}

func TestDisassemble(t *testing.T) {
	m := NewModule()
	m.ContractIndex("Counter")
	m.Storage = append(m.Storage, StateSlot{Contract: "Counter", Name: "n", Slot: 0, Type: "int", Public: true})
	m.Functions = append(m.Functions, FuncInfo{Name: "bump", Contract: "Counter", Offset: 0})

	m.EmitWithOperand(OpLoadState, 0, 0, 0, 0)
	m.EmitConstant(IntConstant(1))
	m.Emit(OpAdd)
	m.EmitWithOperand(OpStoreState, 0, 0, 0, 0)
	m.Emit(OpRetVoid)

	out := m.Disassemble()

	for _, want := range []string{
		"Counter.bump", "LOAD_STATE Counter slot=0", "CONST 0 ; 1",
		"ADD", "STORE_STATE Counter slot=0", "RET_VOID",
		"Counter.n slot=0 int public",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
