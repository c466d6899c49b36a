package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the whole module:
// header, storage layout, constant pool, then per-function code.
func (m *Module) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; SypherLang Bytecode v%d\n", m.Version))
	if len(m.Contracts) > 0 {
		sb.WriteString(fmt.Sprintf("; Contracts: %s\n", strings.Join(m.Contracts, ", ")))
	}

	if len(m.Storage) > 0 {
		sb.WriteString("; Storage layout:\n")
		for _, s := range m.Storage {
			vis := "private"
			if s.Public {
				vis = "public"
			}
			sb.WriteString(fmt.Sprintf(";   %s.%s slot=%d %s %s\n", s.Contract, s.Name, s.Slot, s.Type, vis))
		}
	}

	if len(m.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range m.Constants {
			switch c.Kind {
			case ConstInt:
				sb.WriteString(fmt.Sprintf(";   [%3d] %d\n", i, c.Int))
			case ConstString:
				display := c.Str
				if len(display) > 40 {
					display = display[:37] + "..."
				}
				display = strings.ReplaceAll(display, "\n", "\\n")
				display = strings.ReplaceAll(display, "\t", "\\t")
				sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, display))
			}
		}
	}

	for i := range m.Functions {
		f := &m.Functions[i]
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("; === %s (arity=%d, locals=%d) ===\n", f.QualifiedName(), f.Arity, f.NumLocals))

		end := len(m.Code)
		if i+1 < len(m.Functions) {
			end = int(m.Functions[i+1].Offset)
		}
		offset := int(f.Offset)
		for offset < end {
			line, instrLen := m.disassembleInstruction(offset)
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
			if instrLen == 0 {
				break
			}
			offset += instrLen
		}
	}

	return sb.String()
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (m *Module) disassembleInstruction(offset int) (string, int) {
	if offset >= len(m.Code) {
		return "<end of code>", 0
	}

	op := Opcode(m.Code[offset])
	info := GetOpcodeInfo(op)
	if offset+info.OperandLen >= len(m.Code)+1 {
		return fmt.Sprintf("%s <truncated>", info.Name), len(m.Code) - offset
	}

	switch op {
	case OpConst:
		idx := m.readUint16(offset + 1)
		if int(idx) < len(m.Constants) {
			c := m.Constants[idx]
			if c.Kind == ConstInt {
				return fmt.Sprintf("CONST %d ; %d", idx, c.Int), 3
			}
			display := c.Str
			if len(display) > 20 {
				display = display[:17] + "..."
			}
			return fmt.Sprintf("CONST %d ; %q", idx, display), 3
		}
		return fmt.Sprintf("CONST %d", idx), 3

	case OpLoadLocal, OpStoreLocal:
		return fmt.Sprintf("%s %d", info.Name, m.Code[offset+1]), 2

	case OpLoadState, OpStoreState:
		contract := m.readUint16(offset + 1)
		slot := m.readUint16(offset + 3)
		name := fmt.Sprintf("#%d", contract)
		if int(contract) < len(m.Contracts) {
			name = m.Contracts[contract]
		}
		return fmt.Sprintf("%s %s slot=%d", info.Name, name, slot), 5

	case OpJump, OpJumpFalse:
		delta := int16(m.readUint16(offset + 1))
		target := offset + 3 + int(delta)
		return fmt.Sprintf("%s %+d ; -> %04X", info.Name, delta, target), 3

	case OpCall, OpSpawn:
		fn := m.readUint16(offset + 1)
		argc := m.Code[offset+3]
		name := fmt.Sprintf("#%d", fn)
		if int(fn) < len(m.Functions) {
			name = m.Functions[fn].QualifiedName()
		}
		return fmt.Sprintf("%s %s argc=%d", info.Name, name, argc), 4

	case OpEmit:
		nameIdx := m.readUint16(offset + 1)
		argc := m.Code[offset+3]
		name := ""
		if int(nameIdx) < len(m.Constants) && m.Constants[nameIdx].Kind == ConstString {
			name = m.Constants[nameIdx].Str
		}
		return fmt.Sprintf("EMIT %q argc=%d", name, argc), 4

	default:
		return info.Name, 1 + info.OperandLen
	}
}

func (m *Module) readUint16(offset int) uint16 {
	return binary.BigEndian.Uint16(m.Code[offset : offset+2])
}
