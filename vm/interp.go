package vm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/CipherCoRetech/SypherLang/bytecode"
	"github.com/CipherCoRetech/SypherLang/privacy"
	"github.com/CipherCoRetech/SypherLang/storage"
)

// maxCallDepth bounds the frame stack. Gas usually stops runaway
// recursion first; this is the hard ceiling.
const maxCallDepth = 2048

// Event is one emitted contract event, in emission order.
type Event struct {
	Name string
	Args []Value
}

// frame is one active function activation.
type frame struct {
	fn     *bytecode.FuncInfo
	retIP  int
	locals []Value
}

// interp executes one invocation against one transaction. It is not
// shared between goroutines; spawned calls get their own interp with
// their own transaction, sharing only the gas meter.
type interp struct {
	ctx     context.Context
	mod     *bytecode.Module
	store   storage.Store
	txn     storage.Txn
	backend privacy.Backend
	sched   *scheduler
	gas     *gasMeter
	slots   map[storage.SlotKey]string
	log     *logrus.Entry
	trace   bool

	stack   []Value
	frames  []frame
	ip      int
	opIP    int
	futures []*future
	events  []Event
}

// run executes the function at fnIndex with the given arguments and
// returns its result, or false when the function is void.
func (in *interp) run(fnIndex int, args []Value) (Value, bool, error) {
	if fnIndex < 0 || fnIndex >= len(in.mod.Functions) {
		return Value{}, false, in.trap(TrapBadModule, fmt.Sprintf("function index %d out of range", fnIndex))
	}
	fn := &in.mod.Functions[fnIndex]
	if len(args) != int(fn.Arity) {
		return Value{}, false, in.trap(TrapTypeMismatch,
			fmt.Sprintf("%s expects %d arguments, got %d", fn.QualifiedName(), fn.Arity, len(args)))
	}

	locals := make([]Value, fn.NumLocals)
	copy(locals, args)
	in.frames = append(in.frames[:0], frame{fn: fn, retIP: -1, locals: locals})
	in.ip = int(fn.Offset)

	for {
		if in.ip < 0 || in.ip >= len(in.mod.Code) {
			return Value{}, false, in.trap(TrapBadModule, "instruction pointer out of range")
		}
		in.opIP = in.ip
		op := bytecode.Opcode(in.mod.Code[in.ip])
		in.ip++
		if in.ip+op.OperandLen() > len(in.mod.Code) {
			return Value{}, false, in.trap(TrapBadModule, "code section ends mid-instruction")
		}

		cost := GasPerInstruction
		switch {
		case op == bytecode.OpProve:
			cost = GasPerProve
		case op.IsCrypto():
			cost = GasPerCryptoOp
		}
		if !in.gas.charge(cost) {
			return Value{}, false, in.trap(TrapOutOfGas, "")
		}

		if in.trace {
			in.log.WithFields(logrus.Fields{
				"offset": fmt.Sprintf("%04X", in.opIP),
				"op":     op.String(),
				"sp":     len(in.stack),
			}).Trace("exec")
		}

		done, result, hasResult, err := in.step(op)
		if err != nil {
			return Value{}, false, err
		}
		if done {
			return result, hasResult, nil
		}
	}
}

// step executes one instruction. done is true when the entry frame
// returned.
func (in *interp) step(op bytecode.Opcode) (done bool, result Value, hasResult bool, err error) {
	switch op {
	case bytecode.OpNop:

	case bytecode.OpPop:
		if _, err := in.pop(); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpDup:
		v, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		in.push(v)
		in.push(v)

	case bytecode.OpConst:
		idx := in.readU16()
		if int(idx) >= len(in.mod.Constants) {
			return false, Value{}, false, in.trap(TrapBadModule, "constant index out of range")
		}
		c := in.mod.Constants[idx]
		if c.Kind == bytecode.ConstString {
			in.push(StringValue(c.Str))
		} else {
			in.push(IntValue(c.Int))
		}

	case bytecode.OpConstTrue:
		in.push(BoolValue(true))

	case bytecode.OpConstFalse:
		in.push(BoolValue(false))

	case bytecode.OpLoadLocal:
		slot := in.readU8()
		f := &in.frames[len(in.frames)-1]
		if int(slot) >= len(f.locals) {
			return false, Value{}, false, in.trap(TrapBadModule, "local slot out of range")
		}
		in.push(f.locals[slot])

	case bytecode.OpStoreLocal:
		slot := in.readU8()
		v, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		f := &in.frames[len(in.frames)-1]
		if int(slot) >= len(f.locals) {
			return false, Value{}, false, in.trap(TrapBadModule, "local slot out of range")
		}
		f.locals[slot] = v

	case bytecode.OpLoadState:
		ci, slot := in.readU16(), in.readU16()
		v, err := in.loadState(ci, slot)
		if err != nil {
			return false, Value{}, false, err
		}
		in.push(v)

	case bytecode.OpStoreState:
		ci, slot := in.readU16(), in.readU16()
		v, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		if err := in.storeState(ci, slot, v); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
		if err := in.arith(op); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpNeg:
		v, err := in.popKind(KindInt)
		if err != nil {
			return false, Value{}, false, err
		}
		in.push(IntValue(-v.Int))

	case bytecode.OpEq, bytecode.OpNe:
		b, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		a, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		eq := a.Equal(b)
		if op == bytecode.OpNe {
			eq = !eq
		}
		in.push(BoolValue(eq))

	case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		if err := in.compare(op); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpNot:
		v, err := in.popKind(KindBool)
		if err != nil {
			return false, Value{}, false, err
		}
		in.push(BoolValue(!v.IsTruthy()))

	case bytecode.OpAnd, bytecode.OpOr:
		b, err := in.popKind(KindBool)
		if err != nil {
			return false, Value{}, false, err
		}
		a, err := in.popKind(KindBool)
		if err != nil {
			return false, Value{}, false, err
		}
		if op == bytecode.OpAnd {
			in.push(BoolValue(a.IsTruthy() && b.IsTruthy()))
		} else {
			in.push(BoolValue(a.IsTruthy() || b.IsTruthy()))
		}

	case bytecode.OpConcat:
		b, err := in.popKind(KindString)
		if err != nil {
			return false, Value{}, false, err
		}
		a, err := in.popKind(KindString)
		if err != nil {
			return false, Value{}, false, err
		}
		in.push(StringValue(a.Str + b.Str))

	case bytecode.OpMapGet:
		key, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		m, err := in.popKind(KindMap)
		if err != nil {
			return false, Value{}, false, err
		}
		if e, ok := m.Entries[key.mapKey()]; ok {
			in.push(e)
		} else {
			in.push(zeroValue(m.Str))
		}

	case bytecode.OpMapSet:
		v, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		key, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		m, err := in.popKind(KindMap)
		if err != nil {
			return false, Value{}, false, err
		}
		m.Entries[key.mapKey()] = v
		in.push(m)

	case bytecode.OpJump:
		delta := in.readI16()
		in.ip += int(delta)

	case bytecode.OpJumpFalse:
		delta := in.readI16()
		cond, err := in.popKind(KindBool)
		if err != nil {
			return false, Value{}, false, err
		}
		if !cond.IsTruthy() {
			in.ip += int(delta)
		}

	case bytecode.OpCall:
		fnIdx, argc := in.readU16(), in.readU8()
		if err := in.call(int(fnIdx), int(argc)); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpRet:
		v, err := in.pop()
		if err != nil {
			return false, Value{}, false, err
		}
		f := in.frames[len(in.frames)-1]
		in.frames = in.frames[:len(in.frames)-1]
		if f.retIP == -1 {
			return true, v, true, nil
		}
		in.ip = f.retIP
		in.push(v)

	case bytecode.OpRetVoid:
		f := in.frames[len(in.frames)-1]
		in.frames = in.frames[:len(in.frames)-1]
		if f.retIP == -1 {
			return true, Value{}, false, nil
		}
		in.ip = f.retIP

	case bytecode.OpProve, bytecode.OpVerify, bytecode.OpLatticeKeygen,
		bytecode.OpLatticeEncrypt, bytecode.OpLatticeDecrypt,
		bytecode.OpExchangeKey, bytecode.OpSigVerify:
		if err := in.crypto(op); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpSpawn:
		fnIdx, argc := in.readU16(), in.readU8()
		if err := in.spawn(int(fnIdx), int(argc)); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpJoin:
		if err := in.join(); err != nil {
			return false, Value{}, false, err
		}

	case bytecode.OpEmit:
		nameIdx, argc := in.readU16(), in.readU8()
		if err := in.emit(int(nameIdx), int(argc)); err != nil {
			return false, Value{}, false, err
		}

	default:
		return false, Value{}, false, in.trap(TrapBadModule, fmt.Sprintf("unknown opcode 0x%02X", byte(op)))
	}
	return false, Value{}, false, nil
}

// ---------------------------------------------------------------------------
// Operand decoding
// ---------------------------------------------------------------------------

// The dispatch loop verifies the full operand is in range before the
// instruction executes, so the readers index without checking.

func (in *interp) readU8() byte {
	b := in.mod.Code[in.ip]
	in.ip++
	return b
}

func (in *interp) readU16() uint16 {
	v := binary.BigEndian.Uint16(in.mod.Code[in.ip:])
	in.ip += 2
	return v
}

func (in *interp) readI16() int16 {
	return int16(in.readU16())
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (in *interp) push(v Value) {
	in.stack = append(in.stack, v)
}

func (in *interp) pop() (Value, error) {
	if len(in.stack) == 0 {
		return Value{}, in.trap(TrapStackUnderflow, "")
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v, nil
}

func (in *interp) popKind(k Kind) (Value, error) {
	v, err := in.pop()
	if err != nil {
		return Value{}, err
	}
	if v.Kind != k {
		return Value{}, in.trap(TrapTypeMismatch, fmt.Sprintf("want %s, got %s", k, v.Kind))
	}
	return v, nil
}

func (in *interp) trap(kind TrapKind, detail string) error {
	name := "?"
	if len(in.frames) > 0 {
		name = in.frames[len(in.frames)-1].fn.QualifiedName()
	}
	return &Trap{Kind: kind, Function: name, Offset: in.opIP, Detail: detail}
}

// ---------------------------------------------------------------------------
// Arithmetic and comparison
// ---------------------------------------------------------------------------

// arith implements integer arithmetic with two's-complement
// wrap-around. Division and modulo by zero trap; MinInt64 / -1 wraps
// to MinInt64 instead of faulting.
func (in *interp) arith(op bytecode.Opcode) error {
	b, err := in.popKind(KindInt)
	if err != nil {
		return err
	}
	a, err := in.popKind(KindInt)
	if err != nil {
		return err
	}

	var r int64
	switch op {
	case bytecode.OpAdd:
		r = a.Int + b.Int
	case bytecode.OpSub:
		r = a.Int - b.Int
	case bytecode.OpMul:
		r = a.Int * b.Int
	case bytecode.OpDiv:
		if b.Int == 0 {
			return in.trap(TrapDivisionByZero, "")
		}
		if a.Int == math.MinInt64 && b.Int == -1 {
			r = math.MinInt64
		} else {
			r = a.Int / b.Int
		}
	case bytecode.OpMod:
		if b.Int == 0 {
			return in.trap(TrapDivisionByZero, "")
		}
		if a.Int == math.MinInt64 && b.Int == -1 {
			r = 0
		} else {
			r = a.Int % b.Int
		}
	}
	in.push(IntValue(r))
	return nil
}

func (in *interp) compare(op bytecode.Opcode) error {
	b, err := in.pop()
	if err != nil {
		return err
	}
	a, err := in.pop()
	if err != nil {
		return err
	}
	if a.Kind != b.Kind {
		return in.trap(TrapTypeMismatch, fmt.Sprintf("comparing %s and %s", a.Kind, b.Kind))
	}

	var lt, eq bool
	switch a.Kind {
	case KindInt:
		lt, eq = a.Int < b.Int, a.Int == b.Int
	case KindString:
		lt, eq = a.Str < b.Str, a.Str == b.Str
	default:
		return in.trap(TrapTypeMismatch, fmt.Sprintf("%s values are not ordered", a.Kind))
	}

	var r bool
	switch op {
	case bytecode.OpLt:
		r = lt
	case bytecode.OpLe:
		r = lt || eq
	case bytecode.OpGt:
		r = !lt && !eq
	case bytecode.OpGe:
		r = !lt
	}
	in.push(BoolValue(r))
	return nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (in *interp) call(fnIdx, argc int) error {
	if fnIdx >= len(in.mod.Functions) {
		return in.trap(TrapBadModule, fmt.Sprintf("call target %d out of range", fnIdx))
	}
	if len(in.frames) >= maxCallDepth {
		return in.trap(TrapOutOfGas, fmt.Sprintf("call depth limit %d exceeded", maxCallDepth))
	}
	fn := &in.mod.Functions[fnIdx]
	if argc != int(fn.Arity) {
		return in.trap(TrapBadModule, fmt.Sprintf("%s called with %d arguments, arity is %d", fn.QualifiedName(), argc, fn.Arity))
	}

	locals := make([]Value, fn.NumLocals)
	for i := argc - 1; i >= 0; i-- {
		v, err := in.pop()
		if err != nil {
			return err
		}
		locals[i] = v
	}
	in.frames = append(in.frames, frame{fn: fn, retIP: in.ip, locals: locals})
	in.ip = int(fn.Offset)
	return nil
}

// ---------------------------------------------------------------------------
// Contract state
// ---------------------------------------------------------------------------

func (in *interp) slotKey(ci, slot uint16) (storage.SlotKey, error) {
	if int(ci) >= len(in.mod.Contracts) {
		return storage.SlotKey{}, in.trap(TrapBadModule, "contract index out of range")
	}
	return storage.SlotKey{Contract: in.mod.Contracts[ci], Slot: slot}, nil
}

func (in *interp) loadState(ci, slot uint16) (Value, error) {
	key, err := in.slotKey(ci, slot)
	if err != nil {
		return Value{}, err
	}
	raw, err := in.txn.Get(in.ctx, key.Contract, key.Slot)
	if err != nil {
		return Value{}, in.trapStorage(err)
	}
	if raw == nil {
		return zeroValue(in.slots[key]), nil
	}
	v, err := DecodeValue(raw)
	if err != nil {
		return Value{}, in.trap(TrapBadModule, err.Error())
	}
	return v, nil
}

func (in *interp) storeState(ci, slot uint16, v Value) error {
	key, err := in.slotKey(ci, slot)
	if err != nil {
		return err
	}
	raw, err := EncodeValue(v)
	if err != nil {
		return in.trap(TrapBadModule, err.Error())
	}
	if err := in.txn.Set(in.ctx, key.Contract, key.Slot, raw); err != nil {
		return in.trapStorage(err)
	}
	return nil
}

func (in *interp) trapStorage(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return in.trap(TrapStorageConflict, "")
	}
	return in.trap(TrapStorageConflict, err.Error())
}

// ---------------------------------------------------------------------------
// Crypto built-ins
// ---------------------------------------------------------------------------

func (in *interp) crypto(op bytecode.Opcode) error {
	switch op {
	case bytecode.OpProve:
		secret, err := in.popKind(KindInt)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(secret.Int))
		proof, err := in.backend.Prove(buf[:])
		if err != nil {
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(ProofValue(proof))

	case bytecode.OpVerify:
		proof, err := in.popKind(KindProof)
		if err != nil {
			return err
		}
		ok, err := in.backend.Verify(proof.Bytes)
		if err != nil {
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(BoolValue(ok))

	case bytecode.OpLatticeKeygen:
		key, err := in.backend.Keygen()
		if err != nil {
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(KeyValue(key))

	case bytecode.OpLatticeEncrypt:
		pt, err := in.popKind(KindString)
		if err != nil {
			return err
		}
		key, err := in.popKind(KindKey)
		if err != nil {
			return err
		}
		ct, err := in.backend.Encrypt(key.Bytes, []byte(pt.Str))
		if err != nil {
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(CiphertextValue(ct))

	case bytecode.OpLatticeDecrypt:
		ct, err := in.popKind(KindCiphertext)
		if err != nil {
			return err
		}
		key, err := in.popKind(KindKey)
		if err != nil {
			return err
		}
		pt, err := in.backend.Decrypt(key.Bytes, ct.Bytes)
		if err != nil {
			if errors.Is(err, privacy.ErrDecryptionFailed) {
				return in.trap(TrapDecryptionFailed, "")
			}
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(StringValue(string(pt)))

	case bytecode.OpExchangeKey:
		kb, err := in.popKind(KindKey)
		if err != nil {
			return err
		}
		ka, err := in.popKind(KindKey)
		if err != nil {
			return err
		}
		shared, err := in.backend.Exchange(ka.Bytes, kb.Bytes)
		if err != nil {
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(KeyValue(shared))

	case bytecode.OpSigVerify:
		sig, err := in.popKind(KindCiphertext)
		if err != nil {
			return err
		}
		msg, err := in.popKind(KindString)
		if err != nil {
			return err
		}
		key, err := in.popKind(KindKey)
		if err != nil {
			return err
		}
		ok, err := in.backend.VerifySignature(key.Bytes, []byte(msg.Str), sig.Bytes)
		if err != nil {
			return in.trap(TrapCryptoFailed, err.Error())
		}
		in.push(BoolValue(ok))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func (in *interp) emit(nameIdx, argc int) error {
	if nameIdx >= len(in.mod.Constants) {
		return in.trap(TrapBadModule, "event name index out of range")
	}
	c := in.mod.Constants[nameIdx]
	if c.Kind != bytecode.ConstString {
		return in.trap(TrapBadModule, "event name is not a string constant")
	}

	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := in.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	in.events = append(in.events, Event{Name: c.Str, Args: args})
	in.log.WithField("event", c.Str).Debug("event emitted")
	return nil
}
