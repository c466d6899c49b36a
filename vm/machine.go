package vm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/CipherCoRetech/SypherLang/bytecode"
	"github.com/CipherCoRetech/SypherLang/privacy"
	"github.com/CipherCoRetech/SypherLang/storage"
)

// Options configures a Machine.
type Options struct {
	// GasLimit bounds each top-level invocation, spawned calls
	// included. Zero means DefaultGasLimit.
	GasLimit int64

	// Workers sizes the scheduler pool. Zero means GOMAXPROCS.
	Workers int

	// MaxAttempts is how many times Execute retries an invocation
	// that aborts with a storage conflict. Zero and one both mean a
	// single attempt; retried invocations re-read state fresh.
	MaxAttempts int

	// Trace logs every executed instruction at trace level.
	Trace bool

	// Logger receives execution logs. Nil means the standard logger.
	Logger *logrus.Logger
}

// Result is the outcome of one committed invocation.
type Result struct {
	// InvocationID uniquely identifies this invocation in logs.
	InvocationID uuid.UUID

	// Outputs holds the function result under "return" when the
	// function is not void.
	Outputs map[string]Value

	// Events emitted during execution, in order. Events from calls
	// that trapped are discarded with their writes.
	Events []Event

	// GasUsed is the total gas consumed, spawned calls included.
	GasUsed int64

	// Attempts is how many times the invocation ran before
	// committing; greater than one means conflict retries.
	Attempts int
}

// Machine executes functions from one bytecode module against a
// state store. It is safe for concurrent use: each Execute call runs
// in its own transaction.
type Machine struct {
	mod     *bytecode.Module
	store   storage.Store
	backend privacy.Backend
	sched   *scheduler
	slots   map[storage.SlotKey]string
	opts    Options
	log     *logrus.Entry
}

// New validates the module and builds a machine around it.
func New(mod *bytecode.Module, store storage.Store, backend privacy.Backend, opts Options) (*Machine, error) {
	if mod == nil {
		return nil, fmt.Errorf("nil module")
	}
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	if backend == nil {
		return nil, fmt.Errorf("nil crypto backend")
	}
	if mod.Version > bytecode.ModuleVersion {
		return nil, fmt.Errorf("module version %d is newer than supported %d", mod.Version, bytecode.ModuleVersion)
	}

	slots := make(map[storage.SlotKey]string, len(mod.Storage))
	for _, s := range mod.Storage {
		slots[storage.SlotKey{Contract: s.Contract, Slot: s.Slot}] = s.Type
	}

	log := defaultLogEntry()
	if opts.Logger != nil {
		log = logrus.NewEntry(opts.Logger)
	}

	return &Machine{
		mod:     mod,
		store:   store,
		backend: backend,
		sched:   newScheduler(opts.Workers),
		slots:   slots,
		opts:    opts,
		log:     log,
	}, nil
}

// Close stops the scheduler workers. The store stays open; its owner
// closes it.
func (m *Machine) Close() {
	m.sched.close()
}

// Execute runs the named function with inputs keyed by parameter
// name. It returns a Result on commit, a *Trap when execution
// aborted, or a plain error for caller mistakes such as an unknown
// function name.
//
// Cancellation is checked before the invocation starts; once running
// it finishes or traps.
func (m *Machine) Execute(ctx context.Context, fnName string, inputs map[string]Value) (*Result, error) {
	fnIdx, fn := m.mod.FunctionByName(fnName)
	if fn == nil {
		return nil, fmt.Errorf("unknown function %q", fnName)
	}

	args := make([]Value, len(fn.ParamNames))
	for i, name := range fn.ParamNames {
		v, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q for %s", name, fn.QualifiedName())
		}
		args[i] = v
	}
	if len(inputs) > len(fn.ParamNames) {
		for name := range inputs {
			if !containsName(fn.ParamNames, name) {
				return nil, fmt.Errorf("unknown input %q for %s", name, fn.QualifiedName())
			}
		}
	}

	id := uuid.New()
	log := m.log.WithFields(logrus.Fields{"invocation": id, "function": fn.QualifiedName()})

	maxAttempts := m.opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := m.runOnce(ctx, fnIdx, args, log)
		if err == nil {
			res.InvocationID = id
			res.Attempts = attempt
			log.WithFields(logrus.Fields{"gas": res.GasUsed, "attempts": attempt}).Debug("invocation committed")
			return res, nil
		}
		lastErr = err
		if !IsTrap(err, TrapStorageConflict) {
			break
		}
		log.WithField("attempt", attempt).Debug("storage conflict, retrying")
	}
	log.WithError(lastErr).Debug("invocation aborted")
	return nil, lastErr
}

// runOnce executes one attempt on a scheduler worker and commits it.
func (m *Machine) runOnce(ctx context.Context, fnIdx int, args []Value, log *logrus.Entry) (*Result, error) {
	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)

	m.sched.submit(func() {
		if err := ctx.Err(); err != nil {
			ch <- outcome{nil, err}
			return
		}
		res, err := m.invoke(ctx, fnIdx, args, log)
		ch <- outcome{res, err}
	})

	out := <-ch
	return out.res, out.err
}

func (m *Machine) invoke(ctx context.Context, fnIdx int, args []Value, log *logrus.Entry) (*Result, error) {
	txn, err := m.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer txn.Rollback(ctx)

	gas := newGasMeter(m.opts.GasLimit)
	in := &interp{
		ctx:     ctx,
		mod:     m.mod,
		store:   m.store,
		txn:     txn,
		backend: m.backend,
		sched:   m.sched,
		gas:     gas,
		slots:   m.slots,
		log:     log,
		trace:   m.opts.Trace,
	}

	value, hasValue, err := in.run(fnIdx, args)
	if err != nil {
		return nil, err
	}

	if err := txn.Commit(ctx); err != nil {
		return nil, in.trapStorage(err)
	}

	outputs := map[string]Value{}
	if hasValue {
		outputs["return"] = value
	}
	return &Result{
		Outputs: outputs,
		Events:  in.events,
		GasUsed: gas.spent(),
	}, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
