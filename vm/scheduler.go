package vm

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/CipherCoRetech/SypherLang/storage"
)

// future is the handle value behind a spawned call. It resolves once
// the child finishes; the parent collects the result, the child's
// buffered write set, and its emitted events at the join point.
type future struct {
	done     chan struct{}
	value    Value
	hasValue bool
	err      error
	writes   map[storage.SlotKey][]byte
	events   []Event
}

// scheduler runs spawned calls and whole invocations on a fixed pool
// of workers.
type scheduler struct {
	tasks chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

func newScheduler(workers int) *scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &scheduler{tasks: make(chan func())}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.wg.Done()
			for task := range s.tasks {
				task()
			}
		}()
	}
	return s
}

// submit queues work, spilling to a fresh goroutine when every worker
// is busy. Spawned calls must make progress even while their parents
// hold all the workers.
func (s *scheduler) submit(task func()) {
	select {
	case s.tasks <- task:
	default:
		go task()
	}
}

func (s *scheduler) close() {
	s.closeOnce.Do(func() {
		close(s.tasks)
	})
	s.wg.Wait()
}

// spawn launches the function at fnIdx as an independent call with
// its own transaction and pushes a handle for it. The child shares
// the parent's gas meter so the invocation-wide limit holds.
func (in *interp) spawn(fnIdx, argc int) error {
	if fnIdx >= len(in.mod.Functions) {
		return in.trap(TrapBadModule, fmt.Sprintf("spawn target %d out of range", fnIdx))
	}

	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := in.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}

	f := &future{done: make(chan struct{})}
	in.futures = append(in.futures, f)
	handle := Value{Kind: KindHandle, Int: int64(len(in.futures) - 1)}

	ctx := in.ctx
	child := &interp{
		ctx:     ctx,
		mod:     in.mod,
		store:   in.store,
		backend: in.backend,
		sched:   in.sched,
		gas:     in.gas,
		slots:   in.slots,
		log:     in.log,
		trace:   in.trace,
	}
	in.sched.submit(func() {
		defer close(f.done)

		txn, err := in.store.Begin(ctx)
		if err != nil {
			f.err = &Trap{Kind: TrapStorageConflict, Function: in.mod.Functions[fnIdx].QualifiedName(), Detail: err.Error()}
			return
		}
		child.txn = txn
		defer txn.Rollback(ctx)

		f.value, f.hasValue, f.err = child.run(fnIdx, args)
		if f.err == nil {
			f.writes = txn.Writes()
			f.events = child.events
		}
	})

	in.push(handle)
	return nil
}

// join blocks on a spawned call's handle. On success the child's
// write set merges into the parent transaction; a write to any slot
// the parent also wrote is a conflict, since the two calls were
// declared independent.
func (in *interp) join() error {
	h, err := in.popKind(KindHandle)
	if err != nil {
		return err
	}
	if h.Int < 0 || int(h.Int) >= len(in.futures) {
		return in.trap(TrapBadModule, "join on unknown handle")
	}
	f := in.futures[h.Int]
	<-f.done

	if f.err != nil {
		return f.err
	}

	parentWrites := in.txn.Writes()
	for key := range f.writes {
		if _, clash := parentWrites[key]; clash {
			return in.trap(TrapStorageConflict,
				fmt.Sprintf("spawned call and caller both wrote %s slot %d", key.Contract, key.Slot))
		}
	}
	for key, raw := range f.writes {
		if err := in.txn.Set(in.ctx, key.Contract, key.Slot, raw); err != nil {
			return in.trapStorage(err)
		}
	}
	in.events = append(in.events, f.events...)

	// A handle may be joined more than once; the child's effects
	// merge only the first time.
	f.writes = nil
	f.events = nil

	if f.hasValue {
		in.push(f.value)
	}
	return nil
}

// defaultLogEntry returns a usable entry when none was configured.
func defaultLogEntry() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}
