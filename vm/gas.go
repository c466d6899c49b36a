package vm

import "sync/atomic"

// Gas costs. Every instruction costs at least GasPerInstruction;
// crypto built-ins cost more because they dominate real execution
// time. Proof generation is priced separately as the most expensive
// operation the machine can perform.
const (
	GasPerInstruction int64 = 1
	GasPerCryptoOp    int64 = 100
	GasPerProve       int64 = 500

	// DefaultGasLimit bounds one top-level invocation including all
	// calls it spawns.
	DefaultGasLimit int64 = 1_000_000
)

// gasMeter is shared between an invocation and every call it spawns,
// so the limit covers the whole invocation tree.
type gasMeter struct {
	limit int64
	used  atomic.Int64
}

func newGasMeter(limit int64) *gasMeter {
	if limit <= 0 {
		limit = DefaultGasLimit
	}
	return &gasMeter{limit: limit}
}

// charge consumes n gas and reports whether the limit still holds.
func (g *gasMeter) charge(n int64) bool {
	return g.used.Add(n) <= g.limit
}

func (g *gasMeter) spent() int64 {
	used := g.used.Load()
	if used > g.limit {
		return g.limit
	}
	return used
}
