package tool

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/toolexec/resilience"
)

// gateMaxWait is effectively "wait forever": Acquire blocks cooperatively
// until a slot frees rather than failing fast, so the only bound on how
// long a caller waits is its own ctx. Bulkhead's MaxWait is finite by
// construction; this is long enough that it is never the limiting factor
// in practice.
const gateMaxWait = 24 * time.Hour

// GateManager hands out a per-tool concurrency gate, backed by
// resilience.Bulkhead's counting semaphore. Gates are additionally keyed by
// a manager "generation": a new scheduling context gets its own gates
// rather than inheriting stale semaphore state from a previous one. Reset
// bumps the generation; it does not affect gates already acquired under
// the previous generation.
type GateManager struct {
	mu         sync.Mutex
	generation uint64
	gates      map[uint64]map[string]*resilience.Bulkhead
}

// NewGateManager creates a GateManager starting at generation 0.
func NewGateManager() *GateManager {
	return &GateManager{
		gates: map[uint64]map[string]*resilience.Bulkhead{
			0: make(map[string]*resilience.Bulkhead),
		},
	}
}

// Reset starts a new generation; every tool gets a fresh gate from this
// point on. Used by tests and by a registry hot-reload that wants to forget
// any callers queued on the old gates.
func (m *GateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.gates[m.generation] = make(map[string]*resilience.Bulkhead)
}

// Gate returns the current generation's bulkhead for name, sized to
// concurrency, creating it on first use.
func (m *GateManager) Gate(name string, concurrency int) *resilience.Bulkhead {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.gates[m.generation]
	if b, ok := gen[name]; ok {
		return b
	}
	b := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: concurrency, MaxWait: gateMaxWait})
	gen[name] = b
	return b
}

// Acquire blocks until a slot for name is available or ctx is canceled.
func (m *GateManager) Acquire(ctx context.Context, name string, concurrency int) error {
	return m.Gate(name, concurrency).Acquire(ctx)
}

// Release returns a slot for name to the pool. It targets the gate in the
// generation active when Gate was last called for name within this
// manager instance, which is always the current generation in practice
// since Acquire/Release are paired within a single request.
func (m *GateManager) Release(name string, concurrency int) {
	m.Gate(name, concurrency).Release()
}
