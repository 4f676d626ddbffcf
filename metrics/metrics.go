// Package metrics exports execution statistics as prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/vm"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "neoexec"

// Metrics groups execution collectors. It's safe for concurrent use, every
// execution is observed through its own Observer.
type Metrics struct {
	executions   *prometheus.CounterVec
	gas          prometheus.Histogram
	instructions *prometheus.CounterVec
	calls        prometheus.Counter
	depth        prometheus.Histogram
}

// New creates collectors and registers them in reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Number of finished executions by the final VM state",
		}, []string{"state"}),
		gas: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_consumed",
			Help:      "GAS consumed by a single execution",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 10, 8),
		}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Number of executed instructions by opcode",
		}, []string{"opcode"}),
		calls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_loaded_total",
			Help:      "Number of loaded execution contexts",
		}),
		depth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_depth",
			Help:      "Maximum invocation stack depth of a single execution",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}
	for _, c := range []prometheus.Collector{m.executions, m.gas, m.instructions, m.calls, m.depth} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Observer accumulates statistics of a single execution. It implements
// engine.Diagnostics and must be finished with Finish.
type Observer struct {
	m       *Metrics
	opcodes [256]uint64
	loaded  int
	depth   int
	max     int
}

// NewObserver returns an Observer for the next execution.
func (m *Metrics) NewObserver() *Observer {
	return &Observer{m: m}
}

// Initialized implements engine.Diagnostics.
func (o *Observer) Initialized(*engine.Engine) {}

// ContextLoaded implements engine.Diagnostics.
func (o *Observer) ContextLoaded(*vm.Context) {
	o.loaded++
	o.depth++
	o.max = max(o.max, o.depth)
}

// ContextUnloaded implements engine.Diagnostics.
func (o *Observer) ContextUnloaded(*vm.Context) {
	o.depth--
}

// PreExecuteInstruction implements engine.Diagnostics.
func (o *Observer) PreExecuteInstruction(op opcode.Opcode) {
	o.opcodes[op]++
}

// Finish flushes collected statistics along with the final state and the
// consumed GAS of the engine.
func (o *Observer) Finish(e *engine.Engine) {
	o.m.executions.WithLabelValues(e.State().String()).Inc()
	o.m.gas.Observe(float64(e.FeeConsumed()) / float64(fee.GASFactor))
	o.m.calls.Add(float64(o.loaded))
	o.m.depth.Observe(float64(o.max))
	for i, n := range o.opcodes {
		if n != 0 {
			o.m.instructions.WithLabelValues(opcode.Opcode(i).String()).Add(float64(n))
		}
	}
}

// WriteToTextfile writes all metrics gathered by g in the text exposition
// format suitable for the node exporter textfile collector.
func WriteToTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
