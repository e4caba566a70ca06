package metrics

// Instrumenter is the interface used by the node to report stats
type Instrumenter interface {
	CounterIncrement(name string)
	CounterAdd(name string, val uint64)
	GaugeSet(name string, val uint64)
	GaugeIncrement(name string)
	GaugeDecrement(name string)
	RegisterCounter(name string, desc string)
	RegisterGauge(name string, desc string)
}

type NoopMetrics struct {
}

func (NoopMetrics) CounterIncrement(name string) {
}

func (NoopMetrics) CounterAdd(name string, val uint64) {
}

func (NoopMetrics) GaugeSet(name string, val uint64) {
}

func (NoopMetrics) GaugeIncrement(name string) {
}

func (NoopMetrics) GaugeDecrement(name string) {
}

func (NoopMetrics) RegisterCounter(name string, desc string) {
}

func (NoopMetrics) RegisterGauge(name string, desc string) {
}

var _ Instrumenter = (*NoopMetrics)(nil)
