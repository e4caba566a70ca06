package metrics

import (
	"sync/atomic"
)

// Gauge stores an int value
type Gauge struct {
	value uint64
	name  string
	desc  string
}

// NewGauge initializes Gauge.
func NewGauge(name string, desc string) *Gauge {
	return &Gauge{name: name, desc: desc}
}

func (g *Gauge) Name() string {
	return g.name
}

func (g *Gauge) Desc() string {
	return g.desc
}

// Set gauge value
func (g *Gauge) Set(value int) {
	atomic.StoreUint64(&g.value, uint64(value))
}

// Inc increments the gauge value by one
func (g *Gauge) Inc() uint64 {
	return atomic.AddUint64(&g.value, 1)
}

// Dec decrements the gauge value by one
func (g *Gauge) Dec() uint64 {
	return atomic.AddUint64(&g.value, ^uint64(0))
}

// Value returns the current gauge value
func (g *Gauge) Value() uint64 {
	return atomic.LoadUint64(&g.value)
}
