package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
)

// IntervalWriter describes a periodical metrics writer interface
type IntervalWriter interface {
	Run(interval int) error
	Stop()
	Write(m *Metrics) error
}

// Metrics stores some useful stats about the node
type Metrics struct {
	mu             sync.RWMutex
	writers        []IntervalWriter
	tags           map[string]string
	rotateInterval time.Duration
	counters       map[string]*Counter
	gauges         map[string]*Gauge
	shutdownCh     chan struct{}
	log            *log.Entry
}

var _ Instrumenter = (*Metrics)(nil)

// FromConfig creates a new metrics instance from the provided configuration
func FromConfig(config *Config) (*Metrics, error) {
	writers := []IntervalWriter{}

	if config.LogEnabled() {
		writers = append(writers, NewBasePrinter(config.LogFilter))
	}

	if config.Statsd.Enabled() {
		writers = append(writers, NewStatsdWriter(config.Statsd, config.Tags))
	}

	instance := NewMetrics(writers, config.RotateInterval)

	if config.Tags != nil {
		instance.DefaultTags(config.Tags)
	}

	return instance, nil
}

// NewMetrics build new metrics struct
func NewMetrics(writers []IntervalWriter, rotateIntervalSeconds int) *Metrics {
	rotateInterval := time.Duration(rotateIntervalSeconds) * time.Second

	return &Metrics{
		writers:        writers,
		rotateInterval: rotateInterval,
		counters:       make(map[string]*Counter),
		gauges:         make(map[string]*Gauge),
		shutdownCh:     make(chan struct{}),
		log:            log.WithField("context", "metrics"),
	}
}

// DefaultTags sets tags added to every metric (Prometheus labels, StatsD tags)
func (m *Metrics) DefaultTags(tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tags = tags
}

// Run periodically updates counters delta (and flushes metrics to writers if any)
func (m *Metrics) Run() error {
	if m.rotateInterval <= 0 {
		m.log.Debug("Metrics rotation is disabled")
		return nil
	}

	for _, writer := range m.writers {
		if err := writer.Run(int(m.rotateInterval.Seconds())); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(m.rotateInterval)
	defer ticker.Stop()

	m.mu.RLock()
	shutdownCh := m.shutdownCh
	m.mu.RUnlock()

	if shutdownCh == nil {
		return nil
	}

	for {
		select {
		case <-shutdownCh:
			return nil
		case <-ticker.C:
			m.rotate()

			for _, writer := range m.writers {
				if err := writer.Write(m); err != nil {
					m.log.Errorf("Metrics writer failed to write: %v", err)
				}
			}
		}
	}
}

// Shutdown stops metrics updates
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdownCh == nil {
		return nil
	}

	close(m.shutdownCh)
	m.shutdownCh = nil

	for _, writer := range m.writers {
		writer.Stop()
	}

	return nil
}

// RegisterCounter adds new counter to the registry
func (m *Metrics) RegisterCounter(name string, desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[name] = NewCounter(name, desc)
}

// RegisterGauge adds new gauge to the registry
func (m *Metrics) RegisterGauge(name string, desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gauges[name] = NewGauge(name, desc)
}

// Counter returns counter by name
func (m *Metrics) Counter(name string) *Counter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counters[name]
}

// Gauge returns gauge by name
func (m *Metrics) Gauge(name string) *Gauge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.gauges[name]
}

func (m *Metrics) CounterIncrement(name string) {
	if c := m.Counter(name); c != nil {
		c.Inc()
	}
}

func (m *Metrics) CounterAdd(name string, val uint64) {
	if c := m.Counter(name); c != nil {
		c.Add(val)
	}
}

func (m *Metrics) GaugeSet(name string, val uint64) {
	if g := m.Gauge(name); g != nil {
		g.Set(int(val))
	}
}

func (m *Metrics) GaugeIncrement(name string) {
	if g := m.Gauge(name); g != nil {
		g.Inc()
	}
}

func (m *Metrics) GaugeDecrement(name string) {
	if g := m.Gauge(name); g != nil {
		g.Dec()
	}
}

// EachCounter applies function f(*Counter) to each counter in a set
func (m *Metrics) EachCounter(f func(c *Counter)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, counter := range m.counters {
		f(counter)
	}
}

// EachGauge applies function f(*Gauge) to each gauge in a set
func (m *Metrics) EachGauge(f func(g *Gauge)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, gauge := range m.gauges {
		f(gauge)
	}
}

// IntervalSnapshot returns recorded interval metrics snapshot
func (m *Metrics) IntervalSnapshot() map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]uint64)

	for name, c := range m.counters {
		snapshot[name] = c.IntervalValue()
	}

	for name, g := range m.gauges {
		snapshot[name] = g.Value()
	}

	return snapshot
}

func (m *Metrics) rotate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.counters {
		c.UpdateDelta()
	}
}
