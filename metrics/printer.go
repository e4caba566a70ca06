package metrics

import "github.com/apex/log"

// BasePrinter simply logs stats as structured log
type BasePrinter struct {
	filter map[string]struct{}
}

var _ IntervalWriter = (*BasePrinter)(nil)

// NewBasePrinter returns new base printer struct.
// When the filter is not empty, only the listed metrics are printed.
func NewBasePrinter(filter []string) *BasePrinter {
	var set map[string]struct{}

	if len(filter) > 0 {
		set = make(map[string]struct{}, len(filter))

		for _, name := range filter {
			set[name] = struct{}{}
		}
	}

	return &BasePrinter{filter: set}
}

// Run prints a message to the log with metrics logging details
func (p *BasePrinter) Run(interval int) error {
	log.WithField("context", "metrics").Infof("Log metrics every %ds", interval)
	return nil
}

func (p *BasePrinter) Stop() {
}

// Write prints formatted snapshot to the log
func (p *BasePrinter) Write(m *Metrics) error {
	p.Print(m.IntervalSnapshot())
	return nil
}

// Print logs stats data using global logger with info level
func (p *BasePrinter) Print(snapshot map[string]uint64) {
	fields := make(log.Fields, len(snapshot)+1)

	fields["context"] = "metrics"

	for k, v := range snapshot {
		if p.filter != nil {
			if _, ok := p.filter[k]; !ok {
				continue
			}
		}

		fields[k] = v
	}

	log.WithFields(fields).Info("")
}
