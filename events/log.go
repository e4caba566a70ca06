package events

import (
	"context"

	"github.com/apex/log"
)

// LogEmitter writes events to the log
type LogEmitter struct {
	log *log.Entry
}

var _ Adapter = (*LogEmitter)(nil)

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{log: log.WithField("context", "events")}
}

func (*LogEmitter) ID() string {
	return "log"
}

func (e *LogEmitter) Emit(ev *Event) {
	fields := make(log.Fields, len(ev.Data)+2)

	for k, v := range ev.Data {
		fields[k] = v
	}

	fields["station"] = ev.Station
	fields["event"] = string(ev.Kind)

	e.log.WithFields(fields).Info(string(ev.Kind))
}

func (*LogEmitter) Start() error {
	return nil
}

func (*LogEmitter) Shutdown(ctx context.Context) error {
	return nil
}
