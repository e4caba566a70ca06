package events

import (
	"context"
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAdapter struct {
	id       string
	events   []*Event
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (a *testAdapter) ID() string { return a.id }

func (a *testAdapter) Emit(ev *Event) { a.events = append(a.events, ev) }

func (a *testAdapter) Start() error {
	a.started = true
	return a.startErr
}

func (a *testAdapter) Shutdown(ctx context.Context) error {
	a.stopped = true
	return a.stopErr
}

func TestMulti(t *testing.T) {
	first := &testAdapter{id: "first"}
	second := &testAdapter{id: "second", stopErr: errors.New("failed")}

	m := NewMulti(first, second)

	require.NoError(t, m.Start())
	assert.True(t, first.started)
	assert.True(t, second.started)

	ev := NewEvent(BootKind, "ev42", map[string]interface{}{"vendor": "Acme"})
	m.Emit(ev)

	assert.Equal(t, []*Event{ev}, first.events)
	assert.Equal(t, []*Event{ev}, second.events)

	err := m.Shutdown(context.Background())
	assert.EqualError(t, err, "failed")
	assert.True(t, first.stopped)

	assert.Equal(t, []string{"first", "second"}, m.Adapters())
}

func TestFromConfig(t *testing.T) {
	c := NewConfig()
	c.Adapter = "log, nats,redis"

	m, err := FromConfig(&c)
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "nats", "redis"}, m.Adapters())

	c.Adapter = "log,kafka"

	_, err = FromConfig(&c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")

	c.Adapter = ""

	m, err = FromConfig(&c)
	require.NoError(t, err)
	assert.Empty(t, m.Adapters())
}

func TestLogEmitter(t *testing.T) {
	handler := memory.New()
	log.SetHandler(handler)
	defer log.SetHandler(memory.New())

	e := NewLogEmitter()
	e.Emit(NewEvent(StatusKind, "ev42", map[string]interface{}{"connector": 1, "status": "Available"}))

	require.Len(t, handler.Entries, 1)

	entry := handler.Entries[0]

	assert.Equal(t, "status", entry.Message)
	assert.Equal(t, "ev42", entry.Fields.Get("station"))
	assert.Equal(t, "Available", entry.Fields.Get("status"))
	assert.Equal(t, 1, entry.Fields.Get("connector"))
	assert.Equal(t, "events", entry.Fields.Get("context"))
}
