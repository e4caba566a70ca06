package node

import (
	"context"
	"sync"
	"time"

	"github.com/anycable/ocpp-central/ocpp"
	"github.com/joomcode/errorx"
	nanoid "github.com/matoous/go-nanoid"
)

const maxIDAttempts = 5

type callResult struct {
	msg ocpp.Message
	err error
}

type pendingEntry struct {
	ch    chan callResult
	timer *time.Timer
}

// Waiter is a handle to await a response to a server-initiated call
type Waiter struct {
	id    string
	ch    chan callResult
	table *PendingCalls
}

func (w *Waiter) ID() string {
	return w.id
}

// Wait blocks until the call is resolved, expired or cancelled.
// When ctx is done the entry is released and ctx error is returned.
func (w *Waiter) Wait(ctx context.Context) (ocpp.Message, error) {
	select {
	case res := <-w.ch:
		return res.msg, res.err
	case <-ctx.Done():
	}

	w.table.Fail(w.id, ctx.Err())

	// Whoever took the entry has delivered the result
	res := <-w.ch

	return res.msg, res.err
}

// PendingCalls keeps track of the calls sent to a station and awaiting responses.
// Every entry is delivered exactly once: resolved, expired, failed or cancelled.
type PendingCalls struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
	closed  bool
	idgen   func() (string, error)
}

func NewPendingCalls() *PendingCalls {
	return &PendingCalls{
		entries: make(map[string]*pendingEntry),
		idgen:   func() (string, error) { return nanoid.Nanoid() },
	}
}

// Register creates a new entry with a unique ID which expires after the timeout
func (p *PendingCalls) Register(timeout time.Duration) (*Waiter, error) {
	if timeout <= 0 {
		return nil, errorx.IllegalArgument.New("call timeout must be positive, got %v", timeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, SessionClosed.New("session is closed")
	}

	var id string

	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			return nil, errorx.IllegalState.New("failed to generate unique call id")
		}

		uid, err := p.idgen()

		if err != nil {
			return nil, errorx.Decorate(err, "failed to generate call id")
		}

		if _, exists := p.entries[uid]; !exists {
			id = uid
			break
		}
	}

	entry := &pendingEntry{ch: make(chan callResult, 1)}
	entry.timer = time.AfterFunc(timeout, func() { p.Expire(id) })

	p.entries[id] = entry

	return &Waiter{id: id, ch: entry.ch, table: p}, nil
}

// Resolve delivers the response to the waiter.
// Returns false if there is no such pending call (e.g., already resolved or expired).
func (p *PendingCalls) Resolve(id string, msg ocpp.Message) bool {
	return p.deliver(id, callResult{msg: msg})
}

// Expire delivers a timeout error to the waiter if the call is still pending
func (p *PendingCalls) Expire(id string) bool {
	return p.deliver(id, callResult{err: CallTimeout.New("call %s timed out", id)})
}

// Fail delivers an arbitrary error to the waiter if the call is still pending
func (p *PendingCalls) Fail(id string, err error) bool {
	return p.deliver(id, callResult{err: err})
}

// CancelAll delivers cancellation errors to all waiters and prevents new registrations
func (p *PendingCalls) CancelAll() int {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*pendingEntry)
	p.closed = true
	p.mu.Unlock()

	for id, entry := range entries {
		entry.timer.Stop()
		entry.ch <- callResult{err: CallCancelled.New("call %s cancelled: session is closing", id)}
	}

	return len(entries)
}

func (p *PendingCalls) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

func (p *PendingCalls) deliver(id string, res callResult) bool {
	p.mu.Lock()
	entry, ok := p.entries[id]

	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	entry.timer.Stop()
	entry.ch <- res

	return true
}
