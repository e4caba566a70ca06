// Package stations keeps the latest known state of connected stations
// built from lifecycle events.
package stations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anycable/ocpp-central/events"
)

type Connector struct {
	ID        int       `json:"connectorId"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"errorCode"`
	Info      string    `json:"info,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Station struct {
	ID              string       `json:"id"`
	Backend         string       `json:"backend,omitempty"`
	Online          bool         `json:"online"`
	Vendor          string       `json:"vendor,omitempty"`
	Model           string       `json:"model,omitempty"`
	FirmwareVersion string       `json:"firmwareVersion,omitempty"`
	BootedAt        *time.Time   `json:"bootedAt,omitempty"`
	LastSeenAt      time.Time    `json:"lastSeenAt"`
	Connectors      []*Connector `json:"connectors"`

	// Session currently serving the station
	sid        string
	connectors map[int]*Connector
}

func (s *Station) copy() *Station {
	res := *s
	res.connectors = nil

	if s.BootedAt != nil {
		booted := *s.BootedAt
		res.BootedAt = &booted
	}

	res.Connectors = make([]*Connector, 0, len(s.connectors))

	for _, c := range s.connectors {
		cc := *c
		res.Connectors = append(res.Connectors, &cc)
	}

	sort.Slice(res.Connectors, func(i, j int) bool { return res.Connectors[i].ID < res.Connectors[j].ID })

	return &res
}

// Store is an in-memory stations registry.
// It implements events.Adapter and is fed with station events.
type Store struct {
	mu       sync.RWMutex
	stations map[string]*Station
}

var _ events.Adapter = (*Store)(nil)

func NewStore() *Store {
	return &Store{stations: make(map[string]*Station)}
}

func (*Store) ID() string {
	return "stations"
}

func (*Store) Start() error {
	return nil
}

func (*Store) Shutdown(ctx context.Context) error {
	return nil
}

func (s *Store) Emit(ev *events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.fetch(ev.Station)

	switch ev.Kind {
	case events.ConnectKind:
		st.Online = true
		st.Backend = stringField(ev.Data, "backend")
		st.sid = stringField(ev.Data, "sid")
	case events.DisconnectKind:
		// A superseded session could report its disconnect after the new session connected
		if sid := stringField(ev.Data, "sid"); sid != "" && st.sid != "" && sid != st.sid {
			return
		}

		st.Online = false
		st.sid = ""
	case events.BootKind:
		booted := ev.Time
		st.Vendor = stringField(ev.Data, "vendor")
		st.Model = stringField(ev.Data, "model")
		st.FirmwareVersion = stringField(ev.Data, "firmware")
		st.BootedAt = &booted
	case events.StatusKind:
		id, ok := intField(ev.Data, "connector")

		if !ok {
			st.LastSeenAt = ev.Time
			return
		}

		st.connectors[id] = &Connector{
			ID:        id,
			Status:    stringField(ev.Data, "status"),
			ErrorCode: stringField(ev.Data, "error_code"),
			Info:      stringField(ev.Data, "info"),
			UpdatedAt: ev.Time,
		}
	}

	st.LastSeenAt = ev.Time
}

// Station returns a copy of the station state
func (s *Store) Station(id string) (*Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[id]

	if !ok {
		return nil, false
	}

	return st.copy(), true
}

// Snapshot returns copies of all known stations sorted by ID
func (s *Store) Snapshot() []*Station {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*Station, 0, len(s.stations))

	for _, st := range s.stations {
		res = append(res, st.copy())
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.stations)
}

func (s *Store) fetch(id string) *Station {
	st, ok := s.stations[id]

	if !ok {
		st = &Station{ID: id, connectors: make(map[int]*Connector)}
		s.stations[id] = st
	}

	return st
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}

	return ""
}

func intField(data map[string]interface{}, key string) (int, bool) {
	switch v := data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}

	return 0, false
}
