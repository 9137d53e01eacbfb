package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"raharpa/internal/transport"
)

// Manager shares one transport connection between all bridges and
// demultiplexes its named events. The transport holds a single handler per
// event name, so the manager owns that slot and fans incoming payloads out
// to every bridge registered for the name. Domains that overlap on an event
// name (the items surface and the user wishlist both follow item-sent, both
// chat surfaces follow new-message) share the registration instead of
// evicting each other, and a bridge's teardown removes only its own entry.
// The connection is dialed when the first bridge acquires it and closed when
// the last one releases it; a closed transport client is not reusable, so a
// later acquire re-initializes a fresh one through the factory.
type Manager struct {
	factory func() *transport.Client

	mu       sync.Mutex
	refs     int
	leaseID  int
	client   *transport.Client
	handlers map[string]map[int]transport.Handler
}

var _ ConnProvider = (*Manager)(nil)

// NewManager creates a connection manager around a transport client factory.
func NewManager(factory func() *transport.Client) *Manager {
	return &Manager{
		factory:  factory,
		handlers: make(map[string]map[int]transport.Handler),
	}
}

// Acquire returns a handle on the shared connection, dialing it first if no
// holder exists yet. Each handle registers event handlers under its own
// identity, so releasing one never disturbs another holder's registrations.
func (m *Manager) Acquire(ctx context.Context) (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		m.client = m.factory()
		for event := range m.handlers {
			m.client.On(event, m.dispatch(event))
		}
	}
	if err := m.client.Dial(ctx); err != nil {
		if m.refs == 0 {
			m.client = nil
		}
		return nil, err
	}
	m.refs++
	m.leaseID++
	return &lease{m: m, id: m.leaseID}, nil
}

// Release drops one holder; the last release closes the connection.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return
	}
	m.refs--
	if m.refs == 0 && m.client != nil {
		m.client.Close()
		m.client = nil
	}
}

// Emit forwards a fire-and-forget event to the live connection. With no
// connection the event is dropped, matching the transport's own emit
// semantics; this lets the resource clients broadcast mutations through the
// manager without holding a connection reference themselves.
func (m *Manager) Emit(event string, payload any) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return
	}
	client.Emit(event, payload)
}

// dispatch builds the transport-level handler for one event name. The
// payload is fanned out to every registered holder outside the lock.
func (m *Manager) dispatch(event string) transport.Handler {
	return func(payload json.RawMessage) {
		m.mu.Lock()
		fns := make([]transport.Handler, 0, len(m.handlers[event]))
		for _, fn := range m.handlers[event] {
			fns = append(fns, fn)
		}
		m.mu.Unlock()

		for _, fn := range fns {
			fn(payload)
		}
	}
}

func (m *Manager) on(id int, event string, fn transport.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.handlers[event]
	if !ok {
		set = make(map[int]transport.Handler)
		m.handlers[event] = set
		if m.client != nil {
			m.client.On(event, m.dispatch(event))
		}
	}
	set[id] = fn
}

func (m *Manager) off(id int, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.handlers[event]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m.handlers, event)
		if m.client != nil {
			m.client.Off(event)
		}
	}
}

// lease is one bridge's handle on the shared connection. Handler
// registrations go through the manager's fan-out table under the lease's
// identity; emits and connect hooks pass straight through to the client.
type lease struct {
	m  *Manager
	id int
}

var _ Transport = (*lease)(nil)

func (l *lease) On(event string, handler transport.Handler) {
	l.m.on(l.id, event, handler)
}

func (l *lease) Off(event string) {
	l.m.off(l.id, event)
}

func (l *lease) Emit(event string, payload any) {
	l.m.Emit(event, payload)
}

func (l *lease) OnConnect(fn func()) func() {
	l.m.mu.Lock()
	client := l.m.client
	l.m.mu.Unlock()
	if client == nil {
		return func() {}
	}
	return client.OnConnect(fn)
}
