package views

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"raharpa/internal/bridge"
	"raharpa/internal/pkg/logger"
	"raharpa/internal/transport"
)

func testLogger(t *testing.T) *logger.Logger {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)
	return l
}

// fakeTransport lets view tests inject server events without a websocket.
// It also stands in for the emitter used by typing indicators.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]transport.Handler
	emitted  []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]transport.Handler)}
}

func (f *fakeTransport) On(event string, handler transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = handler
}

func (f *fakeTransport) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeTransport) Emit(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, event)
}

func (f *fakeTransport) OnConnect(fn func()) func() {
	return func() {}
}

func (f *fakeTransport) inject(t *testing.T, event string, payload any) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	f.mu.Lock()
	handler := f.handlers[event]
	f.mu.Unlock()
	require.NotNil(t, handler, "no handler registered for %s", event)
	handler(data)
}

type fakeConns struct {
	tr *fakeTransport
}

func (f *fakeConns) Acquire(ctx context.Context) (bridge.Transport, error) {
	return f.tr, nil
}

func (f *fakeConns) Release() {}

// newViewHarness builds a dispatcher and a bridge wired to a fake transport.
func newViewHarness(t *testing.T, events map[string]bridge.Policy, fetch bridge.FetchFunc) (*Dispatcher, *bridge.Bridge, *fakeTransport) {
	disp := NewDispatcher()
	t.Cleanup(disp.Stop)

	tr := newFakeTransport()
	br := bridge.New(bridge.Config{
		Domain: "test",
		Conns:  &fakeConns{tr: tr},
		Events: events,
		Fetch:  fetch,
		Log:    testLogger(t),
	})
	return disp, br, tr
}
