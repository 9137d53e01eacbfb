package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/transport"
)

// pushWS is a minimal websocket endpoint that accepts connections and can
// push event frames to the most recent one.
type pushWS struct {
	srv *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newPushWS(t *testing.T) *pushWS {
	s := &pushWS{}
	upgrader := websocket.Upgrader{}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *pushWS) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *pushWS) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *pushWS) push(t *testing.T, event string, payload any) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(transport.Frame{Event: event, Payload: data})
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	conn := s.conns[len(s.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestManagerSharesOneConnection(t *testing.T) {
	server := newPushWS(t)
	log := testLogger(t)

	factories := 0
	m := NewManager(func() *transport.Client {
		factories++
		return transport.New(server.url(), log)
	})

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	second, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, second)

	assert.Equal(t, 1, factories)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, server.connCount())

	m.Release()
	m.Release()
}

func TestManagerRebuildsAfterLastRelease(t *testing.T) {
	server := newPushWS(t)
	log := testLogger(t)

	factories := 0
	m := NewManager(func() *transport.Client {
		factories++
		return transport.New(server.url(), log)
	})

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Release()

	// The closed client is not reusable, so a fresh acquire builds a new one.
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, factories)
	m.Release()
}

func TestManagerEmitWithoutConnection(t *testing.T) {
	m := NewManager(func() *transport.Client {
		return transport.New("ws://127.0.0.1:1/ws", testLogger(t))
	})

	// Must drop silently when no view holds the connection.
	m.Emit("user-typing", map[string]bool{"isTyping": true})
}

// Two domains registering the same event name over the shared connection
// both receive it, and one domain's teardown leaves the other's registration
// in place.
func TestOverlappingEventIsSharedAcrossDomains(t *testing.T) {
	server := newPushWS(t)
	log := testLogger(t)
	m := NewManager(func() *transport.Client {
		return transport.New(server.url(), log)
	})

	newChatBridge := func(domain string) *Bridge {
		return New(Config{
			Domain: domain,
			Conns:  m,
			Events: map[string]Policy{"new-message": PolicyForward},
			Log:    log,
		})
	}
	userBridge := newChatBridge("user-chat")
	adminBridge := newChatBridge("admin-chat")

	var mu sync.Mutex
	userGot, adminGot := 0, 0
	cancelUser, err := userBridge.Subscribe(context.Background(), "user-chat-view", func(Update) {
		mu.Lock()
		userGot++
		mu.Unlock()
	})
	require.NoError(t, err)
	cancelAdmin, err := adminBridge.Subscribe(context.Background(), "admin-chat-view", func(Update) {
		mu.Lock()
		adminGot++
		mu.Unlock()
	})
	require.NoError(t, err)

	server.push(t, "new-message", map[string]string{"chatId": "c1"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return userGot == 1 && adminGot == 1
	}, 2*time.Second, 10*time.Millisecond, "both domains must receive the shared event")

	cancelAdmin()

	server.push(t, "new-message", map[string]string{"chatId": "c1"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return userGot == 2
	}, 2*time.Second, 10*time.Millisecond, "the remaining domain keeps receiving after the other's teardown")

	mu.Lock()
	assert.Equal(t, 1, adminGot, "a torn-down domain receives nothing further")
	mu.Unlock()

	cancelUser()

	m.mu.Lock()
	assert.Empty(t, m.handlers, "full teardown leaves no handler registrations behind")
	m.mu.Unlock()
}
