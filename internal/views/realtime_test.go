package views

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/api/mocks"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/transport"
)

// pushServer is a websocket endpoint that accepts the shared connection and
// pushes event frames to it, so view tests can run against the production
// transport wiring instead of the fake.
type pushServer struct {
	srv *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	s := &pushServer{}
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

func (s *pushServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *pushServer) push(t *testing.T, event string, payload any) {
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

// The user chat and the admin inbox both follow new-message over the shared
// connection. Unmounting one surface must leave the other's real-time feed
// intact.
func TestUnmountingOneSurfaceKeepsTheOtherLive(t *testing.T) {
	server := newPushServer(t)
	log := testLogger(t)
	conns := bridge.NewManager(func() *transport.Client {
		return transport.New(server.url(), log)
	})

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().UserThread(gomock.Any(), "u1").Return(&models.Chat{ChatID: "c1", UserID: "u1"}, nil)
	chatAPI.EXPECT().AdminThreads(gomock.Any()).Return([]models.Chat{{ChatID: "c1", UserID: "u1"}}, nil)
	itemsAPI := mocks.NewMockItemsAPI(ctrl)
	itemsAPI.EXPECT().ListByStatus(gomock.Any(), models.ItemSoldOut).Return([]models.Item{}, nil)

	disp := NewDispatcher()
	t.Cleanup(disp.Stop)

	chatEvents := func() map[string]bridge.Policy {
		return map[string]bridge.Policy{models.EventNewMessage: bridge.PolicyForward}
	}
	userBridge := bridge.New(bridge.Config{Domain: "user-chat", Conns: conns, Events: chatEvents(), Log: log})
	adminBridge := bridge.New(bridge.Config{Domain: "admin-chat", Conns: conns, Events: chatEvents(), Log: log})

	userView := NewUserChatView(disp, chatAPI, itemsAPI, userBridge, conns, "u1", "Alice", log)
	adminView := NewAdminChatView(disp, chatAPI, adminBridge, conns, log)
	userView.Mount(context.Background())
	adminView.Mount(context.Background())
	defer userView.Unmount()

	server.push(t, models.EventNewMessage, map[string]any{
		"chatId":  "c1",
		"message": models.Message{ID: "m1", Sender: models.SenderAdmin, Text: "hello"},
	})
	require.Eventually(t, func() bool {
		if len(userView.Snapshot().Messages) != 1 {
			return false
		}
		admin := adminView.Snapshot()
		return len(admin.Threads) == 1 && len(admin.Threads[0].Messages) == 1
	}, 2*time.Second, 10*time.Millisecond, "both surfaces must receive the shared event")

	adminView.Unmount()

	server.push(t, models.EventNewMessage, map[string]any{
		"chatId":  "c1",
		"message": models.Message{ID: "m2", Sender: models.SenderAdmin, Text: "still there?"},
	})
	require.Eventually(t, func() bool {
		return len(userView.Snapshot().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond, "the user surface stays live after the admin unmount")

	admin := adminView.Snapshot()
	require.Len(t, admin.Threads, 1)
	assert.Len(t, admin.Threads[0].Messages, 1, "an unmounted surface receives nothing further")
}
