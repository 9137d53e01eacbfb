package uihost

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/api"
	"raharpa/internal/app"
	"raharpa/internal/localstore"
	"raharpa/internal/pkg/logger"
	"raharpa/internal/session"
)

func testLogger(t *testing.T) *logger.Logger {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)
	return l
}

// newBackend serves just enough of the backend contract for the UI host
// round trips: login endpoints plus an everything-succeeded fallback for the
// list fetches the mounted views issue.
func newBackend(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"id":"u1","name":"Alice"}}`))
	})
	mux.HandleFunc("/admin/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"id":"a1","username":"admin","name":"Raharpa Admin"}}`))
	})
	mux.HandleFunc("/chat/user/u1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"chatId":"c1","userId":"u1","messages":[]}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	backend := newBackend(t)
	log := testLogger(t)

	store, err := localstore.Open(t.TempDir(), []byte("test-signing-key"), log)
	require.NoError(t, err)

	core := app.New(app.Config{
		APIBaseURL: backend.URL,
		// No websocket endpoint: views mount in offline mode, which the UI
		// host must surface rather than fail on.
		SocketURL:          "ws://127.0.0.1:1/ws",
		Store:              store,
		SessionWindow:      168 * time.Hour,
		AdminSessionWindow: 24 * time.Hour,
		Log:                log,
	})
	t.Cleanup(core.Close)

	return NewServer(core, log)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func TestUserLoginFlow(t *testing.T) {
	router := newTestServer(t).Router()

	rec, env := doJSON(t, router, http.MethodPost, "/ui/login", `{"name":"Alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"subjectId":"u1"`)

	// The chat surface is mounted now, degraded to offline without a socket.
	rec, env = doJSON(t, router, http.MethodGet, "/ui/me/chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = doJSON(t, router, http.MethodGet, "/ui/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data, err = json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"subjectId":"u1"`)
}

func TestUserLoginValidation(t *testing.T) {
	router := newTestServer(t).Router()

	rec, env := doJSON(t, router, http.MethodPost, "/ui/login", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = doJSON(t, router, http.MethodPost, "/ui/login", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSurfacesRequireLogin(t *testing.T) {
	router := newTestServer(t).Router()

	for _, path := range []string{"/ui/items", "/ui/orders", "/ui/users", "/ui/dashboard", "/ui/reports", "/ui/chat"} {
		rec, env := doJSON(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.False(t, env.Success, path)
	}
}

func TestAdminLoginUnlocksSurfaces(t *testing.T) {
	router := newTestServer(t).Router()

	rec, env := doJSON(t, router, http.MethodPost, "/ui/admin/login", `{"username":"admin","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	rec, env = doJSON(t, router, http.MethodGet, "/ui/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = doJSON(t, router, http.MethodGet, "/ui/me/chat", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "admin login does not open the user surface")
}

func TestAdminProfileRoundTrip(t *testing.T) {
	router := newTestServer(t).Router()

	rec, _ := doJSON(t, router, http.MethodGet, "/ui/admin/profile", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, _ = doJSON(t, router, http.MethodPost, "/ui/admin/login", `{"username":"admin","password":"secret"}`)

	rec, env := doJSON(t, router, http.MethodGet, "/ui/admin/profile", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	rec, env = doJSON(t, router, http.MethodPut, "/ui/admin/profile", `{"username":"admin","name":"Raharpa Admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestLogoutReturnsToLoginState(t *testing.T) {
	router := newTestServer(t).Router()

	_, _ = doJSON(t, router, http.MethodPost, "/ui/login", `{"name":"Alice"}`)
	rec, env := doJSON(t, router, http.MethodPost, "/ui/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = doJSON(t, router, http.MethodGet, "/ui/me/chat", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteFailureMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation maps to bad request", &api.Failure{Kind: api.KindValidation, Message: "bad credentials"}, http.StatusBadRequest},
		{"timeout maps to gateway timeout", &api.Failure{Kind: api.KindTimeout}, http.StatusGatewayTimeout},
		{"network maps to bad gateway", &api.Failure{Kind: api.KindNetwork}, http.StatusBadGateway},
		{"http failure passes its status through", &api.Failure{Kind: api.KindHTTP, Status: http.StatusNotFound}, http.StatusNotFound},
		{"login in flight maps to conflict", session.ErrLoginInFlight, http.StatusConflict},
		{"not logged in maps to unauthorized", session.ErrNotLoggedIn, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeFailure(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
		})
	}
}
