package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/models"
)

func signedToken(t *testing.T, expiry time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "a1",
		ExpiresAt: jwt.NewNumericDate(expiry),
	})
	signed, err := token.SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return signed
}

func adminLoginServer(t *testing.T, token string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin", body["username"])

		fmt.Fprintf(w, `{"success":true,"data":{"id":"a1","username":"admin","name":"Raharpa Admin","token":%q}}`, token)
	}))
}

func TestAdminLogin(t *testing.T) {
	srv := adminLoginServer(t, signedToken(t, time.Now().Add(time.Hour)))
	defer srv.Close()

	admin := NewAdminClient(NewClient(srv.URL, testLogger(t), nil))
	sess, err := admin.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	assert.Equal(t, "a1", sess.SubjectID)
	assert.Equal(t, "Raharpa Admin", sess.DisplayName)
	assert.Equal(t, models.RoleAdmin, sess.Role)
	assert.NotEmpty(t, sess.Token)
}

func TestAdminLoginRejectsExpiredToken(t *testing.T) {
	srv := adminLoginServer(t, signedToken(t, time.Now().Add(-time.Hour)))
	defer srv.Close()

	admin := NewAdminClient(NewClient(srv.URL, testLogger(t), nil))
	_, err := admin.Login(context.Background(), "admin", "secret")
	assert.True(t, IsKind(err, KindValidation), "got %v", err)
}

func TestTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	got, err := TokenExpiry(signedToken(t, expiry))
	require.NoError(t, err)
	assert.Equal(t, expiry.Unix(), got.Unix())

	_, err = TokenExpiry("not-a-jwt")
	assert.Error(t, err)
}
