package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)
	return l
}

func openTestStore(t *testing.T, path string, key []byte) *Store {
	store, err := Open(path, key, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionRoundtrip(t *testing.T) {
	store := openTestStore(t, t.TempDir(), []byte("test-signing-key"))

	sess := &models.Session{
		SubjectID:   "u1",
		DisplayName: "Alice",
		Role:        models.RoleUser,
		IssuedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.PutSession(KeyUserData, sess))

	got, err := store.GetSession(KeyUserData)
	require.NoError(t, err)
	assert.Equal(t, sess.SubjectID, got.SubjectID)
	assert.Equal(t, sess.DisplayName, got.DisplayName)
	assert.Equal(t, sess.Role, got.Role)

	// Writing the session also stamps the activity timestamp.
	ts, err := store.GetTimestamp()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestMissingKeysReturnNotFound(t *testing.T) {
	store := openTestStore(t, t.TempDir(), []byte("test-signing-key"))

	_, err := store.GetSession(KeyAdminData)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetTimestamp()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	store := openTestStore(t, t.TempDir(), []byte("test-signing-key"))

	require.NoError(t, store.PutSession(KeyUserData, &models.Session{SubjectID: "u1"}))
	require.NoError(t, store.DeleteSession(KeyUserData))
	require.NoError(t, store.DeleteTimestamp())

	_, err := store.GetSession(KeyUserData)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetTimestamp()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTamperedRecordIsRejected(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	first, err := Open(dir, []byte("signing-key-one"), testLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.PutSession(KeyUserData, &models.Session{SubjectID: "u1"}))
	require.NoError(t, first.Close())

	// A record written under a different signing key must not authenticate.
	second := openTestStore(t, dir, []byte("signing-key-two"))
	_, err = second.GetSession(KeyUserData)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimestampRoundtrip(t *testing.T) {
	store := openTestStore(t, t.TempDir(), []byte("test-signing-key"))

	stamp := time.Now().Add(-3 * time.Hour)
	require.NoError(t, store.PutTimestamp(stamp))

	got, err := store.GetTimestamp()
	require.NoError(t, err)
	assert.Equal(t, stamp.UnixMilli(), got.UnixMilli())
}

func TestVolatileDoesNotPersist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	first, err := Open(dir, []byte("test-signing-key"), testLogger(t))
	require.NoError(t, err)
	first.SetVolatile("activeTab", "orders")

	value, ok := first.GetVolatile("activeTab")
	assert.True(t, ok)
	assert.Equal(t, "orders", value)
	require.NoError(t, first.Close())

	second := openTestStore(t, dir, []byte("test-signing-key"))
	_, ok = second.GetVolatile("activeTab")
	assert.False(t, ok)
}
