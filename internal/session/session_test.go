package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/localstore"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const testWindow = 168 * time.Hour

func testLogger(t *testing.T) *logger.Logger {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)
	return l
}

func testStore(t *testing.T) *localstore.Store {
	store, err := localstore.Open(t.TempDir(), []byte("test-signing-key"), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSession() *models.Session {
	return &models.Session{
		SubjectID:   "u1",
		DisplayName: "Alice",
		Role:        models.RoleUser,
		IssuedAt:    time.Now(),
	}
}

func TestLoginPersistsAndResumeRestores(t *testing.T) {
	store := testStore(t)
	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))

	sess, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
		return testSession(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateLoggedIn, m.State())
	assert.Equal(t, "u1", sess.SubjectID)

	// A second manager over the same store stands in for a fresh process.
	restored := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))
	got, ok := restored.Resume()
	require.True(t, ok)
	assert.Equal(t, "u1", got.SubjectID)
	assert.Equal(t, StateLoggedIn, restored.State())
}

func TestResumeRejectsStaleSession(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.PutSession(localstore.KeyUserData, testSession()))
	// Last activity eight days ago, one day past the seven-day window.
	require.NoError(t, store.PutTimestamp(time.Now().Add(-8*24*time.Hour)))

	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))
	_, ok := m.Resume()
	assert.False(t, ok)
	assert.Equal(t, StateLoggedOut, m.State())

	// The stale record is cleaned up, not left behind.
	_, err := store.GetSession(localstore.KeyUserData)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestLoginFailureStaysLoggedOut(t *testing.T) {
	store := testStore(t)
	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))

	wantErr := errors.New("invalid credentials")
	_, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, StateLoggedOut, m.State())

	_, err = store.GetSession(localstore.KeyUserData)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestSingleLoginInFlight(t *testing.T) {
	store := testStore(t)
	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
			close(started)
			<-release
			return testSession(), nil
		})
		done <- err
	}()

	<-started
	_, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
		return testSession(), nil
	})
	assert.ErrorIs(t, err, ErrLoginInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateLoggedIn, m.State())
}

func TestLogoutClearsLocalDespiteBackendFailure(t *testing.T) {
	store := testStore(t)
	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))

	backendErr := errors.New("backend unreachable")
	m.SetBackendLogout(func(ctx context.Context, subjectID string) error {
		assert.Equal(t, "u1", subjectID)
		return backendErr
	})

	_, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
		return testSession(), nil
	})
	require.NoError(t, err)

	err = m.Logout(context.Background())
	assert.ErrorIs(t, err, backendErr)
	assert.Equal(t, StateLoggedOut, m.State())
	assert.Nil(t, m.Current())

	_, err = store.GetSession(localstore.KeyUserData)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestLogoutWithoutSession(t *testing.T) {
	m := NewManager(testStore(t), localstore.KeyUserData, testWindow, testLogger(t))
	assert.ErrorIs(t, m.Logout(context.Background()), ErrNotLoggedIn)
}

func TestTouchRefreshesTimestamp(t *testing.T) {
	store := testStore(t)
	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))

	_, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
		return testSession(), nil
	})
	require.NoError(t, err)

	require.NoError(t, store.PutTimestamp(time.Now().Add(-time.Hour)))
	m.Touch()

	ts, err := store.GetTimestamp()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestExpiryCheckFiresHandler(t *testing.T) {
	store := testStore(t)
	m := NewManager(store, localstore.KeyUserData, testWindow, testLogger(t))

	expired := false
	m.SetExpiryHandler(func() { expired = true })

	_, err := m.Login(context.Background(), func(ctx context.Context) (*models.Session, error) {
		return testSession(), nil
	})
	require.NoError(t, err)

	require.NoError(t, store.PutTimestamp(time.Now().Add(-8*24*time.Hour)))
	m.checkExpiry()

	assert.True(t, expired)
	assert.Equal(t, StateLoggedOut, m.State())
	_, err = store.GetSession(localstore.KeyUserData)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}
