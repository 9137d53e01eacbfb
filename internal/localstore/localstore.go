// Package localstore provides the client's durable local key/value storage.
// It persists the serialized session records ("userData"/"adminData") and the
// session activity timestamp in an embedded Pebble database, with record
// bodies authenticated through gorilla/securecookie so a tampered-with store
// is detected on read rather than trusted. A small in-memory table backs the
// transient per-tab flags that must not survive a restart.
package localstore

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/gorilla/securecookie"

	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

// Well-known storage keys. The names mirror the keys the presentation layer
// has always used, so a store written by an older build stays readable.
const (
	KeyUserData         = "userData"
	KeyAdminData        = "adminData"
	KeySessionTimestamp = "sessionTimestamp"
)

// ErrNotFound is returned when a requested key has no stored value.
var ErrNotFound = errors.New("localstore: key not found")

// Storage defines the operations the session layer needs from durable
// client-side storage.
type Storage interface {
	PutSession(key string, session *models.Session) error
	GetSession(key string) (*models.Session, error)
	DeleteSession(key string) error
	PutTimestamp(t time.Time) error
	GetTimestamp() (time.Time, error)
	DeleteTimestamp() error
	SetVolatile(key, value string)
	GetVolatile(key string) (string, bool)
	Close() error
}

// Store implements Storage on top of an embedded Pebble database.
type Store struct {
	db    *pebble.DB
	codec *securecookie.SecureCookie
	log   *logger.Logger

	mu       sync.RWMutex
	volatile map[string]string
}

var _ Storage = (*Store)(nil)

// Open opens (or creates) the local store at path. The signing key
// authenticates persisted session records; it must be stable across runs.
func Open(path string, signingKey []byte, l *logger.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		l.Sugar().Errorf("Failed to open local store: %s", err)
		return nil, err
	}

	codec := securecookie.New(signingKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Store{
		db:       db,
		codec:    codec,
		log:      l,
		volatile: make(map[string]string),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutSession serializes and stores a session record under key. Every session
// write also stamps the activity timestamp so staleness stays detectable.
func (s *Store) PutSession(key string, session *models.Session) error {
	encoded, err := s.codec.Encode(key, session)
	if err != nil {
		s.log.Sugar().Errorf("Failed to encode session record: %s", err)
		return err
	}

	if err := s.db.Set([]byte(key), []byte(encoded), pebble.Sync); err != nil {
		return err
	}
	return s.PutTimestamp(time.Now())
}

// GetSession loads and authenticates the session record stored under key.
// A missing key returns ErrNotFound; a record that fails authentication is
// treated the same way after logging, since a forged session must not load.
func (s *Store) GetSession(key string) (*models.Session, error) {
	raw, err := s.get(key)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := s.codec.Decode(key, string(raw), &session); err != nil {
		s.log.Sugar().Warnf("Discarding unreadable session record %q: %s", key, err)
		return nil, ErrNotFound
	}
	return &session, nil
}

// DeleteSession removes the session record stored under key.
func (s *Store) DeleteSession(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

// PutTimestamp records the last session activity time.
func (s *Store) PutTimestamp(t time.Time) error {
	value := strconv.FormatInt(t.UnixMilli(), 10)
	return s.db.Set([]byte(KeySessionTimestamp), []byte(value), pebble.Sync)
}

// GetTimestamp returns the last recorded session activity time.
func (s *Store) GetTimestamp() (time.Time, error) {
	raw, err := s.get(KeySessionTimestamp)
	if err != nil {
		return time.Time{}, err
	}

	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		s.log.Sugar().Warnf("Discarding unreadable session timestamp: %s", err)
		return time.Time{}, ErrNotFound
	}
	return time.UnixMilli(millis), nil
}

// DeleteTimestamp removes the stored activity timestamp.
func (s *Store) DeleteTimestamp() error {
	return s.db.Delete([]byte(KeySessionTimestamp), pebble.Sync)
}

// SetVolatile stores a transient value that is lost when the process exits.
func (s *Store) SetVolatile(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volatile[key] = value
}

// GetVolatile returns a transient value previously set with SetVolatile.
func (s *Store) GetVolatile(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.volatile[key]
	return value, ok
}

func (s *Store) get(key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}
