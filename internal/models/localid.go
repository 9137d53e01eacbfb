package models

import "github.com/google/uuid"

// LocalID distinguishes optimistic, not-yet-confirmed entities from entities
// the backend has acknowledged. A pending ID never collides with a server ID,
// so reconciliation is a plain comparison instead of string prefix sniffing.
type LocalID struct {
	id      string
	pending bool
}

// NewPendingID mints a temporary identifier for an optimistic local entry.
func NewPendingID() LocalID {
	return LocalID{id: uuid.NewString(), pending: true}
}

// ConfirmedID wraps a server-assigned identifier.
func ConfirmedID(id string) LocalID {
	return LocalID{id: id}
}

// String returns the raw identifier value.
func (l LocalID) String() string { return l.id }

// IsPending reports whether the identifier is a temporary local marker.
func (l LocalID) IsPending() bool { return l.pending }

// Confirm returns the confirmed form of the identifier once the backend has
// assigned a real one.
func (l LocalID) Confirm(serverID string) LocalID {
	return LocalID{id: serverID}
}

// Equal reports whether two identifiers refer to the same entry, which
// requires both the value and the pending/confirmed tag to match.
func (l LocalID) Equal(other LocalID) bool {
	return l.id == other.id && l.pending == other.pending
}
