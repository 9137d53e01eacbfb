package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call. Views branch on the kind to decide
// between an inline message, an offline indicator, or a retry affordance.
type Kind string

const (
	// KindNetwork covers connection, DNS, and other transport failures.
	KindNetwork Kind = "NetworkError"
	// KindHTTP covers non-2xx responses, carrying the status code.
	KindHTTP Kind = "HttpError"
	// KindTimeout covers calls that exceeded their bounded execution time.
	KindTimeout Kind = "Timeout"
	// KindValidation covers success:false envelopes, e.g. bad credentials.
	KindValidation Kind = "ValidationError"
	// KindSocket covers real-time channel failures; these are non-fatal.
	KindSocket Kind = "SocketError"
)

// Failure is the typed error every resource client call resolves to when the
// backend call does not succeed. Raw transport exceptions never escape the
// resource client boundary.
type Failure struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code for KindHTTP failures, zero otherwise.
	Status int
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Kind == KindHTTP {
		return fmt.Sprintf("%s (%d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// AsFailure extracts the typed failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	failure, ok := AsFailure(err)
	return ok && failure.Kind == kind
}
