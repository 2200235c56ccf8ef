// Package ingesterrors defines the stable error taxonomy shared by the
// firehose consumer, dispatcher, CAR importer, and record ingestors.
package ingesterrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy's stable buckets.
type Kind int

const (
	// Transport covers socket I/O, HTTP failure, and low-level decode failure.
	Transport Kind = iota
	// Protocol covers malformed envelopes, invalid commit shapes, and wrong content-types.
	Protocol
	// Resolve covers handle/DID/PDS resolution failure.
	Resolve
	// Decompress covers dictionary decode failure; treated as Protocol by callers
	// that don't care about the distinction.
	Decompress
	// StorageTransient covers DB connection/deadlock errors that may succeed on retry.
	StorageTransient
	// NotFound covers lookups for an absent entity (e.g. an unknown job id).
	NotFound
	// Validation covers malformed caller input (bad id format, empty input, invalid limit).
	Validation
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Resolve:
		return "resolve"
	case Decompress:
		return "decompress"
	case StorageTransient:
		return "storage_transient"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged error. Op names the failing operation
// (e.g. "firehose.connect", "carimport.fetch_car") for logging.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name. A nil err is preserved as nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err if it (or a wrapped error) is a *Error,
// and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
