// Package dsperr defines the closed taxonomy of errors the core surfaces to
// callers: validators, state machines, repositories and the orchestrator all
// report failures through *Error so that the HTTP transport can map a single
// set of kinds onto status codes without inspecting error strings.
package dsperr

import (
	"errors"
	"fmt"

	"github.com/dspconnect/core/urn"
)

// Kind is the closed set of error classifications spec.md §7 requires.
type Kind string

const (
	KindMalformedMessage      Kind = "MalformedMessage"
	KindUrnMalformed          Kind = "UrnMalformed"
	KindUnauthorized          Kind = "Unauthorized"
	KindForbidden             Kind = "Forbidden"
	KindNotFound              Kind = "NotFound"
	KindConflict              Kind = "Conflict"
	KindInvalidTransition     Kind = "InvalidTransition"
	KindPeerUnreachable       Kind = "PeerUnreachable"
	KindPeerInternalError     Kind = "PeerInternalError"
	KindPeerResponseMalformed Kind = "PeerResponseMalformed"
	KindPeerProtocolError     Kind = "PeerProtocolError"
	KindBackend               Kind = "Backend"
)

// Error is the single error type every core component returns. ProviderPid
// and ConsumerPid are populated whenever the failing call already knew the
// process pair; Reason is a free-text, non-sensitive explanation safe to
// return to a peer.
type Error struct {
	Kind        Kind
	ProviderPid urn.ProcessId
	ConsumerPid urn.ProcessId
	Reason      string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, dsperr.KindNotFound) read naturally by comparing
// Kind when the target is itself a *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a bare *Error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs a *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// WithProcesses returns a copy of e with the process pair attached.
func (e *Error) WithProcesses(providerPid, consumerPid urn.ProcessId) *Error {
	var cp = *e
	cp.ProviderPid = providerPid
	cp.ConsumerPid = consumerPid
	return &cp
}

// Sentinel values for errors.Is comparisons against a bare kind, e.g.
// errors.Is(err, dsperr.NotFound).
var (
	NotFound              = &Error{Kind: KindNotFound}
	Conflict              = &Error{Kind: KindConflict}
	Backend               = &Error{Kind: KindBackend}
	InvalidTransition     = &Error{Kind: KindInvalidTransition}
	Unauthorized          = &Error{Kind: KindUnauthorized}
	Forbidden             = &Error{Kind: KindForbidden}
	MalformedMessage      = &Error{Kind: KindMalformedMessage}
	UrnMalformed          = &Error{Kind: KindUrnMalformed}
	PeerUnreachable       = &Error{Kind: KindPeerUnreachable}
	PeerInternalError     = &Error{Kind: KindPeerInternalError}
	PeerResponseMalformed = &Error{Kind: KindPeerResponseMalformed}
	PeerProtocolError     = &Error{Kind: KindPeerProtocolError}
)

// KindOf extracts the Kind from err, returning ("", false) when err is not
// (or does not wrap) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
