// Package dcxerrors defines the closed set of error kinds produced by
// dcxsync, each carrying an optional context bag for observability.
package dcxerrors

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the closed error-kind set.
type Kind string

// Validation errors.
const (
	InvalidPath             Kind = "InvalidPath"
	DuplicateID              Kind = "DuplicateId"
	DuplicatePath            Kind = "DuplicatePath"
	UnknownID                Kind = "UnknownId"
	InvalidManifest          Kind = "InvalidManifest"
	InvalidLocalManifest     Kind = "InvalidLocalManifest"
	InvalidRemoteManifest    Kind = "InvalidRemoteManifest"
	MissingJSONData          Kind = "MissingJSONData"
)

// Local storage errors.
const (
	ManifestReadFailure          Kind = "ManifestReadFailure"
	ManifestWriteFailure         Kind = "ManifestWriteFailure"
	ManifestFinalWriteFailure    Kind = "ManifestFinalWriteFailure"
	ComponentReadFailure         Kind = "ComponentReadFailure"
	ComponentWriteFailure        Kind = "ComponentWriteFailure"
	FileDoesNotExist             Kind = "FileDoesNotExist"
	FileReadFailure              Kind = "FileReadFailure"
	FileWriteFailure             Kind = "FileWriteFailure"
	InvalidLocalStoragePath      Kind = "InvalidLocalStoragePath"
	CannotRemoveModifiedComponent Kind = "CannotRemoveModifiedComponent"
	FailedToStoreBaseManifest    Kind = "FailedToStoreBaseManifest"
)

// Sync errors.
const (
	ConflictingChanges       Kind = "ConflictingChanges"
	CompositeAlreadyExists   Kind = "CompositeAlreadyExists"
	UnknownComposite         Kind = "UnknownComposite"
	DeletedComposite         Kind = "DeletedComposite"
	CompositeHrefUnassigned  Kind = "CompositeHrefUnassigned"
	MissingComponentAsset    Kind = "MissingComponentAsset"
	MissingManifest          Kind = "MissingManifest"
)

// Journal errors.
const (
	InvalidJournal    Kind = "InvalidJournal"
	IncompleteJournal Kind = "IncompleteJournal"
)

// Transport errors.
const (
	BadRequest          Kind = "BadRequest"
	NetworkFailure      Kind = "NetworkFailure"
	Offline             Kind = "Offline"
	Cancelled           Kind = "Cancelled"
	AuthenticationFailed Kind = "AuthenticationFailed"
	RequestForbidden    Kind = "RequestForbidden"
	ServiceDisconnected Kind = "ServiceDisconnected"
	ServiceInvalidating Kind = "ServiceInvalidating"
	UnexpectedResponse  Kind = "UnexpectedResponse"
	UnsupportedProtocol Kind = "UnsupportedProtocol"
	ExceededQuota       Kind = "ExceededQuota"
)

// Error is the single error type dcxsync returns. Kind is always one of the
// constants above; Context carries observability data (request URL, HTTP
// status, offending path, ...) attached at the boundary that detected the
// failure.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, preserving cause for Unwrap.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithContext returns a copy of e with key=value added to its context bag.
func (e *Error) WithContext(key string, value any) *Error {
	cp := *e
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	cp.Context = ctx
	return &cp
}

// Is reports whether target is a *Error with the same Kind, satisfying
// errors.Is(err, dcxerrors.New(kind, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a dcxerrors.Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
