package transport

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/adobe/dcxsync/dcxerrors"
)

// classifyStatus maps an HTTP status code to its dcxerrors.Kind per the
// table in spec.md §6, grounded on the teacher's
// internal/client/errors.go HandleHTTPResponseError switch.
func classifyStatus(statusCode int, onPull bool, onComponentGet bool) dcxerrors.Kind {
	switch statusCode {
	case http.StatusUnauthorized:
		return dcxerrors.AuthenticationFailed
	case http.StatusForbidden:
		return dcxerrors.RequestForbidden
	case http.StatusNotFound:
		if onComponentGet {
			return dcxerrors.MissingComponentAsset
		}
		return dcxerrors.UnknownComposite
	case http.StatusConflict, http.StatusPreconditionFailed:
		return dcxerrors.ConflictingChanges
	case http.StatusRequestEntityTooLarge, http.StatusTooManyRequests:
		return dcxerrors.ExceededQuota
	}
	if statusCode >= 500 {
		return dcxerrors.NetworkFailure
	}
	return dcxerrors.BadRequest
}

// ClassifyHTTPError builds a *dcxerrors.Error of the appropriate Kind for a
// completed HTTP response with a non-2xx status, attaching the status,
// headers, and body to the error's context bag for observability (spec.md
// §7).
func ClassifyHTTPError(statusCode int, header http.Header, body []byte, onPull, onComponentGet bool) error {
	kind := classifyStatus(statusCode, onPull, onComponentGet)
	return dcxerrors.New(kind, http.StatusText(statusCode)).
		WithContext("httpStatus", statusCode).
		WithContext("headers", header).
		WithContext("body", string(body))
}

// ClassifyTransportError classifies a failure that occurred before any
// response was received (DNS failure, connection refused, context
// cancellation, timeout).
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return dcxerrors.Wrap(dcxerrors.Cancelled, err, "request cancelled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return dcxerrors.Wrap(dcxerrors.NetworkFailure, err, "network request failed")
	}
	return dcxerrors.Wrap(dcxerrors.Offline, err, "request failed before a response was received")
}
