// Package errors collects the sentinel and typed errors shared by the
// provider, store, and dispatch packages.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrSchemaNameRequired = sterrors.New("pubsubstore: schema name is required")
	ErrTransportRequired  = sterrors.New("pubsubstore: transport is required")
	ErrBuildModelRequired = sterrors.New("pubsubstore: buildModel is required")
	ErrStoreAlreadyOpen   = sterrors.New("pubsubstore: store is already open")
	ErrStoreNotOpen       = sterrors.New("pubsubstore: store is not open")
	ErrProviderNoMetadata = sterrors.New("pubsubstore: schema has no metadata.deleted field, delete is unsupported")
	ErrConditionsRequired = sterrors.New("pubsubstore: conditions argument is required")
	ErrObjectRequired     = sterrors.New("pubsubstore: object argument is required")
	ErrIDRequired         = sterrors.New("pubsubstore: id argument is required")
	ErrHandlerRequired    = sterrors.New("pubsubstore: listener function is required")
	ErrNotStringPayload    = sterrors.New("pubsubstore: message payload is not a string or byte slice")
	ErrStreamNotAnObject   = sterrors.New("pubsubstore: decoded create event is not a JSON object")
	ErrStreamMissingObject = sterrors.New("pubsubstore: decoded create event has no object field")
)

// DecodeError wraps a JSON decode failure on an inbound wire message.
type DecodeError struct {
	Subject string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pubsubstore: decode %s: %v", e.Subject, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TimeoutError is returned when a request exceeds its configured timeout.
type TimeoutError struct {
	TimeoutMs int64
	Query     any
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query timeout after %dms", e.TimeoutMs)
}

// RemoteError wraps a wire-delivered {error:{message}} envelope.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// StreamError reports a failure observed on the Provider's object stream.
// It never aborts the stream; it is only ever surfaced through the
// stream-error channel.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("pubsubstore: stream %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
