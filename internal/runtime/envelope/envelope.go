// Package envelope implements the wire request/response shapes exchanged
// between the Provider and the Store: exactly one of {result} or
// {error:{message}} on the reply side, and one typed request payload per
// method on the request side.
package envelope

import (
	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/jsoncodec"
)

// CountRequest is the wire payload for a count request.
type CountRequest struct {
	Conditions map[string]any `json:"conditions"`
}

// CreateRequest is the wire payload for a create request. Object may be
// a single map or a slice of maps; the Model is contractually required
// to accept both.
type CreateRequest struct {
	Object     any            `json:"object"`
	Projection map[string]any `json:"projection,omitempty"`
}

// FindOptions bounds a find request's page.
type FindOptions struct {
	Limit int `json:"limit,omitempty"`
	Skip  int `json:"skip,omitempty"`
}

// FindRequest is the wire payload for a find request.
type FindRequest struct {
	Conditions map[string]any `json:"conditions"`
	Projection map[string]any `json:"projection,omitempty"`
	Options    *FindOptions   `json:"options,omitempty"`
}

// UpdateRequest is the wire payload for an update request. Multi is
// always forced true by the Store dispatcher on receipt.
type UpdateRequest struct {
	Conditions map[string]any `json:"conditions"`
	Object     map[string]any `json:"object"`
	Projection map[string]any `json:"projection,omitempty"`
	Multi      bool           `json:"multi"`
}

// responseError is the wire shape of the {error:{message}} envelope.
type responseError struct {
	Message string `json:"message"`
}

// wireResponse is the full response envelope. Exactly one of Result or
// Error is populated; the other is omitted from the wire encoding.
type wireResponse struct {
	Result any            `json:"result,omitempty"`
	Error  *responseError `json:"error,omitempty"`
}

// Response is the decoded, typed form of wireResponse: either Ok carries
// the result value, or Err carries the remote failure message.
type Response struct {
	Ok  any
	Err error
}

// EncodeRequest serializes a typed request payload for the wire. Field
// order is determined by the payload's struct tags, not map iteration,
// so the same request type always serializes in the same key order.
func EncodeRequest(payload any) ([]byte, error) {
	return jsoncodec.Marshal(payload)
}

// WrapResult encodes a successful result as a {result:v} envelope. The
// result key is present even when v is a zero or empty value.
func WrapResult(v any) ([]byte, error) {
	return jsoncodec.Marshal(struct {
		Result any `json:"result"`
	}{Result: v})
}

// WrapError encodes a failure as an {error:{message}} envelope. Only the
// message survives serialization.
func WrapError(err error) ([]byte, error) {
	if err == nil {
		err = &rterrors.RemoteError{Message: "unknown error"}
	}
	return jsoncodec.Marshal(wireResponse{Error: &responseError{Message: err.Error()}})
}

// DecodeResponse parses a reply payload into a Response. A JSON parse
// failure is returned directly as the error (not wrapped into Response),
// matching the Request Executor's "if parse fails, yields a decode
// error" contract.
func DecodeResponse(data []byte) (Response, error) {
	var wire wireResponse
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return Response{}, err
	}
	if wire.Error != nil {
		return Response{Err: &rterrors.RemoteError{Message: wire.Error.Message}}, nil
	}
	return Response{Ok: wire.Result}, nil
}
