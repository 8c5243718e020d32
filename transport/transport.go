// Package transport defines the narrow bus-driver contract the dispatch
// engine depends on: subscribe, unsubscribe, publish (fire-and-forget),
// and request (single reply, context-bound).
//
// Unlike the teacher's multi-broker transport registry, this contract
// models exactly one capability: a pub/sub bus with NATS Core-style
// request/reply semantics. Implementations live in transport/nats (the
// default, backed by nats.go) and transport/memory (an in-process fake
// used by tests and the example CLI).
package transport

import "context"

// SubscriptionID is an opaque handle returned by Subscribe, later passed
// to Unsubscribe. Implementations decide its concrete representation.
type SubscriptionID any

// Handler receives an inbound message. replyTo is the subject to
// publish a reply to, or empty for a fire-and-forget message.
type Handler func(msg []byte, replyTo string)

// Transport is the bus driver contract consumed by the Store Dispatcher,
// the Provider's Event Bridge, and the Request/Batch Executors.
//
// Implementations are assumed thread-safe: Subscribe/Unsubscribe/
// Publish/Request may be called concurrently from multiple goroutines.
type Transport interface {
	// Subscribe registers handler for subject, returning an opaque
	// SubscriptionID used to later Unsubscribe.
	Subscribe(subject string, handler Handler) (SubscriptionID, error)

	// Unsubscribe removes a subscription previously returned by
	// Subscribe. Unsubscribing an already-removed ID is a no-op.
	Unsubscribe(id SubscriptionID) error

	// Publish sends msg to subject without waiting for a reply.
	Publish(subject string, msg []byte) error

	// Request sends msg to subject and blocks for a single reply, bound
	// by ctx. Returns the reply payload, or an error if ctx is done
	// first.
	Request(ctx context.Context, subject string, msg []byte) ([]byte, error)
}
