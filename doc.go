// Package pubsubstore is a small pub/sub CRUD layer: a Store that
// dispatches count/create/find/update requests to a pluggable storage
// Model, and a Provider that talks to one or many Stores over the same
// bus using typed request/reply calls, event subscriptions, and a
// channel-based object stream.
//
// Subjects are derived from a schema name (see subject.Build): each
// schema gets four method groups, each with a base subject for direct
// dispatch and a wildcard subject for sub-resource routing. The Store
// subscribes to both per group; the Provider's Event Bridge reuses the
// same subjects to observe create/update traffic without a separate
// publish path.
//
// A minimal setup fills out a schema.Schema, builds a Model (the
// bundled model.Memory is enough for tests and local development),
// opens a store.Store with a transport.Transport, and constructs a
// provider.Provider against the same schema and transport. See
// cmd/pubsubstorectl for a runnable example wired against both the
// in-memory transport and a real NATS connection.
//
// # Transports
//
// pubsubstore ships two Transport implementations:
//   - nats: NATS Core request/reply, via nats.go
//   - memory: an in-process fake with NATS-style subject wildcard
//     matching, for tests and local development without a broker
//
// # Tombstone deletes
//
// A schema that declares a metadata.deleted field gets soft-delete
// semantics for free: Provider.Delete stamps metadata.deleted via
// $currentDate instead of physically removing documents, and every
// read method merges in a default condition excluding tombstoned rows
// unless the caller's own conditions say otherwise.
//
// # Hooks and metrics
//
// dispatch.Hooks exposes OnRequestStart/OnRequestDone/OnRequestError
// callbacks around every dispatch, on both the Store and Provider side.
// metrics.Dispatch records the same lifecycle as Prometheus counters
// and a latency histogram, keyed by schema and method.
package pubsubstore
