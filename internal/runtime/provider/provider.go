// Package provider implements the Provider: a client that turns typed
// CRUD calls into request/reply messages against a schema's Store,
// merges in the tombstone-aware default conditions, and exposes the
// Event Bridge (events.go) and Stream Duplex (stream.go) built on top
// of the same subject scheme and transport.
package provider

import (
	"context"
	"sync"
	"time"

	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/dispatch"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/envelope"
	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/executor"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/logging"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/metrics"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/schema"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/subject"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/tracing"
	"github.com/GeorgeSapkin/pubsub-store/transport"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultBatchSize = 100
)

// Options configures a Provider.
type Options struct {
	Subjects subject.Options
	Logger   logging.ServiceLogger
	Metrics  *metrics.Dispatch
	Hooks    dispatch.Hooks

	// Timeout bounds every request that awaits a reply. Defaults to 5s.
	Timeout time.Duration

	// BatchSize governs find's page size. Defaults to 100.
	BatchSize int

	// NoAckStream switches the Stream Duplex's writable side to
	// fire-and-forget publishes. See stream.go.
	NoAckStream bool

	// HighWaterMark bounds the Stream Duplex's readable side buffering.
	// Defaults to 16.
	HighWaterMark int
}

// FindOptions bounds a Find/FindAll call.
type FindOptions struct {
	Limit int
	Skip  int
}

// Provider is a typed CRUD client for a single schema, built on top of
// the Request/Batch Executors, the Event Bridge, and the Stream Duplex.
type Provider struct {
	schemaName        string
	subjects          subject.Tuple
	transport         transport.Transport
	hasMetadata       bool
	defaultConditions map[string]any

	timeout       time.Duration
	batchSize     int
	noAckStream   bool
	highWaterMark int

	logger  logging.ServiceLogger
	metrics *metrics.Dispatch
	hooks   dispatch.Hooks

	events eventBridge

	streamOnce sync.Once
	stream     *Stream
}

// New validates its arguments, evaluates the schema's fields once, and
// computes the tombstone-aware default conditions. It does not
// subscribe to anything until the Event Bridge or Stream Duplex is
// used.
func New(s schema.Schema, t transport.Transport, opts Options) (*Provider, error) {
	if s.Name == "" {
		return nil, rterrors.ErrSchemaNameRequired
	}
	if t == nil {
		return nil, rterrors.ErrTransportRequired
	}

	fields := schema.Evaluate(s)
	hasMetadata := schema.HasMetadataDeleted(fields)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	highWaterMark := opts.HighWaterMark
	if highWaterMark <= 0 {
		highWaterMark = 16
	}

	p := &Provider{
		schemaName:        s.Name,
		subjects:          subject.Build(s.Name, opts.Subjects),
		transport:         t,
		hasMetadata:       hasMetadata,
		defaultConditions: schema.DefaultConditions(hasMetadata),
		timeout:           timeout,
		batchSize:         batchSize,
		noAckStream:       opts.NoAckStream,
		highWaterMark:     highWaterMark,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		hooks:             opts.Hooks,
	}
	p.events.provider = p
	p.events.listeners = make(map[string][]*listenerEntry)
	return p, nil
}

// Subjects returns the subject tuple this Provider dispatches on.
func (p *Provider) Subjects() subject.Tuple { return p.subjects }

// HasMetadata reports whether the schema declares metadata.deleted,
// enabling delete/deleteById.
func (p *Provider) HasMetadata() bool { return p.hasMetadata }

func (p *Provider) dispatch(ctx context.Context, subj, method string, payload any) (any, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, p.schemaName, method)
	var result any
	err := p.hooks.Run(p.schemaName, method, func() error {
		r, err := executor.Exec(ctx, p.transport, subj, executor.Options{Timeout: p.timeout}, payload)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	tracing.End(span, err)
	if p.metrics != nil {
		p.metrics.Observe(p.schemaName, method, time.Since(start), err)
	}
	if err != nil && p.logger != nil {
		p.logger.Error(method, err, logging.LogFields{"schema": p.schemaName})
	}
	return result, err
}

// Count merges the default conditions into conditions and returns the
// number of matching documents. conditions is required; use CountAll
// for the unconditional form.
func (p *Provider) Count(ctx context.Context, conditions map[string]any) (int64, error) {
	if conditions == nil {
		return 0, rterrors.ErrConditionsRequired
	}
	return p.countWith(ctx, conditions)
}

// CountAll counts every document matching only the default conditions.
func (p *Provider) CountAll(ctx context.Context) (int64, error) {
	return p.countWith(ctx, map[string]any{})
}

func (p *Provider) countWith(ctx context.Context, conditions map[string]any) (int64, error) {
	merged := schema.MergeConditions(p.defaultConditions, conditions)
	result, err := p.dispatch(ctx, p.subjects.Count.Base, "count", envelope.CountRequest{Conditions: merged})
	if err != nil {
		return 0, err
	}
	return toInt64(result), nil
}

// Create sends object (never merged with default conditions) and
// returns the Model's result. object is required.
func (p *Provider) Create(ctx context.Context, object any, projection map[string]any) (any, error) {
	if object == nil {
		return nil, rterrors.ErrObjectRequired
	}
	return p.dispatch(ctx, p.subjects.Create.Base, "create", envelope.CreateRequest{Object: object, Projection: projection})
}

// Find merges the default conditions into conditions and paginates
// through matching documents via the Batch Executor. conditions is
// required; use FindAll for the unconditional form.
func (p *Provider) Find(ctx context.Context, conditions, projection map[string]any, options FindOptions) ([]any, error) {
	if conditions == nil {
		return nil, rterrors.ErrConditionsRequired
	}
	return p.findWith(ctx, conditions, projection, options)
}

// FindAll finds every document matching only the default conditions.
func (p *Provider) FindAll(ctx context.Context, projection map[string]any, options FindOptions) ([]any, error) {
	return p.findWith(ctx, map[string]any{}, projection, options)
}

func (p *Provider) findWith(ctx context.Context, conditions, projection map[string]any, options FindOptions) ([]any, error) {
	merged := schema.MergeConditions(p.defaultConditions, conditions)
	return p.batchFind(ctx, merged, projection, options)
}

// findRaw paginates without merging in the default conditions, used by
// Delete's post-tombstone lookup where the default conditions would
// exclude the very documents just marked deleted.
func (p *Provider) findRaw(ctx context.Context, conditions, projection map[string]any, options FindOptions) ([]any, error) {
	return p.batchFind(ctx, conditions, projection, options)
}

func (p *Provider) batchFind(ctx context.Context, conditions, projection map[string]any, options FindOptions) ([]any, error) {
	pageFn := func(ctx context.Context, limit, skip int) ([]any, error) {
		req := envelope.FindRequest{
			Conditions: conditions,
			Projection: projection,
			Options:    &envelope.FindOptions{Limit: limit, Skip: options.Skip + skip},
		}
		result, err := p.dispatch(ctx, p.subjects.Find.Base, "find", req)
		if err != nil {
			return nil, err
		}
		docs, _ := result.([]any)
		return docs, nil
	}
	return executor.BatchExec(ctx, pageFn, p.batchSize, executor.BatchOptions{Limit: options.Limit})
}

// FindById looks up a single document by _id, merging in the default
// conditions. Resolves nil if the server returns zero or more than one
// document — a query leak is not treated as an error. id is required.
func (p *Provider) FindById(ctx context.Context, id any, projection map[string]any) (any, error) {
	if id == nil {
		return nil, rterrors.ErrIDRequired
	}
	docs, err := p.findWith(ctx, map[string]any{"_id": id}, projection, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	return singleOrNil(docs), nil
}

// Delete requires the schema to declare metadata.deleted. It stamps
// metadata.deleted/metadata.updated via $currentDate on every document
// matching the merged conditions, then returns the post-tombstone
// documents (not the pre-tombstone snapshot). conditions is required.
func (p *Provider) Delete(ctx context.Context, conditions, projection map[string]any) ([]any, error) {
	if !p.hasMetadata {
		return nil, rterrors.ErrProviderNoMetadata
	}
	if conditions == nil {
		return nil, rterrors.ErrConditionsRequired
	}

	merged := schema.MergeConditions(p.defaultConditions, conditions)
	update := map[string]any{
		"$currentDate": map[string]any{"metadata.deleted": true, "metadata.updated": true},
	}
	_, err := p.dispatch(ctx, p.subjects.Update.Base, "update", envelope.UpdateRequest{
		Conditions: merged,
		Object:     update,
		Multi:      true,
	})
	if err != nil {
		return nil, err
	}

	deletedConditions := mergeConditionFields(conditions, map[string]any{
		"metadata.deleted": map[string]any{"$exists": true},
	})
	return p.findRaw(ctx, deletedConditions, projection, FindOptions{})
}

// DeleteById deletes a single document by _id and applies the
// single-element-or-nil reducer to the result. id is required.
func (p *Provider) DeleteById(ctx context.Context, id any, projection map[string]any) (any, error) {
	if id == nil {
		return nil, rterrors.ErrIDRequired
	}
	docs, err := p.Delete(ctx, map[string]any{"_id": id}, projection)
	if err != nil {
		return nil, err
	}
	return singleOrNil(docs), nil
}

// UpdateById updates a single document by _id. When the schema has
// metadata.deleted, object is merged with a $currentDate stamp on
// metadata.updated. Both id and object are required.
func (p *Provider) UpdateById(ctx context.Context, id any, object map[string]any, projection map[string]any) (any, error) {
	if id == nil {
		return nil, rterrors.ErrIDRequired
	}
	if object == nil {
		return nil, rterrors.ErrObjectRequired
	}

	conditions := schema.MergeConditions(p.defaultConditions, map[string]any{"_id": id})
	toSend := object
	if p.hasMetadata {
		toSend = mergeCurrentDate(object, map[string]any{"metadata.updated": true})
	}

	_, err := p.dispatch(ctx, p.subjects.Update.Base, "update", envelope.UpdateRequest{
		Conditions: conditions,
		Object:     toSend,
		Projection: projection,
		Multi:      true,
	})
	if err != nil {
		return nil, err
	}
	return p.FindById(ctx, id, projection)
}

func singleOrNil(docs []any) any {
	if len(docs) != 1 {
		return nil
	}
	return docs[0]
}

func mergeConditionFields(base, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func mergeCurrentDate(object, extra map[string]any) map[string]any {
	out := make(map[string]any, len(object)+1)
	for k, v := range object {
		out[k] = v
	}
	existing, _ := out["$currentDate"].(map[string]any)
	merged := make(map[string]any, len(existing)+len(extra))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	out["$currentDate"] = merged
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
