// Package store implements the Store Dispatcher: it subscribes to a
// schema's CRUD subjects, decodes inbound requests, dispatches them to a
// pluggable Model, and publishes wrapped result/error envelopes back to
// the reply subject.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/dispatch"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/envelope"
	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/jsoncodec"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/logging"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/metrics"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/model"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/schema"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/subject"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/tracing"
	"github.com/GeorgeSapkin/pubsub-store/transport"
)

// Options configures an optional logger, metrics collector, hooks, and
// subject scheme for a Store.
type Options struct {
	Subjects subject.Options
	Logger   logging.ServiceLogger
	Metrics  *metrics.Dispatch
	Hooks    dispatch.Hooks
}

// Store subscribes to a schema's CRUD subjects and dispatches decoded
// requests to a Model.
type Store struct {
	schemaName string
	subjects   subject.Tuple
	transport  transport.Transport
	model      model.Model
	logger     logging.ServiceLogger
	metrics    *metrics.Dispatch
	hooks      dispatch.Hooks

	mu       sync.Mutex
	open     bool
	subIDs   []transport.SubscriptionID
	errorsMu sync.RWMutex
	errorFns map[string][]func(error)
}

// New validates its arguments and builds the Model once. It does not
// subscribe to anything; call Open for that.
func New(s schema.Schema, t transport.Transport, buildModel model.BuildModel, opts Options) (*Store, error) {
	if s.Name == "" {
		return nil, rterrors.ErrSchemaNameRequired
	}
	if t == nil {
		return nil, rterrors.ErrTransportRequired
	}
	if buildModel == nil {
		return nil, rterrors.ErrBuildModelRequired
	}

	m, err := buildModel(s.Name)
	if err != nil {
		return nil, err
	}

	return &Store{
		schemaName: s.Name,
		subjects:   subject.Build(s.Name, opts.Subjects),
		transport:  t,
		model:      m,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		hooks:      opts.Hooks,
		errorFns:   make(map[string][]func(error)),
	}, nil
}

// Subjects returns the subject tuple this Store dispatches on.
func (s *Store) Subjects() subject.Tuple { return s.subjects }

// OnError registers a listener for one of the error events
// ("count-error", "create-error", "find-error", "update-error").
func (s *Store) OnError(event string, fn func(error)) {
	s.errorsMu.Lock()
	defer s.errorsMu.Unlock()
	s.errorFns[event] = append(s.errorFns[event], fn)
}

func (s *Store) emitError(event string, err error) {
	s.errorsMu.RLock()
	fns := append([]func(error){}, s.errorFns[event]...)
	s.errorsMu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
	if s.logger != nil {
		s.logger.Error(event, err, logging.LogFields{"schema": s.schemaName})
	}
}

// Open subscribes both the base and wildcard subject of each of the
// four groups, recording subscription IDs in the order they were
// created. Fails if already open.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return rterrors.ErrStoreAlreadyOpen
	}

	bindings := []struct {
		subject string
		handler transport.Handler
	}{
		{s.subjects.Count.Base, s.handleCount},
		{s.subjects.Count.Wildcard, s.handleCount},
		{s.subjects.Create.Base, s.handleCreate},
		{s.subjects.Create.Wildcard, s.handleCreate},
		{s.subjects.Find.Base, s.handleFind},
		{s.subjects.Find.Wildcard, s.handleFind},
		{s.subjects.Update.Base, s.handleUpdate},
		{s.subjects.Update.Wildcard, s.handleUpdate},
	}

	var ids []transport.SubscriptionID
	for _, b := range bindings {
		id, err := s.transport.Subscribe(b.subject, b.handler)
		if err != nil {
			for _, rollback := range ids {
				_ = s.transport.Unsubscribe(rollback)
			}
			return err
		}
		ids = append(ids, id)
	}

	s.subIDs = ids
	s.open = true
	return nil
}

// Close unsubscribes every recorded subscription ID and clears the
// list. Fails if not open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return rterrors.ErrStoreNotOpen
	}

	for _, id := range s.subIDs {
		_ = s.transport.Unsubscribe(id)
	}
	s.subIDs = nil
	s.open = false
	return nil
}

func (s *Store) record(method string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(s.schemaName, method, time.Since(start), err)
	}
}

func (s *Store) handleCount(msg []byte, replyTo string) {
	start := time.Now()
	var req envelope.CountRequest
	if err := decode(msg, &req); err != nil {
		s.emitError("count-error", err)
		s.reply(replyTo, nil, err)
		s.record("count", start, err)
		return
	}

	conditions := req.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}

	ctx, span := tracing.Start(context.Background(), s.schemaName, "count")
	err := s.hooks.Run(s.schemaName, "count", func() error {
		n, err := s.model.Count(ctx, conditions)
		if err != nil {
			return err
		}
		s.reply(replyTo, n, nil)
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		s.emitError("count-error", err)
		s.reply(replyTo, nil, err)
	}
	s.record("count", start, err)
}

func (s *Store) handleCreate(msg []byte, replyTo string) {
	start := time.Now()
	var req envelope.CreateRequest
	if err := decode(msg, &req); err != nil {
		s.emitError("create-error", err)
		s.reply(replyTo, nil, err)
		s.record("create", start, err)
		return
	}

	object := normalizeObject(req.Object)

	ctx, span := tracing.Start(context.Background(), s.schemaName, "create")
	err := s.hooks.Run(s.schemaName, "create", func() error {
		result, err := s.model.Create(ctx, object, req.Projection)
		if err != nil {
			return err
		}
		s.reply(replyTo, result, nil)
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		s.emitError("create-error", err)
		s.reply(replyTo, nil, err)
	}
	s.record("create", start, err)
}

func (s *Store) handleFind(msg []byte, replyTo string) {
	start := time.Now()
	var req envelope.FindRequest
	if err := decode(msg, &req); err != nil {
		s.emitError("find-error", err)
		s.reply(replyTo, nil, err)
		s.record("find", start, err)
		return
	}

	conditions := req.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}

	opts := model.FindOptions{}
	if req.Options != nil {
		opts.Limit = req.Options.Limit
		opts.Skip = req.Options.Skip
	}

	ctx, span := tracing.Start(context.Background(), s.schemaName, "find")
	err := s.hooks.Run(s.schemaName, "find", func() error {
		docs, err := s.model.Find(ctx, conditions, req.Projection, opts)
		if err != nil {
			return err
		}
		s.reply(replyTo, docs, nil)
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		s.emitError("find-error", err)
		s.reply(replyTo, nil, err)
	}
	s.record("find", start, err)
}

func (s *Store) handleUpdate(msg []byte, replyTo string) {
	start := time.Now()
	var req envelope.UpdateRequest
	if err := decode(msg, &req); err != nil {
		s.emitError("update-error", err)
		s.reply(replyTo, nil, err)
		s.record("update", start, err)
		return
	}

	// multi:true is forced by the Store regardless of the wire payload.
	ctx, span := tracing.Start(context.Background(), s.schemaName, "update")
	err := s.hooks.Run(s.schemaName, "update", func() error {
		result, err := s.model.Update(ctx, req.Conditions, req.Object, model.UpdateOptions{
			Select: req.Projection,
			Multi:  true,
		})
		if err != nil {
			return err
		}
		s.reply(replyTo, result, nil)
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		s.emitError("update-error", err)
		s.reply(replyTo, nil, err)
	}
	s.record("update", start, err)
}

func (s *Store) reply(replyTo string, result any, failure error) {
	if replyTo == "" {
		return
	}
	var data []byte
	var err error
	if failure != nil {
		data, err = envelope.WrapError(failure)
	} else {
		data, err = envelope.WrapResult(result)
	}
	if err != nil {
		return
	}
	_ = s.transport.Publish(replyTo, data)
}

func decode(msg []byte, v any) error {
	if err := jsoncodec.Unmarshal(msg, v); err != nil {
		return &rterrors.DecodeError{Subject: "", Err: err}
	}
	return nil
}

// normalizeObject converts a JSON-decoded "object" field into either a
// map[string]any or a []map[string]any, matching the Model contract's
// scalar-vs-array requirement.
func normalizeObject(object any) any {
	switch o := object.(type) {
	case []any:
		out := make([]map[string]any, 0, len(o))
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return object
	}
}
