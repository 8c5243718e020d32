package provider

import (
	"context"
	"sync"

	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/envelope"
)

// streamProjection is the fixed projection the Writable side sends with
// every create request it issues.
var streamProjection = map[string]any{"id": 1}

// ObjectReader is the Readable side of the Stream Duplex: decoded
// objects pushed from bus create events, plus a side channel for
// non-terminating stream errors.
type ObjectReader struct {
	objects chan any
	errs    chan error
}

// Objects returns the channel of decoded create-event payloads. If a
// delivered event's object field is itself an array, each element is
// pushed individually.
func (r *ObjectReader) Objects() <-chan any { return r.objects }

// StreamErrors returns the channel of non-terminating read failures:
// bus decode errors, or a create event missing its object field.
func (r *ObjectReader) StreamErrors() <-chan error { return r.errs }

func (r *ObjectReader) push(obj any) {
	r.objects <- obj
}

func (r *ObjectReader) emitError(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

func (r *ObjectReader) handleEvent(err error, query any) {
	if err != nil {
		r.emitError(&rterrors.StreamError{Op: "read", Err: err})
		return
	}

	message, ok := query.(map[string]any)
	if !ok {
		r.emitError(&rterrors.StreamError{Op: "read", Err: rterrors.ErrStreamNotAnObject})
		return
	}

	object, ok := message["object"]
	if !ok {
		r.emitError(&rterrors.StreamError{Op: "read", Err: rterrors.ErrStreamMissingObject})
		return
	}

	if items, ok := object.([]any); ok {
		for _, item := range items {
			r.push(item)
		}
		return
	}
	r.push(object)
}

// ObjectWriter is the Writable side of the Stream Duplex: each written
// chunk becomes a create request against the owning Provider.
type ObjectWriter struct {
	provider *Provider
	noAck    bool
	errs     chan error

	// _writev coalescing state, NoAckStream mode only. A Write call that
	// finds no flush in flight becomes that flush's owner and starts the
	// goroutine that drains pending; every other caller just appends and returns,
	// trusting the owner to publish it. This is a single-owner queue,
	// not a free-for-all: pending and flushing are only ever touched
	// with mu held, so there is never more than one goroutine publishing
	// on behalf of this writer at a time.
	mu       sync.Mutex
	pending  []any
	flushing bool
}

// StreamErrors returns the channel of asynchronous write failures.
func (w *ObjectWriter) StreamErrors() <-chan error { return w.errs }

func (w *ObjectWriter) emitError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// Write sends a single object as a create request with the stream's
// fixed {id:1} projection.
//
// In acknowledged mode (the default), Write issues the create request
// on its own goroutine and returns without waiting for it; failures are
// reported asynchronously via
// StreamErrors rather than as Write's return value, so a single failed
// chunk never tears down the duplex. In NoAckStream mode, Write hands
// the object to the writev coalescer: if no publish is currently in
// flight, it is published alone; if one is in flight, it is queued and
// coalesced with every other Write call that arrives before that
// publish completes, and the whole queued batch goes out as a single
// array payload in one publish. Either way Write returns immediately;
// publish failures in NoAckStream mode are reported via StreamErrors
// too, since a coalesced write has no single caller to return an error
// to.
func (w *ObjectWriter) Write(ctx context.Context, object any) error {
	if w.noAck {
		w.enqueueWritev(object)
		return nil
	}

	go func() {
		if _, err := w.provider.Create(ctx, object, streamProjection); err != nil {
			w.emitError(&rterrors.StreamError{Op: "write", Err: err})
		}
	}()
	return nil
}

// WriteBatch sends multiple chunks packed into a single create request
// whose object field is the chunk array — a caller-assembled batch,
// published immediately and never coalesced with other Write calls.
// It is always a fire-and-forget publish, whatever the NoAckStream mode.
func (w *ObjectWriter) WriteBatch(ctx context.Context, objects []any) error {
	return w.publish(objects)
}

// enqueueWritev appends object to the pending writev batch. The first
// caller to find the writer idle becomes the flush owner and starts
// draining it in the background; later callers just enqueue.
func (w *ObjectWriter) enqueueWritev(object any) {
	w.mu.Lock()
	w.pending = append(w.pending, object)
	if w.flushing {
		w.mu.Unlock()
		return
	}
	w.flushing = true
	w.mu.Unlock()

	go w.drainWritev()
}

// drainWritev publishes the pending batch, then re-checks pending in
// case more Write calls coalesced while the publish was in flight,
// looping until the queue is empty.
func (w *ObjectWriter) drainWritev() {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.flushing = false
			w.mu.Unlock()
			return
		}
		batch := w.pending
		w.pending = nil
		w.mu.Unlock()

		var payload any = batch[0]
		if len(batch) > 1 {
			payload = batch
		}
		if err := w.publish(payload); err != nil {
			w.emitError(&rterrors.StreamError{Op: "write", Err: err})
		}
	}
}

func (w *ObjectWriter) publish(payload any) error {
	data, err := envelope.EncodeRequest(envelope.CreateRequest{Object: payload, Projection: streamProjection})
	if err != nil {
		return err
	}
	return w.provider.transport.Publish(w.provider.subjects.Create.Base, data)
}

// Stream composes an ObjectReader and an ObjectWriter behind one
// façade, matching the object-mode duplex described for the Provider.
type Stream struct {
	Reader *ObjectReader
	Writer *ObjectWriter
}

// Stream returns the Provider's object-mode duplex, lazily subscribing
// the Readable side to the bus "create" event on first call.
func (p *Provider) Stream() *Stream {
	p.streamOnce.Do(func() {
		reader := &ObjectReader{
			objects: make(chan any, p.highWaterMark),
			errs:    make(chan error, p.highWaterMark),
		}
		p.On("create", reader.handleEvent)

		p.stream = &Stream{
			Reader: reader,
			Writer: &ObjectWriter{
				provider: p,
				noAck:    p.noAckStream,
				errs:     make(chan error, p.highWaterMark),
			},
		}
	})
	return p.stream
}
