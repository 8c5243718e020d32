// Package dispatch holds the lifecycle hooks shared by the Store Dispatcher
// and the Provider's Request/Batch Executors.
package dispatch

import "time"

// RequestContext describes a single dispatch request to a Hooks callback.
type RequestContext struct {
	Schema    string
	Method    string
	StartedAt time.Time
	Duration  time.Duration
}

// Hooks are optional callbacks invoked around a dispatch request. Nil
// hooks are simply not called.
type Hooks struct {
	// OnRequestStart is called before the request is dispatched to the
	// Model (Store side) or published to the bus (Provider side).
	OnRequestStart func(ctx RequestContext)

	// OnRequestDone is called after a request completes successfully.
	// Duration is set to how long the request took.
	OnRequestDone func(ctx RequestContext)

	// OnRequestError is called when a request fails. Duration is set to
	// how long the request took before failing.
	OnRequestError func(ctx RequestContext, err error)
}

// Merge combines two Hooks into one that calls both, h's callbacks first.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnRequestStart: chainStart(h.OnRequestStart, other.OnRequestStart),
		OnRequestDone:  chainDone(h.OnRequestDone, other.OnRequestDone),
		OnRequestError: chainError(h.OnRequestError, other.OnRequestError),
	}
}

func chainStart(a, b func(RequestContext)) func(RequestContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext) {
		a(ctx)
		b(ctx)
	}
}

func chainDone(a, b func(RequestContext)) func(RequestContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext) {
		a(ctx)
		b(ctx)
	}
}

func chainError(a, b func(RequestContext, error)) func(RequestContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// Run executes fn, invoking the start/done/error hooks around it.
func (h Hooks) Run(schema, method string, fn func() error) error {
	ctx := RequestContext{Schema: schema, Method: method, StartedAt: time.Now()}
	if h.OnRequestStart != nil {
		h.OnRequestStart(ctx)
	}

	err := fn()
	ctx.Duration = time.Since(ctx.StartedAt)

	if err != nil {
		if h.OnRequestError != nil {
			h.OnRequestError(ctx, err)
		}
		return err
	}
	if h.OnRequestDone != nil {
		h.OnRequestDone(ctx)
	}
	return nil
}
