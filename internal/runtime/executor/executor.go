// Package executor implements the Request Executor and Batch Executor:
// a single-shot request/reply with timeout and decode, and a paginated
// accumulator built on top of it.
package executor

import (
	"context"
	"errors"
	"time"

	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/envelope"
	"github.com/GeorgeSapkin/pubsub-store/transport"
)

// Options configures a single Exec call.
type Options struct {
	// NoAck switches to fire-and-forget publish: no timer, no reply
	// parsing, resolves immediately after publish.
	NoAck bool
	// Timeout bounds how long a non-NoAck request waits for a reply.
	Timeout time.Duration
}

// Exec serializes query, sends it over t to subject per opts, and
// returns the decoded result value, or an error.
func Exec(ctx context.Context, t transport.Transport, subject string, opts Options, query any) (any, error) {
	payload, err := envelope.EncodeRequest(query)
	if err != nil {
		return nil, err
	}

	if opts.NoAck {
		return nil, t.Publish(subject, payload)
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reply, err := t.Request(reqCtx, subject, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &rterrors.TimeoutError{TimeoutMs: opts.Timeout.Milliseconds(), Query: query}
		}
		return nil, err
	}

	resp, err := envelope.DecodeResponse(reply)
	if err != nil {
		return nil, &rterrors.DecodeError{Subject: subject, Err: err}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Ok, nil
}

// PageFunc fetches a single page of up to limit items starting at skip.
type PageFunc func(ctx context.Context, limit, skip int) ([]any, error)

// BatchOptions bounds a BatchExec accumulation.
type BatchOptions struct {
	// Limit is the maximum total number of items to accumulate. A
	// non-positive value defaults to batchSize (a single page).
	Limit int
}

// BatchExec accumulates pages from pageFn, batchSize items at a time,
// until limit is reached or a short page (fewer than batchSize items)
// is returned.
func BatchExec(ctx context.Context, pageFn PageFunc, batchSize int, opts BatchOptions) ([]any, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	left := opts.Limit
	if left <= 0 {
		left = batchSize
	}

	var result []any
	iter := 0
	for {
		pageLimit := batchSize
		if left < pageLimit {
			pageLimit = left
		}
		skip := batchSize * iter

		page, err := pageFn(ctx, pageLimit, skip)
		if err != nil {
			return nil, err
		}
		result = append(result, page...)

		left -= batchSize
		iter++

		if left <= 0 || len(page) < batchSize {
			break
		}
	}
	return result, nil
}
