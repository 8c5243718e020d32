package dispatch

import (
	"errors"
	"testing"
)

func TestHooksRunInvokesStartAndDoneOnSuccess(t *testing.T) {
	var started, done bool
	h := Hooks{
		OnRequestStart: func(ctx RequestContext) { started = true },
		OnRequestDone:  func(ctx RequestContext) { done = true },
		OnRequestError: func(ctx RequestContext, err error) { t.Fatal("unexpected error hook") },
	}

	if err := h.Run("widget", "find", func() error { return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !started || !done {
		t.Fatalf("expected start=%v done=%v to both be true", started, done)
	}
}

func TestHooksRunInvokesErrorHookOnFailure(t *testing.T) {
	boom := errors.New("boom")
	var gotErr error
	h := Hooks{
		OnRequestDone:  func(ctx RequestContext) { t.Fatal("unexpected done hook") },
		OnRequestError: func(ctx RequestContext, err error) { gotErr = err },
	}

	if err := h.Run("widget", "create", func() error { return boom }); err != boom {
		t.Fatalf("Run: %v", err)
	}
	if gotErr != boom {
		t.Fatalf("expected error hook to receive boom, got %v", gotErr)
	}
}

func TestHooksMergeCallsBoth(t *testing.T) {
	var order []string
	a := Hooks{OnRequestStart: func(ctx RequestContext) { order = append(order, "a") }}
	b := Hooks{OnRequestStart: func(ctx RequestContext) { order = append(order, "b") }}

	merged := a.Merge(b)
	merged.OnRequestStart(RequestContext{})

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected call order: %v", order)
	}
}

func TestHooksNilIsSafe(t *testing.T) {
	var h Hooks
	if err := h.Run("widget", "count", func() error { return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
