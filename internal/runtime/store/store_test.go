package store

import (
	"context"
	"testing"
	"time"

	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/envelope"
	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/model"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/schema"
	"github.com/GeorgeSapkin/pubsub-store/transport"
	"github.com/GeorgeSapkin/pubsub-store/transport/memory"
)

func mustBuildModel(m model.Model) model.BuildModel {
	return func(schemaName string) (model.Model, error) { return m, nil }
}

func TestNewValidatesArguments(t *testing.T) {
	tr := memory.New()
	build := mustBuildModel(model.NewMemory())

	if _, err := New(schema.Schema{}, tr, build, Options{}); err != rterrors.ErrSchemaNameRequired {
		t.Fatalf("expected ErrSchemaNameRequired, got %v", err)
	}
	if _, err := New(schema.Schema{Name: "widget"}, nil, build, Options{}); err != rterrors.ErrTransportRequired {
		t.Fatalf("expected ErrTransportRequired, got %v", err)
	}
	if _, err := New(schema.Schema{Name: "widget"}, tr, nil, Options{}); err != rterrors.ErrBuildModelRequired {
		t.Fatalf("expected ErrBuildModelRequired, got %v", err)
	}
}

func TestOpenCloseIdempotence(t *testing.T) {
	tr := memory.New()
	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(model.NewMemory()), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Open(); err != rterrors.ErrStoreAlreadyOpen {
		t.Fatalf("expected ErrStoreAlreadyOpen, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != rterrors.ErrStoreNotOpen {
		t.Fatalf("expected ErrStoreNotOpen, got %v", err)
	}
}

func TestOpenRollsBackOnPartialSubscribeFailure(t *testing.T) {
	tr := &failingTransport{failAfter: 3}
	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(model.NewMemory()), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Open(); err == nil {
		t.Fatal("expected Open to fail")
	}
	if tr.subscribed != tr.unsubscribed {
		t.Fatalf("expected every successful subscription to be rolled back, subscribed=%d unsubscribed=%d", tr.subscribed, tr.unsubscribed)
	}
}

func request(t *testing.T, tr transport.Transport, subject string, payload []byte) envelope.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	data, err := tr.Request(ctx, subject, payload)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	resp, err := envelope.DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	return resp
}

func TestDispatchCount(t *testing.T) {
	tr := memory.New()
	m := model.NewMemory()
	m.Create(context.Background(), map[string]any{"a": 1}, nil)

	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(m), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	payload, err := envelope.EncodeRequest(envelope.CountRequest{Conditions: map[string]any{"a": 1}})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	resp := request(t, tr, s.Subjects().Count.Base, payload)
	if resp.Err != nil {
		t.Fatalf("unexpected remote error: %v", resp.Err)
	}
	if resp.Ok != float64(1) {
		t.Fatalf("expected count 1, got %v", resp.Ok)
	}
}

func TestDispatchCreate(t *testing.T) {
	tr := memory.New()
	m := model.NewMemory()

	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(m), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	payload, err := envelope.EncodeRequest(envelope.CreateRequest{Object: map[string]any{"a": 1}})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	resp := request(t, tr, s.Subjects().Create.Base, payload)
	if resp.Err != nil {
		t.Fatalf("unexpected remote error: %v", resp.Err)
	}
	doc, ok := resp.Ok.(map[string]any)
	if !ok || doc["_id"] == nil {
		t.Fatalf("expected created doc with _id, got %#v", resp.Ok)
	}
}

func TestDispatchFind(t *testing.T) {
	tr := memory.New()
	m := model.NewMemory()
	m.Create(context.Background(), map[string]any{"a": 1}, nil)
	m.Create(context.Background(), map[string]any{"a": 2}, nil)

	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(m), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	payload, err := envelope.EncodeRequest(envelope.FindRequest{Conditions: map[string]any{"a": 2}})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	resp := request(t, tr, s.Subjects().Find.Base, payload)
	if resp.Err != nil {
		t.Fatalf("unexpected remote error: %v", resp.Err)
	}
	docs, ok := resp.Ok.([]any)
	if !ok || len(docs) != 1 {
		t.Fatalf("expected 1 matching doc, got %#v", resp.Ok)
	}
}

func TestDispatchUpdateForcesMulti(t *testing.T) {
	tr := memory.New()
	m := model.NewMemory()
	m.Create(context.Background(), map[string]any{"a": 1}, nil)
	m.Create(context.Background(), map[string]any{"a": 1}, nil)

	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(m), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	payload, err := envelope.EncodeRequest(envelope.UpdateRequest{
		Conditions: map[string]any{"a": 1},
		Object:     map[string]any{"b": 9},
		Multi:      false,
	})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	resp := request(t, tr, s.Subjects().Update.Base, payload)
	if resp.Err != nil {
		t.Fatalf("unexpected remote error: %v", resp.Err)
	}
	if resp.Ok != float64(2) {
		t.Fatalf("expected both matching docs updated despite multi:false on the wire, got %v", resp.Ok)
	}
}

func TestDispatchDecodeFailureRepliesWithError(t *testing.T) {
	tr := memory.New()
	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(model.NewMemory()), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	resp := request(t, tr, s.Subjects().Count.Base, []byte("not json"))
	if resp.Err == nil {
		t.Fatal("expected a remote error for malformed payload")
	}
}

func TestDispatchEmitsErrorEventsOnModelFailure(t *testing.T) {
	tr := memory.New()
	s, err := New(schema.Schema{Name: "Widget"}, tr, mustBuildModel(&failingModel{}), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	events := map[string]int{}
	for _, ev := range []string{"count-error", "create-error", "find-error", "update-error"} {
		ev := ev
		s.OnError(ev, func(error) { events[ev]++ })
	}

	countPayload, _ := envelope.EncodeRequest(envelope.CountRequest{})
	createPayload, _ := envelope.EncodeRequest(envelope.CreateRequest{Object: map[string]any{"a": 1}})
	findPayload, _ := envelope.EncodeRequest(envelope.FindRequest{})
	updatePayload, _ := envelope.EncodeRequest(envelope.UpdateRequest{})

	for subject, payload := range map[string][]byte{
		s.Subjects().Count.Base:  countPayload,
		s.Subjects().Create.Base: createPayload,
		s.Subjects().Find.Base:   findPayload,
		s.Subjects().Update.Base: updatePayload,
	} {
		resp := request(t, tr, subject, payload)
		if resp.Err == nil {
			t.Fatalf("expected error reply for subject %s", subject)
		}
	}

	for ev, count := range map[string]int{"count-error": 1, "create-error": 1, "find-error": 1, "update-error": 1} {
		if events[ev] != count {
			t.Fatalf("expected %s to fire %d time(s), got %d", ev, count, events[ev])
		}
	}
}

// failingTransport subscribes successfully up to failAfter times, then
// fails every subsequent Subscribe call, to exercise Open's rollback.
type failingTransport struct {
	failAfter    int
	subscribed   int
	unsubscribed int
}

func (f *failingTransport) Subscribe(subject string, handler transport.Handler) (transport.SubscriptionID, error) {
	if f.subscribed >= f.failAfter {
		return nil, rterrors.ErrTransportRequired
	}
	f.subscribed++
	return f.subscribed, nil
}

func (f *failingTransport) Unsubscribe(id transport.SubscriptionID) error {
	f.unsubscribed++
	return nil
}

func (f *failingTransport) Publish(subject string, msg []byte) error { return nil }

func (f *failingTransport) Request(ctx context.Context, subject string, msg []byte) ([]byte, error) {
	return nil, nil
}

type failingModel struct{}

func (f *failingModel) Count(ctx context.Context, conditions map[string]any) (int64, error) {
	return 0, rterrors.ErrTransportRequired
}

func (f *failingModel) Create(ctx context.Context, object any, projection map[string]any) (any, error) {
	return nil, rterrors.ErrTransportRequired
}

func (f *failingModel) Find(ctx context.Context, conditions, projection map[string]any, options model.FindOptions) ([]map[string]any, error) {
	return nil, rterrors.ErrTransportRequired
}

func (f *failingModel) Update(ctx context.Context, conditions, object map[string]any, options model.UpdateOptions) (any, error) {
	return nil, rterrors.ErrTransportRequired
}
