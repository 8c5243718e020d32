package provider

import (
	"context"
	"testing"
	"time"

	rterrors "github.com/GeorgeSapkin/pubsub-store/internal/runtime/errors"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/model"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/schema"
	"github.com/GeorgeSapkin/pubsub-store/internal/runtime/store"
	"github.com/GeorgeSapkin/pubsub-store/transport/memory"
)

func newHarness(t *testing.T, s schema.Schema) (*Provider, *memory.Transport, *model.Memory) {
	t.Helper()
	tr := memory.New()
	m := model.NewMemory()

	st, err := store.New(s, tr, func(string) (model.Model, error) { return m, nil }, store.Options{})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p, err := New(s, tr, Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	return p, tr, m
}

func TestNewValidatesArguments(t *testing.T) {
	tr := memory.New()
	if _, err := New(schema.Schema{}, tr, Options{}); err != rterrors.ErrSchemaNameRequired {
		t.Fatalf("expected ErrSchemaNameRequired, got %v", err)
	}
	if _, err := New(schema.Schema{Name: "widget"}, nil, Options{}); err != rterrors.ErrTransportRequired {
		t.Fatalf("expected ErrTransportRequired, got %v", err)
	}
}

func TestCreateAndCount(t *testing.T) {
	p, _, _ := newHarness(t, schema.Schema{Name: "Widget"})
	ctx := context.Background()

	if _, err := p.Create(ctx, nil, nil); err != rterrors.ErrObjectRequired {
		t.Fatalf("expected ErrObjectRequired, got %v", err)
	}

	result, err := p.Create(ctx, map[string]any{"a": 1}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, ok := result.(map[string]any)
	if !ok || doc["_id"] == nil {
		t.Fatalf("expected created doc with _id, got %#v", result)
	}

	n, err := p.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}

	if _, err := p.Count(ctx, nil); err != rterrors.ErrConditionsRequired {
		t.Fatalf("expected ErrConditionsRequired, got %v", err)
	}
}

func TestFindAndFindById(t *testing.T) {
	p, _, _ := newHarness(t, schema.Schema{Name: "Widget"})
	ctx := context.Background()

	created, err := p.Create(ctx, map[string]any{"a": 1}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.(map[string]any)["_id"]

	p.Create(ctx, map[string]any{"a": 2}, nil)

	docs, err := p.FindAll(ctx, nil, FindOptions{})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}

	if _, err := p.FindById(ctx, nil, nil); err != rterrors.ErrIDRequired {
		t.Fatalf("expected ErrIDRequired, got %v", err)
	}

	got, err := p.FindById(ctx, id, nil)
	if err != nil {
		t.Fatalf("FindById: %v", err)
	}
	doc, ok := got.(map[string]any)
	if !ok || doc["_id"] != id {
		t.Fatalf("expected doc with id %v, got %#v", id, got)
	}
}

func TestFindByIdResolvesNilWhenNotFound(t *testing.T) {
	p, _, _ := newHarness(t, schema.Schema{Name: "Widget"})
	got, err := p.FindById(context.Background(), "missing", nil)
	if err != nil {
		t.Fatalf("FindById: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func metadataSchema(name string) schema.Schema {
	return schema.Schema{
		Name: name,
		Fields: schema.FieldMap{
			"metadata": schema.FieldMap{"deleted": true},
		},
	}
}

func TestDeleteRequiresMetadata(t *testing.T) {
	p, _, _ := newHarness(t, schema.Schema{Name: "Widget"})
	if _, err := p.Delete(context.Background(), map[string]any{"a": 1}, nil); err != rterrors.ErrProviderNoMetadata {
		t.Fatalf("expected ErrProviderNoMetadata, got %v", err)
	}
}

func TestDeleteTombstonesAndReturnsPostState(t *testing.T) {
	p, _, _ := newHarness(t, metadataSchema("Widget"))
	ctx := context.Background()

	created, err := p.Create(ctx, map[string]any{"a": 1}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.(map[string]any)["_id"]

	deleted, err := p.Delete(ctx, map[string]any{"_id": id}, nil)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("expected 1 deleted doc, got %d", len(deleted))
	}
	doc := deleted[0].(map[string]any)
	if doc["metadata"] == nil {
		t.Fatal("expected metadata to be stamped on the returned doc")
	}

	n, err := p.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected the deleted doc to be excluded from default-condition count, got %d", n)
	}
}

func TestDeleteByIdSingleOrNil(t *testing.T) {
	p, _, _ := newHarness(t, metadataSchema("Widget"))
	ctx := context.Background()

	created, err := p.Create(ctx, map[string]any{"a": 1}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.(map[string]any)["_id"]

	got, err := p.DeleteById(ctx, id, nil)
	if err != nil {
		t.Fatalf("DeleteById: %v", err)
	}
	if got == nil {
		t.Fatal("expected a single deleted doc")
	}
}

func TestUpdateByIdStampsMetadataUpdated(t *testing.T) {
	p, _, _ := newHarness(t, metadataSchema("Widget"))
	ctx := context.Background()

	created, err := p.Create(ctx, map[string]any{"a": 1}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := created.(map[string]any)["_id"]

	if _, err := p.UpdateById(ctx, nil, map[string]any{"a": 2}, nil); err != rterrors.ErrIDRequired {
		t.Fatalf("expected ErrIDRequired, got %v", err)
	}
	if _, err := p.UpdateById(ctx, id, nil, nil); err != rterrors.ErrObjectRequired {
		t.Fatalf("expected ErrObjectRequired, got %v", err)
	}

	got, err := p.UpdateById(ctx, id, map[string]any{"a": 2}, nil)
	if err != nil {
		t.Fatalf("UpdateById: %v", err)
	}
	doc, ok := got.(map[string]any)
	if !ok || doc["a"] != float64(2) {
		t.Fatalf("expected updated doc with a=2, got %#v", got)
	}
	if doc["metadata"] == nil {
		t.Fatal("expected metadata.updated to be stamped")
	}
}
