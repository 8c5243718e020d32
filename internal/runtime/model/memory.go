package model

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory example Model backed by a slice of documents. It
// exists for tests and the bundled example CLI; real deployments supply
// their own Model backed by an actual storage engine.
type Memory struct {
	mu   sync.Mutex
	docs []map[string]any
}

// NewMemory returns an empty in-memory Model.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryBuildModel returns a BuildModel that hands out a fresh Memory
// Model per schema name.
func NewMemoryBuildModel() BuildModel {
	models := make(map[string]*Memory)
	var mu sync.Mutex
	return func(schemaName string) (Model, error) {
		mu.Lock()
		defer mu.Unlock()
		if m, ok := models[schemaName]; ok {
			return m, nil
		}
		m := NewMemory()
		models[schemaName] = m
		return m, nil
	}
}

func (m *Memory) Count(ctx context.Context, conditions map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, doc := range m.docs {
		if matches(doc, conditions) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Create(ctx context.Context, object any, projection map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch objs := object.(type) {
	case []map[string]any:
		created := make([]map[string]any, 0, len(objs))
		for _, obj := range objs {
			created = append(created, m.createOne(obj))
		}
		return applyProjectionAll(created, projection), nil
	case map[string]any:
		return applyProjection(m.createOne(objs), projection), nil
	default:
		return nil, nil
	}
}

func (m *Memory) createOne(obj map[string]any) map[string]any {
	doc := cloneDoc(obj)
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = uuid.New().String()
	}
	m.docs = append(m.docs, doc)
	return cloneDoc(doc)
}

func (m *Memory) Find(ctx context.Context, conditions, projection map[string]any, options FindOptions) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []map[string]any
	for _, doc := range m.docs {
		if matches(doc, conditions) {
			matched = append(matched, doc)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return idString(matched[i]) < idString(matched[j])
	})

	skip := options.Skip
	if skip > len(matched) {
		skip = len(matched)
	}
	matched = matched[skip:]

	if options.Limit > 0 && options.Limit < len(matched) {
		matched = matched[:options.Limit]
	}

	return applyProjectionAll(cloneDocs(matched), projection), nil
}

func (m *Memory) Update(ctx context.Context, conditions, object map[string]any, options UpdateOptions) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i, doc := range m.docs {
		if !matches(doc, conditions) {
			continue
		}
		m.docs[i] = applyUpdate(doc, object)
		n++
		if !options.Multi {
			break
		}
	}
	return n, nil
}

func idString(doc map[string]any) string {
	id, _ := doc["_id"].(string)
	return id
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func cloneDocs(docs []map[string]any) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = cloneDoc(d)
	}
	return out
}

func applyProjection(doc map[string]any, projection map[string]any) map[string]any {
	if len(projection) == 0 {
		return doc
	}
	out := make(map[string]any, len(projection)+1)
	out["_id"] = doc["_id"]
	for field := range projection {
		if v, ok := doc[field]; ok {
			out[field] = v
		}
	}
	return out
}

func applyProjectionAll(docs []map[string]any, projection map[string]any) []map[string]any {
	if len(projection) == 0 {
		return docs
	}
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = applyProjection(d, projection)
	}
	return out
}

// applyUpdate merges object's top-level fields into doc, honoring a
// $currentDate operator ({field: true} sets field to time.Now()).
func applyUpdate(doc, object map[string]any) map[string]any {
	out := cloneDoc(doc)
	for k, v := range object {
		if k == "$currentDate" {
			fields, ok := v.(map[string]any)
			if !ok {
				continue
			}
			now := time.Now()
			for field := range fields {
				setDotted(out, field, now)
			}
			continue
		}
		out[k] = v
	}
	return out
}

func setDotted(doc map[string]any, path string, value any) {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) == 1 {
		doc[path] = value
		return
	}
	nested, ok := doc[parts[0]].(map[string]any)
	if !ok {
		nested = make(map[string]any)
		doc[parts[0]] = nested
	}
	setDotted(nested, parts[1], value)
}

func getDotted(doc map[string]any, path string) (any, bool) {
	parts := strings.SplitN(path, ".", 2)
	v, ok := doc[parts[0]]
	if !ok {
		return nil, false
	}
	if len(parts) == 1 {
		return v, true
	}
	nested, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return getDotted(nested, parts[1])
}

// matches evaluates the minimal condition dialect used by this module's
// own default tombstone conditions and common equality filters: $or,
// $eq, $exists, and plain-value equality.
func matches(doc, conditions map[string]any) bool {
	for field, cond := range conditions {
		if field == "$or" {
			var clauses []map[string]any
			switch c := cond.(type) {
			case []map[string]any:
				clauses = c
			case []any:
				for _, item := range c {
					if clause, ok := item.(map[string]any); ok {
						clauses = append(clauses, clause)
					}
				}
			default:
				return false
			}
			matchedAny := false
			for _, clause := range clauses {
				if matches(doc, clause) {
					matchedAny = true
					break
				}
			}
			if !matchedAny {
				return false
			}
			continue
		}
		if !matchField(doc, field, cond) {
			return false
		}
	}
	return true
}

func matchField(doc map[string]any, field string, cond any) bool {
	value, exists := getDotted(doc, field)

	switch c := cond.(type) {
	case map[string]any:
		for op, opArg := range c {
			switch op {
			case "$eq":
				if !valuesEqual(value, opArg) {
					return false
				}
			case "$exists":
				want, _ := opArg.(bool)
				if exists != want {
					return false
				}
			default:
				return false
			}
		}
		return true
	default:
		return exists && valuesEqual(value, cond)
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
