// Package schema models the minimal schema surface the dispatch engine
// needs: a name and whether the schema carries a metadata.deleted field
// enabling the tombstone (soft-delete) policy, plus the field-level
// condition merge used to apply that policy's default conditions.
package schema

// FieldMap is the evaluated field map of a schema. Only the presence of
// a nested metadata.deleted entry affects the core.
type FieldMap map[string]any

// Schema is the input to Provider/Store construction. Fields may be a
// plain FieldMap, or a function evaluated once (with placeholder type
// references) during construction — see Evaluate.
type Schema struct {
	Name   string
	Fields any // FieldMap or func(TypeRefs) FieldMap
}

// TypeRefs are placeholder type references passed to a functional
// Fields definition during evaluation.
type TypeRefs struct{}

// Evaluate resolves Fields into a concrete FieldMap, calling it with an
// empty TypeRefs value if it is a function.
func Evaluate(s Schema) FieldMap {
	switch f := s.Fields.(type) {
	case FieldMap:
		return f
	case func(TypeRefs) FieldMap:
		return f(TypeRefs{})
	case nil:
		return FieldMap{}
	default:
		return FieldMap{}
	}
}

// HasMetadataDeleted reports whether the evaluated field map declares a
// nested metadata.deleted field, enabling the tombstone policy.
func HasMetadataDeleted(fields FieldMap) bool {
	metadata, ok := fields["metadata"]
	if !ok {
		return false
	}
	nested, ok := metadata.(FieldMap)
	if !ok {
		if asMap, ok := metadata.(map[string]any); ok {
			_, has := asMap["deleted"]
			return has
		}
		return false
	}
	_, has := nested["deleted"]
	return has
}

// DefaultConditions returns the tombstone-aware default condition for a
// schema that has metadata.deleted, or an empty condition otherwise.
func DefaultConditions(hasMetadata bool) map[string]any {
	if !hasMetadata {
		return map[string]any{}
	}
	return map[string]any{
		"$or": []map[string]any{
			{"metadata": map[string]any{"$eq": nil}},
			{"metadata.deleted": map[string]any{"$eq": nil}},
			{"metadata.deleted": map[string]any{"$exists": false}},
		},
	}
}

// MergeConditions merges a user-supplied condition into the default
// condition with field-level union: user keys win on conflict, and any
// $or default not overridden by the user is preserved.
func MergeConditions(defaults, user map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(user))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}
	return merged
}
