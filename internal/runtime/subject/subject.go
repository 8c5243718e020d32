// Package subject derives the wire subjects shared by the Provider and
// the Store from a schema name and an optional prefix/suffix scheme.
package subject

import "strings"

// Pair is a base subject and its wildcard form (base + ".>"), used for
// Store subscription and Provider event subscription.
type Pair struct {
	Base     string
	Wildcard string
}

// Tuple groups the four subject pairs derived for a schema.
type Tuple struct {
	Count  Pair
	Create Pair
	Find   Pair
	Update Pair
}

// Prefixes customizes the leading subject token per method. Zero value
// fields fall back to the method name ("count", "create", "find",
// "update").
type Prefixes struct {
	Count  string
	Create string
	Find   string
	Update string
}

// Options customizes subject construction.
type Options struct {
	Prefixes Prefixes
	// Suffix, when non-empty, is appended to every base subject with a
	// "." separator.
	Suffix string
}

func pair(prefix, name, suffix string) Pair {
	base := prefix + "." + name
	if suffix != "" {
		base += "." + suffix
	}
	return Pair{Base: base, Wildcard: base + ".>"}
}

// Build derives the Tuple for schema name, lowercasing it per §4.1.
func Build(name string, opts Options) Tuple {
	lower := strings.ToLower(name)

	countPrefix := opts.Prefixes.Count
	if countPrefix == "" {
		countPrefix = "count"
	}
	createPrefix := opts.Prefixes.Create
	if createPrefix == "" {
		createPrefix = "create"
	}
	findPrefix := opts.Prefixes.Find
	if findPrefix == "" {
		findPrefix = "find"
	}
	updatePrefix := opts.Prefixes.Update
	if updatePrefix == "" {
		updatePrefix = "update"
	}

	return Tuple{
		Count:  pair(countPrefix, lower, opts.Suffix),
		Create: pair(createPrefix, lower, opts.Suffix),
		Find:   pair(findPrefix, lower, opts.Suffix),
		Update: pair(updatePrefix, lower, opts.Suffix),
	}
}
