// Package allergen derives allergen-exposure records from raw feed entries.
//
// The calculator is a pure function: given the feed entries, a reference
// "today" and an immutable set of allergen definitions, Compute produces a
// ranked Snapshot with one Record per definition. Matching between a food
// string and a keyword is case-insensitive substring containment in both
// directions, which tolerates plurals, compound descriptions ("scrambled eggs
// with cheese") and the misspellings baked into the keyword table.
//
// The package performs no I/O and holds no shared state; Compute is safe to
// call concurrently with different inputs.
package allergen
