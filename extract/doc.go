// Package extract derives the text that gets embedded for a catalog record.
//
// The Extractor concatenates a record's content fields, each repeated
// according to its weight, then strips HTML, lower-cases, collapses
// whitespace, and clamps the result to configured length bounds. The
// BLAKE2b hash of that text is the only signal used to decide whether a
// stored embedding is stale, so extraction is fully deterministic.
package extract
