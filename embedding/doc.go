// Package embedding generates and validates record and query embeddings.
//
// Service wraps an ai.Embedder with content extraction, token bounds,
// vector validation and normalization, and cost accounting. Records are
// embedded one at a time (GenerateEmbedding), in concurrent batches
// (GenerateBatchEmbeddings) or as tracked background jobs (CreateJob).
//
// Change detection compares the BLAKE2b hash of a record's current
// searchable content with the hash stored alongside its embedding; see
// NeedsRegeneration.
package embedding
