// Package pipeline generates embeddings for the stored corpus.
//
// A Pipeline pages through the record store in creation order, skips
// records whose embedding is current, embeds the rest with retries and
// writes the vector, its metadata and the derived search content back onto
// each record. Only one run is active at a time; Stop ends a run at the next
// batch boundary.
//
// Three entry points cover the common cases:
//
//	p.ProcessAll(ctx)            // whole corpus
//	p.ProcessByIDs(ctx, ids)     // targeted re-embedding
//	p.UpdateOutdated(ctx)        // only stale or missing embeddings
//
// A Scheduler runs UpdateOutdated on a cron schedule.
package pipeline
