// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search answers natural-language queries over catalog records.
//
// A Service runs a multi-stage pipeline per query:
//   - Query processing: normalization, synonym expansion, spelling
//     correction and intent detection
//   - Strategy selection: a named weight vector chosen from the intent
//   - Vector candidates: cosine similarity against stored embeddings, or a
//     vector index when one is attached, cut at a similarity threshold
//   - Text candidates: exact and prefix term overlap with each record's
//     search content
//   - Filtering and ranking: hard filters, then entity, popularity and
//     recency boosts
//
// Responses are cached by the normalized request when a cache is attached.
// The cached entry is the paginated response, so each page is cached on its own.
package search
