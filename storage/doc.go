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


// Package storage provides the storage abstraction layer for semsearch.
//
// This package defines the contracts that decouple storage implementation
// from the embedding and search logic:
//
//   - RecordStore: catalog records with point reads, embedding updates,
//     cursor scans ordered by creation time and where-in queries
//   - VectorIndex: optional nearest-neighbour index mirroring embeddings
//   - RunRepository: persisted pipeline run summaries
//
// LoadRecords reads catalog files (YAML or JSON) into records for import.
//
// # Implementations
//
//   - storage/badger: BadgerDB record store and run repository
//   - storage/chromem: chromem-go vector index
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	store := badger.NewRecordStore(backend)
//
// Use in tests with in-memory storage:
//
//	store, runs, backend, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All store methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
