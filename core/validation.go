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


package core

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted search query, in characters.
const MaxQueryLength = 1000

// QueryValidation is the outcome of ValidateSearchQuery.
type QueryValidation struct {
	Valid bool
	Error string
}

// Err converts a failed validation into an INVALID_QUERY error, or nil.
func (v QueryValidation) Err() error {
	if v.Valid {
		return nil
	}
	return InvalidQuery(v.Error)
}

// ValidateSearchQuery checks a raw query before it is sent anywhere.
//
// Validation rules:
//   - must not be empty or whitespace only
//   - must not exceed MaxQueryLength characters
func ValidateSearchQuery(query string) QueryValidation {
	if strings.TrimSpace(query) == "" {
		return QueryValidation{Error: "query cannot be empty"}
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return QueryValidation{Error: fmt.Sprintf("query too long (max %d characters)", MaxQueryLength)}
	}
	return QueryValidation{Valid: true}
}

// ValidateVector checks that a vector has the expected dimension and only
// finite elements.
func ValidateVector(vector []float32, dimensions int) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	if dimensions > 0 && len(vector) != dimensions {
		return fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidEmbedding, dimensions, len(vector))
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidEmbedding, i)
		}
	}
	return nil
}

// ValidateRecord checks the minimum a record needs to be stored.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRequest)
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidRequest)
	}
	return nil
}
