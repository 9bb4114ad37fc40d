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

import "errors"

// Code is a stable, machine-readable error identifier surfaced to API callers.
type Code string

const (
	CodeInvalidQuery              Code = "INVALID_QUERY"
	CodeInvalidRequest            Code = "INVALID_REQUEST"
	CodeDimensionMismatch         Code = "DIMENSION_MISMATCH"
	CodeEmptyContent              Code = "EMPTY_CONTENT"
	CodeContentTooLong            Code = "CONTENT_TOO_LONG"
	CodeInvalidEmbedding          Code = "INVALID_EMBEDDING"
	CodeEmbeddingGenerationFailed Code = "EMBEDDING_GENERATION_FAILED"
	CodeAlreadyRunning            Code = "ALREADY_RUNNING"
	CodeEmbeddingFailed           Code = "EMBEDDING_FAILED"
	CodeSearchFailed              Code = "SEARCH_FAILED"
	CodeNotFound                  Code = "NOT_FOUND"
	CodeInternal                  Code = "INTERNAL_ERROR"
)

// Error is a domain error with a stable code. Two Errors match under
// errors.Is when their codes are equal, so the sentinels below can be used
// to test any Error regardless of message or cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Domain error sentinels, one per code.
var (
	// ErrInvalidQuery indicates an empty, blank, or oversized search query.
	ErrInvalidQuery = &Error{Code: CodeInvalidQuery, Message: "invalid query"}

	// ErrInvalidRequest indicates malformed search options or filters.
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest, Message: "invalid request"}

	// ErrDimensionMismatch indicates two vectors of different length.
	ErrDimensionMismatch = &Error{Code: CodeDimensionMismatch, Message: "vector dimensions do not match"}

	// ErrEmptyContent indicates a record produced no searchable content.
	ErrEmptyContent = &Error{Code: CodeEmptyContent, Message: "content cannot be empty"}

	// ErrContentTooLong indicates content exceeding the provider's token bound.
	ErrContentTooLong = &Error{Code: CodeContentTooLong, Message: "content exceeds token limit"}

	// ErrInvalidEmbedding indicates a provider vector with the wrong dimension or non-finite values.
	ErrInvalidEmbedding = &Error{Code: CodeInvalidEmbedding, Message: "invalid embedding"}

	// ErrEmbeddingGenerationFailed indicates the provider failed to embed record content.
	ErrEmbeddingGenerationFailed = &Error{Code: CodeEmbeddingGenerationFailed, Message: "embedding generation failed"}

	// ErrAlreadyRunning indicates a pipeline run is already in progress.
	ErrAlreadyRunning = &Error{Code: CodeAlreadyRunning, Message: "pipeline is already running"}

	// ErrEmbeddingFailed indicates the query could not be embedded at search time.
	ErrEmbeddingFailed = &Error{Code: CodeEmbeddingFailed, Message: "query embedding failed"}

	// ErrSearchFailed indicates an infrastructure failure during search.
	ErrSearchFailed = &Error{Code: CodeSearchFailed, Message: "search failed"}

	// ErrNotFound indicates an unknown job or record.
	ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}
)

// NewError builds an Error with the given code, message and optional cause.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// InvalidQuery returns an INVALID_QUERY error with a specific reason.
func InvalidQuery(reason string) *Error {
	return &Error{Code: CodeInvalidQuery, Message: reason}
}

// EmbeddingGenerationFailed wraps a provider failure.
func EmbeddingGenerationFailed(cause error) *Error {
	return &Error{Code: CodeEmbeddingGenerationFailed, Message: "embedding generation failed", Cause: cause}
}

// SearchFailed wraps an infrastructure failure during search.
func SearchFailed(cause error) *Error {
	return &Error{Code: CodeSearchFailed, Message: "search failed", Cause: cause}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
