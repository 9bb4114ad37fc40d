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


package extract

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/semsearch/core"
)

// FieldWeight assigns a repetition weight to a record field.
type FieldWeight struct {
	Field  string
	Weight float64
}

// Config holds configuration for content extraction.
type Config struct {
	// Fields lists the weighted fields in concatenation order.
	Fields []FieldWeight

	// MinLength is the shortest preprocessed content kept; shorter content becomes "".
	MinLength int

	// MaxLength is the longest preprocessed content kept; longer content is truncated.
	MaxLength int

	// StripPunctuation replaces punctuation with spaces during preprocessing.
	StripPunctuation bool
}

// DefaultConfig returns a Config with the standard catalog field weights.
func DefaultConfig() *Config {
	return &Config{
		Fields: []FieldWeight{
			{Field: core.FieldName, Weight: 3.0},
			{Field: core.FieldShortDescription, Weight: 2.0},
			{Field: core.FieldDescription, Weight: 1.5},
			{Field: core.FieldTags, Weight: 1.5},
			{Field: core.FieldCategory, Weight: 1.5},
			{Field: core.FieldSubcategory, Weight: 1.0},
			{Field: core.FieldFeatures, Weight: 1.2},
			{Field: core.FieldBenefits, Weight: 1.0},
			{Field: core.FieldIndustries, Weight: 1.0},
			{Field: core.FieldTechnologies, Weight: 1.2},
			{Field: core.FieldUseCases, Weight: 1.2},
		},
		MinLength:        10,
		MaxLength:        8000,
		StripPunctuation: false,
	}
}

// Extractor derives searchable content, content hashes and content sources
// from catalog records. It is stateless and safe for concurrent use.
type Extractor struct {
	config *Config
}

// NewExtractor creates an extractor. A nil config uses DefaultConfig.
func NewExtractor(config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Extractor{config: config}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() *Config {
	return e.config
}

// Repetitions returns how many times a field with the given weight is
// repeated. Weights round to the nearest integer so that content, and
// therefore its hash, is identical on every call. Positive weights repeat
// at least once.
func Repetitions(weight float64) int {
	if weight <= 0 {
		return 0
	}
	n := int(math.Round(weight))
	if n < 1 {
		n = 1
	}
	return n
}

// ExtractSearchableContent builds the weighted, preprocessed search string
// for a record. Returns "" when the record has too little content.
func (e *Extractor) ExtractSearchableContent(record *core.Record) string {
	if record == nil {
		return ""
	}

	parts := make([]string, 0, len(e.config.Fields)*2)
	for _, fw := range e.config.Fields {
		v, ok := record.Value(fw.Field)
		if !ok {
			continue
		}
		text := strings.TrimSpace(coerce(v))
		if text == "" {
			continue
		}
		for i := 0; i < Repetitions(fw.Weight); i++ {
			parts = append(parts, text)
		}
	}

	return e.PreprocessText(strings.Join(parts, " "))
}

// ExtractContentSources projects the named content fields without weighting.
func (e *Extractor) ExtractContentSources(record *core.Record) *core.ContentSources {
	if record == nil {
		return &core.ContentSources{}
	}
	return &core.ContentSources{
		Name:             record.String(core.FieldName),
		Description:      record.String(core.FieldDescription),
		ShortDescription: record.String(core.FieldShortDescription),
		Tags:             record.Strings(core.FieldTags),
		Category:         record.String(core.FieldCategory),
		Subcategory:      record.String(core.FieldSubcategory),
		Features:         record.Strings(core.FieldFeatures),
		Benefits:         record.Strings(core.FieldBenefits),
		Industries:       record.Strings(core.FieldIndustries),
		Technologies:     record.Strings(core.FieldTechnologies),
		UseCases:         record.Strings(core.FieldUseCases),
	}
}

// coerce turns a field value into text: lists are space-joined, objects are
// rendered as "key: value" pairs in key order, scalars are printed.
func coerce(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, " ")
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			items = append(items, coerce(item))
		}
		return strings.Join(items, " ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+": "+coerce(val[k]))
		}
		return strings.Join(pairs, " ")
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
