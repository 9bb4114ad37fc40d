package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier used for records imported without one.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as fixed-width hex.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Names of the catalog fields that participate in embedding content.
const (
	FieldName             = "name"
	FieldDescription      = "description"
	FieldShortDescription = "shortDescription"
	FieldTags             = "tags"
	FieldCategory         = "category"
	FieldSubcategory      = "subcategory"
	FieldFeatures         = "features"
	FieldBenefits         = "benefits"
	FieldIndustries       = "industries"
	FieldTechnologies     = "technologies"
	FieldUseCases         = "useCases"
)

// Structured fields used for filtering and ranking.
const (
	FieldProviderType = "providerType"
	FieldRating       = "rating"
	FieldReviewCount  = "reviewCount"
	FieldPrice        = "price"
	FieldLocations    = "locations"
	FieldCompliance   = "compliance"
)

// Record is a catalog item with arbitrary fields. The store owns it; this
// module reads the fields and annotates the record with embedding data.
type Record struct {
	ID        string         `json:"id" yaml:"id"`
	Fields    map[string]any `json:"fields" yaml:"fields"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"updatedAt"` // last content change

	Embedding           []float32          `json:"embedding,omitempty" yaml:"-"`
	EmbeddingMetadata   *EmbeddingMetadata `json:"embeddingMetadata,omitempty" yaml:"-"`
	SearchContent       string             `json:"searchContent,omitempty" yaml:"-"`
	ContentSources      *ContentSources    `json:"contentSources,omitempty" yaml:"-"`
	LastEmbeddingUpdate time.Time          `json:"lastEmbeddingUpdate,omitempty" yaml:"-"`
}

// Value returns the raw value of a field and whether it is present.
func (r *Record) Value(field string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns a scalar field as a string, or "" if absent.
func (r *Record) String(field string) string {
	v, ok := r.Value(field)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case []any, []string:
		return strings.Join(r.Strings(field), " ")
	default:
		return fmt.Sprint(val)
	}
}

// Strings returns a list field as strings. A scalar becomes a one-element list.
func (r *Record) Strings(field string) []string {
	v, ok := r.Value(field)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return []string{fmt.Sprint(val)}
	}
}

// Float returns a numeric field. Numeric strings are parsed.
func (r *Record) Float(field string) (float64, bool) {
	v, ok := r.Value(field)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// CurrentEmbedding returns the stored embedding, or nil if the record has none.
func (r *Record) CurrentEmbedding() *Embedding {
	if r == nil || len(r.Embedding) == 0 || r.EmbeddingMetadata == nil {
		return nil
	}
	return &Embedding{Vector: r.Embedding, Metadata: *r.EmbeddingMetadata}
}

// EmbeddingMetadata describes how and from what an embedding was produced.
type EmbeddingMetadata struct {
	Model       string    `json:"model"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	ContentHash string    `json:"contentHash"`
	TokenCount  int       `json:"tokenCount"`
}

// Embedding is a vector together with its generation metadata.
type Embedding struct {
	Vector   []float32         `json:"vector"`
	Metadata EmbeddingMetadata `json:"metadata"`
}

// ContentSources is an unweighted projection of a record's content fields,
// kept for auditing what went into an embedding.
type ContentSources struct {
	Name             string   `json:"name,omitempty"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Category         string   `json:"category,omitempty"`
	Subcategory      string   `json:"subcategory,omitempty"`
	Features         []string `json:"features,omitempty"`
	Benefits         []string `json:"benefits,omitempty"`
	Industries       []string `json:"industries,omitempty"`
	Technologies     []string `json:"technologies,omitempty"`
	UseCases         []string `json:"useCases,omitempty"`
}

// RunSummary is the persisted outcome of one pipeline run.
type RunSummary struct {
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	DryRun     bool      `json:"dryRun"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Tokens     int       `json:"tokens"`
	Cost       float64   `json:"cost"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}
