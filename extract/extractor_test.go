package extract

import (
	"strings"
	"testing"

	"github.com/poiesic/semsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *core.Record {
	return &core.Record{
		ID: "svc-1",
		Fields: map[string]any{
			"name":         "DocuMind",
			"description":  "<p>Intelligent <b>document processing</b> with AI &amp; OCR</p>",
			"tags":         []any{"ocr", "nlp"},
			"category":     "Automation",
			"technologies": []string{"Python", "TensorFlow"},
			"features":     map[string]any{"speed": "fast", "accuracy": 0.99},
			"rating":       4.8,
		},
	}
}

func TestRepetitions(t *testing.T) {
	tests := []struct {
		weight float64
		want   int
	}{
		{weight: 0, want: 0},
		{weight: -1, want: 0},
		{weight: 0.3, want: 1},
		{weight: 1.0, want: 1},
		{weight: 1.2, want: 1},
		{weight: 1.5, want: 2},
		{weight: 2.4, want: 2},
		{weight: 3.0, want: 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Repetitions(tt.weight), "weight %v", tt.weight)
	}
}

func TestExtractSearchableContent(t *testing.T) {
	e := NewExtractor(&Config{
		Fields: []FieldWeight{
			{Field: "name", Weight: 2},
			{Field: "description", Weight: 1},
			{Field: "tags", Weight: 1},
			{Field: "features", Weight: 1},
			{Field: "missing", Weight: 5},
		},
		MinLength: 5,
		MaxLength: 1000,
	})

	content := e.ExtractSearchableContent(testRecord())
	assert.Equal(t,
		"documind documind intelligent document processing with ai & ocr ocr nlp accuracy: 0.99 speed: fast",
		content)
}

func TestExtractSearchableContent_Deterministic(t *testing.T) {
	e := NewExtractor(nil)
	record := testRecord()

	first := e.ExtractSearchableContent(record)
	require.NotEmpty(t, first)
	for i := 0; i < 20; i++ {
		content := e.ExtractSearchableContent(record)
		assert.Equal(t, first, content)
		assert.Equal(t, GenerateContentHash(first), GenerateContentHash(content))
	}
}

func TestExtractSearchableContent_ChangeDetection(t *testing.T) {
	e := NewExtractor(nil)
	record := testRecord()
	before := GenerateContentHash(e.ExtractSearchableContent(record))

	record.Fields["tags"] = []any{"ocr", "nlp", "invoices"}
	after := GenerateContentHash(e.ExtractSearchableContent(record))
	assert.NotEqual(t, before, after)

	// non-content fields do not affect the hash
	record.Fields["rating"] = 1.0
	assert.Equal(t, after, GenerateContentHash(e.ExtractSearchableContent(record)))
}

func TestExtractSearchableContent_Empty(t *testing.T) {
	e := NewExtractor(nil)
	assert.Equal(t, "", e.ExtractSearchableContent(nil))
	assert.Equal(t, "", e.ExtractSearchableContent(&core.Record{ID: "x"}))
	assert.Equal(t, "", e.ExtractSearchableContent(&core.Record{ID: "x", Fields: map[string]any{"name": "ab"}}))
}

func TestPreprocessText(t *testing.T) {
	e := NewExtractor(&Config{MinLength: 3, MaxLength: 100, StripPunctuation: true})

	assert.Equal(t, "hello world it s great", e.PreprocessText("  <h1>Hello</h1>\n\tWORLD!  It's   great. "))
	assert.Equal(t, "", e.PreprocessText("<br/> a "))

	keep := NewExtractor(&Config{MinLength: 1, MaxLength: 100})
	assert.Equal(t, "c++ & go", keep.PreprocessText("C++ &amp; Go"))
}

func TestPreprocessText_Truncation(t *testing.T) {
	e := NewExtractor(&Config{MinLength: 1, MaxLength: 20})

	// space at index 18 is within the last 20% of the limit
	got := e.PreprocessText("aaaa bbbb cccc ddd eeeeeeeeee")
	assert.Equal(t, "aaaa bbbb cccc ddd", got)
	assert.LessOrEqual(t, len(got), 20)

	// no usable space: hard cut
	got = e.PreprocessText(strings.Repeat("x", 30))
	assert.Len(t, got, 20)

	// space too early: hard cut
	got = e.PreprocessText("ab " + strings.Repeat("y", 30))
	assert.Len(t, got, 20)
}

func TestGenerateContentHash(t *testing.T) {
	h1 := GenerateContentHash("document processing")
	h2 := GenerateContentHash("document processing")
	h3 := GenerateContentHash("document processing ai")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestExtractContentSources(t *testing.T) {
	e := NewExtractor(nil)
	src := e.ExtractContentSources(testRecord())

	assert.Equal(t, "DocuMind", src.Name)
	assert.Equal(t, "Automation", src.Category)
	assert.Equal(t, []string{"ocr", "nlp"}, src.Tags)
	assert.Equal(t, []string{"Python", "TensorFlow"}, src.Technologies)
	assert.Empty(t, src.UseCases)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
