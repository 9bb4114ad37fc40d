package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(nil)
	require.NoError(t, err)
	return p
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "document processing ai", Normalize("  Document\tPROCESSING   AI "))
	assert.Equal(t, "", Normalize("   "))
}

func TestExpandSynonyms(t *testing.T) {
	p := newTestProcessor(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "appends capped synonyms",
			query: "document processing ai",
			want:  "document processing ai artificial intelligence machine learning",
		},
		{
			name:  "word boundary only",
			query: "maintenance tools",
			want:  "maintenance tools",
		},
		{
			name:  "skips synonyms already present",
			query: "crm for sales",
			want:  "crm for sales customer relationship management",
		},
		{
			name:  "no match leaves query untouched",
			query: "payroll software",
			want:  "payroll software",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ExpandSynonyms(tt.query))
		})
	}
}

func TestExpandSynonyms_Additive(t *testing.T) {
	p := newTestProcessor(t)
	queries := []string{"ai chatbot for healthcare", "cloud security analytics", "ocr nlp"}
	for _, q := range queries {
		expanded := p.ExpandSynonyms(q)
		assert.True(t, len(expanded) >= len(q))
		assert.Equal(t, q, expanded[:len(q)], "original tokens must be kept in order")
	}
}

func TestSpellCorrect(t *testing.T) {
	p := newTestProcessor(t)

	assert.Equal(t, "artificial intelligence tools", p.SpellCorrect("artifical inteligence tools"))
	assert.Equal(t, "document processing", p.SpellCorrect("documnet proccessing"))
	assert.Equal(t, "Analytics", p.SpellCorrect("Analytics"))
	assert.Equal(t, "chatbot builder", p.SpellCorrect("Chat Bot builder"))

	// deterministic
	assert.Equal(t, p.SpellCorrect("managment analitics"), p.SpellCorrect("managment analitics"))
}

func TestCorrections(t *testing.T) {
	p := newTestProcessor(t)

	found := p.Corrections("best artifical lerning tools")
	require.Len(t, found, 2)
	assert.Equal(t, "artificial", found[0].Correction)
	assert.Equal(t, "learning", found[1].Correction)

	assert.Empty(t, p.Corrections("nothing wrong here"))
}

func TestProcessQuery(t *testing.T) {
	p := newTestProcessor(t)
	assert.Equal(t, "document processing ai artificial intelligence machine learning",
		p.ProcessQuery("  Document Processing AI "))

	plain, err := NewProcessor(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "artifical ai", plain.ProcessQuery("Artifical  AI"))
}

func TestDetectIntent(t *testing.T) {
	p := newTestProcessor(t)

	tests := []struct {
		query      string
		category   string
		confidence float64
	}{
		{query: "compare zendesk vs intercom", category: IntentComparison, confidence: 0.8},
		{query: "i need a tool to help with invoices", category: IntentSpecificNeed, confidence: 0.8},
		{query: "affordable crm", category: IntentPricing, confidence: 0.8},
		{query: "slack api connector", category: IntentIntegration, confidence: 0.8},
		{query: "ai platform for healthcare", category: IntentIndustry, confidence: 0.8},
		{query: "document processing ai", category: IntentProductSearch, confidence: 0.5},
		// comparison is checked before pricing
		{query: "cheap alternative to salesforce", category: IntentComparison, confidence: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			intent := p.DetectIntent(tt.query)
			assert.Equal(t, tt.category, intent.Category)
			assert.Equal(t, tt.confidence, intent.Confidence)
		})
	}
}

func TestDetectIntent_AlwaysExtractsEntities(t *testing.T) {
	p := newTestProcessor(t)
	intent := p.DetectIntent("python tools for fraud detection in banking")
	assert.Equal(t, IntentProductSearch, intent.Category)
	assert.Contains(t, intent.Entities.Technologies, "python")
	assert.Contains(t, intent.Entities.Industries, "banking")
	assert.Contains(t, intent.Entities.UseCases, "fraud detection")
}

func TestExtractEntities(t *testing.T) {
	p := newTestProcessor(t)

	e := p.ExtractEntities("Customer Support chatbot for Retail using OpenAI under $5,000")
	assert.Equal(t, []string{"openai"}, e.Technologies)
	assert.Equal(t, []string{"retail"}, e.Industries)
	assert.Equal(t, []string{"customer support"}, e.UseCases)
	require.NotNil(t, e.Budget)
	assert.Equal(t, 5000, *e.Budget)
	assert.Equal(t, 3, e.Count())

	e = p.ExtractEntities("budget of $750 per month")
	require.NotNil(t, e.Budget)
	assert.Equal(t, 750, *e.Budget)

	e = p.ExtractEntities("no budget given")
	assert.Nil(t, e.Budget)
	assert.Empty(t, e.Technologies)
}

func TestNewProcessor_InvalidPattern(t *testing.T) {
	_, err := NewProcessor(&Config{Intents: []IntentPatterns{{Category: "x", Patterns: []string{"("}}}})
	assert.Error(t, err)
}
