package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/poiesic/semsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRecords_YAMLList(t *testing.T) {
	input := `
- id: acme-crm
  name: Acme CRM
  category: Software
  tags: [crm, sales]
  rating: 4.5
  reviewCount: 120
  createdAt: "2025-01-02T03:04:05Z"
- name: Ledger Pro
  description: Accounting for small firms
`
	records, err := LoadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	acme := records[0]
	assert.Equal(t, "acme-crm", acme.ID)
	assert.Equal(t, "Acme CRM", acme.String(core.FieldName))
	assert.Equal(t, []string{"crm", "sales"}, acme.Strings(core.FieldTags))
	rating, ok := acme.Float(core.FieldRating)
	assert.True(t, ok)
	assert.Equal(t, 4.5, rating)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), acme.CreatedAt)
	assert.NotContains(t, acme.Fields, "id")

	ledger := records[1]
	expectedID := core.IDFromContent("Ledger Pro\nAccounting for small firms").String()
	assert.Equal(t, expectedID, ledger.ID)
}

func TestLoadRecords_JSONWithRecordsKey(t *testing.T) {
	input := `{"records": [{"id": "x1", "fields": {"name": "X", "price": 99}}]}`

	records, err := LoadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x1", records[0].ID)
	price, ok := records[0].Float(core.FieldPrice)
	assert.True(t, ok)
	assert.Equal(t, 99.0, price)
}

func TestLoadRecords_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"scalar document", "42"},
		{"mapping without records", "foo: bar"},
		{"entry not a mapping", "- just a string"},
		{"entry without id or name", "- category: Software"},
		{"bad timestamp", "- id: a\n  createdAt: yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRecords(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrInvalidImport)
		})
	}
}

func TestLoadRecords_Empty(t *testing.T) {
	records, err := LoadRecords(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}
