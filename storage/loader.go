package storage

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/poiesic/semsearch/core"
	"gopkg.in/yaml.v3"
)

// reserved keys of a flat catalog entry; everything else is a field.
const (
	keyID        = "id"
	keyFields    = "fields"
	keyCreatedAt = "createdAt"
	keyUpdatedAt = "updatedAt"
)

// LoadRecords reads catalog records from YAML or JSON.
//
// The document is either a list of entries or a mapping with a "records"
// list. An entry either nests its catalog data under "fields" or lists it
// flat next to "id". Entries without an id get one derived from their name
// and description.
func LoadRecords(r io.Reader) ([]*core.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	var entries []any
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		entries = v
	case map[string]any:
		list, ok := v["records"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected a list or a \"records\" key", ErrInvalidImport)
		}
		entries = list
	default:
		return nil, fmt.Errorf("%w: unexpected document type %T", ErrInvalidImport, doc)
	}

	records := make([]*core.Record, 0, len(entries))
	for i, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is not a mapping", ErrInvalidImport, i)
		}
		record, err := recordFromEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidImport, i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func recordFromEntry(entry map[string]any) (*core.Record, error) {
	record := &core.Record{Fields: map[string]any{}}

	if nested, ok := entry[keyFields].(map[string]any); ok {
		for k, v := range nested {
			record.Fields[k] = v
		}
	}
	for k, v := range entry {
		switch k {
		case keyID:
			record.ID = strings.TrimSpace(fmt.Sprint(v))
		case keyFields:
		case keyCreatedAt:
			t, err := parseTime(v)
			if err != nil {
				return nil, err
			}
			record.CreatedAt = t
		case keyUpdatedAt:
			t, err := parseTime(v)
			if err != nil {
				return nil, err
			}
			record.UpdatedAt = t
		default:
			record.Fields[k] = v
		}
	}

	if record.ID == "" {
		seed := record.String(core.FieldName) + "\n" + record.String(core.FieldDescription)
		if strings.TrimSpace(seed) == "" {
			return nil, fmt.Errorf("entry has neither id nor name")
		}
		record.ID = core.IDFromContent(seed).String()
	}
	return record, nil
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
		}
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %v", v)
}
