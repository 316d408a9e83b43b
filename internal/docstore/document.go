// Package docstore is the business-key document store used by the catalog.
//
// Documents are JSON-shaped maps. Every document carries a storage id under "_id"
// assigned by the backend on first upsert; the stable business ids (formulaId,
// tagId, ...) are ordinary fields that callers query by.
package docstore

import (
	"encoding/json"
	"fmt"
)

// IDField is the field holding the storage id.
const IDField = "_id"

// Document is a single stored record.
type Document map[string]any

// ID returns the storage id, or "" if the document has not been stored yet.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// String returns the string value of field, or "" if absent or not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Document:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Encode converts a JSON-tagged struct into a Document.
// Numbers become float64 and slices become []any, as after a JSON round trip.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

// Decode fills v (a pointer to a JSON-tagged struct) from doc.
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// DecodeAll decodes every document into a new slice of T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
