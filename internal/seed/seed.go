// Package seed imports reference data into the document store and keeps it
// reconciled by business id.
package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/types"
)

// ErrInvalidSeed is returned for seed data that does not match the seed schema.
var ErrInvalidSeed = errors.New("invalid seed data")

//go:embed schema.json
var schemaJSON []byte

//go:embed default.json
var defaultJSON []byte

// Seed is a complete set of reference data.
type Seed struct {
	Version  float64             `json:"version,omitempty"`
	Settings map[string]any      `json:"settings"`
	Models   []docstore.Document `json:"models"`
	Tags     []docstore.Document `json:"tags"`
	Snippets []docstore.Document `json:"snippets"`
	Formulas []docstore.Document `json:"formulas"`
}

// Records returns the seed records of a catalog collection.
func (s *Seed) Records(collection string) []docstore.Document {
	switch collection {
	case types.CollectionModels:
		return s.Models
	case types.CollectionTags:
		return s.Tags
	case types.CollectionSnippets:
		return s.Snippets
	case types.CollectionFormulas:
		return s.Formulas
	}
	return nil
}

// ImportOrder lists the catalog collections in the order they are imported.
var ImportOrder = []string{
	types.CollectionModels,
	types.CollectionTags,
	types.CollectionSnippets,
	types.CollectionFormulas,
}

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("seed.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to load seed schema: %w", err)
	}
	schema, err := compiler.Compile("seed.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile seed schema: %w", err)
	}
	return schema, nil
})

// Validate checks raw seed JSON against the seed schema.
func Validate(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return nil
}

// Parse validates and decodes seed JSON.
func Parse(data []byte) (*Seed, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if s.Settings == nil {
		s.Settings = map[string]any{}
	}
	return &s, nil
}

// Envelope is the response shape of the init-data endpoint.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}
