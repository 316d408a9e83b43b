// Package schema holds the DefraDB types backing the catalog collections.
package schema

import (
	"bufio"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackzampolin/spellbook/internal/defra"
	"github.com/jackzampolin/spellbook/internal/types"
)

//go:embed schemas/*.graphql
var schemaFS embed.FS

// Schema represents a DefraDB collection schema.
type Schema struct {
	Name       string // GraphQL type (e.g., "Formula")
	Collection string // docstore collection (e.g., "formulas")
	SDL        string // GraphQL SDL definition
	Order      int    // Initialization order (lower = first)
}

// registry holds all schemas. The catalog types have no relations between
// them, so order only makes initialization logs stable.
var registry = []Schema{
	{Name: "Model", Collection: types.CollectionModels, Order: 1},
	{Name: "Tag", Collection: types.CollectionTags, Order: 2},
	{Name: "Snippet", Collection: types.CollectionSnippets, Order: 3},
	{Name: "Formula", Collection: types.CollectionFormulas, Order: 4},
	{Name: "Setting", Collection: types.CollectionSettings, Order: 5},
}

// All returns all schemas in initialization order.
// Schemas are loaded from embedded .graphql files.
func All() ([]Schema, error) {
	schemas := make([]Schema, len(registry))
	copy(schemas, registry)

	for i := range schemas {
		sdl, err := readSDL(schemas[i].Name)
		if err != nil {
			return nil, err
		}
		schemas[i].SDL = sdl
	}

	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Order < schemas[j].Order
	})

	return schemas, nil
}

// Get returns a single schema by type name.
func Get(name string) (*Schema, error) {
	for _, s := range registry {
		if s.Name == name {
			sdl, err := readSDL(s.Name)
			if err != nil {
				return nil, err
			}
			s.SDL = sdl
			return &s, nil
		}
	}
	return nil, fmt.Errorf("schema not found: %s", name)
}

// Specs returns the collection specs the defra store needs, with fields read
// from the SDL.
func Specs() ([]defra.CollectionSpec, error) {
	schemas, err := All()
	if err != nil {
		return nil, err
	}
	specs := make([]defra.CollectionSpec, 0, len(schemas))
	for _, s := range schemas {
		fields, err := ParseFields(s.SDL)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", s.Name, err)
		}
		specs = append(specs, defra.CollectionSpec{Name: s.Collection, Type: s.Name, Fields: fields})
	}
	return specs, nil
}

// ParseFields reads the field list of the single type in sdl. Only scalar and
// scalar-list fields are supported; comments and directives are ignored.
func ParseFields(sdl string) ([]defra.Field, error) {
	var (
		fields []defra.Field
		inType bool
	)
	sc := bufio.NewScanner(strings.NewReader(sdl))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "type "):
			if inType {
				return nil, fmt.Errorf("nested type definition")
			}
			inType = true
			continue
		case line == "}":
			inType = false
			continue
		case !inType:
			return nil, fmt.Errorf("unexpected line outside type: %q", line)
		}

		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed field: %q", line)
		}
		typ := strings.TrimSpace(rest)
		if i := strings.Index(typ, "@"); i >= 0 {
			typ = strings.TrimSpace(typ[:i])
		}
		typ = strings.ReplaceAll(typ, "!", "")

		f := defra.Field{Name: strings.TrimSpace(name)}
		if strings.HasPrefix(typ, "[") && strings.HasSuffix(typ, "]") {
			f.List = true
			typ = strings.TrimSpace(typ[1 : len(typ)-1])
		}
		switch typ {
		case "String", "Int", "Float", "Boolean":
			f.Type = typ
		default:
			return nil, fmt.Errorf("field %s: unsupported type %q", f.Name, typ)
		}
		fields = append(fields, f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields found")
	}
	return fields, nil
}

func readSDL(name string) (string, error) {
	filename := fmt.Sprintf("schemas/%s.graphql", strings.ToLower(name))
	content, err := schemaFS.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	return string(content), nil
}
