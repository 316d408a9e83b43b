package defra

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jackzampolin/spellbook/internal/docstore"
)

// IDPattern matches valid DefraDB document IDs (bae-<uuid> format) and simple identifiers.
// This is used to validate IDs before interpolation to prevent GraphQL injection.
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks if a string is safe to use as a document ID in GraphQL queries.
// Returns an error if the ID contains characters that could be used for injection.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty ID")
	}
	if len(id) > 500 {
		return fmt.Errorf("ID too long: %d characters", len(id))
	}
	if !IDPattern.MatchString(id) {
		return fmt.Errorf("invalid ID format: contains unsafe characters")
	}
	return nil
}

// QueryBuilder helps construct safe, parameterized GraphQL queries.
// It uses GraphQL variables to prevent injection attacks.
//
// Filters are translated loosely: a predicate that cannot be expressed
// exactly in DefraDB's filter language is dropped, so the query returns a
// superset of the matching documents. Callers re-check results with
// docstore.Filter.Match.
type QueryBuilder struct {
	collection string
	schema     map[string]Field
	clauses    []string
	varDefs    []string
	vars       map[string]any
	fields     []string
	order      string
	varIndex   int
}

// NewQuery creates a new QueryBuilder for the given collection type.
func NewQuery(collection string) *QueryBuilder {
	return &QueryBuilder{
		collection: collection,
		schema:     map[string]Field{},
		vars:       map[string]any{},
		fields:     []string{"_docID"},
	}
}

// Schema declares field types so variables are typed correctly and list
// fields use _any. Fields not declared fall back to type inference.
func (q *QueryBuilder) Schema(fields ...Field) *QueryBuilder {
	for _, f := range fields {
		q.schema[f.Name] = f
	}
	return q
}

// Filter adds an equality filter.
func (q *QueryBuilder) Filter(field string, value any) *QueryBuilder {
	return q.Where(docstore.Eq(field, value))
}

// FilterIn adds an _in filter for matching any of the values.
func (q *QueryBuilder) FilterIn(field string, values []string) *QueryBuilder {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return q.Where(docstore.In(field, vs...))
}

// Where adds a docstore filter. Several calls are combined with _and.
func (q *QueryBuilder) Where(f docstore.Filter) *QueryBuilder {
	if clause, ok := q.translate(f); ok {
		q.clauses = append(q.clauses, clause)
	}
	return q
}

// Fields sets the fields to return (replaces default of just _docID).
func (q *QueryBuilder) Fields(fields ...string) *QueryBuilder {
	q.fields = fields
	return q
}

// OrderBy sets the ordering. direction is ASC or DESC.
func (q *QueryBuilder) OrderBy(field string, direction string) *QueryBuilder {
	q.order = fmt.Sprintf("{%s: %s}", fieldName(field), direction)
	return q
}

// Build returns the query string and variables map.
func (q *QueryBuilder) Build() (string, map[string]any) {
	var query strings.Builder

	if len(q.varDefs) > 0 {
		query.WriteString(fmt.Sprintf("query(%s) ", strings.Join(q.varDefs, ", ")))
	}

	query.WriteString("{ ")
	query.WriteString(q.collection)

	var args []string
	switch len(q.clauses) {
	case 0:
	case 1:
		args = append(args, "filter: "+q.clauses[0])
	default:
		args = append(args, fmt.Sprintf("filter: {_and: [%s]}", strings.Join(q.clauses, ", ")))
	}
	if q.order != "" {
		args = append(args, fmt.Sprintf("order: %s", q.order))
	}
	if len(args) > 0 {
		query.WriteString(fmt.Sprintf("(%s)", strings.Join(args, ", ")))
	}

	query.WriteString(" { ")
	query.WriteString(strings.Join(q.fields, " "))
	query.WriteString(" } }")

	vars := q.vars
	if len(vars) == 0 {
		vars = nil
	}
	return query.String(), vars
}

// Execute builds and executes the query on the given client.
func (q *QueryBuilder) Execute(ctx context.Context, client *Client) (*GQLResponse, error) {
	query, vars := q.Build()
	return client.Execute(ctx, query, vars)
}

// translate renders f as a filter object, or reports false when it cannot be
// expressed without narrowing the result set.
func (q *QueryBuilder) translate(f docstore.Filter) (string, bool) {
	switch f.Op() {
	case docstore.OpEq:
		spec := q.field(f.Field(), f.Value())
		if spec.List {
			return "", false
		}
		v, ok := coerce(spec.Type, f.Value())
		if !ok {
			return "", false
		}
		return fmt.Sprintf("{%s: {_eq: %s}}", fieldName(f.Field()), q.bind(spec.Type, v)), true

	case docstore.OpElemEq:
		spec := q.field(f.Field(), f.Value())
		if !spec.List {
			return "", false
		}
		v, ok := coerce(spec.Type, f.Value())
		if !ok {
			return "", false
		}
		return fmt.Sprintf("{%s: {_any: {_eq: %s}}}", fieldName(f.Field()), q.bind(spec.Type, v)), true

	case docstore.OpIn:
		if len(f.Values()) == 0 {
			return "", false
		}
		spec := q.field(f.Field(), f.Values()[0])
		values := make([]any, 0, len(f.Values()))
		for _, raw := range f.Values() {
			v, ok := coerce(spec.Type, raw)
			if !ok {
				return "", false
			}
			values = append(values, v)
		}
		ref := q.bind("["+spec.Type+"!]", values)
		if spec.List {
			return fmt.Sprintf("{%s: {_any: {_in: %s}}}", fieldName(f.Field()), ref), true
		}
		return fmt.Sprintf("{%s: {_in: %s}}", fieldName(f.Field()), ref), true

	case docstore.OpAnd:
		var parts []string
		for _, sub := range f.Subs() {
			if part, ok := q.translate(sub); ok {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return fmt.Sprintf("{_and: [%s]}", strings.Join(parts, ", ")), true

	case docstore.OpOr:
		if len(f.Subs()) == 0 {
			return "", false
		}
		parts := make([]string, 0, len(f.Subs()))
		for _, sub := range f.Subs() {
			part, ok := q.translate(sub)
			if !ok {
				return "", false
			}
			parts = append(parts, part)
		}
		return fmt.Sprintf("{_or: [%s]}", strings.Join(parts, ", ")), true
	}

	// OpAll needs no clause. OpNe also matches absent fields, which _ne does
	// not guarantee, so it is left to local matching.
	return "", false
}

// field returns the declared spec for name, or one inferred from sample.
func (q *QueryBuilder) field(name string, sample any) Field {
	if name == docstore.IDField {
		return Field{Name: "_docID", Type: "ID"}
	}
	if f, ok := q.schema[name]; ok {
		return f
	}
	return Field{Name: name, Type: inferGraphQLType(sample)}
}

// bind registers a variable and returns its reference.
func (q *QueryBuilder) bind(gqlType string, value any) string {
	name := q.nextVarName()
	q.varDefs = append(q.varDefs, fmt.Sprintf("$%s: %s", name, gqlType))
	q.vars[name] = value
	return "$" + name
}

// nextVarName generates the next variable name.
func (q *QueryBuilder) nextVarName() string {
	name := fmt.Sprintf("v%d", q.varIndex)
	q.varIndex++
	return name
}

// fieldName maps the docstore storage id onto DefraDB's.
func fieldName(name string) string {
	if name == docstore.IDField {
		return "_docID"
	}
	return name
}

// coerce converts v to the Go type DefraDB expects for gqlType. JSON numbers
// arrive as float64, so whole floats are narrowed for Int fields.
func coerce(gqlType string, v any) (any, bool) {
	switch gqlType {
	case "String", "ID":
		s, ok := v.(string)
		return s, ok
	case "Boolean":
		b, ok := v.(bool)
		return b, ok
	case "Int":
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int64:
			return n, true
		case float64:
			if n != math.Trunc(n) {
				return nil, false
			}
			return int64(n), true
		}
		return nil, false
	case "Float":
		switch n := v.(type) {
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case float64:
			return n, true
		}
		return nil, false
	}
	return nil, false
}

// inferGraphQLType infers the GraphQL type from a Go value.
func inferGraphQLType(v any) string {
	switch v.(type) {
	case string:
		return "String"
	case int, int32, int64:
		return "Int"
	case float32, float64:
		return "Float"
	case bool:
		return "Boolean"
	default:
		return "String" // Default to String
	}
}
