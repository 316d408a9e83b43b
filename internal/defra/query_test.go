package defra

import (
	"reflect"
	"testing"

	"github.com/jackzampolin/spellbook/internal/docstore"
)

var testFields = []Field{
	{Name: "formulaId", Type: "String"},
	{Name: "modelIds", Type: "String", List: true},
	{Name: "isTop", Type: "Boolean"},
	{Name: "position", Type: "Int"},
	{Name: "sortOrder", Type: "Float"},
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"bae-0123-abcd", false},
		{"simple_id", false},
		{"", true},
		{`x") { _docID } }`, true},
		{"a b", true},
		{string(make([]byte, 501)), true},
	}
	for _, tt := range tests {
		if err := ValidateID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestQueryBuilder_Where(t *testing.T) {
	tests := []struct {
		name      string
		filters   []docstore.Filter
		wantQuery string
		wantVars  map[string]any
	}{
		{
			name:      "all",
			filters:   []docstore.Filter{docstore.All()},
			wantQuery: `{ Formula { _docID } }`,
		},
		{
			name:      "eq",
			filters:   []docstore.Filter{docstore.Eq("formulaId", "f1")},
			wantQuery: `query($v0: String) { Formula(filter: {formulaId: {_eq: $v0}}) { _docID } }`,
			wantVars:  map[string]any{"v0": "f1"},
		},
		{
			name:      "storage id",
			filters:   []docstore.Filter{docstore.Eq(docstore.IDField, "bae-1")},
			wantQuery: `query($v0: ID) { Formula(filter: {_docID: {_eq: $v0}}) { _docID } }`,
			wantVars:  map[string]any{"v0": "bae-1"},
		},
		{
			name:      "element of list",
			filters:   []docstore.Filter{docstore.ElemEq("modelIds", "m1")},
			wantQuery: `query($v0: String) { Formula(filter: {modelIds: {_any: {_eq: $v0}}}) { _docID } }`,
			wantVars:  map[string]any{"v0": "m1"},
		},
		{
			name:      "in on list",
			filters:   []docstore.Filter{docstore.In("modelIds", "m1", "m2")},
			wantQuery: `query($v0: [String!]) { Formula(filter: {modelIds: {_any: {_in: $v0}}}) { _docID } }`,
			wantVars:  map[string]any{"v0": []any{"m1", "m2"}},
		},
		{
			name:      "in on scalar",
			filters:   []docstore.Filter{docstore.In("formulaId", "f1", "f2")},
			wantQuery: `query($v0: [String!]) { Formula(filter: {formulaId: {_in: $v0}}) { _docID } }`,
			wantVars:  map[string]any{"v0": []any{"f1", "f2"}},
		},
		{
			name:      "int narrowed from json number",
			filters:   []docstore.Filter{docstore.Eq("position", float64(3))},
			wantQuery: `query($v0: Int) { Formula(filter: {position: {_eq: $v0}}) { _docID } }`,
			wantVars:  map[string]any{"v0": int64(3)},
		},
		{
			name:      "fractional int dropped",
			filters:   []docstore.Filter{docstore.Eq("position", 2.5)},
			wantQuery: `{ Formula { _docID } }`,
		},
		{
			name:      "ne left to local matching",
			filters:   []docstore.Filter{docstore.Ne("formulaId", "f1")},
			wantQuery: `{ Formula { _docID } }`,
		},
		{
			name:      "or with untranslatable branch dropped",
			filters:   []docstore.Filter{docstore.Or(docstore.Eq("isTop", true), docstore.Ne("formulaId", "f1"))},
			wantQuery: `{ Formula { _docID } }`,
		},
		{
			name:      "or",
			filters:   []docstore.Filter{docstore.Or(docstore.Eq("isTop", true), docstore.Eq("formulaId", "f1"))},
			wantQuery: `query($v0: Boolean, $v1: String) { Formula(filter: {_or: [{isTop: {_eq: $v0}}, {formulaId: {_eq: $v1}}]}) { _docID } }`,
			wantVars:  map[string]any{"v0": true, "v1": "f1"},
		},
		{
			name:      "and keeps translatable parts",
			filters:   []docstore.Filter{docstore.And(docstore.Eq("isTop", true), docstore.Ne("formulaId", "f1"))},
			wantQuery: `query($v0: Boolean) { Formula(filter: {_and: [{isTop: {_eq: $v0}}]}) { _docID } }`,
			wantVars:  map[string]any{"v0": true},
		},
		{
			name:      "several where calls",
			filters:   []docstore.Filter{docstore.Eq("isTop", false), docstore.Eq("sortOrder", 1)},
			wantQuery: `query($v0: Boolean, $v1: Float) { Formula(filter: {_and: [{isTop: {_eq: $v0}}, {sortOrder: {_eq: $v1}}]}) { _docID } }`,
			wantVars:  map[string]any{"v0": false, "v1": float64(1)},
		},
		{
			name:      "undeclared field inferred",
			filters:   []docstore.Filter{docstore.Eq("slug", "style")},
			wantQuery: `query($v0: String) { Formula(filter: {slug: {_eq: $v0}}) { _docID } }`,
			wantVars:  map[string]any{"v0": "style"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuery("Formula").Schema(testFields...)
			for _, f := range tt.filters {
				q.Where(f)
			}
			gotQuery, gotVars := q.Build()
			if gotQuery != tt.wantQuery {
				t.Errorf("query = %s\nwant    %s", gotQuery, tt.wantQuery)
			}
			if !reflect.DeepEqual(gotVars, tt.wantVars) {
				t.Errorf("vars = %#v, want %#v", gotVars, tt.wantVars)
			}
		})
	}
}

func TestQueryBuilder_FieldsAndOrder(t *testing.T) {
	q, _ := NewQuery("Tag").
		Filter("slug", "style").
		Fields("_docID", "slug").
		OrderBy("sortOrder", "DESC").
		Build()

	want := `query($v0: String) { Tag(filter: {slug: {_eq: $v0}}, order: {sortOrder: DESC}) { _docID slug } }`
	if q != want {
		t.Errorf("query = %s\nwant    %s", q, want)
	}
}
