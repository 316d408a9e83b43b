// Package types provides the catalog records shared across packages.
// This package has no dependencies on other spellbook packages to avoid import cycles.
package types

import (
	"strings"
	"time"
)

// Collection names used in the document store.
const (
	CollectionFormulas = "formulas"
	CollectionModels   = "models"
	CollectionTags     = "tags"
	CollectionSnippets = "snippets"
	CollectionSettings = "settings"
)

// Business id fields, one per collection.
const (
	FieldFormulaID  = "formulaId"
	FieldModelID    = "modelId"
	FieldTagID      = "tagId"
	FieldSnippetID  = "snippetId"
	FieldSettingKey = "settingKey"
)

// AppSettingsKey is the settingKey of the singleton settings document.
const AppSettingsKey = "app_settings"

// BusinessKeys maps each collection to its business id field.
var BusinessKeys = map[string]string{
	CollectionModels:   FieldModelID,
	CollectionTags:     FieldTagID,
	CollectionSnippets: FieldSnippetID,
	CollectionFormulas: FieldFormulaID,
	CollectionSettings: FieldSettingKey,
}

// Formula is a prompt template whose content may reference tags with #{slug} markers.
type Formula struct {
	ID          string   `json:"_id,omitempty"`
	FormulaID   string   `json:"formulaId"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	ModelIDs    []string `json:"modelIds"`
	IsTop       bool     `json:"isTop"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

// HasModel reports whether the formula is associated with modelID.
func (f *Formula) HasModel(modelID string) bool {
	for _, id := range f.ModelIDs {
		if id == modelID {
			return true
		}
	}
	return false
}

// Model is read-only reference data used to filter formulas.
type Model struct {
	ID        string  `json:"_id,omitempty"`
	ModelID   string  `json:"modelId"`
	Name      string  `json:"name"`
	Version   string  `json:"version,omitempty"`
	Category  string  `json:"category,omitempty"`
	SortOrder float64 `json:"sortOrder"`
	IsActive  bool    `json:"isActive"`
}

// Tag is a named placeholder category referenced from formula content by slug.
type Tag struct {
	ID            string  `json:"_id,omitempty"`
	TagID         string  `json:"tagId"`
	Slug          string  `json:"slug"`
	DisplayName   string  `json:"displayName"`
	IsMultiSelect bool    `json:"isMultiSelect"`
	SortOrder     float64 `json:"sortOrder"`
	IsTop         bool    `json:"isTop"`
	ParentID      string  `json:"parentId,omitempty"`
	CreatedAt     string  `json:"createdAt,omitempty"`
}

// Snippet is a reusable piece of text that can fill markers of the tags it belongs to.
type Snippet struct {
	ID        string   `json:"_id,omitempty"`
	SnippetID string   `json:"snippetId"`
	ShortName string   `json:"shortName"`
	Content   string   `json:"content"`
	TagIDs    []string `json:"tagIds"`
	IsTop     bool     `json:"isTop"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// Setting is a key/value document. SettingValue holds a JSON encoded object.
type Setting struct {
	ID           string `json:"_id,omitempty"`
	SettingKey   string `json:"settingKey"`
	SettingValue string `json:"settingValue"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// TimeLayout is the ISO-8601 layout used for every stored timestamp.
// UTC values sort lexicographically in chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// nowFunc is replaced in tests.
var nowFunc = time.Now

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return FormatTime(nowFunc())
}

// FormatTime formats t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// timeLayouts are the ISO-8601 forms accepted from seed files and legacy
// records. Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses a stored timestamp. Empty or malformed values yield the zero time,
// which orders before every real timestamp.
func ParseTime(s string) time.Time {
	t, _ := parseTime(s)
	return t
}

// NormalizeTime rewrites a parseable timestamp with TimeLayout in UTC so that
// string order matches chronological order. Other values are returned as is.
func NormalizeTime(s string) string {
	t, ok := parseTime(s)
	if !ok {
		return s
	}
	return FormatTime(t)
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
