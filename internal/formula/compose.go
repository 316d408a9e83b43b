package formula

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/spellbook/internal/types"
)

// Selections maps a tag slug to the snippet chosen for it.
type Selections map[string]types.Snippet

// Filler is the text substituted for a marker with no selection.
func Filler(slug string) string {
	return " random " + slug + " "
}

// Compose replaces every marker in content with the selected snippet's content,
// or with Filler when the slug has no selection. Text outside markers is kept
// verbatim and substituted text is never rescanned for markers.
func Compose(content string, selections Selections) string {
	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for m := range Markers(content) {
		b.WriteString(content[last:m.Start])
		if snippet, ok := selections[m.Slug]; ok {
			b.WriteString(snippet.Content)
		} else {
			b.WriteString(Filler(m.Slug))
		}
		last = m.End
	}
	b.WriteString(content[last:])
	return b.String()
}

// Unresolved lists the marker slugs in content that have no selection, in order
// of first appearance.
func Unresolved(content string, selections Selections) []string {
	out := []string{}
	for _, slug := range Slugs(content) {
		if _, ok := selections[slug]; !ok {
			out = append(out, slug)
		}
	}
	return out
}

// TagInput is one tag named in the snippet-add form.
type TagInput struct {
	DisplayName string `json:"displayName"`
	Slug        string `json:"slug"`
}

var tagInputPattern = regexp.MustCompile(`#\{([^|]+)\|([^}]+)\}|(\S+)`)

// ParseTagInput reads tags written either as #{Display Name|slug} or as bare
// whitespace separated words, where the word is both slug and display name.
func ParseTagInput(input string) []TagInput {
	var tags []TagInput
	for _, m := range tagInputPattern.FindAllStringSubmatch(input, -1) {
		if m[1] != "" && m[2] != "" {
			tags = append(tags, TagInput{
				DisplayName: strings.TrimSpace(m[1]),
				Slug:        strings.TrimSpace(m[2]),
			})
			continue
		}
		if word := strings.TrimSpace(m[3]); word != "" {
			tags = append(tags, TagInput{DisplayName: word, Slug: word})
		}
	}
	return tags
}

var legacyMarker = regexp.MustCompile(`#(\w+)`)

// EditableContent converts legacy "#word" placeholders into "#{word}" markers.
// Content that already uses markers is returned unchanged.
func EditableContent(content string) string {
	if strings.Contains(content, markerOpen) && strings.ContainsRune(content, markerClose) {
		return content
	}
	return legacyMarker.ReplaceAllString(content, "#{$1}")
}
