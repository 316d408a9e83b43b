// Package formula parses and composes prompt templates.
//
// A template is plain text with placeholder markers of the form #{slug}. The slug
// is one or more characters up to the closing brace. An opening "#{" that is not
// closed before the next "#{" or the end of the text is literal text.
package formula

import (
	"iter"
	"strings"
)

const (
	markerOpen  = "#{"
	markerClose = '}'
)

// Marker is one #{slug} occurrence in a template.
type Marker struct {
	Slug  string
	Start int // byte offset of '#'
	End   int // byte offset just past '}'
}

// Raw returns the marker as it appears in the template.
func (m Marker) Raw() string {
	return FormatMarker(m.Slug)
}

// FormatMarker renders slug as a marker.
func FormatMarker(slug string) string {
	return markerOpen + slug + string(markerClose)
}

// Markers yields every well-formed marker in content from left to right.
// The sequence can be ranged over any number of times.
func Markers(content string) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		pos := 0
		for pos < len(content) {
			rel := strings.Index(content[pos:], markerOpen)
			if rel < 0 {
				return
			}
			start := pos + rel
			bodyStart := start + len(markerOpen)

			end, ok := closeOf(content, bodyStart)
			if !ok {
				// Unterminated: resume at the next opening, if any.
				pos = bodyStart
				continue
			}
			if !yield(Marker{Slug: content[bodyStart:end], Start: start, End: end + 1}) {
				return
			}
			pos = end + 1
		}
	}
}

// closeOf finds the '}' closing a marker body that starts at from. The body must
// be non-empty and must not contain another opening.
func closeOf(content string, from int) (int, bool) {
	rest := content[from:]
	closeAt := strings.IndexByte(rest, markerClose)
	if closeAt <= 0 {
		return 0, false
	}
	if nextOpen := strings.Index(rest[:closeAt], markerOpen); nextOpen >= 0 {
		return 0, false
	}
	return from + closeAt, true
}

// Slugs returns the slugs of every marker in order of appearance, without duplicates.
func Slugs(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for m := range Markers(content) {
		if seen[m.Slug] {
			continue
		}
		seen[m.Slug] = true
		out = append(out, m.Slug)
	}
	return out
}
