package formula

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/jackzampolin/spellbook/internal/types"
)

// Kind distinguishes literal text from tag placeholders.
type Kind string

const (
	KindText Kind = "text"
	KindTag  Kind = "tag"
)

// Segment is one piece of a parsed template.
type Segment struct {
	Kind Kind `json:"kind"`

	// Value is the literal text of a text segment.
	Value string `json:"value,omitempty"`

	// Slug, DisplayName and Tag describe a tag segment. Tag is nil when no tag
	// with the slug exists, in which case DisplayName falls back to the slug.
	Slug        string     `json:"slug,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Tag         *types.Tag `json:"tag,omitempty"`
}

// Raw returns the template text this segment was parsed from.
func (s Segment) Raw() string {
	if s.Kind == KindTag {
		return FormatMarker(s.Slug)
	}
	return s.Value
}

// Resolved reports whether a tag segment found its tag record.
func (s Segment) Resolved() bool {
	return s.Kind == KindTag && s.Tag != nil
}

// TagResolver looks up tags by slug. A missing tag is (nil, nil).
type TagResolver interface {
	TagBySlug(ctx context.Context, slug string) (*types.Tag, error)
}

// Split yields the text and tag segments of content without resolving tags.
// Tag segments carry the slug as their display name.
func Split(content string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		last := 0
		for m := range Markers(content) {
			if m.Start > last {
				if !yield(Segment{Kind: KindText, Value: content[last:m.Start]}) {
					return
				}
			}
			if !yield(Segment{Kind: KindTag, Slug: m.Slug, DisplayName: m.Slug}) {
				return
			}
			last = m.End
		}
		if last < len(content) {
			yield(Segment{Kind: KindText, Value: content[last:]})
		}
	}
}

// Parse splits content into segments and resolves each tag segment against
// resolver. Unknown slugs degrade to the raw slug. Resolver failures are returned.
func Parse(ctx context.Context, content string, resolver TagResolver) ([]Segment, error) {
	segments := []Segment{}
	for seg := range Split(content) {
		if seg.Kind == KindTag && resolver != nil {
			tag, err := resolver.TagBySlug(ctx, seg.Slug)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve tag %q: %w", seg.Slug, err)
			}
			if tag != nil {
				seg.Tag = tag
				if tag.DisplayName != "" {
					seg.DisplayName = tag.DisplayName
				}
			}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Join concatenates the raw text of segments.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Raw())
	}
	return b.String()
}
