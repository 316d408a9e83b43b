package formula

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jackzampolin/spellbook/internal/types"
)

type mapResolver map[string]*types.Tag

func (m mapResolver) TagBySlug(_ context.Context, slug string) (*types.Tag, error) {
	return m[slug], nil
}

type failingResolver struct{ err error }

func (f failingResolver) TagBySlug(context.Context, string) (*types.Tag, error) {
	return nil, f.err
}

var roundTripInputs = []string{
	"",
	"plain text",
	"A #{color} cat",
	"#{a}#{b}",
	"#{}",
	"#{unterminated",
	"#{a #{b} c",
	"trailing #",
	"##{x}}",
	"{#{x}}",
	"multi\nline #{tag with spaces}\n",
	"中文 #{颜色} 猫",
	"#{a}}}#{",
}

func TestMarkers(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"", nil},
		{"no markers", nil},
		{"A #{color} cat", []string{"color"}},
		{"#{a}#{b}#{a}", []string{"a", "b", "a"}},
		{"#{}", nil},
		{"#{open", nil},
		{"#{a #{b}", []string{"b"}},
		{"#{x y}", []string{"x y"}},
		{"##{x}}", []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			var got []string
			for m := range Markers(tt.content) {
				got = append(got, m.Slug)
				if tt.content[m.Start:m.End] != m.Raw() {
					t.Errorf("offsets [%d:%d] = %q, want %q", m.Start, m.End, tt.content[m.Start:m.End], m.Raw())
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Markers(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestMarkers_Restartable(t *testing.T) {
	seq := Markers("#{a} and #{b}")
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if first, second := count(), count(); first != 2 || second != 2 {
		t.Errorf("iterations yielded %d then %d markers, want 2 both times", first, second)
	}

	// Early break must not panic.
	for range seq {
		break
	}
}

func TestParse(t *testing.T) {
	color := &types.Tag{TagID: "t1", Slug: "color", DisplayName: "Color"}
	resolver := mapResolver{"color": color}

	segments, err := Parse(context.Background(), "A #{color} #{size} cat", resolver)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Segment{
		{Kind: KindText, Value: "A "},
		{Kind: KindTag, Slug: "color", DisplayName: "Color", Tag: color},
		{Kind: KindText, Value: " "},
		{Kind: KindTag, Slug: "size", DisplayName: "size"},
		{Kind: KindText, Value: " cat"},
	}
	if !reflect.DeepEqual(segments, want) {
		t.Errorf("Parse() = %+v\nwant %+v", segments, want)
	}
	if !segments[1].Resolved() || segments[3].Resolved() {
		t.Error("Resolved() mismatch")
	}
}

func TestParse_EdgeCases(t *testing.T) {
	ctx := context.Background()

	empty, err := Parse(ctx, "", mapResolver{})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Parse(\"\") = %v, %v; want empty non-nil slice", empty, err)
	}

	single, _ := Parse(ctx, "no markers here", mapResolver{})
	if len(single) != 1 || single[0].Kind != KindText || single[0].Value != "no markers here" {
		t.Errorf("Parse(no markers) = %+v", single)
	}

	literal, _ := Parse(ctx, "#{}", mapResolver{})
	if len(literal) != 1 || literal[0].Kind != KindText {
		t.Errorf("Parse(#{}) = %+v, want one text segment", literal)
	}
}

func TestParse_ResolverError(t *testing.T) {
	boom := errors.New("store down")
	_, err := Parse(context.Background(), "#{x}", failingResolver{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Parse() error = %v, want wrapped %v", err, boom)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	resolver := mapResolver{"x": {Slug: "x", DisplayName: "X"}}
	for _, content := range roundTripInputs {
		segments, err := Parse(context.Background(), content, resolver)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", content, err)
		}
		if got := Join(segments); got != content {
			t.Errorf("Join(Parse(%q)) = %q", content, got)
		}
	}
}

func FuzzSplitRoundTrip(f *testing.F) {
	for _, content := range roundTripInputs {
		f.Add(content)
	}
	f.Fuzz(func(t *testing.T, content string) {
		var b strings.Builder
		for seg := range Split(content) {
			b.WriteString(seg.Raw())
		}
		if b.String() != content {
			t.Errorf("round trip of %q produced %q", content, b.String())
		}
	})
}

func TestCompose(t *testing.T) {
	orange := types.Snippet{SnippetID: "s1", Content: "orange"}

	tests := []struct {
		name       string
		content    string
		selections Selections
		want       string
	}{
		{"selected", "A #{color} cat", Selections{"color": orange}, "A orange cat"},
		{"unselected filler", "A #{color} cat", nil, "A  random color  cat"},
		{"no markers", "just text", Selections{"color": orange}, "just text"},
		{"empty", "", nil, ""},
		{"repeated slug", "#{color}/#{color}", Selections{"color": orange}, "orange/orange"},
		{"unterminated kept", "#{color", Selections{"color": orange}, "#{color"},
		{"empty marker kept", "#{}", nil, "#{}"},
		{"whitespace preserved", "  #{a}\t\n", Selections{"a": {Content: "x"}}, "  x\t\n"},
		{
			"snippet with marker is not rescanned",
			"#{a} #{b}",
			Selections{"a": {Content: "#{b}"}, "b": {Content: "B"}},
			"#{b} B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.content, tt.selections)
			if got != tt.want {
				t.Errorf("Compose(%q) = %q, want %q", tt.content, got, tt.want)
			}
			if again := Compose(tt.content, tt.selections); again != got {
				t.Errorf("Compose not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestCompose_SubstitutesEverySelectedSlug(t *testing.T) {
	selections := Selections{
		"color": {Content: "red"},
		"size":  {Content: "big"},
		"mood":  {Content: "calm"},
	}
	for _, content := range append(roundTripInputs, "#{color} #{size} #{mood} #{other}") {
		out := Compose(content, selections)
		for slug := range selections {
			if strings.Contains(out, FormatMarker(slug)) {
				t.Errorf("Compose(%q) = %q still contains marker for %q", content, out, slug)
			}
		}
	}
}

func TestCompose_EmptySelectionsUseFiller(t *testing.T) {
	out := Compose("#{a} and #{b}", Selections{})
	if out != Filler("a")+" and "+Filler("b") {
		t.Errorf("Compose() = %q", out)
	}
}

func TestUnresolved(t *testing.T) {
	got := Unresolved("#{a} #{b} #{a} #{c}", Selections{"b": {}})
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unresolved() = %v, want %v", got, want)
	}

	if got := Unresolved("plain", nil); len(got) != 0 {
		t.Errorf("Unresolved(plain) = %v, want empty", got)
	}
}

func TestParseTagInput(t *testing.T) {
	tests := []struct {
		input string
		want  []TagInput
	}{
		{"", nil},
		{"color", []TagInput{{DisplayName: "color", Slug: "color"}}},
		{"color  size", []TagInput{{"color", "color"}, {"size", "size"}}},
		{"#{Main Color|color}", []TagInput{{"Main Color", "color"}}},
		{"#{ Hue | hue } light", []TagInput{{"Hue", "hue"}, {"light", "light"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseTagInput(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTagInput(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEditableContent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a #color cat", "a #{color} cat"},
		{"a #{color} cat", "a #{color} cat"},
		{"#{color} and #size", "#{color} and #size"},
		{"nothing", "nothing"},
		{"# alone", "# alone"},
	}
	for _, tt := range tests {
		if got := EditableContent(tt.in); got != tt.want {
			t.Errorf("EditableContent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
