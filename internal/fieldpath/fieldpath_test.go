package fieldpath

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/firewrite/internal/types"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		seg  string
		want string
	}{
		{name: "simple lowercase", seg: "a", want: "a"},
		{name: "simple mixed", seg: "user_Name2", want: "user_Name2"},
		{name: "leading underscore", seg: "_id", want: "_id"},
		{name: "empty segment", seg: "", want: "``"},
		{name: "leading digit", seg: "0abc", want: "`0abc`"},
		{name: "contains dot", seg: "a.b", want: "`a.b`"},
		{name: "asterisk", seg: "*", want: "`*`"},
		{name: "tilde", seg: "~", want: "`~`"},
		{name: "space", seg: "first name", want: "`first name`"},
		{name: "backquote escaped", seg: "a`b", want: "`a\\`b`"},
		{name: "backslash escaped", seg: `a\b`, want: "`a\\\\b`"},
		{name: "non-ascii", seg: "héllo", want: "`héllo`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.seg); got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.seg, got, tt.want)
			}
		})
	}
}

func TestPath_String(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want string
	}{
		{name: "single", path: Path{"a"}, want: "a"},
		{name: "nested", path: Path{"c", "d"}, want: "c.d"},
		{name: "dotted segments stay quoted", path: Path{"a.b", "c.d"}, want: "`a.b`.`c.d`"},
		{name: "mixed", path: Path{"a", "1", "x y"}, want: "a.`1`.`x y`"},
		{name: "empty path", path: Path{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 8)
	base[0] = "root"

	left := base.Child("left")
	right := base.Child("right")

	if left[1] != "left" {
		t.Errorf("left[1] = %q, want left", left[1])
	}
	if right[1] != "right" {
		t.Errorf("right[1] = %q, want right", right[1])
	}
	if len(base) != 1 {
		t.Errorf("base modified: %v", base)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Path
	}{
		{name: "single", in: "a", want: Path{"a"}},
		{name: "nested", in: "a.b.c", want: Path{"a", "b", "c"}},
		{name: "quoted dot", in: "`a.b`.c", want: Path{"a.b", "c"}},
		{name: "quoted empty", in: "``", want: Path{""}},
		{name: "escaped backquote", in: "`a\\`b`", want: Path{"a`b"}},
		{name: "escaped backslash", in: "`a\\\\b`", want: Path{`a\b`}},
		{name: "quoted digit", in: "`0`.x", want: Path{"0", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "trailing dot", in: "a."},
		{name: "leading dot", in: ".a"},
		{name: "double dot", in: "a..b"},
		{name: "unquoted special", in: "a-b"},
		{name: "unquoted leading digit", in: "1a"},
		{name: "unterminated quote", in: "`abc"},
		{name: "dangling escape", in: "`abc\\"},
		{name: "garbage after quote", in: "`a`b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if !errors.Is(err, types.ErrInvalidFieldPath) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidFieldPath", tt.in, err)
			}
		})
	}
}

// Property-based test: escaping round-trips through Parse
func TestPath_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Parse(String(p)) == p for any segments", prop.ForAll(
		func(segs []string) bool {
			if len(segs) == 0 {
				return true
			}
			p := Path(segs)
			parsed, err := Parse(p.String())
			if err != nil {
				return false
			}
			return parsed.Equal(p)
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}

// Property-based test: simple identifiers are never quoted
func TestEscape_PropertyIdentifiersUnquoted(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("identifiers render verbatim", prop.ForAll(
		func(id string) bool {
			return Escape(id) == id
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
