// internal/fieldpath/fieldpath.go
package fieldpath

import (
	"fmt"
	"strings"

	"github.com/solatis/firewrite/internal/types"
)

/*
 * Field path representation for nested document fields.
 *
 * A Path holds one raw segment per nesting level, root first. Segments are
 * never derived by splitting on dots: "a.b" is one segment unless the caller
 * nested a mapping.
 *
 * Wire rendering (String) escapes each segment independently:
 *   - simple segments ([A-Za-z_][A-Za-z0-9_]*) are written as-is
 *   - anything else (empty, other characters, leading digit) is wrapped in
 *     back-quotes, with embedded back-quotes and back-slashes escaped by a
 *     back-slash
 * and joins them with ".".
 *
 * Parse is the inverse and is used by the server when applying transforms.
 *
 * Key functions:
 *   - Path.Child: copy-safe extension used by the tree walker
 *   - Path.String: escaped wire form
 *   - Parse: escaped wire form back to segments
 */

// Path is an ordered list of raw field-name segments.
type Path []string

// Child returns a new path with name appended. The receiver is never aliased,
// so sibling branches of a walk cannot overwrite each other's segments.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// String renders the escaped, dot-joined wire form.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = Escape(seg)
	}
	return strings.Join(parts, ".")
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Escape renders a single segment, back-quoting it when it is not simple.
func Escape(seg string) string {
	if isSimple(seg) {
		return seg
	}
	var b strings.Builder
	b.Grow(len(seg) + 2)
	b.WriteByte('`')
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c == '`' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('`')
	return b.String()
}

// isSimple reports whether seg can be written without quoting.
func isSimple(seg string) bool {
	if seg == "" {
		return false
	}
	if seg[0] >= '0' && seg[0] <= '9' {
		return false
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

// Parse converts an escaped wire path ("a.`b.c`.d") back to raw segments.
// Unquoted segments must be simple; quoted segments may contain anything,
// with \` and \\ as the only escapes.
func Parse(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", types.ErrInvalidFieldPath)
	}

	var path Path
	i := 0
	for {
		var seg string
		if i < len(s) && s[i] == '`' {
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' {
					if i+1 >= len(s) {
						return nil, fmt.Errorf("%w: dangling escape in %q", types.ErrInvalidFieldPath, s)
					}
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '`' {
					i++
					closed = true
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated quote in %q", types.ErrInvalidFieldPath, s)
			}
			seg = b.String()
		} else {
			start := i
			for i < len(s) && s[i] != '.' {
				i++
			}
			seg = s[start:i]
			if !isSimple(seg) {
				return nil, fmt.Errorf("%w: segment %q must be quoted in %q", types.ErrInvalidFieldPath, seg, s)
			}
		}
		path = append(path, seg)

		if i == len(s) {
			return path, nil
		}
		if s[i] != '.' {
			return nil, fmt.Errorf("%w: expected '.' at offset %d in %q", types.ErrInvalidFieldPath, i, s)
		}
		i++
		if i == len(s) {
			return nil, fmt.Errorf("%w: trailing '.' in %q", types.ErrInvalidFieldPath, s)
		}
	}
}
