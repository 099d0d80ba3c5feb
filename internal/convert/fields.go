// internal/convert/fields.go
package convert

import (
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/fieldpath"
)

// fieldBuilder accumulates plain leaves into a nested field tree keyed by raw
// top-level names. Intermediate maps are created only when a leaf is set, so
// a mapping whose leaves all became transforms never appears.
type fieldBuilder struct {
	root map[string]*firestorepb.Value
}

func newFieldBuilder() *fieldBuilder {
	return &fieldBuilder{root: make(map[string]*firestorepb.Value)}
}

// set stores v at path. The walker visits each leaf once, so no two calls
// target the same path.
func (b *fieldBuilder) set(path fieldpath.Path, v *firestorepb.Value) {
	fields := b.root
	for _, seg := range path[:len(path)-1] {
		next, ok := fields[seg]
		if !ok || next.GetMapValue() == nil {
			next = mapValue(make(map[string]*firestorepb.Value))
			fields[seg] = next
		}
		mv := next.GetMapValue()
		if mv.Fields == nil {
			mv.Fields = make(map[string]*firestorepb.Value)
		}
		fields = mv.Fields
	}
	fields[path[len(path)-1]] = v
}

// tree returns the accumulated fields.
func (b *fieldBuilder) tree() map[string]*firestorepb.Value {
	return b.root
}
