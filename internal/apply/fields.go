package apply

import (
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/fieldpath"
	"google.golang.org/protobuf/proto"
)

// getField returns the value at path, or nil when any segment is missing or
// an intermediate value is not a map.
func getField(fields map[string]*firestorepb.Value, path fieldpath.Path) *firestorepb.Value {
	for i, seg := range path {
		v, ok := fields[seg]
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			return v
		}
		fields = v.GetMapValue().GetFields()
	}
	return nil
}

// setField stores v at path, replacing non-map intermediates with maps.
func setField(doc *firestorepb.Document, path fieldpath.Path, v *firestorepb.Value) {
	if doc.Fields == nil {
		doc.Fields = map[string]*firestorepb.Value{}
	}
	fields := doc.Fields
	for _, seg := range path[:len(path)-1] {
		next := fields[seg]
		mv := next.GetMapValue()
		if mv == nil {
			mv = &firestorepb.MapValue{}
			fields[seg] = &firestorepb.Value{ValueType: &firestorepb.Value_MapValue{MapValue: mv}}
		}
		if mv.Fields == nil {
			mv.Fields = map[string]*firestorepb.Value{}
		}
		fields = mv.Fields
	}
	fields[path[len(path)-1]] = v
}

// deleteField removes the value at path if present.
func deleteField(fields map[string]*firestorepb.Value, path fieldpath.Path) {
	for i, seg := range path {
		if fields == nil {
			return
		}
		if i == len(path)-1 {
			delete(fields, seg)
			return
		}
		fields = fields[seg].GetMapValue().GetFields()
	}
}

// Project returns a copy of doc holding only the fields named by paths.
// Paths that do not resolve are skipped.
func Project(doc *firestorepb.Document, paths []string) (*firestorepb.Document, error) {
	out := &firestorepb.Document{
		Name:       doc.GetName(),
		CreateTime: doc.GetCreateTime(),
		UpdateTime: doc.GetUpdateTime(),
	}
	for _, raw := range paths {
		path, err := fieldpath.Parse(raw)
		if err != nil {
			return nil, err
		}
		if v := getField(doc.GetFields(), path); v != nil {
			setField(out, path, proto.Clone(v).(*firestorepb.Value))
		}
	}
	return out, nil
}
