// Package types provides the document value model shared across firewrite components.
//
// Wire-format agnostic: Value, Mapping and the sentinel markers describe what a
// caller wants written. Conversion to google.firestore.v1 messages happens in
// internal/convert; this package has no protobuf dependency so that decoders and
// clients can build documents without pulling in the wire schema.
package types

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindSequence
	KindMapping
	KindDelete
	KindTransform
)

// Value is one node of an input document.
// Exactly one group of fields is meaningful, selected by Kind.
type Value struct {
	Kind      ValueKind
	Scalar    any           // KindScalar: opaque host value handed to the encoder
	Items     []Value       // KindSequence
	Fields    Mapping       // KindMapping
	Transform TransformKind // KindTransform
	Operand   any           // increment/maximum/minimum: numeric operand
	Elements  []Value       // array union/remove: elements
}

// Field is a single name/value entry of a Mapping.
// Name is used verbatim: dots, asterisks and other characters are never
// interpreted as path separators.
type Field struct {
	Name  string
	Value Value
}

// Mapping is an ordered document or nested map. Order is insertion order and
// drives the order in which transforms are collected.
type Mapping []Field

// Len returns the number of top-level entries.
func (m Mapping) Len() int {
	return len(m)
}

// Get returns the value stored under name.
func (m Mapping) Get(name string) (Value, bool) {
	for _, f := range m {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Scalar wraps a host value (string, number, bool, nil, time, bytes, ...).
func Scalar(v any) Value {
	return Value{Kind: KindScalar, Scalar: v}
}

// Array builds a sequence value.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindSequence, Items: items}
}

// Map builds a nested mapping value.
func Map(fields ...Field) Value {
	if fields == nil {
		fields = Mapping{}
	}
	return Value{Kind: KindMapping, Fields: fields}
}

// F is shorthand for a Field literal.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Doc builds a top-level document from fields.
func Doc(fields ...Field) Mapping {
	if fields == nil {
		return Mapping{}
	}
	return Mapping(fields)
}

// Reference is a document resource name stored as a reference value.
type Reference string

// GeoPoint is a latitude/longitude pair stored as a geo point value.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}
