// internal/types/sentinels.go
package types

/*
 * Sentinel mutation markers.
 *
 * A sentinel is placed where a literal value is expected and asks the server
 * to mutate the field instead. Delete is handled separately from the six
 * transform kinds because the create path rejects it outright.
 *
 * Sentinels are stateless tags: two ServerTimestamp() values are identical and
 * carry no identity. Payloads (increment operand, union elements) are opaque
 * here and encoded by internal/convert.
 *
 * Error-message fragments come from a static table so the messages callers
 * match on never depend on a display name.
 */

// TransformKind identifies a server-side field transform.
type TransformKind int

const (
	TransformUnspecified TransformKind = iota
	TransformServerTimestamp
	TransformIncrement
	TransformMaximum
	TransformMinimum
	TransformArrayUnion
	TransformArrayRemove
)

// transformNames maps kinds to the lowercase fragment used in error messages.
var transformNames = map[TransformKind]string{
	TransformServerTimestamp: "server_time",
	TransformIncrement:       "increment",
	TransformMaximum:         "maximum",
	TransformMinimum:         "minimum",
	TransformArrayUnion:      "array_union",
	TransformArrayRemove:     "array_delete",
}

// String returns the message fragment for the kind ("server_time", "array_delete", ...).
func (k TransformKind) String() string {
	if name, ok := transformNames[k]; ok {
		return name
	}
	return "unspecified"
}

// Delete marks a field for deletion. Rejected by the create path.
func Delete() Value {
	return Value{Kind: KindDelete}
}

// ServerTimestamp sets the field to the server's request time.
func ServerTimestamp() Value {
	return Value{Kind: KindTransform, Transform: TransformServerTimestamp}
}

// Increment adds n (integer or float) to the field's current value.
func Increment(n any) Value {
	return Value{Kind: KindTransform, Transform: TransformIncrement, Operand: n}
}

// Maximum sets the field to the larger of its current value and n.
func Maximum(n any) Value {
	return Value{Kind: KindTransform, Transform: TransformMaximum, Operand: n}
}

// Minimum sets the field to the smaller of its current value and n.
func Minimum(n any) Value {
	return Value{Kind: KindTransform, Transform: TransformMinimum, Operand: n}
}

// ArrayUnion appends each element not already present in the field's array.
func ArrayUnion(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: KindTransform, Transform: TransformArrayUnion, Elements: elems}
}

// ArrayRemove removes every occurrence of each element from the field's array.
func ArrayRemove(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: KindTransform, Transform: TransformArrayRemove, Elements: elems}
}

// IsSentinel reports whether v is a delete or transform marker.
func (v Value) IsSentinel() bool {
	return v.Kind == KindDelete || v.Kind == KindTransform
}
