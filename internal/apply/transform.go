package apply

import (
	"fmt"
	"math"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

/*
 * Field transform semantics.
 *
 *   REQUEST_TIME            -> commit time
 *   increment               -> int+int saturates at int64 bounds; any double
 *                              operand or field gives a double; a missing or
 *                              non-numeric field is replaced by the operand
 *   maximum / minimum       -> numeric compare across int/double; missing or
 *                              non-numeric field is replaced by the operand
 *   append_missing_elements -> field array (or empty) plus each element not
 *                              already present, in order
 *   remove_all_from_array   -> field array minus every equal element; empty
 *                              when the field is not an array
 *
 * Numeric transforms report the new field value as their result; array
 * transforms report null.
 */

// transformValue returns the new field value and the transform result.
func transformValue(existing *firestorepb.Value, ft *firestorepb.DocumentTransform_FieldTransform, ts *timestamppb.Timestamp) (*firestorepb.Value, *firestorepb.Value, error) {
	switch t := ft.GetTransformType().(type) {
	case *firestorepb.DocumentTransform_FieldTransform_SetToServerValue:
		if t.SetToServerValue != firestorepb.DocumentTransform_FieldTransform_REQUEST_TIME {
			return nil, nil, fmt.Errorf("%w: server value %v", types.ErrUnsupportedValue, t.SetToServerValue)
		}
		v := &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{TimestampValue: ts}}
		return v, v, nil

	case *firestorepb.DocumentTransform_FieldTransform_Increment:
		v, err := increment(existing, t.Increment)
		return v, v, err

	case *firestorepb.DocumentTransform_FieldTransform_Maximum:
		v, err := extremum(existing, t.Maximum, func(c int) bool { return c < 0 })
		return v, v, err

	case *firestorepb.DocumentTransform_FieldTransform_Minimum:
		v, err := extremum(existing, t.Minimum, func(c int) bool { return c > 0 })
		return v, v, err

	case *firestorepb.DocumentTransform_FieldTransform_AppendMissingElements:
		return appendMissing(existing, t.AppendMissingElements), nullValue(), nil

	case *firestorepb.DocumentTransform_FieldTransform_RemoveAllFromArray:
		return removeAll(existing, t.RemoveAllFromArray), nullValue(), nil

	default:
		return nil, nil, fmt.Errorf("%w: empty field transform", types.ErrUnsupportedValue)
	}
}

func increment(existing, operand *firestorepb.Value) (*firestorepb.Value, error) {
	if !isNumeric(operand) {
		return nil, types.ErrNonNumericOperand
	}
	if !isNumeric(existing) {
		return proto.Clone(operand).(*firestorepb.Value), nil
	}

	a, aInt := existing.GetValueType().(*firestorepb.Value_IntegerValue)
	b, bInt := operand.GetValueType().(*firestorepb.Value_IntegerValue)
	if aInt && bInt {
		return intValue(saturatingAdd(a.IntegerValue, b.IntegerValue)), nil
	}
	return doubleValue(asFloat(existing) + asFloat(operand)), nil
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// extremum keeps existing unless replace(compare(existing, operand)) holds.
func extremum(existing, operand *firestorepb.Value, replace func(int) bool) (*firestorepb.Value, error) {
	if !isNumeric(operand) {
		return nil, types.ErrNonNumericOperand
	}
	if !isNumeric(existing) || replace(compareNumbers(existing, operand)) {
		return proto.Clone(operand).(*firestorepb.Value), nil
	}
	return proto.Clone(existing).(*firestorepb.Value), nil
}

// compareNumbers orders two numeric values; NaN sorts below every number.
func compareNumbers(a, b *firestorepb.Value) int {
	ai, aInt := a.GetValueType().(*firestorepb.Value_IntegerValue)
	bi, bInt := b.GetValueType().(*firestorepb.Value_IntegerValue)
	if aInt && bInt {
		switch {
		case ai.IntegerValue < bi.IntegerValue:
			return -1
		case ai.IntegerValue > bi.IntegerValue:
			return 1
		}
		return 0
	}

	af, bf := asFloat(a), asFloat(b)
	switch {
	case math.IsNaN(af) && math.IsNaN(bf):
		return 0
	case math.IsNaN(af), af < bf:
		return -1
	case math.IsNaN(bf), af > bf:
		return 1
	}
	return 0
}

func appendMissing(existing *firestorepb.Value, elems *firestorepb.ArrayValue) *firestorepb.Value {
	var out []*firestorepb.Value
	for _, v := range existing.GetArrayValue().GetValues() {
		out = append(out, proto.Clone(v).(*firestorepb.Value))
	}
	for _, e := range elems.GetValues() {
		if !contains(out, e) {
			out = append(out, proto.Clone(e).(*firestorepb.Value))
		}
	}
	return arrayValue(out)
}

func removeAll(existing *firestorepb.Value, elems *firestorepb.ArrayValue) *firestorepb.Value {
	var out []*firestorepb.Value
	for _, v := range existing.GetArrayValue().GetValues() {
		if !contains(elems.GetValues(), v) {
			out = append(out, proto.Clone(v).(*firestorepb.Value))
		}
	}
	return arrayValue(out)
}

// contains reports whether list holds an element equal to v. Numbers compare
// by value, so integer 1 and double 1.0 are the same element.
func contains(list []*firestorepb.Value, v *firestorepb.Value) bool {
	for _, x := range list {
		if valuesEqual(x, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b *firestorepb.Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return compareNumbers(a, b) == 0
	}
	return proto.Equal(a, b)
}

func isNumeric(v *firestorepb.Value) bool {
	switch v.GetValueType().(type) {
	case *firestorepb.Value_IntegerValue, *firestorepb.Value_DoubleValue:
		return true
	}
	return false
}

func asFloat(v *firestorepb.Value) float64 {
	if i, ok := v.GetValueType().(*firestorepb.Value_IntegerValue); ok {
		return float64(i.IntegerValue)
	}
	return v.GetDoubleValue()
}

func intValue(n int64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: n}}
}

func doubleValue(f float64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_DoubleValue{DoubleValue: f}}
}

func arrayValue(values []*firestorepb.Value) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_ArrayValue{ArrayValue: &firestorepb.ArrayValue{Values: values}}}
}

func nullValue() *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}
}
