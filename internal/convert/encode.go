// internal/convert/encode.go
package convert

import (
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

/*
 * Value encoding to the google.firestore.v1 typed value model.
 *
 * Scalars dispatch on their Go type:
 *   - nil                        -> null_value
 *   - bool                       -> boolean_value
 *   - int*, uint8/16/32          -> integer_value
 *   - uint, uint64               -> integer_value (rejected above MaxInt64)
 *   - float32, float64           -> double_value
 *   - string                     -> string_value
 *   - []byte                     -> bytes_value
 *   - time.Time, *Timestamp      -> timestamp_value
 *   - GeoPoint, *latlng.LatLng   -> geo_point_value
 *   - Reference                  -> reference_value
 *   - *firestorepb.Value         -> passed through
 *   - nil pointers of the above  -> null_value
 *
 * Sequences and mappings encode recursively to array_value / map_value.
 * Sentinels never reach the encoder from the walker; encoding one directly is
 * an ErrUnsupportedValue. Encoder errors propagate unwrapped by the assembler.
 */

// EncodeValue converts a non-sentinel Value to its wire representation.
func EncodeValue(v types.Value) (*firestorepb.Value, error) {
	switch v.Kind {
	case types.KindScalar:
		return EncodeScalar(v.Scalar)
	case types.KindSequence:
		arr, err := encodeArray(v.Items)
		if err != nil {
			return nil, err
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_ArrayValue{ArrayValue: arr}}, nil
	case types.KindMapping:
		fields, err := encodeMapping(v.Fields)
		if err != nil {
			return nil, err
		}
		return mapValue(fields), nil
	case types.KindDelete:
		return nil, fmt.Errorf("%w: delete sentinel is not a value", types.ErrUnsupportedValue)
	case types.KindTransform:
		return nil, fmt.Errorf("%w: %s sentinel is not a value", types.ErrUnsupportedValue, v.Transform)
	default:
		return nil, fmt.Errorf("%w: value kind %d", types.ErrUnsupportedValue, v.Kind)
	}
}

// EncodeScalar converts a host scalar to its wire representation.
func EncodeScalar(s any) (*firestorepb.Value, error) {
	switch x := s.(type) {
	case nil:
		return nullValue(), nil
	case bool:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BooleanValue{BooleanValue: x}}, nil
	case int:
		return intValue(int64(x)), nil
	case int8:
		return intValue(int64(x)), nil
	case int16:
		return intValue(int64(x)), nil
	case int32:
		return intValue(int64(x)), nil
	case int64:
		return intValue(x), nil
	case uint8:
		return intValue(int64(x)), nil
	case uint16:
		return intValue(int64(x)), nil
	case uint32:
		return intValue(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint %d overflows int64", types.ErrUnsupportedValue, x)
		}
		return intValue(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint64 %d overflows int64", types.ErrUnsupportedValue, x)
		}
		return intValue(int64(x)), nil
	case float32:
		return doubleValue(float64(x)), nil
	case float64:
		return doubleValue(x), nil
	case string:
		return &firestorepb.Value{ValueType: &firestorepb.Value_StringValue{StringValue: x}}, nil
	case []byte:
		return &firestorepb.Value{ValueType: &firestorepb.Value_BytesValue{BytesValue: x}}, nil
	case time.Time:
		return &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{TimestampValue: timestamppb.New(x)}}, nil
	case *timestamppb.Timestamp:
		if x == nil {
			return nullValue(), nil
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_TimestampValue{TimestampValue: x}}, nil
	case types.GeoPoint:
		return &firestorepb.Value{ValueType: &firestorepb.Value_GeoPointValue{GeoPointValue: &latlng.LatLng{Latitude: x.Latitude, Longitude: x.Longitude}}}, nil
	case *latlng.LatLng:
		if x == nil {
			return nullValue(), nil
		}
		return &firestorepb.Value{ValueType: &firestorepb.Value_GeoPointValue{GeoPointValue: x}}, nil
	case types.Reference:
		return &firestorepb.Value{ValueType: &firestorepb.Value_ReferenceValue{ReferenceValue: string(x)}}, nil
	case *firestorepb.Value:
		if x == nil {
			return nullValue(), nil
		}
		return x, nil
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnsupportedValue, s)
	}
}

// encodeOperand converts an increment/maximum/minimum operand.
// Only integers and floats are accepted.
func encodeOperand(n any) (*firestorepb.Value, error) {
	switch n.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint, uint64, float32, float64:
		return EncodeScalar(n)
	default:
		return nil, fmt.Errorf("%w: got %T", types.ErrNonNumericOperand, n)
	}
}

func encodeArray(items []types.Value) (*firestorepb.ArrayValue, error) {
	values := make([]*firestorepb.Value, 0, len(items))
	for _, item := range items {
		ev, err := EncodeValue(item)
		if err != nil {
			return nil, err
		}
		values = append(values, ev)
	}
	return &firestorepb.ArrayValue{Values: values}, nil
}

func encodeMapping(m types.Mapping) (map[string]*firestorepb.Value, error) {
	fields := make(map[string]*firestorepb.Value, len(m))
	for _, f := range m {
		ev, err := EncodeValue(f.Value)
		if err != nil {
			return nil, err
		}
		fields[f.Name] = ev
	}
	return fields, nil
}

func intValue(n int64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: n}}
}

func doubleValue(f float64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_DoubleValue{DoubleValue: f}}
}

func mapValue(fields map[string]*firestorepb.Value) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_MapValue{MapValue: &firestorepb.MapValue{Fields: fields}}}
}

func nullValue() *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}
}
