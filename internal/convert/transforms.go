// internal/convert/transforms.go
package convert

import (
	"fmt"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/fieldpath"
	"github.com/solatis/firewrite/internal/types"
)

// transformBuilder keeps field transforms in first-encounter order. Entries
// are flat and keyed by escaped dotted path, unlike the nested field tree.
type transformBuilder struct {
	entries []*firestorepb.DocumentTransform_FieldTransform
}

func newTransformBuilder() *transformBuilder {
	return &transformBuilder{}
}

// add encodes the sentinel payload immediately so payload errors surface in
// traversal order alongside the walker's own errors.
func (b *transformBuilder) add(path fieldpath.Path, sentinel types.Value) error {
	ft, err := fieldTransform(path, sentinel)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, ft)
	return nil
}

// list returns the collected field transforms.
func (b *transformBuilder) list() []*firestorepb.DocumentTransform_FieldTransform {
	return b.entries
}

// fieldTransform encodes a single sentinel's payload into its transform type.
func fieldTransform(path fieldpath.Path, s types.Value) (*firestorepb.DocumentTransform_FieldTransform, error) {
	ft := &firestorepb.DocumentTransform_FieldTransform{FieldPath: path.String()}

	switch s.Transform {
	case types.TransformServerTimestamp:
		ft.TransformType = &firestorepb.DocumentTransform_FieldTransform_SetToServerValue{
			SetToServerValue: firestorepb.DocumentTransform_FieldTransform_REQUEST_TIME,
		}

	case types.TransformIncrement:
		v, err := encodeOperand(s.Operand)
		if err != nil {
			return nil, err
		}
		ft.TransformType = &firestorepb.DocumentTransform_FieldTransform_Increment{Increment: v}

	case types.TransformMaximum:
		v, err := encodeOperand(s.Operand)
		if err != nil {
			return nil, err
		}
		ft.TransformType = &firestorepb.DocumentTransform_FieldTransform_Maximum{Maximum: v}

	case types.TransformMinimum:
		v, err := encodeOperand(s.Operand)
		if err != nil {
			return nil, err
		}
		ft.TransformType = &firestorepb.DocumentTransform_FieldTransform_Minimum{Minimum: v}

	case types.TransformArrayUnion:
		arr, err := encodeElements(s.Elements)
		if err != nil {
			return nil, err
		}
		ft.TransformType = &firestorepb.DocumentTransform_FieldTransform_AppendMissingElements{AppendMissingElements: arr}

	case types.TransformArrayRemove:
		arr, err := encodeElements(s.Elements)
		if err != nil {
			return nil, err
		}
		ft.TransformType = &firestorepb.DocumentTransform_FieldTransform_RemoveAllFromArray{RemoveAllFromArray: arr}

	default:
		return nil, fmt.Errorf("%w: transform kind %d", types.ErrUnsupportedValue, s.Transform)
	}

	return ft, nil
}

// encodeElements encodes array union/remove elements. The elements form an
// array value, so the in-array sentinel rule applies to them too.
func encodeElements(elems []types.Value) (*firestorepb.ArrayValue, error) {
	if err := checkArrayElements(elems); err != nil {
		return nil, err
	}
	return encodeArray(elems)
}
