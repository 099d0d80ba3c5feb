// internal/convert/walk.go
package convert

import (
	"fmt"

	"github.com/solatis/firewrite/internal/fieldpath"
	"github.com/solatis/firewrite/internal/types"
)

/*
 * Tree walker for create-path conversion.
 *
 * Single depth-first, top-to-bottom traversal of the input document. Each
 * leaf is classified and routed:
 *   - scalar / sentinel-free sequence -> field builder (encoded value)
 *   - transform sentinel              -> transform builder (path + payload)
 *   - delete sentinel                 -> ErrDeleteOnCreate
 *   - transform inside a sequence     -> NestedUnderArrayError(kind)
 *
 * Sequences do not extend the path; their elements are walked with
 * inArray=true purely for validation, then the whole sequence is encoded as
 * one array value. Mappings extend the path by their raw key.
 *
 * The first offending leaf aborts the walk, so the reported error follows
 * the same order transforms are collected in.
 */

// walker holds the two accumulators for one conversion call.
type walker struct {
	fields     *fieldBuilder
	transforms *transformBuilder
}

func newWalker() *walker {
	return &walker{
		fields:     newFieldBuilder(),
		transforms: newTransformBuilder(),
	}
}

// walkDocument visits every top-level field of the document.
func (w *walker) walkDocument(data types.Mapping) error {
	for _, f := range data {
		if err := w.walk(f.Value, fieldpath.Path{f.Name}, false); err != nil {
			return err
		}
	}
	return nil
}

// walk classifies node and recurses. path is the position of node; it is
// never empty below the document root.
func (w *walker) walk(node types.Value, path fieldpath.Path, inArray bool) error {
	switch node.Kind {
	case types.KindMapping:
		if inArray {
			for _, f := range node.Fields {
				if err := w.walk(f.Value, path, true); err != nil {
					return err
				}
			}
			return nil
		}
		if len(node.Fields) == 0 {
			w.fields.set(path, mapValue(nil))
			return nil
		}
		for _, f := range node.Fields {
			if err := w.walk(f.Value, path.Child(f.Name), false); err != nil {
				return err
			}
		}
		return nil

	case types.KindSequence:
		for _, item := range node.Items {
			if err := w.walk(item, path, true); err != nil {
				return err
			}
		}
		if inArray {
			return nil
		}
		return w.setEncoded(path, node)

	case types.KindDelete:
		return types.ErrDeleteOnCreate

	case types.KindTransform:
		if inArray {
			return types.NestedUnderArrayError(node.Transform)
		}
		return w.transforms.add(path, node)

	case types.KindScalar:
		if inArray {
			return nil
		}
		return w.setEncoded(path, node)

	default:
		return fmt.Errorf("%w: value kind %d", types.ErrUnsupportedValue, node.Kind)
	}
}

func (w *walker) setEncoded(path fieldpath.Path, node types.Value) error {
	ev, err := EncodeValue(node)
	if err != nil {
		return err
	}
	w.fields.set(path, ev)
	return nil
}

// checkArrayElements applies the in-array rule to array union/remove payloads.
func checkArrayElements(elems []types.Value) error {
	w := walker{}
	for _, e := range elems {
		if err := w.walk(e, nil, true); err != nil {
			return err
		}
	}
	return nil
}
