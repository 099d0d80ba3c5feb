// Package convert turns caller documents into google.firestore.v1 writes.
//
// The create path walks the document once, splitting it into a nested field
// tree of literal data and a flat, ordered list of field transforms, and
// emits the data write and transform write a create commit needs. Conversion
// is a pure function of its inputs and is safe for concurrent use.
package convert

import (
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/types"
)

// WritesForCreate converts data into the writes that create documentName.
//
// Returns types.ErrDeleteOnCreate if a delete sentinel appears anywhere, and
// an InvalidArgumentError "cannot nest <kind> under arrays" if a transform
// sentinel appears inside a sequence. Encoder errors for unsupported scalars
// are returned as-is. No writes are returned on error.
func WritesForCreate(documentName string, data types.Mapping) ([]*firestorepb.Write, error) {
	w := newWalker()
	if err := w.walkDocument(data); err != nil {
		return nil, err
	}
	return assemble(documentName, w.fields.tree(), len(data) == 0, w.transforms.list()), nil
}
