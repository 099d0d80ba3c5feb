// internal/convert/assemble.go
package convert

import (
	"cloud.google.com/go/firestore/apiv1/firestorepb"
)

// assemble emits the ordered writes for one create call.
//
//  1. A data write when any plain field survived or the input had no fields
//     at all; it carries exists:false.
//  2. A transform write when any transform was collected; it carries
//     exists:false only when it is the sole write, since otherwise the data
//     write already gates the batch.
//
// A non-empty input whose leaves all became transforms emits no data write.
func assemble(name string, fields map[string]*firestorepb.Value, inputWasEmpty bool, transforms []*firestorepb.DocumentTransform_FieldTransform) []*firestorepb.Write {
	var writes []*firestorepb.Write

	if len(fields) > 0 || inputWasEmpty {
		doc := &firestorepb.Document{Name: name}
		if len(fields) > 0 {
			doc.Fields = fields
		}
		writes = append(writes, &firestorepb.Write{
			Operation:       &firestorepb.Write_Update{Update: doc},
			CurrentDocument: mustNotExist(),
		})
	}

	if len(transforms) > 0 {
		w := &firestorepb.Write{
			Operation: &firestorepb.Write_Transform{
				Transform: &firestorepb.DocumentTransform{
					Document:        name,
					FieldTransforms: transforms,
				},
			},
		}
		if len(writes) == 0 {
			w.CurrentDocument = mustNotExist()
		}
		writes = append(writes, w)
	}

	return writes
}

func mustNotExist() *firestorepb.Precondition {
	return &firestorepb.Precondition{
		ConditionType: &firestorepb.Precondition_Exists{Exists: false},
	}
}
