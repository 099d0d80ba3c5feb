// Package apply executes google.firestore.v1 writes against stored documents.
//
// Apply is pure: it takes the current stored state of one document and a
// write, and returns the new state plus transform results. Persistence and
// atomicity across writes are the caller's concern.
package apply

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/fieldpath"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ErrUpdateTimeMismatch indicates an update_time precondition that did not hold.
var ErrUpdateTimeMismatch = errors.New("document update time does not match precondition")

// Write kinds, as reported by Kind.
const (
	KindUpdate    = "update"
	KindDelete    = "delete"
	KindTransform = "transform"
)

// Result is the outcome of applying one write.
type Result struct {
	// Document is the new stored state; nil when the write deleted it or
	// the target never existed.
	Document *firestorepb.Document

	// TransformResults holds one value per field transform, in order.
	TransformResults []*firestorepb.Value
}

// Kind classifies w for logging and metrics.
func Kind(w *firestorepb.Write) string {
	switch w.GetOperation().(type) {
	case *firestorepb.Write_Update:
		return KindUpdate
	case *firestorepb.Write_Delete:
		return KindDelete
	case *firestorepb.Write_Transform:
		return KindTransform
	default:
		return "unknown"
	}
}

// TargetName returns the full document name a write operates on.
func TargetName(w *firestorepb.Write) (string, error) {
	var name string
	switch op := w.GetOperation().(type) {
	case *firestorepb.Write_Update:
		name = op.Update.GetName()
	case *firestorepb.Write_Delete:
		name = op.Delete
	case *firestorepb.Write_Transform:
		name = op.Transform.GetDocument()
	default:
		return "", types.ErrEmptyWrite
	}
	if _, err := types.SplitDocumentName(name); err != nil {
		return "", err
	}
	return name, nil
}

// Apply applies w to current (nil when the document does not exist) at time now.
func Apply(current *firestorepb.Document, w *firestorepb.Write, now time.Time) (Result, error) {
	if err := checkPrecondition(current, w.GetCurrentDocument()); err != nil {
		return Result{}, err
	}

	ts := timestamppb.New(now)

	switch op := w.GetOperation().(type) {
	case *firestorepb.Write_Update:
		doc, err := update(current, op.Update, w.GetUpdateMask(), ts)
		if err != nil {
			return Result{}, err
		}
		results, err := transformFields(doc, w.GetUpdateTransforms(), ts)
		if err != nil {
			return Result{}, err
		}
		return Result{Document: doc, TransformResults: results}, nil

	case *firestorepb.Write_Delete:
		return Result{}, nil

	case *firestorepb.Write_Transform:
		doc := cloneOrNew(current, op.Transform.GetDocument(), ts)
		results, err := transformFields(doc, op.Transform.GetFieldTransforms(), ts)
		if err != nil {
			return Result{}, err
		}
		return Result{Document: doc, TransformResults: results}, nil

	default:
		return Result{}, types.ErrEmptyWrite
	}
}

func checkPrecondition(current *firestorepb.Document, pre *firestorepb.Precondition) error {
	switch c := pre.GetConditionType().(type) {
	case *firestorepb.Precondition_Exists:
		if c.Exists && current == nil {
			return types.ErrDocumentNotFound
		}
		if !c.Exists && current != nil {
			return types.ErrDocumentExists
		}
	case *firestorepb.Precondition_UpdateTime:
		if current == nil {
			return types.ErrDocumentNotFound
		}
		if !proto.Equal(current.GetUpdateTime(), c.UpdateTime) {
			return ErrUpdateTimeMismatch
		}
	}
	return nil
}

// update replaces every field, or only the masked ones when a mask is given.
// Create time survives replacement.
func update(current, in *firestorepb.Document, mask *firestorepb.DocumentMask, ts *timestamppb.Timestamp) (*firestorepb.Document, error) {
	doc := cloneOrNew(current, in.GetName(), ts)
	doc.UpdateTime = ts

	if mask == nil {
		doc.Fields = cloneFields(in.GetFields())
		return doc, nil
	}

	for _, raw := range mask.GetFieldPaths() {
		path, err := fieldpath.Parse(raw)
		if err != nil {
			return nil, err
		}
		if v := getField(in.GetFields(), path); v != nil {
			setField(doc, path, proto.Clone(v).(*firestorepb.Value))
		} else {
			deleteField(doc.GetFields(), path)
		}
	}
	return doc, nil
}

func cloneOrNew(current *firestorepb.Document, name string, ts *timestamppb.Timestamp) *firestorepb.Document {
	if current != nil {
		doc := proto.Clone(current).(*firestorepb.Document)
		doc.UpdateTime = ts
		return doc
	}
	return &firestorepb.Document{
		Name:       name,
		Fields:     map[string]*firestorepb.Value{},
		CreateTime: ts,
		UpdateTime: ts,
	}
}

func cloneFields(fields map[string]*firestorepb.Value) map[string]*firestorepb.Value {
	out := make(map[string]*firestorepb.Value, len(fields))
	for k, v := range fields {
		out[k] = proto.Clone(v).(*firestorepb.Value)
	}
	return out
}

func transformFields(doc *firestorepb.Document, fts []*firestorepb.DocumentTransform_FieldTransform, ts *timestamppb.Timestamp) ([]*firestorepb.Value, error) {
	results := make([]*firestorepb.Value, 0, len(fts))
	for _, ft := range fts {
		path, err := fieldpath.Parse(ft.GetFieldPath())
		if err != nil {
			return nil, err
		}
		next, result, err := transformValue(getField(doc.GetFields(), path), ft, ts)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", ft.GetFieldPath(), err)
		}
		setField(doc, path, next)
		results = append(results, result)
	}
	return results, nil
}
