package api

import (
	"context"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/apply"
	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GetDocument returns the stored document, projected onto req.Mask when set.
// Read-time and transactional reads are not supported.
func (s *CommitService) GetDocument(ctx context.Context, req *firestorepb.GetDocumentRequest) (*firestorepb.Document, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, status.Error(codes.Internal, "missing tenant_id in context")
	}
	if req.GetConsistencySelector() != nil {
		return nil, status.Error(codes.InvalidArgument, "consistency selectors are not supported")
	}

	database, err := types.SplitDocumentName(req.GetName())
	if err != nil {
		return nil, statusError(err)
	}
	if err := s.checkDatabase(database); err != nil {
		return nil, err
	}

	doc, err := s.store.GetDocument(ctx, tenantID, req.GetName())
	if err != nil {
		return nil, statusError(err)
	}

	if mask := req.GetMask(); mask != nil {
		doc, err = apply.Project(doc, mask.GetFieldPaths())
		if err != nil {
			return nil, statusError(err)
		}
	}
	return doc, nil
}
