package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/apply"
	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/core/db"
	"github.com/solatis/firewrite/internal/metrics"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// docState tracks one document across the writes of a commit.
type docState struct {
	doc    *firestorepb.Document
	stored bool // present in the store before the commit
}

// Commit applies all writes atomically: either every write succeeds and the
// resulting documents are persisted, or nothing changes.
func (s *CommitService) Commit(ctx context.Context, req *firestorepb.CommitRequest) (*firestorepb.CommitResponse, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, status.Error(codes.Internal, "missing tenant_id in context")
	}

	if err := s.checkDatabase(req.GetDatabase()); err != nil {
		return nil, err
	}
	if len(req.GetTransaction()) > 0 {
		return nil, status.Error(codes.InvalidArgument, "transactions are not supported")
	}
	if len(req.GetWrites()) > s.cfg.MaxWritesPerCommit {
		return nil, status.Error(codes.InvalidArgument,
			fmt.Sprintf("commit exceeds maximum of %d writes", s.cfg.MaxWritesPerCommit))
	}

	start := time.Now()
	// Stored timestamps are microsecond precision; truncating keeps
	// update_time preconditions comparable after a round trip.
	now := start.UTC().Truncate(time.Microsecond)

	kinds := make([]string, len(req.GetWrites()))
	results := make([]*firestorepb.WriteResult, len(req.GetWrites()))
	commitID := types.NewCommitID()

	err := s.store.RunInTx(ctx, func(tx *db.Tx) error {
		states := make(map[string]*docState)
		var order []string

		for i, w := range req.GetWrites() {
			kinds[i] = apply.Kind(w)

			name, err := apply.TargetName(w)
			if err != nil {
				return fmt.Errorf("write %d: %w", i, err)
			}
			if database, _ := types.SplitDocumentName(name); database != req.GetDatabase() {
				return status.Errorf(codes.InvalidArgument,
					"write %d: document %q is not in database %q", i, name, req.GetDatabase())
			}

			st, ok := states[name]
			if !ok {
				current, err := tx.GetDocument(ctx, tenantID, name)
				if err != nil && !errors.Is(err, types.ErrDocumentNotFound) {
					return err
				}
				st = &docState{doc: current, stored: current != nil}
				states[name] = st
				order = append(order, name)
			}

			res, err := apply.Apply(st.doc, w, now)
			if err != nil {
				return fmt.Errorf("write %d to %s: %w", i, name, err)
			}
			st.doc = res.Document

			results[i] = &firestorepb.WriteResult{
				UpdateTime:       timestamppb.New(now),
				TransformResults: res.TransformResults,
			}
		}

		for _, name := range order {
			st := states[name]
			switch {
			case st.doc != nil:
				if err := tx.PutDocument(ctx, tenantID, st.doc, st.stored); err != nil {
					return err
				}
			case st.stored:
				if err := tx.DeleteDocument(ctx, tenantID, name); err != nil {
					return err
				}
			}
		}

		return tx.InsertCommit(ctx, db.CommitRecord{
			ID:           commitID,
			TenantID:     tenantID,
			DatabaseName: req.GetDatabase(),
			WriteCount:   len(req.GetWrites()),
			CommitTime:   now,
		})
	})

	metrics.ObserveCommit(time.Since(start).Seconds(), kinds, err)
	log := s.logger.WithContext(ctx)
	if err != nil {
		log.Warn("commit rejected", "writes", len(kinds), "error", err)
		return nil, statusError(err)
	}
	log.Info("commit applied", "commit_id", string(commitID), "writes", len(kinds))

	return &firestorepb.CommitResponse{
		WriteResults: results,
		CommitTime:   timestamppb.New(now),
	}, nil
}

// checkDatabase rejects requests for databases this server does not host.
func (s *CommitService) checkDatabase(database string) error {
	if database != s.cfg.DatabaseName() {
		return status.Errorf(codes.InvalidArgument, "database %q is not served (want %q)", database, s.cfg.DatabaseName())
	}
	return nil
}
