// Package api provides the gRPC Firestore service backed by the document store.
package api

import (
	"fmt"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/core/db"
	"github.com/solatis/firewrite/internal/logging"
)

// CommitService implements the Commit and GetDocument RPCs of the
// google.firestore.v1.Firestore service. Other RPCs return Unimplemented.
// Thin orchestration layer delegating to apply and db packages.
type CommitService struct {
	firestorepb.UnimplementedFirestoreServer
	store  *db.Store
	cfg    *config.Config
	logger *logging.Logger
}

// NewCommitService creates service instance with dependencies.
func NewCommitService(store *db.Store, cfg *config.Config, logger *logging.Logger) (*CommitService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &CommitService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}, nil
}
