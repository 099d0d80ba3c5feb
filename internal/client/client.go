// Package client is a thin Firestore client that builds create writes
// locally and commits them to a firewrite server or any Firestore endpoint.
package client

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/convert"
	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/metrics"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client commits documents over gRPC.
type Client struct {
	conn   *grpc.ClientConn
	fs     firestorepb.FirestoreClient
	cfg    *config.Config
	apiKey string
}

// New connects to cfg.ClientAddress. Extra dial options are appended after
// the defaults, so callers can override transport credentials or dialers.
func New(cfg *config.Config, apiKey string, opts ...grpc.DialOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(cfg.ClientAddress, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.ClientAddress, err)
	}

	return &Client{
		conn:   conn,
		fs:     firestorepb.NewFirestoreClient(conn),
		cfg:    cfg,
		apiKey: apiKey,
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// WritesForCreate resolves docPath against the configured database and
// converts data into the writes that create it. No RPC is made.
func (c *Client) WritesForCreate(docPath string, data types.Mapping) ([]*firestorepb.Write, error) {
	name, err := c.cfg.DocumentName(docPath)
	if err != nil {
		return nil, err
	}
	writes, err := convert.WritesForCreate(name, data)
	metrics.ObserveConversion(err)
	return writes, err
}

// Create creates the document at docPath. It fails with ALREADY_EXISTS if
// the document is present.
func (c *Client) Create(ctx context.Context, docPath string, data types.Mapping) (*firestorepb.CommitResponse, error) {
	writes, err := c.WritesForCreate(docPath, data)
	if err != nil {
		return nil, err
	}
	return c.Commit(ctx, writes)
}

// Commit sends writes as one atomic commit.
func (c *Client) Commit(ctx context.Context, writes []*firestorepb.Write) (*firestorepb.CommitResponse, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	return c.fs.Commit(ctx, &firestorepb.CommitRequest{
		Database: c.cfg.DatabaseName(),
		Writes:   writes,
	})
}

// Get reads the document at docPath. When fieldPaths is non-empty only
// those fields are returned.
func (c *Client) Get(ctx context.Context, docPath string, fieldPaths ...string) (*firestorepb.Document, error) {
	name, err := c.cfg.DocumentName(docPath)
	if err != nil {
		return nil, err
	}

	req := &firestorepb.GetDocumentRequest{Name: name}
	if len(fieldPaths) > 0 {
		req.Mask = &firestorepb.DocumentMask{FieldPaths: fieldPaths}
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.fs.GetDocument(ctx, req)
}

// callContext attaches the API key and the configured per-call timeout.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.APIKeyHeader, c.apiKey)
	}
	if c.cfg.ClientTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.ClientTimeout)
	}
	return context.WithCancel(ctx)
}
