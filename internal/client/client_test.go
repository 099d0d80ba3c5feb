package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/go-cmp/cmp"
	"github.com/solatis/firewrite/internal/convert"
	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/testing/protocmp"
)

// recorder captures what reaches the server.
type recorder struct {
	firestorepb.UnimplementedFirestoreServer
	commits []*firestorepb.CommitRequest
	gets    []*firestorepb.GetDocumentRequest
	keys    []string
}

func (r *recorder) record(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	r.keys = append(r.keys, md.Get(auth.APIKeyHeader)...)
}

func (r *recorder) Commit(ctx context.Context, req *firestorepb.CommitRequest) (*firestorepb.CommitResponse, error) {
	r.record(ctx)
	r.commits = append(r.commits, req)
	return &firestorepb.CommitResponse{}, nil
}

func (r *recorder) GetDocument(ctx context.Context, req *firestorepb.GetDocumentRequest) (*firestorepb.Document, error) {
	r.record(ctx)
	r.gets = append(r.gets, req)
	return &firestorepb.Document{Name: req.GetName()}, nil
}

func newTestClient(t *testing.T, apiKey string) (*Client, *recorder) {
	t.Helper()

	rec := &recorder{}
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	firestorepb.RegisterFirestoreServer(server, rec)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	cfg := config.DefaultConfig()
	cfg.ProjectID = "p"
	cfg.ClientAddress = "passthrough:///bufnet"

	c, err := New(cfg, apiKey, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, rec
}

func TestCreate(t *testing.T) {
	c, rec := newTestClient(t, "fw-key")
	data := types.Doc(
		types.F("a", types.Scalar(1)),
		types.F("t", types.ServerTimestamp()),
	)

	if _, err := c.Create(context.Background(), "C/d", data); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(rec.commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(rec.commits))
	}

	name := "projects/p/databases/(default)/documents/C/d"
	want, err := convert.WritesForCreate(name, data)
	if err != nil {
		t.Fatalf("WritesForCreate failed: %v", err)
	}
	got := rec.commits[0]
	if got.GetDatabase() != "projects/p/databases/(default)" {
		t.Errorf("database = %q", got.GetDatabase())
	}
	if diff := cmp.Diff(want, got.GetWrites(), protocmp.Transform()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if len(rec.keys) != 1 || rec.keys[0] != "fw-key" {
		t.Errorf("api keys seen = %v", rec.keys)
	}
}

func TestCreate_ConversionErrorsStayLocal(t *testing.T) {
	c, rec := newTestClient(t, "")

	_, err := c.Create(context.Background(), "C/d", types.Doc(types.F("a", types.Delete())))
	if !errors.Is(err, types.ErrDeleteOnCreate) {
		t.Errorf("expected ErrDeleteOnCreate, got %v", err)
	}

	_, err = c.Create(context.Background(), "C", types.Doc())
	if !errors.Is(err, types.ErrInvalidDocumentPath) {
		t.Errorf("expected ErrInvalidDocumentPath, got %v", err)
	}

	if len(rec.commits) != 0 {
		t.Errorf("expected no RPCs, got %d", len(rec.commits))
	}
}

func TestGet(t *testing.T) {
	c, rec := newTestClient(t, "")

	doc, err := c.Get(context.Background(), "C/d", "a", "b.c")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.GetName() != "projects/p/databases/(default)/documents/C/d" {
		t.Errorf("name = %q", doc.GetName())
	}
	if len(rec.gets) != 1 {
		t.Fatalf("expected 1 get, got %d", len(rec.gets))
	}
	if diff := cmp.Diff([]string{"a", "b.c"}, rec.gets[0].GetMask().GetFieldPaths()); diff != "" {
		t.Errorf("mask mismatch (-want +got):\n%s", diff)
	}
	if len(rec.keys) != 0 {
		t.Errorf("expected no api key header, got %v", rec.keys)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, ""); err == nil {
		t.Error("expected error for nil config")
	}
}
