package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/go-cmp/cmp"
	"github.com/solatis/firewrite/internal/convert"
	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/core/db"
	"github.com/solatis/firewrite/internal/logging"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/testing/protocmp"
)

const testTenant = "tenant-a"

type harness struct {
	client firestorepb.FirestoreClient
	store  *db.Store
	cfg    *config.Config
}

// newHarness serves a CommitService over bufconn. Requests are attributed
// to tenant unless tenant is empty.
func newHarness(t *testing.T, tenant string) *harness {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.MigrateUp(ctx, database); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("LoadQueries failed: %v", err)
	}
	store := db.NewStore(database, queries)

	cfg := config.DefaultConfig()
	cfg.ProjectID = "p"
	cfg.MaxWritesPerCommit = 4

	svc, err := NewCommitService(store, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewCommitService failed: %v", err)
	}

	withTenant := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if tenant != "" {
			ctx = auth.ContextWithTenantID(ctx, tenant)
		}
		return handler(ctx, req)
	}

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(withTenant))
	firestorepb.RegisterFirestoreServer(server, svc)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &harness{client: firestorepb.NewFirestoreClient(conn), store: store, cfg: cfg}
}

func (h *harness) name(t *testing.T, docPath string) string {
	t.Helper()
	name, err := h.cfg.DocumentName(docPath)
	if err != nil {
		t.Fatalf("DocumentName(%q) failed: %v", docPath, err)
	}
	return name
}

func (h *harness) create(t *testing.T, name string, data types.Mapping) (*firestorepb.CommitResponse, error) {
	t.Helper()
	writes, err := convert.WritesForCreate(name, data)
	if err != nil {
		t.Fatalf("WritesForCreate failed: %v", err)
	}
	return h.client.Commit(context.Background(), &firestorepb.CommitRequest{
		Database: h.cfg.DatabaseName(),
		Writes:   writes,
	})
}

func iv(n int64) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: n}}
}

func sv(s string) *firestorepb.Value {
	return &firestorepb.Value{ValueType: &firestorepb.Value_StringValue{StringValue: s}}
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("code = %v, want %v (err: %v)", got, want, err)
	}
}

func TestCommit_CreateAndGet(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")

	resp, err := h.create(t, name, types.Doc(
		types.F("a", types.Scalar(1)),
		types.F("b", types.Map(types.F("c", types.Scalar("x")))),
		types.F("t", types.ServerTimestamp()),
	))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(resp.GetWriteResults()) != 2 {
		t.Fatalf("expected 2 write results, got %d", len(resp.GetWriteResults()))
	}
	transformResults := resp.GetWriteResults()[1].GetTransformResults()
	if len(transformResults) != 1 || !transformResults[0].GetTimestampValue().AsTime().Equal(resp.GetCommitTime().AsTime()) {
		t.Errorf("server timestamp result = %v, commit time %v", transformResults, resp.GetCommitTime())
	}

	doc, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: name})
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	wantFields := map[string]*firestorepb.Value{
		"a": iv(1),
		"b": {ValueType: &firestorepb.Value_MapValue{MapValue: &firestorepb.MapValue{
			Fields: map[string]*firestorepb.Value{"c": sv("x")},
		}}},
		"t": {ValueType: &firestorepb.Value_TimestampValue{TimestampValue: resp.GetCommitTime()}},
	}
	if diff := cmp.Diff(wantFields, doc.GetFields(), protocmp.Transform()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if !doc.GetCreateTime().AsTime().Equal(resp.GetCommitTime().AsTime()) {
		t.Errorf("create_time = %v, want %v", doc.GetCreateTime(), resp.GetCommitTime())
	}

	n, err := h.store.CountCommits(context.Background(), testTenant)
	if err != nil || n != 1 {
		t.Errorf("CountCommits = %d, %v; want 1", n, err)
	}
}

func TestCommit_CreateExisting(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")

	if _, err := h.create(t, name, types.Doc(types.F("a", types.Scalar(1)))); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := h.create(t, name, types.Doc(types.F("a", types.Scalar(2))))
	assertCode(t, err, codes.AlreadyExists)

	// Transform-only creates carry the precondition on the transform write.
	_, err = h.create(t, name, types.Doc(types.F("n", types.Increment(1))))
	assertCode(t, err, codes.AlreadyExists)
}

func TestCommit_TransformOnlyCreate(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/counter")

	resp, err := h.create(t, name, types.Doc(types.F("n", types.Increment(5))))
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(resp.GetWriteResults()) != 1 {
		t.Fatalf("expected 1 write result, got %d", len(resp.GetWriteResults()))
	}

	doc, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: name})
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if diff := cmp.Diff(iv(5), doc.GetFields()["n"], protocmp.Transform()); diff != "" {
		t.Errorf("n mismatch (-want +got):\n%s", diff)
	}
}

func TestCommit_EmptyCreate(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/empty")

	if _, err := h.create(t, name, types.Doc()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	doc, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: name})
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if len(doc.GetFields()) != 0 {
		t.Errorf("expected no fields, got %v", doc.GetFields())
	}
}

func TestCommit_Atomic(t *testing.T) {
	h := newHarness(t, testTenant)
	first := h.name(t, "C/first")
	existing := h.name(t, "C/existing")

	if _, err := h.create(t, existing, types.Doc(types.F("a", types.Scalar(1)))); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	good, _ := convert.WritesForCreate(first, types.Doc(types.F("a", types.Scalar(1))))
	bad, _ := convert.WritesForCreate(existing, types.Doc(types.F("a", types.Scalar(2))))
	_, err := h.client.Commit(context.Background(), &firestorepb.CommitRequest{
		Database: h.cfg.DatabaseName(),
		Writes:   append(good, bad...),
	})
	assertCode(t, err, codes.AlreadyExists)

	_, err = h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: first})
	assertCode(t, err, codes.NotFound)

	n, _ := h.store.CountCommits(context.Background(), testTenant)
	if n != 1 {
		t.Errorf("CountCommits = %d, want 1", n)
	}
}

func TestCommit_UpdateTimePrecondition(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")

	if _, err := h.create(t, name, types.Doc(types.F("a", types.Scalar(1)))); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	doc, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: name})
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}

	update := func(ut *firestorepb.Document) error {
		_, err := h.client.Commit(context.Background(), &firestorepb.CommitRequest{
			Database: h.cfg.DatabaseName(),
			Writes: []*firestorepb.Write{{
				Operation: &firestorepb.Write_Update{Update: &firestorepb.Document{
					Name:   name,
					Fields: map[string]*firestorepb.Value{"a": iv(2)},
				}},
				CurrentDocument: &firestorepb.Precondition{
					ConditionType: &firestorepb.Precondition_UpdateTime{UpdateTime: ut.GetUpdateTime()},
				},
			}},
		})
		return err
	}

	if err := update(doc); err != nil {
		t.Fatalf("update with fresh update_time failed: %v", err)
	}
	assertCode(t, update(doc), codes.FailedPrecondition)
}

func TestCommit_SameDocumentTwice(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")

	writes, _ := convert.WritesForCreate(name, types.Doc(types.F("a", types.Scalar(1))))
	writes = append(writes, &firestorepb.Write{
		Operation: &firestorepb.Write_Delete{Delete: name},
	})
	if _, err := h.client.Commit(context.Background(), &firestorepb.CommitRequest{
		Database: h.cfg.DatabaseName(),
		Writes:   writes,
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	_, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: name})
	assertCode(t, err, codes.NotFound)
}

func TestCommit_Delete(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")

	if _, err := h.create(t, name, types.Doc(types.F("a", types.Scalar(1)))); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := h.client.Commit(context.Background(), &firestorepb.CommitRequest{
		Database: h.cfg.DatabaseName(),
		Writes:   []*firestorepb.Write{{Operation: &firestorepb.Write_Delete{Delete: name}}},
	}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: name})
	assertCode(t, err, codes.NotFound)
}

func TestCommit_InvalidRequests(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")
	write := &firestorepb.Write{Operation: &firestorepb.Write_Delete{Delete: name}}

	tests := []struct {
		name string
		req  *firestorepb.CommitRequest
		want codes.Code
	}{
		{"wrong database", &firestorepb.CommitRequest{Database: "projects/other/databases/(default)"}, codes.InvalidArgument},
		{"too many writes", &firestorepb.CommitRequest{
			Database: h.cfg.DatabaseName(),
			Writes:   []*firestorepb.Write{write, write, write, write, write},
		}, codes.InvalidArgument},
		{"transaction", &firestorepb.CommitRequest{Database: h.cfg.DatabaseName(), Transaction: []byte("tx")}, codes.InvalidArgument},
		{"empty write", &firestorepb.CommitRequest{
			Database: h.cfg.DatabaseName(),
			Writes:   []*firestorepb.Write{{}},
		}, codes.InvalidArgument},
		{"foreign document", &firestorepb.CommitRequest{
			Database: h.cfg.DatabaseName(),
			Writes:   []*firestorepb.Write{{Operation: &firestorepb.Write_Delete{Delete: "projects/x/databases/(default)/documents/C/d"}}},
		}, codes.InvalidArgument},
		{"bad document name", &firestorepb.CommitRequest{
			Database: h.cfg.DatabaseName(),
			Writes:   []*firestorepb.Write{{Operation: &firestorepb.Write_Delete{Delete: "projects/p/databases/(default)/documents/C"}}},
		}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.Commit(context.Background(), tt.req)
			assertCode(t, err, tt.want)
		})
	}
}

func TestCommit_EmptyCommit(t *testing.T) {
	h := newHarness(t, testTenant)
	resp, err := h.client.Commit(context.Background(), &firestorepb.CommitRequest{Database: h.cfg.DatabaseName()})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if resp.GetCommitTime() == nil {
		t.Error("expected commit time")
	}
}

func TestGetDocument_Mask(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")

	if _, err := h.create(t, name, types.Doc(
		types.F("a", types.Scalar(1)),
		types.F("b", types.Scalar("x")),
	)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	doc, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{
		Name: name,
		Mask: &firestorepb.DocumentMask{FieldPaths: []string{"b"}},
	})
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if diff := cmp.Diff(map[string]*firestorepb.Value{"b": sv("x")}, doc.GetFields(), protocmp.Transform()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestGetDocument_Errors(t *testing.T) {
	h := newHarness(t, testTenant)

	_, err := h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: h.name(t, "C/missing")})
	assertCode(t, err, codes.NotFound)

	_, err = h.client.GetDocument(context.Background(), &firestorepb.GetDocumentRequest{Name: "not/a/document"})
	assertCode(t, err, codes.InvalidArgument)
}

func TestTenantIsolation(t *testing.T) {
	h := newHarness(t, testTenant)
	name := h.name(t, "C/d")
	if _, err := h.create(t, name, types.Doc(types.F("a", types.Scalar(1)))); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := h.store.GetDocument(context.Background(), "tenant-b", name); err == nil {
		t.Error("document visible to another tenant")
	}
}

func TestMissingTenant(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.client.Commit(context.Background(), &firestorepb.CommitRequest{Database: h.cfg.DatabaseName()})
	assertCode(t, err, codes.Internal)
}

func TestNewCommitService_NilDeps(t *testing.T) {
	if _, err := NewCommitService(nil, config.DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewCommitService(&db.Store{}, nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}
