package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/firewrite/internal/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ErrStore wraps every storage failure so callers can tell them apart from
// precondition and validation errors.
var ErrStore = errors.New("storage error")

// documentRow mirrors the documents table. Fields holds a serialized
// firestorepb.MapValue.
type documentRow struct {
	Name         string    `db:"name"`
	DatabaseName string    `db:"database_name"`
	Fields       []byte    `db:"fields"`
	CreateTime   time.Time `db:"create_time"`
	UpdateTime   time.Time `db:"update_time"`
}

// CommitRecord is one journaled commit.
type CommitRecord struct {
	ID           types.CommitID
	TenantID     string
	DatabaseName string
	WriteCount   int
	CommitTime   time.Time
}

// Store persists documents per tenant.
type Store struct {
	db      *sqlx.DB
	queries *Queries
}

// NewStore creates a document store over db.
func NewStore(db *sqlx.DB, queries *Queries) *Store {
	return &Store{db: db, queries: queries}
}

// GetDocument loads a stored document. Returns types.ErrDocumentNotFound
// when absent.
func (s *Store) GetDocument(ctx context.Context, tenantID, name string) (*firestorepb.Document, error) {
	return getDocument(ctx, s.queries, tenantID, name)
}

// RunInTx runs fn in a single database transaction, committing when fn
// returns nil and rolling back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStore, err)
	}

	if err := fn(&Tx{queries: s.queries.WithTx(sqlTx)}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return nil
}

// CountCommits returns the number of journaled commits for a tenant.
func (s *Store) CountCommits(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := s.queries.GetContext(ctx, "count-commits", &n, tenantID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return n, nil
}

// Tx is the transactional view used while applying one commit.
type Tx struct {
	queries *Queries
}

// GetDocument loads a document inside the transaction.
func (tx *Tx) GetDocument(ctx context.Context, tenantID, name string) (*firestorepb.Document, error) {
	return getDocument(ctx, tx.queries, tenantID, name)
}

// PutDocument inserts doc, or updates it when existed is true.
func (tx *Tx) PutDocument(ctx context.Context, tenantID string, doc *firestorepb.Document, existed bool) error {
	fields, err := proto.Marshal(&firestorepb.MapValue{Fields: doc.GetFields()})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStore, doc.GetName(), err)
	}

	if existed {
		_, err = tx.queries.ExecContext(ctx, "update-document",
			fields, doc.GetUpdateTime().AsTime(), tenantID, doc.GetName())
	} else {
		database, nameErr := types.SplitDocumentName(doc.GetName())
		if nameErr != nil {
			return nameErr
		}
		_, err = tx.queries.ExecContext(ctx, "insert-document",
			tenantID, doc.GetName(), database, fields,
			doc.GetCreateTime().AsTime(), doc.GetUpdateTime().AsTime())
	}
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStore, doc.GetName(), err)
	}
	return nil
}

// DeleteDocument removes a document if present.
func (tx *Tx) DeleteDocument(ctx context.Context, tenantID, name string) error {
	if _, err := tx.queries.ExecContext(ctx, "delete-document", tenantID, name); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStore, name, err)
	}
	return nil
}

// InsertCommit journals a commit.
func (tx *Tx) InsertCommit(ctx context.Context, rec CommitRecord) error {
	_, err := tx.queries.ExecContext(ctx, "insert-commit",
		string(rec.ID), rec.TenantID, rec.DatabaseName, rec.WriteCount, rec.CommitTime)
	if err != nil {
		return fmt.Errorf("%w: journal commit %s: %v", ErrStore, rec.ID, err)
	}
	return nil
}

func getDocument(ctx context.Context, q *Queries, tenantID, name string) (*firestorepb.Document, error) {
	var row documentRow
	err := q.GetContext(ctx, "get-document", &row, tenantID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStore, name, err)
	}

	var fields firestorepb.MapValue
	if err := proto.Unmarshal(row.Fields, &fields); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStore, name, err)
	}

	return &firestorepb.Document{
		Name:       row.Name,
		Fields:     fields.GetFields(),
		CreateTime: timestamppb.New(row.CreateTime),
		UpdateTime: timestamppb.New(row.UpdateTime),
	}, nil
}
