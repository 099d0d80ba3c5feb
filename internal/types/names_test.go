package types

import (
	"errors"
	"testing"
)

func TestDatabaseName(t *testing.T) {
	if got := DatabaseName("p", ""); got != "projects/p/databases/(default)" {
		t.Errorf("DatabaseName(p, \"\") = %q", got)
	}
	if got := DatabaseName("p", "db2"); got != "projects/p/databases/db2" {
		t.Errorf("DatabaseName(p, db2) = %q", got)
	}
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		name     string
		database string
		docPath  string
		want     string
		wantErr  bool
	}{
		{name: "relative", docPath: "C/d", want: "projects/p/databases/(default)/documents/C/d"},
		{name: "nested", database: "db", docPath: "C/d/sub/e", want: "projects/p/databases/db/documents/C/d/sub/e"},
		{name: "slashes trimmed", docPath: "/C/d/", want: "projects/p/databases/(default)/documents/C/d"},
		{
			name:    "fully qualified passthrough",
			docPath: "projects/other/databases/(default)/documents/C/d",
			want:    "projects/other/databases/(default)/documents/C/d",
		},
		{name: "collection only", docPath: "C", wantErr: true},
		{name: "odd segments", docPath: "C/d/sub", wantErr: true},
		{name: "empty", docPath: "", wantErr: true},
		{name: "empty segment", docPath: "C//d/e", wantErr: true},
		{name: "qualified collection", docPath: "projects/p/databases/(default)/documents/C", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentName("p", tt.database, tt.docPath)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDocumentPath) {
					t.Fatalf("DocumentName() error = %v, want ErrInvalidDocumentPath", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DocumentName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DocumentName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitDocumentName(t *testing.T) {
	db, err := SplitDocumentName("projects/p/databases/(default)/documents/C/d")
	if err != nil {
		t.Fatalf("SplitDocumentName() error = %v", err)
	}
	if db != "projects/p/databases/(default)" {
		t.Errorf("database = %q", db)
	}

	for _, bad := range []string{
		"C/d",
		"projects/p/documents/C/d",
		"projects//databases/x/documents/C/d",
		"projects/p/databases/x/documents/C",
	} {
		if _, err := SplitDocumentName(bad); !errors.Is(err, ErrInvalidDocumentPath) {
			t.Errorf("SplitDocumentName(%q) error = %v, want ErrInvalidDocumentPath", bad, err)
		}
	}
}
