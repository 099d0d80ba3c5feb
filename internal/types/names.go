package types

import (
	"fmt"
	"strings"
)

// DefaultDatabase is the database ID used when none is configured.
const DefaultDatabase = "(default)"

// DatabaseName renders projects/{project}/databases/{database}.
func DatabaseName(project, database string) string {
	if database == "" {
		database = DefaultDatabase
	}
	return fmt.Sprintf("projects/%s/databases/%s", project, database)
}

// DocumentName renders the full resource name of a document.
// docPath is relative to the database root ("users/alice", "C/d/sub/e") and
// must name a document: an even, non-zero number of non-empty segments.
// Already-qualified names are validated and returned unchanged.
func DocumentName(project, database, docPath string) (string, error) {
	if strings.HasPrefix(docPath, "projects/") {
		if _, err := SplitDocumentName(docPath); err != nil {
			return "", err
		}
		return docPath, nil
	}
	if err := validateDocPath(docPath); err != nil {
		return "", err
	}
	return DatabaseName(project, database) + "/documents/" + strings.Trim(docPath, "/"), nil
}

// SplitDocumentName returns the database name part of a full document name.
func SplitDocumentName(name string) (database string, err error) {
	idx := strings.Index(name, "/documents/")
	if idx < 0 || !strings.HasPrefix(name, "projects/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentPath, name)
	}
	database = name[:idx]
	if parts := strings.Split(database, "/"); len(parts) != 4 || parts[2] != "databases" || parts[1] == "" || parts[3] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentPath, name)
	}
	if err := validateDocPath(name[idx+len("/documents/"):]); err != nil {
		return "", err
	}
	return database, nil
}

func validateDocPath(docPath string) error {
	trimmed := strings.Trim(docPath, "/")
	if trimmed == "" {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentPath, docPath)
	}
	segments := strings.Split(trimmed, "/")
	if len(segments)%2 != 0 {
		return fmt.Errorf("%w: %q has %d segments, documents need an even number", ErrInvalidDocumentPath, docPath, len(segments))
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidDocumentPath, docPath)
		}
	}
	return nil
}
