package firestore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"firesync/internal/models"
)

const (
	ProductionBaseURL = "https://firestore.googleapis.com/"
	DefaultDatabaseID = "(default)"
	DefaultTimeout    = 30 * time.Second
)

// Transport is the document store operation set used by the sync core.
// Paths are slash separated collection/document paths relative to the
// database documents root, e.g. "taxonomies/category".
type Transport interface {
	// Name identifies the implementation ("native" or "rest").
	Name() string
	// Probe checks that the store is reachable and accepts our credentials.
	Probe(ctx context.Context) (bool, error)
	// Upsert creates the document or updates it. With merge only the fields
	// in doc are written; otherwise the document is replaced.
	Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error
	// Delete removes the document. A missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Get fetches a document. found is false when it does not exist.
	Get(ctx context.Context, path string) (doc *models.SyncDocument, found bool, err error)
	// ListCollections lists collection ids under a document path, or the
	// root collections when parent is empty.
	ListCollections(ctx context.Context, parent string) ([]string, error)
}

// Endpoint addresses one database of a project.
type Endpoint struct {
	BaseURL    string
	ProjectID  string
	DatabaseID string
}

// EmulatorBaseURL is the root URL of a local emulator.
func EmulatorBaseURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d/", host, port)
}

func (e Endpoint) base() string {
	base := e.BaseURL
	if base == "" {
		base = ProductionBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (e Endpoint) database() string {
	db := e.DatabaseID
	if db == "" {
		db = DefaultDatabaseID
	}
	return "projects/" + e.ProjectID + "/databases/" + db
}

// DocumentsRoot is the resource name of the documents root.
func (e Endpoint) DocumentsRoot() string {
	return e.database() + "/documents"
}

// DocumentName is the full resource name of a document path.
func (e Endpoint) DocumentName(path string) string {
	return e.DocumentsRoot() + "/" + path
}

// resourceURL is the escaped v1 REST URL of a resource name.
func (e Endpoint) resourceURL(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return e.base() + "v1/" + strings.Join(segments, "/")
}

// splitDocumentPath validates a document path and returns its parent
// document path (possibly empty), collection id and document id.
func splitDocumentPath(path string) (parent, collection, id string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", "", fmt.Errorf("%q is not a document path", path)
	}
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", "", "", fmt.Errorf("%q has an empty or relative segment", path)
		}
	}
	n := len(segments)
	return strings.Join(segments[:n-2], "/"), segments[n-2], segments[n-1], nil
}

func cleanDocumentPath(op, path string) (string, error) {
	if _, _, _, err := splitDocumentPath(path); err != nil {
		return "", newError(KindInvalidArgument, op, path, err)
	}
	return strings.Trim(path, "/"), nil
}

// fieldPath quotes a top-level field name for an update mask when it is not
// a simple identifier.
func fieldPath(name string) string {
	simple := name != ""
	for i, r := range name {
		isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !(isDigit && i > 0) {
			simple = false
			break
		}
	}
	if simple {
		return name
	}
	escaped := strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(name)
	return "`" + escaped + "`"
}

func fieldPaths(doc *models.SyncDocument) []string {
	keys := doc.Keys()
	paths := make([]string, len(keys))
	for i, k := range keys {
		paths[i] = fieldPath(k)
	}
	return paths
}
