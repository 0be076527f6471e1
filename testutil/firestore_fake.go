package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// RecordedRequest is one call received by FakeFirestore.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         map[string][]string
	Authorization string
	Body          string
}

type failure struct {
	status    int
	remaining int
}

// FakeFirestore is an in-memory stand-in for the document REST API. It
// understands get, create (POST with documentId), patch with
// updateMask.fieldPaths, put, delete and listCollectionIds. Documents are
// keyed by path relative to the documents root.
type FakeFirestore struct {
	Server *httptest.Server

	mu          sync.Mutex
	docs        map[string]map[string]json.RawMessage
	requests    []RecordedRequest
	failures    map[string]*failure
	validTokens map[string]bool
	requireAuth bool
	rejectPatch bool
}

func NewFakeFirestore(t testing.TB) *FakeFirestore {
	f := &FakeFirestore{
		docs:        map[string]map[string]json.RawMessage{},
		failures:    map[string]*failure{},
		validTokens: map[string]bool{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the root URL to configure as the transport base URL.
func (f *FakeFirestore) URL() string {
	return f.Server.URL + "/"
}

// RequireBearer makes every request without one of the given tokens fail with 401.
func (f *FakeFirestore) RequireBearer(tokens ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requireAuth = true
	for _, tok := range tokens {
		f.validTokens[tok] = true
	}
}

// RejectPatch answers every PATCH with 405 so clients must fall back to PUT.
func (f *FakeFirestore) RejectPatch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectPatch = true
}

// FailNext makes the next count requests with the given method fail with status.
func (f *FakeFirestore) FailNext(method string, status, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = &failure{status: status, remaining: count}
}

// Put stores raw wire fields at path, bypassing HTTP.
func (f *FakeFirestore) Put(path string, fields map[string]json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = fields
}

// Document returns the wire fields stored at path.
func (f *FakeFirestore) Document(path string) (map[string]json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[path]
	if !ok {
		return nil, false
	}
	out := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true
}

// Paths lists stored document paths in order.
func (f *FakeFirestore) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.docs))
	for p := range f.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (f *FakeFirestore) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// CountRequests counts received requests with the given method.
func (f *FakeFirestore) CountRequests(method string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (f *FakeFirestore) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
		Body:          string(body),
	})

	if f.requireAuth {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !f.validTokens[token] {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Request had invalid authentication credentials.")
			return
		}
	}

	if fail, ok := f.failures[r.Method]; ok && fail.remaining > 0 {
		fail.remaining--
		writeError(w, fail.status, "INJECTED", "injected failure")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/")
	root, rel, ok := splitDocumentsRoot(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "not a documents resource: "+name)
		return
	}

	if strings.HasSuffix(rel, ":listCollectionIds") || strings.HasSuffix(root, ":listCollectionIds") {
		parent := strings.TrimSuffix(rel, ":listCollectionIds")
		f.listCollectionIDs(w, parent, body)
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, exists := f.docs[rel]
		if !exists {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No document to get. Document name: "+name)
			return
		}
		writeDocument(w, name, doc)
	case http.MethodPost:
		id := r.URL.Query().Get("documentId")
		path := rel + "/" + id
		if _, exists := f.docs[path]; exists {
			writeError(w, http.StatusConflict, "ALREADY_EXISTS", "Document already exists: "+path)
			return
		}
		fields, err := decodeFields(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}
		f.docs[path] = fields
		writeDocument(w, root+"/"+path, fields)
	case http.MethodPatch, http.MethodPut:
		if r.Method == http.MethodPatch && f.rejectPatch {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "PATCH not allowed")
			return
		}
		fields, err := decodeFields(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}
		mask := r.URL.Query()["updateMask.fieldPaths"]
		if len(mask) == 0 {
			f.docs[rel] = fields
		} else {
			existing := f.docs[rel]
			if existing == nil {
				existing = map[string]json.RawMessage{}
			}
			for _, fp := range mask {
				key := unquoteFieldPath(fp)
				if v, ok := fields[key]; ok {
					existing[key] = v
				} else {
					delete(existing, key)
				}
			}
			f.docs[rel] = existing
		}
		writeDocument(w, name, f.docs[rel])
	case http.MethodDelete:
		delete(f.docs, rel)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method)
	}
}

func (f *FakeFirestore) listCollectionIDs(w http.ResponseWriter, parent string, body []byte) {
	var req struct {
		PageSize int `json:"pageSize"`
	}
	_ = json.Unmarshal(body, &req)

	depth := 0
	if parent != "" {
		depth = len(strings.Split(parent, "/"))
	}
	seen := map[string]bool{}
	for path := range f.docs {
		if parent != "" && !strings.HasPrefix(path, parent+"/") {
			continue
		}
		segments := strings.Split(path, "/")
		if len(segments) > depth {
			seen[segments[depth]] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if req.PageSize > 0 && len(ids) > req.PageSize {
		ids = ids[:req.PageSize]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"collectionIds": ids})
}

// splitDocumentsRoot splits "projects/p/databases/d/documents/a/b" into the
// documents root and "a/b".
func splitDocumentsRoot(name string) (root, rel string, ok bool) {
	idx := strings.Index(name, "/documents")
	if !strings.HasPrefix(name, "projects/") || idx < 0 {
		return "", "", false
	}
	root = name[:idx+len("/documents")]
	rest := name[idx+len("/documents"):]
	if strings.HasPrefix(rest, ":") {
		return root + rest, "", true
	}
	return root, strings.TrimPrefix(rest, "/"), true
}

func unquoteFieldPath(fp string) string {
	if len(fp) >= 2 && strings.HasPrefix(fp, "`") && strings.HasSuffix(fp, "`") {
		inner := fp[1 : len(fp)-1]
		return strings.NewReplacer("\\`", "`", "\\\\", "\\").Replace(inner)
	}
	return fp
}

func decodeFields(body []byte) (map[string]json.RawMessage, error) {
	var doc struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if len(body) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Fields == nil {
		doc.Fields = map[string]json.RawMessage{}
	}
	return doc.Fields, nil
}

func writeDocument(w http.ResponseWriter, name string, fields map[string]json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":       name,
		"fields":     fields,
		"createTime": "2024-01-01T00:00:00Z",
		"updateTime": "2024-01-01T00:00:00Z",
	})
}

func writeError(w http.ResponseWriter, code int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "status": status, "message": message},
	})
}
