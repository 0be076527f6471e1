package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeTerm is a term served by FakeWordPress.
type FakeTerm struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	Parent      int64          `json:"parent"`
	Count       int64          `json:"count"`
	Meta        map[string]any `json:"meta"`
	// Posts lists the ids of posts the term is attached to.
	Posts []int64 `json:"-"`
}

// FakePost is a content item served by FakeWordPress.
type FakePost struct {
	ID            int64
	Title         string
	Content       string
	Slug          string
	Status        string
	FeaturedMedia int64
	Meta          map[string]any
	ACF           map[string]any
}

type FakeMedia struct {
	ID     int64
	URL    string
	Width  int64
	Height int64
}

// FakeWordPress serves the subset of wp-json/wp/v2 the content client reads.
type FakeWordPress struct {
	Server *httptest.Server

	mu         sync.Mutex
	taxonomies map[string][]string
	types      map[string][]string
	terms      map[string][]FakeTerm
	posts      map[string][]FakePost
	media      map[int64]FakeMedia
	acf        bool
	failures   map[string]*failure
	requests   []string
}

func NewFakeWordPress(t testing.TB) *FakeWordPress {
	f := &FakeWordPress{
		taxonomies: map[string][]string{},
		types:      map[string][]string{},
		terms:      map[string][]FakeTerm{},
		posts:      map[string][]FakePost{},
		media:      map[int64]FakeMedia{},
		failures:   map[string]*failure{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeWordPress) URL() string {
	return f.Server.URL + "/"
}

// AddTaxonomy registers a taxonomy whose REST base equals its slug.
func (f *FakeWordPress) AddTaxonomy(slug string, types ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taxonomies[slug] = types
}

func (f *FakeWordPress) RemoveTaxonomy(slug string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.taxonomies, slug)
	delete(f.terms, slug)
}

// AddType registers a content type. The REST base is slug + "s" for "post"
// and "page", matching core, and the slug otherwise.
func (f *FakeWordPress) AddType(slug string, taxonomies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[slug] = taxonomies
}

func (f *FakeWordPress) RemoveType(slug string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.types, slug)
	delete(f.posts, slug)
}

func (f *FakeWordPress) AddTerm(taxonomy string, term FakeTerm) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms[taxonomy] = append(f.terms[taxonomy], term)
}

// AddPost stores or replaces a post of the given type.
func (f *FakeWordPress) AddPost(contentType string, post FakePost) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.posts[contentType] {
		if p.ID == post.ID {
			f.posts[contentType][i] = post
			return
		}
	}
	f.posts[contentType] = append(f.posts[contentType], post)
}

func (f *FakeWordPress) AddMedia(m FakeMedia) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[m.ID] = m
}

// EnableACF advertises the acf/v3 REST namespace.
func (f *FakeWordPress) EnableACF() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acf = true
}

// FailNext makes the next count requests whose path ends with suffix fail.
func (f *FakeWordPress) FailNext(suffix string, status, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[suffix] = &failure{status: status, remaining: count}
}

// Requests lists request paths with their query strings.
func (f *FakeWordPress) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func restBase(contentType string) string {
	switch contentType {
	case "post", "page":
		return contentType + "s"
	}
	return contentType
}

func (f *FakeWordPress) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.URL.RequestURI())
	for suffix, fail := range f.failures {
		if fail.remaining > 0 && strings.HasSuffix(r.URL.Path, suffix) {
			fail.remaining--
			writeWPError(w, fail.status, "injected", "injected failure")
			return
		}
	}

	path := strings.TrimPrefix(r.URL.Path, "/wp-json/")
	if path == "" || path == "/" {
		namespaces := []string{"oembed/1.0", "wp/v2"}
		if f.acf {
			namespaces = append(namespaces, "acf/v3")
		}
		writeJSON(w, nil, map[string]any{"namespaces": namespaces})
		return
	}
	path = strings.TrimPrefix(path, "wp/v2/")
	segments := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case segments[0] == "taxonomies":
		listing := map[string]any{}
		for slug, types := range f.taxonomies {
			listing[slug] = map[string]any{"name": strings.ToUpper(slug[:1]) + slug[1:], "slug": slug, "rest_base": slug, "types": types}
		}
		writeJSON(w, nil, listing)
	case segments[0] == "types":
		listing := map[string]any{}
		for slug, taxonomies := range f.types {
			listing[slug] = map[string]any{"name": strings.ToUpper(slug[:1]) + slug[1:], "slug": slug, "rest_base": restBase(slug), "taxonomies": taxonomies}
		}
		writeJSON(w, nil, listing)
	case segments[0] == "media" && len(segments) == 2:
		id, _ := strconv.ParseInt(segments[1], 10, 64)
		m, ok := f.media[id]
		if !ok {
			writeWPError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
			return
		}
		writeJSON(w, nil, map[string]any{
			"id":            m.ID,
			"source_url":    m.URL,
			"media_details": map[string]any{"width": m.Width, "height": m.Height},
		})
	default:
		f.serveCollection(w, r, segments)
	}
}

func (f *FakeWordPress) serveCollection(w http.ResponseWriter, r *http.Request, segments []string) {
	if _, ok := f.taxonomies[segments[0]]; ok && len(segments) == 1 {
		terms := f.terms[segments[0]]
		if post := r.URL.Query().Get("post"); post != "" {
			id, _ := strconv.ParseInt(post, 10, 64)
			var attached []FakeTerm
			for _, t := range terms {
				for _, p := range t.Posts {
					if p == id {
						attached = append(attached, t)
					}
				}
			}
			terms = attached
		}
		out := make([]any, len(terms))
		for i, t := range terms {
			out[i] = map[string]any{
				"id": t.ID, "name": t.Name, "slug": t.Slug, "description": t.Description,
				"parent": t.Parent, "count": t.Count, "taxonomy": segments[0], "meta": metaOrList(t.Meta),
			}
		}
		writePage(w, r, out)
		return
	}

	for contentType := range f.types {
		if restBase(contentType) != segments[0] {
			continue
		}
		posts := append([]FakePost(nil), f.posts[contentType]...)
		sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })

		if len(segments) == 2 {
			id, _ := strconv.ParseInt(segments[1], 10, 64)
			for _, p := range posts {
				if p.ID == id {
					writeJSON(w, nil, postJSON(contentType, p))
					return
				}
			}
			writeWPError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
			return
		}

		status := r.URL.Query().Get("status")
		out := make([]any, 0, len(posts))
		for _, p := range posts {
			if status == "" || p.Status == status {
				out = append(out, postJSON(contentType, p))
			}
		}
		writePage(w, r, out)
		return
	}

	writeWPError(w, http.StatusNotFound, "rest_no_route", "No route was found matching the URL and request method.")
}

func postJSON(contentType string, p FakePost) map[string]any {
	out := map[string]any{
		"id":             p.ID,
		"type":           contentType,
		"slug":           p.Slug,
		"status":         p.Status,
		"title":          map[string]any{"rendered": p.Title},
		"content":        map[string]any{"rendered": p.Content, "protected": false},
		"featured_media": p.FeaturedMedia,
		"meta":           metaOrList(p.Meta),
	}
	if p.ACF != nil {
		out["acf"] = p.ACF
	} else {
		out["acf"] = []any{}
	}
	return out
}

// metaOrList mirrors WordPress sending [] for an empty meta object.
func metaOrList(meta map[string]any) any {
	if len(meta) == 0 {
		return []any{}
	}
	return meta
}

func writePage(w http.ResponseWriter, r *http.Request, all []any) {
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage <= 0 {
		perPage = 10
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	totalPages := (len(all) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}

	header := http.Header{}
	header.Set("X-WP-Total", strconv.Itoa(len(all)))
	header.Set("X-WP-TotalPages", strconv.Itoa(totalPages))
	writeJSON(w, header, all[start:end])
}

func writeJSON(w http.ResponseWriter, header http.Header, body any) {
	for k, v := range header {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeWPError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": errCode, "message": message, "data": map[string]any{"status": code}})
}
