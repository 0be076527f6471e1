package orchestrator

import (
	"context"
	"sync"
	"time"

	"firesync/internal/models"
	"firesync/internal/service/job"
)

type fakeTargets struct {
	mu           sync.Mutex
	taxonomies   []models.TaxonomyTarget
	contentTypes []models.ContentTypeTarget
	pruned       []models.PrunedTarget
	pruneErr     error
}

func (f *fakeTargets) TaxonomyTargets() []models.TaxonomyTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TaxonomyTarget(nil), f.taxonomies...)
}

func (f *fakeTargets) ContentTypeTargets() []models.ContentTypeTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ContentTypeTarget(nil), f.contentTypes...)
}

func (f *fakeTargets) TaxonomyTarget(slug string) (models.TaxonomyTarget, bool) {
	for _, t := range f.TaxonomyTargets() {
		if t.Slug == slug {
			return t, true
		}
	}
	return models.TaxonomyTarget{}, false
}

func (f *fakeTargets) ContentTypeTarget(slug string) (models.ContentTypeTarget, bool) {
	for _, t := range f.ContentTypeTargets() {
		if t.Slug == slug {
			return t, true
		}
	}
	return models.ContentTypeTarget{}, false
}

func (f *fakeTargets) Prune(pruned []models.PrunedTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pruneErr != nil {
		return f.pruneErr
	}
	f.pruned = append(f.pruned, pruned...)
	for _, p := range pruned {
		switch p.Kind {
		case models.TargetTaxonomy:
			kept := f.taxonomies[:0]
			for _, t := range f.taxonomies {
				if t.Slug != p.Slug {
					kept = append(kept, t)
				}
			}
			f.taxonomies = kept
		case models.TargetContentType:
			kept := f.contentTypes[:0]
			for _, t := range f.contentTypes {
				if t.Slug != p.Slug {
					kept = append(kept, t)
				}
			}
			f.contentTypes = kept
		}
	}
	return nil
}

// observedWriter wraps a writer, fails selected paths and tracks how many
// writes per path were in flight at once.
type observedWriter struct {
	inner job.Writer
	delay time.Duration

	mu          sync.Mutex
	failures    map[string]error
	inFlight    map[string]int
	maxInFlight map[string]int
	upserts     []string
	deletes     []string
}

func newObservedWriter(inner job.Writer) *observedWriter {
	return &observedWriter{
		inner:       inner,
		failures:    map[string]error{},
		inFlight:    map[string]int{},
		maxInFlight: map[string]int{},
	}
}

func (w *observedWriter) failPath(path string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[path] = err
}

func (w *observedWriter) enter(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight[path]++
	if w.inFlight[path] > w.maxInFlight[path] {
		w.maxInFlight[path] = w.inFlight[path]
	}
	return w.failures[path]
}

func (w *observedWriter) leave(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight[path]--
}

func (w *observedWriter) Upsert(ctx context.Context, path string, doc *models.SyncDocument, merge bool) error {
	err := w.enter(path)
	defer w.leave(path)
	w.mu.Lock()
	w.upserts = append(w.upserts, path)
	w.mu.Unlock()
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	if err != nil {
		return err
	}
	return w.inner.Upsert(ctx, path, doc, merge)
}

func (w *observedWriter) Delete(ctx context.Context, path string) error {
	err := w.enter(path)
	defer w.leave(path)
	w.mu.Lock()
	w.deletes = append(w.deletes, path)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	return w.inner.Delete(ctx, path)
}

func (w *observedWriter) Upserts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.upserts...)
}

func (w *observedWriter) Deletes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.deletes...)
}

func (w *observedWriter) MaxInFlight(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxInFlight[path]
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	inner interface{ Refresh() }
}

func (r *countingRefresher) Refresh() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.inner != nil {
		r.inner.Refresh()
	}
}

func (r *countingRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
