package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"firesync/internal/auth"
	"firesync/internal/cms"
	"firesync/internal/firestore"
	"firesync/internal/models"
	"firesync/internal/repository"
	"firesync/internal/service/job"
	"firesync/internal/service/mapper"
	"firesync/pkg/log"
)

const DefaultConcurrency = 4

// Targets is the configured set of sync targets. Prune removes targets whose
// type no longer exists in the content system.
type Targets interface {
	TaxonomyTargets() []models.TaxonomyTarget
	ContentTypeTargets() []models.ContentTypeTarget
	TaxonomyTarget(slug string) (models.TaxonomyTarget, bool)
	ContentTypeTarget(slug string) (models.ContentTypeTarget, bool)
	Prune(pruned []models.PrunedTarget) error
}

type ItemMapper interface {
	MapContentItem(ctx context.Context, item models.ContentItem, target models.ContentTypeTarget) mapper.Result
}

// Preflight gates bulk operations on document store reachability.
type Preflight interface {
	CheckWithError(ctx context.Context) error
}

type Dependencies struct {
	Content   cms.ContentSource
	Mapper    ItemMapper
	Writer    job.Writer
	Ledger    repository.SyncRecordRepository
	Targets   Targets
	Preflight Preflight
	// Refresher drops cached type listings when a type is registered. Optional.
	Refresher   cms.Refresher
	Concurrency int
}

type SyncOrchestrator struct {
	logger      zerolog.Logger
	content     cms.ContentSource
	mapper      ItemMapper
	writer      job.Writer
	ledger      repository.SyncRecordRepository
	targets     Targets
	preflight   Preflight
	refresher   cms.Refresher
	concurrency int
	slots       chan struct{}
	locks       *keyedMutex
}

func NewSyncOrchestrator(deps Dependencies) *SyncOrchestrator {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &SyncOrchestrator{
		logger:      log.Logger.With().Str("component", "orchestrator").Logger(),
		content:     deps.Content,
		mapper:      deps.Mapper,
		writer:      deps.Writer,
		ledger:      deps.Ledger,
		targets:     deps.Targets,
		preflight:   deps.Preflight,
		refresher:   deps.Refresher,
		concurrency: concurrency,
		slots:       make(chan struct{}, concurrency),
		locks:       newKeyedMutex(),
	}
}

// SyncAll validates every configured target, prunes the ones whose type no
// longer exists and syncs the rest in parallel. A failing entity does not stop
// the run; credential failures do.
func (o *SyncOrchestrator) SyncAll(ctx context.Context) (*SyncResult, error) {
	result := newSyncResult()
	logger := o.logger.With().Str("action", "sync_all").Str("run_id", result.RunID).Logger()
	logger.Info().Msg("Starting full synchronization")

	if err := o.checkPreflight(ctx, result); err != nil {
		return result, err
	}

	taxonomies, contentTypes, failed := o.validateTargets(ctx, result)
	result.add(failed...)

	var pruneErr error
	if len(result.Pruned) > 0 {
		if pruneErr = o.targets.Prune(result.Pruned); pruneErr != nil {
			logger.Error().Err(pruneErr).Msg("Failed to remove stale targets from configuration")
		} else {
			logger.Warn().Interface("pruned", result.Pruned).Msg("Removed targets whose type no longer exists")
		}
	}

	if len(taxonomies) == 0 && len(contentTypes) == 0 {
		logger.Warn().Msg("No targets to sync")
	}

	var (
		mu   sync.Mutex
		jobs []*job.SyncJobResult
	)
	collect := func(results ...*job.SyncJobResult) {
		mu.Lock()
		defer mu.Unlock()
		jobs = append(jobs, results...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, target := range taxonomies {
		g.Go(func() error {
			r := o.syncTaxonomyTarget(gctx, target)
			collect(r)
			return fatal(r.Error)
		})
	}
	for _, target := range contentTypes {
		g.Go(func() error {
			results, err := o.syncContentTypeTarget(gctx, target)
			collect(results...)
			return err
		})
	}
	err := g.Wait()

	result.add(jobs...)
	result.finish(err)
	o.logSummary(logger, result)

	switch {
	case err != nil:
		return result, err
	case ctx.Err() != nil:
		result.fail(ctx.Err().Error())
		return result, fmt.Errorf("sync interrupted: %w", ctx.Err())
	case pruneErr != nil:
		result.fail(pruneErr.Error())
		return result, pruneErr
	}
	return result, nil
}

// validateTargets splits the configured targets into the ones that still
// exist and records the rest as pruned. A failed existence check fails that
// target only.
func (o *SyncOrchestrator) validateTargets(ctx context.Context, result *SyncResult) ([]models.TaxonomyTarget, []models.ContentTypeTarget, []*job.SyncJobResult) {
	var (
		taxonomies   []models.TaxonomyTarget
		contentTypes []models.ContentTypeTarget
		failed       []*job.SyncJobResult
	)

	for _, target := range o.targets.TaxonomyTargets() {
		exists, err := o.content.TaxonomyExists(ctx, target.Slug)
		switch {
		case err != nil:
			failed = append(failed, job.NewFailedResult(taxonomyEntity(target.Slug), job.OperationUpsert,
				fmt.Errorf("failed to check taxonomy %s: %w", target.Slug, err)))
		case !exists:
			result.Pruned = append(result.Pruned, models.PrunedTarget{Kind: models.TargetTaxonomy, Slug: target.Slug})
		default:
			taxonomies = append(taxonomies, target)
		}
	}

	for _, target := range o.targets.ContentTypeTargets() {
		exists, err := o.content.ContentTypeExists(ctx, target.Slug)
		switch {
		case err != nil:
			failed = append(failed, job.NewFailedResult(contentTypeEntity(target.Slug), job.OperationUpsert,
				fmt.Errorf("failed to check content type %s: %w", target.Slug, err)))
		case !exists:
			result.Pruned = append(result.Pruned, models.PrunedTarget{Kind: models.TargetContentType, Slug: target.Slug})
		default:
			contentTypes = append(contentTypes, target)
		}
	}

	return taxonomies, contentTypes, failed
}

// SyncTaxonomy writes the combined document of one configured taxonomy.
func (o *SyncOrchestrator) SyncTaxonomy(ctx context.Context, slug string) (*SyncResult, error) {
	result := newSyncResult()
	target, ok := o.targets.TaxonomyTarget(slug)
	if !ok {
		return result.noop(fmt.Sprintf("taxonomy %s is not configured for sync", slug)), nil
	}

	if err := o.checkPreflight(ctx, result); err != nil {
		return result, err
	}

	exists, err := o.content.TaxonomyExists(ctx, slug)
	if err != nil {
		result.add(job.NewFailedResult(taxonomyEntity(slug), job.OperationUpsert, err))
		result.finish(nil)
		return result, nil
	}
	if !exists {
		return o.pruneOne(result, models.PrunedTarget{Kind: models.TargetTaxonomy, Slug: slug})
	}

	return o.single(result, o.syncTaxonomyTarget(ctx, target))
}

// SyncContentType writes one document per published item of a configured
// content type.
func (o *SyncOrchestrator) SyncContentType(ctx context.Context, slug string) (*SyncResult, error) {
	result := newSyncResult()
	target, ok := o.targets.ContentTypeTarget(slug)
	if !ok {
		return result.noop(fmt.Sprintf("content type %s is not configured for sync", slug)), nil
	}

	if err := o.checkPreflight(ctx, result); err != nil {
		return result, err
	}

	exists, err := o.content.ContentTypeExists(ctx, slug)
	if err != nil {
		result.add(job.NewFailedResult(contentTypeEntity(slug), job.OperationUpsert, err))
		result.finish(nil)
		return result, nil
	}
	if !exists {
		return o.pruneOne(result, models.PrunedTarget{Kind: models.TargetContentType, Slug: slug})
	}

	results, err := o.syncContentTypeTarget(ctx, target)
	result.add(results...)
	result.finish(err)
	o.logSummary(o.logger.With().Str("action", "sync_content_type").Str("target", slug).Logger(), result)
	return result, err
}

// SyncEntity re-reads one content item and writes its current state. An item
// that is gone or no longer published is deleted remotely.
func (o *SyncOrchestrator) SyncEntity(ctx context.Context, contentType string, id int64) (*SyncResult, error) {
	result := newSyncResult()
	target, ok := o.targets.ContentTypeTarget(contentType)
	if !ok {
		return result.noop(fmt.Sprintf("content type %s is not configured for sync", contentType)), nil
	}

	return o.single(result, o.syncItemByID(ctx, target, id, true))
}

// DeleteEntity removes the remote document of a content item. A document that
// does not exist is not an error.
func (o *SyncOrchestrator) DeleteEntity(ctx context.Context, contentType string, id int64) (*SyncResult, error) {
	result := newSyncResult()
	if _, ok := o.targets.ContentTypeTarget(contentType); !ok {
		return result.noop(fmt.Sprintf("content type %s is not configured for sync", contentType)), nil
	}

	return o.single(result, o.deleteItem(ctx, contentType, id))
}

func (o *SyncOrchestrator) syncTaxonomyTarget(ctx context.Context, target models.TaxonomyTarget) *job.SyncJobResult {
	entity := taxonomyEntity(target.Slug)

	// One in-flight read-and-write per taxonomy, so the combined document
	// always reflects a single listing of the terms.
	unlock := o.locks.Lock(target.Slug)
	defer unlock()

	terms, err := o.content.ListTerms(ctx, target.Slug)
	if err != nil {
		o.logger.Error().Err(err).Str("target", target.Slug).Msg("Failed to list taxonomy terms")
		return job.NewFailedResult(entity, job.OperationUpsert, fmt.Errorf("failed to list terms of %s: %w", target.Slug, err))
	}

	doc := mapper.MapTaxonomy(target, terms)
	return o.execute(ctx, job.NewUpsertJob(entity, doc, nil, o.writer, o.ledger))
}

func (o *SyncOrchestrator) syncContentTypeTarget(ctx context.Context, target models.ContentTypeTarget) ([]*job.SyncJobResult, error) {
	items, err := o.content.ListItems(ctx, target.Slug, models.StatusPublish)
	if err != nil {
		o.logger.Error().Err(err).Str("target", target.Slug).Msg("Failed to list content items")
		return []*job.SyncJobResult{
			job.NewFailedResult(contentTypeEntity(target.Slug), job.OperationUpsert,
				fmt.Errorf("failed to list items of %s: %w", target.Slug, err)),
		}, nil
	}

	o.logger.Debug().Str("target", target.Slug).Int("items", len(items)).Msg("Syncing content items")

	results := make([]*job.SyncJobResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = o.syncItem(gctx, target, item)
			return fatal(results[i].Error)
		})
	}
	return results, g.Wait()
}

func (o *SyncOrchestrator) syncItemByID(ctx context.Context, target models.ContentTypeTarget, id int64, deleteUnpublished bool) *job.SyncJobResult {
	item, err := o.content.GetItem(ctx, target.Slug, id)
	if errors.Is(err, cms.ErrNotFound) {
		return o.deleteItem(ctx, target.Slug, id)
	}
	if err != nil {
		return job.NewFailedResult(itemEntity(target.Slug, id), job.OperationUpsert,
			fmt.Errorf("failed to read %s %d: %w", target.Slug, id, err))
	}
	if !item.Published() {
		if deleteUnpublished {
			return o.deleteItem(ctx, target.Slug, id)
		}
		return &job.SyncJobResult{Entity: itemEntity(target.Slug, id), Operation: job.OperationUpsert, Status: job.SyncJobStatusSkipped}
	}
	return o.syncItem(ctx, target, item)
}

func (o *SyncOrchestrator) syncItem(ctx context.Context, target models.ContentTypeTarget, item models.ContentItem) *job.SyncJobResult {
	mapped := o.mapper.MapContentItem(ctx, item, target)
	return o.execute(ctx, job.NewUpsertJob(itemEntity(target.Slug, item.ID), mapped.Document, mapped.DegradedKeys(), o.writer, o.ledger))
}

func (o *SyncOrchestrator) deleteItem(ctx context.Context, contentType string, id int64) *job.SyncJobResult {
	return o.execute(ctx, job.NewDeleteJob(itemEntity(contentType, id), o.writer, o.ledger))
}

// execute runs a job once a write slot is free. Jobs whose context ends while
// waiting report themselves as skipped.
func (o *SyncOrchestrator) execute(ctx context.Context, syncJob *job.SyncJob) *job.SyncJobResult {
	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
	}
	return syncJob.Execute(ctx)
}

func (o *SyncOrchestrator) checkPreflight(ctx context.Context, result *SyncResult) error {
	if o.preflight == nil {
		return nil
	}
	if err := o.preflight.CheckWithError(ctx); err != nil {
		o.logger.Error().Err(err).Str("run_id", result.RunID).Msg("Document store is not reachable, sync aborted")
		result.fail("document store is not reachable: " + err.Error())
		return fmt.Errorf("preflight check failed: %w", err)
	}
	return nil
}

func (o *SyncOrchestrator) pruneOne(result *SyncResult, pruned models.PrunedTarget) (*SyncResult, error) {
	result.Pruned = []models.PrunedTarget{pruned}
	if err := o.targets.Prune(result.Pruned); err != nil {
		result.fail(err.Error())
		return result, err
	}
	o.logger.Warn().Str("kind", string(pruned.Kind)).Str("target", pruned.Slug).Msg("Removed target whose type no longer exists")
	result.fail(fmt.Sprintf("%s %s no longer exists and was removed from configuration", pruned.Kind, pruned.Slug))
	return result, nil
}

func (o *SyncOrchestrator) logSummary(logger zerolog.Logger, result *SyncResult) {
	logger.Info().
		Bool("success", result.Success).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("degraded", result.Degraded).
		Int("pruned", len(result.Pruned)).
		Dur("duration", result.Duration).
		Msg("Synchronization completed")
}

// fatal returns err when it must abort the whole run rather than one entity.
func fatal(err error) error {
	if errors.Is(err, auth.ErrCredential) || errors.Is(err, auth.ErrAuthExchange) {
		return err
	}
	return nil
}

func taxonomyEntity(slug string) job.Entity {
	return job.Entity{Kind: models.TargetTaxonomy, Target: slug, ID: slug, Path: firestore.TaxonomyPath(slug)}
}

func contentTypeEntity(slug string) job.Entity {
	return job.Entity{Kind: models.TargetContentType, Target: slug, Path: firestore.ContentTypesCollection + "/" + slug}
}

func itemEntity(contentType string, id int64) job.Entity {
	return job.Entity{
		Kind:   models.TargetContentType,
		Target: contentType,
		ID:     fmt.Sprint(id),
		Path:   firestore.ContentItemPath(contentType, id),
	}
}

// TargetStats is the entity count of one configured target.
type TargetStats struct {
	Kind   models.TargetKind `json:"kind" yaml:"kind"`
	Slug   string            `json:"slug" yaml:"slug"`
	Exists bool              `json:"exists" yaml:"exists"`
	Count  int               `json:"count" yaml:"count"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Stats counts terms per configured taxonomy and published items per
// configured content type.
func (o *SyncOrchestrator) Stats(ctx context.Context) ([]TargetStats, error) {
	var stats []TargetStats

	for _, target := range o.targets.TaxonomyTargets() {
		s := TargetStats{Kind: models.TargetTaxonomy, Slug: target.Slug}
		exists, err := o.content.TaxonomyExists(ctx, target.Slug)
		if err == nil && exists {
			var terms []models.Term
			terms, err = o.content.ListTerms(ctx, target.Slug)
			s.Count = len(terms)
		}
		s.Exists = exists
		if err != nil {
			s.Error = err.Error()
		}
		stats = append(stats, s)
	}

	for _, target := range o.targets.ContentTypeTargets() {
		s := TargetStats{Kind: models.TargetContentType, Slug: target.Slug}
		exists, err := o.content.ContentTypeExists(ctx, target.Slug)
		if err == nil && exists {
			var items []models.ContentItem
			items, err = o.content.ListItems(ctx, target.Slug, models.StatusPublish)
			s.Count = len(items)
		}
		s.Exists = exists
		if err != nil {
			s.Error = err.Error()
		}
		stats = append(stats, s)
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// SyncResult aggregates the job results of one operation.
type SyncResult struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	Success    bool                  `json:"success" yaml:"success"`
	Reason     string                `json:"reason,omitempty" yaml:"reason,omitempty"`
	Total      int                   `json:"total" yaml:"total"`
	Succeeded  int                   `json:"succeeded" yaml:"succeeded"`
	Deleted    int                   `json:"deleted" yaml:"deleted"`
	Failed     int                   `json:"failed" yaml:"failed"`
	Skipped    int                   `json:"skipped" yaml:"skipped"`
	Degraded   int                   `json:"degraded" yaml:"degraded"`
	Pruned     []models.PrunedTarget `json:"pruned,omitempty" yaml:"pruned,omitempty"`
	Duration   time.Duration         `json:"duration" yaml:"duration"`
	JobResults []*job.SyncJobResult  `json:"-" yaml:"-"`

	started time.Time
}

func newSyncResult() *SyncResult {
	return &SyncResult{RunID: uuid.NewString(), started: time.Now()}
}

func (r *SyncResult) add(results ...*job.SyncJobResult) {
	for _, jr := range results {
		if jr == nil {
			continue
		}
		r.JobResults = append(r.JobResults, jr)
		r.Total++
		switch jr.Status {
		case job.SyncJobStatusUpdated:
			r.Succeeded++
		case job.SyncJobStatusDeleted:
			r.Deleted++
		case job.SyncJobStatusSkipped:
			r.Skipped++
		case job.SyncJobStatusFailed:
			r.Failed++
		}
		if len(jr.Degraded) > 0 {
			r.Degraded++
		}
	}
}

// finish computes success: no failed job and no fatal error. The reason is
// the first failure.
func (r *SyncResult) finish(err error) {
	r.Duration = time.Since(r.started)
	r.Success = err == nil && r.Failed == 0
	switch {
	case err != nil:
		r.Reason = err.Error()
	case r.Failed > 0:
		for _, jr := range r.JobResults {
			if jr.Failed() && jr.Error != nil {
				r.Reason = fmt.Sprintf("%s: %v", jr.Entity.Path, jr.Error)
				break
			}
		}
	}
}

func (r *SyncResult) fail(reason string) {
	r.Duration = time.Since(r.started)
	r.Success = false
	r.Reason = reason
}

func (r *SyncResult) noop(reason string) *SyncResult {
	r.Duration = time.Since(r.started)
	r.Success = true
	r.Reason = reason
	return r
}
