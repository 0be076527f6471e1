package orchestrator

import (
	"context"
	"fmt"

	"firesync/internal/models"
	"firesync/internal/service/job"
)

// SaveEvent identifies a content item that was created or updated.
type SaveEvent struct {
	ContentType string
	ID          int64
	Revision    bool
	Autosave    bool
}

// The handlers below are called by content system adapters. Each one re-reads
// current state and never trusts the event payload beyond the identifiers.

// OnEntitySaved syncs a published item of a configured type. Revisions,
// autosaves and unpublished items are ignored.
func (o *SyncOrchestrator) OnEntitySaved(ctx context.Context, event SaveEvent) (*SyncResult, error) {
	result := newSyncResult()
	if event.Revision || event.Autosave {
		return result.noop(fmt.Sprintf("%s %d is a revision or autosave", event.ContentType, event.ID)), nil
	}
	target, ok := o.targets.ContentTypeTarget(event.ContentType)
	if !ok {
		return result.noop(fmt.Sprintf("content type %s is not configured for sync", event.ContentType)), nil
	}

	o.logger.Debug().Str("action", "entity_saved").Str("target", event.ContentType).Int64("id", event.ID).Msg("Handling event")
	r := o.syncItemByID(ctx, target, event.ID, false)
	return o.single(result, r)
}

func (o *SyncOrchestrator) OnEntityDeleted(ctx context.Context, contentType string, id int64) (*SyncResult, error) {
	o.logger.Debug().Str("action", "entity_deleted").Str("target", contentType).Int64("id", id).Msg("Handling event")
	return o.DeleteEntity(ctx, contentType, id)
}

// OnStatusChanged syncs an item that became published and deletes the remote
// document of one that stopped being published.
func (o *SyncOrchestrator) OnStatusChanged(ctx context.Context, contentType string, id int64, oldStatus, newStatus string) (*SyncResult, error) {
	logger := o.logger.With().
		Str("action", "status_changed").
		Str("target", contentType).
		Int64("id", id).
		Str("old_status", oldStatus).
		Str("new_status", newStatus).
		Logger()

	switch {
	case newStatus == models.StatusPublish:
		logger.Debug().Msg("Item published")
		return o.SyncEntity(ctx, contentType, id)
	case oldStatus == models.StatusPublish:
		logger.Debug().Msg("Item unpublished")
		return o.DeleteEntity(ctx, contentType, id)
	}
	return newSyncResult().noop(fmt.Sprintf("status change %s -> %s does not affect sync", oldStatus, newStatus)), nil
}

// OnMetadataChanged re-syncs the whole item when the changed key is one of the
// selected metadata fields of its type.
func (o *SyncOrchestrator) OnMetadataChanged(ctx context.Context, contentType string, id int64, key string) (*SyncResult, error) {
	return o.onFieldChanged(ctx, contentType, id, models.FieldMetadata, key)
}

func (o *SyncOrchestrator) OnPrimaryImageChanged(ctx context.Context, contentType string, id int64) (*SyncResult, error) {
	return o.onFieldChanged(ctx, contentType, id, models.FieldPrimaryImage, "")
}

func (o *SyncOrchestrator) onFieldChanged(ctx context.Context, contentType string, id int64, kind models.FieldKind, key string) (*SyncResult, error) {
	result := newSyncResult()
	target, ok := o.targets.ContentTypeTarget(contentType)
	if !ok {
		return result.noop(fmt.Sprintf("content type %s is not configured for sync", contentType)), nil
	}
	if !target.Selects(kind, key) {
		return result.noop(fmt.Sprintf("%s field %q is not synced for %s", kind, key, contentType)), nil
	}

	o.logger.Debug().
		Str("action", "field_changed").
		Str("target", contentType).
		Int64("id", id).
		Str("kind", string(kind)).
		Str("key", key).
		Msg("Handling event")
	return o.single(result, o.syncItemByID(ctx, target, id, false))
}

// OnTermChanged rewrites the combined document of the term's taxonomy after
// a term was created, edited or deleted.
func (o *SyncOrchestrator) OnTermChanged(ctx context.Context, taxonomy string, termID int64) (*SyncResult, error) {
	result := newSyncResult()
	target, ok := o.targets.TaxonomyTarget(taxonomy)
	if !ok {
		return result.noop(fmt.Sprintf("taxonomy %s is not configured for sync", taxonomy)), nil
	}

	o.logger.Debug().Str("action", "term_changed").Str("target", taxonomy).Int64("term_id", termID).Msg("Handling event")
	return o.single(result, o.syncTaxonomyTarget(ctx, target))
}

// OnTypeRegistered drops cached type listings and syncs the type right away
// when it is configured.
func (o *SyncOrchestrator) OnTypeRegistered(ctx context.Context, kind models.TargetKind, slug string) (*SyncResult, error) {
	if o.refresher != nil {
		o.refresher.Refresh()
	}
	logger := o.logger.With().Str("action", "type_registered").Str("kind", string(kind)).Str("target", slug).Logger()

	result := newSyncResult()
	switch kind {
	case models.TargetTaxonomy:
		target, ok := o.targets.TaxonomyTarget(slug)
		if !ok {
			break
		}
		logger.Info().Msg("Configured taxonomy registered, syncing")
		return o.single(result, o.syncTaxonomyTarget(ctx, target))
	case models.TargetContentType:
		target, ok := o.targets.ContentTypeTarget(slug)
		if !ok {
			break
		}
		logger.Info().Msg("Configured content type registered, syncing")
		results, err := o.syncContentTypeTarget(ctx, target)
		result.add(results...)
		result.finish(err)
		return result, err
	default:
		return result.noop(fmt.Sprintf("unknown target kind %q", kind)), nil
	}
	return result.noop(fmt.Sprintf("%s %s is not configured for sync", kind, slug)), nil
}

func (o *SyncOrchestrator) single(result *SyncResult, r *job.SyncJobResult) (*SyncResult, error) {
	result.add(r)
	err := fatal(r.Error)
	result.finish(err)
	return result, err
}
