// Package cms declares what the sync core needs from the content system.
// Implementations live in sub-packages.
package cms

import (
	"context"
	"errors"

	"firesync/internal/models"
)

var ErrNotFound = errors.New("not found in content system")

// ContentSource enumerates entity types and entities.
type ContentSource interface {
	ListTaxonomies(ctx context.Context) ([]models.TaxonomyInfo, error)
	TaxonomyExists(ctx context.Context, slug string) (bool, error)
	ListContentTypes(ctx context.Context) ([]models.ContentTypeInfo, error)
	ContentTypeExists(ctx context.Context, slug string) (bool, error)
	// ListTerms returns every term of a taxonomy, including empty ones.
	ListTerms(ctx context.Context, taxonomy string) ([]models.Term, error)
	// ListItems returns the items of a content type with the given status.
	ListItems(ctx context.Context, contentType, status string) ([]models.ContentItem, error)
	// GetItem returns ErrNotFound when the item does not exist.
	GetItem(ctx context.Context, contentType string, id int64) (models.ContentItem, error)
	// GetImage returns found=false when the attachment does not exist.
	GetImage(ctx context.Context, id int64) (img models.Image, found bool, err error)
}

// MetadataAccessor reads single-valued key/value metadata of an item.
type MetadataAccessor interface {
	Meta(ctx context.Context, item models.ContentItem, key string) (value any, found bool, err error)
}

// TaxonomyAccessor reads the terms of a taxonomy attached to an item.
type TaxonomyAccessor interface {
	ItemTerms(ctx context.Context, item models.ContentItem, taxonomy string) ([]models.TermRef, error)
}

// FieldInfo describes one field offered by the custom-fields plugin.
type FieldInfo struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Type  string `json:"type" yaml:"type"`
}

// CustomFields is the optional custom-fields plugin.
type CustomFields interface {
	IsActive(ctx context.Context) bool
	GetFieldValue(ctx context.Context, item models.ContentItem, key string) (value any, found bool, err error)
	ListFieldsForType(ctx context.Context, contentType string) ([]FieldInfo, error)
}

// Refresher is implemented by sources that cache type listings and can drop
// them when a new type is registered.
type Refresher interface {
	Refresh()
}

// Collaborators bundles the accessors the mapper and orchestrator consult.
// CustomFields may be nil when no plugin is installed.
type Collaborators struct {
	Content      ContentSource
	Metadata     MetadataAccessor
	Taxonomies   TaxonomyAccessor
	CustomFields CustomFields
}
