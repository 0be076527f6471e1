package mapper

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"firesync/internal/cms"
	"firesync/internal/models"
	"firesync/pkg/converter"
	"firesync/pkg/log"
)

var (
	errNoAccessor       = errors.New("accessor not configured")
	errPluginInactive   = errors.New("custom fields plugin inactive")
	errUnknownCustomKey = errors.New("unknown custom field")
)

// DegradedField is a destination key that resolved to Null because a
// collaborator failed or was missing.
type DegradedField struct {
	Key    string
	Field  models.FieldDescriptor
	Reason error
}

// Result is a mapped document plus the fields that degraded to Null. A
// degraded result is still complete: every selected field has a key.
type Result struct {
	Document *models.SyncDocument
	Degraded []DegradedField
}

func (r Result) IsDegraded() bool {
	return len(r.Degraded) > 0
}

func (r Result) DegradedKeys() []string {
	keys := make([]string, len(r.Degraded))
	for i, d := range r.Degraded {
		keys[i] = d.Key
	}
	return keys
}

type Mapper struct {
	collab cms.Collaborators
	logger zerolog.Logger
}

func New(collab cms.Collaborators) *Mapper {
	return &Mapper{
		collab: collab,
		logger: log.Logger.With().Str("component", "mapper").Logger(),
	}
}

// MapContentItem resolves every selected field of the target for item. A
// field that cannot be resolved is set to Null and reported in the result;
// mapping always continues with the next field.
func (m *Mapper) MapContentItem(ctx context.Context, item models.ContentItem, target models.ContentTypeTarget) Result {
	result := Result{Document: models.NewSyncDocument()}
	plugin := newPluginState(m.collab.CustomFields)

	for _, field := range target.Fields {
		key := target.DestinationKey(field)
		value, err := m.resolve(ctx, item, field, plugin)
		if err != nil {
			result.Degraded = append(result.Degraded, DegradedField{Key: key, Field: field, Reason: err})
			value = models.Null()
		}
		result.Document.Set(key, value)
	}

	if result.IsDegraded() {
		event := m.logger.Warn().
			Str("action", "map_content_item").
			Str("type", item.Type).
			Int64("id", item.ID).
			Strs("degraded", result.DegradedKeys())
		for _, d := range result.Degraded {
			event = event.AnErr(d.Key, d.Reason)
		}
		event.Msg("Mapping degraded, unresolved fields set to null")
	}
	return result
}

func (m *Mapper) resolve(ctx context.Context, item models.ContentItem, field models.FieldDescriptor, plugin *pluginState) (models.Value, error) {
	switch field.Kind {
	case models.FieldIntrinsic:
		v, ok := item.Properties[field.Key]
		if !ok {
			return models.Null(), nil
		}
		return converter.ToDocumentValue(v), nil

	case models.FieldMetadata:
		if m.collab.Metadata == nil {
			return models.Null(), errNoAccessor
		}
		v, found, err := m.collab.Metadata.Meta(ctx, item, field.Key)
		if err != nil {
			return models.Null(), err
		}
		if !found {
			return models.Null(), nil
		}
		return converter.ToDocumentValue(v), nil

	case models.FieldTaxonomy:
		if m.collab.Taxonomies == nil {
			return models.Null(), errNoAccessor
		}
		refs, err := m.collab.Taxonomies.ItemTerms(ctx, item, field.Key)
		if err != nil {
			return models.Null(), err
		}
		return termRefs(refs), nil

	case models.FieldCustom:
		if !plugin.active(ctx) {
			return models.Null(), errPluginInactive
		}
		v, found, err := m.collab.CustomFields.GetFieldValue(ctx, item, field.Key)
		if err != nil {
			return models.Null(), err
		}
		if !found {
			return models.Null(), errUnknownCustomKey
		}
		return converter.ToDocumentValue(v), nil

	case models.FieldPrimaryImage:
		if item.PrimaryImageID <= 0 {
			return models.Null(), nil
		}
		if m.collab.Content == nil {
			return models.Null(), errNoAccessor
		}
		img, found, err := m.collab.Content.GetImage(ctx, item.PrimaryImageID)
		if err != nil {
			return models.Null(), err
		}
		if !found {
			return models.Null(), nil
		}
		return imageValue(img), nil
	}
	return models.Null(), errors.New("unsupported field kind " + string(field.Kind))
}

// termRefs maps attached terms to [{id, name, slug}]. No terms is an empty
// array, never Null.
func termRefs(refs []models.TermRef) models.Value {
	items := make([]models.Value, len(refs))
	for i, ref := range refs {
		items[i] = models.MapOf(models.NewMap().
			Set("id", models.Int(ref.ID)).
			Set("name", models.String(ref.Name)).
			Set("slug", models.String(ref.Slug)))
	}
	return models.Array(items...)
}

func imageValue(img models.Image) models.Value {
	return models.MapOf(models.NewMap().
		Set("id", models.Int(img.ID)).
		Set("url", models.String(img.URL)).
		Set("width", models.Int(img.Width)).
		Set("height", models.Int(img.Height)))
}

// pluginState asks the custom-fields plugin whether it is active at most
// once per mapped item.
type pluginState struct {
	fields  cms.CustomFields
	checked bool
	on      bool
}

func newPluginState(fields cms.CustomFields) *pluginState {
	return &pluginState{fields: fields}
}

func (p *pluginState) active(ctx context.Context) bool {
	if p.fields == nil {
		return false
	}
	if !p.checked {
		p.on = p.fields.IsActive(ctx)
		p.checked = true
	}
	return p.on
}
