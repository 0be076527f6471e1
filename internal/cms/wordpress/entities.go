package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"firesync/internal/cms"
	"firesync/internal/models"
	"firesync/pkg/converter"
)

var errUnknownType = fmt.Errorf("unknown type: %w", cms.ErrNotFound)

type wpTerm struct {
	ID          json.Number     `json:"id"`
	Count       json.Number     `json:"count"`
	Description string          `json:"description"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Taxonomy    string          `json:"taxonomy"`
	Parent      json.Number     `json:"parent"`
	Meta        json.RawMessage `json:"meta"`
}

func (t wpTerm) model(taxonomy string) models.Term {
	term := models.Term{
		ID:          number(t.ID),
		Taxonomy:    t.Taxonomy,
		Name:        t.Name,
		Slug:        t.Slug,
		Description: t.Description,
		Parent:      number(t.Parent),
		Count:       number(t.Count),
		Meta:        singleValues(objectOrEmpty(t.Meta)),
	}
	if term.Taxonomy == "" {
		term.Taxonomy = taxonomy
	}
	return term
}

// ListTerms returns every term including those with no items attached.
func (c *Client) ListTerms(ctx context.Context, taxonomy string) ([]models.Term, error) {
	base, err := c.taxonomyBase(ctx, taxonomy)
	if err != nil {
		return nil, err
	}
	query := c.editContext(url.Values{"hide_empty": {"false"}, "orderby": {"id"}})
	raw, err := getAll[wpTerm](ctx, c, corePrefix+base, query)
	if err != nil {
		return nil, fmt.Errorf("list terms of %s: %w", taxonomy, err)
	}
	terms := make([]models.Term, len(raw))
	for i, t := range raw {
		terms[i] = t.model(taxonomy)
	}
	return terms, nil
}

func (c *Client) ListItems(ctx context.Context, contentType, status string) ([]models.ContentItem, error) {
	base, err := c.typeBase(ctx, contentType)
	if err != nil {
		return nil, err
	}
	query := c.editContext(url.Values{"orderby": {"id"}, "order": {"asc"}})
	if status != "" {
		query.Set("status", status)
	}
	raw, err := getAll[map[string]any](ctx, c, corePrefix+base, query)
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", contentType, err)
	}
	items := make([]models.ContentItem, len(raw))
	for i, r := range raw {
		items[i] = contentItem(contentType, r)
	}
	return items, nil
}

func (c *Client) GetItem(ctx context.Context, contentType string, id int64) (models.ContentItem, error) {
	base, err := c.typeBase(ctx, contentType)
	if err != nil {
		return models.ContentItem{}, err
	}
	var raw map[string]any
	path := corePrefix + base + "/" + strconv.FormatInt(id, 10)
	if _, err := c.get(ctx, path, c.editContext(url.Values{}), &raw); err != nil {
		return models.ContentItem{}, fmt.Errorf("get %s %d: %w", contentType, id, err)
	}
	return contentItem(contentType, raw), nil
}

type wpMedia struct {
	ID           json.Number `json:"id"`
	SourceURL    string      `json:"source_url"`
	MediaDetails struct {
		Width  json.Number `json:"width"`
		Height json.Number `json:"height"`
	} `json:"media_details"`
}

func (c *Client) GetImage(ctx context.Context, id int64) (models.Image, bool, error) {
	if id <= 0 {
		return models.Image{}, false, nil
	}
	var media wpMedia
	_, err := c.get(ctx, corePrefix+"media/"+strconv.FormatInt(id, 10), nil, &media)
	if errors.Is(err, cms.ErrNotFound) {
		return models.Image{}, false, nil
	}
	if err != nil {
		return models.Image{}, false, fmt.Errorf("get media %d: %w", id, err)
	}
	return models.Image{
		ID:     id,
		URL:    media.SourceURL,
		Width:  number(media.MediaDetails.Width),
		Height: number(media.MediaDetails.Height),
	}, true, nil
}

// Meta reads the first value of a meta key from the item's meta object.
func (c *Client) Meta(_ context.Context, item models.ContentItem, key string) (any, bool, error) {
	v, ok := item.Meta[key]
	return v, ok, nil
}

func (c *Client) ItemTerms(ctx context.Context, item models.ContentItem, taxonomy string) ([]models.TermRef, error) {
	base, err := c.taxonomyBase(ctx, taxonomy)
	if err != nil {
		return nil, err
	}
	query := url.Values{"post": {strconv.FormatInt(item.ID, 10)}}
	raw, err := getAll[wpTerm](ctx, c, corePrefix+base, query)
	if err != nil {
		return nil, fmt.Errorf("terms of %s %d in %s: %w", item.Type, item.ID, taxonomy, err)
	}
	refs := make([]models.TermRef, len(raw))
	for i, t := range raw {
		refs[i] = models.TermRef{ID: number(t.ID), Name: t.Name, Slug: t.Slug}
	}
	return refs, nil
}

func number(n json.Number) int64 {
	i, _ := converter.ConvertInterfaceToInt64(n)
	return i
}

// objectOrEmpty decodes a JSON object. WordPress sends [] or false for
// objects with no entries, which become an empty map.
func objectOrEmpty(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	_ = decoder.Decode(&out)
	return out
}

// singleValues unwraps meta stored without the single flag, which WordPress
// sends as a one element list of scalars. Registered array meta and lists
// holding more than one value or compound values are kept whole.
func singleValues(meta map[string]any) map[string]any {
	for k, v := range meta {
		list, ok := v.([]any)
		if !ok || len(list) != 1 {
			continue
		}
		switch list[0].(type) {
		case []any, map[string]any:
		default:
			meta[k] = list[0]
		}
	}
	return meta
}
