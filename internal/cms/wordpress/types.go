package wordpress

import (
	"context"
	"fmt"
	"sort"

	"firesync/internal/models"
)

type wpTaxonomy struct {
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	RestBase string   `json:"rest_base"`
	Types    []string `json:"types"`
}

type wpType struct {
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	RestBase   string   `json:"rest_base"`
	Taxonomies []string `json:"taxonomies"`
}

func (c *Client) taxonomies(ctx context.Context) (map[string]wpTaxonomy, error) {
	if cached, ok := c.cache.Get(cacheKeyTaxonomies); ok {
		return cached.(map[string]wpTaxonomy), nil
	}
	var listing map[string]wpTaxonomy
	if _, err := c.get(ctx, corePrefix+"taxonomies", nil, &listing); err != nil {
		return nil, fmt.Errorf("list taxonomies: %w", err)
	}
	for key, tax := range listing {
		if tax.Slug == "" {
			tax.Slug = key
		}
		if tax.RestBase == "" {
			tax.RestBase = tax.Slug
		}
		listing[key] = tax
	}
	c.cache.SetDefault(cacheKeyTaxonomies, listing)
	return listing, nil
}

func (c *Client) contentTypes(ctx context.Context) (map[string]wpType, error) {
	if cached, ok := c.cache.Get(cacheKeyTypes); ok {
		return cached.(map[string]wpType), nil
	}
	var listing map[string]wpType
	if _, err := c.get(ctx, corePrefix+"types", nil, &listing); err != nil {
		return nil, fmt.Errorf("list content types: %w", err)
	}
	for key, typ := range listing {
		if typ.Slug == "" {
			typ.Slug = key
		}
		if typ.RestBase == "" {
			typ.RestBase = typ.Slug
		}
		listing[key] = typ
	}
	c.cache.SetDefault(cacheKeyTypes, listing)
	return listing, nil
}

func (c *Client) ListTaxonomies(ctx context.Context) ([]models.TaxonomyInfo, error) {
	listing, err := c.taxonomies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.TaxonomyInfo, 0, len(listing))
	for _, tax := range listing {
		out = append(out, models.TaxonomyInfo{Slug: tax.Slug, Name: tax.Name, RestBase: tax.RestBase, Types: tax.Types})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (c *Client) TaxonomyExists(ctx context.Context, slug string) (bool, error) {
	listing, err := c.taxonomies(ctx)
	if err != nil {
		return false, err
	}
	_, ok := listing[slug]
	return ok, nil
}

func (c *Client) ListContentTypes(ctx context.Context) ([]models.ContentTypeInfo, error) {
	listing, err := c.contentTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ContentTypeInfo, 0, len(listing))
	for _, typ := range listing {
		out = append(out, models.ContentTypeInfo{Slug: typ.Slug, Name: typ.Name, RestBase: typ.RestBase, Taxonomies: typ.Taxonomies})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (c *Client) ContentTypeExists(ctx context.Context, slug string) (bool, error) {
	listing, err := c.contentTypes(ctx)
	if err != nil {
		return false, err
	}
	_, ok := listing[slug]
	return ok, nil
}

func (c *Client) taxonomyBase(ctx context.Context, slug string) (string, error) {
	listing, err := c.taxonomies(ctx)
	if err != nil {
		return "", err
	}
	tax, ok := listing[slug]
	if !ok {
		return "", fmt.Errorf("taxonomy %q: %w", slug, errUnknownType)
	}
	return tax.RestBase, nil
}

func (c *Client) typeBase(ctx context.Context, slug string) (string, error) {
	listing, err := c.contentTypes(ctx)
	if err != nil {
		return "", err
	}
	typ, ok := listing[slug]
	if !ok {
		return "", fmt.Errorf("content type %q: %w", slug, errUnknownType)
	}
	return typ.RestBase, nil
}
