package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"firesync/internal/cms"
	"firesync/internal/models"
)

// IsActive reports whether an ACF REST namespace is registered on the site.
func (c *Client) IsActive(ctx context.Context) bool {
	namespaces, err := c.namespaces(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("action", "acf_check").Msg("Could not read REST namespaces, treating custom fields as inactive")
		return false
	}
	for _, ns := range namespaces {
		if strings.HasPrefix(ns, "acf/") {
			return true
		}
	}
	return false
}

func (c *Client) namespaces(ctx context.Context) ([]string, error) {
	if cached, ok := c.cache.Get(cacheKeyNamespaces); ok {
		return cached.([]string), nil
	}
	var index struct {
		Namespaces []string `json:"namespaces"`
	}
	if _, err := c.get(ctx, "", nil, &index); err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKeyNamespaces, index.Namespaces)
	return index.Namespaces, nil
}

// GetFieldValue reads a field from the acf object returned with the item.
func (c *Client) GetFieldValue(_ context.Context, item models.ContentItem, key string) (any, bool, error) {
	if item.CustomFields == nil {
		return nil, false, nil
	}
	v, ok := item.CustomFields[key]
	return v, ok, nil
}

// ListFieldsForType samples the most recent item of the type and describes
// the keys of its acf object.
func (c *Client) ListFieldsForType(ctx context.Context, contentType string) ([]cms.FieldInfo, error) {
	sample, err := c.sampleItem(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("sample %s for custom fields: %w", contentType, err)
	}
	if sample == nil {
		return []cms.FieldInfo{}, nil
	}

	acf, _ := sample["acf"].(map[string]any)
	fields := make([]cms.FieldInfo, 0, len(acf))
	for key, value := range acf {
		fields = append(fields, cms.FieldInfo{Key: key, Label: label(key), Type: valueType(value)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	return fields, nil
}

func label(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func valueType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "true_false"
	case json.Number:
		return "number"
	case string:
		return "text"
	case []any:
		return "repeater"
	case map[string]any:
		return "group"
	default:
		return "unknown"
	}
}
