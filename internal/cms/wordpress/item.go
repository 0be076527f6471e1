package wordpress

import (
	"encoding/json"

	"firesync/internal/models"
)

// postAliases maps WP_Post property names onto REST response keys so either
// spelling can be selected as an intrinsic field.
var postAliases = map[string]string{
	"ID":                "id",
	"post_title":        "title",
	"post_content":      "content",
	"post_excerpt":      "excerpt",
	"post_status":       "status",
	"post_name":         "slug",
	"post_date":         "date",
	"post_date_gmt":     "date_gmt",
	"post_modified":     "modified",
	"post_modified_gmt": "modified_gmt",
	"post_author":       "author",
	"post_parent":       "parent",
	"post_type":         "type",
	"post_password":     "password",
	"menu_order":        "menu_order",
	"comment_status":    "comment_status",
	"ping_status":       "ping_status",
	"guid":              "guid",
}

var nonPropertyKeys = map[string]bool{
	"meta":   true,
	"acf":    true,
	"_links": true,
}

func contentItem(contentType string, raw map[string]any) models.ContentItem {
	item := models.ContentItem{
		Type:       contentType,
		Properties: map[string]any{},
		Meta:       map[string]any{},
	}

	for key, value := range raw {
		if nonPropertyKeys[key] {
			continue
		}
		item.Properties[key] = flattenRendered(value)
	}
	for alias, key := range postAliases {
		if v, ok := item.Properties[key]; ok {
			item.Properties[alias] = v
		}
	}

	if id, ok := raw["id"].(json.Number); ok {
		item.ID = number(id)
	}
	if typ, ok := raw["type"].(string); ok && typ != "" {
		item.Type = typ
	}
	if status, ok := raw["status"].(string); ok {
		item.Status = status
	}
	if media, ok := raw["featured_media"].(json.Number); ok {
		item.PrimaryImageID = number(media)
	}
	if meta, ok := raw["meta"].(map[string]any); ok {
		item.Meta = singleValues(meta)
	}
	if acf, ok := raw["acf"].(map[string]any); ok {
		item.CustomFields = acf
	}
	return item
}

// flattenRendered turns {"raw": ..., "rendered": ...} objects into the raw
// value when present, else the rendered one.
func flattenRendered(value any) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	if raw, ok := obj["raw"]; ok {
		return raw
	}
	if rendered, ok := obj["rendered"]; ok {
		return rendered
	}
	return value
}
