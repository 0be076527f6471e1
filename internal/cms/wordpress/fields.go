package wordpress

import (
	"context"
	"fmt"
	"net/url"
	"sort"
)

// IntrinsicProperties lists the post property names that can be selected as
// intrinsic fields, sorted.
func IntrinsicProperties() []string {
	names := make([]string, 0, len(postAliases))
	for name := range postAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListMetaKeysForType samples the most recent item of the type and returns
// the keys of its registered meta, sorted.
func (c *Client) ListMetaKeysForType(ctx context.Context, contentType string) ([]string, error) {
	sample, err := c.sampleItem(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("sample %s for meta keys: %w", contentType, err)
	}
	keys := []string{}
	if sample == nil {
		return keys, nil
	}
	meta, _ := sample["meta"].(map[string]any)
	for key := range meta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// sampleItem returns the raw JSON of the most recent item of the type, or nil
// when the type has none.
func (c *Client) sampleItem(ctx context.Context, contentType string) (map[string]any, error) {
	base, err := c.typeBase(ctx, contentType)
	if err != nil {
		return nil, err
	}
	var sample []map[string]any
	query := c.editContext(url.Values{"per_page": {"1"}})
	if _, err := c.get(ctx, corePrefix+base, query, &sample); err != nil {
		return nil, err
	}
	if len(sample) == 0 {
		return nil, nil
	}
	return sample[0], nil
}
