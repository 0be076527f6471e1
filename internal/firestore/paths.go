package firestore

import (
	"fmt"
	"strconv"
)

const (
	TaxonomiesCollection     = "taxonomies"
	ContentTypesCollection   = "post_types"
	ContentItemsCollection   = "posts"
	TestConnectionCollection = "test-connection"
)

// TaxonomyPath addresses the combined document of one taxonomy.
func TaxonomyPath(slug string) string {
	return TaxonomiesCollection + "/" + slug
}

// ContentItemPath addresses the document of one content item.
func ContentItemPath(contentType string, id int64) string {
	return ContentTypesCollection + "/" + contentType + "/" + ContentItemsCollection + "/" + strconv.FormatInt(id, 10)
}

// TestDocumentPath addresses a connection test document named after the
// given unix timestamp.
func TestDocumentPath(unix int64) string {
	return fmt.Sprintf("%s/test-%d", TestConnectionCollection, unix)
}
