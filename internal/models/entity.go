package models

import "strconv"

const StatusPublish = "publish"

type TaxonomyInfo struct {
	Slug     string
	Name     string
	RestBase string
	Types    []string
}

type ContentTypeInfo struct {
	Slug       string
	Name       string
	RestBase   string
	Taxonomies []string
}

// Term is one value of a taxonomy as read from the content system.
type Term struct {
	ID          int64
	Taxonomy    string
	Name        string
	Slug        string
	Description string
	Parent      int64
	Count       int64
	Meta        map[string]any
}

// Property returns the term attribute used for ordering. Numeric attributes
// are rendered in base 10 so ordering stays a plain string comparison.
func (t Term) Property(field string) (string, bool) {
	switch field {
	case "term_id", "id":
		return strconv.FormatInt(t.ID, 10), true
	case "name":
		return t.Name, true
	case "slug":
		return t.Slug, true
	case "description":
		return t.Description, true
	case "parent":
		return strconv.FormatInt(t.Parent, 10), true
	case "count":
		return strconv.FormatInt(t.Count, 10), true
	case "taxonomy":
		return t.Taxonomy, true
	}
	return "", false
}

// TermRef is a term attached to a content item.
type TermRef struct {
	ID   int64
	Name string
	Slug string
}

// ContentItem is a typed content record. Properties hold intrinsic attributes
// by name, Meta holds key-value metadata and CustomFields the raw custom
// fields payload when the content system returns it inline.
type ContentItem struct {
	ID             int64
	Type           string
	Status         string
	PrimaryImageID int64
	Properties     map[string]any
	Meta           map[string]any
	CustomFields   map[string]any
}

func (c ContentItem) Published() bool {
	return c.Status == StatusPublish
}

type Image struct {
	ID     int64
	URL    string
	Width  int64
	Height int64
}
