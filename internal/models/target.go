package models

import "strings"

type TargetKind string

const (
	TargetTaxonomy    TargetKind = "taxonomy"
	TargetContentType TargetKind = "content_type"
)

type SortDirection string

const (
	SortAscending  SortDirection = "ASC"
	SortDescending SortDirection = "DESC"
)

// ParseSortDirection accepts asc/desc in any case. Anything else is ascending.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortDescending)) {
		return SortDescending
	}
	return SortAscending
}

type TaxonomyTarget struct {
	Slug           string
	OrderField     string
	OrderDirection SortDirection
}

type ContentTypeTarget struct {
	Slug   string
	Fields []FieldDescriptor
	Rename map[string]string
}

// DestinationKey is the rename-map entry for the field, or the field's own name.
func (t ContentTypeTarget) DestinationKey(field FieldDescriptor) string {
	if dest, ok := t.Rename[field.Name]; ok && dest != "" {
		return dest
	}
	return field.Name
}

// Selects reports whether a field of the given kind and key is configured.
func (t ContentTypeTarget) Selects(kind FieldKind, key string) bool {
	for _, f := range t.Fields {
		if f.Kind == kind && (kind == FieldPrimaryImage || f.Key == key) {
			return true
		}
	}
	return false
}

// PrunedTarget records a configured target removed because its type no longer exists.
type PrunedTarget struct {
	Kind TargetKind `json:"kind" yaml:"kind"`
	Slug string     `json:"slug" yaml:"slug"`
}
