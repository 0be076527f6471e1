package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesync/internal/models"
)

func names(terms []models.Term) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Name
	}
	return out
}

func TestSortTerms(t *testing.T) {
	terms := []models.Term{
		{ID: 3, Name: "Charlie", Slug: "c", Count: 9, Meta: map[string]any{"rank": "2"}},
		{ID: 1, Name: "Alpha", Slug: "z", Count: 10},
		{ID: 2, Name: "Bravo", Slug: "m", Count: 1, Meta: map[string]any{"rank": "1"}},
	}

	tests := []struct {
		name      string
		field     string
		direction models.SortDirection
		expected  []string
	}{
		{name: "default is name", field: "", direction: models.SortAscending, expected: []string{"Alpha", "Bravo", "Charlie"}},
		{name: "slug descending", field: "slug", direction: models.SortDescending, expected: []string{"Alpha", "Bravo", "Charlie"}},
		{name: "count is lexical", field: "count", direction: models.SortAscending, expected: []string{"Bravo", "Alpha", "Charlie"}},
		{name: "term_id", field: "term_id", direction: models.SortAscending, expected: []string{"Alpha", "Bravo", "Charlie"}},
		{name: "meta field with fallback", field: "rank", direction: models.SortAscending, expected: []string{"Alpha", "Bravo", "Charlie"}},
		{name: "unknown field falls back to name", field: "weight", direction: models.SortDescending, expected: []string{"Charlie", "Bravo", "Alpha"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(SortTerms(terms, tt.field, tt.direction)))
		})
	}
	assert.Equal(t, "Charlie", terms[0].Name, "input is not reordered")
}

func TestSortTermsMissingFieldComparesNamesOnly(t *testing.T) {
	terms := []models.Term{
		{Name: "b", Meta: map[string]any{"rank": "1"}},
		{Name: "a"},
	}

	assert.NotPanics(t, func() {
		assert.Equal(t, []string{"a", "b"}, names(SortTerms(terms, "rank", models.SortAscending)))
	})
}

func TestMapTaxonomy(t *testing.T) {
	terms := []models.Term{
		{ID: 2, Name: "Events", Slug: "events", Description: "d", Parent: 1, Count: 4,
			Meta: map[string]any{"color": "red", "config": `{"featured":true,"ids":[1,2]}`}},
		{ID: 1, Name: "Archive", Slug: "archive"},
	}

	doc := MapTaxonomy(models.TaxonomyTarget{Slug: "category", OrderField: "name", OrderDirection: models.SortAscending}, terms)

	assert.Equal(t, []string{"taxonomy", "terms"}, doc.Keys())
	list, ok := field(t, doc, "terms").AsArray()
	require.True(t, ok)
	require.Len(t, list, 2)

	first, _ := list[0].AsMap()
	assert.Equal(t, []string{"term_id", "name", "slug", "description", "parent", "count", "meta"}, first.Keys())
	emptyMeta, _ := first.Get("meta")
	assert.Equal(t, models.KindMap, emptyMeta.Kind(), "empty meta is a map")

	second, _ := list[1].AsMap()
	meta, _ := second.Get("meta")
	metaMap, ok := meta.AsMap()
	require.True(t, ok)
	color, _ := metaMap.Get("color")
	assert.True(t, color.Equal(models.String("red")))
	config, _ := metaMap.Get("config")
	expected := models.MapOf(models.NewMap().
		Set("featured", models.Bool(true)).
		Set("ids", models.Array(models.Int(1), models.Int(2))))
	assert.True(t, config.Equal(expected))
}

func TestMapTaxonomyWithNoTerms(t *testing.T) {
	doc := MapTaxonomy(models.TaxonomyTarget{Slug: "tag"}, nil)

	terms := field(t, doc, "terms")
	assert.Equal(t, models.KindArray, terms.Kind())
}
