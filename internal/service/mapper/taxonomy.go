package mapper

import (
	"sort"
	"strings"

	"firesync/internal/models"
	"firesync/pkg/converter"
)

const DefaultOrderField = "name"

// MapTaxonomy builds the single combined document of a taxonomy:
// {taxonomy: slug, terms: [...]} with terms ordered per the target.
func MapTaxonomy(target models.TaxonomyTarget, terms []models.Term) *models.SyncDocument {
	sorted := SortTerms(terms, target.OrderField, target.OrderDirection)
	mapped := make([]models.Value, len(sorted))
	for i, term := range sorted {
		mapped[i] = MapTerm(term)
	}
	return models.NewSyncDocument().
		Set("taxonomy", models.String(target.Slug)).
		Set("terms", models.Array(mapped...))
}

// MapTerm maps one term. Meta is always a Map, empty when the term has none.
func MapTerm(term models.Term) models.Value {
	meta := models.NewMap()
	for _, key := range converter.SortedKeys(term.Meta) {
		meta.Set(key, metaValue(term.Meta[key]))
	}
	return models.MapOf(models.NewMap().
		Set("term_id", models.Int(term.ID)).
		Set("name", models.String(term.Name)).
		Set("slug", models.String(term.Slug)).
		Set("description", models.String(term.Description)).
		Set("parent", models.Int(term.Parent)).
		Set("count", models.Int(term.Count)).
		Set("meta", models.MapOf(meta)))
}

func metaValue(v any) models.Value {
	if s, ok := v.(string); ok {
		return converter.NormalizeStoredString(s)
	}
	return converter.ToDocumentValue(v)
}

// SortTerms returns a copy of terms ordered by a plain string comparison of
// the order field. A comparison where either term lacks the field compares
// names instead.
func SortTerms(terms []models.Term, orderField string, direction models.SortDirection) []models.Term {
	if orderField == "" {
		orderField = DefaultOrderField
	}
	sorted := make([]models.Term, len(terms))
	copy(sorted, terms)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		av, aok := termField(a, orderField)
		bv, bok := termField(b, orderField)
		if !aok || !bok {
			av, bv = a.Name, b.Name
		}
		if direction == models.SortDescending {
			return strings.Compare(bv, av) < 0
		}
		return strings.Compare(av, bv) < 0
	})
	return sorted
}

// termField looks up an intrinsic term attribute, then a scalar meta value.
func termField(term models.Term, field string) (string, bool) {
	if v, ok := term.Property(field); ok {
		return v, true
	}
	raw, ok := term.Meta[field]
	if !ok {
		return "", false
	}
	switch v := converter.ToDocumentValue(raw); v.Kind() {
	case models.KindString:
		s, _ := v.AsString()
		return s, true
	case models.KindInt, models.KindFloat, models.KindBool:
		out, err := v.MarshalJSON()
		return string(out), err == nil
	}
	return "", false
}
