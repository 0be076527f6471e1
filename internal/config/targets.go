package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"firesync/internal/models"
	"firesync/pkg/log"
)

// TargetStore holds the enabled sync targets and persists changes to the
// configuration file viper loaded, when there is one.
type TargetStore struct {
	mu     sync.RWMutex
	v      *viper.Viper
	cfg    *Config
	logger zerolog.Logger
}

func NewTargetStore(v *viper.Viper, cfg *Config) *TargetStore {
	return &TargetStore{
		v:      v,
		cfg:    cfg,
		logger: log.Logger.With().Str("component", "target_store").Logger(),
	}
}

func (s *TargetStore) TaxonomyTargets() []models.TaxonomyTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TaxonomyTarget, 0, len(s.cfg.Taxonomies))
	for _, t := range s.cfg.Taxonomies {
		out = append(out, t.Target())
	}
	return out
}

func (s *TargetStore) ContentTypeTargets() []models.ContentTypeTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ContentTypeTarget, 0, len(s.cfg.ContentTypes))
	for _, c := range s.cfg.ContentTypes {
		target, err := c.Target()
		if err != nil {
			s.logger.Error().Err(err).Str("content_type", c.Slug).Msg("Skipping content type with invalid fields")
			continue
		}
		out = append(out, target)
	}
	return out
}

func (s *TargetStore) TaxonomyTarget(slug string) (models.TaxonomyTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.taxonomyIndex(slug); i >= 0 {
		return s.cfg.Taxonomies[i].Target(), true
	}
	return models.TaxonomyTarget{}, false
}

func (s *TargetStore) ContentTypeTarget(slug string) (models.ContentTypeTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.contentTypeIndex(slug)
	if i < 0 {
		return models.ContentTypeTarget{}, false
	}
	target, err := s.cfg.ContentTypes[i].Target()
	if err != nil {
		s.logger.Error().Err(err).Str("content_type", slug).Msg("Content type has invalid fields")
		return models.ContentTypeTarget{}, false
	}
	return target, true
}

// EnableTaxonomy adds the taxonomy or replaces its ordering settings.
func (s *TargetStore) EnableTaxonomy(target TaxonomyConfig) error {
	if target.Slug == "" {
		return &ConfigurationError{Message: "taxonomy slug is required"}
	}
	target.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.taxonomyIndex(target.Slug); i >= 0 {
		s.cfg.Taxonomies[i] = target
	} else {
		s.cfg.Taxonomies = append(s.cfg.Taxonomies, target)
	}
	return s.persist()
}

func (s *TargetStore) DisableTaxonomy(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taxonomyIndex(slug)
	if i < 0 {
		return nil
	}
	s.cfg.Taxonomies = slices.Delete(s.cfg.Taxonomies, i, i+1)
	return s.persist()
}

// EnableContentType adds the content type or replaces its field selection.
func (s *TargetStore) EnableContentType(target ContentTypeConfig) error {
	if target.Slug == "" {
		return &ConfigurationError{Message: "content type slug is required"}
	}
	if err := target.parse(); err != nil {
		return &ConfigurationError{Message: fmt.Sprintf("content type %q: %s", target.Slug, err), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.contentTypeIndex(target.Slug); i >= 0 {
		s.cfg.ContentTypes[i] = target
	} else {
		s.cfg.ContentTypes = append(s.cfg.ContentTypes, target)
	}
	return s.persist()
}

func (s *TargetStore) DisableContentType(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.contentTypeIndex(slug)
	if i < 0 {
		return nil
	}
	s.cfg.ContentTypes = slices.Delete(s.cfg.ContentTypes, i, i+1)
	return s.persist()
}

// ContentTypeConfig returns a copy of the configured content type as written
// in the configuration file.
func (s *TargetStore) ContentTypeConfig(slug string) (ContentTypeConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.contentTypeIndex(slug)
	if i < 0 {
		return ContentTypeConfig{}, false
	}
	ct := s.cfg.ContentTypes[i]
	ct.Fields = append([]string(nil), ct.Fields...)
	ct.FieldMapping = append([]FieldRename(nil), ct.FieldMapping...)
	return ct, true
}

// UpdateFields replaces the field selection of an enabled content type with
// the result of update. Renames of fields no longer selected are dropped.
func (s *TargetStore) UpdateFields(slug string, update func(fields []string) []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.contentTypeIndex(slug)
	if i < 0 {
		return &ConfigurationError{Message: fmt.Sprintf("content type %q is not enabled", slug)}
	}

	next := s.cfg.ContentTypes[i]
	next.Fields = dedupe(update(append([]string(nil), next.Fields...)))
	if err := next.parse(); err != nil {
		return &ConfigurationError{Message: fmt.Sprintf("content type %q: %s", slug, err), Err: err}
	}
	next.FieldMapping = slices.DeleteFunc(append([]FieldRename(nil), next.FieldMapping...), func(r FieldRename) bool {
		return !slices.Contains(next.Fields, r.Field)
	})

	s.cfg.ContentTypes[i] = next
	return s.persist()
}

func dedupe(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// SetFieldMapping renames a selected field in the destination document. An
// empty destination removes the rename.
func (s *TargetStore) SetFieldMapping(slug, field, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.contentTypeIndex(slug)
	if i < 0 {
		return &ConfigurationError{Message: fmt.Sprintf("content type %q is not enabled", slug)}
	}
	s.cfg.ContentTypes[i].setRename(field, destination)
	return s.persist()
}

// Prune removes targets whose type no longer exists in the content system.
func (s *TargetStore) Prune(pruned []models.PrunedTarget) error {
	if len(pruned) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range pruned {
		switch p.Kind {
		case models.TargetTaxonomy:
			if i := s.taxonomyIndex(p.Slug); i >= 0 {
				s.cfg.Taxonomies = slices.Delete(s.cfg.Taxonomies, i, i+1)
			}
		case models.TargetContentType:
			if i := s.contentTypeIndex(p.Slug); i >= 0 {
				s.cfg.ContentTypes = slices.Delete(s.cfg.ContentTypes, i, i+1)
			}
		}
	}
	s.logger.Info().Interface("pruned", pruned).Msg("Removed stale targets")
	return s.persist()
}

func (s *TargetStore) taxonomyIndex(slug string) int {
	return slices.IndexFunc(s.cfg.Taxonomies, func(t TaxonomyConfig) bool { return t.Slug == slug })
}

func (s *TargetStore) contentTypeIndex(slug string) int {
	return slices.IndexFunc(s.cfg.ContentTypes, func(c ContentTypeConfig) bool { return c.Slug == slug })
}

// persist must be called with the write lock held.
func (s *TargetStore) persist() error {
	taxonomies := make([]map[string]any, 0, len(s.cfg.Taxonomies))
	for _, t := range s.cfg.Taxonomies {
		taxonomies = append(taxonomies, map[string]any{
			"slug":            t.Slug,
			"order_field":     t.OrderField,
			"order_direction": t.OrderDirection,
		})
	}
	contentTypes := make([]map[string]any, 0, len(s.cfg.ContentTypes))
	for _, c := range s.cfg.ContentTypes {
		entry := map[string]any{
			"slug":   c.Slug,
			"fields": append([]string{}, c.Fields...),
		}
		if len(c.FieldMapping) > 0 {
			mapping := make([]map[string]any, 0, len(c.FieldMapping))
			for _, r := range c.FieldMapping {
				mapping = append(mapping, map[string]any{"field": r.Field, "destination": r.Destination})
			}
			entry["field_mapping"] = mapping
		}
		contentTypes = append(contentTypes, entry)
	}
	s.v.Set("taxonomies", taxonomies)
	s.v.Set("content_types", contentTypes)

	file := s.v.ConfigFileUsed()
	if file == "" {
		s.logger.Debug().Msg("No configuration file loaded, keeping targets in memory")
		return nil
	}
	err := UpdateFile(file, func(fv *viper.Viper) {
		fv.Set("taxonomies", taxonomies)
		fv.Set("content_types", contentTypes)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("file", file).Msg("Failed to persist targets")
		return fmt.Errorf("persist targets: %w", err)
	}
	return nil
}
