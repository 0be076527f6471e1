package config

import (
	"maps"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesync/internal/models"
)

type configTestTable struct {
	name        string
	setFields   configFields
	errContains string
}

type configFields map[string]interface{}

var validAppConfig = configFields{
	"id":                             "test",
	"concurrency":                    2,
	"firestore.project_id":           "demo",
	"firestore.database_id":          "(default)",
	"firestore.transport":            "auto",
	"firestore.emulator.enabled":     true,
	"firestore.emulator.host":        "127.0.0.1",
	"firestore.emulator.port":        8080,
	"firestore.breaker.enabled":      true,
	"firestore.breaker.max_requests": 1,
	"firestore.breaker.interval":     "1m",
	"firestore.breaker.timeout":      "5s",
	"cms.base_url":                   "http://wordpress.local",
	"cms.per_page":                   100,
	"postgres.address":               "localhost",
	"postgres.port":                  5432,
	"postgres.username":              "u",
	"postgres.password":              "p",
	"postgres.db_name":               "d",
	"postgres.max_connections":       "10",
	"webhook.listen":                 ":8089",
	"taxonomies":                     []configFields{validTaxonomyConfig},
	"content_types":                  []configFields{validContentTypeConfig},
}

var validTaxonomyConfig = configFields{
	"slug":            "genre",
	"order_field":     "name",
	"order_direction": "asc",
}

var validContentTypeConfig = configFields{
	"slug":   "book",
	"fields": []string{"post_title", "meta_isbn"},
}

func deleteFromMap(m configFields, keys ...string) configFields {
	clonedMap := maps.Clone(m)
	for _, argument := range keys {
		delete(clonedMap, argument)
	}

	return clonedMap
}

func updateAndReturnMap(m configFields, key string, value interface{}) configFields {
	clonedMap := maps.Clone(m)
	clonedMap[key] = value
	return clonedMap
}

func loadTestdata(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	viper.SetConfigFile(filepath.Join("testdata", "config.yaml"))
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadInConfig())

	cfg, err := NewConfig()
	require.NoError(t, err)
	return cfg
}

func TestConfigLoadFromYAML(t *testing.T) {
	cfg := loadTestdata(t)

	require.Equal(t, "test", cfg.ID)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 8, cfg.Concurrency)

	// Firestore
	require.Equal(t, "demo-project", cfg.Firestore.ProjectID)
	require.Equal(t, "(default)", cfg.Firestore.DatabaseID)
	require.Equal(t, 10*time.Second, cfg.Firestore.Timeout)
	require.Equal(t, "rest", cfg.Firestore.Transport)
	require.True(t, cfg.Firestore.Emulator.Enabled)
	require.Equal(t, "localhost", cfg.Firestore.Emulator.Host)
	require.Equal(t, 8080, cfg.Firestore.Emulator.Port)
	require.Equal(t, uint32(3), cfg.Firestore.Breaker.ConsecutiveFailures)
	require.Equal(t, 15*time.Second, cfg.Firestore.Breaker.Timeout)
	require.Equal(t, time.Minute, cfg.Firestore.Breaker.Interval)

	// CMS
	require.Equal(t, "http://wordpress.local/", cfg.CMS.BaseURL)
	require.Equal(t, "editor", cfg.CMS.Username)
	require.Equal(t, "abcd efgh ijkl", cfg.CMS.ApplicationPassword)
	require.Equal(t, 50, cfg.CMS.PerPage)
	require.Equal(t, DefaultTimeout, cfg.CMS.Timeout)

	// Postgres
	require.NotNil(t, cfg.Postgres)
	require.Equal(t, "localhost", cfg.Postgres.Address)
	require.Equal(t, 5432, cfg.Postgres.Port)
	require.Equal(t, "postgres", cfg.Postgres.Username)
	require.Equal(t, "firesync", cfg.Postgres.DBName)
	require.Equal(t, "disable", cfg.Postgres.SSLMode)
	require.Equal(t, 10, cfg.Postgres.MaxConnections)

	require.Equal(t, ":9090", cfg.Webhook.Listen)
	require.Equal(t, "s3cret", cfg.Webhook.Secret)
}

func TestConfigTargets(t *testing.T) {
	cfg := loadTestdata(t)

	require.Len(t, cfg.Taxonomies, 2)
	genre := cfg.Taxonomies[0].Target()
	assert.Equal(t, models.TaxonomyTarget{Slug: "genre", OrderField: "name", OrderDirection: models.SortDescending}, genre)

	category := cfg.Taxonomies[1].Target()
	assert.Equal(t, DefaultOrderField, category.OrderField)
	assert.Equal(t, models.SortAscending, category.OrderDirection)

	require.Len(t, cfg.ContentTypes, 2)
	book, err := cfg.ContentTypes[0].Target()
	require.NoError(t, err)
	require.Len(t, book.Fields, 5)
	assert.Equal(t, models.FieldIntrinsic, book.Fields[0].Kind)
	assert.Equal(t, models.FieldMetadata, book.Fields[1].Kind)
	assert.Equal(t, "isbn", book.Fields[1].Key)
	assert.Equal(t, models.FieldTaxonomy, book.Fields[2].Kind)
	assert.Equal(t, models.FieldCustom, book.Fields[3].Kind)
	assert.Equal(t, models.FieldPrimaryImage, book.Fields[4].Kind)
	assert.Equal(t, "title", book.DestinationKey(book.Fields[0]))
	assert.Equal(t, "cover", book.DestinationKey(book.Fields[4]))
	assert.Equal(t, "meta_isbn", book.DestinationKey(book.Fields[1]))
}

func TestFieldMappingKeepsIdentifierCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
firestore:
  project_id: demo
  emulator:
    enabled: true
cms:
  base_url: http://wordpress.local
content_types:
  - slug: landing
    fields: [post_title, meta_subTitle, acf_heroImage]
    field_mapping:
      - field: meta_subTitle
        destination: subtitle
      - field: acf_heroImage
        destination: hero
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	landing, err := cfg.ContentTypes[0].Target()
	require.NoError(t, err)
	require.Len(t, landing.Fields, 3)
	assert.Equal(t, "post_title", landing.DestinationKey(landing.Fields[0]))
	assert.Equal(t, "subtitle", landing.DestinationKey(landing.Fields[1]))
	assert.Equal(t, "hero", landing.DestinationKey(landing.Fields[2]))
}

func TestContentTypeTargetReportsInvalidFields(t *testing.T) {
	ct := ContentTypeConfig{Slug: "book", Fields: []string{"post_title", "taxonomy_"}}

	_, err := ct.Target()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "book")

	store := NewTargetStore(viper.New(), &Config{ContentTypes: []ContentTypeConfig{ct, {Slug: "page", Fields: []string{"post_title"}}}})
	targets := store.ContentTypeTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "page", targets[0].Slug)
	_, ok := store.ContentTypeTarget("book")
	assert.False(t, ok)
}

func TestConfigurationValidation(t *testing.T) {
	t.Run("returns config without error when config is valid", func(t *testing.T) {
		viper.Reset()
		for k, v := range validAppConfig {
			viper.Set(k, v)
		}

		cfg, err := NewConfig()
		require.NoError(t, err)
		require.NotNil(t, cfg)
	})

	t.Run("postgres is optional", func(t *testing.T) {
		viper.Reset()
		for k, v := range deleteFromMap(validAppConfig,
			"postgres.address", "postgres.port", "postgres.username",
			"postgres.password", "postgres.db_name", "postgres.max_connections") {
			viper.Set(k, v)
		}

		cfg, err := NewConfig()
		require.NoError(t, err)
		require.Nil(t, cfg.Postgres)
	})

	t.Run("Return error when no config loaded", func(t *testing.T) {
		viper.Reset()
		viper.SetConfigType("yaml")

		_, err := NewConfig()
		require.Error(t, err)
		require.ErrorIs(t, err, ErrConfiguration)
		require.Contains(t, err.Error(), "is required")
	})

	t.Run("It fails on all required field if any is missing", func(t *testing.T) {
		tests := []configTestTable{
			{
				name:        "missing id",
				setFields:   deleteFromMap(validAppConfig, "id"),
				errContains: "Config.ID is required",
			},
			{
				name:        "concurrency not int",
				setFields:   updateAndReturnMap(validAppConfig, "concurrency", "a"),
				errContains: "cannot parse 'concurrency' as int",
			},
			{
				name:        "concurrency too low",
				setFields:   updateAndReturnMap(validAppConfig, "concurrency", 0),
				errContains: "Config.Concurrency must be at least 1",
			},
			{
				name:        "invalid log level",
				setFields:   updateAndReturnMap(validAppConfig, "log_level", "loud"),
				errContains: "Config.LogLevel must be one of",
			},
			{
				name:        "missing firestore.project_id",
				setFields:   deleteFromMap(validAppConfig, "firestore.project_id"),
				errContains: "Config.Firestore.ProjectID is required",
			},
			{
				name:        "missing credentials outside the emulator",
				setFields:   updateAndReturnMap(validAppConfig, "firestore.emulator.enabled", false),
				errContains: "Config.Firestore.ServiceAccountFile or ServiceAccountJSON is required unless the emulator is enabled",
			},
			{
				name:        "service account file does not exist",
				setFields:   updateAndReturnMap(validAppConfig, "firestore.service_account_file", "testdata/missing.json"),
				errContains: "Config.Firestore.ServiceAccountFile must be an existing file",
			},
			{
				name:        "invalid emulator host",
				setFields:   updateAndReturnMap(validAppConfig, "firestore.emulator.host", "sfg://a"),
				errContains: "Config.Firestore.Emulator.Host must be a valid hostname or IP address",
			},
			{
				name:        "invalid emulator port",
				setFields:   updateAndReturnMap(validAppConfig, "firestore.emulator.port", 70000),
				errContains: "Config.Firestore.Emulator.Port must be less than 65536",
			},
			{
				name:        "unknown transport",
				setFields:   updateAndReturnMap(validAppConfig, "firestore.transport", "grpc"),
				errContains: "Config.Firestore.Transport must be one of [auto native rest]",
			},
			{
				name:        "missing cms.base_url",
				setFields:   deleteFromMap(validAppConfig, "cms.base_url"),
				errContains: "Config.CMS.BaseURL is required",
			},
			{
				name:        "invalid cms.base_url",
				setFields:   updateAndReturnMap(validAppConfig, "cms.base_url", "not a url"),
				errContains: "Config.CMS.BaseURL must be a valid URL",
			},
			{
				name:        "application password required with a username",
				setFields:   updateAndReturnMap(validAppConfig, "cms.username", "editor"),
				errContains: "Config.CMS.ApplicationPassword is required",
			},
			{
				name:        "cms.per_page above the API limit",
				setFields:   updateAndReturnMap(validAppConfig, "cms.per_page", 500),
				errContains: "Config.CMS.PerPage must be at most 100",
			},
			{
				name:        "missing postgres.address",
				setFields:   deleteFromMap(validAppConfig, "postgres.address"),
				errContains: "Config.Postgres.Address is required",
			},
			{
				name:        "invalid postgres.address",
				setFields:   updateAndReturnMap(validAppConfig, "postgres.address", "sfg://a"),
				errContains: "Config.Postgres.Address must be a valid hostname or IP address",
			},
			{
				name:        "invalid postgres.port greater than 65536",
				setFields:   updateAndReturnMap(validAppConfig, "postgres.port", 70000),
				errContains: "Config.Postgres.Port must be less than 65536",
			},
			{
				name:        "invalid postgres.port less than 0",
				setFields:   updateAndReturnMap(validAppConfig, "postgres.port", -1),
				errContains: "Config.Postgres.Port must be greater than 0",
			},
			{
				name:        "invalid postgres.port",
				setFields:   updateAndReturnMap(validAppConfig, "postgres.port", "a"),
				errContains: "cannot parse 'postgres.port' as int",
			},
			{
				name:        "missing postgres.password",
				setFields:   deleteFromMap(validAppConfig, "postgres.password"),
				errContains: "Config.Postgres.Password is required",
			},
			{
				name:        "missing taxonomy slug",
				setFields:   updateAndReturnMap(validAppConfig, "taxonomies", []configFields{deleteFromMap(validTaxonomyConfig, "slug")}),
				errContains: "Config.Taxonomies[0].Slug is required",
			},
			{
				name:        "duplicated taxonomies",
				setFields:   updateAndReturnMap(validAppConfig, "taxonomies", []configFields{validTaxonomyConfig, validTaxonomyConfig}),
				errContains: "Config.Taxonomies must contain unique items",
			},
			{
				name: "invalid order direction",
				setFields: updateAndReturnMap(validAppConfig, "taxonomies",
					[]configFields{updateAndReturnMap(validTaxonomyConfig, "order_direction", "sideways")}),
				errContains: "Config.Taxonomies[0].OrderDirection must be one of [ASC DESC asc desc]",
			},
			{
				name: "duplicated content type fields",
				setFields: updateAndReturnMap(validAppConfig, "content_types",
					[]configFields{updateAndReturnMap(validContentTypeConfig, "fields", []string{"post_title", "post_title"})}),
				errContains: "Config.ContentTypes[0].Fields must contain unique items",
			},
			{
				name: "malformed field identifier",
				setFields: updateAndReturnMap(validAppConfig, "content_types",
					[]configFields{updateAndReturnMap(validContentTypeConfig, "fields", []string{"meta_"})}),
				errContains: "Config.ContentTypes[0].Fields",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				viper.Reset()
				for k, v := range tt.setFields {
					viper.Set(k, v)
				}

				_, err := NewConfig()

				require.Error(t, err)
				require.ErrorIs(t, err, ErrConfiguration)
				require.Contains(t, err.Error(), tt.errContains)
			})
		}
	})
}

func TestTargetStore(t *testing.T) {
	newStore := func(t *testing.T) (*TargetStore, *viper.Viper, string) {
		t.Helper()
		raw, err := os.ReadFile(filepath.Join("testdata", "config.yaml"))
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, raw, 0o600))

		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadInConfig())
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		return NewTargetStore(v, cfg), v, path
	}

	reload := func(t *testing.T, path string) *Config {
		t.Helper()
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadInConfig())
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		return cfg
	}

	t.Run("enables and persists a taxonomy", func(t *testing.T) {
		store, _, path := newStore(t)

		require.NoError(t, store.EnableTaxonomy(TaxonomyConfig{Slug: "post_tag", OrderDirection: "desc"}))

		target, ok := store.TaxonomyTarget("post_tag")
		require.True(t, ok)
		assert.Equal(t, DefaultOrderField, target.OrderField)
		assert.Equal(t, models.SortDescending, target.OrderDirection)

		cfg := reload(t, path)
		require.Len(t, cfg.Taxonomies, 3)
		assert.Equal(t, "post_tag", cfg.Taxonomies[2].Slug)
	})

	t.Run("enabling twice replaces the settings", func(t *testing.T) {
		store, _, _ := newStore(t)

		require.NoError(t, store.EnableTaxonomy(TaxonomyConfig{Slug: "genre", OrderField: "slug"}))

		targets := store.TaxonomyTargets()
		require.Len(t, targets, 2)
		assert.Equal(t, "slug", targets[0].OrderField)
	})

	t.Run("rejects malformed fields", func(t *testing.T) {
		store, _, _ := newStore(t)

		err := store.EnableContentType(ContentTypeConfig{Slug: "movie", Fields: []string{"taxonomy_"}})
		require.ErrorIs(t, err, ErrConfiguration)
		_, ok := store.ContentTypeTarget("movie")
		assert.False(t, ok)
	})

	t.Run("disables a content type", func(t *testing.T) {
		store, _, path := newStore(t)

		require.NoError(t, store.DisableContentType("page"))
		require.NoError(t, store.DisableContentType("unknown"))

		cfg := reload(t, path)
		require.Len(t, cfg.ContentTypes, 1)
		assert.Equal(t, "book", cfg.ContentTypes[0].Slug)
	})

	t.Run("sets and clears a field mapping", func(t *testing.T) {
		store, _, path := newStore(t)

		require.NoError(t, store.SetFieldMapping("book", "meta_isbn", "isbn"))
		require.NoError(t, store.SetFieldMapping("book", "featured_image", ""))

		target, ok := store.ContentTypeTarget("book")
		require.True(t, ok)
		assert.Equal(t, "isbn", target.Rename["meta_isbn"])
		_, renamed := target.Rename["featured_image"]
		assert.False(t, renamed)

		cfg := reload(t, path)
		assert.Equal(t, map[string]string{"post_title": "title", "meta_isbn": "isbn"}, cfg.ContentTypes[0].Renames())

		require.ErrorIs(t, store.SetFieldMapping("movie", "a", "b"), ErrConfiguration)
	})

	t.Run("updates the field selection", func(t *testing.T) {
		store, _, path := newStore(t)

		require.NoError(t, store.UpdateFields("book", func(fields []string) []string {
			return append(fields[1:], "meta_pages", "meta_pages", " ")
		}))

		ct, ok := store.ContentTypeConfig("book")
		require.True(t, ok)
		assert.Equal(t, []string{"meta_isbn", "taxonomy_genre", "acf_author", "featured_image", "meta_pages"}, ct.Fields)
		assert.Equal(t, []FieldRename{{Field: "featured_image", Destination: "cover"}}, ct.FieldMapping)

		target, ok := store.ContentTypeTarget("book")
		require.True(t, ok)
		require.Len(t, target.Fields, 5)
		assert.Equal(t, models.FieldMetadata, target.Fields[4].Kind)

		cfg := reload(t, path)
		assert.Equal(t, ct.Fields, cfg.ContentTypes[0].Fields)
	})

	t.Run("field updates require an enabled type and valid identifiers", func(t *testing.T) {
		store, _, _ := newStore(t)

		keep := func(fields []string) []string { return fields }
		require.ErrorIs(t, store.UpdateFields("movie", keep), ErrConfiguration)

		err := store.UpdateFields("book", func(fields []string) []string { return append(fields, "acf_") })
		require.ErrorIs(t, err, ErrConfiguration)
		ct, _ := store.ContentTypeConfig("book")
		assert.Len(t, ct.Fields, 5)
	})

	t.Run("returns a copy of the content type config", func(t *testing.T) {
		store, _, _ := newStore(t)

		ct, ok := store.ContentTypeConfig("book")
		require.True(t, ok)
		ct.Fields[0] = "changed"
		ct.FieldMapping[0].Destination = "changed"

		again, _ := store.ContentTypeConfig("book")
		assert.Equal(t, "post_title", again.Fields[0])
		assert.Equal(t, "title", again.Renames()["post_title"])

		_, ok = store.ContentTypeConfig("movie")
		assert.False(t, ok)
	})

	t.Run("prunes stale targets", func(t *testing.T) {
		store, _, path := newStore(t)

		require.NoError(t, store.Prune([]models.PrunedTarget{
			{Kind: models.TargetTaxonomy, Slug: "category"},
			{Kind: models.TargetContentType, Slug: "page"},
		}))

		assert.Len(t, store.TaxonomyTargets(), 1)
		assert.Len(t, store.ContentTypeTargets(), 1)

		cfg := reload(t, path)
		assert.Len(t, cfg.Taxonomies, 1)
		assert.Len(t, cfg.ContentTypes, 1)
	})

	t.Run("writes only the file contents and the targets", func(t *testing.T) {
		t.Setenv("FIRESYNC_CMS_APPLICATION_PASSWORD", "from-env-password")
		t.Setenv("FIRESYNC_WEBHOOK_SECRET", "from-env-secret")

		raw, err := os.ReadFile(filepath.Join("testdata", "config.yaml"))
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, raw, 0o600))

		v := viper.New()
		v.SetEnvPrefix("firesync")
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.Equal(t, "from-env-secret", cfg.Webhook.Secret)
		store := NewTargetStore(v, cfg)

		require.NoError(t, store.EnableTaxonomy(TaxonomyConfig{Slug: "post_tag"}))

		written, err := os.ReadFile(path)
		require.NoError(t, err)
		out := string(written)
		assert.Contains(t, out, "abcd efgh ijkl")
		assert.Contains(t, out, "s3cret")
		assert.NotContains(t, out, "from-env")
		assert.NotContains(t, out, "max_requests")
		assert.NotContains(t, out, "interval")
		assert.Contains(t, out, "post_tag")

		reloaded := reload(t, path)
		assert.Equal(t, 50, reloaded.CMS.PerPage)
		assert.Len(t, reloaded.Taxonomies, 3)
	})

	t.Run("keeps changes in memory without a config file", func(t *testing.T) {
		v := viper.New()
		cfg := &Config{}
		store := NewTargetStore(v, cfg)

		require.NoError(t, store.EnableTaxonomy(TaxonomyConfig{Slug: "genre"}))
		assert.Len(t, store.TaxonomyTargets(), 1)
	})
}
