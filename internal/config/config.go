package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"firesync/internal/models"
)

const (
	DefaultConcurrency   = 4
	DefaultDatabaseID    = "(default)"
	DefaultEmulatorHost  = "localhost"
	DefaultEmulatorPort  = 8080
	DefaultTimeout       = 30 * time.Second
	DefaultTransport     = "auto"
	DefaultPerPage       = 100
	DefaultOrderField    = "name"
	DefaultWebhookListen = ":8089"
)

type Config struct {
	ID           string              `mapstructure:"id" json:"id" yaml:"id" validate:"required"`
	LogLevel     string              `mapstructure:"log_level" json:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Concurrency  int                 `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency" validate:"gte=1,lte=64"`
	Firestore    Firestore           `mapstructure:"firestore" json:"firestore" yaml:"firestore"`
	CMS          CMS                 `mapstructure:"cms" json:"cms" yaml:"cms"`
	Taxonomies   []TaxonomyConfig    `mapstructure:"taxonomies" json:"taxonomies" yaml:"taxonomies" validate:"unique=Slug,dive"`
	ContentTypes []ContentTypeConfig `mapstructure:"content_types" json:"content_types" yaml:"content_types" validate:"unique=Slug,dive"`
	Postgres     *Postgres           `mapstructure:"postgres" json:"postgres,omitempty" yaml:"postgres,omitempty" validate:"omitempty"`
	Webhook      Webhook             `mapstructure:"webhook" json:"webhook" yaml:"webhook"`
}

type Firestore struct {
	ProjectID          string        `mapstructure:"project_id" json:"project_id" yaml:"project_id" validate:"required"`
	DatabaseID         string        `mapstructure:"database_id" json:"database_id" yaml:"database_id" validate:"required"`
	ServiceAccountFile string        `mapstructure:"service_account_file" json:"service_account_file,omitempty" yaml:"service_account_file,omitempty" validate:"omitempty,file"`
	ServiceAccountJSON string        `mapstructure:"service_account_json" json:"-" yaml:"-"`
	Emulator           Emulator      `mapstructure:"emulator" json:"emulator" yaml:"emulator"`
	Timeout            time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	Transport          string        `mapstructure:"transport" json:"transport" yaml:"transport" validate:"oneof=auto native rest"`
	BaseURL            string        `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Breaker            Breaker       `mapstructure:"breaker" json:"breaker" yaml:"breaker"`
}

type Emulator struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" json:"host" yaml:"host" validate:"required_if=Enabled true,omitempty,hostname|ip"`
	Port    int    `mapstructure:"port" json:"port" yaml:"port" validate:"gt=0,lt=65536"`
}

type Breaker struct {
	Enabled             bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	MaxRequests         uint32        `mapstructure:"max_requests" json:"max_requests" yaml:"max_requests"`
	Interval            time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	Timeout             time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" json:"consecutive_failures" yaml:"consecutive_failures"`
}

type CMS struct {
	BaseURL             string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"required,url"`
	Username            string        `mapstructure:"username" json:"username,omitempty" yaml:"username,omitempty"`
	ApplicationPassword string        `mapstructure:"application_password" json:"-" yaml:"-" validate:"required_with=Username"`
	Timeout             time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	PerPage             int           `mapstructure:"per_page" json:"per_page" yaml:"per_page" validate:"gte=1,lte=100"`
}

type TaxonomyConfig struct {
	Slug           string `mapstructure:"slug" json:"slug" yaml:"slug" validate:"required"`
	OrderField     string `mapstructure:"order_field" json:"order_field" yaml:"order_field"`
	OrderDirection string `mapstructure:"order_direction" json:"order_direction" yaml:"order_direction" validate:"omitempty,oneof=ASC DESC asc desc"`
}

type ContentTypeConfig struct {
	Slug         string            `mapstructure:"slug" json:"slug" yaml:"slug" validate:"required"`
	Fields       []string          `mapstructure:"fields" json:"fields" yaml:"fields" validate:"unique"`
	FieldMapping []FieldRename     `mapstructure:"field_mapping" json:"field_mapping,omitempty" yaml:"field_mapping,omitempty" validate:"unique=Field,dive"`

	descriptors []models.FieldDescriptor
}

// FieldRename writes a selected field under another key. Field identifiers
// are kept as values so their case survives loading.
type FieldRename struct {
	Field       string `mapstructure:"field" json:"field" yaml:"field" validate:"required"`
	Destination string `mapstructure:"destination" json:"destination" yaml:"destination" validate:"required"`
}

type Postgres struct {
	Address        string `mapstructure:"address" json:"address" yaml:"address" validate:"required,hostname|ip"`
	Port           int    `mapstructure:"port" json:"port" yaml:"port" validate:"required,gt=0,lt=65536"`
	Username       string `mapstructure:"username" json:"username" yaml:"username" validate:"required"`
	Password       string `mapstructure:"password" json:"-" yaml:"-" validate:"required"`
	DBName         string `mapstructure:"db_name" json:"db_name" yaml:"db_name" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" json:"ssl_mode" yaml:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections" validate:"gte=0"`
}

type Webhook struct {
	Listen string `mapstructure:"listen" json:"listen" yaml:"listen" validate:"required"`
	Secret string `mapstructure:"secret" json:"-" yaml:"-"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("log_level", "info")
	v.SetDefault("firestore.database_id", DefaultDatabaseID)
	v.SetDefault("firestore.emulator.enabled", false)
	v.SetDefault("firestore.emulator.host", DefaultEmulatorHost)
	v.SetDefault("firestore.emulator.port", DefaultEmulatorPort)
	v.SetDefault("firestore.timeout", DefaultTimeout)
	v.SetDefault("firestore.transport", DefaultTransport)
	v.SetDefault("firestore.breaker.enabled", true)
	v.SetDefault("firestore.breaker.max_requests", 1)
	v.SetDefault("firestore.breaker.interval", time.Minute)
	v.SetDefault("firestore.breaker.timeout", 30*time.Second)
	v.SetDefault("firestore.breaker.consecutive_failures", 5)
	v.SetDefault("cms.timeout", DefaultTimeout)
	v.SetDefault("cms.per_page", DefaultPerPage)
	v.SetDefault("webhook.listen", DefaultWebhookListen)
}

// NewConfig loads the configuration from the global viper instance.
func NewConfig() (*Config, error) {
	return NewConfigFromViper(viper.GetViper())
}

// NewConfigFromViper decodes, validates and parses field identifiers once.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Message: err.Error(), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct rules, then parses content type field identifiers.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(validateCredentials, Firestore{})

	if err := validate.Struct(c); err != nil {
		return newValidationError(err)
	}

	for i := range c.Taxonomies {
		c.Taxonomies[i].normalize()
	}
	for i := range c.ContentTypes {
		if err := c.ContentTypes[i].parse(); err != nil {
			return &ConfigurationError{
				Message: fmt.Sprintf("Config.ContentTypes[%d].Fields %s", i, err.Error()),
				Err:     err,
			}
		}
	}
	return nil
}

func validateCredentials(sl validator.StructLevel) {
	fs := sl.Current().Interface().(Firestore)
	if fs.Emulator.Enabled {
		return
	}
	if fs.ServiceAccountFile == "" && fs.ServiceAccountJSON == "" {
		sl.ReportError(fs.ServiceAccountFile, "ServiceAccountFile", "ServiceAccountFile", "credentials", "")
	}
}

func (t *TaxonomyConfig) normalize() {
	if t.OrderField == "" {
		t.OrderField = DefaultOrderField
	}
	t.OrderDirection = string(models.ParseSortDirection(t.OrderDirection))
}

func (t TaxonomyConfig) Target() models.TaxonomyTarget {
	t.normalize()
	return models.TaxonomyTarget{
		Slug:           t.Slug,
		OrderField:     t.OrderField,
		OrderDirection: models.SortDirection(t.OrderDirection),
	}
}

func (c *ContentTypeConfig) parse() error {
	descriptors, err := models.ParseFieldDescriptors(c.Fields)
	if err != nil {
		return err
	}
	c.descriptors = descriptors
	return nil
}

// Target returns the content type target with parsed field descriptors. A
// config that skipped Validate is parsed here and its error returned.
func (c ContentTypeConfig) Target() (models.ContentTypeTarget, error) {
	descriptors := c.descriptors
	if descriptors == nil && len(c.Fields) > 0 {
		var err error
		if descriptors, err = models.ParseFieldDescriptors(c.Fields); err != nil {
			return models.ContentTypeTarget{}, &ConfigurationError{
				Message: fmt.Sprintf("content type %q: %s", c.Slug, err),
				Err:     err,
			}
		}
	}
	return models.ContentTypeTarget{
		Slug:   c.Slug,
		Fields: append([]models.FieldDescriptor(nil), descriptors...),
		Rename: c.Renames(),
	}, nil
}

// Renames returns the field mapping keyed by field identifier.
func (c ContentTypeConfig) Renames() map[string]string {
	rename := make(map[string]string, len(c.FieldMapping))
	for _, r := range c.FieldMapping {
		rename[r.Field] = r.Destination
	}
	return rename
}

// setRename adds or replaces the rename of field. An empty destination
// removes it.
func (c *ContentTypeConfig) setRename(field, destination string) {
	i := slices.IndexFunc(c.FieldMapping, func(r FieldRename) bool { return r.Field == field })
	switch {
	case destination == "" && i >= 0:
		c.FieldMapping = slices.Delete(c.FieldMapping, i, i+1)
	case destination == "":
	case i >= 0:
		c.FieldMapping[i].Destination = destination
	default:
		c.FieldMapping = append(c.FieldMapping, FieldRename{Field: field, Destination: destination})
	}
}
