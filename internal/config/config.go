// Package config loads the integration configuration: a YAML file with
// ${VAR} placeholders, overlaid with credentials from the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/internal/soda"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/reconciler"
	"github.com/agentstation/dqsync/pkg/retry"
)

// Config is the integration configuration.
type Config struct {
	Collibra Collibra `mapstructure:"collibra"`
	Soda     Soda     `mapstructure:"soda"`
	Sync     Sync     `mapstructure:"sync"`
}

// Collibra holds the catalog connection and the ids of the catalog
// metamodel the engine writes to.
type Collibra struct {
	BaseURL          string           `mapstructure:"base_url"`
	Username         string           `mapstructure:"username"`
	Password         string           `mapstructure:"password"`
	General          CollibraGeneral  `mapstructure:"general"`
	AssetTypes       AssetTypes       `mapstructure:"asset_types"`
	AttributeTypes   AttributeTypes   `mapstructure:"attribute_types"`
	RelationTypes    RelationTypes    `mapstructure:"relation_types"`
	Responsibilities Responsibilities `mapstructure:"responsibilities"`
	Domains          Domains          `mapstructure:"domains"`
}

// CollibraGeneral holds catalog naming settings.
type CollibraGeneral struct {
	NamingDelimiter string `mapstructure:"naming_delimiter"`
}

// AssetTypes are catalog asset type ids.
type AssetTypes struct {
	Table     string `mapstructure:"table"`
	SodaCheck string `mapstructure:"soda_check"`
	Dimension string `mapstructure:"dimension"`
	Column    string `mapstructure:"column"`
}

// AttributeTypes are catalog attribute type ids.
type AttributeTypes struct {
	EvaluationStatus string `mapstructure:"evaluation_status"`
	LastSyncDate     string `mapstructure:"last_sync_date"`
	Definition       string `mapstructure:"definition"`
	LastRunDate      string `mapstructure:"last_run_date"`
	CloudURL         string `mapstructure:"cloud_url"`
	LoadedRows       string `mapstructure:"loaded_rows"`
	RowsFailed       string `mapstructure:"rows_failed"`
	RowsPassed       string `mapstructure:"rows_passed"`
	PassingFraction  string `mapstructure:"passing_fraction"`
}

// RelationTypes are catalog relation type ids.
type RelationTypes struct {
	TableColumnToCheck string `mapstructure:"table_column_to_check"`
	CheckToDQDimension string `mapstructure:"check_to_dq_dimension"`
}

// Responsibilities selects the owner role.
type Responsibilities struct {
	OwnerRoleID string `mapstructure:"owner_role_id"`
}

// Domains are catalog domain ids and the dataset-to-domain mapping.
type Domains struct {
	DataQualityDimensions string `mapstructure:"data_quality_dimensions"`
	// DomainMapping is a JSON object of dataset attribute value to domain id.
	DomainMapping string `mapstructure:"domain_mapping"`
	DefaultDomain string `mapstructure:"default_domain"`
}

// Soda holds the quality platform connection and dataset selection.
type Soda struct {
	APIKeyID     string         `mapstructure:"api_key_id"`
	APIKeySecret string         `mapstructure:"api_key_secret"`
	BaseURL      string         `mapstructure:"base_url"`
	General      SodaGeneral    `mapstructure:"general"`
	Attributes   SodaAttributes `mapstructure:"attributes"`
}

// SodaGeneral selects which datasets and checks are synced.
type SodaGeneral struct {
	FilterDatasetsToSync          bool `mapstructure:"filter_datasets_to_sync"`
	SkipDatasetsMissingInCollibra bool `mapstructure:"skip_datasets_missing_in_collibra"`
	SyncMonitors                  bool `mapstructure:"sync_monitors"`
}

// SodaAttributes names the platform attributes the engine reads.
type SodaAttributes struct {
	SyncDatasetAttribute    string `mapstructure:"sync_dataset_attribute"`
	DomainDatasetAttribute  string `mapstructure:"domain_dataset_attribute"`
	DimensionAttribute      string `mapstructure:"dimension_attribute"`
	CustomAttributesMapping string `mapstructure:"custom_attributes_mapping"`
}

// Sync holds run-level settings.
type Sync struct {
	Database    string        `mapstructure:"database"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	Retry       Retry         `mapstructure:"retry"`
	Source      Source        `mapstructure:"source"`
}

// Retry configures the backoff wrapped around external calls.
type Retry struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// Source paces the quality platform client.
type Source struct {
	PageSize          int     `mapstructure:"page_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// envOverrides maps config keys to environment variables. The first set
// variable wins and takes precedence over the file.
var envOverrides = map[string][]string{
	"soda.api_key_id":     {"SODA_CLOUD_API_KEY_ID", "SODA_API_KEY_ID"},
	"soda.api_key_secret": {"SODA_CLOUD_API_KEY_SECRET", "SODA_API_KEY_SECRET"},
	"collibra.username":   {"COLLIBRA_USERNAME"},
	"collibra.password":   {"COLLIBRA_PASSWORD"},
	"collibra.base_url":   {"COLLIBRA_BASE_URL"},
	"sync.database":       {"SNOWFLAKE_DATABASE"},
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(string(raw))
}

// Parse expands ${VAR} placeholders in the YAML document, applies defaults
// and environment overrides, and validates the result.
func Parse(doc string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	for key, envs := range envOverrides {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.NewConfigError("config", "binding "+key, err)
		}
	}

	if err := v.ReadConfig(strings.NewReader(ExpandEnv(doc))); err != nil {
		return nil, errors.WrapParse("yaml", "config", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapParse("yaml", "config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandEnv replaces ${VAR} with the value of VAR. Unset variables are
// left as written.
func ExpandEnv(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collibra.general.naming_delimiter", constants.DefaultNamingDelimiter)
	v.SetDefault("soda.general.sync_monitors", true)
	v.SetDefault("soda.attributes.custom_attributes_mapping", constants.DefaultCustomAttributesMapping)
	v.SetDefault("sync.database", constants.DefaultDatabase)
	v.SetDefault("sync.http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("sync.retry.max_attempts", constants.MaxRetries)
	v.SetDefault("sync.retry.initial_delay", constants.RetryBackoff)
	v.SetDefault("sync.retry.max_delay", constants.MaxRetryBackoff)
	v.SetDefault("sync.source.page_size", constants.SourcePageSize)
}

// Validate reports every missing required setting in one ConfigError.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"collibra.base_url", c.Collibra.BaseURL},
		{"soda.base_url", c.Soda.BaseURL},
		{"collibra.asset_types.table", c.Collibra.AssetTypes.Table},
		{"collibra.asset_types.soda_check", c.Collibra.AssetTypes.SodaCheck},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return errors.NewConfigError("config", fmt.Sprintf("missing required settings: %s", strings.Join(missing, ", ")), nil)
	}
	if c.Sync.Retry.MaxAttempts < 1 {
		return errors.NewConfigError("config", "sync.retry.max_attempts must be at least 1", nil)
	}
	return nil
}

// Engine returns the reconciliation settings.
func (c *Config) Engine() reconciler.Config {
	a := c.Collibra.AttributeTypes
	return reconciler.Config{
		Database:        c.Sync.Database,
		NamingDelimiter: c.Collibra.General.NamingDelimiter,
		TableTypeID:     c.Collibra.AssetTypes.Table,
		CheckTypeID:     c.Collibra.AssetTypes.SodaCheck,
		DimensionTypeID: c.Collibra.AssetTypes.Dimension,
		ColumnTypeID:    c.Collibra.AssetTypes.Column,
		Attributes: reconciler.AttributeTypes{
			EvaluationStatus: a.EvaluationStatus,
			LastSyncDate:     a.LastSyncDate,
			Definition:       a.Definition,
			LastRunDate:      a.LastRunDate,
			CloudURL:         a.CloudURL,
			LoadedRows:       a.LoadedRows,
			RowsFailed:       a.RowsFailed,
			RowsPassed:       a.RowsPassed,
			PassingFraction:  a.PassingFraction,
		},
		TableColumnRelationTypeID:    c.Collibra.RelationTypes.TableColumnToCheck,
		DimensionRelationTypeID:      c.Collibra.RelationTypes.CheckToDQDimension,
		OwnerRoleID:                  c.Collibra.Responsibilities.OwnerRoleID,
		DimensionsDomainID:           c.Collibra.Domains.DataQualityDimensions,
		DomainMapping:                c.Collibra.Domains.DomainMapping,
		DefaultDomainID:              c.Collibra.Domains.DefaultDomain,
		FilterDatasetsToSync:         c.Soda.General.FilterDatasetsToSync,
		SkipDatasetsMissingInCatalog: c.Soda.General.SkipDatasetsMissingInCollibra,
		SyncMonitors:                 c.Soda.General.SyncMonitors,
		SyncDatasetAttribute:         c.Soda.Attributes.SyncDatasetAttribute,
		DomainDatasetAttribute:       c.Soda.Attributes.DomainDatasetAttribute,
		DimensionAttribute:           c.Soda.Attributes.DimensionAttribute,
		CustomAttributesMapping:      c.Soda.Attributes.CustomAttributesMapping,
	}
}

// SodaClient returns the quality platform client settings.
func (c *Config) SodaClient() soda.Config {
	sc := soda.DefaultConfig()
	sc.BaseURL = c.Soda.BaseURL
	sc.APIKeyID = c.Soda.APIKeyID
	sc.APIKeySecret = c.Soda.APIKeySecret
	sc.Timeout = c.Sync.HTTPTimeout
	if c.Sync.Source.PageSize > 0 {
		sc.PageSize = c.Sync.Source.PageSize
	}
	sc.RequestsPerSecond = c.Sync.Source.RequestsPerSecond
	return sc
}

// CollibraClient returns the catalog client settings.
func (c *Config) CollibraClient() collibra.Config {
	return collibra.Config{
		BaseURL:  c.Collibra.BaseURL,
		Username: c.Collibra.Username,
		Password: c.Collibra.Password,
		Timeout:  c.Sync.HTTPTimeout,
	}
}

// RetryPolicy returns the backoff policy for external calls.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = c.Sync.Retry.MaxAttempts
	p.Delay = c.Sync.Retry.InitialDelay
	p.MaxDelay = c.Sync.Retry.MaxDelay
	return p
}
