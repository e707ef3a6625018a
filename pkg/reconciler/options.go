package reconciler

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/metrics"
	"github.com/agentstation/dqsync/pkg/retry"
	"github.com/agentstation/dqsync/pkg/threshold"
)

// AttributeTypes are the catalog attribute type ids written on check assets.
// An empty id disables that attribute.
type AttributeTypes struct {
	EvaluationStatus string
	LastSyncDate     string
	Definition       string
	LastRunDate      string
	CloudURL         string
	LoadedRows       string
	RowsFailed       string
	RowsPassed       string
	PassingFraction  string
}

// Config is the resolved integration configuration the engine runs with.
type Config struct {
	// Database names the database segment of asset names.
	Database        string
	NamingDelimiter string

	TableTypeID     string
	CheckTypeID     string
	DimensionTypeID string
	ColumnTypeID    string

	Attributes AttributeTypes

	TableColumnRelationTypeID string
	DimensionRelationTypeID   string

	OwnerRoleID string

	DimensionsDomainID string
	// DomainMapping is a JSON object of dataset attribute value to domain id.
	DomainMapping   string
	DefaultDomainID string

	FilterDatasetsToSync         bool
	SkipDatasetsMissingInCatalog bool
	SyncMonitors                 bool

	SyncDatasetAttribute   string
	DomainDatasetAttribute string
	DimensionAttribute     string
	// CustomAttributesMapping is a JSON object of check attribute name to
	// catalog attribute type id.
	CustomAttributesMapping string
}

type options struct {
	policy     retry.Policy
	collector  *metrics.Collector
	normalizer threshold.Normalizer
	now        func() utc.Time
}

func defaultOptions() *options {
	return &options{
		policy:     retry.DefaultPolicy(),
		normalizer: threshold.Heuristic{},
		now:        utc.Now,
	}
}

// Option is a function that configures an Engine.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.collector == nil {
		o.collector = metrics.NewCollector()
	}
	return o, nil
}

// WithPolicy sets the retry policy wrapped around every remote call.
func WithPolicy(p retry.Policy) Option {
	return func(o *options) error {
		o.policy = p
		return nil
	}
}

// WithCollector sets the metrics collector. The same collector should be
// the call observer of both clients.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{Field: "collector", Message: "cannot be nil"}
		}
		o.collector = c
		return nil
	}
}

// WithNormalizer sets the threshold normalizer.
func WithNormalizer(n threshold.Normalizer) Option {
	return func(o *options) error {
		if n == nil {
			return &errors.ValidationError{Field: "normalizer", Message: "cannot be nil"}
		}
		o.normalizer = n
		return nil
	}
}

// WithNow overrides the clock used for sync dates.
func WithNow(now func() utc.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}
