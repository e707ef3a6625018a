// Package reconciler keeps the catalog's check assets in line with the
// quality platform. Each run walks the platform's datasets sequentially and,
// per dataset, creates, updates and deletes check assets, writes their
// attributes and relations, and copies table ownership back to the platform.
package reconciler

import (
	"context"
	"fmt"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/internal/soda"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/metrics"
	"github.com/agentstation/dqsync/pkg/ownership"
	"github.com/agentstation/dqsync/pkg/quality"
	"github.com/agentstation/dqsync/pkg/retry"
	"github.com/agentstation/dqsync/pkg/threshold"
)

// Source is the quality platform.
type Source interface {
	ownership.Directory
	TestConnection(ctx context.Context) (*soda.Organisation, error)
	ListDatasets(ctx context.Context) ([]quality.Dataset, error)
	ListChecks(ctx context.Context, datasetID string) ([]quality.Check, error)
}

// Catalog is the governance catalog.
type Catalog interface {
	ownership.Catalog
	ApplicationInfo(ctx context.Context) (*collibra.ApplicationInfo, error)
	CreateAssets(ctx context.Context, assets []collibra.NewAsset) ([]collibra.Asset, error)
	UpdateAssets(ctx context.Context, changes []collibra.AssetChange) ([]collibra.Asset, error)
	DeleteAssets(ctx context.Context, ids []string) error
	FindAttributes(ctx context.Context, assetID string) ([]collibra.Attribute, error)
	CreateAttributes(ctx context.Context, attrs []collibra.NewAttribute) ([]collibra.Attribute, error)
	UpdateAttributes(ctx context.Context, changes []collibra.AttributeChange) ([]collibra.Attribute, error)
	SetRelations(ctx context.Context, set collibra.RelationSet) ([]collibra.Relation, error)
}

// Outcome is how a dataset left the engine.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Engine reconciles one catalog against one quality platform.
type Engine struct {
	source     Source
	catalog    Catalog
	cfg        Config
	policy     retry.Policy
	collector  *metrics.Collector
	normalizer threshold.Normalizer
	owners     *ownership.Synchronizer
	now        func() utc.Time
}

// New creates an Engine.
func New(source Source, catalog Catalog, cfg Config, opts ...Option) (*Engine, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.NamingDelimiter == "" {
		cfg.NamingDelimiter = constants.DefaultNamingDelimiter
	}
	if cfg.Database == "" {
		cfg.Database = constants.DefaultDatabase
	}
	return &Engine{
		source:     source,
		catalog:    catalog,
		cfg:        cfg,
		policy:     o.policy,
		collector:  o.collector,
		normalizer: o.normalizer,
		owners: ownership.New(catalog, source, ownership.Config{
			TableTypeID:     cfg.TableTypeID,
			OwnerRoleID:     cfg.OwnerRoleID,
			NamingDelimiter: cfg.NamingDelimiter,
		}, o.policy),
		now: o.now,
	}, nil
}

// Collector returns the metrics collector of the engine.
func (e *Engine) Collector() *metrics.Collector {
	return e.collector
}

// Run performs one full reconciliation. Connection, configuration and
// dataset listing failures abort the run; everything after that is
// recorded per dataset and the run completes.
func (e *Engine) Run(ctx context.Context) (*metrics.Summary, error) {
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	logger := logging.FromContext(ctx)
	logger.Info().Msg("Starting sync run")

	if err := e.TestConnections(ctx); err != nil {
		return nil, err
	}

	rc, err := NewRunContext(e.cfg)
	if err != nil {
		return nil, err
	}

	datasets, err := retry.Value(ctx, e.policy, "list datasets", e.source.ListDatasets)
	if err != nil {
		return nil, errors.WrapResource("list", "datasets", "", err)
	}
	logger.Info().Int("datasets", len(datasets)).Msg("Fetched datasets")

	overall := e.collector.Overall()
	for _, ds := range datasets {
		if ctx.Err() != nil {
			overall.AddError(fmt.Sprintf("Run canceled before dataset %s", ds.Name))
			break
		}
		if e.cfg.FilterDatasetsToSync && !ds.SyncEnabled(e.cfg.SyncDatasetAttribute) {
			logger.Debug().Str("dataset", ds.Name).Msg("Dataset not marked for sync")
			overall.DatasetsSkipped++
			continue
		}
		e.ProcessDataset(ctx, rc, ds)
	}

	summary := e.collector.Finish()
	logger.Info().
		Int("processed", summary.DatasetsProcessed).
		Int("skipped", summary.DatasetsSkipped).
		Int("failed", summary.DatasetsFailed).
		Int("errors", summary.Errors).
		Float64("duration_seconds", summary.DurationSeconds).
		Msg("Sync run finished")
	return summary, nil
}

// TestConnections verifies both services are reachable with the configured
// credentials.
func (e *Engine) TestConnections(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, constants.ConnectionTestTimeout)
	defer cancel()

	org, err := retry.Value(ctx, e.policy, "test soda connection", e.source.TestConnection)
	if err != nil {
		return errors.WrapResource("connect", "service", soda.ServiceName, err)
	}
	info, err := retry.Value(ctx, e.policy, "test collibra connection", e.catalog.ApplicationInfo)
	if err != nil {
		return errors.WrapResource("connect", "service", collibra.ServiceName, err)
	}
	logger.Info().
		Str("organisation", org.Name).
		Str("catalog_version", info.Version.FullVersion).
		Msg("Connected to both services")
	return nil
}

// ProcessDataset reconciles one dataset. Failures are recorded in the
// dataset metrics and never returned.
func (e *Engine) ProcessDataset(ctx context.Context, rc *RunContext, ds quality.Dataset) Outcome {
	ctx = logging.WithDataset(ctx, ds.ID, ds.Name)
	logger := logging.FromContext(ctx)
	overall := e.collector.Overall()

	dm := e.collector.StartDataset(ds.Name)
	defer e.collector.FinishDataset(dm)

	outcome, err := e.processDataset(ctx, rc, ds, dm)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to process dataset")
		dm.AddError(fmt.Sprintf("Failed to process dataset %s: %v", ds.Name, err))
		outcome = OutcomeFailed
	}

	switch outcome {
	case OutcomeSkipped:
		overall.DatasetsSkipped++
	case OutcomeFailed:
		overall.DatasetsFailed++
	default:
		overall.DatasetsProcessed++
	}
	return outcome
}

func (e *Engine) processDataset(ctx context.Context, rc *RunContext, ds quality.Dataset, dm *metrics.Dataset) (Outcome, error) {
	logger := logging.FromContext(ctx)

	if e.cfg.SkipDatasetsMissingInCatalog {
		found, err := e.verifyDataset(ctx, ds)
		if err != nil {
			return OutcomeFailed, err
		}
		if !found {
			return OutcomeSkipped, nil
		}
	}

	domainID := rc.Domains.Resolve(ds)
	ctx = logging.WithField(ctx, "domain_id", domainID)

	checks, err := e.fetchChecks(ctx, ds)
	if err != nil {
		return OutcomeFailed, err
	}
	dm.ChecksFound = len(checks)
	if len(checks) == 0 {
		logger.Info().Msg("No checks found for dataset")
		return OutcomeProcessed, nil
	}

	plans, key := e.planAssets(ctx, ds, checks)
	if err := e.applyAssets(ctx, rc, plans, domainID, dm); err != nil {
		return OutcomeFailed, err
	}

	anchor := &tableAnchor{}
	for _, p := range plans {
		cctx := logging.WithCheck(ctx, p.check.ID, p.check.Name)
		if err := e.syncCheck(cctx, rc, ds, p, domainID, anchor, dm); err != nil {
			logging.FromContext(cctx).Error().Err(err).Msg("Failed to sync check")
			dm.AddError(fmt.Sprintf("Failed to sync check %s: %v", p.check.Name, err))
		}
	}

	if err := e.syncDeletions(ctx, rc, key, plans, domainID, dm); err != nil {
		return OutcomeFailed, err
	}

	res := e.owners.Sync(ctx, ds)
	dm.OwnersSynced = res.OwnersSynced
	for _, msg := range res.Errors {
		dm.AddError(msg)
	}

	logger.Info().
		Int("checks", dm.ChecksFound).
		Int("created", dm.ChecksCreated).
		Int("updated", dm.ChecksUpdated).
		Int("deleted", dm.ChecksDeleted).
		Int("errors", len(dm.Errors)).
		Msg("Dataset reconciled")
	return OutcomeProcessed, nil
}

// verifyDataset reports whether the dataset has exactly one table asset.
func (e *Engine) verifyDataset(ctx context.Context, ds quality.Dataset) (bool, error) {
	name := e.tableName(ds)
	page, err := e.findAssets(ctx, collibra.AssetQuery{Name: name, TypeID: e.cfg.TableTypeID, MatchMode: collibra.MatchExact})
	if err != nil {
		return false, err
	}
	if n := len(page.Results); n != 1 {
		logging.FromContext(ctx).Warn().
			Str("table", name).
			Int("matches", n).
			Msg("Dataset not uniquely found in catalog, skipping")
		return false, nil
	}
	return true, nil
}

func (e *Engine) fetchChecks(ctx context.Context, ds quality.Dataset) ([]quality.Check, error) {
	checks, err := retry.Value(ctx, e.policy, "list checks", func(ctx context.Context) ([]quality.Check, error) {
		return e.source.ListChecks(ctx, ds.ID)
	})
	if err != nil {
		return nil, err
	}
	if e.cfg.SyncMonitors {
		return checks, nil
	}
	kept := checks[:0]
	for _, c := range checks {
		if !c.IsMonitor() {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (e *Engine) findAssets(ctx context.Context, q collibra.AssetQuery) (*collibra.AssetPage, error) {
	return retry.Value(ctx, e.policy, "find assets", func(ctx context.Context) (*collibra.AssetPage, error) {
		return e.catalog.FindAssets(ctx, q)
	})
}
