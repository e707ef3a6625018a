package reconciler

import (
	"context"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/metrics"
	"github.com/agentstation/dqsync/pkg/naming"
	"github.com/agentstation/dqsync/pkg/quality"
	"github.com/agentstation/dqsync/pkg/retry"
)

// assetPlan pairs a check with its deterministic asset name.
type assetPlan struct {
	check quality.Check
	name  string
}

// planAssets names every check of the dataset and returns the dataset key
// the names share. Names are unique within the dataset; same-named checks
// get a " (n)" suffix in listing order.
func (e *Engine) planAssets(ctx context.Context, ds quality.Dataset, checks []quality.Check) ([]assetPlan, string) {
	db, schema := naming.ResolveDatabaseAndSchema(ctx, ds, e.cfg.Database)
	seen := naming.NewSeen()
	plans := make([]assetPlan, 0, len(checks))
	for _, c := range checks {
		plans = append(plans, assetPlan{
			check: c,
			name: naming.GenerateAssetName(naming.NameInput{
				CheckName: c.Name,
				Table:     ds.Name,
				Database:  db,
				Schema:    schema,
				Column:    c.Column,
			}, seen),
		})
	}
	return plans, naming.DatasetKey(db, schema, ds.Name)
}

// applyAssets creates missing check assets and updates existing ones in two
// bulk calls. An asset found outside the dataset's domain is moved into it.
func (e *Engine) applyAssets(ctx context.Context, rc *RunContext, plans []assetPlan, domainID string, dm *metrics.Dataset) error {
	logger := logging.FromContext(ctx)

	var creates []collibra.NewAsset
	var updates []collibra.AssetChange
	for _, p := range plans {
		existing, err := e.locateAsset(ctx, rc, p.name, domainID)
		if err != nil {
			return err
		}
		if existing == nil {
			creates = append(creates, collibra.NewAsset{
				Name:        p.name,
				DisplayName: p.check.Name,
				DomainID:    domainID,
				TypeID:      e.cfg.CheckTypeID,
			})
			continue
		}
		if existing.Domain.ID != "" && existing.Domain.ID != domainID {
			logger.Info().
				Str("asset", p.name).
				Str("from_domain", existing.Domain.ID).
				Msg("Moving check asset into dataset domain")
		}
		updates = append(updates, collibra.AssetChange{
			ID:          existing.ID,
			Name:        p.name,
			DisplayName: p.check.Name,
			TypeID:      e.cfg.CheckTypeID,
			DomainID:    domainID,
		})
	}

	if len(creates) > 0 {
		created, err := retry.Value(ctx, e.policy, "create assets", func(ctx context.Context) ([]collibra.Asset, error) {
			return e.catalog.CreateAssets(ctx, creates)
		})
		if err != nil {
			return err
		}
		dm.ChecksCreated = len(created)
		e.remember(rc, created, domainID)
	}
	if len(updates) > 0 {
		updated, err := retry.Value(ctx, e.policy, "update assets", func(ctx context.Context) ([]collibra.Asset, error) {
			return e.catalog.UpdateAssets(ctx, updates)
		})
		if err != nil {
			return err
		}
		dm.ChecksUpdated = len(updated)
		e.remember(rc, updated, domainID)
	}
	logger.Debug().Int("creates", len(creates)).Int("updates", len(updates)).Msg("Applied asset operations")
	return nil
}

// locateAsset finds a check asset by exact name, first within the domain
// and then across all domains.
func (e *Engine) locateAsset(ctx context.Context, rc *RunContext, name, domainID string) (*collibra.Asset, error) {
	if asset, err := e.lookupAsset(ctx, rc, name, domainID); err != nil || asset != nil {
		return asset, err
	}
	if domainID == "" {
		return nil, nil
	}
	return e.lookupAsset(ctx, rc, name, "")
}

// lookupAsset is a cached exact-name search for a check asset.
func (e *Engine) lookupAsset(ctx context.Context, rc *RunContext, name, domainID string) (*collibra.Asset, error) {
	page, ok := rc.Assets.Get(name, domainID)
	if !ok {
		var err error
		page, err = e.findAssets(ctx, collibra.AssetQuery{
			Name:      name,
			TypeID:    e.cfg.CheckTypeID,
			DomainID:  domainID,
			MatchMode: collibra.MatchExact,
		})
		if err != nil {
			return nil, err
		}
		rc.Assets.Set(name, domainID, page)
	}
	if len(page.Results) == 0 {
		return nil, nil
	}
	return &page.Results[0], nil
}

// remember caches written assets under the domain they were written to.
func (e *Engine) remember(rc *RunContext, assets []collibra.Asset, domainID string) {
	for i := range assets {
		if assets[i].Domain.ID == "" {
			assets[i].Domain.ID = domainID
		}
	}
	rc.Assets.Remember(assets)
}

// syncDeletions deletes the dataset's check assets in the domain that no
// longer correspond to a check.
func (e *Engine) syncDeletions(ctx context.Context, rc *RunContext, key string, plans []assetPlan, domainID string, dm *metrics.Dataset) error {
	desired := make(map[string]bool, len(plans))
	for _, p := range plans {
		desired[p.name] = true
	}

	page, err := e.findAssets(ctx, collibra.AssetQuery{
		Name:      key,
		TypeID:    e.cfg.CheckTypeID,
		DomainID:  domainID,
		MatchMode: collibra.MatchStart,
	})
	if err != nil {
		return err
	}

	var ids []string
	var names []string
	for _, a := range page.Results {
		if !naming.BelongsTo(a.Name, key) || desired[a.Name] {
			continue
		}
		ids = append(ids, a.ID)
		names = append(names, a.Name)
	}
	if len(ids) == 0 {
		return nil
	}

	logging.FromContext(ctx).Info().Strs("assets", names).Msg("Deleting check assets no longer in source")
	err = retry.Do(ctx, e.policy, "delete assets", func(ctx context.Context) error {
		return e.catalog.DeleteAssets(ctx, ids)
	})
	if err != nil {
		return err
	}
	for _, name := range names {
		rc.Assets.Delete(name, domainID)
		rc.Assets.Delete(name, "")
	}
	dm.ChecksDeleted = len(ids)
	return nil
}
