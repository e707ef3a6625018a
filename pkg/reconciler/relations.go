package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/metrics"
	"github.com/agentstation/dqsync/pkg/naming"
	"github.com/agentstation/dqsync/pkg/quality"
	"github.com/agentstation/dqsync/pkg/retry"
)

// tableAnchor is the dataset's table asset, looked up once per dataset.
type tableAnchor struct {
	resolved bool
	asset    *collibra.Asset
}

func (e *Engine) tableName(ds quality.Dataset) string {
	return naming.DatasetFullName(ds, e.cfg.NamingDelimiter)
}

// syncCheck writes the attributes and relations of one check's asset.
// Missing dimensions and table assets are recorded on dm; only remote
// failures are returned.
func (e *Engine) syncCheck(ctx context.Context, rc *RunContext, ds quality.Dataset, p assetPlan, domainID string, anchor *tableAnchor, dm *metrics.Dataset) error {
	asset, err := e.lookupAsset(ctx, rc, p.name, domainID)
	if err != nil {
		return err
	}
	if asset == nil {
		dm.AddError("No Collibra asset found for check: " + p.check.Name)
		return nil
	}

	if err := e.syncAttributes(ctx, asset.ID, e.checkAttributes(ctx, rc, p.check), dm); err != nil {
		return err
	}
	if err := e.syncDimensions(ctx, asset.ID, p.check, dm); err != nil {
		return err
	}
	return e.syncTableRelation(ctx, rc, ds, asset.ID, p.check, anchor, dm)
}

// syncDimensions relates the check asset to the dimension assets named in
// the check's dimension attribute, a comma-separated list.
func (e *Engine) syncDimensions(ctx context.Context, assetID string, c quality.Check, dm *metrics.Dataset) error {
	if e.cfg.DimensionAttribute == "" || e.cfg.DimensionRelationTypeID == "" {
		return nil
	}
	raw, ok := c.Attributes[e.cfg.DimensionAttribute].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	var ids []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		page, err := e.findAssets(ctx, collibra.AssetQuery{
			Name:      name,
			TypeID:    e.cfg.DimensionTypeID,
			DomainID:  e.cfg.DimensionsDomainID,
			MatchMode: collibra.MatchExact,
		})
		if err != nil {
			return err
		}
		switch n := len(page.Results); n {
		case 0:
			dm.AddError("No dimension asset found in Collibra for dimension: " + name)
		case 1:
			ids = append(ids, page.Results[0].ID)
		default:
			dm.AddError(fmt.Sprintf("Multiple dimension assets found in Collibra for dimension: %s (found %d)", name, n))
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rels, err := e.setRelations(ctx, collibra.RelationSet{
		AssetID:         assetID,
		TypeID:          e.cfg.DimensionRelationTypeID,
		RelatedAssetIDs: ids,
		Direction:       collibra.ToTarget,
	})
	if err != nil {
		return err
	}
	if rels != nil {
		e.collector.Overall().DimensionRelationsCreated += len(ids)
		dm.RelationsCreated += len(ids)
	}
	return nil
}

// syncTableRelation anchors the check asset to its column asset, or to the
// table asset when the check has no column or the column is not uniquely
// found.
func (e *Engine) syncTableRelation(ctx context.Context, rc *RunContext, ds quality.Dataset, assetID string, c quality.Check, anchor *tableAnchor, dm *metrics.Dataset) error {
	if e.cfg.TableColumnRelationTypeID == "" {
		return nil
	}
	table, err := e.resolveTable(ctx, rc, ds, anchor, dm)
	if err != nil || table == nil {
		return err
	}

	overall := e.collector.Overall()
	target := table.ID
	counter := &overall.TableRelationsCreated
	if c.Column != "" {
		column, err := e.findColumn(ctx, table.Name, c.Column)
		if err != nil {
			return err
		}
		if column != nil {
			target = column.ID
			counter = &overall.ColumnRelationsCreated
		} else {
			logging.FromContext(ctx).Debug().Str("column", c.Column).Msg("Column asset not uniquely found, relating to table")
		}
	}

	rels, err := e.setRelations(ctx, collibra.RelationSet{
		AssetID:         assetID,
		TypeID:          e.cfg.TableColumnRelationTypeID,
		RelatedAssetIDs: []string{target},
		Direction:       collibra.ToSource,
	})
	if err != nil {
		return err
	}
	if rels != nil {
		*counter++
		dm.RelationsCreated++
	}
	return nil
}

func (e *Engine) resolveTable(ctx context.Context, rc *RunContext, ds quality.Dataset, anchor *tableAnchor, dm *metrics.Dataset) (*collibra.Asset, error) {
	if anchor.resolved {
		return anchor.asset, nil
	}
	name := e.tableName(ds)
	page, err := e.findAssets(ctx, collibra.AssetQuery{Name: name, TypeID: e.cfg.TableTypeID, MatchMode: collibra.MatchExact})
	if err != nil {
		return nil, err
	}
	anchor.resolved = true

	switch n := len(page.Results); n {
	case 0:
		dm.AddError("No table asset found for dataset: " + name)
		if rc.warnNoTable(name) {
			e.collector.Overall().DatasetsWithoutTableAssets++
			logging.FromContext(ctx).Warn().Str("table", name).Msg("No table asset found for dataset")
		}
	case 1:
		anchor.asset = &page.Results[0]
	default:
		dm.AddError(fmt.Sprintf("Multiple table assets found for dataset: %s (found %d)", name, n))
	}
	return anchor.asset, nil
}

func (e *Engine) findColumn(ctx context.Context, table, column string) (*collibra.Asset, error) {
	page, err := e.findAssets(ctx, collibra.AssetQuery{
		Name:      naming.ColumnFullName(table, column, e.cfg.NamingDelimiter),
		TypeID:    e.cfg.ColumnTypeID,
		MatchMode: collibra.MatchExact,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Results) != 1 {
		return nil, nil
	}
	return &page.Results[0], nil
}

func (e *Engine) setRelations(ctx context.Context, set collibra.RelationSet) ([]collibra.Relation, error) {
	return retry.Value(ctx, e.policy, "set relations", func(ctx context.Context) ([]collibra.Relation, error) {
		return e.catalog.SetRelations(ctx, set)
	})
}
