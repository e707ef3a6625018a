package reconciler

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strconv"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/logging"
	"github.com/agentstation/dqsync/pkg/metrics"
	"github.com/agentstation/dqsync/pkg/quality"
	"github.com/agentstation/dqsync/pkg/retry"
	"github.com/agentstation/dqsync/pkg/threshold"
)

const (
	cloudURLTemplate   = `<p><a href="%s" target="_blank" rel="noopener">View check in Soda</a></p>`
	definitionTemplate = `<pre><code>%s</code></pre>`
)

// attributeValue is one desired attribute of a check asset.
type attributeValue struct {
	typeID string
	value  any
}

// checkAttributes renders the attributes a check asset should carry.
// Attributes whose type id is not configured are left out, and so are
// diagnostics the platform did not report.
func (e *Engine) checkAttributes(ctx context.Context, rc *RunContext, c quality.Check) []attributeValue {
	types := e.cfg.Attributes
	var out []attributeValue
	add := func(typeID string, value any) {
		if typeID != "" {
			out = append(out, attributeValue{typeID: typeID, value: value})
		}
	}

	add(types.EvaluationStatus, c.Passed())
	add(types.LastSyncDate, epochMillis(midnight(e.now())))
	if c.CloudURL != "" {
		add(types.CloudURL, fmt.Sprintf(cloudURLTemplate, html.EscapeString(c.CloudURL)))
	}
	if c.Definition != "" {
		add(types.Definition, fmt.Sprintf(definitionTemplate, html.EscapeString(c.Definition)))
	}
	if run, ok := c.LastRun(); ok {
		add(types.LastRunDate, epochMillis(midnight(run)))
	}

	failed, tested := c.RowCounts()
	if tested > 0 {
		passed := max(tested-failed, 0)
		add(types.LoadedRows, strconv.FormatInt(tested, 10))
		add(types.RowsPassed, strconv.FormatInt(passed, 10))
		add(types.PassingFraction, fmt.Sprintf("%.2f", float64(passed)/float64(tested)*100))
	}
	if failed > 0 {
		add(types.RowsFailed, strconv.FormatInt(failed, 10))
	}

	keys := make([]string, 0, len(rc.CustomAttributes))
	for k := range rc.CustomAttributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		typeID := rc.CustomAttributes[key]
		if key == constants.ThresholdAttributeKey {
			res, ok := e.normalizer.Normalize(threshold.Input{
				CheckType:   c.CheckType,
				Definition:  c.Definition,
				Diagnostics: c.Diagnostics,
			})
			if ok {
				logging.FromContext(ctx).Debug().
					Str("raw", res.Raw).
					Str("decimal", res.Decimal).
					Str("detected_by", string(res.Percent)).
					Msg("Normalized percentage threshold")
				add(typeID, res.Decimal)
			}
			continue
		}
		if v, ok := c.Attributes[key]; ok && v != nil {
			add(typeID, quality.Stringify(v))
		}
	}
	return out
}

// syncAttributes writes the desired attributes, updating the ones whose
// type already exists on the asset and creating the rest.
func (e *Engine) syncAttributes(ctx context.Context, assetID string, desired []attributeValue, dm *metrics.Dataset) error {
	if len(desired) == 0 {
		return nil
	}
	existing, err := retry.Value(ctx, e.policy, "find attributes", func(ctx context.Context) ([]collibra.Attribute, error) {
		return e.catalog.FindAttributes(ctx, assetID)
	})
	if err != nil {
		return err
	}
	byType := make(map[string]string, len(existing))
	for _, a := range existing {
		byType[a.Type.ID] = a.ID
	}

	var creates []collibra.NewAttribute
	var updates []collibra.AttributeChange
	for _, d := range desired {
		if id, ok := byType[d.typeID]; ok {
			updates = append(updates, collibra.AttributeChange{ID: id, Value: d.value, TypeID: d.typeID})
			continue
		}
		creates = append(creates, collibra.NewAttribute{AssetID: assetID, TypeID: d.typeID, Value: d.value})
	}

	overall := e.collector.Overall()
	if len(updates) > 0 {
		updated, err := retry.Value(ctx, e.policy, "update attributes", func(ctx context.Context) ([]collibra.Attribute, error) {
			return e.catalog.UpdateAttributes(ctx, updates)
		})
		if err != nil {
			return err
		}
		overall.AttributesUpdated += len(updated)
		dm.AttributesProcessed += len(updated)
	}
	if len(creates) > 0 {
		created, err := retry.Value(ctx, e.policy, "create attributes", func(ctx context.Context) ([]collibra.Attribute, error) {
			return e.catalog.CreateAttributes(ctx, creates)
		})
		if err != nil {
			return err
		}
		overall.AttributesCreated += len(created)
		dm.AttributesProcessed += len(created)
	}
	return nil
}

// midnight truncates t to the start of its UTC day.
func midnight(t utc.Time) utc.Time {
	y, m, d := t.Time.UTC().Date()
	return utc.Time{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func epochMillis(t utc.Time) string {
	return strconv.FormatInt(t.Time.UnixMilli(), 10)
}
