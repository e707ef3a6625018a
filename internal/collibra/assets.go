package collibra

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
)

// FindAssets searches assets by name and type. An empty DomainID searches
// all domains; an empty MatchMode defaults to END. Pages are read until a
// short page or the reported total.
func (c *Client) FindAssets(ctx context.Context, q AssetQuery) (*AssetPage, error) {
	mode := q.MatchMode
	if mode == "" {
		mode = MatchEnd
	}
	params := url.Values{
		"name":            {q.Name},
		"typeIds":         {q.TypeID},
		"nameMatchMode":   {mode},
		"limit":           {strconv.Itoa(c.pageSize)},
		"countLimit":      {strconv.Itoa(constants.CatalogCountLimit)},
		"typeInheritance": {"true"},
		"excludeMeta":     {"true"},
		"sortField":       {"NAME"},
		"sortOrder":       {"ASC"},
	}
	if q.DomainID != "" {
		params.Set("domainId", q.DomainID)
	}

	all := &AssetPage{Limit: c.pageSize}
	for offset := 0; ; offset += c.pageSize {
		params.Set("offset", strconv.Itoa(offset))
		var page AssetPage
		if _, err := c.do(ctx, transport.Request{Method: http.MethodGet, Path: "rest/2.0/assets", Query: params}, &page); err != nil {
			if errors.IsNoData(err) {
				break
			}
			return nil, errors.WrapResource("search", "assets", q.Name, err)
		}
		all.Results = append(all.Results, page.Results...)
		all.Total = max(page.Total, len(all.Results))
		if len(page.Results) < c.pageSize || (page.Total > 0 && len(all.Results) >= page.Total) {
			break
		}
	}
	return all, nil
}

// CreateAssets creates assets in one bulk call.
func (c *Client) CreateAssets(ctx context.Context, assets []NewAsset) ([]Asset, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	var out []Asset
	if _, err := c.do(ctx, transport.Request{Method: http.MethodPost, Path: "rest/2.0/assets/bulk", Body: assets}, &out); err != nil && !errors.IsNoData(err) {
		return nil, errors.WrapResource("create", "assets", "", err)
	}
	return out, nil
}

// UpdateAssets updates assets in one bulk call. Changing DomainID moves the asset.
func (c *Client) UpdateAssets(ctx context.Context, changes []AssetChange) ([]Asset, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	var out []Asset
	if _, err := c.do(ctx, transport.Request{Method: http.MethodPatch, Path: "rest/2.0/assets/bulk", Body: changes}, &out); err != nil && !errors.IsNoData(err) {
		return nil, errors.WrapResource("update", "assets", "", err)
	}
	return out, nil
}

// DeleteAssets deletes assets in one bulk call. A 404 means the assets are
// already gone and is treated as success.
func (c *Client) DeleteAssets(ctx context.Context, ids []string) error {
	logger := logging.FromContext(ctx)
	if len(ids) == 0 {
		logger.Warn().Msg("No asset IDs provided for bulk deletion")
		return nil
	}
	resp, err := c.transport.Do(ctx, transport.Request{Method: http.MethodDelete, Path: "rest/2.0/assets/bulk", Body: ids})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			logger.Info().Int("count", len(ids)).Msg("Assets already deleted or not found, treating as success")
			return nil
		}
		return errors.WrapResource("delete", "assets", "", err)
	}
	return nil
}
