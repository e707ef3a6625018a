package collibra

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
)

// FindAttributes returns every attribute of an asset, most recently modified first.
func (c *Client) FindAttributes(ctx context.Context, assetID string) ([]Attribute, error) {
	params := url.Values{
		"assetId":    {assetID},
		"offset":     {"0"},
		"limit":      {"0"},
		"countLimit": {"-1"},
		"sortOrder":  {"DESC"},
		"sortField":  {"LAST_MODIFIED"},
	}
	var out page[Attribute]
	if _, err := c.do(ctx, transport.Request{Method: http.MethodGet, Path: "rest/2.0/attributes", Query: params}, &out); err != nil {
		if errors.IsNoData(err) {
			return nil, nil
		}
		return nil, errors.WrapResource("search", "attributes", assetID, err)
	}
	return out.Results, nil
}

// CreateAttributes creates attributes in one bulk call. Items whose
// attribute type does not exist in the catalog are dropped and the rest
// are retried.
func (c *Client) CreateAttributes(ctx context.Context, attrs []NewAttribute) ([]Attribute, error) {
	return bulkWithoutMissingTypes(ctx, c, http.MethodPost, attrs, func(a NewAttribute) string { return a.TypeID })
}

// UpdateAttributes updates attributes in one bulk call with the same
// missing-type handling as CreateAttributes.
func (c *Client) UpdateAttributes(ctx context.Context, changes []AttributeChange) ([]Attribute, error) {
	return bulkWithoutMissingTypes(ctx, c, http.MethodPatch, changes, func(a AttributeChange) string { return a.TypeID })
}

func bulkWithoutMissingTypes[T any](ctx context.Context, c *Client, method string, items []T, typeOf func(T) string) ([]Attribute, error) {
	logger := logging.FromContext(ctx)
	op := "create"
	if method == http.MethodPatch {
		op = "update"
	}

	for len(items) > 0 {
		var out []Attribute
		resp, err := c.do(ctx, transport.Request{Method: method, Path: "rest/2.0/attributes/bulk", Body: items}, &out)
		if err == nil || errors.IsNoData(err) {
			return out, nil
		}

		missing, ok := missingType(resp, codeAttributeTypeNotFound)
		if !ok {
			return nil, errors.WrapResource(op, "attributes", "", err)
		}
		remaining := items[:0:0]
		for _, item := range items {
			if typeOf(item) != missing {
				remaining = append(remaining, item)
			}
		}
		logger.Warn().
			Str("attribute_type", missing).
			Int("dropped", len(items)-len(remaining)).
			Int("remaining", len(remaining)).
			Msg("Attribute type not found in catalog, retrying without it")
		if len(remaining) == len(items) {
			return nil, errors.WrapResource(op, "attributes", "", err)
		}
		items = remaining
	}
	return nil, nil
}

// SetRelations replaces the relations of one type on an asset. A missing
// relation type yields a nil result rather than an error; a successful call
// always returns a non-nil slice.
func (c *Client) SetRelations(ctx context.Context, set RelationSet) ([]Relation, error) {
	if set.Direction == "" {
		set.Direction = ToTarget
	}
	var out []Relation
	resp, err := c.do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   "rest/2.0/assets/" + url.PathEscape(set.AssetID) + "/relations",
		Body:   set,
	}, &out)
	if err == nil || errors.IsNoData(err) {
		if out == nil {
			out = []Relation{}
		}
		return out, nil
	}
	if missing, ok := missingType(resp, codeRelationTypeNotFound); ok {
		logging.FromContext(ctx).Warn().
			Str("relation_type", missing).
			Str("asset_id", set.AssetID).
			Msg("Relation type not found in catalog, skipping relation")
		return nil, nil
	}
	return nil, errors.WrapResource("set", "relations", set.AssetID, err)
}

// missingType extracts the offending type id from a 404 "type not found" body.
func missingType(resp *transport.Response, code string) (string, bool) {
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return "", false
	}
	eb, ok := transport.ParseErrorBody(resp.Body)
	if !ok || eb.ErrorCode != code {
		return "", false
	}
	id := eb.Properties["id"]
	return id, id != ""
}
