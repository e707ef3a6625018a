package collibra

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/errors"
)

// Responsibilities returns the role assignments on a resource, including
// inherited ones. An empty RoleID returns every role.
func (c *Client) Responsibilities(ctx context.Context, q ResponsibilityQuery) ([]Responsibility, error) {
	params := url.Values{
		"resourceIds":      {q.ResourceID},
		"offset":           {"0"},
		"limit":            {"0"},
		"countLimit":       {"-1"},
		"includeInherited": {"true"},
		"sortField":        {"LAST_MODIFIED"},
		"sortOrder":        {"DESC"},
		"type":             {"RESOURCE"},
	}
	if q.RoleID != "" {
		params.Set("roleIds", q.RoleID)
	}
	var out page[Responsibility]
	if _, err := c.do(ctx, transport.Request{Method: http.MethodGet, Path: "rest/2.0/responsibilities", Query: params}, &out); err != nil {
		if errors.IsNoData(err) {
			return nil, nil
		}
		return nil, errors.WrapResource("search", "responsibilities", q.ResourceID, err)
	}
	return out.Results, nil
}

// Users returns users by id, by group membership, or both.
func (c *Client) Users(ctx context.Context, q UserQuery) ([]User, error) {
	if len(q.UserIDs) == 0 && q.GroupID == "" {
		return nil, errors.NewValidationError("users", q, "either user ids or a group id is required")
	}
	params := url.Values{
		"offset":     {"0"},
		"limit":      {"0"},
		"countLimit": {"-1"},
		"sortOrder":  {"ASC"},
		"sortField":  {"USERNAME"},
	}
	for _, id := range q.UserIDs {
		params.Add("userId", id)
	}
	if q.GroupID != "" {
		params.Set("groupId", q.GroupID)
	}
	var out page[User]
	if _, err := c.do(ctx, transport.Request{Method: http.MethodGet, Path: "rest/2.0/users", Query: params}, &out); err != nil {
		if errors.IsNoData(err) {
			return nil, nil
		}
		return nil, errors.WrapResource("search", "users", q.GroupID, err)
	}
	return out.Results, nil
}
