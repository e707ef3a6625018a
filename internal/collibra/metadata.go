package collibra

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/dqsync/internal/transport"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/logging"
)

const alreadyProcessingMessage = "already being processed"

type syncRequest struct {
	SchemaConnectionIDs []string `json:"schemaConnectionIds,omitempty"`
}

type syncResponse struct {
	JobID string `json:"jobId"`
	ID    string `json:"id"`
}

type database struct {
	ID                   string `json:"id"`
	DatabaseConnectionID string `json:"databaseConnectionId"`
}

type schemaConnection struct {
	ID       string `json:"id"`
	SchemaID string `json:"schemaId"`
}

// TriggerMetadataSync starts a metadata synchronization of a database asset,
// limited to the given schema connections when any are set. A sync already in
// progress is reported as SyncAlreadyRunning rather than an error.
func (c *Client) TriggerMetadataSync(ctx context.Context, databaseID string, schemaConnectionIDs []string) (*MetadataSync, error) {
	logger := logging.FromContext(ctx).With().Str("database_id", databaseID).Logger()
	result := &MetadataSync{DatabaseID: databaseID, SchemaConnectionIDs: schemaConnectionIDs}

	var out syncResponse
	resp, err := c.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "rest/catalogDatabase/v1/databases/" + url.PathEscape(databaseID) + "/synchronizeMetadata",
		Body:   syncRequest{SchemaConnectionIDs: schemaConnectionIDs},
	}, &out)
	if err != nil && !errors.IsNoData(err) {
		if alreadyRunning(resp) {
			logger.Info().Msg("Metadata synchronization already in progress")
			result.Status = SyncAlreadyRunning
			result.Message = "synchronization already in progress"
			return result, nil
		}
		return nil, errors.WrapResource("synchronize", "database", databaseID, err)
	}

	result.JobID = out.JobID
	if result.JobID == "" {
		result.JobID = out.ID
	}
	if result.JobID == "" {
		logger.Warn().Msg("Metadata synchronization triggered but no job id was returned")
		result.Status = SyncTriggeredNoJobID
		return result, nil
	}
	logger.Info().Str("job_id", result.JobID).Msg("Metadata synchronization triggered")
	result.Status = SyncTriggered
	return result, nil
}

func alreadyRunning(resp *transport.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusConflict {
		return false
	}
	eb, ok := transport.ParseErrorBody(resp.Body)
	if !ok {
		return false
	}
	return eb.ErrorCode == codeAssetAlreadyInProcess ||
		strings.Contains(strings.ToLower(eb.UserMessage), alreadyProcessingMessage)
}

// DatabaseConnectionID returns the connection id behind a database asset.
func (c *Client) DatabaseConnectionID(ctx context.Context, databaseID string) (string, error) {
	var db database
	if _, err := c.do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "rest/catalogDatabase/v1/databases/" + url.PathEscape(databaseID),
	}, &db); err != nil {
		return "", errors.WrapResource("get", "database", databaseID, err)
	}
	if db.DatabaseConnectionID == "" {
		return "", errors.NewNotFoundError("database connection", databaseID)
	}
	return db.DatabaseConnectionID, nil
}

// SchemaConnectionIDs resolves schema asset ids of a database into schema
// connection ids. Schemas without a connection are skipped with a warning.
func (c *Client) SchemaConnectionIDs(ctx context.Context, databaseID string, schemaIDs []string) ([]string, error) {
	if len(schemaIDs) == 0 {
		return nil, nil
	}
	logger := logging.FromContext(ctx)
	connID, err := c.DatabaseConnectionID(ctx, databaseID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(schemaIDs))
	for _, schemaID := range schemaIDs {
		var out page[schemaConnection]
		_, err := c.do(ctx, transport.Request{
			Method: http.MethodGet,
			Path:   "rest/catalogDatabase/v1/schemaConnections",
			Query: url.Values{
				"databaseConnectionId": {connID},
				"schemaId":             {schemaID},
				"limit":                {"500"},
				"offset":               {"0"},
			},
		}, &out)
		if err != nil && !errors.IsNoData(err) {
			return nil, errors.WrapResource("search", "schema connections", schemaID, err)
		}
		if len(out.Results) == 0 {
			logger.Warn().Str("schema_id", schemaID).Msg("No schema connection found for schema")
			continue
		}
		ids = append(ids, out.Results[0].ID)
	}
	return ids, nil
}
