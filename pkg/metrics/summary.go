package metrics

import "github.com/agentstation/utc"

// Summary is the machine-readable outcome of a run.
type Summary struct {
	StartedAt utc.Time `json:"started_at" yaml:"started_at"`
	EndedAt   utc.Time `json:"ended_at" yaml:"ended_at"`

	DatasetsProcessed          int `json:"datasets_processed" yaml:"datasets_processed"`
	DatasetsSkipped            int `json:"datasets_skipped" yaml:"datasets_skipped"`
	DatasetsFailed             int `json:"datasets_failed" yaml:"datasets_failed"`
	DatasetsWithoutTableAssets int `json:"datasets_without_table_assets" yaml:"datasets_without_table_assets"`

	ChecksProcessed int `json:"checks_processed" yaml:"checks_processed"`
	ChecksCreated   int `json:"checks_created" yaml:"checks_created"`
	ChecksUpdated   int `json:"checks_updated" yaml:"checks_updated"`
	ChecksDeleted   int `json:"checks_deleted" yaml:"checks_deleted"`

	AttributesCreated int `json:"attributes_created" yaml:"attributes_created"`
	AttributesUpdated int `json:"attributes_updated" yaml:"attributes_updated"`

	DimensionRelationsCreated int `json:"dimension_relations_created" yaml:"dimension_relations_created"`
	TableRelationsCreated     int `json:"table_relations_created" yaml:"table_relations_created"`
	ColumnRelationsCreated    int `json:"column_relations_created" yaml:"column_relations_created"`

	OwnersSynced        int `json:"owners_synced" yaml:"owners_synced"`
	OwnershipSyncFailed int `json:"ownership_sync_failed" yaml:"ownership_sync_failed"`
	DimensionSyncFailed int `json:"dimension_sync_failed" yaml:"dimension_sync_failed"`

	APICallsMade   int `json:"api_calls_made" yaml:"api_calls_made"`
	APICallsFailed int `json:"api_calls_failed" yaml:"api_calls_failed"`

	Errors        int      `json:"errors" yaml:"errors"`
	ErrorMessages []string `json:"error_messages" yaml:"error_messages"`

	DurationSeconds   float64 `json:"duration_seconds" yaml:"duration_seconds"`
	DatasetsPerSecond float64 `json:"datasets_per_second" yaml:"datasets_per_second"`
	ChecksPerSecond   float64 `json:"checks_per_second" yaml:"checks_per_second"`
	TotalOperations   int     `json:"total_operations" yaml:"total_operations"`
	SuccessRate       float64 `json:"success_rate" yaml:"success_rate"`
}
